package menu

import (
	"time"

	"canteen/internal/calendar"

	"github.com/shopspring/decimal"
)

type MealSlot string

const (
	SlotBreakfast MealSlot = "breakfast"
	SlotLunch     MealSlot = "lunch"
)

func (s MealSlot) Valid() bool {
	return s == SlotBreakfast || s == SlotLunch
}

type MenuDay struct {
	ID        int64         `json:"id"`
	Date      calendar.Date `json:"date"`
	IsActive  bool          `json:"isActive"`
	Items     []MenuItem    `json:"items"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type MenuItem struct {
	ID          int64           `json:"id"`
	MenuDayID   int64           `json:"menuDayId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	MealSlot    MealSlot        `json:"mealType"`
	Allergens   string          `json:"allergens"`
	Calories    *int            `json:"calories"`
	IsAvailable bool            `json:"isAvailable"`
}

// DayItem is a menu item together with the date it is served on
type DayItem struct {
	MenuItem
	Date      calendar.Date `json:"date"`
	DayActive bool          `json:"dayActive"`
}

// ItemInput is the editable part of a menu or template item
type ItemInput struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Price       decimal.Decimal `json:"price" yaml:"price"`
	MealSlot    MealSlot        `json:"mealType" yaml:"mealType"`
	Allergens   string          `json:"allergens" yaml:"allergens"`
	Calories    *int            `json:"calories" yaml:"calories"`
}

type Template struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Tags      []string       `json:"tags"`
	Items     []TemplateItem `json:"items"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type TemplateItem struct {
	ID         int64 `json:"id"`
	TemplateID int64 `json:"templateId"`
	ItemInput
}

// TemplateRef is the short form of a template used in results
type TemplateRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type TemplateGroup struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	DayOfWeek   *int          `json:"dayOfWeek"`
	TemplateIDs []int64       `json:"templateIds"`
	Templates   []TemplateRef `json:"templates"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type GroupInput struct {
	Name        string  `json:"name" yaml:"name"`
	DayOfWeek   *int    `json:"dayOfWeek" yaml:"dayOfWeek"`
	TemplateIDs []int64 `json:"templateIds" yaml:"templateIds"`
}

type ShuffleUsage struct {
	TemplateID   int64         `json:"templateId"`
	TemplateName string        `json:"templateName"`
	UsedDate     calendar.Date `json:"usedDate"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type ShuffleStats struct {
	GroupID         int64          `json:"groupId"`
	GroupName       string         `json:"groupName"`
	TotalTemplates  int            `json:"totalTemplates"`
	UsedCount       int            `json:"usedCount"`
	RemainingCount  int            `json:"remainingCount"`
	WillResetOnNext bool           `json:"willResetOnNext"`
	LastUsages      []ShuffleUsage `json:"lastUsages"`
}

type ShuffleResult struct {
	MenuDay      *MenuDay     `json:"menuDay"`
	UsedTemplate *TemplateRef `json:"usedTemplate"`
}

type WeekPlan struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Slots     []WeekSlot `json:"slots"`
	CreatedAt time.Time  `json:"createdAt"`
}

type WeekSlot struct {
	DayOfWeek  int    `json:"dayOfWeek" yaml:"dayOfWeek"`
	TemplateID *int64 `json:"templateId" yaml:"templateId"`
	GroupID    *int64 `json:"groupId" yaml:"groupId"`

	TemplateName string `json:"templateName,omitempty" yaml:"-"`
	GroupName    string `json:"groupName,omitempty" yaml:"-"`
}

type WeekPlanInput struct {
	Name  string     `json:"name" yaml:"name"`
	Slots []WeekSlot `json:"slots" yaml:"slots"`
}

// DateResult is the outcome of applying a menu to one date of a batch
type DateResult struct {
	Date         calendar.Date `json:"date"`
	DayOfWeek    int           `json:"dayOfWeek"`
	Success      bool          `json:"success"`
	MenuDay      *MenuDay      `json:"menuDay,omitempty"`
	UsedTemplate *TemplateRef  `json:"usedTemplate,omitempty"`
	Error        string        `json:"error,omitempty"`
}

//   This project is the canteen backend API for the OpenSourceDUTH team. Menu scheduling, meal pickup and kitchen inventory for the school canteen.
//   API Copyright (C) 2025 OpenSourceDUTH
//       This program is free software: you can redistribute it and/or modify
//       it under the terms of the GNU General Public License as published by
//       the Free Software Foundation, either version 3 of the License, or
//       (at your option) any later version.

//       This program is distributed in the hope that it will be useful,
//       but WITHOUT ANY WARRANTY; without even the implied warranty of
//       MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//       GNU General Public License for more details.

//       You should have received a copy of the GNU General Public License
//       along with this program.  If not, see <https://www.gnu.org/licenses/>.
