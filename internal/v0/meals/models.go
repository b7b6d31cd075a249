package meals

import (
	"time"

	"canteen/internal/calendar"
	"canteen/internal/v0/menu"

	"github.com/shopspring/decimal"
)

type SubscriptionType string

const (
	SubscriptionBreakfast SubscriptionType = "breakfast"
	SubscriptionLunch     SubscriptionType = "lunch"
	SubscriptionFull      SubscriptionType = "full"
)

// Price per covered day
var subscriptionPrices = map[SubscriptionType]decimal.Decimal{
	SubscriptionBreakfast: decimal.NewFromInt(80),
	SubscriptionLunch:     decimal.NewFromInt(150),
	SubscriptionFull:      decimal.NewFromInt(200),
}

func (t SubscriptionType) Valid() bool {
	_, ok := subscriptionPrices[t]
	return ok
}

// Covers reports whether a subscription of this type pays for slot
func (t SubscriptionType) Covers(slot menu.MealSlot) bool {
	return t == SubscriptionFull || string(t) == string(slot)
}

// Price is the cost of a subscription of this type lasting days
func (t SubscriptionType) Price(days int) decimal.Decimal {
	return subscriptionPrices[t].Mul(decimal.NewFromInt(int64(days)))
}

type PaidBy string

const (
	PaidByBalance      PaidBy = "balance"
	PaidBySubscription PaidBy = "subscription"
)

type PaymentType string

const (
	PaymentSingle       PaymentType = "single"
	PaymentSubscription PaymentType = "subscription"
)

type Payment struct {
	ID          int64           `json:"id"`
	StudentID   int64           `json:"studentId"`
	Amount      decimal.Decimal `json:"amount"`
	Type        PaymentType     `json:"type"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Subscription struct {
	ID        int64            `json:"id"`
	StudentID int64            `json:"studentId"`
	StartDate calendar.Date    `json:"startDate"`
	EndDate   calendar.Date    `json:"endDate"`
	Type      SubscriptionType `json:"type"`
	IsActive  bool             `json:"isActive"`
	CreatedAt time.Time        `json:"createdAt"`
}

// CoversDate is the date part of the coverage rule, the type part is Covers
func (s *Subscription) CoversDate(d calendar.Date) bool {
	return s.IsActive && !d.Before(s.StartDate) && !d.After(s.EndDate)
}

type MealPickup struct {
	ID         int64         `json:"id"`
	StudentID  int64         `json:"studentId"`
	MenuItemID int64         `json:"menuItemId"`
	PickupDate calendar.Date `json:"pickupDate"`
	MealSlot   menu.MealSlot `json:"mealType"`
	IsReceived bool          `json:"isReceived"`
	ReceivedAt *time.Time    `json:"receivedAt"`
	PaidBy     PaidBy        `json:"paidBy"`
	CreatedAt  time.Time     `json:"createdAt"`

	Item    *PickupItem    `json:"menuItem,omitempty"`
	Student *PickupStudent `json:"student,omitempty"`
}

// PickupItem is the part of the menu item shown next to a pickup
type PickupItem struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type PickupResult struct {
	Pickup  *MealPickup     `json:"pickup"`
	PaidBy  PaidBy          `json:"paidBy"`
	Balance decimal.Decimal `json:"balance"`
}

type PurchaseResult struct {
	Subscription *Subscription   `json:"subscription"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
	Balance      decimal.Decimal `json:"balance"`
}

type TopUpResult struct {
	Payment *Payment        `json:"payment"`
	Balance decimal.Decimal `json:"balance"`
}

// DayStats counts the pickups of one day for the kitchen
type DayStats struct {
	Total          int `json:"total"`
	Received       int `json:"received"`
	Pending        int `json:"pending"`
	ByBalance      int `json:"paidByBalance"`
	BySubscription int `json:"paidBySubscription"`
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NewPagination clamps page and limit the same way for every list
func NewPagination(page, limit int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return Pagination{Page: page, Limit: limit}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

func (p Pagination) withTotal(total int) Pagination {
	p.Total = total
	p.TotalPages = (total + p.Limit - 1) / p.Limit
	p.HasMore = p.Page*p.Limit < total
	return p
}

// ProfileEntry is one allergy or food preference of a student
type ProfileEntry struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"studentId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// PickupStudent is what the kitchen sees about the student behind a pickup
type PickupStudent struct {
	ID          int64    `json:"id"`
	DisplayName string   `json:"displayName"`
	Allergies   []string `json:"allergies"`
	Preferences []string `json:"foodPreferences"`
}

type ReviewInput struct {
	MenuItemID int64  `json:"menuItemId" binding:"required,gt=0"`
	Rating     int    `json:"rating" binding:"required"`
	Comment    string `json:"comment"`
}

type Review struct {
	ID         int64     `json:"id"`
	StudentID  int64     `json:"studentId"`
	MenuItemID int64     `json:"menuItemId"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Author string      `json:"author,omitempty"`
	Item   *PickupItem `json:"menuItem,omitempty"`
}

// ItemReviews is the public review page of one menu item
type ItemReviews struct {
	MenuItem     *menu.DayItem    `json:"menuItem"`
	Reviews      []Review         `json:"reviews"`
	AvgRating    *decimal.Decimal `json:"avgRating"`
	ReviewsCount int              `json:"reviewsCount"`
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
