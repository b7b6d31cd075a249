package menu

import (
	"context"
	"database/sql"
	"errors"

	"canteen/internal/calendar"
	"canteen/internal/databases"
)

// Repository holds the SQL for menu days, templates, groups and week plans.
// Every method takes the Queryer to run on so callers decide the transaction.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new menu repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sql.DB {
	return r.db
}

type scanner interface {
	Scan(dest ...any) error
}

const menuItemColumns = `id, menu_day_id, name, COALESCE(description, ''), price, meal_slot, COALESCE(allergens, ''), calories, is_available`

func scanMenuItem(s scanner) (MenuItem, error) {
	var it MenuItem
	err := s.Scan(&it.ID, &it.MenuDayID, &it.Name, &it.Description, &it.Price, &it.MealSlot, &it.Allergens, &it.Calories, &it.IsAvailable)
	return it, err
}

// GetMenuDay loads the day for date with its items, nil if there is none
func (r *Repository) GetMenuDay(ctx context.Context, q databases.Queryer, date calendar.Date) (*MenuDay, error) {
	var d MenuDay
	err := q.QueryRowContext(ctx, `
		SELECT id, menu_date, is_active, created_at, updated_at
		FROM menu_days WHERE menu_date = ?`, date,
	).Scan(&d.ID, &d.Date, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	d.Items, err = r.listMenuItems(ctx, q, d.ID)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListMenuDays returns the days between from and to inclusive, items included
func (r *Repository) ListMenuDays(ctx context.Context, q databases.Queryer, from, to calendar.Date) ([]MenuDay, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, menu_date, is_active, created_at, updated_at
		FROM menu_days WHERE menu_date BETWEEN ? AND ?
		ORDER BY menu_date`, from, to)
	if err != nil {
		return nil, err
	}
	days := []MenuDay{}
	for rows.Next() {
		var d MenuDay
		if err := rows.Scan(&d.ID, &d.Date, &d.IsActive, &d.CreatedAt, &d.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		days = append(days, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range days {
		days[i].Items, err = r.listMenuItems(ctx, q, days[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return days, nil
}

func (r *Repository) listMenuItems(ctx context.Context, q databases.Queryer, dayID int64) ([]MenuItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+menuItemColumns+` FROM menu_items WHERE menu_day_id = ? ORDER BY position, id`, dayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []MenuItem{}
	for rows.Next() {
		it, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetMenuItem loads one item with the date of its day, nil if missing
func (r *Repository) GetMenuItem(ctx context.Context, q databases.Queryer, id int64) (*DayItem, error) {
	var it DayItem
	err := q.QueryRowContext(ctx, `
		SELECT i.id, i.menu_day_id, i.name, COALESCE(i.description, ''), i.price, i.meal_slot,
		       COALESCE(i.allergens, ''), i.calories, i.is_available, d.menu_date, d.is_active
		FROM menu_items i
		JOIN menu_days d ON d.id = i.menu_day_id
		WHERE i.id = ?`, id,
	).Scan(&it.ID, &it.MenuDayID, &it.Name, &it.Description, &it.Price, &it.MealSlot,
		&it.Allergens, &it.Calories, &it.IsAvailable, &it.Date, &it.DayActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// findMenuDayID returns the id of the day for date, 0 if there is none
func (r *Repository) findMenuDayID(ctx context.Context, q databases.Queryer, date calendar.Date) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM menu_days WHERE menu_date = ?`, date).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

func (r *Repository) createMenuDay(ctx context.Context, q databases.Queryer, date calendar.Date) (int64, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO menu_days (menu_date, is_active) VALUES (?, 1)`, date)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// dayHasPickups reports whether any student has picked up an item of the day
func (r *Repository) dayHasPickups(ctx context.Context, q databases.Queryer, dayID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM meal_pickups p
		JOIN menu_items i ON i.id = p.menu_item_id
		WHERE i.menu_day_id = ?`, dayID).Scan(&n)
	return n > 0, err
}

// clearMenuDay drops every item of the day and reactivates it
func (r *Repository) clearMenuDay(ctx context.Context, q databases.Queryer, dayID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM menu_items WHERE menu_day_id = ?`, dayID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `UPDATE menu_days SET is_active = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, dayID)
	return err
}

func (r *Repository) insertMenuItems(ctx context.Context, q databases.Queryer, dayID int64, items []ItemInput) error {
	for i, it := range items {
		_, err := q.ExecContext(ctx, `
			INSERT INTO menu_items (menu_day_id, position, name, description, price, meal_slot, allergens, calories, is_available)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			dayID, i, it.Name, it.Description, it.Price, it.MealSlot, it.Allergens, it.Calories,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SetItemAvailability marks an item as (un)available for pickup
func (r *Repository) SetItemAvailability(ctx context.Context, q databases.Queryer, itemID int64, available bool) (bool, error) {
	res, err := q.ExecContext(ctx, `UPDATE menu_items SET is_available = ? WHERE id = ?`, available, itemID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// insertMenuItem appends one item to the end of the day
func (r *Repository) insertMenuItem(ctx context.Context, q databases.Queryer, dayID int64, it ItemInput) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO menu_items (menu_day_id, position, name, description, price, meal_slot, allergens, calories, is_available)
		SELECT ?, COALESCE(MAX(position), -1) + 1, ?, ?, ?, ?, ?, ?, 1
		FROM menu_items WHERE menu_day_id = ?`,
		dayID, it.Name, it.Description, it.Price, it.MealSlot, it.Allergens, it.Calories, dayID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) updateMenuItem(ctx context.Context, q databases.Queryer, id int64, it ItemInput) error {
	_, err := q.ExecContext(ctx, `
		UPDATE menu_items
		SET name = ?, description = ?, price = ?, meal_slot = ?, allergens = ?, calories = ?
		WHERE id = ?`,
		it.Name, it.Description, it.Price, it.MealSlot, it.Allergens, it.Calories, id,
	)
	return err
}

func (r *Repository) deleteMenuItem(ctx context.Context, q databases.Queryer, id int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM menu_items WHERE id = ?`, id)
	return err
}

func (r *Repository) itemHasPickups(ctx context.Context, q databases.Queryer, itemID int64) (bool, error) {
	var picked bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM meal_pickups WHERE menu_item_id = ?)`, itemID).Scan(&picked)
	return picked, err
}

//This project is the canteen backend API for the OpenSourceDUTH team. Menu scheduling, meal pickup and kitchen inventory for the school canteen.
//API Copyright (C) 2025 OpenSourceDUTH
//This program is free software: you can redistribute it and/or modify
//it under the terms of the GNU General Public License as published by
//the Free Software Foundation, either version 3 of the License, or
//(at your option) any later version.
//
//This program is distributed in the hope that it will be useful,
//but WITHOUT ANY WARRANTY; without even the implied warranty of
//MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//GNU General Public License for more details.
//
//You should have received a copy of the GNU General Public License
//along with this program.  If not, see <https://www.gnu.org/licenses/>.
