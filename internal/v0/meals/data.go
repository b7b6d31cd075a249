package meals

import (
	"context"
	"database/sql"
	"errors"

	"canteen/internal/calendar"
	"canteen/internal/databases"
	"canteen/internal/v0/menu"

	"github.com/shopspring/decimal"
)

// Repository holds the SQL for accounts, payments, subscriptions and pickups
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new meals repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sql.DB {
	return r.db
}

type scanner interface {
	Scan(dest ...any) error
}

// getBalance reads the student's balance. found is false when the student
// has no account.
func (r *Repository) getBalance(ctx context.Context, q databases.Queryer, studentID int64) (balance decimal.Decimal, found bool, err error) {
	err = q.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE student_id = ?`, studentID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return balance, true, nil
}

func (r *Repository) setBalance(ctx context.Context, q databases.Queryer, studentID int64, balance decimal.Decimal) error {
	_, err := q.ExecContext(ctx, `
		UPDATE accounts SET balance = ?, updated_at = CURRENT_TIMESTAMP
		WHERE student_id = ?`, balance, studentID)
	return err
}

// Payments

const paymentColumns = `id, student_id, amount, type, status, COALESCE(description, ''), created_at`

func scanPayment(s scanner) (Payment, error) {
	var p Payment
	err := s.Scan(&p.ID, &p.StudentID, &p.Amount, &p.Type, &p.Status, &p.Description, &p.CreatedAt)
	return p, err
}

func (r *Repository) insertPayment(ctx context.Context, q databases.Queryer, studentID int64, amount decimal.Decimal, typ PaymentType, description string) (*Payment, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO payments (student_id, amount, type, status, description)
		VALUES (?, ?, ?, 'completed', ?)`, studentID, amount, typ, description)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPayments returns one page of the student's payments, newest first
func (r *Repository) ListPayments(ctx context.Context, q databases.Queryer, studentID int64, page Pagination) ([]Payment, int, error) {
	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE student_id = ?`, studentID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE student_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, studentID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, p)
	}
	return payments, total, rows.Err()
}

// Subscriptions

const subscriptionColumns = `id, student_id, start_date, end_date, type, is_active, created_at`

func scanSubscription(s scanner) (Subscription, error) {
	var sub Subscription
	err := s.Scan(&sub.ID, &sub.StudentID, &sub.StartDate, &sub.EndDate, &sub.Type, &sub.IsActive, &sub.CreatedAt)
	return sub, err
}

// findCovering returns an active subscription of the student that pays for
// slot on date, nil if there is none
func (r *Repository) findCovering(ctx context.Context, q databases.Queryer, studentID int64, date calendar.Date, slot menu.MealSlot) (*Subscription, error) {
	sub, err := scanSubscription(q.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE student_id = ? AND is_active = 1
		  AND start_date <= ? AND end_date >= ?
		  AND type IN (?, 'full')
		ORDER BY id LIMIT 1`, studentID, date, date, slot))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) deactivateSubscriptions(ctx context.Context, q databases.Queryer, studentID int64, typ SubscriptionType) error {
	_, err := q.ExecContext(ctx, `
		UPDATE subscriptions SET is_active = 0
		WHERE student_id = ? AND type = ? AND is_active = 1`, studentID, typ)
	return err
}

func (r *Repository) insertSubscription(ctx context.Context, q databases.Queryer, studentID int64, typ SubscriptionType, start, end calendar.Date) (*Subscription, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO subscriptions (student_id, start_date, end_date, type, is_active)
		VALUES (?, ?, ?, ?, 1)`, studentID, start, end, typ)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	sub, err := scanSubscription(q.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubscriptions returns every subscription of the student, newest first
func (r *Repository) ListSubscriptions(ctx context.Context, q databases.Queryer, studentID int64) ([]Subscription, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE student_id = ? ORDER BY start_date DESC, id DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// Pickups

const pickupColumns = `p.id, p.student_id, p.menu_item_id, p.pickup_date, p.meal_slot, p.is_received,
	p.received_at, p.paid_by, p.created_at, i.name, i.price`

const pickupFrom = ` FROM meal_pickups p JOIN menu_items i ON i.id = p.menu_item_id`

func scanPickup(s scanner) (MealPickup, error) {
	var (
		p          MealPickup
		item       PickupItem
		receivedAt sql.NullTime
	)
	err := s.Scan(&p.ID, &p.StudentID, &p.MenuItemID, &p.PickupDate, &p.MealSlot, &p.IsReceived,
		&receivedAt, &p.PaidBy, &p.CreatedAt, &item.Name, &item.Price)
	if err != nil {
		return p, err
	}
	if receivedAt.Valid {
		p.ReceivedAt = &receivedAt.Time
	}
	item.ID = p.MenuItemID
	p.Item = &item
	return p, nil
}

func (r *Repository) pickupExists(ctx context.Context, q databases.Queryer, studentID int64, date calendar.Date, slot menu.MealSlot) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM meal_pickups
		WHERE student_id = ? AND pickup_date = ? AND meal_slot = ?`, studentID, date, slot).Scan(&n)
	return n > 0, err
}

func (r *Repository) insertPickup(ctx context.Context, q databases.Queryer, studentID, menuItemID int64, date calendar.Date, slot menu.MealSlot, paidBy PaidBy) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO meal_pickups (student_id, menu_item_id, pickup_date, meal_slot, is_received, paid_by)
		VALUES (?, ?, ?, ?, 0, ?)`, studentID, menuItemID, date, slot, paidBy)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetPickup loads one pickup with its item, nil if missing
func (r *Repository) GetPickup(ctx context.Context, q databases.Queryer, id int64) (*MealPickup, error) {
	p, err := scanPickup(q.QueryRowContext(ctx, `SELECT `+pickupColumns+pickupFrom+` WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// markReceived flips a pending pickup to received. It reports false when the
// pickup was already received.
func (r *Repository) markReceived(ctx context.Context, q databases.Queryer, id int64) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE meal_pickups SET is_received = 1, received_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_received = 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListPickups returns one page of the student's pickups, newest first,
// optionally limited to one date
func (r *Repository) ListPickups(ctx context.Context, q databases.Queryer, studentID int64, date *calendar.Date, page Pagination) ([]MealPickup, int, error) {
	where := ` WHERE p.student_id = ?`
	args := []any{studentID}
	if date != nil {
		where += ` AND p.pickup_date = ?`
		args = append(args, *date)
	}

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM meal_pickups p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := q.QueryContext(ctx, `SELECT `+pickupColumns+pickupFrom+where+`
		ORDER BY p.pickup_date DESC, p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`,
		append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	pickups, err := collectPickups(rows)
	return pickups, total, err
}

// ListPickupsForDate returns every pickup of date, in the order they were made
func (r *Repository) ListPickupsForDate(ctx context.Context, q databases.Queryer, date calendar.Date, slot menu.MealSlot) ([]MealPickup, error) {
	where := ` WHERE p.pickup_date = ?`
	args := []any{date}
	if slot != "" {
		where += ` AND p.meal_slot = ?`
		args = append(args, slot)
	}

	rows, err := q.QueryContext(ctx, `SELECT `+pickupColumns+pickupFrom+where+` ORDER BY p.created_at, p.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPickups(rows)
}

func collectPickups(rows *sql.Rows) ([]MealPickup, error) {
	pickups := []MealPickup{}
	for rows.Next() {
		p, err := scanPickup(rows)
		if err != nil {
			return nil, err
		}
		pickups = append(pickups, p)
	}
	return pickups, rows.Err()
}
