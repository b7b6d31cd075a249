package meals

import (
	"context"
	"database/sql"

	"canteen/internal/calendar"
	"canteen/internal/databases"
	"canteen/internal/v0/common"
	"canteen/internal/v0/menu"

	log "github.com/sirupsen/logrus"
)

// Engine reserves today's menu items for students. A student gets at most
// one pickup per meal slot and day, paid by a covering subscription or else
// by the balance.
type Engine struct {
	repo   *Repository
	menus  *menu.Repository
	ledger *Ledger
	subs   *Subscriptions
	clock  *calendar.Clock
	logger log.FieldLogger
}

func NewEngine(repo *Repository, menus *menu.Repository, ledger *Ledger, subs *Subscriptions, clock *calendar.Clock, logger log.FieldLogger) *Engine {
	return &Engine{
		repo:   repo,
		menus:  menus,
		ledger: ledger,
		subs:   subs,
		clock:  clock,
		logger: logger.WithField("component", "pickup"),
	}
}

// PickupMeal reserves menuItemID for the student. Everything from the
// duplicate check to the pickup insert runs under the account lock in one
// transaction; the UNIQUE index on (student, date, slot) is the backstop.
func (e *Engine) PickupMeal(ctx context.Context, studentID, menuItemID int64) (*PickupResult, error) {
	today := e.clock.Today()
	var (
		result   PickupResult
		pickupID int64
		item     *menu.DayItem
	)

	err := e.ledger.withAccount(ctx, studentID, func(tx *sql.Tx) error {
		var err error
		item, err = e.menus.GetMenuItem(ctx, tx, menuItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return common.NotFound("menu item %d not found", menuItemID)
		}
		if !item.Date.Equal(today) {
			return common.BadRequest("menu item %d is not on today's menu", menuItemID)
		}
		if !item.IsAvailable || !item.DayActive {
			return common.BadRequest("menu item %d is not available", menuItemID)
		}

		exists, err := e.repo.pickupExists(ctx, tx, studentID, today, item.MealSlot)
		if err != nil {
			return err
		}
		if exists {
			return common.Conflict("%s already picked up today", item.MealSlot)
		}

		balance, err := e.ledger.lockedBalance(ctx, tx, studentID)
		if err != nil {
			return err
		}
		sub, err := e.subs.FindCovering(ctx, tx, studentID, today, item.MealSlot)
		if err != nil {
			return err
		}

		result.PaidBy = PaidBySubscription
		result.Balance = balance
		if sub == nil {
			if balance.LessThan(item.Price) {
				return common.BadRequest("insufficient balance")
			}
			result.PaidBy = PaidByBalance
			result.Balance = balance.Sub(item.Price)
			if err := e.repo.setBalance(ctx, tx, studentID, result.Balance); err != nil {
				return err
			}
		}

		pickupID, err = e.repo.insertPickup(ctx, tx, studentID, menuItemID, today, item.MealSlot, result.PaidBy)
		if databases.IsUniqueViolation(err) {
			return common.Conflict("%s already picked up today", item.MealSlot)
		}
		if err != nil {
			return err
		}
		result.Pickup, err = e.repo.GetPickup(ctx, tx, pickupID)
		return err
	})
	if err != nil {
		return nil, common.Wrap(err, "pick up menu item %d for student %d", menuItemID, studentID)
	}

	e.logger.WithFields(log.Fields{
		"student_id":   studentID,
		"menu_item_id": menuItemID,
		"meal_slot":    item.MealSlot,
		"paid_by":      result.PaidBy,
	}).Info("meal picked up")
	return &result, nil
}

// ConfirmReceived marks one of the student's pickups for today as handed out
func (e *Engine) ConfirmReceived(ctx context.Context, studentID, pickupID int64) (*MealPickup, error) {
	var pickup *MealPickup
	err := databases.WithTx(ctx, e.repo.DB(), func(tx *sql.Tx) error {
		p, err := e.repo.GetPickup(ctx, tx, pickupID)
		if err != nil {
			return err
		}
		if p == nil || p.StudentID != studentID {
			return common.NotFound("pickup %d not found", pickupID)
		}
		if p.IsReceived {
			return common.Conflict("pickup %d was already received", pickupID)
		}
		if !p.PickupDate.Equal(e.clock.Today()) {
			return common.BadRequest("only today's pickups can be confirmed")
		}
		if _, err := e.repo.markReceived(ctx, tx, pickupID); err != nil {
			return err
		}
		pickup, err = e.repo.GetPickup(ctx, tx, pickupID)
		return err
	})
	if err != nil {
		return nil, common.Wrap(err, "confirm pickup %d", pickupID)
	}
	return pickup, nil
}

// ListPickups returns one page of the student's pickup history
func (e *Engine) ListPickups(ctx context.Context, studentID int64, date *calendar.Date, page Pagination) ([]MealPickup, Pagination, error) {
	pickups, total, err := e.repo.ListPickups(ctx, e.repo.DB(), studentID, date, page)
	if err != nil {
		return nil, page, common.Internal(err, "list pickups of student %d", studentID)
	}
	return pickups, page.withTotal(total), nil
}

// TodayPickups lists today's pickups for the kitchen, optionally for one
// slot. Each pickup carries the student's allergies and food preferences.
func (e *Engine) TodayPickups(ctx context.Context, slot menu.MealSlot) ([]MealPickup, DayStats, error) {
	today := e.clock.Today()
	pickups, err := e.repo.ListPickupsForDate(ctx, e.repo.DB(), today, slot)
	if err != nil {
		return nil, DayStats{}, common.Internal(err, "list today's pickups")
	}
	students, err := e.repo.pickupStudents(ctx, e.repo.DB(), today)
	if err != nil {
		return nil, DayStats{}, common.Internal(err, "load students of today's pickups")
	}
	stats := DayStats{Total: len(pickups)}
	for i, p := range pickups {
		pickups[i].Student = students[p.StudentID]
		if p.IsReceived {
			stats.Received++
		} else {
			stats.Pending++
		}
		if p.PaidBy == PaidBySubscription {
			stats.BySubscription++
		} else {
			stats.ByBalance++
		}
	}
	return pickups, stats, nil
}
