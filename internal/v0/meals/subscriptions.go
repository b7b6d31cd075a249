package meals

import (
	"context"
	"database/sql"
	"fmt"

	"canteen/internal/calendar"
	"canteen/internal/databases"
	"canteen/internal/v0/common"
	"canteen/internal/v0/menu"

	log "github.com/sirupsen/logrus"
)

const maxSubscriptionDays = 90

// Subscriptions sells and looks up meal subscriptions. Purchases are paid
// from the balance, so they share the ledger's account lock.
type Subscriptions struct {
	repo   *Repository
	ledger *Ledger
	clock  *calendar.Clock
	logger log.FieldLogger
}

func NewSubscriptions(repo *Repository, ledger *Ledger, clock *calendar.Clock, logger log.FieldLogger) *Subscriptions {
	return &Subscriptions{repo: repo, ledger: ledger, clock: clock, logger: logger.WithField("component", "subscriptions")}
}

// FindCovering returns an active subscription of the student that pays for
// slot on date, nil if there is none
func (s *Subscriptions) FindCovering(ctx context.Context, q databases.Queryer, studentID int64, date calendar.Date, slot menu.MealSlot) (*Subscription, error) {
	return s.repo.findCovering(ctx, q, studentID, date, slot)
}

// Purchase buys a subscription starting today. The previous active
// subscription of the same type is deactivated.
func (s *Subscriptions) Purchase(ctx context.Context, studentID int64, typ SubscriptionType, days int) (*PurchaseResult, error) {
	if !typ.Valid() {
		return nil, common.BadRequest("unknown subscription type %q, expected breakfast, lunch or full", typ)
	}
	if days < 1 || days > maxSubscriptionDays {
		return nil, common.BadRequest("days must be between 1 and %d", maxSubscriptionDays)
	}

	price := typ.Price(days)
	today := s.clock.Today()
	result := PurchaseResult{TotalPrice: price}

	err := s.ledger.withAccount(ctx, studentID, func(tx *sql.Tx) error {
		var err error
		if result.Balance, err = s.ledger.adjust(ctx, tx, studentID, price.Neg()); err != nil {
			return err
		}
		desc := fmt.Sprintf("Subscription %q for %d days", typ, days)
		if _, err := s.repo.insertPayment(ctx, tx, studentID, price, PaymentSubscription, desc); err != nil {
			return err
		}
		if err := s.repo.deactivateSubscriptions(ctx, tx, studentID, typ); err != nil {
			return err
		}
		result.Subscription, err = s.repo.insertSubscription(ctx, tx, studentID, typ, today, today.AddDays(days))
		return err
	})
	if err != nil {
		return nil, common.Wrap(err, "purchase subscription for student %d", studentID)
	}

	s.logger.WithFields(log.Fields{
		"student_id": studentID,
		"type":       typ,
		"days":       days,
		"price":      price.String(),
	}).Info("subscription purchased")
	return &result, nil
}

func (s *Subscriptions) List(ctx context.Context, studentID int64) ([]Subscription, error) {
	subs, err := s.repo.ListSubscriptions(ctx, s.repo.DB(), studentID)
	if err != nil {
		return nil, common.Internal(err, "list subscriptions of student %d", studentID)
	}
	return subs, nil
}
