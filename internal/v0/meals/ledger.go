package meals

import (
	"context"
	"database/sql"

	"canteen/internal/databases"
	"canteen/internal/lock"
	"canteen/internal/v0/common"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Ledger owns student balances. Every change to a balance goes through
// withAccount so a read-check-write on one account never interleaves with
// another.
type Ledger struct {
	db       *sql.DB
	repo     *Repository
	accounts *lock.Keyed
	logger   log.FieldLogger
}

func NewLedger(db *sql.DB, repo *Repository, logger log.FieldLogger) *Ledger {
	return &Ledger{
		db:       db,
		repo:     repo,
		accounts: lock.NewKeyed(),
		logger:   logger.WithField("component", "ledger"),
	}
}

// withAccount runs fn in a write transaction while holding the student's
// account lock. The transaction starts with BEGIN IMMEDIATE, so other
// processes wait for it as well.
func (l *Ledger) withAccount(ctx context.Context, studentID int64, fn func(tx *sql.Tx) error) error {
	unlock := l.accounts.Lock(studentID)
	defer unlock()
	return databases.WithTx(ctx, l.db, fn)
}

// lockedBalance reads the balance inside withAccount
func (l *Ledger) lockedBalance(ctx context.Context, tx *sql.Tx, studentID int64) (decimal.Decimal, error) {
	balance, found, err := l.repo.getBalance(ctx, tx, studentID)
	if err != nil {
		return decimal.Zero, err
	}
	if !found {
		return decimal.Zero, common.NotFound("no account for student %d", studentID)
	}
	return balance, nil
}

// adjust applies delta to the balance, refusing to go below zero
func (l *Ledger) adjust(ctx context.Context, tx *sql.Tx, studentID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	balance, err := l.lockedBalance(ctx, tx, studentID)
	if err != nil {
		return decimal.Zero, err
	}
	next := balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, common.BadRequest("insufficient balance")
	}
	if err := l.repo.setBalance(ctx, tx, studentID, next); err != nil {
		return decimal.Zero, err
	}
	return next, nil
}

// Balance returns the student's current balance
func (l *Ledger) Balance(ctx context.Context, studentID int64) (decimal.Decimal, error) {
	balance, found, err := l.repo.getBalance(ctx, l.db, studentID)
	if err != nil {
		return decimal.Zero, common.Internal(err, "load balance of student %d", studentID)
	}
	if !found {
		return decimal.Zero, common.NotFound("no account for student %d", studentID)
	}
	return balance, nil
}

// LockAndAdjust changes the balance by delta under the account lock and
// returns the new balance. It fails with BadRequest if the balance would go
// negative.
func (l *Ledger) LockAndAdjust(ctx context.Context, studentID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.withAccount(ctx, studentID, func(tx *sql.Tx) error {
		var err error
		balance, err = l.adjust(ctx, tx, studentID, delta)
		return err
	})
	if err != nil {
		return decimal.Zero, common.Wrap(err, "adjust balance of student %d", studentID)
	}
	return balance, nil
}

// TopUp credits amount to the student and records the payment
func (l *Ledger) TopUp(ctx context.Context, studentID int64, amount decimal.Decimal, description string) (*TopUpResult, error) {
	if !amount.IsPositive() {
		return nil, common.BadRequest("amount must be positive")
	}
	if description == "" {
		description = "Balance top-up"
	}

	var result TopUpResult
	err := l.withAccount(ctx, studentID, func(tx *sql.Tx) error {
		var err error
		if result.Balance, err = l.adjust(ctx, tx, studentID, amount); err != nil {
			return err
		}
		result.Payment, err = l.repo.insertPayment(ctx, tx, studentID, amount, PaymentSingle, description)
		return err
	})
	if err != nil {
		return nil, common.Wrap(err, "top up student %d", studentID)
	}

	l.logger.WithFields(log.Fields{
		"student_id": studentID,
		"amount":     amount.String(),
	}).Info("balance topped up")
	return &result, nil
}

// ListPayments returns one page of the student's payment history
func (l *Ledger) ListPayments(ctx context.Context, studentID int64, page Pagination) ([]Payment, Pagination, error) {
	payments, total, err := l.repo.ListPayments(ctx, l.db, studentID, page)
	if err != nil {
		return nil, page, common.Internal(err, "list payments of student %d", studentID)
	}
	return payments, page.withTotal(total), nil
}
