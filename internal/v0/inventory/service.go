package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"canteen/internal/databases"
	"canteen/internal/notify"
	"canteen/internal/v0/common"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Service keeps stock levels and purchase requests. Stock changes and
// decisions are reported to the notifier after they commit.
type Service struct {
	db       *sql.DB
	repo     *Repository
	notifier notify.Notifier
	logger   log.FieldLogger
}

func NewService(db *sql.DB, repo *Repository, notifier notify.Notifier, logger log.FieldLogger) *Service {
	return &Service{db: db, repo: repo, notifier: notifier, logger: logger.WithField("component", "inventory")}
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx, s.db)
	if err != nil {
		return nil, common.Internal(err, "list products")
	}
	return products, nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if len(in.Name) < 2 {
		return nil, common.BadRequest("product name must be at least 2 characters")
	}
	if strings.TrimSpace(in.Unit) == "" {
		return nil, common.BadRequest("unit is required")
	}
	if in.Quantity.IsNegative() || in.MinQuantity.IsNegative() {
		return nil, common.BadRequest("quantities must not be negative")
	}

	id, err := s.repo.createProduct(ctx, s.db, in)
	if databases.IsUniqueViolation(err) {
		return nil, common.Conflict("product %q already exists", in.Name)
	}
	if err != nil {
		return nil, common.Internal(err, "create product %q", in.Name)
	}
	p, err := s.repo.GetProduct(ctx, s.db, id)
	if err != nil {
		return nil, common.Internal(err, "load product %d", id)
	}
	return p, nil
}

// AdjustStock changes a product's quantity by delta and records the
// movement. Reaching the minimum emits lowStockDetected for admins.
func (s *Service) AdjustStock(ctx context.Context, productID int64, delta decimal.Decimal, reason string) (*Product, error) {
	if delta.IsZero() {
		return nil, common.BadRequest("quantity change must not be zero")
	}

	var product *Product
	err := databases.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		product, err = s.adjust(ctx, tx, productID, delta, reason)
		return err
	})
	if err != nil {
		return nil, common.Wrap(err, "adjust stock of product %d", productID)
	}

	s.logger.WithFields(log.Fields{
		"product_id": productID,
		"change":     delta.String(),
		"quantity":   product.Quantity.String(),
	}).Info("stock adjusted")
	s.checkLow(product)
	return product, nil
}

func (s *Service) adjust(ctx context.Context, tx *sql.Tx, productID int64, delta decimal.Decimal, reason string) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, common.NotFound("product %d not found", productID)
	}

	next := p.Quantity.Add(delta)
	if next.IsNegative() {
		return nil, common.BadRequest("stock of %s cannot go below zero", p.Name)
	}
	if reason == "" {
		reason = "Write-off"
		if delta.IsPositive() {
			reason = "Restock"
		}
	}
	if err := s.repo.setQuantity(ctx, tx, productID, next); err != nil {
		return nil, err
	}
	if err := s.repo.insertMovement(ctx, tx, productID, delta, reason); err != nil {
		return nil, err
	}

	p.Quantity = next
	p.IsLow = p.Low()
	return p, nil
}

func (s *Service) checkLow(p *Product) {
	if !p.IsLow {
		return
	}
	s.notifier.Emit(notify.Event{
		Kind:    notify.KindLowStock,
		Role:    "admin",
		Title:   "Low stock",
		Message: fmt.Sprintf("%q: %s %s left, minimum %s %s", p.Name, p.Quantity, p.Unit, p.MinQuantity, p.Unit),
		Data:    map[string]any{"productId": p.ID, "quantity": p.Quantity.String()},
	})
}

func (s *Service) ListMovements(ctx context.Context, productID int64) ([]Movement, error) {
	moves, err := s.repo.ListMovements(ctx, s.db, productID)
	if err != nil {
		return nil, common.Internal(err, "list movements of product %d", productID)
	}
	return moves, nil
}

// ListPurchaseRequests lists requests, all of them when createdBy is 0
func (s *Service) ListPurchaseRequests(ctx context.Context, createdBy int64, status RequestStatus) ([]PurchaseRequest, error) {
	if status != "" && !status.Valid() {
		return nil, common.BadRequest("unknown status %q", status)
	}
	requests, err := s.repo.ListRequests(ctx, s.db, createdBy, status)
	if err != nil {
		return nil, common.Internal(err, "list purchase requests")
	}
	return requests, nil
}

func (s *Service) CreatePurchaseRequest(ctx context.Context, cookID, productID int64, quantity decimal.Decimal, comment string) (*PurchaseRequest, error) {
	if !quantity.IsPositive() {
		return nil, common.BadRequest("quantity must be positive")
	}
	p, err := s.repo.GetProduct(ctx, s.db, productID)
	if err != nil {
		return nil, common.Internal(err, "load product %d", productID)
	}
	if p == nil {
		return nil, common.NotFound("product %d not found", productID)
	}

	id, err := s.repo.createRequest(ctx, s.db, productID, cookID, quantity, comment)
	if err != nil {
		return nil, common.Internal(err, "create purchase request")
	}
	pr, err := s.repo.GetRequest(ctx, s.db, id)
	if err != nil {
		return nil, common.Internal(err, "load purchase request %d", id)
	}

	s.notifier.Emit(notify.Event{
		Kind:    notify.KindPurchaseRequestCreated,
		Role:    "admin",
		Title:   "New purchase request",
		Message: fmt.Sprintf("%q: %s %s", p.Name, quantity, p.Unit),
		Data:    map[string]any{"requestId": id},
	})
	return pr, nil
}

// DeletePurchaseRequest removes one of the cook's own pending requests
func (s *Service) DeletePurchaseRequest(ctx context.Context, cookID, id int64) error {
	return common.Wrap(databases.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		pr, err := s.repo.GetRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if pr == nil || pr.CreatedBy != cookID {
			return common.NotFound("purchase request %d not found", id)
		}
		if pr.Status != StatusPending {
			return common.BadRequest("only pending requests can be deleted")
		}
		return s.repo.deleteRequest(ctx, tx, id)
	}), "delete purchase request %d", id)
}

// DecidePurchaseRequest approves or rejects a pending request. Approval
// restocks the product in the same transaction. The requesting cook is
// notified once the decision commits.
func (s *Service) DecidePurchaseRequest(ctx context.Context, adminID, id int64, approved bool) (*PurchaseRequest, error) {
	status := StatusRejected
	if approved {
		status = StatusApproved
	}

	var (
		pr      *PurchaseRequest
		product *Product
	)
	err := databases.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		pr, err = s.repo.GetRequest(ctx, tx, id)
		if err != nil {
			return err
		}
		if pr == nil {
			return common.NotFound("purchase request %d not found", id)
		}
		ok, err := s.repo.decideRequest(ctx, tx, id, adminID, status)
		if err != nil {
			return err
		}
		if !ok {
			return common.Conflict("purchase request %d was already %s", id, pr.Status)
		}
		if approved {
			reason := fmt.Sprintf("Purchase request #%d", id)
			if product, err = s.adjust(ctx, tx, pr.ProductID, pr.Quantity, reason); err != nil {
				return err
			}
		}
		pr, err = s.repo.GetRequest(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, common.Wrap(err, "decide purchase request %d", id)
	}

	verdict := "rejected"
	if approved {
		verdict = "approved"
	}
	cook := pr.CreatedBy
	s.notifier.Emit(notify.Event{
		Kind:    notify.KindPurchaseRequestDecided,
		UserID:  &cook,
		Title:   "Purchase request " + verdict,
		Message: fmt.Sprintf("Your request for %q (%s %s) was %s.", pr.ProductName, pr.Quantity, pr.Unit, verdict),
		Data:    map[string]any{"requestId": id, "approved": approved},
	})
	s.logger.WithFields(log.Fields{"request_id": id, "approved": approved}).Info("purchase request decided")
	if product != nil {
		s.checkLow(product)
	}
	return pr, nil
}
