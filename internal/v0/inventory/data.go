package inventory

import (
	"context"
	"database/sql"
	"errors"

	"canteen/internal/databases"

	"github.com/shopspring/decimal"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

const productColumns = `id, name, unit, quantity, min_quantity`

func scanProduct(s scanner) (Product, error) {
	var p Product
	if err := s.Scan(&p.ID, &p.Name, &p.Unit, &p.Quantity, &p.MinQuantity); err != nil {
		return p, err
	}
	p.IsLow = p.Low()
	return p, nil
}

func (r *Repository) GetProduct(ctx context.Context, q databases.Queryer, id int64) (*Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ListProducts(ctx context.Context, q databases.Queryer) ([]Product, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) createProduct(ctx context.Context, q databases.Queryer, in ProductInput) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO products (name, unit, quantity, min_quantity) VALUES (?, ?, ?, ?)`,
		in.Name, in.Unit, in.Quantity, in.MinQuantity)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) setQuantity(ctx context.Context, q databases.Queryer, id int64, quantity decimal.Decimal) error {
	_, err := q.ExecContext(ctx, `UPDATE products SET quantity = ? WHERE id = ?`, quantity, id)
	return err
}

func (r *Repository) insertMovement(ctx context.Context, q databases.Queryer, productID int64, change decimal.Decimal, reason string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO inventory_movements (product_id, quantity_change, reason) VALUES (?, ?, ?)`,
		productID, change, reason)
	return err
}

// ListMovements returns the stock history of one product, newest first
func (r *Repository) ListMovements(ctx context.Context, q databases.Queryer, productID int64) ([]Movement, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, product_id, quantity_change, reason, created_at
		FROM inventory_movements WHERE product_id = ?
		ORDER BY created_at DESC, id DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	moves := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.QuantityChange, &m.Reason, &m.CreatedAt); err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// Purchase requests

const requestColumns = `r.id, r.product_id, p.name, p.unit, r.quantity, COALESCE(r.comment, ''),
	r.created_by, r.status, r.decided_by, r.decided_at, r.created_at`

const requestFrom = ` FROM purchase_requests r JOIN products p ON p.id = r.product_id`

func scanRequest(s scanner) (PurchaseRequest, error) {
	var (
		pr        PurchaseRequest
		decidedBy sql.NullInt64
		decidedAt sql.NullTime
	)
	err := s.Scan(&pr.ID, &pr.ProductID, &pr.ProductName, &pr.Unit, &pr.Quantity, &pr.Comment,
		&pr.CreatedBy, &pr.Status, &decidedBy, &decidedAt, &pr.CreatedAt)
	if err != nil {
		return pr, err
	}
	if decidedBy.Valid {
		pr.DecidedBy = &decidedBy.Int64
	}
	if decidedAt.Valid {
		pr.DecidedAt = &decidedAt.Time
	}
	return pr, nil
}

func (r *Repository) GetRequest(ctx context.Context, q databases.Queryer, id int64) (*PurchaseRequest, error) {
	pr, err := scanRequest(q.QueryRowContext(ctx, `SELECT `+requestColumns+requestFrom+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

// ListRequests filters by creator and status when they are set
func (r *Repository) ListRequests(ctx context.Context, q databases.Queryer, createdBy int64, status RequestStatus) ([]PurchaseRequest, error) {
	where := ` WHERE 1 = 1`
	var args []any
	if createdBy != 0 {
		where += ` AND r.created_by = ?`
		args = append(args, createdBy)
	}
	if status != "" {
		where += ` AND r.status = ?`
		args = append(args, status)
	}

	rows, err := q.QueryContext(ctx, `SELECT `+requestColumns+requestFrom+where+` ORDER BY r.created_at DESC, r.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []PurchaseRequest{}
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, pr)
	}
	return requests, rows.Err()
}

func (r *Repository) createRequest(ctx context.Context, q databases.Queryer, productID, createdBy int64, quantity decimal.Decimal, comment string) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO purchase_requests (product_id, quantity, comment, created_by, status)
		VALUES (?, ?, NULLIF(?, ''), ?, 'pending')`, productID, quantity, comment, createdBy)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// decideRequest moves a pending request to status. It reports false if the
// request was no longer pending.
func (r *Repository) decideRequest(ctx context.Context, q databases.Queryer, id, decidedBy int64, status RequestStatus) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE purchase_requests SET status = ?, decided_by = ?, decided_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'`, status, decidedBy, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repository) deleteRequest(ctx context.Context, q databases.Queryer, id int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM purchase_requests WHERE id = ?`, id)
	return err
}
