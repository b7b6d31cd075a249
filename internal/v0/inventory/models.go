package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	MinQuantity decimal.Decimal `json:"minQuantity"`
	IsLow       bool            `json:"isLow"`
}

// Low reports whether the stock is at or below its minimum
func (p *Product) Low() bool {
	return p.Quantity.LessThanOrEqual(p.MinQuantity)
}

type ProductInput struct {
	Name        string          `json:"name" yaml:"name"`
	Unit        string          `json:"unit" yaml:"unit"`
	Quantity    decimal.Decimal `json:"quantity" yaml:"quantity"`
	MinQuantity decimal.Decimal `json:"minQuantity" yaml:"minQuantity"`
}

type Movement struct {
	ID             int64           `json:"id"`
	ProductID      int64           `json:"productId"`
	QuantityChange decimal.Decimal `json:"quantityChange"`
	Reason         string          `json:"reason"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

type PurchaseRequest struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	Comment     string          `json:"comment"`
	CreatedBy   int64           `json:"createdBy"`
	Status      RequestStatus   `json:"status"`
	DecidedBy   *int64          `json:"decidedBy"`
	DecidedAt   *time.Time      `json:"decidedAt"`
	CreatedAt   time.Time       `json:"createdAt"`
}
