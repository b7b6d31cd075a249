// Package notify carries fire-and-forget events from the engines to the
// notification store and, when configured, to Kafka. Emitting never blocks
// and never fails the caller.
package notify

import (
	"context"
	"time"
)

type Kind string

const (
	KindLowStock               Kind = "lowStockDetected"
	KindPurchaseRequestCreated Kind = "purchaseRequestCreated"
	KindPurchaseRequestDecided Kind = "purchaseRequestDecided"
)

// Event is addressed either to one user or to everybody holding Role
type Event struct {
	Kind       Kind           `json:"kind"`
	UserID     *int64         `json:"userId,omitempty"`
	Role       string         `json:"role,omitempty"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Notifier is what emitters depend on
type Notifier interface {
	Emit(Event)
}

// Sink receives batches of events from the dispatcher
type Sink interface {
	Name() string
	Write(ctx context.Context, events []Event) error
}

type nop struct{}

func (nop) Emit(Event) {}

// Nop drops every event
func Nop() Notifier {
	return nop{}
}
