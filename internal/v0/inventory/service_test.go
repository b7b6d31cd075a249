package inventory

import (
	"context"
	"sync"
	"testing"

	"canteen/internal/databases/dbtest"
	"canteen/internal/logging"
	"canteen/internal/notify"
	"canteen/internal/v0/common"

	"github.com/shopspring/decimal"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Emit(ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []notify.Kind{}
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func newService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	db := dbtest.New(t)
	rec := &recorder{}
	return NewService(db, NewRepository(db), rec, logging.Discard()), rec
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAdjustStockEmitsLowStock(t *testing.T) {
	s, rec := newService(t)
	ctx := context.Background()
	flour, err := s.CreateProduct(ctx, ProductInput{Name: "Flour", Unit: "kg", Quantity: dec("10"), MinQuantity: dec("3")})
	if err != nil {
		t.Fatal(err)
	}

	p, err := s.AdjustStock(ctx, flour.ID, dec("-6"), "")
	if err != nil {
		t.Fatal(err)
	}
	if !p.Quantity.Equal(dec("4")) || p.IsLow || len(rec.kinds()) != 0 {
		t.Fatalf("after first write-off: %+v, events %v", p, rec.kinds())
	}

	p, err = s.AdjustStock(ctx, flour.ID, dec("-1"), "Pancakes")
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsLow {
		t.Errorf("3 of minimum 3 is not low: %+v", p)
	}
	if got := rec.kinds(); len(got) != 1 || got[0] != notify.KindLowStock {
		t.Errorf("events = %v", got)
	}

	if _, err := s.AdjustStock(ctx, flour.ID, dec("-3.5"), ""); !common.IsKind(err, common.KindBadRequest) {
		t.Errorf("negative stock err = %v", err)
	}
	if _, err := s.AdjustStock(ctx, 999, dec("1"), ""); !common.IsKind(err, common.KindNotFound) {
		t.Errorf("missing product err = %v", err)
	}

	moves, err := s.ListMovements(ctx, flour.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(moves) != 2 || moves[0].Reason != "Pancakes" || moves[1].Reason != "Write-off" {
		t.Errorf("movements = %+v", moves)
	}
}

func TestDecidePurchaseRequest(t *testing.T) {
	s, rec := newService(t)
	ctx := context.Background()
	cook := dbtest.CreateUser(t, s.db, "cook@school.test", "cook")
	admin := dbtest.CreateUser(t, s.db, "admin@school.test", "admin")
	milk, err := s.CreateProduct(ctx, ProductInput{Name: "Milk", Unit: "l", Quantity: dec("2"), MinQuantity: dec("5")})
	if err != nil {
		t.Fatal(err)
	}

	approved, err := s.CreatePurchaseRequest(ctx, cook, milk.ID, dec("20"), "for porridge")
	if err != nil {
		t.Fatal(err)
	}
	rejected, err := s.CreatePurchaseRequest(ctx, cook, milk.ID, dec("100"), "")
	if err != nil {
		t.Fatal(err)
	}

	pr, err := s.DecidePurchaseRequest(ctx, admin, approved.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	if pr.Status != StatusApproved || pr.DecidedBy == nil || *pr.DecidedBy != admin || pr.DecidedAt == nil {
		t.Errorf("approved request = %+v", pr)
	}
	products, _ := s.ListProducts(ctx)
	if !products[0].Quantity.Equal(dec("22")) {
		t.Errorf("milk after approval = %s, want 22", products[0].Quantity)
	}

	if _, err := s.DecidePurchaseRequest(ctx, admin, approved.ID, false); !common.IsKind(err, common.KindConflict) {
		t.Errorf("second decision err = %v", err)
	}
	if _, err := s.DecidePurchaseRequest(ctx, admin, rejected.ID, false); err != nil {
		t.Fatal(err)
	}
	products, _ = s.ListProducts(ctx)
	if !products[0].Quantity.Equal(dec("22")) {
		t.Errorf("rejection changed stock to %s", products[0].Quantity)
	}

	decided := 0
	for _, ev := range rec.events {
		if ev.Kind == notify.KindPurchaseRequestDecided {
			decided++
			if ev.UserID == nil || *ev.UserID != cook {
				t.Errorf("decision addressed to %v", ev.UserID)
			}
		}
	}
	if decided != 2 {
		t.Errorf("decision events = %d, want 2", decided)
	}

	if err := s.DeletePurchaseRequest(ctx, cook, rejected.ID); !common.IsKind(err, common.KindBadRequest) {
		t.Errorf("delete decided request err = %v", err)
	}
	mine, err := s.ListPurchaseRequests(ctx, cook, StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 0 {
		t.Errorf("pending requests = %d, want 0", len(mine))
	}
}

func TestCreateProductValidation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	if _, err := s.CreateProduct(ctx, ProductInput{Name: "Salt", Unit: "kg"}); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		in   ProductInput
		want common.Kind
	}{
		{"short name", ProductInput{Name: "S", Unit: "kg"}, common.KindBadRequest},
		{"no unit", ProductInput{Name: "Sugar"}, common.KindBadRequest},
		{"negative", ProductInput{Name: "Sugar", Unit: "kg", Quantity: dec("-1")}, common.KindBadRequest},
		{"duplicate", ProductInput{Name: "Salt", Unit: "kg"}, common.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreateProduct(ctx, tt.in); !common.IsKind(err, tt.want) {
				t.Errorf("err = %v, want %s", err, tt.want)
			}
		})
	}
}
