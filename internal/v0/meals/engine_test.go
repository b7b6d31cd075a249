package meals

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"canteen/internal/calendar"
	"canteen/internal/databases/dbtest"
	"canteen/internal/logging"
	"canteen/internal/v0/common"
	"canteen/internal/v0/menu"

	"github.com/shopspring/decimal"
)

type fixture struct {
	db      *sql.DB
	today   calendar.Date
	menus   *menu.Engine
	ledger  *Ledger
	subs    *Subscriptions
	engine  *Engine
	profile *Profile
	reviews *Reviews
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	logger := logging.Discard()
	today := calendar.MustParse("2025-06-04")
	clock := calendar.FixedClock(today)

	menuRepo := menu.NewRepository(db)
	repo := NewRepository(db)
	ledger := NewLedger(db, repo, logger)
	subs := NewSubscriptions(repo, ledger, clock, logger)
	return &fixture{
		db:      db,
		today:   today,
		menus:   menu.NewEngine(db, menuRepo, clock, logger, 1),
		ledger:  ledger,
		subs:    subs,
		engine:  NewEngine(repo, menuRepo, ledger, subs, clock, logger),
		profile: NewProfile(repo, logger),
		reviews: NewReviews(repo, menuRepo, logger),
	}
}

// serve puts a breakfast and a lunch on date and returns their item ids
func (f *fixture) serve(t *testing.T, date calendar.Date) (breakfast, lunch int64) {
	t.Helper()
	day, err := f.menus.SetDayItems(context.Background(), date, []menu.ItemInput{
		{Name: "Oatmeal", Price: decimal.RequireFromString("80.00"), MealSlot: menu.SlotBreakfast},
		{Name: "Chicken soup", Price: decimal.RequireFromString("150.00"), MealSlot: menu.SlotLunch},
		{Name: "Fish cakes", Price: decimal.RequireFromString("170.00"), MealSlot: menu.SlotLunch},
	}, true)
	if err != nil {
		t.Fatal(err)
	}
	return day.Items[0].ID, day.Items[1].ID
}

func (f *fixture) balance(t *testing.T, studentID int64) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), studentID)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func (f *fixture) pickups(t *testing.T, studentID int64) int {
	t.Helper()
	var n int
	if err := f.db.QueryRow(`SELECT COUNT(*) FROM meal_pickups WHERE student_id = ?`, studentID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestPickupPaidFromBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := dbtest.CreateStudent(t, f.db, "ivan@school.test", "500")
	_, lunch := f.serve(t, f.today)

	res, err := f.engine.PickupMeal(ctx, student, lunch)
	if err != nil {
		t.Fatal(err)
	}
	if res.PaidBy != PaidByBalance {
		t.Errorf("paidBy = %s, want balance", res.PaidBy)
	}
	want := decimal.RequireFromString("350")
	if !res.Balance.Equal(want) || !f.balance(t, student).Equal(want) {
		t.Errorf("balance = %s / %s, want 350", res.Balance, f.balance(t, student))
	}
	p := res.Pickup
	if p.IsReceived || p.MealSlot != menu.SlotLunch || !p.PickupDate.Equal(f.today) || p.Item.Name != "Chicken soup" {
		t.Errorf("pickup = %+v", p)
	}
	if n := f.pickups(t, student); n != 1 {
		t.Errorf("pickup rows = %d, want 1", n)
	}
}

func TestPickupPaidBySubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := dbtest.CreateStudent(t, f.db, "olga@school.test", "1000")
	breakfast, lunch := f.serve(t, f.today)

	if _, err := f.subs.Purchase(ctx, student, SubscriptionFull, 2); err != nil {
		t.Fatal(err)
	}
	// 1000 - 2 days * 200
	if got := f.balance(t, student); !got.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("balance after purchase = %s, want 600", got)
	}
	// Spend the rest so the balance alone could not pay
	if _, err := f.ledger.LockAndAdjust(ctx, student, decimal.NewFromInt(-600)); err != nil {
		t.Fatal(err)
	}

	for _, id := range []int64{breakfast, lunch} {
		res, err := f.engine.PickupMeal(ctx, student, id)
		if err != nil {
			t.Fatalf("pickup %d: %v", id, err)
		}
		if res.PaidBy != PaidBySubscription || !res.Balance.IsZero() {
			t.Errorf("pickup %d = paidBy %s balance %s", id, res.PaidBy, res.Balance)
		}
	}
	if !f.balance(t, student).IsZero() {
		t.Errorf("subscription pickups touched the balance")
	}
}

func TestSubscriptionCoversOnlyItsSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := dbtest.CreateStudent(t, f.db, "petr@school.test", "80")
	breakfast, lunch := f.serve(t, f.today)

	if _, err := f.subs.Purchase(ctx, student, SubscriptionBreakfast, 1); err != nil {
		t.Fatal(err)
	}
	if res, err := f.engine.PickupMeal(ctx, student, breakfast); err != nil || res.PaidBy != PaidBySubscription {
		t.Fatalf("breakfast pickup = %+v, %v", res, err)
	}
	_, err := f.engine.PickupMeal(ctx, student, lunch)
	if !common.IsKind(err, common.KindBadRequest) || common.PublicMessage(err) != "insufficient balance" {
		t.Errorf("lunch without funds err = %v", err)
	}
	if n := f.pickups(t, student); n != 1 {
		t.Errorf("pickup rows = %d, want 1", n)
	}
}

func TestPickupRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rich := dbtest.CreateStudent(t, f.db, "rich@school.test", "10000")
	_, todayLunch := f.serve(t, f.today)
	_, tomorrowLunch := f.serve(t, f.today.AddDays(1))

	var unavailable int64
	f.db.QueryRow(`SELECT id FROM menu_items WHERE name = 'Fish cakes' AND menu_day_id = (SELECT id FROM menu_days WHERE menu_date = ?)`, f.today).Scan(&unavailable)
	if _, err := f.db.Exec(`UPDATE menu_items SET is_available = 0 WHERE id = ?`, unavailable); err != nil {
		t.Fatal(err)
	}
	noAccount := dbtest.CreateUser(t, f.db, "cook@school.test", "cook")

	tests := []struct {
		name    string
		student int64
		item    int64
		want    common.Kind
	}{
		{"missing item", rich, 999999, common.KindNotFound},
		{"not today", rich, tomorrowLunch, common.KindBadRequest},
		{"unavailable item", rich, unavailable, common.KindBadRequest},
		{"no account", noAccount, todayLunch, common.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.PickupMeal(ctx, tt.student, tt.item)
			if !common.IsKind(err, tt.want) {
				t.Errorf("err = %v, want %s", err, tt.want)
			}
		})
	}
	if !f.balance(t, rich).Equal(decimal.NewFromInt(10000)) {
		t.Errorf("rejected pickups changed the balance")
	}
}

func TestDoublePickupConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := dbtest.CreateStudent(t, f.db, "dasha@school.test", "1000")
	_, lunch := f.serve(t, f.today)

	if _, err := f.engine.PickupMeal(ctx, student, lunch); err != nil {
		t.Fatal(err)
	}
	var other int64
	f.db.QueryRow(`SELECT id FROM menu_items WHERE name = 'Fish cakes'`).Scan(&other)

	// A different item in the same slot is still the same meal
	_, err := f.engine.PickupMeal(ctx, student, other)
	if !common.IsKind(err, common.KindConflict) {
		t.Fatalf("second lunch err = %v, want conflict", err)
	}
	if got := f.balance(t, student); !got.Equal(decimal.NewFromInt(850)) {
		t.Errorf("balance = %s, want 850", got)
	}
}

func TestConcurrentPickupsDebitOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := dbtest.CreateStudent(t, f.db, "misha@school.test", "200")
	_, lunch := f.serve(t, f.today)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.PickupMeal(ctx, student, lunch)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case common.IsKind(err, common.KindConflict):
				conflicts++
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != attempts-1 {
		t.Errorf("succeeded = %d, conflicts = %d", succeeded, conflicts)
	}
	if got := f.balance(t, student); !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("balance = %s, want 50", got)
	}
	if n := f.pickups(t, student); n != 1 {
		t.Errorf("pickup rows = %d, want 1", n)
	}
}

func TestLedgerNeverGoesNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := dbtest.CreateStudent(t, f.db, "sasha@school.test", "100")

	if _, err := f.ledger.LockAndAdjust(ctx, student, decimal.NewFromInt(-101)); !common.IsKind(err, common.KindBadRequest) {
		t.Errorf("overdraw err = %v", err)
	}
	if _, err := f.ledger.TopUp(ctx, student, decimal.Zero, ""); !common.IsKind(err, common.KindBadRequest) {
		t.Errorf("zero top-up err = %v", err)
	}
	res, err := f.ledger.TopUp(ctx, student, decimal.RequireFromString("49.90"), "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Balance.Equal(decimal.RequireFromString("149.9")) || res.Payment.Type != PaymentSingle {
		t.Errorf("top-up = %+v", res)
	}

	payments, page, err := f.ledger.ListPayments(ctx, student, NewPagination(1, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(payments) != 1 || page.Total != 1 || page.HasMore {
		t.Errorf("payments = %+v, page = %+v", payments, page)
	}
}

func TestPurchaseReplacesSameType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := dbtest.CreateStudent(t, f.db, "lena@school.test", "1000")

	first, err := f.subs.Purchase(ctx, student, SubscriptionLunch, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !first.TotalPrice.Equal(decimal.NewFromInt(450)) {
		t.Errorf("price = %s, want 450", first.TotalPrice)
	}
	if got := first.Subscription.EndDate.String(); got != "2025-06-07" {
		t.Errorf("end date = %s, want 2025-06-07", got)
	}

	if _, err := f.subs.Purchase(ctx, student, SubscriptionLunch, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := f.subs.Purchase(ctx, student, SubscriptionLunch, 5); !common.IsKind(err, common.KindBadRequest) {
		t.Errorf("unaffordable purchase err = %v", err)
	}
	if _, err := f.subs.Purchase(ctx, student, "dinner", 1); !common.IsKind(err, common.KindBadRequest) {
		t.Errorf("unknown type err = %v", err)
	}

	subs, err := f.subs.List(ctx, student)
	if err != nil {
		t.Fatal(err)
	}
	active := 0
	for _, s := range subs {
		if s.IsActive {
			active++
		}
	}
	if len(subs) != 2 || active != 1 {
		t.Errorf("subscriptions = %d, active = %d", len(subs), active)
	}
}

func TestCoverageRules(t *testing.T) {
	sub := Subscription{
		IsActive:  true,
		StartDate: calendar.MustParse("2025-06-02"),
		EndDate:   calendar.MustParse("2025-06-06"),
	}
	tests := []struct {
		typ  SubscriptionType
		slot menu.MealSlot
		date string
		want bool
	}{
		{SubscriptionFull, menu.SlotBreakfast, "2025-06-02", true},
		{SubscriptionFull, menu.SlotLunch, "2025-06-06", true},
		{SubscriptionLunch, menu.SlotBreakfast, "2025-06-03", false},
		{SubscriptionBreakfast, menu.SlotBreakfast, "2025-06-07", false},
		{SubscriptionBreakfast, menu.SlotBreakfast, "2025-06-01", false},
	}
	for _, tt := range tests {
		got := tt.typ.Covers(tt.slot) && sub.CoversDate(calendar.MustParse(tt.date))
		if got != tt.want {
			t.Errorf("%s covers %s on %s = %v, want %v", tt.typ, tt.slot, tt.date, got, tt.want)
		}
	}
}

func TestConfirmReceived(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := dbtest.CreateStudent(t, f.db, "nina@school.test", "500")
	other := dbtest.CreateStudent(t, f.db, "vera@school.test", "500")
	breakfast, _ := f.serve(t, f.today)

	res, err := f.engine.PickupMeal(ctx, student, breakfast)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.ConfirmReceived(ctx, other, res.Pickup.ID); !common.IsKind(err, common.KindNotFound) {
		t.Errorf("foreign pickup err = %v", err)
	}
	p, err := f.engine.ConfirmReceived(ctx, student, res.Pickup.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsReceived || p.ReceivedAt == nil {
		t.Errorf("confirmed pickup = %+v", p)
	}
	if _, err := f.engine.ConfirmReceived(ctx, student, res.Pickup.ID); !common.IsKind(err, common.KindConflict) {
		t.Errorf("second confirm err = %v", err)
	}

	pickups, stats, err := f.engine.TodayPickups(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(pickups) != 1 || stats.Received != 1 || stats.Pending != 0 {
		t.Errorf("today = %d pickups, stats %+v", len(pickups), stats)
	}
}

func TestOverwriteRefusedOncePickedUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	student := dbtest.CreateStudent(t, f.db, "petr@school.test", "300")
	_, lunch := f.serve(t, f.today)

	if _, err := f.engine.PickupMeal(ctx, student, lunch); err != nil {
		t.Fatal(err)
	}

	_, err := f.menus.SetDayItems(ctx, f.today, []menu.ItemInput{
		{Name: "Pasta", Price: decimal.RequireFromString("140"), MealSlot: menu.SlotLunch},
	}, true)
	if !common.IsKind(err, common.KindConflict) {
		t.Fatalf("overwrite of a picked up day err = %v, want conflict", err)
	}
	if _, err := f.db.Exec(`DELETE FROM menu_items WHERE id = ?`, lunch); err == nil {
		t.Error("deleting a picked up item succeeded")
	}

	if n := f.pickups(t, student); n != 1 {
		t.Errorf("pickup rows = %d, want 1", n)
	}
	if _, err := f.engine.PickupMeal(ctx, student, lunch); !common.IsKind(err, common.KindConflict) {
		t.Errorf("second pickup err = %v, want conflict", err)
	}
	if b := f.balance(t, student); !b.Equal(decimal.RequireFromString("150")) {
		t.Errorf("balance = %s, want 150", b)
	}

	// a day nobody picked from can still be replaced
	tomorrow := f.today.AddDays(1)
	f.serve(t, tomorrow)
	f.serve(t, tomorrow)
}
