package menu

import (
	"context"
	"testing"

	"canteen/internal/calendar"
	"canteen/internal/v0/common"
)

func dateStrings(dates []calendar.Date) []string {
	out := []string{}
	for _, d := range dates {
		out = append(out, d.String())
	}
	return out
}

func TestTargetResolve(t *testing.T) {
	wed := calendar.MustParse("2025-06-04")
	tests := []struct {
		name   string
		target Target
		want   []string
	}{
		{
			name: "period with weekend filter",
			target: Target{Type: TargetPeriod, Weekdays: []int{6, 7}, Period: &Period{
				From: calendar.MustParse("2025-06-02"), To: calendar.MustParse("2025-06-08"),
			}},
			want: []string{"2025-06-07", "2025-06-08"},
		},
		{
			name: "period without filter",
			target: Target{Type: TargetPeriod, Period: &Period{
				From: calendar.MustParse("2025-06-29"), To: calendar.MustParse("2025-07-01"),
			}},
			want: []string{"2025-06-29", "2025-06-30", "2025-07-01"},
		},
		{
			name:   "weekdays from a wednesday",
			target: Target{Type: TargetWeekdays, Weekdays: []int{1, 3}, WeeksAhead: 2},
			want:   []string{"2025-06-04", "2025-06-09", "2025-06-11", "2025-06-16"},
		},
		{
			name:   "weekdays default horizon",
			target: Target{Type: TargetWeekdays, Weekdays: []int{5}},
			want:   []string{"2025-06-06", "2025-06-13", "2025-06-20", "2025-06-27"},
		},
		{
			name: "explicit dates sorted and deduplicated",
			target: Target{Type: TargetDates, Dates: []calendar.Date{
				calendar.MustParse("2025-06-10"), calendar.MustParse("2025-06-05"), calendar.MustParse("2025-06-10"),
			}},
			want: []string{"2025-06-05", "2025-06-10"},
		},
		{
			name:   "empty explicit list",
			target: Target{Type: TargetDates},
			want:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dateStrings(tt.target.Resolve(wed))
			if !sameNames(got, tt.want) {
				t.Errorf("Resolve = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBulkRequestValidation(t *testing.T) {
	june := &Period{From: calendar.MustParse("2025-06-01"), To: calendar.MustParse("2025-06-30")}
	tests := []struct {
		name string
		req  BulkRequest
	}{
		{"unknown mode", BulkRequest{Mode: "random", TemplateID: 1, Target: Target{Type: TargetDates}}},
		{"template mode without id", BulkRequest{Mode: ModeTemplate, Target: Target{Type: TargetDates}}},
		{"shuffle mode without group", BulkRequest{Mode: ModeShuffle, TemplateID: 1, Target: Target{Type: TargetDates}}},
		{"unknown target", BulkRequest{Mode: ModeTemplate, TemplateID: 1, Target: Target{Type: "month"}}},
		{"weekday zero", BulkRequest{Mode: ModeTemplate, TemplateID: 1, Target: Target{Type: TargetWeekdays, Weekdays: []int{0}}}},
		{"weekday eight", BulkRequest{Mode: ModeTemplate, TemplateID: 1, Target: Target{Type: TargetPeriod, Weekdays: []int{8}, Period: june}}},
		{"no weekdays", BulkRequest{Mode: ModeTemplate, TemplateID: 1, Target: Target{Type: TargetWeekdays}}},
		{"too many weeks", BulkRequest{Mode: ModeTemplate, TemplateID: 1, Target: Target{Type: TargetWeekdays, Weekdays: []int{1}, WeeksAhead: 53}}},
		{"period missing", BulkRequest{Mode: ModeTemplate, TemplateID: 1, Target: Target{Type: TargetPeriod}}},
		{"period reversed", BulkRequest{Mode: ModeTemplate, TemplateID: 1, Target: Target{Type: TargetPeriod, Period: &Period{
			From: calendar.MustParse("2025-06-10"), To: calendar.MustParse("2025-06-01"),
		}}}},
		{"period too long", BulkRequest{Mode: ModeTemplate, TemplateID: 1, Target: Target{Type: TargetPeriod, Period: &Period{
			From: calendar.MustParse("2025-01-01"), To: calendar.MustParse("2026-01-02"),
		}}}},
	}

	f := newFixture(t, "2025-06-02")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.BulkApply(context.Background(), tt.req)
			if !common.IsKind(err, common.KindBadRequest) {
				t.Errorf("err = %v, want bad request", err)
			}
		})
	}
}

func TestBulkApplyTemplateMode(t *testing.T) {
	f := newFixture(t, "2025-06-02")
	ctx := context.Background()
	tpl := f.template(t, "Weekday lunch", item("Cutlet", "110", SlotLunch))
	taken := calendar.MustParse("2025-06-04")
	if _, err := f.engine.ApplyTemplateToDate(ctx, tpl.ID, taken, false); err != nil {
		t.Fatal(err)
	}

	results, err := f.engine.BulkApply(ctx, BulkRequest{
		Mode:       ModeTemplate,
		TemplateID: tpl.ID,
		Target: Target{Type: TargetPeriod, Period: &Period{
			From: calendar.MustParse("2025-06-02"), To: calendar.MustParse("2025-06-08"),
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 7 {
		t.Fatalf("got %d results, want 7", len(results))
	}
	for i, r := range results {
		want := calendar.MustParse("2025-06-02").AddDays(i)
		if !r.Date.Equal(want) {
			t.Errorf("result %d is for %s, want %s", i, r.Date, want)
		}
		if r.Date.Equal(taken) {
			if r.Success || r.Error == "" {
				t.Errorf("existing day without overwrite: %+v", r)
			}
			continue
		}
		if !r.Success || r.MenuDay == nil || r.UsedTemplate.ID != tpl.ID {
			t.Errorf("date %s: %+v", r.Date, r)
		}
	}

	var days int
	f.db.QueryRow(`SELECT COUNT(*) FROM menu_days`).Scan(&days)
	if days != 7 {
		t.Errorf("menu_days = %d, want 7", days)
	}
}

func TestBulkApplyShuffleMode(t *testing.T) {
	f := newFixture(t, "2025-06-02")
	ctx := context.Background()
	a := f.template(t, "Option A", item("Soup A", "100", SlotLunch))
	b := f.template(t, "Option B", item("Soup B", "100", SlotLunch))
	g := f.group(t, "Rotation", a, b)

	results, err := f.engine.BulkApply(ctx, BulkRequest{
		Mode:    ModeShuffle,
		GroupID: g.ID,
		Target:  Target{Type: TargetWeekdays, Weekdays: []int{1, 2}, WeeksAhead: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(results); got != 2 {
		t.Fatalf("got %d results, want 2", got)
	}
	if results[0].UsedTemplate.ID == results[1].UsedTemplate.ID {
		t.Errorf("two dates of one cycle used template %d", results[0].UsedTemplate.ID)
	}
}

func TestBulkApplyMissingSource(t *testing.T) {
	f := newFixture(t, "2025-06-02")
	ctx := context.Background()
	target := Target{Type: TargetDates, Dates: []calendar.Date{calendar.MustParse("2025-06-03")}}

	if _, err := f.engine.BulkApply(ctx, BulkRequest{Mode: ModeTemplate, TemplateID: 77, Target: target}); !common.IsKind(err, common.KindNotFound) {
		t.Errorf("missing template err = %v", err)
	}
	if _, err := f.engine.BulkApply(ctx, BulkRequest{Mode: ModeShuffle, GroupID: 77, Target: target}); !common.IsKind(err, common.KindNotFound) {
		t.Errorf("missing group err = %v", err)
	}
	var days int
	f.db.QueryRow(`SELECT COUNT(*) FROM menu_days`).Scan(&days)
	if days != 0 {
		t.Errorf("rejected batch created %d days", days)
	}
}

func TestApplyWeekPlan(t *testing.T) {
	f := newFixture(t, "2025-06-02")
	ctx := context.Background()
	wednesday := f.template(t, "Fish day", item("Hake", "130", SlotLunch))
	a := f.template(t, "Option A", item("Soup A", "100", SlotLunch))
	g := f.group(t, "Friday rotation", a)
	empty := f.group(t, "Nothing here")

	tid, gid, eid := wednesday.ID, g.ID, empty.ID
	plan, err := f.catalog.CreateWeekPlan(ctx, WeekPlanInput{
		Name: "Standard week",
		Slots: []WeekSlot{
			{DayOfWeek: 3, TemplateID: &tid},
			{DayOfWeek: 5, GroupID: &gid},
			{DayOfWeek: 6},
			{DayOfWeek: 7, GroupID: &eid},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Any day of the week lands on the same Monday
	results, err := f.engine.ApplyWeekPlan(ctx, plan.ID, calendar.MustParse("2025-06-06"), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3 (empty slot skipped): %+v", len(results), results)
	}

	want := []struct {
		date    string
		dow     int
		success bool
	}{
		{"2025-06-04", 3, true},
		{"2025-06-06", 5, true},
		{"2025-06-08", 7, false},
	}
	for i, w := range want {
		r := results[i]
		if r.Date.String() != w.date || r.DayOfWeek != w.dow || r.Success != w.success {
			t.Errorf("result %d = %+v, want %+v", i, r, w)
		}
	}
	if results[0].UsedTemplate == nil || results[0].UsedTemplate.Name != "Fish day" {
		t.Errorf("template slot used %+v", results[0].UsedTemplate)
	}

	if _, err := f.engine.ApplyWeekPlan(ctx, 999, calendar.MustParse("2025-06-02"), true); !common.IsKind(err, common.KindNotFound) {
		t.Errorf("missing plan err = %v", err)
	}
}

func TestWeekPlanSlotValidation(t *testing.T) {
	f := newFixture(t, "2025-06-02")
	ctx := context.Background()
	one := int64(1)

	tests := []WeekPlanInput{
		{Name: "Both", Slots: []WeekSlot{{DayOfWeek: 1, TemplateID: &one, GroupID: &one}}},
		{Name: "Twice", Slots: []WeekSlot{{DayOfWeek: 2}, {DayOfWeek: 2}}},
		{Name: "Eighth day", Slots: []WeekSlot{{DayOfWeek: 8}}},
	}
	for _, in := range tests {
		if _, err := f.catalog.CreateWeekPlan(ctx, in); !common.IsKind(err, common.KindBadRequest) {
			t.Errorf("%s: err = %v, want bad request", in.Name, err)
		}
	}

	dangling := int64(4242)
	_, err := f.catalog.CreateWeekPlan(ctx, WeekPlanInput{Name: "Dangling", Slots: []WeekSlot{{DayOfWeek: 1, TemplateID: &dangling}}})
	if !common.IsKind(err, common.KindBadRequest) {
		t.Errorf("dangling template err = %v, want bad request", err)
	}
}

func TestBulkApplyWeekdaysComeBackInDateOrder(t *testing.T) {
	f := newFixture(t, "2025-06-04")
	ctx := context.Background()
	tpl := f.template(t, "Weekday lunch", item("Cutlet", "110", SlotLunch))

	results, err := f.engine.BulkApply(ctx, BulkRequest{
		Mode:       ModeTemplate,
		TemplateID: tpl.ID,
		Target:     Target{Type: TargetWeekdays, Weekdays: []int{5, 1, 3}, WeeksAhead: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := []string{}
	for _, r := range results {
		got = append(got, r.Date.String())
	}
	want := []string{"2025-06-04", "2025-06-06", "2025-06-09", "2025-06-11", "2025-06-13", "2025-06-16"}
	if !sameNames(got, want) {
		t.Errorf("result dates = %v, want %v", got, want)
	}
}

func TestDeleteGroupUsedByWeekPlan(t *testing.T) {
	f := newFixture(t, "2025-06-02")
	ctx := context.Background()
	a := f.template(t, "Option A", item("Soup A", "100", SlotLunch))
	used := f.group(t, "Friday rotation", a)
	spare := f.group(t, "Spare rotation", a)

	gid := used.ID
	plan, err := f.catalog.CreateWeekPlan(ctx, WeekPlanInput{Name: "Standard week", Slots: []WeekSlot{{DayOfWeek: 5, GroupID: &gid}}})
	if err != nil {
		t.Fatal(err)
	}

	if err := f.catalog.DeleteGroup(ctx, used.ID); !common.IsKind(err, common.KindConflict) {
		t.Fatalf("delete scheduled group err = %v, want conflict", err)
	}
	got, err := f.catalog.GetWeekPlan(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Slots) != 1 || got.Slots[0].GroupID == nil || *got.Slots[0].GroupID != used.ID {
		t.Errorf("week plan slots after refused delete = %+v", got.Slots)
	}

	if err := f.catalog.DeleteGroup(ctx, spare.ID); err != nil {
		t.Errorf("delete unscheduled group: %v", err)
	}
	if err := f.catalog.DeleteGroup(ctx, spare.ID); !common.IsKind(err, common.KindNotFound) {
		t.Errorf("delete twice err = %v, want not found", err)
	}
}
