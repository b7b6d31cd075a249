package menu

import (
	"context"
	"slices"

	"canteen/internal/calendar"
	"canteen/internal/v0/common"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type BulkMode string

const (
	ModeTemplate BulkMode = "template"
	ModeShuffle  BulkMode = "shuffle"
)

type TargetType string

const (
	TargetDates    TargetType = "dates"
	TargetWeekdays TargetType = "weekdays"
	TargetPeriod   TargetType = "period"
)

const (
	defaultWeeksAhead = 4
	maxWeeksAhead     = 52
	maxPeriodDays     = 366
)

type Period struct {
	From calendar.Date `json:"from"`
	To   calendar.Date `json:"to"`
}

// Target describes which dates a bulk application covers
type Target struct {
	Type       TargetType      `json:"type"`
	Dates      []calendar.Date `json:"dates,omitempty"`
	Weekdays   []int           `json:"weekdays,omitempty"`
	WeeksAhead int             `json:"weeksAhead,omitempty"`
	Period     *Period         `json:"period,omitempty"`
}

type BulkRequest struct {
	Mode       BulkMode `json:"mode"`
	TemplateID int64    `json:"templateId"`
	GroupID    int64    `json:"groupId"`
	Target     Target   `json:"target"`
	Overwrite  bool     `json:"overwrite"`
}

func (r BulkRequest) validate() error {
	switch r.Mode {
	case ModeTemplate:
		if r.TemplateID <= 0 {
			return common.BadRequest("templateId is required in template mode")
		}
	case ModeShuffle:
		if r.GroupID <= 0 {
			return common.BadRequest("groupId is required in shuffle mode")
		}
	default:
		return common.BadRequest("unknown mode %q, expected template or shuffle", r.Mode)
	}
	return r.Target.validate()
}

func (t Target) validate() error {
	for _, wd := range t.Weekdays {
		if wd < 1 || wd > 7 {
			return common.BadRequest("weekday %d out of range 1..7", wd)
		}
	}

	switch t.Type {
	case TargetDates:
		for _, d := range t.Dates {
			if d.IsZero() {
				return common.BadRequest("dates must not contain empty values")
			}
		}
	case TargetWeekdays:
		if len(t.Weekdays) == 0 {
			return common.BadRequest("weekdays target needs at least one weekday")
		}
		if t.WeeksAhead != 0 && (t.WeeksAhead < 1 || t.WeeksAhead > maxWeeksAhead) {
			return common.BadRequest("weeksAhead must be between 1 and %d", maxWeeksAhead)
		}
	case TargetPeriod:
		if t.Period == nil || t.Period.From.IsZero() || t.Period.To.IsZero() {
			return common.BadRequest("period target needs from and to")
		}
		if t.Period.From.After(t.Period.To) {
			return common.BadRequest("period starts after it ends")
		}
		if t.Period.From.DaysUntil(t.Period.To) >= maxPeriodDays {
			return common.BadRequest("period is longer than %d days", maxPeriodDays)
		}
	default:
		return common.BadRequest("unknown target type %q", t.Type)
	}
	return nil
}

// Resolve lists the target's dates in ascending order, without duplicates.
// Weekday targets count from today, which is included when its weekday matches.
func (t Target) Resolve(today calendar.Date) []calendar.Date {
	var dates []calendar.Date

	switch t.Type {
	case TargetDates:
		dates = t.Dates
	case TargetPeriod:
		wanted := weekdaySet(t.Weekdays)
		for _, d := range calendar.Range(t.Period.From, t.Period.To) {
			if len(wanted) == 0 || wanted[d.ISOWeekday()] {
				dates = append(dates, d)
			}
		}
	case TargetWeekdays:
		weeks := t.WeeksAhead
		if weeks == 0 {
			weeks = defaultWeeksAhead
		}
		todayWd := today.ISOWeekday()
		for w := 0; w < weeks; w++ {
			for _, wd := range t.Weekdays {
				diff := wd - todayWd
				if diff < 0 {
					diff += 7
				}
				dates = append(dates, today.AddDays(diff+7*w))
			}
		}
	}

	seen := make(map[string]bool, len(dates))
	out := make([]calendar.Date, 0, len(dates))
	for _, d := range dates {
		if seen[d.String()] {
			continue
		}
		seen[d.String()] = true
		out = append(out, d)
	}
	slices.SortFunc(out, calendar.Date.Compare)
	return out
}

func weekdaySet(days []int) map[int]bool {
	set := make(map[int]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}

// ApplyWeekPlan applies each slot of the plan to its day of the week that
// contains startDate. Slot failures are reported per date and never stop
// the other slots.
func (e *Engine) ApplyWeekPlan(ctx context.Context, planID int64, startDate calendar.Date, overwrite bool) ([]DateResult, error) {
	plan, err := e.repo.GetWeekPlan(ctx, e.db, planID)
	if err != nil {
		return nil, common.Internal(err, "load week plan %d", planID)
	}
	if plan == nil {
		return nil, common.NotFound("week plan %d not found", planID)
	}

	monday := startDate.Monday()
	results := make([]DateResult, 0, len(plan.Slots))
	for _, slot := range plan.Slots {
		date := monday.AddDays(slot.DayOfWeek - 1)
		var res DateResult

		switch {
		case slot.GroupID != nil:
			res = e.shuffleResult(ctx, *slot.GroupID, date, overwrite)
		case slot.TemplateID != nil:
			ref := &TemplateRef{ID: *slot.TemplateID, Name: slot.TemplateName}
			res = e.templateResult(ctx, ref, date, overwrite)
		default:
			continue
		}
		results = append(results, res)
	}

	e.logger.WithFields(log.Fields{
		"week_plan_id": planID,
		"monday":       monday.String(),
		"slots":        len(results),
	}).Info("week plan applied")
	return results, nil
}

// BulkApply applies one template or one group to every date of the target.
// Template mode runs dates concurrently, shuffle mode runs them in order
// because each pick depends on the previous one.
func (e *Engine) BulkApply(ctx context.Context, req BulkRequest) ([]DateResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var ref *TemplateRef
	switch req.Mode {
	case ModeTemplate:
		tpl, err := e.repo.GetTemplate(ctx, e.db, req.TemplateID)
		if err != nil {
			return nil, common.Internal(err, "load template %d", req.TemplateID)
		}
		if tpl == nil {
			return nil, common.NotFound("template %d not found", req.TemplateID)
		}
		ref = &TemplateRef{ID: tpl.ID, Name: tpl.Name}
	case ModeShuffle:
		group, err := e.repo.GetGroup(ctx, e.db, req.GroupID)
		if err != nil {
			return nil, common.Internal(err, "load group %d", req.GroupID)
		}
		if group == nil {
			return nil, common.NotFound("template group %d not found", req.GroupID)
		}
	}

	dates := req.Target.Resolve(e.clock.Today())
	results := make([]DateResult, len(dates))

	if req.Mode == ModeShuffle {
		for i, d := range dates {
			results[i] = e.shuffleResult(ctx, req.GroupID, d, req.Overwrite)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.parallelism)
		for i, d := range dates {
			i, d := i, d
			g.Go(func() error {
				results[i] = e.templateResult(ctx, ref, d, req.Overwrite)
				return nil
			})
		}
		_ = g.Wait()
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	e.logger.WithFields(log.Fields{
		"mode":      req.Mode,
		"dates":     len(results),
		"failed":    failed,
		"overwrite": req.Overwrite,
	}).Info("bulk apply finished")
	return results, nil
}

func (e *Engine) templateResult(ctx context.Context, tpl *TemplateRef, date calendar.Date, overwrite bool) DateResult {
	res := DateResult{Date: date, DayOfWeek: date.ISOWeekday()}
	day, err := e.ApplyTemplateToDate(ctx, tpl.ID, date, overwrite)
	if err != nil {
		e.recordFailure(&res, err)
		return res
	}
	res.Success = true
	res.MenuDay = day
	res.UsedTemplate = tpl
	return res
}

func (e *Engine) shuffleResult(ctx context.Context, groupID int64, date calendar.Date, overwrite bool) DateResult {
	res := DateResult{Date: date, DayOfWeek: date.ISOWeekday()}
	out, err := e.ApplyShuffleToDate(ctx, groupID, date, overwrite)
	if err != nil {
		e.recordFailure(&res, err)
		return res
	}
	res.Success = true
	res.MenuDay = out.MenuDay
	res.UsedTemplate = out.UsedTemplate
	return res
}

func (e *Engine) recordFailure(res *DateResult, err error) {
	res.Error = common.PublicMessage(err)
	entry := e.logger.WithField("date", res.Date.String()).WithError(err)
	if common.KindOf(err) == common.KindInternal {
		entry.Error("menu application failed")
		return
	}
	entry.Warn("menu application skipped")
}
