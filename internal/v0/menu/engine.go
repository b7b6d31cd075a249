package menu

import (
	"context"
	"database/sql"
	"math/rand"

	"canteen/internal/calendar"
	"canteen/internal/databases"
	"canteen/internal/lock"
	"canteen/internal/v0/common"

	log "github.com/sirupsen/logrus"
)

const lastUsagesLimit = 10

// Engine writes templates onto calendar days. Each application runs in its
// own transaction so a day is either fully replaced or left untouched.
type Engine struct {
	db          *sql.DB
	repo        *Repository
	clock       *calendar.Clock
	logger      log.FieldLogger
	parallelism int

	// one selection per group at a time
	groups *lock.Keyed
	intn   func(n int) int
}

func NewEngine(db *sql.DB, repo *Repository, clock *calendar.Clock, logger log.FieldLogger, parallelism int) *Engine {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Engine{
		db:          db,
		repo:        repo,
		clock:       clock,
		logger:      logger.WithField("component", "menu"),
		parallelism: parallelism,
		groups:      lock.NewKeyed(),
		intn:        rand.Intn,
	}
}

// ApplyTemplateToDate copies the template's items onto date. An existing
// day is a Conflict unless overwrite is set, in which case its items are
// discarded first.
func (e *Engine) ApplyTemplateToDate(ctx context.Context, templateID int64, date calendar.Date, overwrite bool) (*MenuDay, error) {
	var day *MenuDay
	err := databases.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		tpl, err := e.repo.GetTemplate(ctx, tx, templateID)
		if err != nil {
			return err
		}
		if tpl == nil {
			return common.NotFound("template %d not found", templateID)
		}
		day, err = e.writeDay(ctx, tx, date, templateInputs(tpl), overwrite)
		return err
	})
	if err != nil {
		return nil, common.Wrap(err, "apply template %d to %s", templateID, date)
	}

	e.logger.WithFields(log.Fields{
		"template_id": templateID,
		"date":        date.String(),
		"items":       len(day.Items),
	}).Info("template applied")
	return day, nil
}

// SetDayItems writes a hand-made menu for date with the same replace rules
// as a template application
func (e *Engine) SetDayItems(ctx context.Context, date calendar.Date, items []ItemInput, overwrite bool) (*MenuDay, error) {
	for i := range items {
		if err := validateItem(items[i]); err != nil {
			return nil, err
		}
	}
	var day *MenuDay
	err := databases.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		var err error
		day, err = e.writeDay(ctx, tx, date, items, overwrite)
		return err
	})
	if err != nil {
		return nil, common.Wrap(err, "set menu for %s", date)
	}
	return day, nil
}

func (e *Engine) writeDay(ctx context.Context, tx *sql.Tx, date calendar.Date, items []ItemInput, overwrite bool) (*MenuDay, error) {
	dayID, err := e.repo.findMenuDayID(ctx, tx, date)
	if err != nil {
		return nil, err
	}

	if dayID != 0 {
		if !overwrite {
			return nil, common.Conflict("menu for %s already exists", date)
		}
		// pickups point at the items and have been paid for
		picked, err := e.repo.dayHasPickups(ctx, tx, dayID)
		if err != nil {
			return nil, err
		}
		if picked {
			return nil, common.Conflict("menu for %s already has meal pickups and cannot be replaced", date)
		}
		if err := e.repo.clearMenuDay(ctx, tx, dayID); err != nil {
			return nil, err
		}
	} else {
		dayID, err = e.repo.createMenuDay(ctx, tx, date)
		if databases.IsUniqueViolation(err) {
			return nil, common.Conflict("menu for %s already exists", date)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := e.repo.insertMenuItems(ctx, tx, dayID, items); err != nil {
		return nil, err
	}
	return e.repo.GetMenuDay(ctx, tx, date)
}

func templateInputs(t *Template) []ItemInput {
	items := make([]ItemInput, len(t.Items))
	for i, it := range t.Items {
		items[i] = it.ItemInput
	}
	return items
}

// PickShuffleTemplate draws a template from the group that has not been used
// in the current cycle, starting a new cycle when all have been. It returns
// nil for a group without templates.
func (e *Engine) PickShuffleTemplate(ctx context.Context, groupID int64) (*Template, error) {
	unlock := e.groups.Lock(groupID)
	defer unlock()

	var tpl *Template
	err := databases.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		var err error
		tpl, err = e.pickShuffle(ctx, tx, groupID)
		return err
	})
	if err != nil {
		return nil, common.Wrap(err, "pick template from group %d", groupID)
	}
	return tpl, nil
}

func (e *Engine) pickShuffle(ctx context.Context, tx *sql.Tx, groupID int64) (*Template, error) {
	group, err := e.repo.GetGroup(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, common.NotFound("template group %d not found", groupID)
	}
	if len(group.TemplateIDs) == 0 {
		return nil, nil
	}

	used, err := e.repo.UsedTemplateIDs(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	available := make([]int64, 0, len(group.TemplateIDs))
	for _, id := range group.TemplateIDs {
		if !used[id] {
			available = append(available, id)
		}
	}
	if len(available) == 0 {
		if err := e.repo.ResetUsages(ctx, tx, groupID); err != nil {
			return nil, err
		}
		available = group.TemplateIDs
		e.logger.WithField("group_id", groupID).Debug("shuffle cycle reset")
	}

	return e.repo.GetTemplate(ctx, tx, available[e.intn(len(available))])
}

// ApplyShuffleToDate picks a template from the group and applies it to date.
// Selection, a possible cycle reset, the application and the ledger entry
// commit together, so a failed application leaves the ledger untouched.
func (e *Engine) ApplyShuffleToDate(ctx context.Context, groupID int64, date calendar.Date, overwrite bool) (*ShuffleResult, error) {
	unlock := e.groups.Lock(groupID)
	defer unlock()

	var result ShuffleResult
	err := databases.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		tpl, err := e.pickShuffle(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if tpl == nil {
			return common.BadRequest("template group %d has no templates", groupID)
		}

		result.MenuDay, err = e.writeDay(ctx, tx, date, templateInputs(tpl), overwrite)
		if err != nil {
			return err
		}
		result.UsedTemplate = &TemplateRef{ID: tpl.ID, Name: tpl.Name}
		return e.repo.RecordUsage(ctx, tx, groupID, tpl.ID, date)
	})
	if err != nil {
		return nil, common.Wrap(err, "apply group %d to %s", groupID, date)
	}

	e.logger.WithFields(log.Fields{
		"group_id":    groupID,
		"template_id": result.UsedTemplate.ID,
		"date":        date.String(),
	}).Info("shuffle applied")
	return &result, nil
}

// GetShuffleStats reports where the group is in its current cycle
func (e *Engine) GetShuffleStats(ctx context.Context, groupID int64) (*ShuffleStats, error) {
	group, err := e.repo.GetGroup(ctx, e.db, groupID)
	if err != nil {
		return nil, common.Internal(err, "load group %d", groupID)
	}
	if group == nil {
		return nil, common.NotFound("template group %d not found", groupID)
	}

	used, err := e.repo.UsedTemplateIDs(ctx, e.db, groupID)
	if err != nil {
		return nil, common.Internal(err, "load shuffle usages of group %d", groupID)
	}
	usedCount := 0
	for _, id := range group.TemplateIDs {
		if used[id] {
			usedCount++
		}
	}

	last, err := e.repo.RecentUsages(ctx, e.db, groupID, lastUsagesLimit)
	if err != nil {
		return nil, common.Internal(err, "load shuffle usages of group %d", groupID)
	}

	total := len(group.TemplateIDs)
	remaining := total - usedCount
	return &ShuffleStats{
		GroupID:         group.ID,
		GroupName:       group.Name,
		TotalTemplates:  total,
		UsedCount:       usedCount,
		RemainingCount:  remaining,
		WillResetOnNext: total > 0 && remaining == 0,
		LastUsages:      last,
	}, nil
}
