package menu

import (
	"context"
	"database/sql"
	"strings"

	"canteen/internal/databases"
	"canteen/internal/v0/common"

	log "github.com/sirupsen/logrus"
)

const minNameLength = 2

// Catalog manages templates, template groups and week plans
type Catalog struct {
	db     *sql.DB
	repo   *Repository
	logger log.FieldLogger
}

func NewCatalog(db *sql.DB, repo *Repository, logger log.FieldLogger) *Catalog {
	return &Catalog{db: db, repo: repo, logger: logger.WithField("component", "catalog")}
}

func validateName(what, name string) error {
	if len(strings.TrimSpace(name)) < minNameLength {
		return common.BadRequest("%s name must be at least %d characters", what, minNameLength)
	}
	return nil
}

func validateItem(in ItemInput) error {
	if err := validateName("item", in.Name); err != nil {
		return err
	}
	if !in.Price.IsPositive() {
		return common.BadRequest("item %q must have a positive price", in.Name)
	}
	if !in.MealSlot.Valid() {
		return common.BadRequest("item %q has meal type %q, expected breakfast or lunch", in.Name, in.MealSlot)
	}
	if in.Calories != nil && *in.Calories <= 0 {
		return common.BadRequest("item %q must have positive calories", in.Name)
	}
	return nil
}

func validateDayOfWeek(dow *int) error {
	if dow != nil && (*dow < 1 || *dow > 7) {
		return common.BadRequest("dayOfWeek %d out of range 1..7", *dow)
	}
	return nil
}

// Templates

func (c *Catalog) ListTemplates(ctx context.Context, tag string) ([]Template, error) {
	templates, err := c.repo.ListTemplates(ctx, c.db, tag)
	return templates, common.Wrap(err, "list templates")
}

func (c *Catalog) GetTemplate(ctx context.Context, id int64) (*Template, error) {
	tpl, err := c.repo.GetTemplate(ctx, c.db, id)
	if err != nil {
		return nil, common.Internal(err, "load template %d", id)
	}
	if tpl == nil {
		return nil, common.NotFound("template %d not found", id)
	}
	return tpl, nil
}

// CreateTemplate stores a template together with its initial items
func (c *Catalog) CreateTemplate(ctx context.Context, name string, tags []string, items []ItemInput) (*Template, error) {
	if err := validateName("template", name); err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := validateItem(it); err != nil {
			return nil, err
		}
	}

	var id int64
	err := databases.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		var err error
		id, err = c.repo.CreateTemplate(ctx, tx, strings.TrimSpace(name), tags)
		if err != nil {
			return err
		}
		for _, it := range items {
			if _, err := c.repo.AddTemplateItem(ctx, tx, id, it); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, common.Wrap(err, "create template")
	}
	return c.GetTemplate(ctx, id)
}

func (c *Catalog) UpdateTemplate(ctx context.Context, id int64, name string, tags []string) (*Template, error) {
	if err := validateName("template", name); err != nil {
		return nil, err
	}
	ok, err := c.repo.UpdateTemplate(ctx, c.db, id, strings.TrimSpace(name), tags)
	if err != nil {
		return nil, common.Internal(err, "update template %d", id)
	}
	if !ok {
		return nil, common.NotFound("template %d not found", id)
	}
	return c.GetTemplate(ctx, id)
}

// DeleteTemplate refuses templates still used by a group or week plan.
// Menu days built from it keep their copied items.
func (c *Catalog) DeleteTemplate(ctx context.Context, id int64) error {
	err := databases.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		inUse, err := c.repo.TemplateInUse(ctx, tx, id)
		if err != nil {
			return err
		}
		if inUse {
			return common.Conflict("template %d is used by a group or week plan", id)
		}
		ok, err := c.repo.DeleteTemplate(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return common.NotFound("template %d not found", id)
		}
		return nil
	})
	return common.Wrap(err, "delete template %d", id)
}

func (c *Catalog) AddTemplateItem(ctx context.Context, templateID int64, in ItemInput) (*TemplateItem, error) {
	if err := validateItem(in); err != nil {
		return nil, err
	}
	var item *TemplateItem
	err := databases.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		tpl, err := c.repo.GetTemplate(ctx, tx, templateID)
		if err != nil {
			return err
		}
		if tpl == nil {
			return common.NotFound("template %d not found", templateID)
		}
		id, err := c.repo.AddTemplateItem(ctx, tx, templateID, in)
		if err != nil {
			return err
		}
		item, err = c.repo.GetTemplateItem(ctx, tx, templateID, id)
		return err
	})
	if err != nil {
		return nil, common.Wrap(err, "add item to template %d", templateID)
	}
	return item, nil
}

func (c *Catalog) UpdateTemplateItem(ctx context.Context, templateID, itemID int64, in ItemInput) (*TemplateItem, error) {
	if err := validateItem(in); err != nil {
		return nil, err
	}
	ok, err := c.repo.UpdateTemplateItem(ctx, c.db, templateID, itemID, in)
	if err != nil {
		return nil, common.Internal(err, "update template item %d", itemID)
	}
	if !ok {
		return nil, common.NotFound("item %d not found in template %d", itemID, templateID)
	}
	item, err := c.repo.GetTemplateItem(ctx, c.db, templateID, itemID)
	return item, common.Wrap(err, "load template item %d", itemID)
}

func (c *Catalog) DeleteTemplateItem(ctx context.Context, templateID, itemID int64) error {
	ok, err := c.repo.DeleteTemplateItem(ctx, c.db, templateID, itemID)
	if err != nil {
		return common.Internal(err, "delete template item %d", itemID)
	}
	if !ok {
		return common.NotFound("item %d not found in template %d", itemID, templateID)
	}
	return nil
}

// Groups

func (c *Catalog) ListGroups(ctx context.Context) ([]TemplateGroup, error) {
	groups, err := c.repo.ListGroups(ctx, c.db)
	return groups, common.Wrap(err, "list template groups")
}

func (c *Catalog) GetGroup(ctx context.Context, id int64) (*TemplateGroup, error) {
	g, err := c.repo.GetGroup(ctx, c.db, id)
	if err != nil {
		return nil, common.Internal(err, "load template group %d", id)
	}
	if g == nil {
		return nil, common.NotFound("template group %d not found", id)
	}
	return g, nil
}

func (c *Catalog) CreateGroup(ctx context.Context, in GroupInput) (*TemplateGroup, error) {
	if err := validateName("group", in.Name); err != nil {
		return nil, err
	}
	if err := validateDayOfWeek(in.DayOfWeek); err != nil {
		return nil, err
	}

	var id int64
	err := databases.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		var err error
		id, err = c.repo.CreateGroup(ctx, tx, in)
		return err
	})
	if databases.IsForeignKeyViolation(err) {
		return nil, common.BadRequest("group references a template that does not exist")
	}
	if err != nil {
		return nil, common.Internal(err, "create template group")
	}
	return c.GetGroup(ctx, id)
}

// UpdateGroup replaces the group. A nil TemplateIDs keeps the member set.
func (c *Catalog) UpdateGroup(ctx context.Context, id int64, in GroupInput) (*TemplateGroup, error) {
	if err := validateName("group", in.Name); err != nil {
		return nil, err
	}
	if err := validateDayOfWeek(in.DayOfWeek); err != nil {
		return nil, err
	}

	err := databases.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		ok, err := c.repo.UpdateGroup(ctx, tx, id, in)
		if err != nil {
			return err
		}
		if !ok {
			return common.NotFound("template group %d not found", id)
		}
		return nil
	})
	if databases.IsForeignKeyViolation(err) {
		return nil, common.BadRequest("group references a template that does not exist")
	}
	if err != nil {
		return nil, common.Wrap(err, "update template group %d", id)
	}
	return c.GetGroup(ctx, id)
}

// DeleteGroup refuses groups still scheduled by a week plan
func (c *Catalog) DeleteGroup(ctx context.Context, id int64) error {
	err := databases.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		inUse, err := c.repo.GroupInUse(ctx, tx, id)
		if err != nil {
			return err
		}
		if inUse {
			return common.Conflict("template group %d is used by a week plan", id)
		}
		ok, err := c.repo.DeleteGroup(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return common.NotFound("template group %d not found", id)
		}
		return nil
	})
	return common.Wrap(err, "delete template group %d", id)
}

// Week plans

func validateWeekPlan(in WeekPlanInput) error {
	if err := validateName("week plan", in.Name); err != nil {
		return err
	}
	seen := make(map[int]bool, len(in.Slots))
	for _, s := range in.Slots {
		if s.DayOfWeek < 1 || s.DayOfWeek > 7 {
			return common.BadRequest("slot dayOfWeek %d out of range 1..7", s.DayOfWeek)
		}
		if seen[s.DayOfWeek] {
			return common.BadRequest("more than one slot for dayOfWeek %d", s.DayOfWeek)
		}
		seen[s.DayOfWeek] = true
		if s.TemplateID != nil && s.GroupID != nil {
			return common.BadRequest("slot for dayOfWeek %d has both templateId and groupId", s.DayOfWeek)
		}
	}
	return nil
}

func (c *Catalog) ListWeekPlans(ctx context.Context) ([]WeekPlan, error) {
	plans, err := c.repo.ListWeekPlans(ctx, c.db)
	return plans, common.Wrap(err, "list week plans")
}

func (c *Catalog) GetWeekPlan(ctx context.Context, id int64) (*WeekPlan, error) {
	p, err := c.repo.GetWeekPlan(ctx, c.db, id)
	if err != nil {
		return nil, common.Internal(err, "load week plan %d", id)
	}
	if p == nil {
		return nil, common.NotFound("week plan %d not found", id)
	}
	return p, nil
}

func (c *Catalog) CreateWeekPlan(ctx context.Context, in WeekPlanInput) (*WeekPlan, error) {
	if err := validateWeekPlan(in); err != nil {
		return nil, err
	}
	var id int64
	err := databases.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		var err error
		id, err = c.repo.CreateWeekPlan(ctx, tx, in)
		return err
	})
	if databases.IsForeignKeyViolation(err) {
		return nil, common.BadRequest("week plan references a template or group that does not exist")
	}
	if err != nil {
		return nil, common.Internal(err, "create week plan")
	}
	return c.GetWeekPlan(ctx, id)
}

func (c *Catalog) UpdateWeekPlan(ctx context.Context, id int64, in WeekPlanInput) (*WeekPlan, error) {
	if err := validateWeekPlan(in); err != nil {
		return nil, err
	}
	err := databases.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		ok, err := c.repo.UpdateWeekPlan(ctx, tx, id, in)
		if err != nil {
			return err
		}
		if !ok {
			return common.NotFound("week plan %d not found", id)
		}
		return nil
	})
	if databases.IsForeignKeyViolation(err) {
		return nil, common.BadRequest("week plan references a template or group that does not exist")
	}
	if err != nil {
		return nil, common.Wrap(err, "update week plan %d", id)
	}
	return c.GetWeekPlan(ctx, id)
}

func (c *Catalog) DeleteWeekPlan(ctx context.Context, id int64) error {
	ok, err := c.repo.DeleteWeekPlan(ctx, c.db, id)
	if err != nil {
		return common.Internal(err, "delete week plan %d", id)
	}
	if !ok {
		return common.NotFound("week plan %d not found", id)
	}
	return nil
}
