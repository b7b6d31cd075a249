package menu

import (
	"context"
	"database/sql"
	"errors"

	"canteen/internal/calendar"
	"canteen/internal/databases"
)

// GetGroup loads a group and its member templates, nil if missing
func (r *Repository) GetGroup(ctx context.Context, q databases.Queryer, id int64) (*TemplateGroup, error) {
	var g TemplateGroup
	err := q.QueryRowContext(ctx, `
		SELECT id, name, day_of_week, created_at
		FROM template_groups WHERE id = ?`, id,
	).Scan(&g.ID, &g.Name, &g.DayOfWeek, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadGroupTemplates(ctx, q, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *Repository) loadGroupTemplates(ctx context.Context, q databases.Queryer, g *TemplateGroup) error {
	rows, err := q.QueryContext(ctx, `
		SELECT t.id, t.name
		FROM template_group_items gi
		JOIN menu_templates t ON t.id = gi.template_id
		WHERE gi.group_id = ?
		ORDER BY t.id`, g.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	g.TemplateIDs = []int64{}
	g.Templates = []TemplateRef{}
	for rows.Next() {
		var ref TemplateRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return err
		}
		g.TemplateIDs = append(g.TemplateIDs, ref.ID)
		g.Templates = append(g.Templates, ref)
	}
	return rows.Err()
}

func (r *Repository) ListGroups(ctx context.Context, q databases.Queryer) ([]TemplateGroup, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, day_of_week, created_at FROM template_groups ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	groups := []TemplateGroup{}
	for rows.Next() {
		var g TemplateGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.DayOfWeek, &g.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		if err := r.loadGroupTemplates(ctx, q, &groups[i]); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (r *Repository) CreateGroup(ctx context.Context, q databases.Queryer, in GroupInput) (int64, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO template_groups (name, day_of_week) VALUES (?, ?)`, in.Name, in.DayOfWeek)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, r.setGroupTemplates(ctx, q, id, in.TemplateIDs)
}

// UpdateGroup rewrites the group and its member set. Ledger rows for
// templates that left the group are pruned so the ledger stays a subset
// of the members.
func (r *Repository) UpdateGroup(ctx context.Context, q databases.Queryer, id int64, in GroupInput) (bool, error) {
	res, err := q.ExecContext(ctx, `UPDATE template_groups SET name = ?, day_of_week = ? WHERE id = ?`, in.Name, in.DayOfWeek, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, err
	}
	if in.TemplateIDs == nil {
		return true, nil
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM template_group_items WHERE group_id = ?`, id); err != nil {
		return false, err
	}
	if err := r.setGroupTemplates(ctx, q, id, in.TemplateIDs); err != nil {
		return false, err
	}
	_, err = q.ExecContext(ctx, `
		DELETE FROM shuffle_usages
		WHERE group_id = ?
		  AND template_id NOT IN (SELECT template_id FROM template_group_items WHERE group_id = ?)`, id, id)
	return err == nil, err
}

func (r *Repository) setGroupTemplates(ctx context.Context, q databases.Queryer, groupID int64, templateIDs []int64) error {
	for _, tid := range templateIDs {
		_, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO template_group_items (group_id, template_id) VALUES (?, ?)`, groupID, tid)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) DeleteGroup(ctx context.Context, q databases.Queryer, id int64) (bool, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM template_groups WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GroupInUse reports whether a week plan slot points at the group
func (r *Repository) GroupInUse(ctx context.Context, q databases.Queryer, id int64) (bool, error) {
	var used bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM week_plan_slots WHERE group_id = ?)`, id).Scan(&used)
	return used, err
}

// UsedTemplateIDs returns the distinct templates recorded in the group's
// ledger since its last reset
func (r *Repository) UsedTemplateIDs(ctx context.Context, q databases.Queryer, groupID int64) (map[int64]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT template_id FROM shuffle_usages WHERE group_id = ?`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	used := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		used[id] = true
	}
	return used, rows.Err()
}

// ResetUsages starts a new shuffle cycle for the group
func (r *Repository) ResetUsages(ctx context.Context, q databases.Queryer, groupID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM shuffle_usages WHERE group_id = ?`, groupID)
	return err
}

func (r *Repository) RecordUsage(ctx context.Context, q databases.Queryer, groupID, templateID int64, date calendar.Date) error {
	_, err := q.ExecContext(ctx, `INSERT INTO shuffle_usages (group_id, template_id, used_date) VALUES (?, ?, ?)`, groupID, templateID, date)
	return err
}

// RecentUsages lists the latest ledger entries of the group, newest first
func (r *Repository) RecentUsages(ctx context.Context, q databases.Queryer, groupID int64, limit int) ([]ShuffleUsage, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT u.template_id, t.name, u.used_date, u.created_at
		FROM shuffle_usages u
		JOIN menu_templates t ON t.id = u.template_id
		WHERE u.group_id = ?
		ORDER BY u.used_date DESC, u.id DESC
		LIMIT ?`, groupID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usages := []ShuffleUsage{}
	for rows.Next() {
		var u ShuffleUsage
		if err := rows.Scan(&u.TemplateID, &u.TemplateName, &u.UsedDate, &u.CreatedAt); err != nil {
			return nil, err
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}
