package menu

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"canteen/internal/databases"
)

const templateItemColumns = `id, template_id, name, COALESCE(description, ''), price, meal_slot, COALESCE(allergens, ''), calories`

func scanTemplateItem(s scanner) (TemplateItem, error) {
	var it TemplateItem
	err := s.Scan(&it.ID, &it.TemplateID, &it.Name, &it.Description, &it.Price, &it.MealSlot, &it.Allergens, &it.Calories)
	return it, err
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	return string(b), err
}

func decodeTags(raw string) ([]string, error) {
	tags := []string{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("decode tags %q: %w", raw, err)
	}
	return tags, nil
}

// GetTemplate loads a template with its items in order, nil if missing
func (r *Repository) GetTemplate(ctx context.Context, q databases.Queryer, id int64) (*Template, error) {
	var t Template
	var tags string
	err := q.QueryRowContext(ctx, `
		SELECT id, name, tags, created_at, updated_at
		FROM menu_templates WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &tags, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `SELECT `+templateItemColumns+` FROM menu_template_items WHERE template_id = ? ORDER BY position, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t.Items = []TemplateItem{}
	for rows.Next() {
		it, err := scanTemplateItem(rows)
		if err != nil {
			return nil, err
		}
		t.Items = append(t.Items, it)
	}
	return &t, rows.Err()
}

// ListTemplates returns every template without items, optionally filtered by tag
func (r *Repository) ListTemplates(ctx context.Context, q databases.Queryer, tag string) ([]Template, error) {
	query := `SELECT id, name, tags, created_at, updated_at FROM menu_templates`
	var args []any
	if tag != "" {
		query += ` WHERE EXISTS (SELECT 1 FROM json_each(menu_templates.tags) WHERE json_each.value = ?)`
		args = append(args, tag)
	}
	query += ` ORDER BY name, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []Template{}
	for rows.Next() {
		var t Template
		var tags string
		if err := rows.Scan(&t.ID, &t.Name, &tags, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if t.Tags, err = decodeTags(tags); err != nil {
			return nil, err
		}
		t.Items = []TemplateItem{}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *Repository) CreateTemplate(ctx context.Context, q databases.Queryer, name string, tags []string) (int64, error) {
	encoded, err := encodeTags(tags)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, `INSERT INTO menu_templates (name, tags) VALUES (?, ?)`, name, encoded)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) UpdateTemplate(ctx context.Context, q databases.Queryer, id int64, name string, tags []string) (bool, error) {
	encoded, err := encodeTags(tags)
	if err != nil {
		return false, err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE menu_templates SET name = ?, tags = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, name, encoded, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repository) DeleteTemplate(ctx context.Context, q databases.Queryer, id int64) (bool, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM menu_templates WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TemplateInUse reports whether a group or a week plan slot points at the template
func (r *Repository) TemplateInUse(ctx context.Context, q databases.Queryer, id int64) (bool, error) {
	var used bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM template_group_items WHERE template_id = ?)
		    OR EXISTS (SELECT 1 FROM week_plan_slots WHERE template_id = ?)`, id, id,
	).Scan(&used)
	return used, err
}

func (r *Repository) AddTemplateItem(ctx context.Context, q databases.Queryer, templateID int64, in ItemInput) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO menu_template_items (template_id, position, name, description, price, meal_slot, allergens, calories)
		VALUES (?, (SELECT COALESCE(MAX(position) + 1, 0) FROM menu_template_items WHERE template_id = ?), ?, ?, ?, ?, ?, ?)`,
		templateID, templateID, in.Name, in.Description, in.Price, in.MealSlot, in.Allergens, in.Calories,
	)
	if err != nil {
		return 0, err
	}
	if err := r.touchTemplate(ctx, q, templateID); err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) GetTemplateItem(ctx context.Context, q databases.Queryer, templateID, itemID int64) (*TemplateItem, error) {
	it, err := scanTemplateItem(q.QueryRowContext(ctx, `
		SELECT `+templateItemColumns+` FROM menu_template_items
		WHERE id = ? AND template_id = ?`, itemID, templateID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *Repository) UpdateTemplateItem(ctx context.Context, q databases.Queryer, templateID, itemID int64, in ItemInput) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE menu_template_items
		SET name = ?, description = ?, price = ?, meal_slot = ?, allergens = ?, calories = ?
		WHERE id = ? AND template_id = ?`,
		in.Name, in.Description, in.Price, in.MealSlot, in.Allergens, in.Calories, itemID, templateID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, err
	}
	return true, r.touchTemplate(ctx, q, templateID)
}

func (r *Repository) DeleteTemplateItem(ctx context.Context, q databases.Queryer, templateID, itemID int64) (bool, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM menu_template_items WHERE id = ? AND template_id = ?`, itemID, templateID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, err
	}
	return true, r.touchTemplate(ctx, q, templateID)
}

func (r *Repository) touchTemplate(ctx context.Context, q databases.Queryer, id int64) error {
	_, err := q.ExecContext(ctx, `UPDATE menu_templates SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}
