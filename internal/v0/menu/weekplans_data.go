package menu

import (
	"context"
	"database/sql"
	"errors"

	"canteen/internal/databases"
)

// GetWeekPlan loads a plan with its slots ordered by weekday, nil if missing
func (r *Repository) GetWeekPlan(ctx context.Context, q databases.Queryer, id int64) (*WeekPlan, error) {
	var p WeekPlan
	err := q.QueryRowContext(ctx, `SELECT id, name, created_at FROM week_plans WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadSlots(ctx, q, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) loadSlots(ctx context.Context, q databases.Queryer, p *WeekPlan) error {
	rows, err := q.QueryContext(ctx, `
		SELECT s.day_of_week, s.template_id, s.group_id, COALESCE(t.name, ''), COALESCE(g.name, '')
		FROM week_plan_slots s
		LEFT JOIN menu_templates t ON t.id = s.template_id
		LEFT JOIN template_groups g ON g.id = s.group_id
		WHERE s.week_plan_id = ?
		ORDER BY s.day_of_week`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	p.Slots = []WeekSlot{}
	for rows.Next() {
		var s WeekSlot
		if err := rows.Scan(&s.DayOfWeek, &s.TemplateID, &s.GroupID, &s.TemplateName, &s.GroupName); err != nil {
			return err
		}
		p.Slots = append(p.Slots, s)
	}
	return rows.Err()
}

func (r *Repository) ListWeekPlans(ctx context.Context, q databases.Queryer) ([]WeekPlan, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, created_at FROM week_plans ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	plans := []WeekPlan{}
	for rows.Next() {
		var p WeekPlan
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		plans = append(plans, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range plans {
		if err := r.loadSlots(ctx, q, &plans[i]); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

func (r *Repository) CreateWeekPlan(ctx context.Context, q databases.Queryer, in WeekPlanInput) (int64, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO week_plans (name) VALUES (?)`, in.Name)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, r.insertSlots(ctx, q, id, in.Slots)
}

// UpdateWeekPlan renames the plan and, when slots is non-nil, replaces them
func (r *Repository) UpdateWeekPlan(ctx context.Context, q databases.Queryer, id int64, in WeekPlanInput) (bool, error) {
	res, err := q.ExecContext(ctx, `UPDATE week_plans SET name = ? WHERE id = ?`, in.Name, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return false, err
	}
	if in.Slots == nil {
		return true, nil
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM week_plan_slots WHERE week_plan_id = ?`, id); err != nil {
		return false, err
	}
	return true, r.insertSlots(ctx, q, id, in.Slots)
}

func (r *Repository) insertSlots(ctx context.Context, q databases.Queryer, planID int64, slots []WeekSlot) error {
	for _, s := range slots {
		_, err := q.ExecContext(ctx, `
			INSERT INTO week_plan_slots (week_plan_id, day_of_week, template_id, group_id)
			VALUES (?, ?, ?, ?)`, planID, s.DayOfWeek, s.TemplateID, s.GroupID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) DeleteWeekPlan(ctx context.Context, q databases.Queryer, id int64) (bool, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM week_plans WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
