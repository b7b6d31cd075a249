package meals

import (
	"context"
	"database/sql"
	"errors"

	"canteen/internal/calendar"
	"canteen/internal/databases"
)

// profileTable names one of the per-student name lists. Both tables share
// the same shape and uniqueness rule.
type profileTable struct {
	table  string
	column string
}

var (
	allergyTable    = profileTable{table: "student_allergies", column: "allergen_name"}
	preferenceTable = profileTable{table: "food_preferences", column: "preference_name"}
)

func (t profileTable) columns() string {
	return `id, student_id, ` + t.column + `, created_at`
}

func scanProfileEntry(s scanner) (ProfileEntry, error) {
	var e ProfileEntry
	err := s.Scan(&e.ID, &e.StudentID, &e.Name, &e.CreatedAt)
	return e, err
}

func (r *Repository) listProfile(ctx context.Context, q databases.Queryer, t profileTable, studentID int64) ([]ProfileEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+t.columns()+` FROM `+t.table+`
		WHERE student_id = ? ORDER BY `+t.column, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []ProfileEntry{}
	for rows.Next() {
		e, err := scanProfileEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) insertProfile(ctx context.Context, q databases.Queryer, t profileTable, studentID int64, name string) (*ProfileEntry, error) {
	res, err := q.ExecContext(ctx, `INSERT INTO `+t.table+` (student_id, `+t.column+`) VALUES (?, ?)`, studentID, name)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	e, err := scanProfileEntry(q.QueryRowContext(ctx, `SELECT `+t.columns()+` FROM `+t.table+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// deleteProfile removes one entry of the student, false when the student
// has no entry with that id
func (r *Repository) deleteProfile(ctx context.Context, q databases.Queryer, t profileTable, studentID, id int64) (bool, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM `+t.table+` WHERE id = ? AND student_id = ?`, id, studentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// pickupStudents describes every student with a pickup on date, allergies
// and preferences included
func (r *Repository) pickupStudents(ctx context.Context, q databases.Queryer, date calendar.Date) (map[int64]*PickupStudent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT u.id, u.display_name
		FROM meal_pickups p JOIN users u ON u.id = p.student_id
		WHERE p.pickup_date = ?`, date)
	if err != nil {
		return nil, err
	}
	students := map[int64]*PickupStudent{}
	for rows.Next() {
		s := &PickupStudent{Allergies: []string{}, Preferences: []string{}}
		if err := rows.Scan(&s.ID, &s.DisplayName); err != nil {
			rows.Close()
			return nil, err
		}
		students[s.ID] = s
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range []profileTable{allergyTable, preferenceTable} {
		rows, err := q.QueryContext(ctx, `
			SELECT student_id, `+t.column+` FROM `+t.table+`
			WHERE student_id IN (SELECT student_id FROM meal_pickups WHERE pickup_date = ?)
			ORDER BY `+t.column, date)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var (
				id   int64
				name string
			)
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return nil, err
			}
			s, ok := students[id]
			if !ok {
				continue
			}
			if t == allergyTable {
				s.Allergies = append(s.Allergies, name)
			} else {
				s.Preferences = append(s.Preferences, name)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return students, nil
}

// Reviews

const reviewColumns = `r.id, r.student_id, r.menu_item_id, r.rating, r.comment, r.created_at, r.updated_at,
	u.display_name, i.name, i.price`

const reviewFrom = ` FROM menu_item_reviews r
	JOIN users u ON u.id = r.student_id
	JOIN menu_items i ON i.id = r.menu_item_id`

func scanReview(s scanner) (Review, error) {
	var (
		rv   Review
		item PickupItem
	)
	err := s.Scan(&rv.ID, &rv.StudentID, &rv.MenuItemID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt,
		&rv.Author, &item.Name, &item.Price)
	if err != nil {
		return rv, err
	}
	item.ID = rv.MenuItemID
	rv.Item = &item
	return rv, nil
}

func collectReviews(rows *sql.Rows) ([]Review, error) {
	defer rows.Close()
	reviews := []Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}

// GetReview loads one review, nil if missing
func (r *Repository) GetReview(ctx context.Context, q databases.Queryer, id int64) (*Review, error) {
	rv, err := scanReview(q.QueryRowContext(ctx, `SELECT `+reviewColumns+reviewFrom+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

// findReviewID returns the student's review of the item, 0 if there is none
func (r *Repository) findReviewID(ctx context.Context, q databases.Queryer, studentID, menuItemID int64) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		SELECT id FROM menu_item_reviews WHERE student_id = ? AND menu_item_id = ?`, studentID, menuItemID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

func (r *Repository) insertReview(ctx context.Context, q databases.Queryer, studentID int64, in ReviewInput) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO menu_item_reviews (student_id, menu_item_id, rating, comment)
		VALUES (?, ?, ?, ?)`, studentID, in.MenuItemID, in.Rating, in.Comment)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) updateReview(ctx context.Context, q databases.Queryer, id int64, in ReviewInput) error {
	_, err := q.ExecContext(ctx, `
		UPDATE menu_item_reviews SET rating = ?, comment = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, in.Rating, in.Comment, id)
	return err
}

func (r *Repository) deleteReview(ctx context.Context, q databases.Queryer, studentID, id int64) (bool, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM menu_item_reviews WHERE id = ? AND student_id = ?`, id, studentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListStudentReviews returns the student's reviews, newest first
func (r *Repository) ListStudentReviews(ctx context.Context, q databases.Queryer, studentID int64) ([]Review, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+reviewColumns+reviewFrom+`
		WHERE r.student_id = ? ORDER BY r.created_at DESC, r.id DESC`, studentID)
	if err != nil {
		return nil, err
	}
	return collectReviews(rows)
}

// ListItemReviews returns every review of the item, newest first
func (r *Repository) ListItemReviews(ctx context.Context, q databases.Queryer, menuItemID int64) ([]Review, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+reviewColumns+reviewFrom+`
		WHERE r.menu_item_id = ? ORDER BY r.created_at DESC, r.id DESC`, menuItemID)
	if err != nil {
		return nil, err
	}
	return collectReviews(rows)
}

// hasReceivedPickup reports whether the student was handed the item
func (r *Repository) hasReceivedPickup(ctx context.Context, q databases.Queryer, studentID, menuItemID int64) (bool, error) {
	var ok bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM meal_pickups
		WHERE student_id = ? AND menu_item_id = ? AND is_received = 1)`, studentID, menuItemID,
	).Scan(&ok)
	return ok, err
}
