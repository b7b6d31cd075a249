package meals

import (
	"context"
	"database/sql"
	"net/http"
	"unicode/utf8"

	"canteen/internal/databases"
	"canteen/internal/v0/common"
	"canteen/internal/v0/menu"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const maxCommentLength = 1000

// Reviews lets students rate the dishes they were actually handed
type Reviews struct {
	repo   *Repository
	menus  *menu.Repository
	logger log.FieldLogger
}

func NewReviews(repo *Repository, menus *menu.Repository, logger log.FieldLogger) *Reviews {
	return &Reviews{repo: repo, menus: menus, logger: logger.WithField("component", "reviews")}
}

func validateReview(in ReviewInput) error {
	if in.MenuItemID <= 0 {
		return common.BadRequest("menuItemId must be a positive integer")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return common.BadRequest("rating must be between 1 and 5")
	}
	if utf8.RuneCountInString(in.Comment) > maxCommentLength {
		return common.BadRequest("comment must be at most %d characters", maxCommentLength)
	}
	return nil
}

// Submit stores the student's review of a menu item. A second review of the
// same item replaces the first; status tells the two apart.
func (s *Reviews) Submit(ctx context.Context, studentID int64, in ReviewInput) (review *Review, status int, err error) {
	if err := validateReview(in); err != nil {
		return nil, 0, err
	}
	status = http.StatusCreated
	err = databases.WithTx(ctx, s.repo.DB(), func(tx *sql.Tx) error {
		item, err := s.menus.GetMenuItem(ctx, tx, in.MenuItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return common.NotFound("menu item %d not found", in.MenuItemID)
		}
		received, err := s.repo.hasReceivedPickup(ctx, tx, studentID, in.MenuItemID)
		if err != nil {
			return err
		}
		if !received {
			return common.BadRequest("menu item %d can only be reviewed after it was received", in.MenuItemID)
		}

		id, err := s.repo.findReviewID(ctx, tx, studentID, in.MenuItemID)
		if err != nil {
			return err
		}
		if id != 0 {
			status = http.StatusOK
			err = s.repo.updateReview(ctx, tx, id, in)
		} else {
			id, err = s.repo.insertReview(ctx, tx, studentID, in)
		}
		if err != nil {
			return err
		}
		review, err = s.repo.GetReview(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, 0, common.Wrap(err, "review menu item %d by student %d", in.MenuItemID, studentID)
	}

	s.logger.WithFields(log.Fields{
		"student_id":   studentID,
		"menu_item_id": in.MenuItemID,
		"rating":       in.Rating,
	}).Info("menu item reviewed")
	return review, status, nil
}

func (s *Reviews) ListMine(ctx context.Context, studentID int64) ([]Review, error) {
	reviews, err := s.repo.ListStudentReviews(ctx, s.repo.DB(), studentID)
	return reviews, common.Wrap(err, "list reviews of student %d", studentID)
}

// Delete removes one of the student's own reviews
func (s *Reviews) Delete(ctx context.Context, studentID, id int64) error {
	ok, err := s.repo.deleteReview(ctx, s.repo.DB(), studentID, id)
	if err != nil {
		return common.Internal(err, "delete review %d", id)
	}
	if !ok {
		return common.NotFound("review %d not found", id)
	}
	return nil
}

// ForItem collects the reviews of a menu item with their average rating,
// rounded to one decimal and nil while there are none
func (s *Reviews) ForItem(ctx context.Context, menuItemID int64) (*ItemReviews, error) {
	item, err := s.menus.GetMenuItem(ctx, s.repo.DB(), menuItemID)
	if err != nil {
		return nil, common.Internal(err, "load menu item %d", menuItemID)
	}
	if item == nil {
		return nil, common.NotFound("menu item %d not found", menuItemID)
	}
	reviews, err := s.repo.ListItemReviews(ctx, s.repo.DB(), menuItemID)
	if err != nil {
		return nil, common.Internal(err, "list reviews of menu item %d", menuItemID)
	}

	out := &ItemReviews{MenuItem: item, Reviews: reviews, ReviewsCount: len(reviews)}
	if len(reviews) > 0 {
		sum := 0
		for _, rv := range reviews {
			sum += rv.Rating
		}
		avg := decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(reviews)))).Round(1)
		out.AvgRating = &avg
	}
	return out, nil
}
