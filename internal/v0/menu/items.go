package menu

import (
	"context"
	"database/sql"

	"canteen/internal/calendar"
	"canteen/internal/databases"
	"canteen/internal/v0/common"

	log "github.com/sirupsen/logrus"
)

// AddItem appends one item to the menu of date, creating the day if needed.
// Unlike SetDayItems it leaves the existing items and their pickups alone.
func (e *Engine) AddItem(ctx context.Context, date calendar.Date, in ItemInput) (*DayItem, error) {
	if err := validateItem(in); err != nil {
		return nil, err
	}
	var item *DayItem
	err := databases.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		dayID, err := e.repo.findMenuDayID(ctx, tx, date)
		if err != nil {
			return err
		}
		if dayID == 0 {
			if dayID, err = e.repo.createMenuDay(ctx, tx, date); err != nil {
				return err
			}
		}
		id, err := e.repo.insertMenuItem(ctx, tx, dayID, in)
		if err != nil {
			return err
		}
		item, err = e.repo.GetMenuItem(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, common.Wrap(err, "add item to menu of %s", date)
	}

	e.logger.WithFields(log.Fields{"date": date.String(), "menu_item_id": item.ID}).Info("menu item added")
	return item, nil
}

// UpdateItem edits an item in place. Once students have picked it up its
// price and meal type are fixed, since both were used to charge them.
func (e *Engine) UpdateItem(ctx context.Context, id int64, in ItemInput) (*DayItem, error) {
	if err := validateItem(in); err != nil {
		return nil, err
	}
	var item *DayItem
	err := databases.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		cur, err := e.repo.GetMenuItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return common.NotFound("menu item %d not found", id)
		}
		if !cur.Price.Equal(in.Price) || cur.MealSlot != in.MealSlot {
			picked, err := e.repo.itemHasPickups(ctx, tx, id)
			if err != nil {
				return err
			}
			if picked {
				return common.Conflict("menu item %d has meal pickups, its price and meal type cannot change", id)
			}
		}
		if err := e.repo.updateMenuItem(ctx, tx, id, in); err != nil {
			return err
		}
		item, err = e.repo.GetMenuItem(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, common.Wrap(err, "update menu item %d", id)
	}
	return item, nil
}

// DeleteItem removes an item nobody has picked up yet
func (e *Engine) DeleteItem(ctx context.Context, id int64) error {
	err := databases.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		cur, err := e.repo.GetMenuItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur == nil {
			return common.NotFound("menu item %d not found", id)
		}
		picked, err := e.repo.itemHasPickups(ctx, tx, id)
		if err != nil {
			return err
		}
		if picked {
			return common.Conflict("menu item %d has meal pickups and cannot be deleted", id)
		}
		return e.repo.deleteMenuItem(ctx, tx, id)
	})
	if err != nil {
		return common.Wrap(err, "delete menu item %d", id)
	}
	e.logger.WithField("menu_item_id", id).Info("menu item deleted")
	return nil
}
