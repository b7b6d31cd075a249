package menu

import (
	"net/http"
	"strconv"

	"canteen/internal/calendar"
	"canteen/internal/v0/common"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Handler holds the menu engine and catalog behind the HTTP routes
type Handler struct {
	engine  *Engine
	catalog *Catalog
	repo    *Repository
	clock   *calendar.Clock
	logger  log.FieldLogger
}

func NewHandler(engine *Engine, catalog *Catalog, repo *Repository, clock *calendar.Clock, logger log.FieldLogger) *Handler {
	return &Handler{engine: engine, catalog: catalog, repo: repo, clock: clock, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	common.RespondError(c, h.logger, err)
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		common.RespondBadRequest(c, common.BadRequest("%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

// Applications overwrite by default, matching what the admin UI expects
func overwriteOrDefault(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

// Menu days

func (h *Handler) ListDays(c *gin.Context) {
	monday := h.clock.Today().Monday()
	from, to := monday, monday.AddDays(6)

	if s := c.Query("from"); s != "" {
		d, err := calendar.Parse(s)
		if err != nil {
			common.RespondBadRequest(c, err)
			return
		}
		from = d
	}
	if s := c.Query("to"); s != "" {
		d, err := calendar.Parse(s)
		if err != nil {
			common.RespondBadRequest(c, err)
			return
		}
		to = d
	}
	if from.After(to) {
		common.RespondBadRequest(c, common.BadRequest("from must not be after to"))
		return
	}

	days, err := h.repo.ListMenuDays(c.Request.Context(), h.repo.DB(), from, to)
	if err != nil {
		h.fail(c, common.Internal(err, "list menu days"))
		return
	}
	common.Respond(c, http.StatusOK, days)
}

func (h *Handler) GetDay(c *gin.Context) {
	date, err := calendar.Parse(c.Param("date"))
	if err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	day, err := h.repo.GetMenuDay(c.Request.Context(), h.repo.DB(), date)
	if err != nil {
		h.fail(c, common.Internal(err, "load menu day %s", date))
		return
	}
	if day == nil {
		h.fail(c, common.NotFound("no menu for %s", date))
		return
	}
	common.Respond(c, http.StatusOK, day)
}

type setDayRequest struct {
	Date      calendar.Date `json:"date"`
	Items     []ItemInput   `json:"items"`
	Overwrite *bool         `json:"overwrite"`
}

func (h *Handler) PostDay(c *gin.Context) {
	var req setDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	if req.Date.IsZero() {
		common.RespondBadRequest(c, common.BadRequest("date is required"))
		return
	}
	day, err := h.engine.SetDayItems(c.Request.Context(), req.Date, req.Items, overwriteOrDefault(req.Overwrite))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, day)
}

type availabilityRequest struct {
	IsAvailable *bool `json:"isAvailable" binding:"required"`
}

func (h *Handler) PatchItemAvailability(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	found, err := h.repo.SetItemAvailability(c.Request.Context(), h.repo.DB(), id, *req.IsAvailable)
	if err != nil {
		h.fail(c, common.Internal(err, "update menu item %d", id))
		return
	}
	if !found {
		h.fail(c, common.NotFound("menu item %d not found", id))
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"id": id, "isAvailable": *req.IsAvailable})
}

// PostItem handles POST /menu/days/:date/items
func (h *Handler) PostItem(c *gin.Context) {
	date, err := calendar.Parse(c.Param("date"))
	if err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	var in ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	item, err := h.engine.AddItem(c.Request.Context(), date, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, item)
}

func (h *Handler) PutItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	item, err := h.engine.UpdateItem(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, item)
}

func (h *Handler) DeleteItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.engine.DeleteItem(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"id": id})
}

// Applications

type applyDayRequest struct {
	TemplateID int64         `json:"templateId" binding:"required,gt=0"`
	Date       calendar.Date `json:"date"`
	Overwrite  *bool         `json:"overwrite"`
}

func (h *Handler) ApplyDay(c *gin.Context) {
	var req applyDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	if req.Date.IsZero() {
		common.RespondBadRequest(c, common.BadRequest("date is required"))
		return
	}
	day, err := h.engine.ApplyTemplateToDate(c.Request.Context(), req.TemplateID, req.Date, overwriteOrDefault(req.Overwrite))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, day)
}

type applyShuffleRequest struct {
	GroupID   int64         `json:"groupId" binding:"required,gt=0"`
	Date      calendar.Date `json:"date"`
	Overwrite *bool         `json:"overwrite"`
}

func (h *Handler) ApplyShuffle(c *gin.Context) {
	var req applyShuffleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	if req.Date.IsZero() {
		common.RespondBadRequest(c, common.BadRequest("date is required"))
		return
	}
	res, err := h.engine.ApplyShuffleToDate(c.Request.Context(), req.GroupID, req.Date, overwriteOrDefault(req.Overwrite))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, res)
}

type applyWeekRequest struct {
	WeekPlanID int64         `json:"weekPlanId" binding:"required,gt=0"`
	StartDate  calendar.Date `json:"startDate"`
	Overwrite  *bool         `json:"overwrite"`
}

type batchResponse struct {
	Results   []DateResult `json:"results"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

func newBatchResponse(results []DateResult) batchResponse {
	resp := batchResponse{Results: results, Total: len(results)}
	for _, r := range results {
		if r.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return resp
}

func (h *Handler) ApplyWeek(c *gin.Context) {
	var req applyWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	if req.StartDate.IsZero() {
		common.RespondBadRequest(c, common.BadRequest("startDate is required"))
		return
	}
	results, err := h.engine.ApplyWeekPlan(c.Request.Context(), req.WeekPlanID, req.StartDate, overwriteOrDefault(req.Overwrite))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, newBatchResponse(results))
}

type applyBulkRequest struct {
	Mode       BulkMode `json:"mode"`
	TemplateID int64    `json:"templateId"`
	GroupID    int64    `json:"groupId"`
	Target     Target   `json:"target"`
	Overwrite  *bool    `json:"overwrite"`
}

func (h *Handler) ApplyBulk(c *gin.Context) {
	var req applyBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	results, err := h.engine.BulkApply(c.Request.Context(), BulkRequest{
		Mode:       req.Mode,
		TemplateID: req.TemplateID,
		GroupID:    req.GroupID,
		Target:     req.Target,
		Overwrite:  overwriteOrDefault(req.Overwrite),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, newBatchResponse(results))
}

//This project is the canteen backend API for the OpenSourceDUTH team. Menu scheduling, meal pickup and kitchen inventory for the school canteen.
//API Copyright (C) 2025 OpenSourceDUTH
//This program is free software: you can redistribute it and/or modify
//it under the terms of the GNU General Public License as published by
//the Free Software Foundation, either version 3 of the License, or
//(at your option) any later version.
//
//This program is distributed in the hope that it will be useful,
//but WITHOUT ANY WARRANTY; without even the implied warranty of
//MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//GNU General Public License for more details.
//
//You should have received a copy of the GNU General Public License
//along with this program.  If not, see <https://www.gnu.org/licenses/>.
