package menu

import (
	"net/http"

	"canteen/internal/v0/common"

	"github.com/gin-gonic/gin"
)

type templateRequest struct {
	Name  string      `json:"name"`
	Tags  []string    `json:"tags"`
	Items []ItemInput `json:"items"`
}

func (h *Handler) ListTemplates(c *gin.Context) {
	templates, err := h.catalog.ListTemplates(c.Request.Context(), c.Query("tag"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, templates)
}

func (h *Handler) GetTemplate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	tpl, err := h.catalog.GetTemplate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, tpl)
}

func (h *Handler) PostTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	tpl, err := h.catalog.CreateTemplate(c.Request.Context(), req.Name, req.Tags, req.Items)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, tpl)
}

func (h *Handler) PutTemplate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	tpl, err := h.catalog.UpdateTemplate(c.Request.Context(), id, req.Name, req.Tags)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, tpl)
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteTemplate(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"id": id})
}

func (h *Handler) PostTemplateItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	item, err := h.catalog.AddTemplateItem(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, item)
}

func (h *Handler) PutTemplateItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}
	var in ItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	item, err := h.catalog.UpdateTemplateItem(c.Request.Context(), id, itemID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, item)
}

func (h *Handler) DeleteTemplateItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}
	if err := h.catalog.DeleteTemplateItem(c.Request.Context(), id, itemID); err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"id": itemID})
}

// Groups

type groupResponse struct {
	*TemplateGroup
	Stats *ShuffleStats `json:"stats"`
}

func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.catalog.ListGroups(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, groups)
}

func (h *Handler) GetGroup(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	g, err := h.catalog.GetGroup(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	stats, err := h.engine.GetShuffleStats(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, groupResponse{TemplateGroup: g, Stats: stats})
}

func (h *Handler) GetGroupStats(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	stats, err := h.engine.GetShuffleStats(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, stats)
}

func (h *Handler) PostGroup(c *gin.Context) {
	var in GroupInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	g, err := h.catalog.CreateGroup(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, g)
}

func (h *Handler) PutGroup(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in GroupInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	g, err := h.catalog.UpdateGroup(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, g)
}

func (h *Handler) DeleteGroup(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteGroup(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"id": id})
}

// Week plans

func (h *Handler) ListWeekPlans(c *gin.Context) {
	plans, err := h.catalog.ListWeekPlans(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, plans)
}

func (h *Handler) GetWeekPlan(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.catalog.GetWeekPlan(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, p)
}

func (h *Handler) PostWeekPlan(c *gin.Context) {
	var in WeekPlanInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	p, err := h.catalog.CreateWeekPlan(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, p)
}

func (h *Handler) PutWeekPlan(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in WeekPlanInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	p, err := h.catalog.UpdateWeekPlan(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, p)
}

func (h *Handler) DeleteWeekPlan(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteWeekPlan(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"id": id})
}
