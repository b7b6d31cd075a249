package inventory

import (
	"net/http"
	"strconv"

	"canteen/internal/auth"
	"canteen/internal/v0/common"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
	logger  log.FieldLogger
}

func NewHandler(service *Service, logger log.FieldLogger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	common.RespondError(c, h.logger, err)
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		common.RespondBadRequest(c, common.BadRequest("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.service.ListProducts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, products)
}

func (h *Handler) PostProduct(c *gin.Context) {
	var in ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	p, err := h.service.CreateProduct(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, p)
}

type adjustRequest struct {
	QuantityChange decimal.Decimal `json:"quantityChange"`
	Reason         string          `json:"reason" binding:"max=255"`
}

func (h *Handler) AdjustStock(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	p, err := h.service.AdjustStock(c.Request.Context(), id, req.QuantityChange, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, p)
}

func (h *Handler) ListMovements(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	moves, err := h.service.ListMovements(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, moves)
}

// ListPurchaseRequests shows cooks their own requests and admins all of them
func (h *Handler) ListPurchaseRequests(c *gin.Context) {
	user := auth.GetUserFromContext(c)
	var createdBy int64
	if user.Role != auth.RoleAdmin {
		createdBy = user.ID
	}
	requests, err := h.service.ListPurchaseRequests(c.Request.Context(), createdBy, RequestStatus(c.Query("status")))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, requests)
}

type purchaseRequestBody struct {
	ProductID int64           `json:"productId" binding:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	Comment   string          `json:"comment" binding:"max=500"`
}

func (h *Handler) PostPurchaseRequest(c *gin.Context) {
	var req purchaseRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	pr, err := h.service.CreatePurchaseRequest(c.Request.Context(), auth.GetUserFromContext(c).ID, req.ProductID, req.Quantity, req.Comment)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, pr)
}

func (h *Handler) DeletePurchaseRequest(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.service.DeletePurchaseRequest(c.Request.Context(), auth.GetUserFromContext(c).ID, id); err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"id": id})
}

type decisionRequest struct {
	Status RequestStatus `json:"status" binding:"required,oneof=approved rejected"`
}

func (h *Handler) DecidePurchaseRequest(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	pr, err := h.service.DecidePurchaseRequest(c.Request.Context(), auth.GetUserFromContext(c).ID, id, req.Status == StatusApproved)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, pr)
}
