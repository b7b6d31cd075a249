package meals

import (
	"net/http"
	"strconv"

	"canteen/internal/auth"
	"canteen/internal/calendar"
	"canteen/internal/v0/common"
	"canteen/internal/v0/menu"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	engine  *Engine
	ledger  *Ledger
	subs    *Subscriptions
	profile *Profile
	reviews *Reviews
	logger  log.FieldLogger
}

func NewHandler(engine *Engine, ledger *Ledger, subs *Subscriptions, profile *Profile, reviews *Reviews, logger log.FieldLogger) *Handler {
	return &Handler{engine: engine, ledger: ledger, subs: subs, profile: profile, reviews: reviews, logger: logger}
}

func (h *Handler) fail(c *gin.Context, err error) {
	common.RespondError(c, h.logger, err)
}

// studentID is set by RequireToken, which always runs before these handlers
func studentID(c *gin.Context) int64 {
	return c.GetInt64(auth.ContextKeyUserID)
}

func pageFromQuery(c *gin.Context) Pagination {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return NewPagination(page, limit)
}

type listResponse[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// GetBalance handles GET /student/balance
func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.ledger.Balance(c.Request.Context(), studentID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"balance": balance})
}

type topUpRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" binding:"max=500"`
}

// PostPayment handles POST /student/payments
func (h *Handler) PostPayment(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	result, err := h.ledger.TopUp(c.Request.Context(), studentID(c), req.Amount, req.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, result)
}

func (h *Handler) ListPayments(c *gin.Context) {
	payments, page, err := h.ledger.ListPayments(c.Request.Context(), studentID(c), pageFromQuery(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, listResponse[Payment]{Items: payments, Pagination: page})
}

type subscriptionRequest struct {
	Type SubscriptionType `json:"type" binding:"required"`
	Days int              `json:"days" binding:"required"`
}

func (h *Handler) PostSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	result, err := h.subs.Purchase(c.Request.Context(), studentID(c), req.Type, req.Days)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, result)
}

func (h *Handler) ListSubscriptions(c *gin.Context) {
	subs, err := h.subs.List(c.Request.Context(), studentID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, subs)
}

type pickupRequest struct {
	MenuItemID int64 `json:"menuItemId" binding:"required,gt=0"`
}

// PostPickup handles POST /student/meals/pickup
func (h *Handler) PostPickup(c *gin.Context) {
	var req pickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	result, err := h.engine.PickupMeal(c.Request.Context(), studentID(c), req.MenuItemID)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, result)
}

func (h *Handler) ListMeals(c *gin.Context) {
	var date *calendar.Date
	if s := c.Query("date"); s != "" {
		d, err := calendar.Parse(s)
		if err != nil {
			common.RespondBadRequest(c, err)
			return
		}
		date = &d
	}
	pickups, page, err := h.engine.ListPickups(c.Request.Context(), studentID(c), date, pageFromQuery(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, listResponse[MealPickup]{Items: pickups, Pagination: page})
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		common.RespondBadRequest(c, common.BadRequest("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *Handler) ConfirmMeal(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	pickup, err := h.engine.ConfirmReceived(c.Request.Context(), studentID(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, pickup)
}

// TodayMeals handles GET /kitchen/meals/today for cooks
func (h *Handler) TodayMeals(c *gin.Context) {
	slot := menu.MealSlot(c.Query("mealType"))
	if slot != "" && !slot.Valid() {
		common.RespondBadRequest(c, common.BadRequest("mealType must be breakfast or lunch"))
		return
	}
	pickups, stats, err := h.engine.TodayPickups(c.Request.Context(), slot)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"meals": pickups, "stats": stats})
}

// Allergies and food preferences

type allergyRequest struct {
	Name string `json:"allergenName" binding:"required"`
}

type preferenceRequest struct {
	Name string `json:"preferenceName" binding:"required"`
}

func (h *Handler) ListAllergies(c *gin.Context) {
	entries, err := h.profile.ListAllergies(c.Request.Context(), studentID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, entries)
}

func (h *Handler) PostAllergy(c *gin.Context) {
	var req allergyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	entry, err := h.profile.AddAllergy(c.Request.Context(), studentID(c), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, entry)
}

func (h *Handler) DeleteAllergy(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.profile.DeleteAllergy(c.Request.Context(), studentID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"id": id})
}

func (h *Handler) ListPreferences(c *gin.Context) {
	entries, err := h.profile.ListPreferences(c.Request.Context(), studentID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, entries)
}

func (h *Handler) PostPreference(c *gin.Context) {
	var req preferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	entry, err := h.profile.AddPreference(c.Request.Context(), studentID(c), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusCreated, entry)
}

func (h *Handler) DeletePreference(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.profile.DeletePreference(c.Request.Context(), studentID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"id": id})
}

// Reviews

// PostReview handles POST /student/reviews, 201 for a new review and 200
// when it replaced an earlier one
func (h *Handler) PostReview(c *gin.Context) {
	var req ReviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	review, status, err := h.reviews.Submit(c.Request.Context(), studentID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, status, review)
}

func (h *Handler) ListReviews(c *gin.Context) {
	reviews, err := h.reviews.ListMine(c.Request.Context(), studentID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, reviews)
}

func (h *Handler) DeleteReview(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.reviews.Delete(c.Request.Context(), studentID(c), id); err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"id": id})
}

// ItemReviews handles GET /menu/items/:id/reviews for any signed-in user
func (h *Handler) ItemReviews(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	out, err := h.reviews.ForItem(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Respond(c, http.StatusOK, out)
}
