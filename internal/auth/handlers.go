package auth

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"canteen/internal/databases"
	"canteen/internal/v0/common"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Handler handles user and token endpoints
type Handler struct {
	repo       *Repository
	tokenStore *TokenStore
	logger     log.FieldLogger
}

// NewHandler creates a new auth handler
func NewHandler(repo *Repository, tokenStore *TokenStore, logger log.FieldLogger) *Handler {
	return &Handler{repo: repo, tokenStore: tokenStore, logger: logger}
}

type TokenCreateRequest struct {
	Label     string     `json:"label" binding:"required"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type UserCreateRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"displayName" binding:"required"`
	Role        Role   `json:"role" binding:"required"`
}

// Me returns the current authenticated user
// GET /auth/me
func (h *Handler) Me(c *gin.Context) {
	common.Respond(c, http.StatusOK, gin.H{"user": GetUserFromContext(c), "token": GetTokenFromContext(c)})
}

// ListTokens returns all tokens for the current user
// GET /auth/tokens
func (h *Handler) ListTokens(c *gin.Context) {
	user := GetUserFromContext(c)
	tokens, err := h.tokenStore.ListUserTokens(c.Request.Context(), user.ID)
	if err != nil {
		common.RespondError(c, h.logger, common.Internal(err, "list tokens"))
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"tokens": tokens})
}

// RevokeToken revokes a token owned by the current user
// DELETE /auth/tokens/:id
func (h *Handler) RevokeToken(c *gin.Context) {
	user := GetUserFromContext(c)
	tokenID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		common.RespondBadRequest(c, common.BadRequest("invalid token ID"))
		return
	}
	if err := h.tokenStore.RevokeToken(c.Request.Context(), tokenID, user.ID); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"message": "token revoked"})
}

// --- User Management ---

// ListUsers returns all users, filtered by ?role=
// GET /admin/users
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.repo.ListUsers(c.Request.Context(), Role(c.Query("role")))
	if err != nil {
		common.RespondError(c, h.logger, common.Internal(err, "list users"))
		return
	}
	common.Respond(c, http.StatusOK, gin.H{"users": users})
}

// CreateUser registers a student, cook or admin
// POST /admin/users
func (h *Handler) CreateUser(c *gin.Context) {
	var req UserCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}
	if !req.Role.Valid() {
		common.RespondBadRequest(c, common.BadRequest("unknown role %q", req.Role))
		return
	}

	user, err := h.repo.CreateUser(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)), strings.TrimSpace(req.DisplayName), req.Role)
	if databases.IsUniqueViolation(err) {
		common.RespondError(c, h.logger, common.Conflict("email %s is already registered", req.Email))
		return
	}
	if err != nil {
		common.RespondError(c, h.logger, common.Internal(err, "create user"))
		return
	}
	common.Respond(c, http.StatusCreated, gin.H{"user": user})
}

// CreateUserToken issues a token for a user (admin)
// POST /admin/users/:id/tokens
func (h *Handler) CreateUserToken(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		common.RespondBadRequest(c, common.BadRequest("invalid user ID"))
		return
	}

	var req TokenCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err)
		return
	}

	token, err := h.tokenStore.IssueToken(c.Request.Context(), id, req.Label, req.ExpiresAt)
	if err != nil {
		common.RespondBadRequest(c, err)
		return
	}

	common.Respond(c, http.StatusCreated, gin.H{
		"token":   token.RawToken,
		"details": token.Token,
		"message": "Token created. Save this token now - it will not be shown again.",
	})
}
