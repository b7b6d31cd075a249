package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"canteen/internal/auth"
	"canteen/internal/databases/dbtest"
	"canteen/internal/logging"

	"github.com/gin-gonic/gin"
)

func TestIssueAndValidateToken(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	repo := auth.NewRepository(db)
	store := auth.NewTokenStore(repo)

	user, err := repo.CreateUser(ctx, "anna@school.test", "Anna", auth.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}

	var balance string
	if err := db.QueryRow(`SELECT balance FROM accounts WHERE student_id = ?`, user.ID).Scan(&balance); err != nil {
		t.Fatalf("student account missing: %v", err)
	}

	issued, err := store.IssueToken(ctx, user.ID, "phone", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(issued.RawToken, auth.TokenPrefix) {
		t.Fatalf("raw token %q lacks prefix", issued.RawToken)
	}

	validated, err := store.ValidateToken(ctx, issued.RawToken)
	if err != nil {
		t.Fatal(err)
	}
	if validated.User.ID != user.ID || validated.User.Role != auth.RoleStudent {
		t.Errorf("validated user = %+v", validated.User)
	}

	if _, err := store.ValidateToken(ctx, auth.TokenPrefix+"nope"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("unknown token err = %v", err)
	}

	if err := store.RevokeToken(ctx, issued.ID, user.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ValidateToken(ctx, issued.RawToken); !errors.Is(err, auth.ErrTokenRevoked) {
		t.Errorf("revoked token err = %v", err)
	}

	past := time.Now().Add(-time.Hour)
	expired, err := store.IssueToken(ctx, user.ID, "old", &past)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.ValidateToken(ctx, expired.RawToken); !errors.Is(err, auth.ErrTokenExpired) {
		t.Errorf("expired token err = %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t)
	ctx := context.Background()
	repo := auth.NewRepository(db)
	store := auth.NewTokenStore(repo)
	mw := auth.NewMiddleware(store, logging.Discard())

	tokenFor := func(email string, role auth.Role) string {
		u, err := repo.CreateUser(ctx, email, email, role)
		if err != nil {
			t.Fatal(err)
		}
		tok, err := store.IssueToken(ctx, u.ID, "test", nil)
		if err != nil {
			t.Fatal(err)
		}
		return tok.RawToken
	}
	student := tokenFor("s@school.test", auth.RoleStudent)
	cook := tokenFor("c@school.test", auth.RoleCook)
	admin := tokenFor("a@school.test", auth.RoleAdmin)

	router := gin.New()
	router.GET("/kitchen", mw.RequireToken(), mw.RequireRole(auth.RoleCook), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"bad scheme", "Basic abc", http.StatusUnauthorized},
		{"student", "Bearer " + student, http.StatusForbidden},
		{"cook", "Bearer " + cook, http.StatusNoContent},
		{"admin", "Bearer " + admin, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/kitchen", nil)
			if tt.header != "" {
				req.Header.Set(auth.HeaderAuthorization, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
