package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"canteen/internal/databases/dbtest"
	v0common "canteen/internal/v0/common"

	"github.com/gin-gonic/gin"
)

func TestStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t)

	router := gin.New()
	router.Use(v0common.RequestID())
	RegisterRoutes(router.Group("/api"), NewHandler(db, time.UTC))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}

	var body struct {
		Data StatusResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Database != "ok" || body.Data.Timezone != "UTC" {
		t.Errorf("data = %+v", body.Data)
	}

	db.Close()
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("closed db status = %d, want 503", w.Code)
	}
}
