package menu

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"canteen/internal/auth"
	"canteen/internal/calendar"
	"canteen/internal/logging"
	"canteen/internal/v0/common"

	"github.com/gin-gonic/gin"
)

type apiFixture struct {
	*fixture
	router  *gin.Engine
	admin   string
	student string
}

func newAPIFixture(t *testing.T, today string) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t, today)
	ctx := context.Background()

	users := auth.NewRepository(f.db)
	tokens := auth.NewTokenStore(users)
	issue := func(email string, role auth.Role) string {
		u, err := users.CreateUser(ctx, email, email, role)
		if err != nil {
			t.Fatal(err)
		}
		tok, err := tokens.IssueToken(ctx, u.ID, "test", nil)
		if err != nil {
			t.Fatal(err)
		}
		return tok.RawToken
	}

	logger := logging.Discard()
	router := gin.New()
	router.Use(common.RequestID())
	h := NewHandler(f.engine, f.catalog, f.repo, calendar.FixedClock(calendar.MustParse(today)), logger)
	RegisterRoutes(router.Group("/api/v0"), h, auth.NewMiddleware(tokens, logger))

	return &apiFixture{
		fixture: f,
		router:  router,
		admin:   issue("admin@school.test", auth.RoleAdmin),
		student: issue("pupil@school.test", auth.RoleStudent),
	}
}

func (a *apiFixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, common.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(auth.HeaderAuthorization, "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env common.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body, err)
	}
	return w, env
}

func TestApplyDayEndpoint(t *testing.T) {
	a := newAPIFixture(t, "2025-06-02")
	first := a.template(t, "First", item("Omelette", "75", SlotBreakfast))
	second := a.template(t, "Second", item("Goulash", "140", SlotLunch))

	w, _ := a.do(t, http.MethodPost, "/api/v0/menu/apply/day", a.admin, gin.H{
		"templateId": first.ID, "date": "2025-06-05",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("first apply = %d %s", w.Code, w.Body)
	}

	w, env := a.do(t, http.MethodPost, "/api/v0/menu/apply/day", a.admin, gin.H{
		"templateId": second.ID, "date": "2025-06-05", "overwrite": false,
	})
	if w.Code != http.StatusConflict || len(env.Errors) != 1 {
		t.Fatalf("second apply without overwrite = %d %v", w.Code, env.Errors)
	}

	// Omitted overwrite means replace
	w, _ = a.do(t, http.MethodPost, "/api/v0/menu/apply/day", a.admin, gin.H{
		"templateId": second.ID, "date": "2025-06-05",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("default overwrite apply = %d %s", w.Code, w.Body)
	}

	w, _ = a.do(t, http.MethodGet, "/api/v0/menu/days/2025-06-05", a.student, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get day = %d", w.Code)
	}
	var got struct {
		Data MenuDay `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &got)
	if names := itemNames(&got.Data); !sameNames(names, []string{"Goulash"}) {
		t.Errorf("items = %v", names)
	}
}

func TestMenuEndpointsRejectStudentsOnWrites(t *testing.T) {
	a := newAPIFixture(t, "2025-06-02")
	w, _ := a.do(t, http.MethodPost, "/api/v0/menu/apply/day", a.student, gin.H{"templateId": 1, "date": "2025-06-05"})
	if w.Code != http.StatusForbidden {
		t.Errorf("student apply = %d, want 403", w.Code)
	}
	w, _ = a.do(t, http.MethodGet, "/api/v0/templates", a.student, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("student templates = %d, want 403", w.Code)
	}
	w, _ = a.do(t, http.MethodGet, "/api/v0/menu/days", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous days = %d, want 401", w.Code)
	}
}

func TestApplyBulkEndpoint(t *testing.T) {
	a := newAPIFixture(t, "2025-06-02")
	tpl := a.template(t, "Weekend brunch", item("Syrniki", "90", SlotBreakfast))

	w, env := a.do(t, http.MethodPost, "/api/v0/menu/apply/bulk", a.admin, gin.H{
		"mode":       "template",
		"templateId": tpl.ID,
		"target": gin.H{
			"type":     "period",
			"weekdays": []int{6, 7},
			"period":   gin.H{"from": "2025-06-02", "to": "2025-06-08"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("bulk = %d %v", w.Code, env.Errors)
	}
	var got struct {
		Data struct {
			Results   []DateResult `json:"results"`
			Total     int          `json:"total"`
			Succeeded int          `json:"succeeded"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &got)
	if got.Data.Total != 2 || got.Data.Succeeded != 2 {
		t.Fatalf("bulk counts = %+v", got.Data)
	}
	if got.Data.Results[0].Date.String() != "2025-06-07" || got.Data.Results[1].Date.String() != "2025-06-08" {
		t.Errorf("bulk dates = %s, %s", got.Data.Results[0].Date, got.Data.Results[1].Date)
	}

	w, _ = a.do(t, http.MethodPost, "/api/v0/menu/apply/bulk", a.admin, gin.H{
		"mode": "template", "templateId": tpl.ID, "target": gin.H{"type": "weekdays", "weekdays": []int{9}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad weekday = %d, want 400", w.Code)
	}
}

func TestGroupStatsEndpoint(t *testing.T) {
	a := newAPIFixture(t, "2025-06-02")
	x := a.template(t, "X", item("Soup X", "100", SlotLunch))
	y := a.template(t, "Y", item("Soup Y", "100", SlotLunch))
	g := a.group(t, "Lunch rotation", x, y)

	w, _ := a.do(t, http.MethodPost, "/api/v0/menu/apply/shuffle", a.admin, gin.H{"groupId": g.ID, "date": "2025-06-03"})
	if w.Code != http.StatusCreated {
		t.Fatalf("shuffle = %d %s", w.Code, w.Body)
	}

	w, _ = a.do(t, http.MethodGet, "/api/v0/template-groups/"+strconv.FormatInt(g.ID, 10)+"/stats", a.admin, nil)
	var got struct {
		Data ShuffleStats `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &got)
	if got.Data.TotalTemplates != 2 || got.Data.UsedCount != 1 || got.Data.RemainingCount != 1 || got.Data.WillResetOnNext {
		t.Errorf("stats = %+v", got.Data)
	}

	w, _ = a.do(t, http.MethodGet, "/api/v0/template-groups/abc/stats", a.admin, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", w.Code)
	}
}
