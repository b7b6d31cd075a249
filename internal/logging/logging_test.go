package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func TestSetupRejectsUnknownLevel(t *testing.T) {
	if _, err := Setup("loud", ""); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestSetupFileOutput(t *testing.T) {
	logger, err := Setup("debug", filepath.Join(t.TempDir(), "canteen.log"))
	if err != nil {
		t.Fatal(err)
	}
	if logger.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", logger.GetLevel())
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true, DisableColors: true})

	router := gin.New()
	router.Use(RequestLogger(logger))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/ok", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := buf.String()
	if !strings.Contains(out, "level=info") || !strings.Contains(out, "path=/ok") {
		t.Errorf("missing info line for /ok: %s", out)
	}
	if !strings.Contains(out, "level=warning") || !strings.Contains(out, "status=404") {
		t.Errorf("missing warning line for /missing: %s", out)
	}
}
