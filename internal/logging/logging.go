package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup builds the application logger. An empty path logs to stdout,
// anything else goes to a rotated file.
func Setup(level, path string) (*log.Logger, error) {
	logger := log.New()

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("unknown logging level %q: %w", level, err)
	}
	logger.SetLevel(lvl)

	var out io.Writer = os.Stdout
	if path != "" {
		out = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    32, // megabytes
			MaxBackups: 2,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	logger.SetOutput(out)
	logger.SetFormatter(&log.TextFormatter{
		PadLevelText:    true,
		DisableColors:   path != "",
		FullTimestamp:   true,
		TimestampFormat: time.DateTime,
	})
	return logger, nil
}

// Discard returns a logger that drops everything, for tests and tools
func Discard() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

// RequestLogger logs every request with a level picked from the status code
func RequestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   status,
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		})
		if userID, ok := c.Get("auth_user_id"); ok {
			entry = entry.WithField("user_id", userID)
		}

		switch {
		case status >= 500:
			entry.Error("HTTP request")
		case status >= 400:
			entry.Warn("HTTP request")
		default:
			entry.Info("HTTP request")
		}
	}
}
