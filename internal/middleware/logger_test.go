package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger(t *testing.T) {
	req := require.New(t)
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	r := gin.New()
	r.Use(RequestLogger(log), Recovery(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	req.Equal(http.StatusOK, w.Code)

	entries := logs.FilterMessage("request").All()
	req.Len(entries, 1)
	req.Equal(zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	req.Equal("/ok", fields["path"])
	req.Equal(int64(200), fields["status"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	req.Equal(http.StatusInternalServerError, w.Code)
	req.Equal(1, logs.FilterMessage("panic recovered").Len())
	req.Equal(1, logs.FilterMessage("request").FilterField(zap.Int("status", 500)).Len())
}
