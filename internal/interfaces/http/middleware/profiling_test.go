package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestProfiling_LabelsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var route, method string
	var sawLabels bool
	router := gin.New()
	router.Use(Profiling(DefaultProfilingConfig()))
	handler := func(c *gin.Context) {
		ctx := c.Request.Context()
		route, sawLabels = pprof.Label(ctx, ProfilingLabelRoute)
		method, _ = pprof.Label(ctx, ProfilingLabelMethod)
		c.Status(http.StatusOK)
	}
	router.GET("/api/v1/customers/:id", handler)
	router.GET("/health", handler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/customers/c-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, sawLabels)
	assert.Equal(t, "/api/v1/customers/:id", route)
	assert.Equal(t, http.MethodGet, method)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, sawLabels, "skipped paths carry no labels")
}

func TestProfiling_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var labelled bool
	router := gin.New()
	router.Use(Profiling(ProfilingConfig{Enabled: false}))
	router.GET("/x", func(c *gin.Context) {
		_, labelled = pprof.Label(c.Request.Context(), ProfilingLabelRoute)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.False(t, labelled)
}
