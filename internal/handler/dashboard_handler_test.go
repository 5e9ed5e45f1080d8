package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teacher-eval-api/internal/dto"
	"github.com/noah-isme/teacher-eval-api/internal/middleware"
)

type fakeDashboardSrv struct {
	stats *dto.DashboardStats
	hit   bool
	err   error
}

func (f *fakeDashboardSrv) Stats(context.Context) (*dto.DashboardStats, bool, error) {
	return f.stats, f.hit, f.err
}

func TestDashboardHandlerStatsSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		stats: &dto.DashboardStats{TotalTeachers: 4, EvaluatedTeachers: 3, EvaluationPercentage: 75},
		hit:   true,
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	middleware.WithResponseMeta()(c)

	handler.Stats(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	assert.Equal(t, float64(4), envelope.Data["totalTeachers"])
	assert.Equal(t, float64(75), envelope.Data["evaluationPercentage"])
}

func TestDashboardHandlerStatsFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{err: errors.New("boom")})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	handler.Stats(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDashboardHandlerWithoutService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	handler.Stats(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error map[string]interface{} `json:"error"`
}

type listEnvelope struct {
	Data       []map[string]interface{} `json:"data"`
	Pagination map[string]interface{}   `json:"pagination"`
	Meta       map[string]interface{}   `json:"meta"`
}
