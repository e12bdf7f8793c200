package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
)

type fakeDashboardSrv struct {
	summary *dto.DashboardSummary
	err     error
	last    struct {
		orgID string
		from  string
		to    string
	}
}

func (f *fakeDashboardSrv) Summary(_ context.Context, orgID, from, to string) (*dto.DashboardSummary, error) {
	f.last.orgID = orgID
	f.last.from = from
	f.last.to = to
	return f.summary, f.err
}

func TestDashboardHandlerSummarySuccess(t *testing.T) {
	srv := &fakeDashboardSrv{summary: &dto.DashboardSummary{FromMonth: "2024-07", ToMonth: "2024-09"}}
	handler := NewDashboardHandler(srv)

	c, rec := authedContext(t, http.MethodGet, "/dashboard/summary?from=2024-07&to=2024-09", nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "org-1", srv.last.orgID)
	assert.Equal(t, "2024-07", srv.last.from)
	assert.Equal(t, "2024-09", srv.last.to)

	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "2024-07", envelope.Data["from_month"])
}

func TestDashboardHandlerSummaryRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/summary?from=2024-07", nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandlerSummaryPropagatesValidation(t *testing.T) {
	srv := &fakeDashboardSrv{err: appErrors.ErrValidation}
	handler := NewDashboardHandler(srv)

	c, rec := authedContext(t, http.MethodGet, "/dashboard/summary?from=bogus", nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
