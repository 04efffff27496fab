package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fsm-visit-api/internal/dto"
)

type plannerMock struct {
	captured dto.PlanVisitsRequest
}

func (m *plannerMock) Plan(ctx context.Context, req dto.PlanVisitsRequest) (*dto.PlanningResult, error) {
	m.captured = req
	return &dto.PlanningResult{Success: true}, nil
}

func validPlanPayload() []byte {
	return []byte(`{"year":2030,"branchIds":["branch-1"],"options":{"maxVisitsPerDay":2,"minDaysBetweenVisits":1,"preferredWeekStart":"saturday","conflictResolution":"reschedule"},"dryRun":true}`)
}

func TestPlannerHandlerPlanSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &plannerMock{}
	handler := &PlannerHandler{service: mockSvc}
	req, _ := http.NewRequest(http.MethodPost, "/planner/plan", bytes.NewReader(validPlanPayload()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Plan(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2030, mockSvc.captured.Year)
	require.True(t, mockSvc.captured.DryRun)
	require.Equal(t, []string{"branch-1"}, mockSvc.captured.BranchIDs)
}

func TestPlannerHandlerPlanMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &PlannerHandler{service: &plannerMock{}}
	req, _ := http.NewRequest(http.MethodPost, "/planner/plan", bytes.NewReader([]byte(`{"year":`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Plan(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlannerHandlerPlanBranchLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &PlannerHandler{service: &plannerMock{}}

	payload := bytes.NewBufferString(`{"year":2030,"branchIds":[`)
	for i := 0; i <= maxPlannerBranches; i++ {
		if i > 0 {
			payload.WriteString(",")
		}
		payload.WriteString(`"b"`)
	}
	payload.WriteString(`],"options":{"maxVisitsPerDay":2,"minDaysBetweenVisits":1,"preferredWeekStart":"saturday","conflictResolution":"skip"}}`)

	req, _ := http.NewRequest(http.MethodPost, "/planner/plan", bytes.NewReader(payload.Bytes()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Plan(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
