package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tripharvest/internal/errors"
	"tripharvest/internal/operations"
	"tripharvest/internal/scheduler"
)

// mockScrapeService scripts the scraping facade for handler tests
type mockScrapeService struct {
	startID      string
	startErr     error
	gotTrigger   operations.TriggerKind
	gotActor     string
	gotCfg       operations.RunConfig
	statusSnap   *operations.Snapshot
	statusErr    error
	cancelErr    error
	logsSnaps    []*operations.Snapshot
	logsTotal    int
	logsErr      error
	tasks        []scheduler.TaskSnapshot
	scheduleErr  error
	pauseResult  bool
	resumeResult bool
}

func (m *mockScrapeService) Start(_ context.Context, trigger operations.TriggerKind, actor string, cfg operations.RunConfig) (string, error) {
	m.gotTrigger = trigger
	m.gotActor = actor
	m.gotCfg = cfg
	return m.startID, m.startErr
}

func (m *mockScrapeService) Status(_ context.Context, _ string) (*operations.Snapshot, error) {
	return m.statusSnap, m.statusErr
}

func (m *mockScrapeService) Cancel(_ context.Context, _ string) error { return m.cancelErr }

func (m *mockScrapeService) Logs(_ context.Context, _ operations.LogFilter) ([]*operations.Snapshot, int, error) {
	return m.logsSnaps, m.logsTotal, m.logsErr
}

func (m *mockScrapeService) CronStatus() []scheduler.TaskSnapshot { return m.tasks }

func (m *mockScrapeService) ScheduleCron(_, _ string) error { return m.scheduleErr }

func (m *mockScrapeService) PauseCron(_ string) bool { return m.pauseResult }

func (m *mockScrapeService) ResumeCron(_ string) bool { return m.resumeResult }

func doRequest(t *testing.T, h *ScrapingHandler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestStartOperationAccepted(t *testing.T) {
	svc := &mockScrapeService{startID: "op-123"}
	h := NewScrapingHandler(svc, nil)

	rec := doRequest(t, h, http.MethodPost, "/start", map[string]interface{}{
		"sources":     []string{"holidaygogogo"},
		"triggeredBy": "operator@example.com",
	})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "op-123", resp["operationId"])

	assert.Equal(t, operations.TriggerManual, svc.gotTrigger)
	assert.Equal(t, "operator@example.com", svc.gotActor)
	assert.Equal(t, []string{"holidaygogogo"}, svc.gotCfg.Sources)
}

func TestStartOperationWithoutActorIsAPITrigger(t *testing.T) {
	svc := &mockScrapeService{startID: "op-124"}
	h := NewScrapingHandler(svc, nil)

	rec := doRequest(t, h, http.MethodPost, "/start", map[string]interface{}{})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, operations.TriggerAPI, svc.gotTrigger)
	assert.Empty(t, svc.gotActor)
}

func TestStartOperationConflict(t *testing.T) {
	svc := &mockScrapeService{startErr: apperrors.ErrAlreadyRunning}
	h := NewScrapingHandler(svc, nil)

	rec := doRequest(t, h, http.MethodPost, "/start", map[string]interface{}{})
	assert.Equal(t, http.StatusConflict, rec.Code)

	var apiErr apperrors.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "OPERATION_ALREADY_RUNNING", apiErr.ErrorCode)
}

func TestStartOperationBadTimeout(t *testing.T) {
	svc := &mockScrapeService{startID: "op-125"}
	h := NewScrapingHandler(svc, nil)

	rec := doRequest(t, h, http.MethodPost, "/start", map[string]interface{}{
		"config": map[string]interface{}{"timeoutPerSource": "an hour-ish"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOperationStatus(t *testing.T) {
	svc := &mockScrapeService{statusSnap: &operations.Snapshot{
		ID:     "op-1",
		Status: operations.StatusRunning,
	}}
	h := NewScrapingHandler(svc, nil)

	rec := doRequest(t, h, http.MethodGet, "/status/op-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var snap operations.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "op-1", snap.ID)
	assert.Equal(t, operations.StatusRunning, snap.Status)
}

func TestGetOperationStatusNotFound(t *testing.T) {
	svc := &mockScrapeService{statusErr: apperrors.ErrOperationNotFound}
	h := NewScrapingHandler(svc, nil)

	rec := doRequest(t, h, http.MethodGet, "/status/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelOperation(t *testing.T) {
	h := NewScrapingHandler(&mockScrapeService{}, nil)

	rec := doRequest(t, h, http.MethodPost, "/cancel/op-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cancelling", resp["status"])
}

func TestListOperationLogs(t *testing.T) {
	svc := &mockScrapeService{
		logsSnaps: []*operations.Snapshot{{ID: "op-1"}, {ID: "op-2"}},
		logsTotal: 7,
	}
	h := NewScrapingHandler(svc, nil)

	rec := doRequest(t, h, http.MethodGet, "/logs?page=2&limit=2&status=completed", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Operations []operations.Snapshot `json:"operations"`
		Total      int                   `json:"total"`
		Page       int                   `json:"page"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Operations, 2)
	assert.Equal(t, 7, resp.Total)
	assert.Equal(t, 2, resp.Page)
}

func TestUpdateCronSchedule(t *testing.T) {
	h := NewScrapingHandler(&mockScrapeService{}, nil)

	rec := doRequest(t, h, http.MethodPut, "/cron/schedule", map[string]string{
		"taskName": "automated_scraping",
		"schedule": "0 4 * * *",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateCronScheduleValidation(t *testing.T) {
	h := NewScrapingHandler(&mockScrapeService{}, nil)

	rec := doRequest(t, h, http.MethodPut, "/cron/schedule", map[string]string{"schedule": "0 4 * * *"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPut, "/cron/schedule", map[string]string{"taskName": "automated_scraping"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateCronScheduleInvalidExpression(t *testing.T) {
	h := NewScrapingHandler(&mockScrapeService{scheduleErr: apperrors.ErrInvalidCron}, nil)

	rec := doRequest(t, h, http.MethodPut, "/cron/schedule", map[string]string{
		"taskName": "automated_scraping",
		"schedule": "61 99 * * *",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var apiErr apperrors.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "INVALID_CRON_EXPRESSION", apiErr.ErrorCode)
}

func TestPauseAndResumeCron(t *testing.T) {
	svc := &mockScrapeService{pauseResult: true, resumeResult: false}
	h := NewScrapingHandler(svc, nil)

	rec := doRequest(t, h, http.MethodPost, "/cron/pause/automated_scraping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/cron/resume/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
