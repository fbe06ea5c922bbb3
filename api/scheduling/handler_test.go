package scheduling

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/runlog"
	"github.com/kilianp07/caresched/core/schedule"
	"github.com/kilianp07/caresched/core/timegrid"
	infralogger "github.com/kilianp07/caresched/infra/logger"
	"github.com/kilianp07/caresched/infra/solver/pseudobool"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	grid := timegrid.MustGrid("07:00", "12:00", time.Hour)
	slots, err := model.GenerateTimeslots(grid, []timegrid.Weekday{timegrid.Monday}, time.Hour)
	require.NoError(t, err)
	store, err := runlog.NewJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sched := schedule.New(grid, pseudobool.New(infralogger.NopLogger{}),
		schedule.Config{Weights: schedule.DefaultWeights()}, schedule.WithRunLog(store))
	reg := NewRegistry(slots)
	return NewRouter(NewHandler(reg, sched, store, infralogger.NopLogger{})), reg
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestScheduleRoundTrip(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/api/schedule", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/clients",
		`{"name":"Ann Lee","needs":{"Psychologist":2},"availability_text":"Monday: 09:00, 10:00"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var client model.Client
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &client))
	assert.Equal(t, "C1", client.ID)
	assert.Equal(t, []string{"09:00-10:00", "10:00-11:00"}, client.Availability["Monday"])

	w = do(t, r, http.MethodPost, "/api/providers",
		`{"name":"Dr. Kay","category":"Psychologist","availability":{"Monday":["07:00-12:00"]}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/schedule/run", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ScheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Feasible)
	assert.Equal(t, "optimal", resp.Status.String())
	require.Len(t, resp.Consultations, 2)

	w = do(t, r, http.MethodGet, "/api/schedule/table", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Schedule for Ann Lee:")
	assert.Contains(t, w.Body.String(), "Dr. Kay (P)")

	w = do(t, r, http.MethodGet, "/api/schedule/table?format=pdf", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	w = do(t, r, http.MethodGet, "/api/runs?status=optimal&client_id=C1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var recs []runlog.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, resp.RunID, recs[0].RunID)
}

func TestInfeasibleRunIsReported(t *testing.T) {
	r, _ := newTestRouter(t)
	do(t, r, http.MethodPost, "/api/clients",
		`{"name":"Ann Lee","needs":{"Psychologist":3},"availability_text":"Monday: 09:00, 10:00"}`)
	do(t, r, http.MethodPost, "/api/providers",
		`{"name":"Dr. Kay","category":"Psychologist","availability_text":"Monday: 09:00, 10:00, 11:00"}`)

	w := do(t, r, http.MethodPost, "/api/schedule/run", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/schedule", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp ScheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Feasible)
	assert.Empty(t, resp.Consultations)
	require.NotEmpty(t, resp.Diagnostics)
	assert.Equal(t, schedule.DiagCapacity, resp.Diagnostics[0].Kind)

	w = do(t, r, http.MethodGet, "/api/schedule/table", "")
	assert.Equal(t, "No feasible schedule could be created.\n", w.Body.String())
}

func TestRunRequiresClientsAndProviders(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(t, r, http.MethodPost, "/api/schedule/run", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddValidation(t *testing.T) {
	r, _ := newTestRouter(t)
	cases := []struct {
		path, body string
	}{
		{"/api/clients", `{"needs":{"Psychologist":1},"availability_text":"Monday: 09:00"}`},
		{"/api/clients", `{"name":"Ann"}`},
		{"/api/clients", `{"name":"Ann","needs":{"Psychologist":-1},"availability_text":"Monday: 09:00"}`},
		{"/api/providers", `{"name":"Dr. Kay","availability_text":"Monday: 09:00"}`},
		{"/api/providers", `{"name":`},
	}
	for _, c := range cases {
		w := do(t, r, http.MethodPost, c.path, c.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, c.body)
	}
}

func TestDeleteAndDuplicates(t *testing.T) {
	r, reg := newTestRouter(t)
	body := `{"id":"X","name":"Ann","availability_text":"Monday: 09:00"}`
	require.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/api/clients", body).Code)
	assert.Equal(t, http.StatusConflict, do(t, r, http.MethodPost, "/api/clients", body).Code)

	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/api/clients/X", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/api/clients/X", "").Code)
	assert.Empty(t, reg.Clients())

	w := do(t, r, http.MethodGet, "/api/providers", "")
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestRegistryAssignsFreeIDs(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.AddProvider(model.Provider{ID: "P1", Name: "a", Category: "x"})
	require.NoError(t, err)
	p, err := reg.AddProvider(model.Provider{Name: "b", Category: "x"})
	require.NoError(t, err)
	assert.Equal(t, "P2", p.ID)
	require.NoError(t, reg.DeleteProvider("P1"))
	assert.ErrorIs(t, reg.DeleteProvider("P1"), ErrNotFound)
}
