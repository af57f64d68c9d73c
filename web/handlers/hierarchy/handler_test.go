package hierarchy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"axiapac.com/payroll/core"
	"axiapac.com/payroll/model"
	"axiapac.com/payroll/store"
	"axiapac.com/payroll/web/events"
)

type recorder struct {
	mu      sync.Mutex
	changes []events.Change
}

func (r *recorder) PublishChange(c events.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.Type()
	}
	return out
}

func setup(t *testing.T) (*gin.Engine, *recorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dm, err := core.New(core.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name), 1, core.LogLevelSilent, logger)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	require.NoError(t, dm.Migrate(context.Background()))

	date := datatypes.Date(time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC))
	rows := []any{
		&model.Timesheet{ID: "ts1", EmployeeName: "Juan Dela Cruz", PayPeriod: "2025-10A", Hours: model.Hours{RegularHours: 8, OvertimeHours: 2}},
		&model.Timesheet{ID: "ts2", EmployeeName: "Maria Clara", PayPeriod: "2025-10B"},
		&model.DTR{ID: "d1", TimesheetID: "ts1", Date: date, Hours: model.Hours{RegularHours: 8, OvertimeHours: 2}},
	}
	for _, row := range rows {
		require.NoError(t, dm.DB.Create(row).Error)
	}

	rec := &recorder{}
	r := gin.New()
	Register(r.Group("/api"), store.New(dm.DB, logger), rec, logger)
	return r, rec
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

func TestListAndChildren(t *testing.T) {
	r, _ := setup(t)

	w := do(r, http.MethodGet, "/api/timesheets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	nodes, err := model.DecodeList(model.LevelTimesheet, decode(t, w).Data)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	w = do(r, http.MethodGet, "/api/hierarchy/timesheet/ts1/children", nil)
	require.Equal(t, http.StatusOK, w.Code)
	nodes, err = model.DecodeList(model.LevelDTR, decode(t, w).Data)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "d1", nodes[0].Key().ID)

	w = do(r, http.MethodGet, "/api/hierarchy/timesheet/ts1/has-children", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"hasChildren":true}`, string(decode(t, w).Data))

	w = do(r, http.MethodGet, "/api/hierarchy/timesheet/ts2/has-children", nil)
	assert.JSONEq(t, `{"hasChildren":false}`, string(decode(t, w).Data))
}

func TestGet(t *testing.T) {
	r, _ := setup(t)

	w := do(r, http.MethodGet, "/api/hierarchy/dtr/d1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	n, err := model.Decode(model.LevelDTR, decode(t, w).Data)
	require.NoError(t, err)
	assert.Equal(t, 8.0, n.(*model.DTR).RegularHours)
}

func TestErrorStatuses(t *testing.T) {
	r, _ := setup(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown level", http.MethodGet, "/api/hierarchy/week/x", nil, http.StatusBadRequest, "validation"},
		{"missing entity", http.MethodGet, "/api/hierarchy/dtr/nope", nil, http.StatusNotFound, "not_found"},
		{"missing parent", http.MethodGet, "/api/hierarchy/timesheet/nope/children", nil, http.StatusNotFound, "not_found"},
		{"delete with children", http.MethodDelete, "/api/hierarchy/timesheet/ts1", nil, http.StatusConflict, "has_children"},
		{"reparent", http.MethodPatch, "/api/hierarchy/dtr/d1", map[string]any{"timesheetId": "ts2"}, http.StatusUnprocessableEntity, "invariant_violation"},
		{"unknown field", http.MethodPatch, "/api/hierarchy/dtr/d1", map[string]any{"color": "red"}, http.StatusBadRequest, "validation"},
		{"negative hours", http.MethodPatch, "/api/hierarchy/dtr/d1", map[string]any{"regularHours": -1}, http.StatusBadRequest, "validation"},
		{"create without name", http.MethodPost, "/api/hierarchy/timesheet", map[string]any{"payPeriod": "x"}, http.StatusBadRequest, "validation"},
		{"create under missing parent", http.MethodPost, "/api/hierarchy/dtr", map[string]any{"timesheetId": "nope", "date": "2025-10-07"}, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode(t, w).Code)
		})
	}
}

func TestCreateRecomputesTimesheet(t *testing.T) {
	r, rec := setup(t)

	w := do(r, http.MethodPost, "/api/hierarchy/dtr", map[string]any{
		"timesheetId":  "ts2",
		"date":         "2025-10-07",
		"regularHours": 4,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res model.MutationResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	require.NotNil(t, res.Entity)
	assert.NotEmpty(t, res.Entity.Key().ID)
	require.Len(t, res.Ancestors, 1)
	assert.Equal(t, 4.0, res.Ancestors[0].(*model.Timesheet).RegularHours)

	assert.Equal(t, []string{"dtr.created", "timesheet.updated"}, rec.types())
}

func TestUpdateAndDelete(t *testing.T) {
	r, rec := setup(t)

	w := do(r, http.MethodPatch, "/api/hierarchy/dtr/d1", map[string]any{"regularHours": 6})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res model.MutationResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, 6.0, res.Entity.(*model.DTR).RegularHours)
	require.Len(t, res.Ancestors, 1)
	assert.Equal(t, 6.0, res.Ancestors[0].(*model.Timesheet).RegularHours)

	w = do(r, http.MethodDelete, "/api/hierarchy/dtr/d1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res = model.MutationResult{}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, "d1", res.RemovedID)
	require.Len(t, res.Ancestors, 1)
	assert.Equal(t, model.Hours{}, res.Ancestors[0].(*model.Timesheet).Hours)

	assert.Equal(t, []string{"dtr.updated", "timesheet.updated", "dtr.deleted", "timesheet.updated"}, rec.types())

	w = do(r, http.MethodGet, "/api/hierarchy/dtr/d1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch(t *testing.T) {
	r, _ := setup(t)

	w := do(r, http.MethodPost, "/api/timesheets/search?limit=10", map[string]any{
		"payPeriods": []string{"2025-10A"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data       []model.Timesheet `json:"data"`
		Pagination struct {
			Total int64 `json:"total"`
			Limit int   `json:"limit"`
		} `json:"pagination"`
		Counts store.TimesheetCounts `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ts1", body.Data[0].ID)
	assert.Equal(t, int64(1), body.Pagination.Total)
	assert.Equal(t, 10, body.Pagination.Limit)
	assert.Equal(t, int64(1), body.Counts.WithOvertime)

	w = do(r, http.MethodPost, "/api/timesheets/search", map[string]any{
		"startDate": "2025-10-06",
		"endDate":   "2025-10-06",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)

	w = do(r, http.MethodPost, "/api/timesheets/search", map[string]any{"startDate": "06/10/2025"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
