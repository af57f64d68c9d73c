package grid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	v1 "axiapac.com/payroll/client/v1"
	"axiapac.com/payroll/core"
	"axiapac.com/payroll/engine"
	"axiapac.com/payroll/model"
	"axiapac.com/payroll/store"
)

func init() {
	color.NoColor = true
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dm, err := core.New(core.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name), 1, core.LogLevelSilent, logger)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	require.NoError(t, dm.Migrate(context.Background()))

	rows := []any{
		&model.Timesheet{ID: "ts1", EmployeeName: "Juan Dela Cruz", PayPeriod: "2025-10A", Hours: model.Hours{RegularHours: 8, OvertimeHours: 1}},
		&model.Timesheet{ID: "ts2", EmployeeName: "Maria Clara"},
		&model.DTR{ID: "d1", TimesheetID: "ts1", Date: datatypes.Date(time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)), Hours: model.Hours{RegularHours: 8, OvertimeHours: 1}},
		&model.Timelog{ID: "tl1", DtrID: "d1", Mode: model.ModeIn, Timestamp: time.Date(2025, 10, 6, 8, 0, 0, 0, time.UTC)},
	}
	for _, row := range rows {
		require.NoError(t, dm.DB.Create(row).Error)
	}
	return engine.New(store.New(dm.DB, logger), engine.WithLogger(logger))
}

func TestOpenAndRender(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	key, err := Open(ctx, e, "ts1/d1")
	require.NoError(t, err)
	assert.Equal(t, model.Key{Level: model.LevelDTR, ID: "d1"}, key)
	require.NoError(t, e.Select(ctx, key))

	var buf bytes.Buffer
	Render(&buf, e.Snapshot())
	out := buf.String()

	assert.Contains(t, out, "▾ timesheet:ts1")
	assert.Contains(t, out, "Juan Dela Cruz / 2025-10A")
	assert.Contains(t, out, "▸ timesheet:ts2")
	assert.Contains(t, out, "  ▾ dtr:d1")
	assert.Contains(t, out, "Mon 2025-10-06")
	assert.Contains(t, out, "    ▸ timelog:tl1")
	assert.Contains(t, out, "in 08:00")
	assert.Contains(t, out, "8.00")
	assert.Contains(t, out, "selected dtr:d1  has children: yes  can delete: no")
	assert.Contains(t, out, "add: timelog under d1")
}

func TestOpenErrors(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := Open(ctx, e, "ts1/nope")
	assert.ErrorContains(t, err, "dtr:nope not found under ts1")

	_, err = Open(ctx, e, "a/b/c/d/e")
	assert.Error(t, err)
}

func TestParseAssignments(t *testing.T) {
	patch, err := ParseAssignments([]string{"regularHours=7.5", "mode=out", "timestamp=2025-10-06 17:00:00"})
	require.NoError(t, err)
	assert.Equal(t, 7.5, patch["regularHours"])
	assert.Equal(t, "out", patch["mode"])
	assert.Equal(t, "2025-10-06T17:00:00Z", patch["timestamp"])

	_, err = ParseAssignments([]string{"regularHours=lots"})
	assert.Error(t, err)
	_, err = ParseAssignments([]string{"mode"})
	assert.Error(t, err)
}

func TestDraft(t *testing.T) {
	n, err := Draft(model.LevelDTR, "ts1", model.Patch{"date": "2025-10-07", "regularHours": 4.0})
	require.NoError(t, err)
	dtr := n.(*model.DTR)
	assert.Equal(t, "ts1", dtr.TimesheetID)
	assert.Equal(t, 4.0, dtr.RegularHours)
	assert.Equal(t, "2025-10-07", time.Time(dtr.Date).Format("2006-01-02"))

	n, err = Draft(model.LevelTimesheet, "", model.Patch{"employeeName": "Jose Rizal"})
	require.NoError(t, err)
	assert.Equal(t, model.RootKey, n.ParentKey())
}

type refresher struct{ keys []model.Key }

func (r *refresher) Refresh(_ context.Context, parent model.Key) error {
	r.keys = append(r.keys, parent)
	return nil
}

func TestFollow(t *testing.T) {
	r := &refresher{}
	ctx := context.Background()
	data := func(parent string) json.RawMessage {
		return json.RawMessage(fmt.Sprintf(`{"id":"x","parentId":%q}`, parent))
	}

	require.NoError(t, Follow(ctx, r, v1.Event{Type: "dtr.created", Data: data("ts1")}))
	require.NoError(t, Follow(ctx, r, v1.Event{Type: "timesheet.updated", Data: data("")}))
	require.NoError(t, Follow(ctx, r, v1.Event{Type: "totals.updated", Data: json.RawMessage(`{"timesheetId":"ts1"}`)}))
	require.NoError(t, Follow(ctx, r, v1.Event{Type: "ping"}))

	assert.Equal(t, []model.Key{
		{Level: model.LevelTimesheet, ID: "ts1"},
		model.RootKey,
		model.RootKey,
	}, r.keys)
}
