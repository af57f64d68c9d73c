// Package grid renders engine snapshots as terminal tables and turns
// command line arguments into engine calls.
package grid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"axiapac.com/payroll/engine"
	"axiapac.com/payroll/model"
	"axiapac.com/payroll/utils"
)

// Render writes the visible tree and the selection state to w.
func Render(w io.Writer, snap engine.Snapshot) {
	bold := color.New(color.Bold)
	selected := color.New(color.FgCyan, color.Bold)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("NODE"), bold.Sprint("DETAIL"), bold.Sprint("REGULAR"), bold.Sprint("OVERTIME"), bold.Sprint("NIGHT"))

	var walk func(nodes []engine.TreeNode, depth int)
	walk = func(nodes []engine.TreeNode, depth int) {
		for _, t := range nodes {
			regular, overtime, night := hourCells(t)
			name := strings.Repeat("  ", depth) + marker(t) + " " + t.Node.Key().String()
			detail := Label(t.Node)
			if t.Selected {
				name, detail = selected.Sprint(name), selected.Sprint(detail)
			}
			tbl.AddRow(name, detail, regular, overtime, night)
			walk(t.Children, depth+1)
		}
	}
	walk(snap.Timesheets, 0)
	tbl.RightAlign(2)
	tbl.RightAlign(3)
	tbl.RightAlign(4)

	_, _ = fmt.Fprintln(w, tbl)

	if snap.RootState != engine.LoadLoaded {
		_, _ = fmt.Fprintf(w, "timesheets %s\n", snap.RootState)
	}
	if s := snap.Selection; s != nil {
		_, _ = fmt.Fprintf(w, "selected %s:%s  has children: %s  can delete: %s\n",
			s.Level, s.ID,
			utils.FormatBoolean(s.HasChildren, "yes", "no"),
			utils.FormatBoolean(s.CanDelete, "yes", "no"))
	}
	a := snap.AddTarget
	_, _ = fmt.Fprintf(w, "add: %s %s\n", a.Level, utils.FormatBoolean(a.AsChild, "under "+a.ParentID, "beside"))
}

func marker(t engine.TreeNode) string {
	if _, ok := t.Level.Child(); !ok {
		return "·"
	}
	if !t.Expanded {
		return "▸"
	}
	if t.ChildState == engine.LoadLoading {
		return "…"
	}
	return "▾"
}

// hourCells shows pending totals with a trailing asterisk.
func hourCells(t engine.TreeNode) (string, string, string) {
	a, ok := t.Node.(model.Aggregated)
	if !ok {
		return "", "", ""
	}
	h, suffix := a.Totals(), ""
	if t.Pending != nil {
		h, suffix = *t.Pending, "*"
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) + suffix }
	return f(h.RegularHours), f(h.OvertimeHours), f(h.NightDifferential)
}

// Label is the human readable summary of a node.
func Label(n model.Node) string {
	switch v := n.(type) {
	case *model.Timesheet:
		parts := utils.Filter([]string{v.EmployeeName, v.PayPeriod, v.Detachment, v.Shift}, func(s string) bool { return s != "" })
		return strings.Join(parts, " / ")
	case *model.DTR:
		return time.Time(v.Date).Format("Mon 2006-01-02")
	case *model.Timelog:
		return v.Mode + " " + v.Timestamp.Format("15:04")
	case *model.ClockEvent:
		return v.ClockTime.Format("2006-01-02 15:04:05")
	}
	return ""
}

// ParseAssignments turns field=value pairs into a patch. Hour fields are
// numbers and everything else is kept as text.
func ParseAssignments(args []string) (model.Patch, error) {
	patch := make(model.Patch, len(args))
	for _, arg := range args {
		field, value, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		switch field {
		case "regularHours", "overtimeHours", "nightDifferential":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("%s must be a number", field)
			}
			patch[field] = v
		case "timestamp", "clockTime":
			t, err := utils.ParseISOTime(value)
			if err != nil {
				return nil, err
			}
			patch[field] = t.Format(time.RFC3339)
		default:
			patch[field] = value
		}
	}
	return patch, nil
}

// Draft builds a new node of level under parentID from field values.
func Draft(level model.Level, parentID string, fields model.Patch) (model.Node, error) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	if pf, ok := model.ParentField[level]; ok {
		body[pf] = parentID
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return model.Decode(level, raw)
}

// Open expands the nodes along path, a slash separated list of ids from a
// Timesheet down, and returns the key of the last one. The last node is
// expanded too unless it is a leaf.
func Open(ctx context.Context, e *engine.Engine, path string) (model.Key, error) {
	if _, err := e.LoadTimesheets(ctx); err != nil {
		return model.Key{}, err
	}
	ids := utils.Filter(strings.Split(path, "/"), func(s string) bool { return s != "" })
	key := model.RootKey
	for i, id := range ids {
		level := model.LevelTimesheet + model.Level(i)
		if !level.Valid() {
			return model.Key{}, fmt.Errorf("path %q is deeper than the hierarchy", path)
		}
		parentID := key.ID
		key = model.Key{Level: level, ID: id}
		if _, ok := e.Store().Get(key); !ok {
			return model.Key{}, fmt.Errorf("%s not found under %s", key, utils.FormatBoolean(parentID == "", "root", parentID))
		}
		if _, ok := level.Child(); !ok {
			break
		}
		if err := e.Expand(ctx, level, parentID, id); err != nil {
			return model.Key{}, err
		}
	}
	return key, nil
}
