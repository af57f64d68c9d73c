package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"axiapac.com/payroll/apperr"
)

// Patch is a flat set of field changes keyed by JSON field name.
type Patch map[string]any

// ParentField is the JSON name of the parent id field for each level.
var ParentField = map[Level]string{
	LevelDTR:        "timesheetId",
	LevelTimelog:    "dtrId",
	LevelClockEvent: "timelogId",
}

var hourFields = []string{"regularHours", "overtimeHours", "nightDifferential"}

// Editable lists the JSON fields a patch may change at each level.
var Editable = map[Level][]string{
	LevelTimesheet:  append([]string{"employeeName", "payPeriod", "detachment", "shift"}, hourFields...),
	LevelDTR:        append([]string{"date"}, hourFields...),
	LevelTimelog:    {"mode", "timestamp"},
	LevelClockEvent: {"clockTime"},
}

// Apply returns a copy of n with p overlaid. Unknown fields fail with
// ErrValidation and a parent id change fails with ErrInvariantViolation.
// Restating the current parent id is allowed.
func (p Patch) Apply(n Node) (Node, error) {
	key := n.Key()
	clean := make(Patch, len(p))
	for field, v := range p {
		if pf, ok := ParentField[key.Level]; ok && field == pf {
			if fmt.Sprint(v) != n.ParentKey().ID {
				return nil, fmt.Errorf("%w: cannot move %s", apperr.ErrInvariantViolation, key)
			}
			continue
		}
		if !slices.Contains(Editable[key.Level], field) {
			return nil, fmt.Errorf("%w: field %q cannot be changed on %s", apperr.ErrValidation, field, key.Level)
		}
		clean[field] = v
	}

	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	out := n.Clone()
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	return out, nil
}

// ApplyHours overlays any hour fields present in p onto base.
func (p Patch) ApplyHours(base Hours) (Hours, bool) {
	changed := false
	if v, ok := toFloat(p["regularHours"]); ok {
		base.RegularHours = v
		changed = true
	}
	if v, ok := toFloat(p["overtimeHours"]); ok {
		base.OvertimeHours = v
		changed = true
	}
	if v, ok := toFloat(p["nightDifferential"]); ok {
		base.NightDifferential = v
		changed = true
	}
	return base, changed
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
