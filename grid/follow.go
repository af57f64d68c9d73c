package grid

import (
	"context"
	"encoding/json"
	"strings"

	v1 "axiapac.com/payroll/client/v1"
	"axiapac.com/payroll/model"
)

type Refresher interface {
	Refresh(ctx context.Context, parent model.Key) error
}

// Follow applies a change event from the server to e by refreshing the
// parent whose children changed. Totals events refresh the Timesheet list.
func Follow(ctx context.Context, e Refresher, ev v1.Event) error {
	if ev.Type == "totals.updated" {
		return e.Refresh(ctx, model.RootKey)
	}

	levelName, _, ok := strings.Cut(ev.Type, ".")
	if !ok {
		return nil
	}
	level, err := model.ParseLevel(levelName)
	if err != nil || !level.Valid() {
		return nil
	}
	var change struct {
		ParentID string `json:"parentId"`
	}
	if err := json.Unmarshal(ev.Data, &change); err != nil {
		return err
	}
	parent, ok := model.ParentOf(level, change.ParentID)
	if !ok {
		return nil
	}
	return e.Refresh(ctx, parent)
}
