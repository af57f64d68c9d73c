package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"axiapac.com/payroll/apperr"
	"axiapac.com/payroll/model"
)

var errOffline = errors.New("offline")

// fakeRemote is an in-memory store. gate, when set, blocks FetchChildren
// until it is closed.
type fakeRemote struct {
	mu       sync.Mutex
	nodes    map[model.Key]model.Node
	order    []model.Key
	seq      int
	fetchErr error
	probeErr error
	writeErr error
	gate     chan struct{}

	fetches atomic.Int32
	probes  atomic.Int32
	writes  atomic.Int32
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{nodes: make(map[model.Key]model.Node)}
}

func (f *fakeRemote) add(n model.Node) model.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[n.Key()] = n.Clone()
	f.order = append(f.order, n.Key())
	return n
}

func (f *fakeRemote) get(key model.Key) model.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nodes[key]; ok {
		return n.Clone()
	}
	return nil
}

func (f *fakeRemote) childrenLocked(parent model.Key) []model.Node {
	var out []model.Node
	for _, k := range f.order {
		if n, ok := f.nodes[k]; ok && n.ParentKey() == parent {
			out = append(out, n.Clone())
		}
	}
	return out
}

func (f *fakeRemote) FetchChildren(ctx context.Context, parent model.Key) ([]model.Node, error) {
	f.fetches.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.childrenLocked(parent), nil
}

func (f *fakeRemote) ProbeHasChildren(ctx context.Context, key model.Key) (bool, error) {
	f.probes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeErr != nil {
		return false, f.probeErr
	}
	return len(f.childrenLocked(key)) > 0, nil
}

func (f *fakeRemote) CreateEntity(ctx context.Context, draft model.Node) (*model.MutationResult, error) {
	f.writes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.seq++
	n := draft.Clone()
	id := fmt.Sprintf("new-%d", f.seq)
	switch v := n.(type) {
	case *model.Timesheet:
		v.ID = id
	case *model.DTR:
		v.ID = id
	case *model.Timelog:
		v.ID = id
	case *model.ClockEvent:
		v.ID = id
	}
	f.nodes[n.Key()] = n
	f.order = append(f.order, n.Key())
	return &model.MutationResult{Entity: n.Clone(), Ancestors: f.recomputeLocked(n.ParentKey())}, nil
}

func (f *fakeRemote) UpdateEntity(ctx context.Context, key model.Key, patch model.Patch) (*model.MutationResult, error) {
	f.writes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	n, ok := f.nodes[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if a, ok := n.(model.Aggregated); ok {
		if h, changed := patch.ApplyHours(a.Totals()); changed {
			n = a.WithTotals(h)
		}
	}
	if tl, ok := n.(*model.Timelog); ok {
		if mode, ok := patch["mode"].(string); ok {
			tl.Mode = mode
		}
	}
	f.nodes[key] = n
	return &model.MutationResult{Entity: n.Clone(), Ancestors: f.recomputeLocked(n.ParentKey())}, nil
}

func (f *fakeRemote) DeleteEntity(ctx context.Context, key model.Key) (*model.MutationResult, error) {
	f.writes.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	n, ok := f.nodes[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if len(f.childrenLocked(key)) > 0 {
		return nil, apperr.ErrHasChildren
	}
	delete(f.nodes, key)
	f.order = slices.DeleteFunc(f.order, func(k model.Key) bool { return k == key })
	return &model.MutationResult{RemovedID: key.ID, Ancestors: f.recomputeLocked(n.ParentKey())}, nil
}

// recomputeLocked returns the Timesheet whose totals changed, if any.
func (f *fakeRemote) recomputeLocked(parent model.Key) []model.Node {
	if parent.Level != model.LevelTimesheet {
		return nil
	}
	ts, ok := f.nodes[parent].(model.Aggregated)
	if !ok {
		return nil
	}
	updated := model.RecomputeNodes(ts, f.childrenLocked(parent))
	f.nodes[parent] = updated
	return []model.Node{updated.Clone()}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hours(regular, overtime, night float64) model.Hours {
	return model.Hours{RegularHours: regular, OvertimeHours: overtime, NightDifferential: night}
}

// seedRemote holds the tree used across the engine tests:
//
//	ts1 (14/3/1)
//	  d1 (8/2/0)
//	    tl1 (in)
//	      ce1
//	  d2 (6/1/1)
//	ts2 (0/0/0)
func seedRemote() *fakeRemote {
	f := newFakeRemote()
	f.add(&model.Timesheet{ID: "ts1", EmployeeName: "Juan Dela Cruz", Hours: hours(14, 3, 1)})
	f.add(&model.Timesheet{ID: "ts2", EmployeeName: "Maria Clara"})
	f.add(&model.DTR{ID: "d1", TimesheetID: "ts1", Hours: hours(8, 2, 0)})
	f.add(&model.DTR{ID: "d2", TimesheetID: "ts1", Hours: hours(6, 1, 1)})
	f.add(&model.Timelog{ID: "tl1", DtrID: "d1", Mode: model.ModeIn})
	f.add(&model.ClockEvent{ID: "ce1", TimelogID: "tl1"})
	return f
}
