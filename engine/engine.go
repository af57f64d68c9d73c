// Package engine keeps a partially loaded Timesheet → DTR → Timelog →
// ClockEvent tree consistent with a remote store. It loads each level on
// demand, keeps one expanded node per sibling group, tracks the selection,
// and merges the results of create, update and delete without refetching
// the tree.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"axiapac.com/payroll/apperr"
	"axiapac.com/payroll/model"
)

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine is the headless core behind a timesheet grid. It is safe for
// concurrent use; no lock is held while talking to the remote store.
type Engine struct {
	remote    Remote
	logger    *slog.Logger
	store     *NodeStore
	loader    *Loader
	expansion *Expansion
	selection *Selection

	mu        sync.Mutex
	pending   map[model.Key]pendingTotals
	nextToken uint64
	listeners map[uint64]func(Snapshot)
	nextSub   uint64
}

func New(remote Remote, opts ...Option) *Engine {
	e := &Engine{
		remote:    remote,
		logger:    slog.Default(),
		store:     NewNodeStore(),
		expansion: NewExpansion(),
		selection: NewSelection(),
		pending:   make(map[model.Key]pendingTotals),
		listeners: make(map[uint64]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.loader = NewLoader(e.store, remote, e.logger)
	e.loader.dropped = e.dropped
	return e
}

// dropped forgets expansion and selection state of nodes a refetch removed.
func (e *Engine) dropped(parent model.Key, removed []model.Key) {
	e.expansion.forget(removed, parent)
	e.selection.forget(removed)
}

// ancestors walks the known parents of key up to the root.
func (e *Engine) ancestors(key model.Key) []model.Key {
	var out []model.Key
	for {
		n, ok := e.store.Get(key)
		if !ok {
			return out
		}
		key = n.ParentKey()
		if key == model.RootKey {
			return out
		}
		out = append(out, key)
	}
}

func (e *Engine) Store() *NodeStore { return e.store }
func (e *Engine) Loader() *Loader { return e.loader }
func (e *Engine) Expansion() *Expansion { return e.expansion }
func (e *Engine) Selection() *Selection { return e.selection }

// LoadTimesheets loads the top level of the tree.
func (e *Engine) LoadTimesheets(ctx context.Context) ([]model.Node, error) {
	nodes, err := e.loader.EnsureChildrenLoaded(ctx, model.RootKey)
	e.notify()
	return nodes, err
}

// Expand expands nodeID within its sibling group and loads its children.
// Expanding the already expanded node still retries a failed load.
func (e *Engine) Expand(ctx context.Context, level model.Level, parentID, nodeID string) error {
	if _, ok := level.Child(); !ok || !level.Valid() {
		return e.fault(fmt.Errorf("%w: %s nodes cannot be expanded", apperr.ErrInvariantViolation, level))
	}
	key := model.Key{Level: level, ID: nodeID}
	if n, ok := e.store.Get(key); ok && n.ParentKey().ID != parentID {
		return e.fault(fmt.Errorf("%w: %s is under %s, not %q", apperr.ErrInvariantViolation, key, n.ParentKey(), parentID))
	}
	if e.expansion.Expand(level, parentID, nodeID) {
		e.notify()
	}
	_, err := e.loader.EnsureChildrenLoaded(ctx, key)
	e.notify()
	return err
}

func (e *Engine) Collapse(level model.Level, parentID string) {
	if e.expansion.Collapse(level, parentID) {
		e.notify()
	}
}

func (e *Engine) IsExpanded(level model.Level, parentID, nodeID string) bool {
	return e.expansion.IsExpanded(level, parentID, nodeID)
}

// Invalidate drops the loaded state of parent so the next expansion refetches.
func (e *Engine) Invalidate(parent model.Key) {
	e.loader.Invalidate(parent)
	e.notify()
}

// Refresh refetches the children of parent when they are on screen, that
// is for the root and for expanded nodes. Other parents are only
// invalidated and load again on their next expansion.
func (e *Engine) Refresh(ctx context.Context, parent model.Key) error {
	e.loader.Invalidate(parent)
	visible := parent == model.RootKey
	if n, ok := e.store.Get(parent); ok && !visible {
		visible = e.expansion.IsExpanded(parent.Level, n.ParentKey().ID, parent.ID)
	}
	if !visible {
		e.notify()
		return nil
	}
	_, err := e.loader.EnsureChildrenLoaded(ctx, parent)
	e.notify()
	return err
}

// Select selects a node and then probes whether it has children. A failed
// probe leaves hasChildren true so deletes stay blocked; the error is
// returned for display only.
func (e *Engine) Select(ctx context.Context, key model.Key) error {
	if !key.Level.Valid() {
		return e.fault(fmt.Errorf("%w: cannot select %s", apperr.ErrInvariantViolation, key))
	}
	gen := e.selection.Select(key, e.ancestors(key)...)
	e.notify()

	has, err := e.loader.HasChildren(ctx, key)
	if err != nil {
		e.logger.Warn("has-children probe failed",
			slog.String("node", key.String()),
			slog.String("error", err.Error()))
		has = true
	}
	if e.selection.resolve(gen, has) {
		e.notify()
	}
	return err
}

func (e *Engine) ClearSelection() {
	e.selection.Clear()
	e.notify()
}

// CanDelete reports whether the selected node may be deleted.
func (e *Engine) CanDelete() bool {
	if _, ok := e.selection.Current(); !ok {
		return false
	}
	return !e.selection.HasChildren()
}

// AddTarget is where a new node would be added.
type AddTarget struct {
	Level    model.Level `json:"level"`
	ParentID string      `json:"parentId"`
	AsChild  bool        `json:"asChild"`
}

// AddTarget returns a child slot when the selected node is expanded and a
// sibling slot otherwise. Without a selection a new Timesheet is proposed.
func (e *Engine) AddTarget() AddTarget {
	key, ok := e.selection.Current()
	if !ok {
		return AddTarget{Level: model.LevelTimesheet}
	}
	node, known := e.store.Get(key)
	parentID := ""
	if known {
		parentID = node.ParentKey().ID
	}
	if child, ok := key.Level.Child(); ok && e.expansion.IsExpanded(key.Level, parentID, key.ID) {
		return AddTarget{Level: child, ParentID: key.ID, AsChild: true}
	}
	return AddTarget{Level: key.Level, ParentID: parentID}
}

// Subscribe registers fn to receive a snapshot after every state change.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.listeners[id] = fn
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

func (e *Engine) notify() {
	e.mu.Lock()
	if len(e.listeners) == 0 {
		e.mu.Unlock()
		return
	}
	fns := make([]func(Snapshot), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	snap := e.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

// fault logs programming-error class failures.
func (e *Engine) fault(err error) error {
	if errors.Is(err, apperr.ErrInvariantViolation) {
		e.logger.Error("invariant violation", slog.String("error", err.Error()))
	}
	return err
}
