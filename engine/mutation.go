package engine

import (
	"context"
	"fmt"
	"log/slog"

	"axiapac.com/payroll/apperr"
	"axiapac.com/payroll/model"
)

// pendingTotals is a client-side projection of a parent's totals shown
// while a mutation is in flight. It never touches the NodeStore.
type pendingTotals struct {
	token uint64
	hours model.Hours
}

// Create sends a draft to the store and merges the canonical node and the
// updated ancestors. The new node is only materialised when its parent's
// children are loaded.
func (e *Engine) Create(ctx context.Context, draft model.Node) (*model.MutationResult, error) {
	key := draft.Key()
	if !key.Level.Valid() {
		return nil, e.fault(fmt.Errorf("%w: cannot create %s", apperr.ErrInvariantViolation, key.Level))
	}

	token := e.project(draft.ParentKey(), func(siblings []model.Node) []model.Node {
		return append(siblings, draft)
	})
	res, err := e.remote.CreateEntity(ctx, draft)
	e.settle(draft.ParentKey(), token)
	if err != nil {
		return nil, e.failed("create", key, err)
	}
	if res == nil || res.Entity == nil {
		return nil, e.fault(fmt.Errorf("%w: create %s returned no entity", apperr.ErrInvariantViolation, key.Level))
	}

	if _, err := e.store.Append(res.Entity); err != nil {
		return res, e.fault(err)
	}
	err = e.mergeAncestors(res.Ancestors)
	e.notify()
	return res, err
}

// Update sends a patch for one node and merges the canonical node and the
// updated ancestors. The selection keeps pointing at the node.
func (e *Engine) Update(ctx context.Context, level model.Level, id string, patch model.Patch) (*model.MutationResult, error) {
	key := model.Key{Level: level, ID: id}
	if !level.Valid() {
		return nil, e.fault(fmt.Errorf("%w: cannot update %s", apperr.ErrInvariantViolation, key))
	}

	current, known := e.store.Get(key)
	if known {
		if field, ok := model.ParentField[level]; ok {
			if v, ok := patch[field]; ok && v != current.ParentKey().ID {
				return nil, e.fault(fmt.Errorf("%w: cannot move %s", apperr.ErrInvariantViolation, key))
			}
		}
	}

	var token uint64
	var parent model.Key
	if known {
		parent = current.ParentKey()
		token = e.project(parent, func(siblings []model.Node) []model.Node {
			out := make([]model.Node, 0, len(siblings))
			for _, s := range siblings {
				if a, ok := s.(model.Aggregated); ok && s.Key() == key {
					if hours, changed := patch.ApplyHours(a.Totals()); changed {
						s = a.WithTotals(hours)
					}
				}
				out = append(out, s)
			}
			return out
		})
	}
	res, err := e.remote.UpdateEntity(ctx, key, patch)
	e.settle(parent, token)
	if err != nil {
		return nil, e.failed("update", key, err)
	}
	if res == nil || res.Entity == nil {
		return nil, e.fault(fmt.Errorf("%w: update %s returned no entity", apperr.ErrInvariantViolation, key))
	}

	if err := e.merge(res.Entity); err != nil {
		return res, e.fault(err)
	}
	err = e.mergeAncestors(res.Ancestors)
	e.notify()
	return res, err
}

// Delete removes a node. Nodes with loaded children are refused before any
// request is made; the store re-checks the rule itself.
func (e *Engine) Delete(ctx context.Context, level model.Level, id string) (*model.MutationResult, error) {
	key := model.Key{Level: level, ID: id}
	if !level.Valid() {
		return nil, e.fault(fmt.Errorf("%w: cannot delete %s", apperr.ErrInvariantViolation, key))
	}
	if children, state := e.store.Children(key); state == LoadLoaded && len(children) > 0 {
		return nil, fmt.Errorf("%w: %s has %d children", apperr.ErrHasChildren, key, len(children))
	}

	var token uint64
	var parent model.Key
	current, known := e.store.Get(key)
	if known {
		parent = current.ParentKey()
		token = e.project(parent, func(siblings []model.Node) []model.Node {
			out := make([]model.Node, 0, len(siblings))
			for _, s := range siblings {
				if s.Key() != key {
					out = append(out, s)
				}
			}
			return out
		})
	}
	res, err := e.remote.DeleteEntity(ctx, key)
	e.settle(parent, token)
	if err != nil {
		return nil, e.failed("delete", key, err)
	}
	if res == nil {
		res = &model.MutationResult{}
	}
	res.RemovedID = id

	removed := e.store.Remove(key)
	if known {
		e.expansion.forget(removed, parent)
	} else {
		e.expansion.forget(removed, model.Key{})
	}
	e.selection.forget(removed)
	err = e.mergeAncestors(res.Ancestors)
	e.notify()
	return res, err
}

// merge overwrites a known node, or adds an unknown one under a loaded parent.
func (e *Engine) merge(n model.Node) error {
	if _, ok := e.store.Get(n.Key()); ok {
		return e.store.Put(n)
	}
	_, err := e.store.Append(n)
	return err
}

// mergeAncestors applies server snapshots of ancestors. They take precedence
// over any client-side recompute because they include unloaded siblings.
func (e *Engine) mergeAncestors(ancestors []model.Node) error {
	for _, a := range ancestors {
		if err := e.merge(a); err != nil {
			return e.fault(err)
		}
	}
	return nil
}

// project records the totals the parent would have after edit is applied to
// its loaded children. It returns 0 when no projection applies.
func (e *Engine) project(parent model.Key, edit func([]model.Node) []model.Node) uint64 {
	if parent.Level != model.LevelTimesheet {
		return 0
	}
	pn, ok := e.store.Get(parent)
	if !ok {
		return 0
	}
	agg, ok := pn.(model.Aggregated)
	if !ok {
		return 0
	}
	children, state := e.store.Children(parent)
	if state != LoadLoaded {
		return 0
	}
	projected := model.RecomputeNodes(agg, edit(children))

	e.mu.Lock()
	e.nextToken++
	token := e.nextToken
	e.pending[parent] = pendingTotals{token: token, hours: projected.Totals()}
	e.mu.Unlock()
	e.notify()
	return token
}

// settle drops the projection made with token once the response arrived.
func (e *Engine) settle(parent model.Key, token uint64) {
	if token == 0 {
		return
	}
	e.mu.Lock()
	if p, ok := e.pending[parent]; ok && p.token == token {
		delete(e.pending, parent)
	}
	e.mu.Unlock()
}

func (e *Engine) pendingFor(key model.Key) (model.Hours, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pending[key]
	return p.hours, ok
}

func (e *Engine) failed(op string, key model.Key, err error) error {
	e.logger.Warn("mutation failed",
		slog.String("op", op),
		slog.String("node", key.String()),
		slog.String("error", err.Error()))
	e.notify()
	return fmt.Errorf("%w: %s %s: %w", apperr.ErrMutationFailed, op, key, err)
}
