package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"axiapac.com/payroll/apperr"
	"axiapac.com/payroll/model"
)

// Loader fetches one level of children at a time and records them in the
// NodeStore. Concurrent requests for the same parent share one fetch.
type Loader struct {
	store  *NodeStore
	remote Remote
	logger *slog.Logger
	group  singleflight.Group

	// dropped is told about nodes a refetch no longer returns.
	dropped func(parent model.Key, removed []model.Key)
}

func NewLoader(store *NodeStore, remote Remote, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, remote: remote, logger: logger}
}

// EnsureChildrenLoaded returns the children of parent, fetching them only
// when they are not loaded yet.
func (l *Loader) EnsureChildrenLoaded(ctx context.Context, parent model.Key) ([]model.Node, error) {
	if _, ok := parent.Level.Child(); !ok {
		return nil, fmt.Errorf("%w: %s is a leaf", apperr.ErrInvariantViolation, parent)
	}
	if children, state := l.store.Children(parent); state == LoadLoaded {
		return children, nil
	}

	v, err, _ := l.group.Do(parent.String(), func() (any, error) {
		// a flight that finished just before this one started already did the work
		if children, state := l.store.Children(parent); state == LoadLoaded {
			return children, nil
		}

		l.store.setState(parent, LoadLoading)
		nodes, err := l.remote.FetchChildren(ctx, parent)
		if err != nil {
			l.store.setState(parent, LoadUnknown)
			l.logger.Warn("children fetch failed",
				slog.String("parent", parent.String()),
				slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %s: %w", apperr.ErrFetchFailed, parent, err)
		}
		removed, err := l.store.SetChildren(parent, nodes)
		if err != nil {
			l.store.setState(parent, LoadUnknown)
			l.logger.Error("fetched children rejected",
				slog.String("parent", parent.String()),
				slog.String("error", err.Error()))
			return nil, err
		}

		if len(removed) > 0 && l.dropped != nil {
			l.dropped(parent, removed)
		}
		l.recompute(parent)

		l.logger.Debug("children loaded",
			slog.String("parent", parent.String()),
			slog.Int("count", len(nodes)))
		children, _ := l.store.Children(parent)
		return children, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Node), nil
}

// recompute brings a parent's totals in line with its freshly loaded
// children. An empty list yields zero totals.
func (l *Loader) recompute(parent model.Key) {
	childLevel, _ := parent.Level.Child()
	if !model.FeedsParent(childLevel) {
		return
	}
	pn, ok := l.store.Get(parent)
	if !ok {
		return
	}
	agg, ok := pn.(model.Aggregated)
	if !ok {
		return
	}
	children, _ := l.store.Children(parent)
	if err := l.store.Put(model.RecomputeNodes(agg, children)); err != nil {
		l.logger.Error("recompute rejected",
			slog.String("parent", parent.String()),
			slog.String("error", err.Error()))
	}
}

// Invalidate forces the next EnsureChildrenLoaded for parent to fetch again.
// Known nodes are kept and reconciled by that fetch.
func (l *Loader) Invalidate(parent model.Key) {
	l.group.Forget(parent.String())
	if l.store.LoadState(parent) == LoadLoaded {
		l.store.setState(parent, LoadUnknown)
	}
}

// HasChildren answers from loaded children when possible, otherwise asks
// the remote store without loading anything.
func (l *Loader) HasChildren(ctx context.Context, key model.Key) (bool, error) {
	if _, ok := key.Level.Child(); !ok {
		return false, nil
	}
	if children, state := l.store.Children(key); state == LoadLoaded {
		return len(children) > 0, nil
	}
	has, err := l.remote.ProbeHasChildren(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: probe %s: %w", apperr.ErrFetchFailed, key, err)
	}
	return has, nil
}
