package engine

import (
	"fmt"
	"slices"
	"sync"

	"axiapac.com/payroll/apperr"
	"axiapac.com/payroll/model"
)

// LoadState is the load state of a parent's children collection.
type LoadState int

const (
	LoadUnknown LoadState = iota
	LoadLoading
	LoadLoaded
)

func (s LoadState) String() string {
	switch s {
	case LoadLoading:
		return "loading"
	case LoadLoaded:
		return "loaded"
	}
	return "unknown"
}

func (s LoadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// NodeStore holds every materialised node keyed by level and id, together
// with the ordered children of each parent whose children are loaded.
// It performs no I/O and hands out clones only.
type NodeStore struct {
	mu       sync.RWMutex
	nodes    map[model.Key]model.Node
	children map[model.Key][]string
	states   map[model.Key]LoadState
}

func NewNodeStore() *NodeStore {
	return &NodeStore{
		nodes:    make(map[model.Key]model.Node),
		children: make(map[model.Key][]string),
		states:   make(map[model.Key]LoadState),
	}
}

func (s *NodeStore) Get(key model.Key) (model.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[key]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Put inserts or replaces a node. It does not touch any children list.
func (s *NodeStore) Put(node model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(node); err != nil {
		return err
	}
	s.nodes[node.Key()] = node.Clone()
	return nil
}

// Append puts node and appends it to its parent's children when those are
// loaded. When they are not loaded the node is not materialised and false
// is returned.
func (s *NodeStore) Append(node model.Node) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(node); err != nil {
		return false, err
	}
	parent := node.ParentKey()
	if s.states[parent] != LoadLoaded {
		return false, nil
	}
	key := node.Key()
	s.nodes[key] = node.Clone()
	if !slices.Contains(s.children[parent], key.ID) {
		s.children[parent] = append(s.children[parent], key.ID)
	}
	return true, nil
}

// SetChildren records the full children of parent and marks them loaded.
// Previously loaded children missing from the new list are removed along
// with their loaded descendants, and their keys are returned.
func (s *NodeStore) SetChildren(parent model.Key, children []model.Node) ([]model.Key, error) {
	childLevel, ok := parent.Level.Child()
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot have children", apperr.ErrInvariantViolation, parent)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range children {
		if c.Key().Level != childLevel {
			return nil, fmt.Errorf("%w: %s under %s", apperr.ErrInvariantViolation, c.Key(), parent)
		}
		if c.ParentKey() != parent {
			return nil, fmt.Errorf("%w: %s claims parent %s, loaded under %s", apperr.ErrInvariantViolation, c.Key(), c.ParentKey(), parent)
		}
		if err := s.check(c); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(children))
	for _, c := range children {
		s.nodes[c.Key()] = c.Clone()
		ids = append(ids, c.Key().ID)
	}
	var removed []model.Key
	for _, old := range s.children[parent] {
		if !slices.Contains(ids, old) {
			removed = append(removed, s.removeLocked(model.Key{Level: childLevel, ID: old})...)
		}
	}
	s.children[parent] = ids
	s.states[parent] = LoadLoaded
	return removed, nil
}

// Remove deletes key and every loaded descendant, and returns the removed
// keys. Descendants that were never loaded are not tracked and so are not
// visited.
func (s *NodeStore) Remove(key model.Key) []model.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.nodes[key]; ok {
		parent := n.ParentKey()
		s.children[parent] = slices.DeleteFunc(s.children[parent], func(id string) bool { return id == key.ID })
	}
	return s.removeLocked(key)
}

func (s *NodeStore) removeLocked(key model.Key) []model.Key {
	removed := []model.Key{key}
	if childLevel, ok := key.Level.Child(); ok {
		for _, id := range s.children[key] {
			removed = append(removed, s.removeLocked(model.Key{Level: childLevel, ID: id})...)
		}
	}
	delete(s.nodes, key)
	delete(s.children, key)
	delete(s.states, key)
	return removed
}

func (s *NodeStore) LoadState(parent model.Key) LoadState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[parent]
}

func (s *NodeStore) setState(parent model.Key, state LoadState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == LoadUnknown {
		delete(s.states, parent)
		return
	}
	s.states[parent] = state
}

// Children returns the loaded children of parent in order. The slice is nil
// unless the state is LoadLoaded.
func (s *NodeStore) Children(parent model.Key) ([]model.Node, LoadState) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.states[parent]
	if state != LoadLoaded {
		return nil, state
	}
	childLevel, _ := parent.Level.Child()
	out := make([]model.Node, 0, len(s.children[parent]))
	for _, id := range s.children[parent] {
		if n, ok := s.nodes[model.Key{Level: childLevel, ID: id}]; ok {
			out = append(out, n.Clone())
		}
	}
	return out, state
}

// check rejects nodes that would corrupt the tree. Callers hold mu.
func (s *NodeStore) check(node model.Node) error {
	key := node.Key()
	if !key.Level.Valid() || key.ID == "" {
		return fmt.Errorf("%w: invalid key %s", apperr.ErrInvariantViolation, key)
	}
	if existing, ok := s.nodes[key]; ok && existing.ParentKey() != node.ParentKey() {
		return fmt.Errorf("%w: cannot move %s from %s to %s", apperr.ErrInvariantViolation, key, existing.ParentKey(), node.ParentKey())
	}
	return nil
}
