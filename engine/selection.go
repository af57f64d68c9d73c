package engine

import (
	"slices"
	"sync"

	"axiapac.com/payroll/model"
)

// Selection tracks the selected node, the selected node at each level above
// it, and whether the selected node has children.
type Selection struct {
	mu          sync.RWMutex
	current     *model.Key
	path        map[model.Level]string
	hasChildren bool
	generation  uint64
}

func NewSelection() *Selection {
	return &Selection{path: make(map[model.Level]string)}
}

// Select makes key the current selection. The per-level path is rebuilt
// from key and its ancestors, so levels with no known ancestor are left
// empty. hasChildren is pessimistically true until resolve is called with
// the returned generation.
func (s *Selection) Select(key model.Key, ancestors ...model.Key) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key
	s.current = &k
	clear(s.path)
	for _, a := range ancestors {
		if a.Level.Valid() && a.Level < key.Level {
			s.path[a.Level] = a.ID
		}
	}
	s.path[key.Level] = key.ID
	s.hasChildren = true
	s.generation++
	return s.generation
}

// resolve records a has-children answer unless the selection moved on.
func (s *Selection) resolve(generation uint64, has bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation || s.current == nil {
		return false
	}
	s.hasChildren = has
	return true
}

func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.hasChildren = false
	clear(s.path)
	s.generation++
}

func (s *Selection) Current() (model.Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.Key{}, false
	}
	return *s.current, true
}

// SelectedAt returns the id selected at level, if any.
func (s *Selection) SelectedAt(level model.Level) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.path[level]
	return id, ok
}

func (s *Selection) HasChildren() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasChildren
}

// forget clears the selection when the current node or one of the selected
// ancestors was removed.
func (s *Selection) forget(removed []model.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	hit := false
	for level, id := range s.path {
		if slices.Contains(removed, model.Key{Level: level, ID: id}) {
			hit = true
			for l := range s.path {
				if l >= level {
					delete(s.path, l)
				}
			}
		}
	}
	if s.current != nil && (hit || slices.Contains(removed, *s.current)) {
		s.current = nil
		s.hasChildren = false
		s.generation++
		return true
	}
	return hit
}
