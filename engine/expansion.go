package engine

import (
	"slices"
	"sync"

	"axiapac.com/payroll/model"
)

// Expansion tracks which child is expanded under each parent. At most one
// child per parent is expanded; groups are independent of each other and
// collapsing a node leaves the expansion state of its descendants intact.
type Expansion struct {
	mu       sync.RWMutex
	expanded map[model.Key]string
}

func NewExpansion() *Expansion {
	return &Expansion{expanded: make(map[model.Key]string)}
}

// Expand marks nodeID as the expanded child of its parent group and reports
// whether anything changed.
func (e *Expansion) Expand(level model.Level, parentID, nodeID string) bool {
	parent, ok := model.ParentOf(level, parentID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.expanded[parent]; ok && cur == nodeID {
		return false
	}
	e.expanded[parent] = nodeID
	return true
}

// Collapse clears the expanded child of a parent group.
func (e *Expansion) Collapse(level model.Level, parentID string) bool {
	parent, ok := model.ParentOf(level, parentID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.expanded[parent]; !ok {
		return false
	}
	delete(e.expanded, parent)
	return true
}

func (e *Expansion) IsExpanded(level model.Level, parentID, nodeID string) bool {
	parent, ok := model.ParentOf(level, parentID)
	if !ok {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	cur, ok := e.expanded[parent]
	return ok && cur == nodeID
}

// ExpandedChild returns the expanded child id under parent.
func (e *Expansion) ExpandedChild(parent model.Key) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.expanded[parent]
	return id, ok
}

// forget drops state for removed nodes: their own groups and their entry
// in the parent group.
func (e *Expansion) forget(removed []model.Key, parent model.Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, k := range removed {
		delete(e.expanded, k)
	}
	childLevel, ok := parent.Level.Child()
	if !ok {
		return
	}
	if cur, ok := e.expanded[parent]; ok && slices.Contains(removed, model.Key{Level: childLevel, ID: cur}) {
		delete(e.expanded, parent)
	}
}
