package engine

import (
	"axiapac.com/payroll/model"
)

// TreeNode is one node of the visible tree. Children are only filled in for
// expanded nodes whose children are loaded.
type TreeNode struct {
	Level      model.Level  `json:"level"`
	Node       model.Node   `json:"node"`
	Expanded   bool         `json:"expanded"`
	Selected   bool         `json:"selected"`
	ChildState LoadState    `json:"childState"`
	Pending    *model.Hours `json:"pending,omitempty"`
	Children   []TreeNode   `json:"children,omitempty"`
}

type SelectionState struct {
	Level       model.Level `json:"level"`
	ID          string      `json:"id"`
	HasChildren bool        `json:"hasChildren"`
	CanDelete   bool        `json:"canDelete"`
}

// Snapshot is a read-only view of the engine for rendering.
type Snapshot struct {
	RootState  LoadState       `json:"rootState"`
	Timesheets []TreeNode      `json:"timesheets"`
	Selection  *SelectionState `json:"selection,omitempty"`
	AddTarget  AddTarget       `json:"addTarget"`
}

// Snapshot builds the visible tree. Components are read one at a time so
// the result may straddle a concurrent change, which the next notification
// corrects.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		RootState: e.store.LoadState(model.RootKey),
		AddTarget: e.AddTarget(),
	}
	current, selected := e.selection.Current()
	if selected {
		has := e.selection.HasChildren()
		snap.Selection = &SelectionState{
			Level:       current.Level,
			ID:          current.ID,
			HasChildren: has,
			CanDelete:   !has,
		}
	}
	roots, _ := e.store.Children(model.RootKey)
	snap.Timesheets = e.tree(roots, current, selected)
	return snap
}

func (e *Engine) tree(nodes []model.Node, current model.Key, selected bool) []TreeNode {
	out := make([]TreeNode, 0, len(nodes))
	for _, n := range nodes {
		key := n.Key()
		parent := n.ParentKey()
		t := TreeNode{
			Level:    key.Level,
			Node:     n,
			Expanded: e.expansion.IsExpanded(key.Level, parent.ID, key.ID),
			Selected: selected && current == key,
		}
		if _, ok := key.Level.Child(); ok {
			var children []model.Node
			children, t.ChildState = e.store.Children(key)
			if t.Expanded && t.ChildState == LoadLoaded {
				t.Children = e.tree(children, current, selected)
			}
		}
		if h, ok := e.pendingFor(key); ok {
			t.Pending = &h
		}
		out = append(out, t)
	}
	return out
}
