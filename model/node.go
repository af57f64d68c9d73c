package model

import (
	"encoding/json"
	"fmt"
)

// Node is any entity of the hierarchy.
type Node interface {
	Key() Key
	ParentKey() Key
	Clone() Node
}

// Aggregated is a node carrying hour totals (Timesheet and DTR).
type Aggregated interface {
	Node
	Totals() Hours
	WithTotals(Hours) Aggregated
}

// New returns an empty entity for level.
func New(level Level) (Node, error) {
	switch level {
	case LevelTimesheet:
		return &Timesheet{}, nil
	case LevelDTR:
		return &DTR{}, nil
	case LevelTimelog:
		return &Timelog{}, nil
	case LevelClockEvent:
		return &ClockEvent{}, nil
	}
	return nil, fmt.Errorf("no entity for level %s", level)
}

// Decode unmarshals raw into the entity type of level.
func Decode(level Level, raw []byte) (Node, error) {
	n, err := New(level)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, n); err != nil {
		return nil, fmt.Errorf("decode %s: %w", level, err)
	}
	return n, nil
}

// DecodeList unmarshals a JSON array of entities of one level.
func DecodeList(level Level, raw []byte) ([]Node, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s list: %w", level, err)
	}
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		n, err := Decode(level, item)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Envelope carries a node together with its level on the wire.
type Envelope struct {
	Level Level
	Node  Node
}

func Wrap(n Node) Envelope {
	return Envelope{Level: n.Key().Level, Node: n}
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Level Level `json:"level"`
		Node  Node  `json:"node"`
	}{e.Level, e.Node})
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var aux struct {
		Level Level           `json:"level"`
		Node  json.RawMessage `json:"node"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	n, err := Decode(aux.Level, aux.Node)
	if err != nil {
		return err
	}
	e.Level = aux.Level
	e.Node = n
	return nil
}

// MutationResult is what the store returns for create, update and delete.
// Entity is nil for deletes. Ancestors hold every ancestor whose aggregate
// the store recomputed.
type MutationResult struct {
	Entity    Node
	RemovedID string
	Ancestors []Node
}

type mutationWire struct {
	Entity    *Envelope  `json:"entity,omitempty"`
	RemovedID string     `json:"removedId,omitempty"`
	Ancestors []Envelope `json:"ancestors"`
}

func (r MutationResult) MarshalJSON() ([]byte, error) {
	w := mutationWire{RemovedID: r.RemovedID, Ancestors: make([]Envelope, 0, len(r.Ancestors))}
	if r.Entity != nil {
		env := Wrap(r.Entity)
		w.Entity = &env
	}
	for _, a := range r.Ancestors {
		w.Ancestors = append(w.Ancestors, Wrap(a))
	}
	return json.Marshal(w)
}

func (r *MutationResult) UnmarshalJSON(b []byte) error {
	var w mutationWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	r.RemovedID = w.RemovedID
	r.Entity = nil
	if w.Entity != nil {
		r.Entity = w.Entity.Node
	}
	r.Ancestors = make([]Node, 0, len(w.Ancestors))
	for _, a := range w.Ancestors {
		r.Ancestors = append(r.Ancestors, a.Node)
	}
	return nil
}
