package model

import (
	"fmt"
	"strings"
)

// Level is the depth of a node in the timesheet hierarchy.
type Level int

const (
	LevelRoot Level = iota
	LevelTimesheet
	LevelDTR
	LevelTimelog
	LevelClockEvent
)

var levelNames = map[Level]string{
	LevelRoot:       "root",
	LevelTimesheet:  "timesheet",
	LevelDTR:        "dtr",
	LevelTimelog:    "timelog",
	LevelClockEvent: "clockevent",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Valid reports whether l is one of the four entity levels.
func (l Level) Valid() bool {
	return l >= LevelTimesheet && l <= LevelClockEvent
}

// Child returns the level below l. Leaves and unknown levels return false.
func (l Level) Child() (Level, bool) {
	if l < LevelRoot || l >= LevelClockEvent {
		return 0, false
	}
	return l + 1, true
}

// Parent returns the level above l. The root has no parent.
func (l Level) Parent() (Level, bool) {
	if l <= LevelRoot || l > LevelClockEvent {
		return 0, false
	}
	return l - 1, true
}

func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Key identifies a node. The root key has an empty ID.
type Key struct {
	Level Level
	ID    string
}

// RootKey is the pseudo parent of every Timesheet.
var RootKey = Key{Level: LevelRoot}

func (k Key) String() string {
	if k.Level == LevelRoot {
		return "root"
	}
	return k.Level.String() + ":" + k.ID
}

// ParentOf returns the key of the parent of a node at level with the given
// parent id. Timesheets always hang off the root.
func ParentOf(level Level, parentID string) (Key, bool) {
	p, ok := level.Parent()
	if !ok {
		return Key{}, false
	}
	if p == LevelRoot {
		return RootKey, true
	}
	return Key{Level: p, ID: parentID}, true
}
