package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axiapac.com/payroll/apperr"
	"axiapac.com/payroll/model"
)

func tsKey(id string) model.Key  { return model.Key{Level: model.LevelTimesheet, ID: id} }
func dtrKey(id string) model.Key { return model.Key{Level: model.LevelDTR, ID: id} }
func tlKey(id string) model.Key  { return model.Key{Level: model.LevelTimelog, ID: id} }

func setChildren(t *testing.T, s *NodeStore, parent model.Key, children []model.Node) []model.Key {
	t.Helper()
	removed, err := s.SetChildren(parent, children)
	require.NoError(t, err)
	return removed
}

func TestNodeStorePutRejectsReparent(t *testing.T) {
	s := NewNodeStore()
	require.NoError(t, s.Put(&model.DTR{ID: "d1", TimesheetID: "ts1"}))

	err := s.Put(&model.DTR{ID: "d1", TimesheetID: "ts2", Hours: hours(8, 0, 0)})
	assert.ErrorIs(t, err, apperr.ErrInvariantViolation)

	n, ok := s.Get(dtrKey("d1"))
	require.True(t, ok)
	assert.Equal(t, "ts1", n.(*model.DTR).TimesheetID)
	assert.Zero(t, n.(*model.DTR).RegularHours)
}

func TestNodeStoreGetReturnsClone(t *testing.T) {
	s := NewNodeStore()
	require.NoError(t, s.Put(&model.Timesheet{ID: "ts1", EmployeeName: "A"}))

	n, _ := s.Get(tsKey("ts1"))
	n.(*model.Timesheet).EmployeeName = "B"

	again, _ := s.Get(tsKey("ts1"))
	assert.Equal(t, "A", again.(*model.Timesheet).EmployeeName)
}

func TestNodeStoreSetChildren(t *testing.T) {
	s := NewNodeStore()
	assert.Equal(t, LoadUnknown, s.LoadState(tsKey("ts1")))

	t.Run("empty list is loaded", func(t *testing.T) {
		setChildren(t, s, tsKey("ts1"), nil)
		children, state := s.Children(tsKey("ts1"))
		assert.Equal(t, LoadLoaded, state)
		assert.Empty(t, children)
	})

	t.Run("keeps order", func(t *testing.T) {
		setChildren(t, s, tsKey("ts1"), []model.Node{
			&model.DTR{ID: "d2", TimesheetID: "ts1"},
			&model.DTR{ID: "d1", TimesheetID: "ts1"},
		})
		children, _ := s.Children(tsKey("ts1"))
		require.Len(t, children, 2)
		assert.Equal(t, "d2", children[0].Key().ID)
		assert.Equal(t, "d1", children[1].Key().ID)
	})

	t.Run("drops missing children and their descendants", func(t *testing.T) {
		setChildren(t, s, dtrKey("d2"), []model.Node{
			&model.Timelog{ID: "tl1", DtrID: "d2", Mode: model.ModeIn},
		})
		removed := setChildren(t, s, tsKey("ts1"), []model.Node{
			&model.DTR{ID: "d1", TimesheetID: "ts1"},
		})
		assert.ElementsMatch(t, []model.Key{dtrKey("d2"), tlKey("tl1")}, removed)
		_, ok := s.Get(dtrKey("d2"))
		assert.False(t, ok)
		_, ok = s.Get(tlKey("tl1"))
		assert.False(t, ok)
		assert.Equal(t, LoadUnknown, s.LoadState(dtrKey("d2")))
	})

	t.Run("rejects wrong level", func(t *testing.T) {
		_, err := s.SetChildren(tsKey("ts1"), []model.Node{&model.Timelog{ID: "x", DtrID: "ts1"}})
		assert.ErrorIs(t, err, apperr.ErrInvariantViolation)
	})

	t.Run("rejects foreign parent", func(t *testing.T) {
		_, err := s.SetChildren(tsKey("ts1"), []model.Node{&model.DTR{ID: "d9", TimesheetID: "ts9"}})
		assert.ErrorIs(t, err, apperr.ErrInvariantViolation)
		_, ok := s.Get(dtrKey("d9"))
		assert.False(t, ok)
	})

	t.Run("leaf has no children", func(t *testing.T) {
		_, err := s.SetChildren(model.Key{Level: model.LevelClockEvent, ID: "c"}, nil)
		assert.ErrorIs(t, err, apperr.ErrInvariantViolation)
	})
}

func TestNodeStoreAppend(t *testing.T) {
	s := NewNodeStore()

	added, err := s.Append(&model.DTR{ID: "d1", TimesheetID: "ts1"})
	require.NoError(t, err)
	assert.False(t, added, "parent children not loaded")
	_, ok := s.Get(dtrKey("d1"))
	assert.False(t, ok)

	setChildren(t, s, tsKey("ts1"), nil)
	added, err = s.Append(&model.DTR{ID: "d1", TimesheetID: "ts1"})
	require.NoError(t, err)
	assert.True(t, added)

	_, err = s.Append(&model.DTR{ID: "d1", TimesheetID: "ts1"})
	require.NoError(t, err)
	children, _ := s.Children(tsKey("ts1"))
	assert.Len(t, children, 1)
}

func TestNodeStoreRemove(t *testing.T) {
	s := NewNodeStore()
	setChildren(t, s, model.RootKey, []model.Node{&model.Timesheet{ID: "ts1"}})
	setChildren(t, s, tsKey("ts1"), []model.Node{
		&model.DTR{ID: "d1", TimesheetID: "ts1"},
		&model.DTR{ID: "d2", TimesheetID: "ts1"},
	})
	setChildren(t, s, dtrKey("d1"), []model.Node{
		&model.Timelog{ID: "tl1", DtrID: "d1"},
	})

	removed := s.Remove(dtrKey("d1"))
	assert.ElementsMatch(t, []model.Key{dtrKey("d1"), tlKey("tl1")}, removed)

	children, _ := s.Children(tsKey("ts1"))
	require.Len(t, children, 1)
	assert.Equal(t, "d2", children[0].Key().ID)

	t.Run("shallow when children unknown", func(t *testing.T) {
		removed := s.Remove(dtrKey("d2"))
		assert.Equal(t, []model.Key{dtrKey("d2")}, removed)
	})
}
