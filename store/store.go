// Package store persists the timesheet hierarchy with gorm and keeps the
// Timesheet totals in step with its DTRs.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"axiapac.com/payroll/apperr"
	"axiapac.com/payroll/model"
)

type table struct {
	parentColumn string
	order        string
}

var tables = map[model.Level]table{
	model.LevelTimesheet:  {order: "created_at, id"},
	model.LevelDTR:        {parentColumn: "timesheet_id", order: "date, created_at, id"},
	model.LevelTimelog:    {parentColumn: "dtr_id", order: "timestamp, id"},
	model.LevelClockEvent: {parentColumn: "timelog_id", order: "clock_time, id"},
}

type Store struct {
	db       *gorm.DB
	validate *validator.Validate
	logger   *slog.Logger
}

func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Store{db: db, validate: v, logger: logger}
}

// FetchChildren lists the children of parent in display order.
func (s *Store) FetchChildren(ctx context.Context, parent model.Key) ([]model.Node, error) {
	childLevel, ok := parent.Level.Child()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no children", apperr.ErrInvariantViolation, parent)
	}
	db := s.db.WithContext(ctx)
	if parent != model.RootKey {
		if _, err := load(db, parent); err != nil {
			return nil, err
		}
	}
	return list(childQuery(db, childLevel, parent.ID), childLevel)
}

// ProbeHasChildren reports whether key has at least one child without
// loading them.
func (s *Store) ProbeHasChildren(ctx context.Context, key model.Key) (bool, error) {
	childLevel, ok := key.Level.Child()
	if !ok {
		return false, nil
	}
	return hasChildren(s.db.WithContext(ctx), childLevel, key.ID)
}

// CreateEntity validates and inserts draft under its parent. A new id is
// generated unless the draft carries one.
func (s *Store) CreateEntity(ctx context.Context, draft model.Node) (*model.MutationResult, error) {
	key := draft.Key()
	if !key.Level.Valid() {
		return nil, fmt.Errorf("%w: cannot create %s", apperr.ErrInvariantViolation, key.Level)
	}
	entity := draft.Clone()
	if key.ID == "" {
		setID(entity, uuid.NewString())
	}
	if err := s.validate.Struct(entity); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}

	res := &model.MutationResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if parent := entity.ParentKey(); parent != model.RootKey {
			if _, err := load(tx, parent); err != nil {
				return err
			}
		}
		if err := tx.Create(entity).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", key.Level, err)
		}
		created, err := load(tx, entity.Key())
		if err != nil {
			return err
		}
		res.Entity = created
		res.Ancestors, err = s.ancestors(tx, created)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("entity created", slog.String("node", res.Entity.Key().String()))
	return res, nil
}

// UpdateEntity applies patch to an existing entity. Concurrent updates are
// not versioned; the last one to commit wins.
func (s *Store) UpdateEntity(ctx context.Context, key model.Key, patch model.Patch) (*model.MutationResult, error) {
	if !key.Level.Valid() {
		return nil, fmt.Errorf("%w: cannot update %s", apperr.ErrInvariantViolation, key)
	}

	res := &model.MutationResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := load(tx, key)
		if err != nil {
			return err
		}
		updated, err := patch.Apply(current)
		if err != nil {
			return err
		}
		if err := s.validate.Struct(updated); err != nil {
			return fmt.Errorf("%w: %w", apperr.ErrValidation, err)
		}
		if err := tx.Save(updated).Error; err != nil {
			return fmt.Errorf("failed to update %s: %w", key, err)
		}
		if res.Entity, err = load(tx, key); err != nil {
			return err
		}
		res.Ancestors, err = s.ancestors(tx, res.Entity)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("entity updated", slog.String("node", key.String()), slog.Int("fields", len(patch)))
	return res, nil
}

// DeleteEntity removes an entity that has no children.
func (s *Store) DeleteEntity(ctx context.Context, key model.Key) (*model.MutationResult, error) {
	if !key.Level.Valid() {
		return nil, fmt.Errorf("%w: cannot delete %s", apperr.ErrInvariantViolation, key)
	}

	res := &model.MutationResult{RemovedID: key.ID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := load(tx, key)
		if err != nil {
			return err
		}
		if childLevel, ok := key.Level.Child(); ok {
			has, err := hasChildren(tx, childLevel, key.ID)
			if err != nil {
				return err
			}
			if has {
				return fmt.Errorf("%w: %s", apperr.ErrHasChildren, key)
			}
		}
		if err := tx.Delete(current).Error; err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
		res.Ancestors, err = s.ancestors(tx, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("entity deleted", slog.String("node", key.String()))
	return res, nil
}

// Get loads a single entity.
func (s *Store) Get(ctx context.Context, key model.Key) (model.Node, error) {
	if !key.Level.Valid() {
		return nil, fmt.Errorf("%w: invalid key %s", apperr.ErrInvariantViolation, key)
	}
	return load(s.db.WithContext(ctx), key)
}

// ancestors recomputes the Timesheet above a changed DTR and returns it when
// its totals moved.
func (s *Store) ancestors(tx *gorm.DB, changed model.Node) ([]model.Node, error) {
	if !model.FeedsParent(changed.Key().Level) {
		return nil, nil
	}
	ts, moved, err := recomputeTimesheet(tx, changed.ParentKey().ID)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, nil
	}
	s.logger.Debug("timesheet totals recomputed",
		slog.String("timesheet", ts.ID),
		slog.Float64("regularHours", ts.RegularHours),
		slog.Float64("overtimeHours", ts.OvertimeHours),
		slog.Float64("nightDifferential", ts.NightDifferential))
	return []model.Node{ts}, nil
}

func recomputeTimesheet(tx *gorm.DB, id string) (*model.Timesheet, bool, error) {
	var ts model.Timesheet
	if err := tx.First(&ts, "id = ?", id).Error; err != nil {
		return nil, false, notFound(model.Key{Level: model.LevelTimesheet, ID: id}, err)
	}
	var dtrs []model.DTR
	if err := tx.Where("timesheet_id = ?", id).Find(&dtrs).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load dtrs of %s: %w", id, err)
	}
	children := make([]model.Aggregated, len(dtrs))
	for i := range dtrs {
		children[i] = &dtrs[i]
	}
	updated := model.Recompute(&ts, children).(*model.Timesheet)
	if updated.Hours == ts.Hours {
		return &ts, false, nil
	}
	if err := tx.Model(&model.Timesheet{}).Where("id = ?", id).Updates(map[string]any{
		"regular_hours":      updated.RegularHours,
		"overtime_hours":     updated.OvertimeHours,
		"night_differential": updated.NightDifferential,
	}).Error; err != nil {
		return nil, false, fmt.Errorf("failed to update totals of %s: %w", id, err)
	}
	if err := tx.First(&ts, "id = ?", id).Error; err != nil {
		return nil, false, err
	}
	return &ts, true, nil
}

func childQuery(db *gorm.DB, level model.Level, parentID string) *gorm.DB {
	t := tables[level]
	q := db.Order(t.order)
	if t.parentColumn != "" {
		q = q.Where(t.parentColumn+" = ?", parentID)
	}
	return q
}

func hasChildren(db *gorm.DB, childLevel model.Level, parentID string) (bool, error) {
	n, err := model.New(childLevel)
	if err != nil {
		return false, err
	}
	var count int64
	if err := db.Model(n).Where(tables[childLevel].parentColumn+" = ?", parentID).Limit(1).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count children of %s: %w", parentID, err)
	}
	return count > 0, nil
}

func load(db *gorm.DB, key model.Key) (model.Node, error) {
	n, err := model.New(key.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvariantViolation, err)
	}
	if err := db.First(n, "id = ?", key.ID).Error; err != nil {
		return nil, notFound(key, err)
	}
	return n, nil
}

func list(db *gorm.DB, level model.Level) ([]model.Node, error) {
	switch level {
	case model.LevelTimesheet:
		return findAll[model.Timesheet](db)
	case model.LevelDTR:
		return findAll[model.DTR](db)
	case model.LevelTimelog:
		return findAll[model.Timelog](db)
	case model.LevelClockEvent:
		return findAll[model.ClockEvent](db)
	}
	return nil, fmt.Errorf("%w: no table for %s", apperr.ErrInvariantViolation, level)
}

func findAll[T any, PT interface {
	*T
	model.Node
}](db *gorm.DB) ([]model.Node, error) {
	var rows []T
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list: %w", err)
	}
	out := make([]model.Node, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}

func setID(n model.Node, id string) {
	switch v := n.(type) {
	case *model.Timesheet:
		v.ID = id
	case *model.DTR:
		v.ID = id
	case *model.Timelog:
		v.ID = id
	case *model.ClockEvent:
		v.ID = id
	}
}

func notFound(key model.Key, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, key)
	}
	return fmt.Errorf("failed to load %s: %w", key, err)
}
