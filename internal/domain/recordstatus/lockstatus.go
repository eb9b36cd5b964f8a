package recordstatus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/matiasleandrokruk/procstatus/internal/infra/cache"
)

// LockStatusesByField maps field name to its lock (closing) statuses, over
// every present picklist field of the module.
func (s *Service) LockStatusesByField(ctx context.Context, module string) (map[string][]string, error) {
	m, err := s.Module(ctx, module)
	if err != nil {
		return nil, err
	}
	key := cache.Key(cacheLockByName, strconv.FormatInt(m.ID, 10))
	out, err := cache.Take(ctx, s.static, key, func(ctx context.Context) (map[string][]string, error) {
		return s.store.CloseStatesByField(ctx, m.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("get lock statuses of %s: %w", module, err)
	}
	if out == nil {
		out = map[string][]string{}
	}
	return out, nil
}

// LockStatusesByValue maps picklist value id to value for every lock status
// of the module.
func (s *Service) LockStatusesByValue(ctx context.Context, module string) (map[int64]string, error) {
	m, err := s.Module(ctx, module)
	if err != nil {
		return nil, err
	}
	key := cache.Key(cacheLockByValue, strconv.FormatInt(m.ID, 10))
	out, err := cache.Take(ctx, s.static, key, func(ctx context.Context) (map[int64]string, error) {
		return s.store.CloseStatesByValue(ctx, m.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("get lock statuses of %s: %w", module, err)
	}
	if out == nil {
		out = map[int64]string{}
	}
	return out, nil
}

// IsLocked reports whether value is a lock status of field in module.
func (s *Service) IsLocked(ctx context.Context, module, field, value string) (bool, error) {
	byField, err := s.LockStatusesByField(ctx, module)
	if err != nil {
		return false, err
	}
	return slices.Contains(byField[field], value), nil
}

// AddLockStatus marks a status picklist value as a lock status.
func (s *Service) AddLockStatus(ctx context.Context, module string, valueID int64) error {
	v, err := s.statusValue(ctx, module, valueID)
	if err != nil {
		return err
	}
	if err := s.store.AddCloseState(ctx, v); err != nil {
		return err
	}
	s.invalidateLocks(ctx, module)
	return nil
}

// RemoveLockStatus unmarks a lock status. Returns ErrValueNotFound when the
// value was not a lock status.
func (s *Service) RemoveLockStatus(ctx context.Context, module string, valueID int64) error {
	v, err := s.statusValue(ctx, module, valueID)
	if err != nil {
		return err
	}
	removed, err := s.store.RemoveCloseState(ctx, v.FieldID, v.ID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %d is not a lock status", ErrValueNotFound, valueID)
	}
	s.invalidateLocks(ctx, module)
	return nil
}

func (s *Service) statusValue(ctx context.Context, module string, valueID int64) (PicklistValue, error) {
	ref, err := s.statusField(ctx, module)
	if err != nil {
		return PicklistValue{}, err
	}
	v, err := s.store.PicklistValueByID(ctx, ref.FieldID, valueID)
	if errors.Is(err, sql.ErrNoRows) {
		return PicklistValue{}, fmt.Errorf("%w: %d", ErrValueNotFound, valueID)
	}
	if err != nil {
		return PicklistValue{}, fmt.Errorf("get picklist value %d: %w", valueID, err)
	}
	return v, nil
}

func (s *Service) invalidateLocks(ctx context.Context, module string) {
	m, err := s.Module(ctx, module)
	if err != nil {
		return
	}
	id := strconv.FormatInt(m.ID, 10)
	if err := s.static.Invalidate(ctx, cache.Key(cacheLockByName, id), cache.Key(cacheLockByValue, id)); err != nil {
		s.logger.Warn("invalidate lock status cache", zap.String("module", module), zap.Error(err))
	}
}
