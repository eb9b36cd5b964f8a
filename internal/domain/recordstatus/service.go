package recordstatus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/matiasleandrokruk/procstatus/internal/infra/cache"
	"github.com/matiasleandrokruk/procstatus/internal/infra/eventbus"
)

// Cache names. Entries are stored under cache.Key(name, field).
const (
	cacheModuleID     = "RecordStatus::getModuleId"
	cacheFieldName    = "RecordStatus::getFieldName"
	cacheStatesPrefix = "RecordStatus::getStates::"
	cacheTimeCounting = "RecordStatus::getTimeCounting::"
	cacheLockByName   = "RecordStatus::getLockStatusByName"
	cacheLockByValue  = "RecordStatus::getLockStatus"
	cacheEmptyState   = "empty_state"
	defaultSharedTTL  = 10 * time.Minute
	// DefaultStaticTTL bounds how long lock statuses written by another
	// process stay invisible.
	DefaultStaticTTL = 5 * time.Second
)

// fieldRef identifies a module's active status field.
type fieldRef struct {
	ModuleID int64  `json:"moduleId"`
	FieldID  int64  `json:"fieldId"`
	Name     string `json:"name"`
}

// Service exposes the record status operations. Reads of module metadata,
// states and time counting go through the shared lookaside; lock statuses go
// through the process-local static lookaside.
type Service struct {
	store  *Store
	shared *cache.Lookaside
	static *cache.Lookaside
	bus    eventbus.EventBus
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSharedCache sets the lookaside used for metadata reads.
func WithSharedCache(l *cache.Lookaside) Option {
	return func(s *Service) { s.shared = l }
}

// WithStaticCache sets the process-local lookaside used for lock statuses.
func WithStaticCache(l *cache.Lookaside) Option {
	return func(s *Service) { s.static = l }
}

// WithBus publishes TopicStatusChanged events after each transition.
func WithBus(bus eventbus.EventBus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service over db. Without options both caches are
// in-process and no events are published.
func NewService(db *sql.DB, opts ...Option) *Service {
	s := &Service{
		store:  NewStore(db),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.shared == nil {
		s.shared = cache.NewLookaside("shared", cache.NewMemory(), defaultSharedTTL)
	}
	if s.static == nil {
		s.static = cache.NewLookaside("static", cache.NewMemory(), DefaultStaticTTL)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() *Store { return s.store }

// Labels returns every record state with its label.
func (s *Service) Labels() map[RecordState]string { return Labels() }

// Module resolves a module by name. Unknown names are not cached.
func (s *Service) Module(ctx context.Context, name string) (Module, error) {
	m, err := cache.Take(ctx, s.shared, cache.Key(cacheModuleID, name), func(ctx context.Context) (Module, error) {
		m, err := s.store.ModuleByName(ctx, name)
		if errors.Is(err, sql.ErrNoRows) {
			return Module{}, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
		}
		return m, err
	})
	if errors.Is(err, ErrModuleNotFound) {
		return Module{}, err
	}
	if err != nil {
		return Module{}, fmt.Errorf("get module %s: %w", name, err)
	}
	return m, nil
}

// InvalidateAll drops every cached entry of the service, e.g. after seeding.
func (s *Service) InvalidateAll(ctx context.Context) error {
	if err := s.shared.InvalidatePrefix(ctx, "RecordStatus::"); err != nil {
		return fmt.Errorf("invalidate shared cache: %w", err)
	}
	if err := s.static.InvalidatePrefix(ctx, "RecordStatus::"); err != nil {
		return fmt.Errorf("invalidate static cache: %w", err)
	}
	return nil
}

// FieldName returns the name of the module's process-status field, or
// ErrStatusFieldNotActive.
func (s *Service) FieldName(ctx context.Context, module string) (string, error) {
	ref, err := s.statusField(ctx, module)
	if err != nil {
		return "", err
	}
	return ref.Name, nil
}

// FieldNames maps module id to the process-status field name of every module
// that has one.
func (s *Service) FieldNames(ctx context.Context) (map[int64]string, error) {
	out, err := cache.Take(ctx, s.shared, cache.Key(cacheFieldName, ""), s.store.StatusFieldNames)
	if err != nil {
		return nil, fmt.Errorf("get status field names: %w", err)
	}
	if out == nil {
		out = map[int64]string{}
	}
	return out, nil
}

func (s *Service) statusField(ctx context.Context, module string) (fieldRef, error) {
	m, err := s.Module(ctx, module)
	if err != nil {
		return fieldRef{}, err
	}
	ref, err := cache.Take(ctx, s.shared, cache.Key(cacheFieldName, module), func(ctx context.Context) (fieldRef, error) {
		id, name, err := s.store.StatusFieldID(ctx, m.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return fieldRef{ModuleID: m.ID}, nil
		}
		return fieldRef{ModuleID: m.ID, FieldID: id, Name: name}, err
	})
	if err != nil {
		return fieldRef{}, fmt.Errorf("get status field of %s: %w", module, err)
	}
	if ref.FieldID == 0 {
		return fieldRef{}, fmt.Errorf("%w: %s", ErrStatusFieldNotActive, module)
	}
	return ref, nil
}

// States maps every status picklist value id to its record state. Values
// without a state map to nil.
func (s *Service) States(ctx context.Context, module string) (map[int64]*RecordState, error) {
	ref, err := s.statusField(ctx, module)
	if err != nil {
		return nil, err
	}
	key := cache.Key(cacheStatesPrefix+module, cacheEmptyState)
	out, err := cache.Take(ctx, s.shared, key, func(ctx context.Context) (map[int64]*RecordState, error) {
		values, err := s.store.PicklistValues(ctx, ref.FieldID)
		if err != nil {
			return nil, err
		}
		states := make(map[int64]*RecordState, len(values))
		for _, v := range values {
			states[v.ID] = v.RecordState
		}
		return states, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get states of %s: %w", module, err)
	}
	return out, nil
}

// ValuesByState maps picklist value id to value label for the status values
// in state.
func (s *Service) ValuesByState(ctx context.Context, module string, state RecordState) (map[int64]string, error) {
	if !state.Valid() {
		return nil, illegalValue(strconv.Itoa(int(state)))
	}
	ref, err := s.statusField(ctx, module)
	if err != nil {
		return nil, err
	}
	key := cache.Key(cacheStatesPrefix+module, strconv.Itoa(int(state)))
	out, err := cache.Take(ctx, s.shared, key, func(ctx context.Context) (map[int64]string, error) {
		values, err := s.store.PicklistValues(ctx, ref.FieldID)
		if err != nil {
			return nil, err
		}
		labels := make(map[int64]string)
		for _, v := range values {
			if v.RecordState != nil && *v.RecordState == state {
				labels[v.ID] = v.Value
			}
		}
		return labels, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get %s values of %s: %w", state.Label(), module, err)
	}
	return out, nil
}

// PicklistValues returns the status picklist of a module with parsed time counting.
func (s *Service) PicklistValues(ctx context.Context, module string) ([]PicklistValue, error) {
	ref, err := s.statusField(ctx, module)
	if err != nil {
		return nil, err
	}
	values, err := s.store.PicklistValues(ctx, ref.FieldID)
	if err != nil {
		return nil, fmt.Errorf("list picklist of %s: %w", module, err)
	}
	for i := range values {
		if values[i].RawTimeCounting == nil {
			continue
		}
		tc, err := ParseTimeCounting(*values[i].RawTimeCounting)
		if err != nil {
			return nil, fmt.Errorf("picklist value %d: %w", values[i].ID, err)
		}
		values[i].TimeCounting = tc
	}
	return values, nil
}

// Activate marks field as the module's process-status field. It reports
// false when the module or the field does not exist. History storage and the
// state / time-counting columns are part of the schema, so activation only
// flips field metadata.
func (s *Service) Activate(ctx context.Context, module, field string) (bool, error) {
	m, err := s.Module(ctx, module)
	if errors.Is(err, ErrModuleNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ok, err := s.store.MarkStatusField(ctx, m.ID, field)
	if err != nil {
		return false, fmt.Errorf("activate %s.%s: %w", module, field, err)
	}
	if !ok {
		return false, nil
	}
	s.invalidateModule(ctx, module)
	s.logger.Info("record status field activated",
		zap.String("module", module), zap.String("field", field))
	return true, nil
}

// TimeCountingValues maps status value id to its parsed categories, for
// values that carry a time-counting set. A module without an active status
// field yields an empty map.
func (s *Service) TimeCountingValues(ctx context.Context, module string) (map[int64][]TimeCounting, error) {
	raw, err := s.TimeCountingRaw(ctx, module)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]TimeCounting, len(raw))
	for id, encoded := range raw {
		tc, err := ParseTimeCounting(encoded)
		if err != nil {
			return nil, fmt.Errorf("picklist value %d: %w", id, err)
		}
		out[id] = tc
	}
	return out, nil
}

// TimeCountingRaw is TimeCountingValues without decoding.
func (s *Service) TimeCountingRaw(ctx context.Context, module string) (map[int64]string, error) {
	ref, err := s.statusField(ctx, module)
	if errors.Is(err, ErrStatusFieldNotActive) {
		return map[int64]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out, err := cache.Take(ctx, s.shared, cache.Key(cacheTimeCounting+module, "raw"), func(ctx context.Context) (map[int64]string, error) {
		values, err := s.store.PicklistValues(ctx, ref.FieldID)
		if err != nil {
			return nil, err
		}
		raw := make(map[int64]string)
		for _, v := range values {
			if v.RawTimeCounting != nil {
				raw[v.ID] = *v.RawTimeCounting
			}
		}
		return raw, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get time counting of %s: %w", module, err)
	}
	if out == nil {
		out = map[int64]string{}
	}
	return out, nil
}

// ValueConfig is the state and time counting of one status value.
// A nil State clears the state; empty TimeCounting clears the set.
type ValueConfig struct {
	State        *RecordState
	TimeCounting []TimeCounting
}

// ConfigureValue sets the state and time counting of a status picklist value.
func (s *Service) ConfigureValue(ctx context.Context, module string, valueID int64, cfg ValueConfig) (PicklistValue, error) {
	ref, err := s.statusField(ctx, module)
	if err != nil {
		return PicklistValue{}, err
	}
	if cfg.State != nil && !cfg.State.Valid() {
		return PicklistValue{}, illegalValue(strconv.Itoa(int(*cfg.State)))
	}
	encoded, err := FormatTimeCounting(cfg.TimeCounting)
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
	if err := s.store.UpdatePicklistValue(ctx, valueID, cfg.State, encoded); err != nil {
		return PicklistValue{}, err
	}
	s.invalidateValues(ctx, module)

	v.RecordState = cfg.State
	if encoded != "" {
		v.RawTimeCounting = &encoded
		v.TimeCounting = cfg.TimeCounting
	}
	return v, nil
}

// invalidateModule drops every shared entry derived from the module's field.
func (s *Service) invalidateModule(ctx context.Context, module string) {
	if err := s.shared.Invalidate(ctx,
		cache.Key(cacheFieldName, module),
		cache.Key(cacheFieldName, ""),
	); err != nil {
		s.logger.Warn("invalidate field name cache", zap.String("module", module), zap.Error(err))
	}
	s.invalidateValues(ctx, module)
	s.invalidateLocks(ctx, module)
}

// invalidateValues drops cached states and time counting of a module.
func (s *Service) invalidateValues(ctx context.Context, module string) {
	for _, prefix := range []string{cacheStatesPrefix + module + "/", cacheTimeCounting + module + "/"} {
		if err := s.shared.InvalidatePrefix(ctx, prefix); err != nil {
			s.logger.Warn("invalidate cache prefix", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}
