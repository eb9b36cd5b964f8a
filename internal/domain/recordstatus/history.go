package recordstatus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// AddHistory appends a status change when the module has an active status
// field; otherwise it does nothing.
func (s *Service) AddHistory(ctx context.Context, change StatusChange) error {
	ref, err := s.statusField(ctx, change.Module)
	if errors.Is(err, ErrStatusFieldNotActive) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.store.InsertHistory(ctx, s.store.db, ref.ModuleID, change.RecordID, change.Before, change.After, s.now())
}

// History lists the status changes of a record, oldest first.
func (s *Service) History(ctx context.Context, recordID int64) ([]HistoryEntry, error) {
	if _, err := s.Record(ctx, recordID); err != nil {
		return nil, err
	}
	return s.store.History(ctx, recordID)
}

// CreateRecord creates a record of module. A non-nil status must be a value of
// the module's status field and is recorded as the first history entry.
func (s *Service) CreateRecord(ctx context.Context, module, label string, status *string) (Record, error) {
	m, err := s.Module(ctx, module)
	if err != nil {
		return Record{}, err
	}
	if status != nil {
		if _, err := s.resolveValue(ctx, module, *status); err != nil {
			return Record{}, err
		}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	now := s.now()
	id, err := s.store.InsertRecord(ctx, tx, m.ID, label, status, now)
	if err != nil {
		return Record{}, err
	}
	if status != nil {
		if err := s.store.InsertHistory(ctx, tx, m.ID, id, nil, status, now); err != nil {
			return Record{}, err
		}
	}
	rec, err := s.store.RecordByID(ctx, tx, id)
	if err != nil {
		return Record{}, fmt.Errorf("reload record %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// Record returns a record by id.
func (s *Service) Record(ctx context.Context, id int64) (Record, error) {
	rec, err := s.store.RecordByID(ctx, s.store.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec, nil
}

// RecordModule returns the name of the module a record belongs to.
func (s *Service) RecordModule(ctx context.Context, id int64) (string, error) {
	_, module, err := s.recordWithModule(ctx, id)
	return module, err
}

func (s *Service) recordWithModule(ctx context.Context, id int64) (Record, string, error) {
	rec, err := s.Record(ctx, id)
	if err != nil {
		return Record{}, "", err
	}
	m, err := s.store.ModuleByID(ctx, rec.ModuleID)
	if err != nil {
		return Record{}, "", fmt.Errorf("get module %d: %w", rec.ModuleID, err)
	}
	return rec, m.Name, nil
}

// RecordDetail is a record with its module name and the classification of
// its current status.
type RecordDetail struct {
	Record
	Module string       `json:"module"`
	State  *RecordState `json:"state,omitempty"`
	Locked bool         `json:"locked"`
}

// RecordDetail returns a record with the state of its status value and
// whether that value is a lock status. Records of modules without an active
// status field carry neither.
func (s *Service) RecordDetail(ctx context.Context, id int64) (RecordDetail, error) {
	rec, module, err := s.recordWithModule(ctx, id)
	if err != nil {
		return RecordDetail{}, err
	}
	detail := RecordDetail{Record: rec, Module: module}
	if rec.Status == nil {
		return detail, nil
	}
	field, err := s.FieldName(ctx, module)
	if errors.Is(err, ErrStatusFieldNotActive) {
		return detail, nil
	}
	if err != nil {
		return RecordDetail{}, err
	}
	v, err := s.resolveValue(ctx, module, *rec.Status)
	switch {
	case err == nil:
		detail.State = v.RecordState
	case !errors.Is(err, ErrIllegalValue):
		return RecordDetail{}, err
	}
	if detail.Locked, err = s.IsLocked(ctx, module, field, *rec.Status); err != nil {
		return RecordDetail{}, err
	}
	return detail, nil
}

// TransitionOptions tune Transition.
type TransitionOptions struct {
	// Force allows leaving a lock status.
	Force bool
	// ActorID is copied into the published event.
	ActorID string
}

// TransitionResult describes the outcome of Transition.
type TransitionResult struct {
	Record  Record       `json:"record"`
	Changed bool         `json:"changed"`
	State   *RecordState `json:"state,omitempty"`
}

// Transition moves a record of module to value. The record is re-read, updated
// and its history row written in one transaction; setting the current value
// again changes nothing. Leaving a lock status requires opts.Force.
func (s *Service) Transition(ctx context.Context, module string, recordID int64, value string, opts TransitionOptions) (TransitionResult, error) {
	ref, err := s.statusField(ctx, module)
	if err != nil {
		return TransitionResult{}, err
	}
	target, err := s.resolveValue(ctx, module, value)
	if err != nil {
		return TransitionResult{}, err
	}
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	current, err := s.store.RecordByID(ctx, tx, recordID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && current.ModuleID != ref.ModuleID) {
		return TransitionResult{}, fmt.Errorf("%w: %d in %s", ErrRecordNotFound, recordID, module)
	}
	if err != nil {
		return TransitionResult{}, fmt.Errorf("get record %d: %w", recordID, err)
	}
	if current.Status != nil && *current.Status == value {
		return TransitionResult{Record: current, State: target.RecordState}, nil
	}
	if current.Status != nil && !opts.Force {
		// Checked in the transaction, not through the static lookaside.
		locked, err := s.store.IsCloseState(ctx, tx, ref.FieldID, *current.Status)
		if err != nil {
			return TransitionResult{}, err
		}
		if locked {
			return TransitionResult{}, fmt.Errorf("%w: %q", ErrRecordLocked, *current.Status)
		}
	}

	now := s.now()
	if err := s.store.SetRecordStatus(ctx, tx, recordID, value, now); err != nil {
		return TransitionResult{}, err
	}
	if err := s.store.InsertHistory(ctx, tx, ref.ModuleID, recordID, current.Status, &value, now); err != nil {
		return TransitionResult{}, err
	}
	updated, err := s.store.RecordByID(ctx, tx, recordID)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("reload record %d: %w", recordID, err)
	}
	if err := tx.Commit(); err != nil {
		return TransitionResult{}, fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("record status changed",
		zap.String("module", module),
		zap.Int64("record_id", recordID),
		zap.Stringp("before", current.Status),
		zap.String("after", value))
	s.publishStatusChanged(StatusChangedEvent{
		Module:    module,
		RecordID:  recordID,
		Before:    current.Status,
		After:     value,
		State:     target.RecordState,
		ActorID:   opts.ActorID,
		ChangedAt: now.UTC(),
	})
	return TransitionResult{Record: updated, Changed: true, State: target.RecordState}, nil
}

// resolveValue finds value in the module's status picklist.
func (s *Service) resolveValue(ctx context.Context, module, value string) (PicklistValue, error) {
	ref, err := s.statusField(ctx, module)
	if err != nil {
		return PicklistValue{}, err
	}
	v, err := s.store.PicklistValueByName(ctx, ref.FieldID, value)
	if errors.Is(err, sql.ErrNoRows) {
		return PicklistValue{}, illegalValue(value)
	}
	if err != nil {
		return PicklistValue{}, fmt.Errorf("get picklist value %q: %w", value, err)
	}
	return v, nil
}

func (s *Service) publishStatusChanged(evt StatusChangedEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(TopicStatusChanged, evt)
}
