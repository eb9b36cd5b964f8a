// Package audit is the append-only log of actions taken through the API and
// the CLI: status transitions, lock status and picklist configuration changes.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditService provides audit logging capabilities.
// All operations are append-only; no updates or deletes are supported.
//
//nolint:revive // name kept for readability at call sites
type AuditService struct {
	db  *sql.DB
	now func() time.Time
}

// NewAuditService creates a new audit service
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db, now: time.Now}
}

// Log appends an audit event. Missing ID and CreatedAt are filled in.
func (s *AuditService) Log(ctx context.Context, event *AuditEvent) error {
	if event.ID == "" {
		event.ID = generateID()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_event (id, actor_id, actor_type, action, entity_type, entity_id, details, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.ActorID, string(event.ActorType), event.Action,
		event.EntityType, event.EntityID, string(details), string(event.Outcome),
		event.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// LogWithDetails is a helper for common case with structured details
func (s *AuditService) LogWithDetails(
	ctx context.Context,
	actorID string,
	actorType ActorType,
	action string,
	entityType *string,
	entityID *string,
	details *EventDetails,
	outcome Outcome,
) error {
	var detailsJSON json.RawMessage
	if details != nil {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return err
		}
	}

	return s.Log(ctx, &AuditEvent{
		ActorID:    actorID,
		ActorType:  actorType,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    detailsJSON,
		Outcome:    outcome,
	})
}

// GetByID retrieves a single audit event by ID
func (s *AuditService) GetByID(ctx context.Context, id string) (*AuditEvent, error) {
	row := s.db.QueryRowContext(ctx, selectAuditEvent+` WHERE id = ?`, id)
	return scanAuditEvent(row)
}

// ListByActor retrieves audit events for a specific actor, newest first.
func (s *AuditService) ListByActor(ctx context.Context, actorID string, limit int) ([]*AuditEvent, error) {
	return s.list(ctx, selectAuditEvent+` WHERE actor_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, actorID, limit)
}

// ListByEntity retrieves audit events for a specific entity, newest first.
func (s *AuditService) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*AuditEvent, error) {
	return s.list(ctx, selectAuditEvent+` WHERE entity_type = ? AND entity_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		entityType, entityID, limit)
}

const selectAuditEvent = `
	SELECT id, actor_id, actor_type, action, entity_type, entity_id, details, outcome, created_at
	FROM audit_event`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *AuditService) list(ctx context.Context, query string, args ...any) ([]*AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := []*AuditEvent{}
	for rows.Next() {
		evt, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

func scanAuditEvent(row rowScanner) (*AuditEvent, error) {
	var (
		evt        AuditEvent
		actorType  string
		outcome    string
		details    string
		createdAt  string
		entityType sql.NullString
		entityID   sql.NullString
	)
	if err := row.Scan(&evt.ID, &evt.ActorID, &actorType, &evt.Action,
		&entityType, &entityID, &details, &outcome, &createdAt); err != nil {
		return nil, err
	}
	evt.ActorType = ActorType(actorType)
	evt.Outcome = Outcome(outcome)
	evt.Details = json.RawMessage(details)
	if entityType.Valid {
		evt.EntityType = &entityType.String
	}
	if entityID.Valid {
		evt.EntityID = &entityID.String
	}
	evt.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &evt, nil
}

// generateID returns a time-ordered UUID v7.
func generateID() string {
	return uuid.Must(uuid.NewV7()).String()
}
