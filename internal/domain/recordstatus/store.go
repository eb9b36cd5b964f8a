package recordstatus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// presentFieldClause limits fields to presence 0 (always) and 2 (optional).
const presentFieldClause = "f.presence IN (0, 2)"

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store holds the SQL for modules, fields, picklists, records and history.
// It never caches; Service layers the lookaside on top.
type Store struct {
	db *sql.DB
}

// NewStore wraps db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// ModuleByName returns sql.ErrNoRows when the module is unknown.
func (s *Store) ModuleByName(ctx context.Context, name string) (Module, error) {
	var m Module
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, base_table FROM module WHERE name = ?`, name,
	).Scan(&m.ID, &m.Name, &m.BaseTable)
	return m, err
}

// ModuleByID returns sql.ErrNoRows when the module is unknown.
func (s *Store) ModuleByID(ctx context.Context, id int64) (Module, error) {
	var m Module
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, base_table FROM module WHERE id = ?`, id,
	).Scan(&m.ID, &m.Name, &m.BaseTable)
	return m, err
}

// StatusFieldID returns the id and name of the module's active process-status
// field (the lowest id wins), or sql.ErrNoRows.
func (s *Store) StatusFieldID(ctx context.Context, moduleID int64) (int64, string, error) {
	var (
		id   int64
		name string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT f.id, f.name FROM field f
		WHERE f.module_id = ?
		  AND json_extract(f.params, '$.isProcessStatusField') = 1
		  AND `+presentFieldClause+`
		ORDER BY f.id LIMIT 1`, moduleID,
	).Scan(&id, &name)
	return id, name, err
}

// StatusFieldNames maps module id to the name of its active process-status field.
func (s *Store) StatusFieldNames(ctx context.Context) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.module_id, f.name FROM field f
		WHERE json_extract(f.params, '$.isProcessStatusField') = 1
		  AND `+presentFieldClause+`
		ORDER BY f.id`)
	if err != nil {
		return nil, fmt.Errorf("list status fields: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var (
			moduleID int64
			name     string
		)
		if err := rows.Scan(&moduleID, &name); err != nil {
			return nil, fmt.Errorf("scan status field: %w", err)
		}
		if _, seen := out[moduleID]; !seen {
			out[moduleID] = name
		}
	}
	return out, rows.Err()
}

// MarkStatusField flags field as the module's process-status field and clears
// the flag on its other fields. Returns false when the module has no such field.
func (s *Store) MarkStatusField(ctx context.Context, moduleID int64, field string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var fieldID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM field WHERE module_id = ? AND name = ?`, moduleID, field,
	).Scan(&fieldID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find field %s: %w", field, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE field SET params = json_remove(params, '$.isProcessStatusField')
		WHERE module_id = ? AND id <> ?`, moduleID, fieldID); err != nil {
		return false, fmt.Errorf("clear previous status field: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE field SET params = json_set(params, '$.isProcessStatusField', json('true'))
		WHERE id = ?`, fieldID); err != nil {
		return false, fmt.Errorf("mark status field: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// PicklistValues returns the values of fieldID in sort order. TimeCounting is
// left unparsed; RawTimeCounting carries the stored string.
func (s *Store) PicklistValues(ctx context.Context, fieldID int64) ([]PicklistValue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, field_id, value, sort_order, record_state, time_counting
		FROM picklist_value WHERE field_id = ?
		ORDER BY sort_order, id`, fieldID)
	if err != nil {
		return nil, fmt.Errorf("list picklist values: %w", err)
	}
	defer rows.Close()

	var values []PicklistValue
	for rows.Next() {
		var (
			v     PicklistValue
			state sql.NullInt64
			tc    sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.FieldID, &v.Value, &v.SortOrder, &state, &tc); err != nil {
			return nil, fmt.Errorf("scan picklist value: %w", err)
		}
		if state.Valid {
			rs := RecordState(state.Int64)
			v.RecordState = &rs
		}
		if tc.Valid {
			v.RawTimeCounting = &tc.String
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// PicklistValueByID returns the value when it belongs to fieldID, else sql.ErrNoRows.
func (s *Store) PicklistValueByID(ctx context.Context, fieldID, valueID int64) (PicklistValue, error) {
	var v PicklistValue
	err := s.db.QueryRowContext(ctx,
		`SELECT id, field_id, value, sort_order FROM picklist_value WHERE id = ? AND field_id = ?`,
		valueID, fieldID,
	).Scan(&v.ID, &v.FieldID, &v.Value, &v.SortOrder)
	return v, err
}

// PicklistValueByName returns sql.ErrNoRows when value is not in the picklist.
func (s *Store) PicklistValueByName(ctx context.Context, fieldID int64, value string) (PicklistValue, error) {
	var (
		v     PicklistValue
		state sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, field_id, value, sort_order, record_state FROM picklist_value WHERE field_id = ? AND value = ?`,
		fieldID, value,
	).Scan(&v.ID, &v.FieldID, &v.Value, &v.SortOrder, &state)
	if state.Valid {
		rs := RecordState(state.Int64)
		v.RecordState = &rs
	}
	return v, err
}

// UpdatePicklistValue writes state and encoded time counting; nil / "" store NULL.
func (s *Store) UpdatePicklistValue(ctx context.Context, valueID int64, state *RecordState, timeCounting string) error {
	var stateArg, tcArg any
	if state != nil {
		stateArg = int(*state)
	}
	if timeCounting != "" {
		tcArg = timeCounting
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE picklist_value SET record_state = ?, time_counting = ? WHERE id = ?`,
		stateArg, tcArg, valueID)
	if err != nil {
		return fmt.Errorf("update picklist value %d: %w", valueID, err)
	}
	return nil
}

// CloseStatesByField lists (field name, value) lock statuses of present fields.
func (s *Store) CloseStatesByField(ctx context.Context, moduleID int64) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.name, cs.value
		FROM picklist_close_state cs
		INNER JOIN field f ON cs.field_id = f.id
		WHERE f.module_id = ? AND `+presentFieldClause+`
		ORDER BY f.id, cs.value_id`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("list close states: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("scan close state: %w", err)
		}
		out[field] = append(out[field], value)
	}
	return out, rows.Err()
}

// CloseStatesByValue lists value id → value lock statuses of present fields.
func (s *Store) CloseStatesByValue(ctx context.Context, moduleID int64) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cs.value_id, cs.value
		FROM picklist_close_state cs
		INNER JOIN field f ON cs.field_id = f.id
		WHERE f.module_id = ? AND `+presentFieldClause, moduleID)
	if err != nil {
		return nil, fmt.Errorf("list close states: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var (
			id    int64
			value string
		)
		if err := rows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("scan close state: %w", err)
		}
		out[id] = value
	}
	return out, rows.Err()
}

// AddCloseState marks a picklist value as a lock status. Idempotent.
func (s *Store) AddCloseState(ctx context.Context, v PicklistValue) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO picklist_close_state (field_id, value_id, value) VALUES (?, ?, ?)
		ON CONFLICT (field_id, value_id) DO UPDATE SET value = excluded.value`,
		v.FieldID, v.ID, v.Value)
	if err != nil {
		return fmt.Errorf("add close state %d: %w", v.ID, err)
	}
	return nil
}

// IsCloseState reports whether value is a lock status of the field.
func (s *Store) IsCloseState(ctx context.Context, ex execer, fieldID int64, value string) (bool, error) {
	var locked bool
	err := ex.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM picklist_close_state WHERE field_id = ? AND value = ?)`,
		fieldID, value).Scan(&locked)
	if err != nil {
		return false, fmt.Errorf("check close state %q: %w", value, err)
	}
	return locked, nil
}

// RemoveCloseState reports whether a row was removed.
func (s *Store) RemoveCloseState(ctx context.Context, fieldID, valueID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM picklist_close_state WHERE field_id = ? AND value_id = ?`, fieldID, valueID)
	if err != nil {
		return false, fmt.Errorf("remove close state %d: %w", valueID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove close state %d: %w", valueID, err)
	}
	return n > 0, nil
}

// InsertRecord creates a record and returns its id.
func (s *Store) InsertRecord(ctx context.Context, ex execer, moduleID int64, label string, status *string, now time.Time) (int64, error) {
	ts := now.UTC().Format(time.RFC3339)
	res, err := ex.ExecContext(ctx,
		`INSERT INTO record (module_id, label, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		moduleID, label, nullableString(status), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	return res.LastInsertId()
}

// RecordByID returns sql.ErrNoRows when the record does not exist.
func (s *Store) RecordByID(ctx context.Context, ex execer, id int64) (Record, error) {
	var (
		r                    Record
		status               sql.NullString
		createdAt, updatedAt string
	)
	err := ex.QueryRowContext(ctx,
		`SELECT id, module_id, label, status, created_at, updated_at FROM record WHERE id = ?`, id,
	).Scan(&r.ID, &r.ModuleID, &r.Label, &status, &createdAt, &updatedAt)
	if err != nil {
		return Record{}, err
	}
	if status.Valid {
		r.Status = &status.String
	}
	r.CreatedAt = parseRFC3339(createdAt)
	r.UpdatedAt = parseRFC3339(updatedAt)
	return r, nil
}

// SetRecordStatus overwrites the status of a record.
func (s *Store) SetRecordStatus(ctx context.Context, ex execer, id int64, status string, now time.Time) error {
	_, err := ex.ExecContext(ctx,
		`UPDATE record SET status = ?, updated_at = ? WHERE id = ?`,
		status, now.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("update record %d status: %w", id, err)
	}
	return nil
}

// InsertHistory appends one status change.
func (s *Store) InsertHistory(ctx context.Context, ex execer, moduleID, recordID int64, before, after *string, at time.Time) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO record_status_history (module_id, record_id, after, before, changed_at)
		VALUES (?, ?, ?, ?, ?)`,
		moduleID, recordID, nullableString(after), nullableString(before), at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert status history for record %d: %w", recordID, err)
	}
	return nil
}

// History lists the changes of a record, oldest first.
func (s *Store) History(ctx context.Context, recordID int64) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, before, after, changed_at
		FROM record_status_history WHERE record_id = ?
		ORDER BY changed_at, id`, recordID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	out := []HistoryEntry{}
	for rows.Next() {
		var (
			h             HistoryEntry
			before, after sql.NullString
			changedAt     string
		)
		if err := rows.Scan(&h.ID, &h.RecordID, &before, &after, &changedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		if before.Valid {
			h.Before = &before.String
		}
		if after.Valid {
			h.After = &after.String
		}
		h.ChangedAt = parseRFC3339(changedAt)
		out = append(out, h)
	}
	return out, rows.Err()
}

// --- metadata writes used by seeding ---

// UpsertModule creates or renames the module with the given id.
func (s *Store) UpsertModule(ctx context.Context, m Module) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO module (id, name, base_table) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, base_table = excluded.base_table`,
		m.ID, m.Name, m.BaseTable)
	if err != nil {
		return fmt.Errorf("upsert module %s: %w", m.Name, err)
	}
	return nil
}

// UpsertField creates the field or updates its label and presence; returns its id.
func (s *Store) UpsertField(ctx context.Context, moduleID int64, name, label string, presence int) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO field (module_id, name, label, presence) VALUES (?, ?, ?, ?)
		ON CONFLICT (module_id, name) DO UPDATE SET label = excluded.label, presence = excluded.presence
		RETURNING id`, moduleID, name, label, presence,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert field %s: %w", name, err)
	}
	return id, nil
}

// UpsertPicklistValue creates the value or updates its sort order; returns its id.
func (s *Store) UpsertPicklistValue(ctx context.Context, fieldID int64, value string, sortOrder int) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO picklist_value (field_id, value, sort_order) VALUES (?, ?, ?)
		ON CONFLICT (field_id, value) DO UPDATE SET sort_order = excluded.sort_order
		RETURNING id`, fieldID, value, sortOrder,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert picklist value %s: %w", value, err)
	}
	return id, nil
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func parseRFC3339(value string) time.Time {
	t, _ := time.Parse(time.RFC3339, value)
	return t
}
