// Package recordstatus tracks the process-status field of CRM modules.
//
// Each module may mark one picklist field as its process-status field. Every
// value of that picklist carries a RecordState (no concern, open, closed) and
// an optional set of TimeCounting categories that tell SLA clocks which
// timers run while a record holds the value. Some values are lock (closing)
// statuses. Status changes of a record are appended to a history table.
package recordstatus

import (
	"errors"
	"fmt"
	"time"
)

// RecordState classifies a picklist value for workflow logic.
type RecordState int

const (
	RecordStateNoConcern RecordState = 0
	RecordStateOpen      RecordState = 1
	RecordStateClosed    RecordState = 2
)

// Valid reports whether s is one of the three known states.
func (s RecordState) Valid() bool {
	return s >= RecordStateNoConcern && s <= RecordStateClosed
}

// Label returns the translation key of the state.
func (s RecordState) Label() string {
	switch s {
	case RecordStateNoConcern:
		return "LBL_RECORD_STATE_NO_CONCERN"
	case RecordStateOpen:
		return "LBL_RECORD_STATE_OPEN"
	case RecordStateClosed:
		return "LBL_RECORD_STATE_CLOSED"
	default:
		return fmt.Sprintf("LBL_RECORD_STATE_%d", int(s))
	}
}

// Labels returns every record state with its label.
func Labels() map[RecordState]string {
	return map[RecordState]string{
		RecordStateNoConcern: RecordStateNoConcern.Label(),
		RecordStateOpen:      RecordStateOpen.Label(),
		RecordStateClosed:    RecordStateClosed.Label(),
	}
}

// TimeCounting is an SLA clock category.
type TimeCounting int

const (
	TimeCountingReaction TimeCounting = 1
	TimeCountingResolve  TimeCounting = 2
	TimeCountingIdle     TimeCounting = 3
)

// Valid reports whether c is a known category.
func (c TimeCounting) Valid() bool {
	return c >= TimeCountingReaction && c <= TimeCountingIdle
}

// Label returns the translation key of the category.
func (c TimeCounting) Label() string {
	switch c {
	case TimeCountingReaction:
		return "LBL_TIME_COUNTING_REACTION"
	case TimeCountingResolve:
		return "LBL_TIME_COUNTING_RESOLVE"
	case TimeCountingIdle:
		return "LBL_TIME_COUNTING_IDLE"
	default:
		return fmt.Sprintf("LBL_TIME_COUNTING_%d", int(c))
	}
}

var (
	// ErrIllegalValue marks input that is not an allowed value
	// (bad time-counting element, unknown picklist value or state).
	ErrIllegalValue = errors.New("not allowed value")
	// ErrModuleNotFound is returned for an unknown module name.
	ErrModuleNotFound = errors.New("module not found")
	// ErrStatusFieldNotActive is returned when a module has no process-status field.
	ErrStatusFieldNotActive = errors.New("record status field not active")
	// ErrRecordNotFound is returned for an unknown record (or one of another module).
	ErrRecordNotFound = errors.New("record not found")
	// ErrValueNotFound is returned for a picklist value id outside the module's status field.
	ErrValueNotFound = errors.New("picklist value not found")
	// ErrRecordLocked is returned when a record holding a lock status is moved without force.
	ErrRecordLocked = errors.New("record is in a lock status")
)

func illegalValue(v string) error {
	return fmt.Errorf("%w: %q", ErrIllegalValue, v)
}

// TopicStatusChanged is published on the event bus after a committed transition.
const TopicStatusChanged = "record.status.changed"

// Module is a CRM module known to the service.
type Module struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	BaseTable string `json:"baseTable"`
}

// PicklistValue is one selectable value of the status field.
type PicklistValue struct {
	ID              int64          `json:"id"`
	FieldID         int64          `json:"fieldId"`
	Value           string         `json:"value"`
	SortOrder       int            `json:"sortOrder"`
	RecordState     *RecordState   `json:"recordState,omitempty"`
	RawTimeCounting *string        `json:"rawTimeCounting,omitempty"`
	TimeCounting    []TimeCounting `json:"timeCounting,omitempty"`
}

// Record is a CRM record carrying the current value of its module's status field.
type Record struct {
	ID        int64     `json:"id"`
	ModuleID  int64     `json:"moduleId"`
	Label     string    `json:"label"`
	Status    *string   `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HistoryEntry is one committed status change.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	RecordID  int64     `json:"recordId"`
	Before    *string   `json:"before,omitempty"`
	After     *string   `json:"after,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}

// StatusChange is the input of AddHistory.
type StatusChange struct {
	Module   string
	RecordID int64
	Before   *string
	After    *string
}

// StatusChangedEvent is the payload published on TopicStatusChanged.
type StatusChangedEvent struct {
	Module    string       `json:"module"`
	RecordID  int64        `json:"recordId"`
	Before    *string      `json:"before,omitempty"`
	After     string       `json:"after"`
	State     *RecordState `json:"state,omitempty"`
	ActorID   string       `json:"actorId,omitempty"`
	ChangedAt time.Time    `json:"changedAt"`
}
