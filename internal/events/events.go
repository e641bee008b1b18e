// Package events implements the change notifier: every successful write to the
// ledger is turned into an Event and dispatched synchronously to listeners.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "execledger/pkg/domain"
)

// Type names an event kind on the wire.
type Type string

const (
	TypePolicyCreated       Type = "policy_created"
	TypeExpenditureRecorded Type = "expenditure_recorded"
	TypeDiagnosticLogged    Type = "diagnostic_logged"
)

// Payload is implemented by the three event kinds.
type Payload interface {
	EventType() Type
	// Policy returns the policy id the event refers to. For expenditures and
	// diagnostic logs the id may never have been created.
	Policy() id.PolicyID
}

// PolicyCreated is emitted once per successful policy creation.
type PolicyCreated struct {
	PolicyID   id.PolicyID   `json:"policy_id"`
	MerkleRoot id.MerkleRoot `json:"merkle_root"`
	Initiator  id.Principal  `json:"initiator"`
	Timestamp  time.Time     `json:"timestamp"`
}

func (PolicyCreated) EventType() Type       { return TypePolicyCreated }
func (e PolicyCreated) Policy() id.PolicyID { return e.PolicyID }

// ExpenditureRecorded is emitted for every expenditure notice. It is the only
// record of the notice.
type ExpenditureRecorded struct {
	PolicyID    id.PolicyID  `json:"policy_id"`
	Recipient   id.Principal `json:"recipient"`
	Amount      id.Amount    `json:"amount"`
	Description string       `json:"description"`
	RecordedBy  id.Principal `json:"recorded_by,omitempty"`
}

func (ExpenditureRecorded) EventType() Type       { return TypeExpenditureRecorded }
func (e ExpenditureRecorded) Policy() id.PolicyID { return e.PolicyID }

// DiagnosticLogged is emitted for every diagnostic log append.
type DiagnosticLogged struct {
	PolicyID id.PolicyID `json:"policy_id"`
	LogIndex id.LogIndex `json:"log_index"`
	Message  string      `json:"message"`
}

func (DiagnosticLogged) EventType() Type       { return TypeDiagnosticLogged }
func (e DiagnosticLogged) Policy() id.PolicyID { return e.PolicyID }

// Event wraps a payload with its position in the stream.
type Event struct {
	ID         uuid.UUID
	Sequence   uint64
	Type       Type
	OccurredAt time.Time
	Payload    Payload
}

type envelope struct {
	ID         uuid.UUID       `json:"id"`
	Sequence   uint64          `json:"sequence"`
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the event envelope that sinks publish.
func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	return json.Marshal(envelope{
		ID:         e.ID,
		Sequence:   e.Sequence,
		Type:       e.Type,
		OccurredAt: e.OccurredAt,
		Payload:    payload,
	})
}

// UnmarshalJSON decodes an envelope produced by MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	var payload Payload
	switch env.Type {
	case TypePolicyCreated:
		var p PolicyCreated
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		payload = p
	case TypeExpenditureRecorded:
		var p ExpenditureRecorded
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		payload = p
	case TypeDiagnosticLogged:
		var p DiagnosticLogged
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		payload = p
	default:
		return fmt.Errorf("unknown event type %q", env.Type)
	}
	*e = Event{
		ID:         env.ID,
		Sequence:   env.Sequence,
		Type:       env.Type,
		OccurredAt: env.OccurredAt,
		Payload:    payload,
	}
	return nil
}
