package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/pkg/errors"
)

// DefaultTopic carries pipeline output rows.
const DefaultTopic = "trialscope.rows"

// SchemaVersion of RowEnvelope.
const SchemaVersion = "v1"

// RowEnvelope is the JSON value of one published row.
type RowEnvelope struct {
	EventID       string     `json:"event_id"`
	Pipeline      string     `json:"pipeline"`
	Key           string     `json:"key"`
	Columns       []string   `json:"columns"`
	Row           result.Row `json:"row"`
	Timestamp     time.Time  `json:"timestamp"`
	SchemaVersion string     `json:"schema_version"`
}

// NewRowEnvelope wraps one row of t.
func NewRowEnvelope(t *result.Table, row result.Row, now time.Time) *RowEnvelope {
	return &RowEnvelope{
		EventID:       uuid.NewString(),
		Pipeline:      t.Name,
		Key:           t.KeyOf(row),
		Columns:       t.Columns,
		Row:           row,
		Timestamp:     now.UTC(),
		SchemaVersion: SchemaVersion,
	}
}

// Encode marshals the envelope.
func (e *RowEnvelope) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to marshal row envelope")
	}
	return b, nil
}

// DecodeRowEnvelope parses a message value.
func DecodeRowEnvelope(value []byte) (*RowEnvelope, error) {
	if len(value) == 0 {
		return nil, errors.New(errors.CodeValidation, "empty message value")
	}
	var env RowEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to unmarshal row envelope")
	}
	return &env, nil
}
