package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

// Closing event statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RunRequestMessage asks a worker to close a month.
type RunRequestMessage struct {
	RequestID   string    `json:"request_id"`
	Month       string    `json:"month"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewRunRequestMessage creates a run request with a fresh request id
func NewRunRequestMessage(month, requestedBy string) *RunRequestMessage {
	return &RunRequestMessage{
		RequestID:   uuid.NewString(),
		Month:       month,
		RequestedBy: requestedBy,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RunRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RunRequestMessageFromJSON decodes a run request. A message without month
// is rejected.
func RunRequestMessageFromJSON(data []byte) (*RunRequestMessage, error) {
	var msg RunRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Month == "" {
		return nil, errors.New("run request without month")
	}
	return &msg, nil
}

// ClosingEvent announces the outcome of a closing run.
type ClosingEvent struct {
	RunID     string      `json:"run_id"`
	Month     string      `json:"month"`
	Status    string      `json:"status"`
	Rows      int         `json:"rows"`
	Stats     *core.Stats `json:"stats,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SucceededEvent builds the event for a completed run.
func SucceededEvent(report core.RunReport) ClosingEvent {
	stats := report.Stats
	return ClosingEvent{
		RunID:     report.RunID,
		Month:     report.Month,
		Status:    StatusSucceeded,
		Rows:      report.Rows,
		Stats:     &stats,
		Timestamp: time.Now().UTC(),
	}
}

// FailedEvent builds the event for a failed run.
func FailedEvent(month string, err error) ClosingEvent {
	ev := ClosingEvent{
		Month:     month,
		Status:    StatusFailed,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// ClosingEventFromJSON decodes a closing event.
func ClosingEventFromJSON(data []byte) (*ClosingEvent, error) {
	var ev ClosingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
