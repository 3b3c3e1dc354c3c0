package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/improvscore/go/internal/models"
)

// Event is the envelope of every message sent to subscribers
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Seq       uint64          `json:"seq,omitempty"` // store sequence for stateReplaced
	Op        string          `json:"op,omitempty"`  // mutation that produced the event
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType is the kind of outbound event
type EventType string

const (
	EventTypeStateReplaced EventType = "stateReplaced"
	EventTypeTimerTick     EventType = "timerTick"
	EventTypeMatchState    EventType = "matchState"
	EventTypeCommandResult EventType = "commandResult"
)

// TimerTickPayload is the narrow per-tick event. MatchID is empty for the
// board timer.
type TimerTickPayload struct {
	MatchID string                  `json:"matchId,omitempty"`
	Board   *models.TimerState      `json:"board,omitempty"`
	Match   *models.MatchTimerState `json:"match,omitempty"`
}

// CommandResultPayload acknowledges a control command
type CommandResultPayload struct {
	RequestID string `json:"requestId,omitempty"`
	Command   string `json:"command"`
	OK        bool   `json:"ok"`
	Result    any    `json:"result,omitempty"`
}

// NewEvent builds an event with a fresh id.
func NewEvent(t EventType, op string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      t,
		Op:        op,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// ParseEventPayload decodes the data of an event into its payload type.
func ParseEventPayload(event *Event) (any, error) {
	switch event.Type {
	case EventTypeStateReplaced:
		var payload models.ScoreboardState
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTimerTick:
		var payload TimerTickPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeMatchState:
		var payload models.Match
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeCommandResult:
		var payload CommandResultPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil
	}
}
