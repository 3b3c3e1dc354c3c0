package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Publisher is the slice of a NATS connection the mirror uses
type Publisher interface {
	Publish(subj string, data []byte) error
}

// NATSMirror republishes broadcast events on NATS so displays outside the
// venue network can follow the board
type NATSMirror struct {
	conn   Publisher
	prefix string
}

var _ Publisher = (*nats.Conn)(nil)

// NewNATSMirror creates a mirror publishing under prefix, e.g. "scoreboard".
func NewNATSMirror(conn Publisher, prefix string) *NATSMirror {
	if prefix == "" {
		prefix = "scoreboard"
	}
	return &NATSMirror{conn: conn, prefix: prefix}
}

// Subject returns the subject an event type is mirrored on.
func (m *NATSMirror) Subject(t EventType) string {
	switch t {
	case EventTypeStateReplaced:
		return m.prefix + ".state"
	case EventTypeTimerTick:
		return m.prefix + ".timer"
	case EventTypeMatchState:
		return m.prefix + ".match"
	default:
		return fmt.Sprintf("%s.%s", m.prefix, t)
	}
}

// PublishEvent implements EventSink. Failures are logged and dropped.
func (m *NATSMirror) PublishEvent(event *Event, data []byte) {
	if data == nil {
		var err error
		if data, err = json.Marshal(event); err != nil {
			log.Error().Err(err).Msg("failed to marshal event for mirror")
			return
		}
	}
	subject := m.Subject(event.Type)
	if err := m.conn.Publish(subject, data); err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Str("event_id", event.ID).
			Msg("failed to mirror event")
		return
	}
	log.Debug().
		Str("subject", subject).
		Int("size", len(data)).
		Msg("event mirrored")
}
