package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Channel is the role of a subscriber connection
type Channel string

const (
	// ChannelControl connections receive events and may send commands.
	ChannelControl Channel = "control"
	// ChannelDisplay connections only receive events.
	ChannelDisplay Channel = "display"
)

// SnapshotSource gives the gateway read access to the board. Snapshot
// returns the state together with the sequence number it was committed at.
type SnapshotSource interface {
	Snapshot() (uint64, models.ScoreboardState)
}

// CommandDispatcher applies control commands to the core
type CommandDispatcher interface {
	Dispatch(cmd Command) (ok bool, result any)
}

// EventSink receives every broadcast event after local fan-out
type EventSink interface {
	PublishEvent(event *Event, data []byte)
}

// Recorder collects gateway metrics
type Recorder interface {
	ConnectionOpened(channel string)
	ConnectionClosed(channel string)
	EventBroadcast(eventType string, receivers int)
	EventDropped(reason string)
	CommandHandled(command string, ok bool)
}

type noopRecorder struct{}

func (noopRecorder) ConnectionOpened(string)     {}
func (noopRecorder) ConnectionClosed(string)     {}
func (noopRecorder) EventBroadcast(string, int)  {}
func (noopRecorder) EventDropped(string)         {}
func (noopRecorder) CommandHandled(string, bool) {}

// ConnectionManager manages subscriber websocket connections and fans
// board events out to them in the order they were produced
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	// single FIFO drained by Start, keeps events in mutation order
	broadcastCh chan BroadcastMessage

	snapshots  SnapshotSource
	dispatcher CommandDispatcher
	sinks      []EventSink
	recorder   Recorder
}

// Connection represents a websocket connection to a control or display
// surface
type Connection struct {
	ID      string
	Channel Channel
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	lastPing    atomic.Int64
}

// ConnectionConfig holds configuration for websocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	BroadcastBuffer int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is an event queued for fan-out. When Target is set only
// that connection receives it.
type BroadcastMessage struct {
	Event  *Event
	Target *Connection
}

// DefaultConnectionConfig returns default websocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024, // full state patches fit
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBufferSize:  256,
		BroadcastBuffer: 1000,
		CheckOrigin: func(r *http.Request) bool {
			// display surfaces are served from other origins on the venue network
			return true
		},
	}
}

// ManagerOption configures a ConnectionManager
type ManagerOption func(*ConnectionManager)

// WithDispatcher sets the handler of control commands.
func WithDispatcher(d CommandDispatcher) ManagerOption {
	return func(cm *ConnectionManager) { cm.dispatcher = d }
}

// WithSink adds a sink receiving every broadcast event.
func WithSink(s EventSink) ManagerOption {
	return func(cm *ConnectionManager) {
		if s != nil {
			cm.sinks = append(cm.sinks, s)
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) ManagerOption {
	return func(cm *ConnectionManager) {
		if r != nil {
			cm.recorder = r
		}
	}
}

// NewConnectionManager creates a new websocket connection manager
func NewConnectionManager(config ConnectionConfig, snapshots SnapshotSource, opts ...ManagerOption) *ConnectionManager {
	cm := &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, config.BroadcastBuffer),
		snapshots:   snapshots,
		recorder:    noopRecorder{},
	}
	for _, opt := range opts {
		opt(cm)
	}
	return cm
}

// SetDispatcher sets the command dispatcher after construction; the
// dispatcher usually depends on services that publish through the manager.
func (cm *ConnectionManager) SetDispatcher(d CommandDispatcher) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.dispatcher = d
}

// Start processes queued broadcasts until ctx is cancelled
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			cm.closeAll()
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to a websocket subscriber.
// The current snapshot is queued for the new connection right away.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, channel Channel) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Channel:     channel,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	connection.lastPing.Store(time.Now().UnixMilli())

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	cm.sendSnapshot(connection, "sync")

	log.Info().
		Str("connection_id", connection.ID).
		Str("channel", string(channel)).
		Str("remote_addr", r.RemoteAddr).
		Msg("websocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = true
	cm.recorder.ConnectionOpened(string(conn.Channel))

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.unregisterLocked(conn)
}

func (cm *ConnectionManager) unregisterLocked(conn *Connection) {
	if _, exists := cm.connections[conn]; !exists {
		return
	}
	delete(cm.connections, conn)
	close(conn.Send)
	cm.recorder.ConnectionClosed(string(conn.Channel))

	log.Info().
		Str("connection_id", conn.ID).
		Str("channel", string(conn.Channel)).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for conn := range cm.connections {
		cm.unregisterLocked(conn)
	}
}

// OnStateReplaced queues the full snapshot for every subscriber. It is
// called by the store in mutation order and never blocks.
func (cm *ConnectionManager) OnStateReplaced(seq uint64, op string, state models.ScoreboardState) {
	event, err := NewEvent(EventTypeStateReplaced, op, state)
	if err != nil {
		log.Error().Err(err).Str("op", op).Msg("failed to build state event")
		return
	}
	event.Seq = seq
	cm.enqueue(BroadcastMessage{Event: event})
}

// PublishTimerTick queues the narrow board timer event.
func (cm *ConnectionManager) PublishTimerTick(t models.TimerState) {
	cm.publish(EventTypeTimerTick, "timer.tick", TimerTickPayload{Board: &t})
}

// PublishMatchState queues a full match record.
func (cm *ConnectionManager) PublishMatchState(m models.Match) {
	cm.publish(EventTypeMatchState, "match.update", m)
}

// PublishMatchTimerTick queues the narrow match timer event.
func (cm *ConnectionManager) PublishMatchTimerTick(t models.MatchTimerState) {
	cm.publish(EventTypeTimerTick, "match.timer.tick", TimerTickPayload{MatchID: t.MatchID, Match: &t})
}

func (cm *ConnectionManager) publish(t EventType, op string, data any) {
	event, err := NewEvent(t, op, data)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	cm.enqueue(BroadcastMessage{Event: event})
}

// sendSnapshot queues the current snapshot for one connection only.
func (cm *ConnectionManager) sendSnapshot(conn *Connection, op string) {
	if cm.snapshots == nil {
		return
	}
	seq, state := cm.snapshots.Snapshot()
	event, err := NewEvent(EventTypeStateReplaced, op, state)
	if err != nil {
		log.Error().Err(err).Msg("failed to build snapshot event")
		return
	}
	event.Seq = seq
	cm.enqueue(BroadcastMessage{Event: event, Target: conn})
}

func (cm *ConnectionManager) sendTo(conn *Connection, t EventType, op string, data any) {
	event, err := NewEvent(t, op, data)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	cm.enqueue(BroadcastMessage{Event: event, Target: conn})
}

func (cm *ConnectionManager) enqueue(message BroadcastMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		cm.recorder.EventDropped("broadcast_queue_full")
		log.Warn().Str("event_type", string(message.Event.Type)).Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast sends one event to its receivers. Sends happen under the
// read lock so a connection cannot be closed mid-send; slow connections are
// dropped afterwards.
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	data, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	var slow []*Connection
	receivers := 0

	cm.mu.RLock()
	for conn := range cm.connections {
		if message.Target != nil && conn != message.Target {
			continue
		}
		select {
		case conn.Send <- data:
			receivers++
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.recorder.EventDropped("slow_connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	cm.recorder.EventBroadcast(string(message.Event.Type), receivers)
	if message.Target == nil {
		for _, sink := range cm.sinks {
			sink.PublishEvent(message.Event, data)
		}
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("op", message.Event.Op).
		Int("connections", receivers).
		Msg("event broadcasted")
}

// ConnectionStats summarises open connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ByChannel        map[string]int `json:"by_channel"`
	QueuedEvents     int            `json:"queued_events"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		TotalConnections: len(cm.connections),
		ByChannel:        make(map[string]int),
		QueuedEvents:     len(cm.broadcastCh),
	}
	for conn := range cm.connections {
		stats.ByChannel[string(conn.Channel)]++
	}
	return stats
}

func (cm *ConnectionManager) currentDispatcher() CommandDispatcher {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.dispatcher
}

// writePump handles sending messages to the websocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the websocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.lastPing.Store(time.Now().UnixMilli())
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage applies a command sent by a control surface. When the
// command fails the last good snapshot is sent back to the sender so it can
// resync.
func (c *Connection) handleClientMessage(message []byte) {
	cm := c.Manager
	if c.Channel != ChannelControl {
		log.Debug().
			Str("connection_id", c.ID).
			Msg("ignoring message on display channel")
		return
	}

	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil || cmd.Type == "" {
		log.Warn().
			Str("connection_id", c.ID).
			Msg("malformed control message")
		cm.recorder.CommandHandled("malformed", false)
		cm.sendSnapshot(c, "resync")
		return
	}

	dispatcher := cm.currentDispatcher()
	ok, result := false, any(nil)
	if dispatcher != nil {
		ok, result = dispatcher.Dispatch(cmd)
	}
	cm.recorder.CommandHandled(cmd.Type, ok)

	if !ok {
		log.Debug().
			Str("connection_id", c.ID).
			Str("command", cmd.Type).
			Msg("control command rejected")
		cm.sendSnapshot(c, "resync")
	}
	cm.sendTo(c, EventTypeCommandResult, cmd.Type, CommandResultPayload{
		RequestID: cmd.RequestID,
		Command:   cmd.Type,
		OK:        ok,
		Result:    result,
	})
}
