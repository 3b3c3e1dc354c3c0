package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Persister is the durable side of the store. Load returns nil, nil when
// nothing was saved yet.
type Persister interface {
	Save(ctx context.Context, state models.ScoreboardState) error
	Load(ctx context.Context) (*models.ScoreboardState, error)
}

// Subscriber receives every replaced snapshot in mutation order.
// Implementations must not block.
type Subscriber interface {
	OnStateReplaced(seq uint64, op string, state models.ScoreboardState)
}

// Recorder collects store metrics
type Recorder interface {
	RecordMutation(op string, applied bool)
	RecordPersist(success bool, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordMutation(string, bool)    {}
func (noopRecorder) RecordPersist(bool, time.Duration) {}

// Config holds store tuning
type Config struct {
	PersistTimeout time.Duration
}

// DefaultConfig returns the default store configuration
func DefaultConfig() Config {
	return Config{PersistTimeout: 5 * time.Second}
}

// Store owns the authoritative board snapshot. Writers are serialised and
// every write replaces the snapshot wholesale; readers get deep copies.
type Store struct {
	mu      sync.Mutex // serialises writers
	current atomic.Pointer[models.ScoreboardState]
	seq     uint64

	subMu       sync.RWMutex
	subscribers []Subscriber

	persister Persister
	persistCh chan models.ScoreboardState
	recorder  Recorder
	config    Config
	clock     clockwork.Clock
}

// Option configures a Store
type Option func(*Store)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock sets the clock used to stamp patched timers.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Store) { s.config = cfg }
}

// New creates a store holding the default board. persister may be nil.
func New(persister Persister, opts ...Option) *Store {
	s := &Store{
		persister: persister,
		persistCh: make(chan models.ScoreboardState, 1),
		recorder:  noopRecorder{},
		config:    DefaultConfig(),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	initial := models.DefaultScoreboardState()
	s.current.Store(&initial)
	return s
}

// Load replaces the snapshot with the persisted one. Called once at boot.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	loaded, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if loaded == nil {
		log.Info().Msg("no persisted snapshot, starting from a fresh board")
		return nil
	}
	normalize(loaded)

	s.mu.Lock()
	s.current.Store(loaded)
	s.mu.Unlock()

	log.Info().
		Int("history", len(loaded.Rounds.History)).
		Str("game_status", string(loaded.Rounds.GameStatus)).
		Msg("snapshot loaded")
	return nil
}

// Get returns a deep copy of the current snapshot.
func (s *Store) Get() models.ScoreboardState {
	return s.current.Load().Clone()
}

// Seq returns the sequence number of the last applied mutation.
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Snapshot returns the sequence number and a copy of the snapshot it
// belongs to, read together under the writer lock.
func (s *Store) Snapshot() (uint64, models.ScoreboardState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq, s.current.Load().Clone()
}

// Subscribe registers a subscriber for replaced snapshots.
func (s *Store) Subscribe(sub Subscriber) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// Update applies fn to a copy of the snapshot. When fn returns true the copy
// replaces the snapshot, is broadcast and is queued for persistence. When fn
// returns false or panics nothing changes and Update returns false.
func (s *Store) Update(op string, fn func(*models.ScoreboardState) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Load().Clone()
	if !s.apply(op, fn, &next) {
		s.recorder.RecordMutation(op, false)
		return false
	}

	s.commit(op, next)
	return true
}

// Replace swaps in a whole new snapshot, used by restore and reset.
func (s *Store) Replace(op string, state models.ScoreboardState) {
	normalize(&state)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(op, state.Clone())
}

// Rebroadcast sends the current snapshot to subscribers again without
// changing it.
func (s *Store) Rebroadcast(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(op, *s.current.Load())
}

func (s *Store) apply(op string, fn func(*models.ScoreboardState) bool, next *models.ScoreboardState) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("op", op).Interface("panic", r).Msg("mutation panicked, snapshot left untouched")
			ok = false
		}
	}()
	return fn(next)
}

// commit must be called with s.mu held.
func (s *Store) commit(op string, next models.ScoreboardState) {
	s.current.Store(&next)
	s.seq++
	s.recorder.RecordMutation(op, true)
	s.publish(op, next)
	s.schedulePersist(next)
}

// publish must be called with s.mu held so subscribers see mutation order.
func (s *Store) publish(op string, state models.ScoreboardState) {
	s.subMu.RLock()
	subs := s.subscribers
	s.subMu.RUnlock()

	for _, sub := range subs {
		sub.OnStateReplaced(s.seq, op, state.Clone())
	}
}

// schedulePersist keeps only the latest pending snapshot.
func (s *Store) schedulePersist(state models.ScoreboardState) {
	if s.persister == nil {
		return
	}
	select {
	case s.persistCh <- state:
	default:
		select {
		case <-s.persistCh:
		default:
		}
		s.persistCh <- state
	}
}

// Run persists queued snapshots until ctx is cancelled, then flushes the
// last pending one.
func (s *Store) Run(ctx context.Context) {
	if s.persister == nil {
		<-ctx.Done()
		return
	}
	log.Info().Msg("snapshot persistence worker started")

	for {
		select {
		case <-ctx.Done():
			select {
			case state := <-s.persistCh:
				s.persist(context.Background(), state)
			default:
			}
			log.Info().Msg("snapshot persistence worker stopped")
			return
		case state := <-s.persistCh:
			s.persist(ctx, state)
		}
	}
}

func (s *Store) persist(ctx context.Context, state models.ScoreboardState) {
	ctx, cancel := context.WithTimeout(ctx, s.config.PersistTimeout)
	defer cancel()

	start := time.Now()
	err := s.persister.Save(ctx, state)
	s.recorder.RecordPersist(err == nil, time.Since(start))
	if err != nil {
		log.Error().Err(err).Msg("failed to persist snapshot")
	}
}

// normalize fills nil slices and restores invariants on snapshots coming
// from outside the store.
func normalize(s *models.ScoreboardState) {
	def := models.DefaultScoreboardState()
	if s.Rounds.History == nil {
		s.Rounds.History = []models.RoundHistory{}
	}
	if s.Rounds.Templates == nil {
		s.Rounds.Templates = []models.RoundTemplate{}
	}
	if s.Rounds.Playlists == nil {
		s.Rounds.Playlists = []models.RoundPlaylist{}
	}
	if s.Rounds.Upcoming == nil {
		s.Rounds.Upcoming = []models.RoundConfig{}
	}
	if s.Rounds.GameStatus == "" {
		s.Rounds.GameStatus = def.Rounds.GameStatus
	}
	if !s.ScoringMode.Valid() {
		s.ScoringMode = def.ScoringMode
	}
	if s.RemoteControl.Source == "" {
		s.RemoteControl.Source = models.ControlSourceLocal
	}
	if s.Timer.Status == "" {
		s.Timer = models.StoppedTimer()
	}
	s.Team1.ID = models.Team1
	s.Team2.ID = models.Team2
	if s.Rounds.IsBetweenRounds {
		s.Rounds.Current = models.PlaceholderRound()
	}
}
