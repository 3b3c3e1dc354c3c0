// Package archive copies completed rounds into Postgres for later
// analysis. Archiving runs off the control path and never fails a round.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/mcdev12/improvscore/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

const schema = `
CREATE TABLE IF NOT EXISTS round_history (
	id           BIGSERIAL PRIMARY KEY,
	game_id      UUID        NOT NULL,
	number       INT         NOT NULL,
	title        TEXT,
	round_type   TEXT        NOT NULL,
	theme        TEXT,
	is_mixed     BOOLEAN     NOT NULL DEFAULT FALSE,
	min_players  INT         NOT NULL,
	max_players  INT         NOT NULL,
	time_limit   INT,
	team1_points INT         NOT NULL,
	team2_points INT         NOT NULL,
	penalties    JSONB,
	notes        TEXT,
	archived_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS round_history_game_idx ON round_history (game_id, number);
`

const insertRound = `
INSERT INTO round_history (
	game_id, number, title, round_type, theme, is_mixed, min_players, max_players,
	time_limit, team1_points, team2_points, penalties, notes, archived_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

const selectGame = `
SELECT number, title, round_type, theme, is_mixed, min_players, max_players,
	time_limit, team1_points, team2_points, penalties, notes
FROM round_history
WHERE game_id = $1
ORDER BY number, id`

// Archive writes round history rows. Each process run is one game id.
type Archive struct {
	db     *sql.DB
	gameID uuid.UUID
	clock  clockwork.Clock
	queue  chan models.RoundHistory
}

// Open connects to dsn, checks the connection and ensures the table exists.
func Open(ctx context.Context, dsn string, clock clockwork.Clock) (*Archive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive database: %w", err)
	}
	a := New(db, clock)
	if err := a.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// New wraps an open database.
func New(db *sql.DB, clock clockwork.Clock) *Archive {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Archive{
		db:     db,
		gameID: uuid.New(),
		clock:  clock,
		queue:  make(chan models.RoundHistory, 64),
	}
}

// GameID identifies the rows written by this archive.
func (a *Archive) GameID() uuid.UUID {
	return a.gameID
}

// EnsureSchema creates the archive table when missing.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create archive schema: %w", err)
	}
	return nil
}

// ArchiveRound queues a completed round. It never blocks; when the queue is
// full the record is dropped and logged.
func (a *Archive) ArchiveRound(record models.RoundHistory) {
	select {
	case a.queue <- record:
	default:
		log.Warn().Int("round", record.Number).Msg("archive queue full, dropping round")
	}
}

// Run inserts queued rounds until ctx is done.
func (a *Archive) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-a.queue:
			if err := a.Insert(ctx, record); err != nil {
				log.Error().Err(err).Int("round", record.Number).Msg("failed to archive round")
				continue
			}
			log.Debug().Int("round", record.Number).Str("game_id", a.gameID.String()).Msg("round archived")
		}
	}
}

// Insert writes one round.
func (a *Archive) Insert(ctx context.Context, record models.RoundHistory) error {
	penalties, err := penaltiesColumn(record.Penalties)
	if err != nil {
		return err
	}
	return sqlutil.InTx(ctx, a.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertRound,
			a.gameID,
			record.Number,
			sqlutil.NullString(record.Title),
			string(record.Type),
			sqlutil.NullString(record.Theme),
			record.IsMixed,
			record.MinPlayers,
			record.MaxPlayers,
			sqlutil.NullInt32(record.TimeLimit),
			record.Points.Team1,
			record.Points.Team2,
			penalties,
			sqlutil.NullString(record.Notes),
			a.clock.Now().UTC().Truncate(time.Microsecond),
		)
		if err != nil {
			return fmt.Errorf("insert round %d: %w", record.Number, err)
		}
		return nil
	})
}

// Game returns the archived rounds of gameID in play order.
func (a *Archive) Game(ctx context.Context, gameID uuid.UUID) ([]models.RoundHistory, error) {
	rows, err := a.db.QueryContext(ctx, selectGame, gameID)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	var out []models.RoundHistory
	for rows.Next() {
		var (
			h         models.RoundHistory
			roundType string
			title     sql.NullString
			theme     sql.NullString
			notes     sql.NullString
			timeLimit sql.NullInt32
			penalties pqtype.NullRawMessage
		)
		if err := rows.Scan(
			&h.Number, &title, &roundType, &theme, &h.IsMixed, &h.MinPlayers, &h.MaxPlayers,
			&timeLimit, &h.Points.Team1, &h.Points.Team2, &penalties, &notes,
		); err != nil {
			return nil, fmt.Errorf("scan archived round: %w", err)
		}
		h.Title = title.String
		h.Theme = theme.String
		h.Notes = notes.String
		h.Type = models.RoundType(roundType)
		h.TimeLimit = sqlutil.IntPtr(timeLimit)
		if penalties.Valid {
			if err := json.Unmarshal(penalties.RawMessage, &h.Penalties); err != nil {
				return nil, fmt.Errorf("decode archived penalties: %w", err)
			}
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// penaltiesColumn stores nothing for a round without penalties.
func penaltiesColumn(p models.TeamPenalties) (pqtype.NullRawMessage, error) {
	if p == (models.TeamPenalties{}) {
		return pqtype.NullRawMessage{}, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("encode penalties: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}
