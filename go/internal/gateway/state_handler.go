package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
)

const maxRestoreBytes = 4 << 20

// BoardStore is what the state handler needs from the state store
type BoardStore interface {
	Get() models.ScoreboardState
	Export(w io.Writer) error
	Import(r io.Reader) error
}

// MatchReader gives read access to the multi-match ledger
type MatchReader interface {
	GetMatch(id string) *models.Match
	ListMatches() []models.Match
}

// StateHandler handles HTTP requests for the board and matches
type StateHandler struct {
	board   BoardStore
	matches MatchReader
}

// NewStateHandler creates a new state handler
func NewStateHandler(board BoardStore, matches MatchReader) *StateHandler {
	return &StateHandler{board: board, matches: matches}
}

// HandleGetState handles GET /api/state
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.board.Get())
}

// HandleListMatches handles GET /api/matches
func (h *StateHandler) HandleListMatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.matches.ListMatches())
}

// HandleGetMatch handles GET /api/matches/{id}
func (h *StateHandler) HandleGetMatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	match := h.matches.GetMatch(id)
	if match == nil {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// HandleBackup handles GET /api/backup
func (h *StateHandler) HandleBackup(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("scoreboard-%s.json", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := h.board.Export(w); err != nil {
		log.Error().Err(err).Msg("failed to export backup")
	}
}

// HandleRestore handles POST /api/restore
func (h *StateHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxRestoreBytes)
	if err := h.board.Import(body); err != nil {
		log.Warn().Err(err).Msg("rejected backup restore")
		http.Error(w, "invalid backup", http.StatusBadRequest)
		return
	}
	log.Info().Msg("board restored from backup")
	writeJSON(w, http.StatusOK, h.board.Get())
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", h.HandleGetState)
	mux.HandleFunc("GET /api/matches", h.HandleListMatches)
	mux.HandleFunc("GET /api/matches/{id}", h.HandleGetMatch)
	mux.HandleFunc("GET /api/backup", h.HandleBackup)
	mux.HandleFunc("POST /api/restore", h.HandleRestore)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
