package store

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mcdev12/improvscore/go/internal/models"
)

// Backup is the envelope written by Export
type Backup struct {
	Version    int                    `json:"version"`
	ExportedAt time.Time              `json:"exportedAt"`
	State      models.ScoreboardState `json:"state"`
}

const backupVersion = 1

// Export writes the current snapshot as a JSON backup.
func (s *Store) Export(w io.Writer) error {
	b := Backup{
		Version:    backupVersion,
		ExportedAt: time.Now().UTC(),
		State:      s.Get(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// Import replaces the snapshot with the one read from a backup. The
// replaced snapshot is broadcast and persisted like any other mutation.
func (s *Store) Import(r io.Reader) error {
	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return fmt.Errorf("decode backup: %w", err)
	}
	if b.Version != backupVersion {
		return fmt.Errorf("unsupported backup version %d", b.Version)
	}
	s.Replace("restore", b.State)
	return nil
}
