// Package remote tracks which actor is driving the board and whether the
// local control surface is locked out.
package remote

import (
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
)

// StateStore is what the arbiter needs from the state store
type StateStore interface {
	Get() models.ScoreboardState
	Update(op string, fn func(*models.ScoreboardState) bool) bool
}

// Arbiter stores the remote control marker of the board. It does not
// enforce the lock; control surfaces read the flag and refuse local edits.
type Arbiter struct {
	store StateStore
}

// NewArbiter creates an arbiter
func NewArbiter(store StateStore) *Arbiter {
	return &Arbiter{store: store}
}

// MarkRemote records that source is now driving the board. The marker is
// overwritten wholesale, which also clears any lock.
func (a *Arbiter) MarkRemote(source string) bool {
	if source == "" {
		return false
	}
	return a.store.Update("remote.mark", func(st *models.ScoreboardState) bool {
		if st.RemoteControl.Source != source {
			log.Info().Str("source", source).Msg("remote control taken")
		}
		st.RemoteControl = models.RemoteControl{Source: source, Locked: false}
		return true
	})
}

// SetLock locks or unlocks local control.
func (a *Arbiter) SetLock(locked bool) bool {
	return a.store.Update("remote.lock", func(st *models.ScoreboardState) bool {
		st.RemoteControl.Locked = locked
		return true
	})
}

// Release hands control back to the local surface.
func (a *Arbiter) Release() bool {
	return a.store.Update("remote.release", func(st *models.ScoreboardState) bool {
		if st.RemoteControl.Source == models.ControlSourceLocal && !st.RemoteControl.Locked {
			return false
		}
		st.RemoteControl = models.RemoteControl{Source: models.ControlSourceLocal}
		return true
	})
}

// Current returns the marker.
func (a *Arbiter) Current() models.RemoteControl {
	return a.store.Get().RemoteControl
}

// Locked reports whether local edits are locked out.
func (a *Arbiter) Locked() bool {
	return a.Current().Locked
}
