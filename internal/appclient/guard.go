// internal/appclient/guard.go
package appclient

import (
	"errors"
	"fmt"
)

// Guard suppresses duplicate materialization attempts for the same session
// handle across both trigger paths (deep link and poller) and across app
// relaunches. It is a best-effort optimization: the server's atomic consume
// is the real safety mechanism; the guard just keeps duplicate triggers off
// the network.
type Guard struct {
	storage Storage
}

func NewGuard(storage Storage) *Guard {
	return &Guard{storage: storage}
}

// ShouldProcess reports whether the handle differs from the last one this
// device already materialized.
func (g *Guard) ShouldProcess(handle string) (bool, error) {
	last, err := g.storage.Get(KeyLastProcessedHandle)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("failed to read processed marker: %w", err)
	}
	return handle != last, nil
}

// MarkProcessing writes the marker BEFORE the consume network call, not
// after success. If the app is killed between marking and the server's
// response, the handle stays blocked on this device even though it may
// never have been consumed server-side. That trade-off is deliberate: a
// sticky relaunch URL must never loop a half-finished handoff, and a user
// who lost the race can just sign in again, which stages a fresh handle
// and unblocks the guard naturally.
func (g *Guard) MarkProcessing(handle string) error {
	if err := g.storage.Set(KeyLastProcessedHandle, handle); err != nil {
		return fmt.Errorf("failed to write processed marker: %w", err)
	}
	return nil
}

// Clear removes the marker. Called on explicit logout only; session expiry
// never clears it.
func (g *Guard) Clear() error {
	if err := g.storage.Delete(KeyLastProcessedHandle); err != nil {
		return fmt.Errorf("failed to clear processed marker: %w", err)
	}
	return nil
}
