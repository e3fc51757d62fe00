// Package timelock implements the release decision for time-gated shares.
// It is the sole mechanism preventing early decryption, so every share
// release path must go through CanRelease with the server's own clock.
package timelock

import "time"

// CanRelease reports whether a time-gated share may be released at the given
// moment. A nil unlockAt means the artifact carries no time lock and is
// releasable immediately. The now argument must come from the server's
// trusted clock, never from client input.
func CanRelease(unlockAt *time.Time, now time.Time) bool {
	if unlockAt == nil {
		return true
	}
	return !now.Before(*unlockAt)
}
