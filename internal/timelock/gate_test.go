package timelock

import (
	"testing"
	"time"
)

func TestCanRelease_NoLock(t *testing.T) {
	if !CanRelease(nil, time.Now()) {
		t.Fatal("expected release with no time lock")
	}
}

func TestCanRelease_Future(t *testing.T) {
	now := time.Now()
	unlockAt := now.Add(time.Hour)
	if CanRelease(&unlockAt, now) {
		t.Fatal("expected no release before unlock time")
	}
}

func TestCanRelease_Past(t *testing.T) {
	now := time.Now()
	unlockAt := now.Add(-time.Hour)
	if !CanRelease(&unlockAt, now) {
		t.Fatal("expected release after unlock time")
	}
}

func TestCanRelease_ExactBoundary(t *testing.T) {
	now := time.Now()
	unlockAt := now
	if !CanRelease(&unlockAt, now) {
		t.Fatal("expected release exactly at unlock time")
	}
}
