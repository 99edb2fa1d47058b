package statesync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
)

// VersionedState is a snapshot stamped with the time it was taken, in milliseconds since the Unix epoch.
type VersionedState[S any] struct {
	State     S       `json:"state"`
	Timestamp float64 `json:"timestamp"`
}

// Snapshot is either a VersionedState or a Bare state that still needs a stamp.
type Snapshot[S any] interface {
	versioned(now float64) VersionedState[S]
}

func (that VersionedState[S]) versioned(now float64) VersionedState[S] {
	if !isFinite(that.Timestamp) {
		that.Timestamp = now
	}

	return that
}

type bare[S any] struct {
	state S
}

func (that bare[S]) versioned(now float64) VersionedState[S] {
	return VersionedState[S]{State: that.state, Timestamp: now}
}

// Bare - wraps an unstamped state; Reconcile stamps it with the current time.
func Bare[S any](state S) Snapshot[S] {
	return bare[S]{state: state}
}

type Clock func() float64

// Now - wall clock in milliseconds.
func Now() float64 {
	return float64(time.Now().UnixMilli())
}

type Option func(*options)

type options struct {
	clock Clock
}

func WithClock(clock Clock) Option {
	return func(that *options) {
		that.clock = clock
	}
}

// Synchronizer keeps the latest local and remote versions of a game state.
type Synchronizer[S any] struct {
	mu     sync.Mutex
	clock  Clock
	local  *VersionedState[S]
	remote *VersionedState[S]
}

func New[S any](opts ...Option) *Synchronizer[S] {
	o := options{clock: Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Synchronizer[S]{clock: o.clock}
}

// SyncState - stamps a local snapshot and records it as the latest local state.
func (that *Synchronizer[S]) SyncState(state S) VersionedState[S] {
	versioned := VersionedState[S]{State: state, Timestamp: that.clock()}

	that.mu.Lock()
	that.local = &versioned
	that.mu.Unlock()

	return versioned
}

// ReceiveState - records a remote snapshot. Non-finite timestamps are rejected.
func (that *Synchronizer[S]) ReceiveState(state VersionedState[S]) (VersionedState[S], error) {
	if !isFinite(state.Timestamp) {
		return VersionedState[S]{}, fmt.Errorf("failed to receive state: %w", apperror.ErrInvalidTimestamp)
	}

	that.mu.Lock()
	that.remote = &state
	that.mu.Unlock()

	return state, nil
}

// Reconcile - picks the newer snapshot. Equal timestamps are settled by comparing
// the JSON encodings so both peers pick the same winner.
func (that *Synchronizer[S]) Reconcile(localSnapshot, remoteSnapshot Snapshot[S]) VersionedState[S] {
	now := that.clock()
	local := localSnapshot.versioned(now)
	remote := remoteSnapshot.versioned(now)

	winner := local

	switch {
	case remote.Timestamp > local.Timestamp:
		winner = remote
	case remote.Timestamp == local.Timestamp && tieBreak(remote.State, local.State) > 0:
		winner = remote
	}

	that.mu.Lock()
	that.local = &winner
	that.remote = &remote
	that.mu.Unlock()

	return winner
}

func (that *Synchronizer[S]) LatestLocal() (VersionedState[S], bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.local == nil {
		return VersionedState[S]{}, false
	}

	return *that.local, true
}

func (that *Synchronizer[S]) LatestRemote() (VersionedState[S], bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.remote == nil {
		return VersionedState[S]{}, false
	}

	return *that.remote, true
}

// tieBreak - compares the canonical encodings of two states. A state that cannot be encoded loses.
func tieBreak[S any](a, b S) int {
	encodedA, errA := json.Marshal(a)
	encodedB, errB := json.Marshal(b)

	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}

	return bytes.Compare(encodedA, encodedB)
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
