package repository

import (
	"context"
	"sync"
	"time"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
)

type memoryClaim struct {
	claim     entity.PeerClaim
	expiresAt time.Time
}

type memoryPeer struct {
	mu     sync.Mutex
	now    func() time.Time
	claims map[string]memoryClaim
}

// NewMemoryPeerRepository - single instance registry for running the rendezvous without Redis.
func NewMemoryPeerRepository() PeerRepository {
	return &memoryPeer{
		now:    time.Now,
		claims: make(map[string]memoryClaim),
	}
}

func (that *memoryPeer) Claim(_ context.Context, claim *entity.PeerClaim, ttl time.Duration) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.lookup(claim.PeerID); ok {
		return apperror.ErrRoomTaken
	}

	that.claims[claim.PeerID] = memoryClaim{claim: *claim, expiresAt: that.now().Add(ttl)}

	return nil
}

func (that *memoryPeer) Refresh(_ context.Context, peerID, session string, ttl time.Duration) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	existing, ok := that.lookup(peerID)
	if !ok || existing.claim.Session != session {
		return apperror.ErrNotClaimed
	}

	existing.expiresAt = that.now().Add(ttl)
	that.claims[peerID] = existing

	return nil
}

func (that *memoryPeer) Release(_ context.Context, peerID, session string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	existing, ok := that.lookup(peerID)
	if !ok || existing.claim.Session != session {
		return apperror.ErrNotClaimed
	}

	delete(that.claims, peerID)

	return nil
}

func (that *memoryPeer) GetByID(_ context.Context, peerID string) (*entity.PeerClaim, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	existing, ok := that.lookup(peerID)
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	claim := existing.claim

	return &claim, nil
}

// lookup drops the claim when its ttl has passed. Callers hold mu.
func (that *memoryPeer) lookup(peerID string) (memoryClaim, bool) {
	existing, ok := that.claims[peerID]
	if !ok {
		return memoryClaim{}, false
	}

	if !that.now().Before(existing.expiresAt) {
		delete(that.claims, peerID)
		return memoryClaim{}, false
	}

	return existing, true
}

type memoryRelay struct {
	mu          sync.Mutex
	subscribers map[string]map[*memorySubscription]struct{}
}

func NewMemorySignalRelay() SignalRelay {
	return &memoryRelay{
		subscribers: make(map[string]map[*memorySubscription]struct{}),
	}
}

func (that *memoryRelay) Publish(_ context.Context, signal entity.Signal) (bool, error) {
	that.mu.Lock()
	targets := make([]*memorySubscription, 0, len(that.subscribers[signal.To]))
	for sub := range that.subscribers[signal.To] {
		targets = append(targets, sub)
	}
	that.mu.Unlock()

	delivered := false
	for _, sub := range targets {
		if sub.deliver(signal) {
			delivered = true
		}
	}

	return delivered, nil
}

func (that *memoryRelay) Subscribe(_ context.Context, peerID string) (Subscription, error) {
	sub := &memorySubscription{
		relay:   that,
		peerID:  peerID,
		signals: make(chan entity.Signal, 16),
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.subscribers[peerID] == nil {
		that.subscribers[peerID] = make(map[*memorySubscription]struct{})
	}
	that.subscribers[peerID][sub] = struct{}{}

	return sub, nil
}

func (that *memoryRelay) remove(sub *memorySubscription) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.subscribers[sub.peerID], sub)
	if len(that.subscribers[sub.peerID]) == 0 {
		delete(that.subscribers, sub.peerID)
	}
}

type memorySubscription struct {
	relay   *memoryRelay
	peerID  string
	mu      sync.Mutex
	closed  bool
	signals chan entity.Signal
}

func (that *memorySubscription) Signals() <-chan entity.Signal {
	return that.signals
}

func (that *memorySubscription) Close() error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return nil
	}

	that.closed = true
	close(that.signals)
	that.relay.remove(that)

	return nil
}

// deliver drops the signal when the reader has fallen a full buffer behind.
func (that *memorySubscription) deliver(signal entity.Signal) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}

	select {
	case that.signals <- signal:
		return true
	default:
		return false
	}
}
