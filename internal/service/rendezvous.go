package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
	"github.com/rocketscienceinc/arcade-backend/internal/pkg"
	"github.com/rocketscienceinc/arcade-backend/internal/repository"
)

// RendezvousService lets peers claim ids and exchange offers and answers by id.
type RendezvousService interface {
	// Claim - the returned channel closes when the claim is released.
	Claim(ctx context.Context, peerID, session string) (*entity.PeerClaim, <-chan entity.Signal, error)
	Refresh(ctx context.Context, peerID, session string) error
	Release(ctx context.Context, peerID, session string) error

	Relay(ctx context.Context, from string, signal entity.Signal) error
	Lookup(ctx context.Context, peerID string) (*entity.PeerClaim, error)
}

type peerRepo interface {
	Claim(ctx context.Context, claim *entity.PeerClaim, ttl time.Duration) error
	Refresh(ctx context.Context, peerID, session string, ttl time.Duration) error
	Release(ctx context.Context, peerID, session string) error
	GetByID(ctx context.Context, peerID string) (*entity.PeerClaim, error)
}

type signalRelay interface {
	Publish(ctx context.Context, signal entity.Signal) (bool, error)
	Subscribe(ctx context.Context, peerID string) (repository.Subscription, error)
}

type subscription struct {
	session string
	sub     repository.Subscription
}

type rendezvousService struct {
	logger   *slog.Logger
	peerRepo peerRepo
	relay    signalRelay
	claimTTL time.Duration
	now      func() time.Time

	mu   sync.Mutex
	subs map[string]subscription
}

func NewRendezvousService(logger *slog.Logger, peerRepo peerRepo, relay signalRelay, claimTTL time.Duration) RendezvousService {
	return &rendezvousService{
		logger:   logger.With("component", "rendezvous"),
		peerRepo: peerRepo,
		relay:    relay,
		claimTTL: claimTTL,
		now:      time.Now,
		subs:     make(map[string]subscription),
	}
}

func (that *rendezvousService) Claim(ctx context.Context, peerID, session string) (*entity.PeerClaim, <-chan entity.Signal, error) {
	log := that.logger.With("method", "Claim", "session", session)

	if peerID == "" {
		peerID = pkg.GeneratePeerID()
	}

	if !entity.IsValidPeerID(peerID) {
		return nil, nil, apperror.ErrInvalidRoomID
	}

	claim := &entity.PeerClaim{
		PeerID:    peerID,
		Session:   session,
		ClaimedAt: that.now().UTC(),
	}

	if err := that.peerRepo.Claim(ctx, claim, that.claimTTL); err != nil {
		if errors.Is(err, apperror.ErrRoomTaken) {
			return nil, nil, apperror.ErrRoomTaken
		}

		return nil, nil, fmt.Errorf("failed to claim peer id: %w", err)
	}

	sub, err := that.relay.Subscribe(ctx, peerID)
	if err != nil {
		if releaseErr := that.peerRepo.Release(context.WithoutCancel(ctx), peerID, session); releaseErr != nil {
			log.Warn("failed to roll back claim", "peer_id", peerID, "error", releaseErr)
		}

		return nil, nil, fmt.Errorf("failed to subscribe to signals: %w", err)
	}

	that.mu.Lock()
	previous, replaced := that.subs[peerID]
	that.subs[peerID] = subscription{session: session, sub: sub}
	that.mu.Unlock()

	// a re-claim or an expired claim taken over leaves an older subscription behind
	if replaced {
		if err := previous.sub.Close(); err != nil {
			log.Warn("failed to close replaced signal subscription", "peer_id", peerID, "error", err)
		}
	}

	log.Info("peer id claimed", "peer_id", peerID)

	return claim, sub.Signals(), nil
}

func (that *rendezvousService) Refresh(ctx context.Context, peerID, session string) error {
	if err := that.peerRepo.Refresh(ctx, peerID, session, that.claimTTL); err != nil {
		return fmt.Errorf("failed to refresh claim: %w", err)
	}

	return nil
}

// Release - frees the id and ends the signal subscription of the session.
func (that *rendezvousService) Release(ctx context.Context, peerID, session string) error {
	log := that.logger.With("method", "Release", "session", session)

	that.mu.Lock()
	current, ok := that.subs[peerID]
	if ok && current.session == session {
		delete(that.subs, peerID)
	}
	that.mu.Unlock()

	if ok && current.session == session {
		if err := current.sub.Close(); err != nil {
			log.Warn("failed to close signal subscription", "peer_id", peerID, "error", err)
		}
	}

	if err := that.peerRepo.Release(ctx, peerID, session); err != nil {
		return fmt.Errorf("failed to release claim: %w", err)
	}

	log.Info("peer id released", "peer_id", peerID)

	return nil
}

// Relay - forwards signal to the claimant of signal.To. ErrRoomNotFound when nobody holds it.
func (that *rendezvousService) Relay(ctx context.Context, from string, signal entity.Signal) error {
	if signal.To == "" || !signal.Kind.IsValid() || signal.SDP == "" {
		return apperror.ErrInvalidMessage
	}

	signal.From = from

	delivered, err := that.relay.Publish(ctx, signal)
	if err != nil {
		return fmt.Errorf("failed to relay signal: %w", err)
	}

	if !delivered {
		return apperror.ErrRoomNotFound
	}

	return nil
}

func (that *rendezvousService) Lookup(ctx context.Context, peerID string) (*entity.PeerClaim, error) {
	claim, err := that.peerRepo.GetByID(ctx, peerID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up peer id: %w", err)
	}

	return claim, nil
}
