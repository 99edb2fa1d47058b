package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
)

const peerKeyPrefix = "peer:"

// PeerRepository is the registry of claimed peer ids.
type PeerRepository interface {
	Claim(ctx context.Context, claim *entity.PeerClaim, ttl time.Duration) error
	Refresh(ctx context.Context, peerID, session string, ttl time.Duration) error
	Release(ctx context.Context, peerID, session string) error
	GetByID(ctx context.Context, peerID string) (*entity.PeerClaim, error)
}

// refreshScript extends the ttl only while the key still belongs to the session.
var refreshScript = redis.NewScript(`
local value = redis.call("GET", KEYS[1])
if not value then
	return 0
end
if cjson.decode(value)["session"] ~= ARGV[1] then
	return 0
end
return redis.call("PEXPIRE", KEYS[1], ARGV[2])
`)

// releaseScript deletes the key only while it still belongs to the session.
var releaseScript = redis.NewScript(`
local value = redis.call("GET", KEYS[1])
if not value then
	return 0
end
if cjson.decode(value)["session"] ~= ARGV[1] then
	return 0
end
return redis.call("DEL", KEYS[1])
`)

type dbPeer struct {
	client *redis.Client
}

func NewPeerRepository(client *redis.Client) PeerRepository {
	return &dbPeer{
		client: client,
	}
}

// Claim - stores the claim unless another session already holds the id.
func (that *dbPeer) Claim(ctx context.Context, claim *entity.PeerClaim, ttl time.Duration) error {
	claimJSON, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("failed to marshal peer claim: %w", err)
	}

	ok, err := that.client.SetNX(ctx, peerKeyPrefix+claim.PeerID, claimJSON, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to claim peer id: %w", err)
	}

	if !ok {
		return apperror.ErrRoomTaken
	}

	return nil
}

func (that *dbPeer) Refresh(ctx context.Context, peerID, session string, ttl time.Duration) error {
	refreshed, err := refreshScript.Run(ctx, that.client, []string{peerKeyPrefix + peerID}, session, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to refresh peer claim: %w", err)
	}

	if refreshed == 0 {
		return apperror.ErrNotClaimed
	}

	return nil
}

func (that *dbPeer) Release(ctx context.Context, peerID, session string) error {
	released, err := releaseScript.Run(ctx, that.client, []string{peerKeyPrefix + peerID}, session).Int()
	if err != nil {
		return fmt.Errorf("failed to release peer claim: %w", err)
	}

	if released == 0 {
		return apperror.ErrNotClaimed
	}

	return nil
}

func (that *dbPeer) GetByID(ctx context.Context, peerID string) (*entity.PeerClaim, error) {
	response, err := that.client.Get(ctx, peerKeyPrefix+peerID).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get peer claim by ID: %w", err)
	}

	var claim entity.PeerClaim
	if err = json.Unmarshal([]byte(response), &claim); err != nil {
		return nil, fmt.Errorf("failed to unmarshal peer claim: %w", err)
	}

	return &claim, nil
}
