package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/arcade-backend/internal/entity"
)

const signalChannelPrefix = "signal:"

// SignalRelay moves signals between rendezvous sockets, possibly on different instances.
type SignalRelay interface {
	// Publish returns false when nobody is subscribed for signal.To.
	Publish(ctx context.Context, signal entity.Signal) (bool, error)
	// Subscribe is active once it returns.
	Subscribe(ctx context.Context, peerID string) (Subscription, error)
}

type Subscription interface {
	Signals() <-chan entity.Signal
	Close() error
}

type pubSubRelay struct {
	logger *slog.Logger
	client *redis.Client
}

func NewSignalRelay(logger *slog.Logger, client *redis.Client) SignalRelay {
	return &pubSubRelay{
		logger: logger.With("component", "signal-relay"),
		client: client,
	}
}

func (that *pubSubRelay) Publish(ctx context.Context, signal entity.Signal) (bool, error) {
	signalJSON, err := json.Marshal(signal)
	if err != nil {
		return false, fmt.Errorf("failed to marshal signal: %w", err)
	}

	receivers, err := that.client.Publish(ctx, signalChannelPrefix+signal.To, signalJSON).Result()
	if err != nil {
		return false, fmt.Errorf("failed to publish signal: %w", err)
	}

	return receivers > 0, nil
}

func (that *pubSubRelay) Subscribe(ctx context.Context, peerID string) (Subscription, error) {
	pubSub := that.client.Subscribe(ctx, signalChannelPrefix+peerID)

	// wait for the subscription confirmation so no publish is missed after return
	if _, err := pubSub.Receive(ctx); err != nil {
		_ = pubSub.Close()
		return nil, fmt.Errorf("failed to subscribe to signals: %w", err)
	}

	sub := &pubSubSubscription{
		pubSub:  pubSub,
		signals: make(chan entity.Signal),
		done:    make(chan struct{}),
	}

	go sub.forward(that.logger.With("peer_id", peerID))

	return sub, nil
}

type pubSubSubscription struct {
	pubSub  *redis.PubSub
	signals chan entity.Signal
	done    chan struct{}
	once    sync.Once
}

func (that *pubSubSubscription) Signals() <-chan entity.Signal {
	return that.signals
}

func (that *pubSubSubscription) Close() error {
	var err error
	that.once.Do(func() {
		close(that.done)
		err = that.pubSub.Close()
	})

	if err != nil {
		return fmt.Errorf("failed to close subscription: %w", err)
	}

	return nil
}

func (that *pubSubSubscription) forward(log *slog.Logger) {
	defer close(that.signals)

	messages := that.pubSub.Channel()
	for {
		select {
		case <-that.done:
			return
		case message, ok := <-messages:
			if !ok {
				return
			}

			var signal entity.Signal
			if err := json.Unmarshal([]byte(message.Payload), &signal); err != nil {
				log.Warn("dropping malformed signal", "error", err)
				continue
			}

			select {
			case that.signals <- signal:
			case <-that.done:
				return
			}
		}
	}
}
