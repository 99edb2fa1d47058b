package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/protocol"
	"github.com/rocketscienceinc/arcade-backend/internal/statesync"
)

const (
	hostSlot  = 0
	guestSlot = 1

	defaultSyncEvery = 3
)

type finishedData struct {
	Winner *int `json:"winner"`
}

// Match plays one game over a session. The host simulates and streams snapshots; the guest
// sends its input, predicts locally and adopts every newer snapshot it receives.
type Match[S any, I any] struct {
	logger    *slog.Logger
	session   *Session[S]
	game      Game[S, I]
	syncEvery int

	started  bool
	frames   int
	previous S
	applied  float64

	mu          sync.Mutex
	remoteInput *I
	resetAsked  bool
	finished    bool

	unsubscribe []func()
}

// NewMatch - syncEvery is the number of frames between two host snapshots.
func NewMatch[S any, I any](logger *slog.Logger, session *Session[S], game Game[S, I], syncEvery int) *Match[S, I] {
	if syncEvery <= 0 {
		syncEvery = defaultSyncEvery
	}

	that := &Match[S, I]{
		logger:    logger.With("component", "match", "game", game.Definition.Slug),
		session:   session,
		game:      game,
		syncEvery: syncEvery,
	}

	that.unsubscribe = append(that.unsubscribe,
		session.OnInput(that.handleInput),
		session.OnEvent(that.handleEvent),
	)

	return that
}

// Frame - advances the match by one rendered frame. It returns false once the match is over.
func (that *Match[S, I]) Frame(elapsed time.Duration) bool {
	if that.session.IsHost() {
		return that.hostFrame(elapsed)
	}

	return that.guestFrame(elapsed)
}

// Run - plays frames every interval until the match finishes or ctx is done.
func (that *Match[S, I]) Run(ctx context.Context, interval time.Duration) error {
	defer that.close()

	return Run(ctx, interval, that.Frame)
}

func (that *Match[S, I]) State() S {
	return that.game.Engine.State()
}

func (that *Match[S, I]) IsFinished() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.finished
}

func (that *Match[S, I]) hostFrame(elapsed time.Duration) bool {
	log := that.logger.With("method", "hostFrame")
	engine := that.game.Engine

	if !that.started {
		if !that.session.IsConnected() || !that.game.Definition.AllReady(that.session.Players()) {
			return true
		}

		engine.Reset()
		that.started = true
		that.previous = engine.State()
		that.sendEvent(protocol.EventReset, nil)
		log.Info("match started")
	}

	engine.HandleInput(hostSlot, that.game.Autopilot(engine.State(), hostSlot))

	that.mu.Lock()
	if that.remoteInput != nil {
		engine.HandleInput(guestSlot, *that.remoteInput)
	}
	that.mu.Unlock()

	that.game.Loop.Advance(elapsed)
	that.frames++

	current := engine.State()
	finished := that.game.Finished(current)

	// the snapshot goes first so the guest holds the final state when it sees finished
	if finished || that.frames%that.syncEvery == 0 {
		if _, err := that.session.SyncState(current); err != nil && !errors.Is(err, apperror.ErrNotConnected) {
			log.Warn("failed to sync state", "error", err)
		}
	}

	for _, name := range that.game.Events(that.previous, current) {
		that.announce(name, current)
	}
	that.previous = current

	if finished {
		that.markFinished()
		log.Info("match finished", "winner", that.game.Winner(current))
	}

	return !finished
}

func (that *Match[S, I]) guestFrame(elapsed time.Duration) bool {
	log := that.logger.With("method", "guestFrame")
	engine := that.game.Engine

	that.mu.Lock()
	resetAsked := that.resetAsked
	that.resetAsked = false
	finished := that.finished
	that.mu.Unlock()

	if resetAsked {
		engine.Reset()
		that.applied = 0
	}

	if remote, ok := that.session.LatestRemoteState(); ok && remote.Timestamp > that.applied {
		local := statesync.VersionedState[S]{State: engine.State(), Timestamp: that.applied}
		winner, _ := that.session.Reconcile(local)
		engine.Load(winner.State)
		that.applied = winner.Timestamp
		that.started = true
	}

	if finished || (that.started && that.game.Finished(engine.State())) {
		that.markFinished()
		return false
	}

	input := that.game.Autopilot(engine.State(), guestSlot)
	engine.HandleInput(guestSlot, input)

	err := that.session.SendMessage(protocol.PlayerInput{
		PlayerID:  guestSlot,
		Input:     that.game.ToWire(input),
		Timestamp: that.session.Now(),
	})
	if err != nil && !errors.Is(err, apperror.ErrNotConnected) {
		log.Warn("failed to send input", "error", err)
	}

	// predict until the next snapshot arrives
	if that.started {
		that.game.Loop.Advance(elapsed)
	}

	return true
}

func (that *Match[S, I]) handleInput(msg protocol.PlayerInput) {
	if !that.session.IsHost() || msg.PlayerID != guestSlot {
		return
	}

	input := that.game.FromWire(msg.Input)

	that.mu.Lock()
	that.remoteInput = &input
	that.mu.Unlock()
}

func (that *Match[S, I]) handleEvent(msg protocol.GameEvent) {
	if that.session.IsHost() {
		return
	}

	that.logger.Debug("game event", "name", msg.Name)

	that.mu.Lock()
	defer that.mu.Unlock()

	switch msg.Name {
	case protocol.EventReset:
		that.resetAsked = true
		that.finished = false
	case protocol.EventFinished:
		that.finished = true
	}
}

func (that *Match[S, I]) announce(name protocol.EventName, state S) {
	var data any
	if name == protocol.EventFinished {
		data = finishedData{Winner: that.game.Winner(state)}
	}

	that.sendEvent(name, data)
}

func (that *Match[S, I]) sendEvent(name protocol.EventName, data any) {
	event := protocol.GameEvent{Name: name, Timestamp: that.session.Now()}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			that.logger.Warn("failed to marshal event data", "event", name, "error", err)
			return
		}
		event.Data = raw
	}

	if err := that.session.SendMessage(event); err != nil && !errors.Is(err, apperror.ErrNotConnected) {
		that.logger.Warn("failed to send event", "event", name, "error", err)
	}
}

func (that *Match[S, I]) markFinished() {
	that.mu.Lock()
	that.finished = true
	that.mu.Unlock()
}

func (that *Match[S, I]) close() {
	for _, unsubscribe := range that.unsubscribe {
		unsubscribe()
	}
}
