package rtcnet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/entity"
	"github.com/rocketscienceinc/arcade-backend/internal/peer"
)

const answerTimeout = 15 * time.Second

type signalResult struct {
	sdp string
	err error
}

type node struct {
	id        string
	network   *Network
	logger    *slog.Logger
	handler   peer.NodeHandler
	signaling *signalingClient

	mu        sync.Mutex
	closed    bool
	pending   map[string]chan signalResult
	channels  map[*channel]struct{}
	peerConns map[*webrtc.PeerConnection]struct{}
}

func (that *node) ID() string {
	return that.id
}

// Connect - offers a data channel to remoteID through the rendezvous server and waits for it to open.
func (that *node) Connect(ctx context.Context, remoteID string) (peer.Channel, error) {
	log := that.logger.With("method", "Connect", "remote_id", remoteID)

	answers, err := that.expect(remoteID)
	if err != nil {
		return nil, err
	}
	defer that.forget(remoteID, answers)

	pc, err := that.network.newPeerConnection()
	if err != nil {
		return nil, err
	}

	ordered := true
	dc, err := pc.CreateDataChannel(dataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}

	ch := newChannel(remoteID, pc, dc, that.release)

	opened := make(chan struct{})
	var openOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() { close(opened) })
	})

	fail := func(err error) (peer.Channel, error) {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to connect to %q: %w", remoteID, err)
	}

	sdp, err := that.localDescription(ctx, pc, true)
	if err != nil {
		return fail(err)
	}

	if err = that.signaling.send(entity.ActionSignal, entity.Signal{To: remoteID, Kind: entity.SignalOffer, SDP: sdp}); err != nil {
		return fail(err)
	}

	var answer signalResult

	select {
	case answer = <-answers:
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	if answer.err != nil {
		return fail(answer.err)
	}

	if err = pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.sdp}); err != nil {
		return fail(fmt.Errorf("failed to set answer: %w", err))
	}

	select {
	case <-opened:
	case <-ctx.Done():
		return fail(ctx.Err())
	}

	if !that.track(ch) {
		return fail(apperror.ErrDisconnected)
	}

	log.Info("data channel open")

	return ch, nil
}

// Close - releases the claimed id and tears down every peer connection.
func (that *node) Close() error {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return nil
	}

	that.closed = true

	pending := that.pending
	that.pending = make(map[string]chan signalResult)

	channels := that.channels
	that.channels = make(map[*channel]struct{})

	peerConns := that.peerConns
	that.peerConns = make(map[*webrtc.PeerConnection]struct{})
	that.mu.Unlock()

	for _, answers := range pending {
		answers <- signalResult{err: apperror.ErrDisconnected}
	}

	for ch := range channels {
		_ = ch.Close()
	}

	for pc := range peerConns {
		_ = pc.Close()
	}

	return that.signaling.close()
}

// readSignals - serves the rendezvous socket until it closes.
func (that *node) readSignals() {
	log := that.logger.With("method", "readSignals")

	for {
		msg, err := that.signaling.read()
		if err != nil {
			if that.isClosed() {
				return
			}

			// open channels keep working without the rendezvous server
			log.Warn("signaling connection lost", "error", err)
			that.failPending(errSignalingClosed)
			that.handler.HandleError(fmt.Errorf("%w: %w", errSignalingClosed, err))

			return
		}

		switch msg.Action {
		case entity.ActionSignal:
			var signal entity.Signal
			if err = json.Unmarshal(msg.Payload, &signal); err != nil {
				log.Debug("failed to unmarshal signal", "error", err)
				continue
			}

			switch signal.Kind {
			case entity.SignalOffer:
				go that.answer(signal)
			case entity.SignalAnswer:
				that.resolve(signal.From, signalResult{sdp: signal.SDP})
			}
		case entity.ActionError:
			var payload entity.ErrorPayload
			if err = json.Unmarshal(msg.Payload, &payload); err != nil {
				log.Debug("failed to unmarshal error", "error", err)
				continue
			}

			if payload.Code == entity.CodePeerUnavailable && payload.To != "" {
				that.resolve(payload.To, signalResult{err: apperror.ErrRoomNotFound})
				continue
			}

			log.Warn("rendezvous error", "code", payload.Code, "message", payload.Message)
			that.handler.HandleError(fmt.Errorf("%w: %s %s", errRendezvous, payload.Code, payload.Message))
		}
	}
}

// answer - accepts an incoming offer and surfaces its data channel once open.
func (that *node) answer(offer entity.Signal) {
	log := that.logger.With("method", "answer", "remote_id", offer.From)

	pc, err := that.network.newPeerConnection()
	if err != nil {
		log.Error("failed to create peer connection", "error", err)
		return
	}

	if !that.trackPeerConn(pc) {
		_ = pc.Close()
		return
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		ch := newChannel(offer.From, pc, dc, that.release)

		dc.OnOpen(func() {
			if !that.track(ch) {
				_ = ch.Close()
				return
			}

			log.Info("data channel open")
			that.handler.HandleChannel(ch)
		})
	})

	if err = pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}); err != nil {
		log.Warn("failed to set offer", "error", err)
		that.dropPeerConn(pc)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), answerTimeout)
	defer cancel()

	sdp, err := that.localDescription(ctx, pc, false)
	if err != nil {
		log.Warn("failed to create answer", "error", err)
		that.dropPeerConn(pc)
		return
	}

	if err = that.signaling.send(entity.ActionSignal, entity.Signal{To: offer.From, Kind: entity.SignalAnswer, SDP: sdp}); err != nil {
		log.Warn("failed to send answer", "error", err)
		that.dropPeerConn(pc)
	}
}

// localDescription - creates an offer or answer and waits for ICE gathering so the SDP carries every candidate.
func (that *node) localDescription(ctx context.Context, pc *webrtc.PeerConnection, offer bool) (string, error) {
	var (
		desc webrtc.SessionDescription
		err  error
	)

	if offer {
		desc, err = pc.CreateOffer(nil)
	} else {
		desc, err = pc.CreateAnswer(nil)
	}

	if err != nil {
		return "", fmt.Errorf("failed to create session description: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)

	if err = pc.SetLocalDescription(desc); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return "", fmt.Errorf("failed to gather ice candidates: %w", ctx.Err())
	}

	local := pc.LocalDescription()
	if local == nil {
		return "", errors.New("local description is missing")
	}

	return local.SDP, nil
}

// expect - registers the single dial to remoteID waiting for an answer.
func (that *node) expect(remoteID string) (chan signalResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return nil, fmt.Errorf("failed to connect to %q: %w", remoteID, apperror.ErrDisconnected)
	}

	if _, ok := that.pending[remoteID]; ok {
		return nil, fmt.Errorf("failed to connect to %q: dial already in progress", remoteID)
	}

	answers := make(chan signalResult, 1)
	that.pending[remoteID] = answers

	return answers, nil
}

func (that *node) forget(remoteID string, answers chan signalResult) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.pending[remoteID] == answers {
		delete(that.pending, remoteID)
	}
}

func (that *node) resolve(remoteID string, result signalResult) {
	that.mu.Lock()
	answers, ok := that.pending[remoteID]
	delete(that.pending, remoteID)
	that.mu.Unlock()

	if ok {
		answers <- result
	}
}

func (that *node) failPending(err error) {
	that.mu.Lock()
	pending := that.pending
	that.pending = make(map[string]chan signalResult)
	that.mu.Unlock()

	for _, answers := range pending {
		answers <- signalResult{err: err}
	}
}

func (that *node) track(ch *channel) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}

	that.channels[ch] = struct{}{}

	return true
}

func (that *node) trackPeerConn(pc *webrtc.PeerConnection) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}

	that.peerConns[pc] = struct{}{}

	return true
}

// dropPeerConn - forgets and closes a peer connection whose answer never went out.
func (that *node) dropPeerConn(pc *webrtc.PeerConnection) {
	that.mu.Lock()
	delete(that.peerConns, pc)
	that.mu.Unlock()

	_ = pc.Close()
}

func (that *node) release(ch *channel) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.channels, ch)
	delete(that.peerConns, ch.pc)
}

func (that *node) isClosed() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.closed
}
