package rtcnet

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/peer"
)

// channel wraps one data channel and owns its peer connection.
type channel struct {
	remoteID string
	pc       *webrtc.PeerConnection
	dc       *webrtc.DataChannel
	inbox    peer.Inbox

	once     sync.Once
	released func(*channel)
}

func newChannel(remoteID string, pc *webrtc.PeerConnection, dc *webrtc.DataChannel, released func(*channel)) *channel {
	ch := &channel{
		remoteID: remoteID,
		pc:       pc,
		dc:       dc,
		released: released,
	}

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		ch.inbox.PushData(msg.Data)
	})

	dc.OnError(func(err error) {
		ch.inbox.PushError(fmt.Errorf("data channel to %s: %w", remoteID, err))
	})

	dc.OnClose(func() {
		go ch.shutdown()
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			go ch.shutdown()
		}
	})

	return ch
}

func (that *channel) RemoteID() string {
	return that.remoteID
}

func (that *channel) IsOpen() bool {
	return that.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (that *channel) Send(data []byte) error {
	if !that.IsOpen() {
		return fmt.Errorf("failed to send to %q: %w", that.remoteID, apperror.ErrNotConnected)
	}

	if err := that.dc.SendText(string(data)); err != nil {
		return fmt.Errorf("failed to send to %q: %w", that.remoteID, err)
	}

	return nil
}

func (that *channel) SetHandler(handler peer.ChannelHandler) {
	that.inbox.SetHandler(handler)
}

func (that *channel) Close() error {
	that.shutdown()

	return nil
}

func (that *channel) shutdown() {
	that.once.Do(func() {
		that.inbox.PushClose()

		_ = that.dc.Close()
		_ = that.pc.Close()

		if that.released != nil {
			that.released(that)
		}
	})
}
