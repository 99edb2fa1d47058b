package loopback

import (
	"fmt"
	"sync"

	"github.com/rocketscienceinc/arcade-backend/internal/apperror"
	"github.com/rocketscienceinc/arcade-backend/internal/peer"
)

// link is shared by both ends of a channel.
type link struct {
	mu     sync.Mutex
	closed bool
}

type channel struct {
	remoteID string
	link     *link
	inbox    peer.Inbox
	far      *channel
}

func newPair(localID, remoteID string) (*channel, *channel) {
	shared := &link{}

	local := &channel{remoteID: remoteID, link: shared}
	far := &channel{remoteID: localID, link: shared}

	local.far = far
	far.far = local

	return local, far
}

func (that *channel) RemoteID() string {
	return that.remoteID
}

func (that *channel) IsOpen() bool {
	that.link.mu.Lock()
	defer that.link.mu.Unlock()

	return !that.link.closed
}

func (that *channel) Send(data []byte) error {
	that.link.mu.Lock()
	defer that.link.mu.Unlock()

	if that.link.closed {
		return fmt.Errorf("failed to send to %q: %w", that.remoteID, apperror.ErrNotConnected)
	}

	// pushed under the link lock so concurrent senders keep one order
	that.far.inbox.PushData(append([]byte(nil), data...))

	return nil
}

func (that *channel) SetHandler(handler peer.ChannelHandler) {
	that.inbox.SetHandler(handler)
}

func (that *channel) Close() error {
	that.link.mu.Lock()
	if that.link.closed {
		that.link.mu.Unlock()
		return nil
	}

	that.link.closed = true
	that.link.mu.Unlock()

	that.inbox.PushClose()
	that.far.inbox.PushClose()

	return nil
}
