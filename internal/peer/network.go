package peer

import "context"

// Network opens peer identities. Implementations: rtcnet (WebRTC) and loopback (in-process).
type Network interface {
	// Open - claims id as the local identity. An empty id asks for an anonymous one.
	Open(ctx context.Context, id string, handler NodeHandler) (Node, error)
}

// Node is one opened identity.
type Node interface {
	ID() string
	// Connect - opens a reliable ordered channel to remoteID and returns once it is open.
	Connect(ctx context.Context, remoteID string) (Channel, error)
	Close() error
}

// Channel is a reliable ordered message channel to one remote peer.
type Channel interface {
	RemoteID() string
	IsOpen() bool
	Send(data []byte) error
	// SetHandler - attaches the event handler. Events raised before it is attached are held back.
	SetHandler(handler ChannelHandler)
	Close() error
}

// NodeHandler receives node events. Nil funcs are skipped.
type NodeHandler struct {
	OnChannel func(channel Channel)
	OnError   func(err error)
	OnClose   func()
}

func (that NodeHandler) HandleChannel(channel Channel) {
	if that.OnChannel != nil {
		that.OnChannel(channel)
	}
}

func (that NodeHandler) HandleError(err error) {
	if that.OnError != nil {
		that.OnError(err)
	}
}

func (that NodeHandler) HandleClose() {
	if that.OnClose != nil {
		that.OnClose()
	}
}

// ChannelHandler receives channel events. Nil funcs are skipped.
type ChannelHandler struct {
	OnData  func(data []byte)
	OnClose func()
	OnError func(err error)
}

func (that ChannelHandler) HandleData(data []byte) {
	if that.OnData != nil {
		that.OnData(data)
	}
}

func (that ChannelHandler) HandleClose() {
	if that.OnClose != nil {
		that.OnClose()
	}
}

func (that ChannelHandler) HandleError(err error) {
	if that.OnError != nil {
		that.OnError(err)
	}
}
