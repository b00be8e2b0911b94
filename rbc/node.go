package rbc

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"asyncmpc/logging"
	"asyncmpc/networking"
)

// handler is what a Node pumps received messages into; both broadcaster
// variants satisfy it.
type handler interface {
	HandleMessage(from int32, bs []byte) error
}

// Node binds a broadcaster to a network interface for standalone use: it
// wraps outgoing messages in packets carrying the sender id and runs the
// receive loop. When the broadcaster lives under the runtime, the runtime
// plays this role instead.
type Node struct {
	handler handler
	iface   networking.NetworkInterface
	log     zerolog.Logger
}

// outbound returns the send function a broadcaster needs on this interface.
func outbound(iface networking.NetworkInterface, tag string) func([]byte) error {
	return func(bs []byte) error {
		pkt := networking.NewPacket(iface.GetID(), tag, 0, bs)
		frame, err := pkt.Marshal()
		if err != nil {
			return err
		}
		return iface.Broadcast(frame)
	}
}

// NewNode creates a plain Bracha broadcaster on the interface and the node
// running it.
func NewNode(n, t int, iface networking.NetworkInterface) (*Node, *Broadcaster, error) {
	b, err := NewBroadcaster(n, t, iface.GetID(), outbound(iface, "rbc"))
	if err != nil {
		return nil, nil, err
	}
	return &Node{handler: b, iface: iface, log: logging.GetLogger(iface.GetID())}, b, nil
}

// NewCodedNode creates a coded broadcaster on the interface and the node
// running it.
func NewCodedNode(n, t int, iface networking.NetworkInterface) (*Node, *CodedBroadcaster, error) {
	b, err := NewCodedBroadcaster(n, t, iface.GetID(), outbound(iface, "rbc-coded"))
	if err != nil {
		return nil, nil, err
	}
	return &Node{handler: b, iface: iface, log: logging.GetLogger(iface.GetID())}, b, nil
}

// Run pumps received packets into the broadcaster until the context is done.
func (nd *Node) Run(ctx context.Context) error {
	for {
		bs, err := nd.iface.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			nd.log.Error().Err(err).Msg("error receiving message")
			continue
		}
		pkt := &networking.Packet{}
		if err := pkt.Unmarshal(bs); err != nil {
			nd.log.Error().Err(err).Msg("error decoding packet")
			continue
		}
		if err := nd.handler.HandleMessage(pkt.Sender, pkt.Payload); err != nil {
			nd.log.Err(err).Msg("error handling message")
		}
	}
}
