package networking

import "context"

// NetworkInterface represents the channel a player uses to communicate with
// the rest of the group. Channels are reliable, ordered and authenticated by
// construction; connection lifecycle, retries and encryption live below this
// interface.
type NetworkInterface interface {
	// Send delivers a byte message to the player with the given id
	Send([]byte, int32) error
	// Broadcast sends the given byte message to every player, including the sender
	Broadcast([]byte) error
	// Receive waits for a message to arrive. Blocks until a message arrives
	// or the context is done
	Receive(context.Context) ([]byte, error)
	GetID() int32
}

// Network hands out interfaces to joining players, assigning ids 1..n in
// join order.
type Network interface {
	JoinNetwork() (NetworkInterface, error)
}
