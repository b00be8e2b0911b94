// Package transport defines the byte-frame transport the networking layer
// runs on. Implementations provide reliable, ordered delivery between two
// addresses; everything above addresses players by id.
package transport

import (
	"context"
	"time"
)

// Transport builds sockets bound to local addresses.
type Transport interface {
	CreateSocket(address string) (Socket, error)
}

// Socket sends and receives whole frames.
type Socket interface {
	// Send delivers one frame to the destination address, establishing the
	// connection first if needed.
	Send(dest string, frame []byte, timeout time.Duration) error
	// Recv blocks until a frame arrives or the context is done.
	Recv(ctx context.Context) ([]byte, error)
	// GetAddress returns the bound local address.
	GetAddress() string
	Close() error
}
