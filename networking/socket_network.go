package networking

// Implementation of the network interface on top of the transport layer.
// Players join through one shared TransportNetwork (tests, single process)
// or are wired up from static configuration in a real deployment.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"asyncmpc/transport"
)

const sendTimeout = 5 * time.Second

// PeerMap tracks the id -> address mapping of the group.
type PeerMap struct {
	sync.RWMutex
	peers map[int32]string
}

func NewPeerMap() *PeerMap {
	return &PeerMap{peers: make(map[int32]string)}
}

func (pm *PeerMap) Add(id int32, addr string) {
	pm.Lock()
	defer pm.Unlock()
	pm.peers[id] = addr
}

func (pm *PeerMap) Get(id int32) (string, bool) {
	pm.RLock()
	defer pm.RUnlock()
	addr, ok := pm.peers[id]
	return addr, ok
}

func (pm *PeerMap) All() map[int32]string {
	pm.RLock()
	defer pm.RUnlock()
	out := make(map[int32]string, len(pm.peers))
	for id, addr := range pm.peers {
		out[id] = addr
	}
	return out
}

// TransportNetwork assigns ids and sockets to joining players over a real
// transport.
type TransportNetwork struct {
	mu        sync.Mutex
	transport transport.Transport
	nextID    int32
	peers     *PeerMap
}

// NewTransportNetwork creates a new network instance using the given transport
func NewTransportNetwork(t transport.Transport) *TransportNetwork {
	return &TransportNetwork{
		transport: t,
		nextID:    1,
		peers:     NewPeerMap(),
	}
}

func (n *TransportNetwork) JoinNetwork() (NetworkInterface, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	socket, err := n.transport.CreateSocket("127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to create socket: %w", err)
	}

	id := n.nextID
	n.nextID++
	n.peers.Add(id, socket.GetAddress())

	return NewSocketInterface(socket, id, n.peers), nil
}

// SocketInterface adapts a transport socket to the NetworkInterface the
// protocols consume.
type SocketInterface struct {
	socket transport.Socket
	id     int32
	peers  *PeerMap
}

// NewSocketInterface binds an interface for the player with the given id.
// The peer map may keep growing until every player has joined.
func NewSocketInterface(socket transport.Socket, id int32, peers *PeerMap) *SocketInterface {
	return &SocketInterface{
		socket: socket,
		id:     id,
		peers:  peers,
	}
}

func (s *SocketInterface) Send(msg []byte, to int32) error {
	addr, ok := s.peers.Get(to)
	if !ok {
		return fmt.Errorf("unknown peer %d", to)
	}
	return s.socket.Send(addr, msg, sendTimeout)
}

func (s *SocketInterface) Broadcast(msg []byte) error {
	for id, addr := range s.peers.All() {
		if id == s.id {
			continue
		}
		if err := s.socket.Send(addr, msg, sendTimeout); err != nil {
			return err
		}
	}
	// Deliver to self last, mirroring FakeNetwork broadcast semantics.
	return s.socket.Send(s.socket.GetAddress(), msg, sendTimeout)
}

func (s *SocketInterface) Receive(ctx context.Context) ([]byte, error) {
	return s.socket.Recv(ctx)
}

func (s *SocketInterface) GetID() int32 { return s.id }

// Close tears the underlying socket down; pending Receive calls fail.
func (s *SocketInterface) Close() error { return s.socket.Close() }
