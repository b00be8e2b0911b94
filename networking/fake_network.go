package networking

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeNetwork is a structure implementing a network fully in memory. It
// connects the interfaces of all players and can delay individual players to
// force different message arrival orders in tests.
type FakeNetwork struct {
	mu       sync.Mutex
	nodes    map[int32]chan []byte
	delayMap map[int32]time.Duration
}

func NewFakeNetwork() *FakeNetwork {
	return &FakeNetwork{
		nodes:    make(map[int32]chan []byte),
		delayMap: make(map[int32]time.Duration),
	}
}

// DelayNode adds the given delay to the node when sending a packet.
// Mimics a player having a slow connection
func (n *FakeNetwork) DelayNode(id int32, delay time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delayMap[id] = delay
}

func (n *FakeNetwork) freshID() int32 {
	return int32(len(n.nodes) + 1)
}

func (n *FakeNetwork) JoinWithBuffer(size int) *FakeInterface {
	n.mu.Lock()
	defer n.mu.Unlock()
	queue := make(chan []byte, size)
	iface := NewFakeInterface(queue, n.send, n.broadcast, n.freshID())
	n.nodes[iface.id] = iface.rcvQueue
	return iface
}

// JoinNetwork implements Network
func (n *FakeNetwork) JoinNetwork() (NetworkInterface, error) {
	return n.JoinWithBuffer(1000), nil
}

func (n *FakeNetwork) send(msg []byte, from, to int32) error {
	n.mu.Lock()
	rcv, ok := n.nodes[to]
	delay, delayed := n.delayMap[from]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("destination node %d not found", to)
	}
	// Put the message in the recipient's receive channel
	if delayed {
		go func() {
			time.Sleep(delay)
			rcv <- msg
		}()
	} else {
		rcv <- msg
	}
	return nil
}

func (n *FakeNetwork) broadcast(msg []byte, from int32) error {
	n.mu.Lock()
	ids := make([]int32, 0, len(n.nodes))
	for i := range n.nodes {
		ids = append(ids, i)
	}
	n.mu.Unlock()
	for _, i := range ids {
		err := n.send(msg, from, i)
		if err != nil {
			return err
		}
	}
	return nil
}

// FakeInterface is the per-player endpoint of a FakeNetwork
type FakeInterface struct {
	rcvQueue     chan []byte
	sendMsg      func([]byte, int32, int32) error
	broadcastMsg func([]byte, int32) error
	id           int32
}

func NewFakeInterface(rcv chan []byte, sendMsg func([]byte, int32, int32) error,
	broadcastMsg func([]byte, int32) error, id int32) *FakeInterface {
	return &FakeInterface{
		rcvQueue:     rcv,
		sendMsg:      sendMsg,
		broadcastMsg: broadcastMsg,
		id:           id,
	}
}

func (f *FakeInterface) Send(msg []byte, to int32) error {
	return f.sendMsg(msg, f.id, to)
}

func (f *FakeInterface) Broadcast(msg []byte) error {
	return f.broadcastMsg(msg, f.id)
}

func (f *FakeInterface) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-f.rcvQueue:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *FakeInterface) GetID() int32 {
	return f.id
}
