package rbc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"asyncmpc/networking"
)

type testNode struct {
	node  *Node
	b     *Broadcaster
	iface networking.NetworkInterface
}

func setupNodes(t *testing.T, network *networking.FakeNetwork, n, th int) []*testNode {
	nodes := make([]*testNode, n)
	for i := 0; i < n; i++ {
		iface, err := network.JoinNetwork()
		require.NoError(t, err)
		node, b, err := NewNode(n, th, iface)
		require.NoError(t, err)
		nodes[i] = &testNode{node: node, b: b, iface: iface}
	}
	return nodes
}

// TestBracha_AllHonestDeliver checks that a broadcast by an honest origin is
// delivered identically by every player.
func TestBracha_AllHonestDeliver(t *testing.T) {
	network := networking.NewFakeNetwork()
	n, th := 4, 1
	nodes := setupNodes(t, network, n, th)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, nd := range nodes {
		go func(nd *testNode) { _ = nd.node.Run(ctx) }(nd)
	}

	payload := []byte("agreed value")
	require.NoError(t, nodes[0].b.Broadcast("round-1", payload))

	for _, nd := range nodes {
		got, err := nd.b.Deliver(ctx, 1, "round-1")
		require.NoError(t, err)
		require.Equal(t, payload, got)
	}
}

// TestBracha_DeliverIdempotent re-delivers an already delivered tag and
// expects the same payload with no re-execution.
func TestBracha_DeliverIdempotent(t *testing.T) {
	network := networking.NewFakeNetwork()
	nodes := setupNodes(t, network, 4, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, nd := range nodes {
		go func(nd *testNode) { _ = nd.node.Run(ctx) }(nd)
	}

	var deliveries sync.Map
	count := 0
	var mu sync.Mutex
	nodes[1].b.OnDeliver(func(origin int32, tag string, payload []byte) {
		mu.Lock()
		count++
		mu.Unlock()
		deliveries.Store(tag, payload)
	})

	require.NoError(t, nodes[0].b.Broadcast("tag-x", []byte("v")))

	first, err := nodes[1].b.Deliver(ctx, 1, "tag-x")
	require.NoError(t, err)
	second, err := nodes[1].b.Deliver(ctx, 1, "tag-x")
	require.NoError(t, err)
	require.Equal(t, first, second)

	// The delivery callback fired exactly once despite n-1 extra ready
	// messages arriving after the quorum.
	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	require.Equal(t, 1, count)
	mu.Unlock()
}

// TestBracha_ToleratesSilentPlayer runs with one crashed player and expects
// the rest to deliver anyway.
func TestBracha_ToleratesSilentPlayer(t *testing.T) {
	network := networking.NewFakeNetwork()
	n, th := 4, 1
	nodes := setupNodes(t, network, n, th)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Player 4 never runs its receive loop.
	for _, nd := range nodes[:3] {
		go func(nd *testNode) { _ = nd.node.Run(ctx) }(nd)
	}

	require.NoError(t, nodes[0].b.Broadcast("r", []byte("survives a crash")))
	for _, nd := range nodes[:3] {
		got, err := nd.b.Deliver(ctx, 1, "r")
		require.NoError(t, err)
		require.Equal(t, []byte("survives a crash"), got)
	}
}

// TestBracha_EquivocatingOriginDetected has the origin propose two different
// payloads to two halves of the group. No honest player may deliver; once
// both payloads gather more than t echoes the instance fails with
// ErrEquivocation.
func TestBracha_EquivocatingOriginDetected(t *testing.T) {
	network := networking.NewFakeNetwork()
	n, th := 7, 2
	nodes := setupNodes(t, network, n, th)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Player 1 is the equivocating origin and does not follow the protocol.
	for _, nd := range nodes[1:] {
		go func(nd *testNode) { _ = nd.node.Run(ctx) }(nd)
	}

	sendPropose := func(payload []byte, to int32) {
		msg := &Message{Kind: msgPropose, Origin: 1, Tag: "evil", Payload: payload}
		bs, err := msg.Marshal()
		require.NoError(t, err)
		pkt := networking.NewPacket(1, "rbc", 0, bs)
		frame, err := pkt.Marshal()
		require.NoError(t, err)
		require.NoError(t, nodes[0].iface.Send(frame, to))
	}

	for _, to := range []int32{2, 3, 4} {
		sendPropose([]byte("left"), to)
	}
	for _, to := range []int32{5, 6, 7} {
		sendPropose([]byte("right"), to)
	}

	_, err := nodes[1].b.Deliver(ctx, 1, "evil")
	require.ErrorIs(t, err, ErrEquivocation)
}

func TestBracha_RejectsSmallGroup(t *testing.T) {
	network := networking.NewFakeNetwork()
	iface, err := network.JoinNetwork()
	require.NoError(t, err)
	_, _, err = NewNode(5, 2, iface)
	require.ErrorIs(t, err, ErrGroupTooSmall)
}

// TestCoded_LongPayloadDelivers exercises the Reed-Solomon variant with a
// payload far bigger than a field element and one slow player.
func TestCoded_LongPayloadDelivers(t *testing.T) {
	network := networking.NewFakeNetwork()
	n, th := 7, 2

	nodes := make([]*Node, n)
	bs := make([]*CodedBroadcaster, n)
	for i := 0; i < n; i++ {
		iface, err := network.JoinNetwork()
		require.NoError(t, err)
		if i == 3 {
			network.DelayNode(iface.GetID(), 100*time.Millisecond)
		}
		node, b, err := NewCodedNode(n, th, iface)
		require.NoError(t, err)
		nodes[i] = node
		bs[i] = b
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, nd := range nodes {
		go func(nd *Node) { _ = nd.Run(ctx) }(nd)
	}

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i * 31)
	}
	require.NoError(t, bs[0].Broadcast("big", payload))

	for _, b := range bs {
		got, err := b.Deliver(ctx, 1, "big")
		require.NoError(t, err)
		require.Equal(t, payload, got)
	}
}
