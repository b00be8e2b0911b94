package networking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"asyncmpc/transport/tcp"
)

func TestPacket_MarshalRoundTrip(t *testing.T) {
	p := NewPacket(3, "mul.17", 1, []byte{0xde, 0xad})
	bs, err := p.Marshal()
	require.NoError(t, err)

	back := &Packet{}
	require.NoError(t, back.Unmarshal(bs))
	require.Equal(t, p, back)
}

func TestFakeNetwork_SendAndBroadcast(t *testing.T) {
	network := NewFakeNetwork()
	a, err := network.JoinNetwork()
	require.NoError(t, err)
	b, err := network.JoinNetwork()
	require.NoError(t, err)
	require.Equal(t, int32(1), a.GetID())
	require.Equal(t, int32(2), b.GetID())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, a.Send([]byte("direct"), 2))
	msg, err := b.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("direct"), msg)

	// Broadcast reaches everyone, the sender included.
	require.NoError(t, b.Broadcast([]byte("all")))
	msg, err = a.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("all"), msg)
	msg, err = b.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("all"), msg)
}

func TestFakeNetwork_ReceiveHonorsContext(t *testing.T) {
	network := NewFakeNetwork()
	a, err := network.JoinNetwork()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = a.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTransportNetwork_TCPRoundTrip(t *testing.T) {
	network := NewTransportNetwork(tcp.NewTCP())
	a, err := network.JoinNetwork()
	require.NoError(t, err)
	b, err := network.JoinNetwork()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pkt := NewPacket(a.GetID(), "open.1", 0, []byte("share bytes"))
	bs, err := pkt.Marshal()
	require.NoError(t, err)
	require.NoError(t, a.Send(bs, b.GetID()))

	got, err := b.Receive(ctx)
	require.NoError(t, err)
	back := &Packet{}
	require.NoError(t, back.Unmarshal(got))
	require.Equal(t, pkt, back)
}
