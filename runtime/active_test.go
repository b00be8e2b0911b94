package runtime

import (
	"context"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"asyncmpc/field"
	"asyncmpc/networking"
	"asyncmpc/prss"
	"asyncmpc/shamir"
)

func prssConf(t *testing.T, n, th int, f *field.Zp) func(int32) Config {
	t.Helper()
	keys, err := prss.Setup(n, th, rand.Reader)
	require.NoError(t, err)
	return func(id int32) Config {
		return Config{N: n, T: th, Field: f, PRSS: keys.ForPlayer(id)}
	}
}

// TestMulActiveHonest runs the actively secure multiplication with everyone
// honest and opens the product with verification.
func TestMulActiveHonest(t *testing.T) {
	f := field.MustZp(1013)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, rts := startRuntimes(t, ctx, 5, prssConf(t, 5, 2, f))

	vals, errs := runProgram(rts, func(rt *Runtime) (field.Element, error) {
		var sa, sb field.Element
		switch rt.ID() {
		case 1:
			sa = f.Element(3)
		case 2:
			sb = f.Element(7)
		}
		a := rt.Input(1, sa)
		b := rt.Input(2, sb)
		return rt.OpenVerified(rt.MulActive(a, b)).Await(ctx)
	})
	for i := range rts {
		require.NoError(t, errs[i])
		require.True(t, vals[i].Equal(f.Element(21)))
	}
}

// tamperIface rewrites matching outgoing packets, modelling a player lying
// on the wire while the local runtime stays honest.
type tamperIface struct {
	networking.NetworkInterface
	rewrite func(pkt *networking.Packet) bool
}

func (c *tamperIface) Send(frame []byte, to int32) error {
	pkt := &networking.Packet{}
	if err := pkt.Unmarshal(frame); err == nil && c.rewrite(pkt) {
		if newFrame, err := pkt.Marshal(); err == nil {
			frame = newFrame
		}
	}
	return c.NetworkInterface.Send(frame, to)
}

// startWithTamperer is startRuntimes with player 3's sends going through the
// rewriting interface.
func startWithTamperer(t *testing.T, ctx context.Context, n int, conf func(int32) Config,
	rewrite func(pkt *networking.Packet) bool) []*Runtime {
	t.Helper()
	network := networking.NewFakeNetwork()
	rts := make([]*Runtime, n)
	for i := 0; i < n; i++ {
		iface, err := network.JoinNetwork()
		require.NoError(t, err)
		var ni networking.NetworkInterface = iface
		if iface.GetID() == 3 {
			ni = &tamperIface{NetworkInterface: iface, rewrite: rewrite}
		}
		rt, err := NewRuntime(conf(iface.GetID()), ni)
		require.NoError(t, err)
		rt.Start(ctx)
		rts[i] = rt
	}
	return rts
}

// TestMulActiveDetectsTampering has player 3 open resharing shares that do
// not match its commitments. Every honest player's multiplication fails,
// naming player 3.
func TestMulActiveDetectsTampering(t *testing.T) {
	f := field.MustZp(1013)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rts := startWithTamperer(t, ctx, 5, prssConf(t, 5, 2, f), func(pkt *networking.Packet) bool {
		if !strings.HasPrefix(pkt.Tag, "amul.") || pkt.Round != 2 || len(pkt.Payload) == 0 {
			return false
		}
		pkt.Payload[len(pkt.Payload)-1] ^= 0xff
		return true
	})

	_, errs := runProgram(rts, func(rt *Runtime) (field.Element, error) {
		var sa, sb field.Element
		switch rt.ID() {
		case 1:
			sa = f.Element(3)
		case 2:
			sb = f.Element(7)
		}
		a := rt.Input(1, sa)
		b := rt.Input(2, sb)
		v := rt.OpenVerified(rt.MulActive(a, b))
		if rt.ID() == 3 {
			// The cheater receives only honest shares; its opening stalls
			// once the others abort, so it does not await.
			return nil, nil
		}
		return v.Await(ctx)
	})
	for i, rt := range rts {
		if rt.ID() == 3 {
			continue
		}
		var mErr *MaliciousError
		require.ErrorAs(t, errs[i], &mErr, "player %d", rt.ID())
		require.Contains(t, mErr.Accused, int32(3))
	}
}

// mulTamper shifts every resharing share player 3 deals in the passive
// multiplication by one. The corruption is a valid element, so the passive
// protocol has nothing to notice.
func mulTamper(f *field.Zp) func(pkt *networking.Packet) bool {
	return func(pkt *networking.Packet) bool {
		if !strings.HasPrefix(pkt.Tag, "mul.") || pkt.Round != 1 {
			return false
		}
		e, err := f.FromBytes(pkt.Payload)
		if err != nil {
			return false
		}
		pkt.Payload = e.Add(f.One()).Bytes()
		return true
	}
}

// TestMulPassiveNoDetection shows the flip side of the passive protocol: the
// same kind of cheating sails through a plain opening without any error.
func TestMulPassiveNoDetection(t *testing.T) {
	f := field.MustZp(1013)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rts := startWithTamperer(t, ctx, 5, fixedConf(Config{N: 5, T: 2, Field: f}), mulTamper(f))

	_, errs := runProgram(rts, func(rt *Runtime) (field.Element, error) {
		var sa, sb field.Element
		switch rt.ID() {
		case 1:
			sa = f.Element(3)
		case 2:
			sb = f.Element(7)
		}
		a := rt.Input(1, sa)
		b := rt.Input(2, sb)
		return rt.Open(rt.Mul(a, b)).Await(ctx)
	})
	for i := range rts {
		require.NoError(t, errs[i])
	}
}

// TestOpenVerifiedCatchesInconsistentShares opens the product of the same
// tampered passive multiplication with verification: the cheater's shifted
// reshares leave the group's shares off any single degree-t polynomial.
func TestOpenVerifiedCatchesInconsistentShares(t *testing.T) {
	f := field.MustZp(1013)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rts := startWithTamperer(t, ctx, 5, fixedConf(Config{N: 5, T: 2, Field: f}), mulTamper(f))

	_, errs := runProgram(rts, func(rt *Runtime) (field.Element, error) {
		var sa, sb field.Element
		switch rt.ID() {
		case 1:
			sa = f.Element(3)
		case 2:
			sb = f.Element(7)
		}
		a := rt.Input(1, sa)
		b := rt.Input(2, sb)
		return rt.OpenVerified(rt.Mul(a, b)).Await(ctx)
	})
	for i := range rts {
		require.ErrorIs(t, errs[i], shamir.ErrInconsistentShares)
	}
}
