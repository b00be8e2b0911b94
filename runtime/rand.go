package runtime

import (
	"fmt"

	"asyncmpc/field"
)

// PRSSRandom returns a handle on a uniformly random shared value, generated
// without communication from the pseudo-random secret sharing keys. The value
// is unknown to any group of up to t players.
func (rt *Runtime) PRSSRandom() *Share {
	res := rt.handle(rt.conf.Field)
	rt.post(func() {
		if rt.conf.PRSS == nil {
			rt.track(res)
			res.fail(ErrNoPRSS)
			return
		}
		s := rt.prssShare(rt.tag("prand"))
		rt.forward(s, res)
	})
	return res
}

// PRSSZero returns a handle on a degree-2t sharing of zero, the randomizer
// the active multiplication consumes.
func (rt *Runtime) PRSSZero() *Share {
	res := rt.handle(rt.conf.Field)
	rt.post(func() {
		rt.track(res)
		if rt.conf.PRSS == nil {
			res.fail(ErrNoPRSS)
			return
		}
		e, err := rt.conf.PRSS.ZeroShare(rt.conf.Field, rt.id, rt.tag("pzero"), 2*rt.conf.T)
		if err != nil {
			res.fail(err)
			return
		}
		res.resolve(e)
	})
	return res
}

// prssShare settles immediately with this player's share of the pseudo-random
// value bound to the tag. Scheduler goroutine only.
func (rt *Runtime) prssShare(tag string) *Share {
	res := rt.handle(rt.conf.Field)
	rt.track(res)
	e, err := rt.conf.PRSS.RandomShare(rt.conf.Field, rt.id, tag)
	if err != nil {
		res.fail(err)
		return res
	}
	res.resolve(e)
	return res
}

// RandomBit returns a handle on a shared uniform bit, unknown to any t
// players: take a PRSS random r, open r^2, and scale r by the inverse of the
// canonical root, which yields a shared value in {-1,1}; shift and halve.
// When r^2 opens to zero the protocol retries under a derived tag.
func (rt *Runtime) RandomBit() *Share {
	res := rt.handle(rt.conf.Field)
	rt.post(func() {
		rt.randBitInto(res, rt.tag("rbit"), 0)
	})
	return res
}

// randBit is the scheduler-side variant for sub-protocols with derived tags.
func (rt *Runtime) randBit(tag string) *Share {
	res := rt.handle(rt.conf.Field)
	rt.randBitInto(res, tag, 0)
	return res
}

func (rt *Runtime) randBitInto(res *Share, tag string, attempt int) {
	rt.track(res)
	if rt.poisoned != nil {
		res.fail(rt.poisoned)
		return
	}
	if rt.conf.PRSS == nil {
		res.fail(ErrNoPRSS)
		return
	}
	f := rt.conf.Field
	atag := fmt.Sprintf("%s.%d", tag, attempt)
	r := rt.prssShare(atag + ".r")
	sq := rt.mul(atag+".sq", r, r)
	opened := rt.handle(field.Field(f))
	rt.openInto(opened, atag+".op", sq, false)
	rt.node(res, []*Share{opened, r}, func(vals []field.Element) {
		s := vals[0]
		if s.IsZero() {
			// r was zero; every player sees the same opening and retries
			// under the same derived tag.
			rt.randBitInto(res, tag, attempt+1)
			return
		}
		root, err := f.Sqrt(s)
		if err != nil {
			res.fail(err)
			return
		}
		rootInv, err := root.Inv()
		if err != nil {
			res.fail(err)
			return
		}
		half, err := f.Element(2).Inv()
		if err != nil {
			res.fail(err)
			return
		}
		// vals[1] is this player's share of r; the same affine map on every
		// share maps the shared value r/root in {-1,1} to a bit.
		res.resolve(vals[1].Mul(rootInv).Add(f.One()).Mul(half))
	})
}
