package runtime

import (
	"golang.org/x/xerrors"

	"asyncmpc/field"
	"asyncmpc/shamir"
)

// Mul returns a handle on a*b, secure against honest but curious players.
// Each player multiplies its shares locally, which yields a degree-2t sharing
// of the product, reshares that point at degree t, and linearly combines the
// reshares of players 1..2t+1 with the public recombination vector. One
// message round, no detection of cheating; see MulActive for that.
func (rt *Runtime) Mul(a, b *Share) *Share {
	res := rt.handle(a.field)
	rt.post(func() {
		if !a.field.Equal(b.field) {
			rt.track(res)
			res.fail(field.ErrFieldMismatch)
			return
		}
		rt.mulInto(res, rt.tag("mul"), a, b)
	})
	return res
}

// mul is the scheduler-side variant used by sub-protocols with derived tags.
func (rt *Runtime) mul(tag string, a, b *Share) *Share {
	res := rt.handle(a.field)
	rt.mulInto(res, tag, a, b)
	return res
}

func (rt *Runtime) mulInto(res *Share, tag string, a, b *Share) {
	rt.node(res, []*Share{a, b}, func(vals []field.Element) {
		rt.reshareInto(res, tag, vals[0].Mul(vals[1]))
	})
}

// reshareInto performs the degree reduction: deal the local product point at
// degree t, collect the reshares of the first 2t+1 players and recombine.
// Players beyond 2t+1 only receive; their product points are not needed.
func (rt *Runtime) reshareInto(res *Share, tag string, point field.Element) {
	f := point.Field()
	k := 2*rt.conf.T + 1
	recv := make(map[int32]field.Element, k)

	if int(rt.id) <= k {
		shares, err := shamir.Deal(point, rt.conf.T, rt.conf.N, rt.rng)
		if err != nil {
			res.fail(err)
			return
		}
		for j := 1; j <= rt.conf.N; j++ {
			if int32(j) == rt.id {
				continue
			}
			rt.sendTo(int32(j), tag, 1, shares[j-1].Y.Bytes())
		}
		recv[rt.id] = shares[rt.id-1].Y
	}

	maybeCombine := func() {
		if len(recv) < k || res.state != statePending {
			return
		}
		rt.combine(res, f, recv, k)
	}
	for j := 1; j <= k; j++ {
		if int32(j) == rt.id {
			continue
		}
		j := int32(j)
		rt.await(j, tag, 1, func(payload []byte) {
			if res.state != statePending {
				return
			}
			e, err := f.FromBytes(payload)
			if err != nil {
				res.fail(xerrors.Errorf("reshare from %d: %w", j, err))
				return
			}
			recv[j] = e
			maybeCombine()
		})
	}
	maybeCombine()
}

// combine folds the reshares of players 1..k with the recombination vector.
func (rt *Runtime) combine(res *Share, f field.Field, recv map[int32]field.Element, k int) {
	xs := make([]int32, k)
	for i := range xs {
		xs[i] = int32(i + 1)
	}
	ws, err := shamir.RecombinationVector(f, xs)
	if err != nil {
		res.fail(err)
		return
	}
	acc := f.Zero()
	for i, x := range xs {
		acc = acc.Add(ws[i].Mul(recv[x]))
	}
	res.resolve(acc)
}
