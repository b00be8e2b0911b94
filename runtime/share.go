package runtime

import (
	"context"

	"asyncmpc/field"
)

type state int32

const (
	statePending state = iota
	stateResolved
	stateFailed
)

// Share is this player's handle on one secret-shared value. Operations on
// shares return new handles immediately; the value behind a handle settles
// asynchronously when the messages it depends on arrive. A handle settles
// exactly once, either resolving with this player's share of the value or
// failing with the error of whatever it transitively depended on.
//
// All state transitions happen on the runtime's scheduler goroutine. Await is
// the only method safe to call from other goroutines.
type Share struct {
	rt    *Runtime
	field field.Field

	state state
	value field.Element
	err   error
	cbs   []func(*Share)

	// bits, when non-nil, are degree-t sharings of the value's binary
	// representation, most significant bit first. Attached by ShareBits and
	// BitDecompose; comparisons consume them.
	bits []*Share

	done chan struct{}
}

// Await blocks until the handle settles or the context is done, returning
// this player's share of the value. For handles produced by Open the share is
// the opened public value itself.
func (s *Share) Await(ctx context.Context) (field.Element, error) {
	select {
	case <-s.done:
		if s.err != nil {
			return nil, s.err
		}
		return s.value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Bits returns the bit sharings attached to this handle, most significant
// first, or nil when the value was never bit shared or decomposed.
func (s *Share) Bits() []*Share { return s.bits }

// resolve settles the handle with this player's share of the value.
// Scheduler goroutine only.
func (s *Share) resolve(v field.Element) {
	if s.state != statePending {
		return
	}
	s.state = stateResolved
	s.value = v
	s.settle()
}

// fail settles the handle with an error. Scheduler goroutine only.
func (s *Share) fail(err error) {
	if s.state != statePending {
		return
	}
	s.state = stateFailed
	s.err = err
	s.settle()
}

func (s *Share) settle() {
	delete(s.rt.tracked, s)
	close(s.done)
	cbs := s.cbs
	s.cbs = nil
	for _, cb := range cbs {
		cb(s)
	}
}

// onSettle runs fn when the handle settles, immediately if it already has.
// Scheduler goroutine only.
func (s *Share) onSettle(fn func(*Share)) {
	if s.state != statePending {
		fn(s)
		return
	}
	s.cbs = append(s.cbs, fn)
}

// handle creates a fresh pending share in the given field.
func (rt *Runtime) handle(f field.Field) *Share {
	return &Share{rt: rt, field: f, done: make(chan struct{})}
}

// constant returns a handle already resolved to a public value, which every
// player holds identically: a valid degree-zero sharing.
func (rt *Runtime) constant(e field.Element) *Share {
	s := rt.handle(e.Field())
	s.state = stateResolved
	s.value = e
	close(s.done)
	return s
}

// track registers a pending share for poisoning on transport failure.
// Scheduler goroutine only.
func (rt *Runtime) track(s *Share) {
	if s.state == statePending {
		rt.tracked[s] = struct{}{}
	}
}

// node wires res to settle from its dependencies: when all of deps resolve,
// run fires once with their values and is responsible for eventually settling
// res; when any dependency fails, res fails with the same error and run never
// fires. Scheduler goroutine only.
func (rt *Runtime) node(res *Share, deps []*Share, run func(vals []field.Element)) {
	rt.track(res)
	if rt.poisoned != nil {
		res.fail(rt.poisoned)
		return
	}
	remaining := 0
	for _, d := range deps {
		switch d.state {
		case statePending:
			remaining++
		case stateFailed:
			res.fail(d.err)
			return
		}
	}
	fire := func() {
		if res.state != statePending {
			return
		}
		vals := make([]field.Element, len(deps))
		for i, d := range deps {
			vals[i] = d.value
		}
		run(vals)
	}
	if remaining == 0 {
		fire()
		return
	}
	for _, d := range deps {
		if d.state != statePending {
			continue
		}
		d.onSettle(func(dep *Share) {
			if res.state != statePending {
				return
			}
			if dep.state == stateFailed {
				res.fail(dep.err)
				return
			}
			remaining--
			if remaining == 0 {
				fire()
			}
		})
	}
}

// addLocal, subLocal and linear build purely local dataflow nodes: no
// messages, they settle as soon as their inputs do.

func (rt *Runtime) addLocal(a, b *Share) *Share {
	res := rt.handle(a.field)
	rt.node(res, []*Share{a, b}, func(v []field.Element) {
		res.resolve(v[0].Add(v[1]))
	})
	return res
}

func (rt *Runtime) subLocal(a, b *Share) *Share {
	res := rt.handle(a.field)
	rt.node(res, []*Share{a, b}, func(v []field.Element) {
		res.resolve(v[0].Sub(v[1]))
	})
	return res
}

// linear resolves to sum_i coeffs[i]*deps[i].
func (rt *Runtime) linear(deps []*Share, coeffs []field.Element) *Share {
	f := deps[0].field
	res := rt.handle(f)
	rt.node(res, deps, func(vals []field.Element) {
		acc := f.Zero()
		for i, v := range vals {
			acc = acc.Add(coeffs[i].Mul(v))
		}
		res.resolve(acc)
	})
	return res
}

// forward settles dst from src.
func (rt *Runtime) forward(src, dst *Share) {
	rt.node(dst, []*Share{src}, func(v []field.Element) {
		dst.resolve(v[0])
	})
}
