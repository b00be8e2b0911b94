package runtime

import (
	"asyncmpc/field"
)

// Linear operations on sharings are local: each player combines its own
// shares and the result is again a consistent sharing, with no messages
// exchanged.

// Add returns a handle on a+b.
func (rt *Runtime) Add(a, b *Share) *Share {
	res := rt.handle(a.field)
	rt.post(func() {
		if !a.field.Equal(b.field) {
			rt.track(res)
			res.fail(field.ErrFieldMismatch)
			return
		}
		rt.node(res, []*Share{a, b}, func(v []field.Element) {
			res.resolve(v[0].Add(v[1]))
		})
	})
	return res
}

// Sub returns a handle on a-b.
func (rt *Runtime) Sub(a, b *Share) *Share {
	res := rt.handle(a.field)
	rt.post(func() {
		if !a.field.Equal(b.field) {
			rt.track(res)
			res.fail(field.ErrFieldMismatch)
			return
		}
		rt.node(res, []*Share{a, b}, func(v []field.Element) {
			res.resolve(v[0].Sub(v[1]))
		})
	})
	return res
}

// AddConst returns a handle on a+c for a public constant c. Adding c to
// every share shifts the underlying polynomial by c and therefore the secret
// by c.
func (rt *Runtime) AddConst(a *Share, c field.Element) *Share {
	res := rt.handle(a.field)
	rt.post(func() {
		if !a.field.Equal(c.Field()) {
			rt.track(res)
			res.fail(field.ErrFieldMismatch)
			return
		}
		rt.node(res, []*Share{a}, func(v []field.Element) {
			res.resolve(v[0].Add(c))
		})
	})
	return res
}

// ScalarMul returns a handle on c*a for a public constant c.
func (rt *Runtime) ScalarMul(c field.Element, a *Share) *Share {
	res := rt.handle(a.field)
	rt.post(func() {
		if !a.field.Equal(c.Field()) {
			rt.track(res)
			res.fail(field.ErrFieldMismatch)
			return
		}
		rt.node(res, []*Share{a}, func(v []field.Element) {
			res.resolve(c.Mul(v[0]))
		})
	})
	return res
}
