package runtime

import (
	"fmt"

	"golang.org/x/xerrors"

	"asyncmpc/field"
)

// LessThan returns a shared bit that is 1 exactly when x < y, comparing the
// two values through their bit sharings without revealing anything else.
// Values shared with ShareBits compare in the configured bit field; values
// without attached bits are bit decomposed first, which needs a large enough
// prime field.
//
// The circuit scans from the most significant bit, keeping a shared "all
// bits equal so far" flag and accumulating the first position where x has a 0
// and y a 1. The same arithmetic works in the prime field and in GF(2^8):
// products of bits are bits, and the accumulated terms are disjoint.
func (rt *Runtime) LessThan(x, y *Share) *Share {
	f := field.Field(rt.conf.Field)
	if len(x.bits) > 0 {
		f = x.bits[0].field
	}
	res := rt.handle(f)
	rt.post(func() {
		rt.lessThanInto(res, rt.tag("lt"), x, y)
	})
	return res
}

func (rt *Runtime) lessThanInto(res *Share, tag string, x, y *Share) {
	rt.track(res)
	if rt.poisoned != nil {
		res.fail(rt.poisoned)
		return
	}
	xb := x.bits
	if xb == nil {
		xb = rt.decompose(tag+".x", x)
	}
	yb := y.bits
	if yb == nil {
		yb = rt.decompose(tag+".y", y)
	}
	if len(xb) != len(yb) {
		res.fail(xerrors.Errorf("comparing %d-bit and %d-bit sharings", len(xb), len(yb)))
		return
	}
	if !xb[0].field.Equal(yb[0].field) {
		res.fail(field.ErrFieldMismatch)
		return
	}
	f := xb[0].field
	one := rt.constant(f.One())
	eq := one
	lt := rt.constant(f.Zero())
	for i := range xb {
		// and = x_i*y_i; y_i-and is 1 exactly when x_i=0 and y_i=1. The
		// XOR x_i+y_i-2*and is written as (x_i-and)+(y_i-and) so that it
		// also holds in characteristic two.
		and := rt.mul(fmt.Sprintf("%s.and.%d", tag, i), xb[i], yb[i])
		lt = rt.addLocal(lt, rt.mul(fmt.Sprintf("%s.acc.%d", tag, i), eq, rt.subLocal(yb[i], and)))
		if i == len(xb)-1 {
			break
		}
		xor := rt.addLocal(rt.subLocal(xb[i], and), rt.subLocal(yb[i], and))
		eq = rt.mul(fmt.Sprintf("%s.eq.%d", tag, i), eq, rt.subLocal(one, xor))
	}
	rt.forward(lt, res)
}
