package runtime

import (
	"fmt"
	"math/big"

	"golang.org/x/xerrors"

	"asyncmpc/field"
)

// BitDecompose computes sharings of the binary representation of x without
// revealing it: mask x with a random value of known shared bits, open the
// masked sum and run a public-by-shared borrow chain to subtract the mask
// again, bit by bit. The returned handles, most significant bit first, are
// also attached to x for later comparisons.
//
// The opened value x+r must not wrap around the modulus, so the field needs
// BitLen(p) > BitLength+SecParam+1 and x must fit BitLength bits; SecParam
// random bits statistically hide x in the opening.
func (rt *Runtime) BitDecompose(x *Share) []*Share {
	if x.bits != nil {
		return x.bits
	}
	bits := make([]*Share, rt.conf.BitLength)
	for i := range bits {
		bits[i] = rt.handle(rt.conf.Field)
	}
	x.bits = bits
	rt.post(func() {
		rt.bitDecomposeInto(bits, rt.tag("bdec"), x)
	})
	return bits
}

// decompose is the scheduler-side variant used by comparisons on values
// without attached bits.
func (rt *Runtime) decompose(tag string, x *Share) []*Share {
	bits := make([]*Share, rt.conf.BitLength)
	for i := range bits {
		bits[i] = rt.handle(rt.conf.Field)
	}
	rt.bitDecomposeInto(bits, tag, x)
	return bits
}

func (rt *Runtime) bitDecomposeInto(bits []*Share, tag string, x *Share) {
	f := rt.conf.Field
	l := len(bits)
	m := l + rt.conf.SecParam
	for _, b := range bits {
		rt.track(b)
	}
	failAll := func(err error) {
		for _, b := range bits {
			b.fail(err)
		}
	}
	if rt.poisoned != nil {
		failAll(rt.poisoned)
		return
	}
	if f.Modulus().BitLen() <= m+1 {
		failAll(xerrors.Errorf("modulus has %d bits, need more than %d: %w",
			f.Modulus().BitLen(), m+1, ErrFieldTooSmall))
		return
	}
	if !x.field.Equal(f) {
		failAll(field.ErrFieldMismatch)
		return
	}

	// Shared random mask r = sum 2^i b_i of known shared bits, low bit first.
	rbits := make([]*Share, m)
	coeffs := make([]field.Element, m)
	pow := big.NewInt(1)
	for i := range rbits {
		rbits[i] = rt.randBit(fmt.Sprintf("%s.r.%d", tag, i))
		coeffs[i] = f.FromBig(pow)
		pow = new(big.Int).Lsh(pow, 1)
	}
	mask := rt.linear(rbits, coeffs)

	opened := rt.handle(field.Field(f))
	rt.openInto(opened, tag+".open", rt.addLocal(x, mask), false)

	// chain carries dependency failures into the bit handles before the
	// borrow circuit exists.
	chain := rt.handle(field.Field(f))
	chain.onSettle(func(c *Share) {
		if c.state == stateFailed {
			failAll(c.err)
		}
	})
	rt.node(chain, append([]*Share{opened}, rbits...), func(vals []field.Element) {
		rt.borrowChain(bits, tag, field.Big(vals[0]), rbits)
		chain.resolve(f.Zero())
	})
}

// borrowChain subtracts the mask from the public sum bit by bit. With the
// public bit c_i known to everyone, one multiplication per position covers
// the XOR, AND and OR the subtraction needs.
func (rt *Runtime) borrowChain(bits []*Share, tag string, c *big.Int, rbits []*Share) {
	f := field.Field(rt.conf.Field)
	l := len(bits)
	one := rt.constant(f.One())
	bor := rt.constant(f.Zero())
	outs := make([]*Share, len(rbits))
	for i := range rbits {
		bi, prev := rbits[i], bor
		and := rt.mul(fmt.Sprintf("%s.s.%d", tag, i), bi, prev)
		xor := rt.addLocal(rt.subLocal(bi, and), rt.subLocal(prev, and))
		if c.Bit(i) == 1 {
			outs[i] = rt.subLocal(one, xor)
			bor = and
		} else {
			outs[i] = xor
			bor = rt.subLocal(rt.addLocal(bi, prev), and)
		}
	}
	// The difference fits l bits; positions above carry only mask noise that
	// cancelled to zero.
	for i := 0; i < l; i++ {
		rt.forward(outs[l-1-i], bits[i])
	}
}
