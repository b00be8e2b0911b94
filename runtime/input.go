package runtime

import (
	"golang.org/x/xerrors"

	"asyncmpc/field"
	"asyncmpc/shamir"
)

// Input secret-shares the dealer's value among all players. Only the dealer
// passes the secret; everyone else passes nil and receives its share over the
// network. The handle resolves to this player's degree-t share.
func (rt *Runtime) Input(dealer int32, secret field.Element) *Share {
	res := rt.handle(rt.conf.Field)
	rt.post(func() {
		rt.inputInto(res, rt.tag("input"), dealer, secret)
	})
	return res
}

func (rt *Runtime) inputInto(res *Share, tag string, dealer int32, secret field.Element) {
	rt.track(res)
	if rt.poisoned != nil {
		res.fail(rt.poisoned)
		return
	}
	f := field.Field(rt.conf.Field)
	if rt.id != dealer {
		rt.await(dealer, tag, 0, func(payload []byte) {
			e, err := f.FromBytes(payload)
			if err != nil {
				res.fail(xerrors.Errorf("input share from %d: %w", dealer, err))
				return
			}
			res.resolve(e)
		})
		return
	}
	if secret == nil {
		res.fail(xerrors.New("dealer has no input value"))
		return
	}
	if !secret.Field().Equal(f) {
		res.fail(field.ErrFieldMismatch)
		return
	}
	shares, err := shamir.Deal(secret, rt.conf.T, rt.conf.N, rt.rng)
	if err != nil {
		res.fail(err)
		return
	}
	for j := 1; j <= rt.conf.N; j++ {
		if int32(j) == rt.id {
			continue
		}
		rt.sendTo(int32(j), tag, 0, shares[j-1].Y.Bytes())
	}
	res.resolve(shares[rt.id-1].Y)
}

// ShareBits secret-shares the dealer's value together with its binary
// representation: the returned handle carries BitLength bit sharings in the
// configured bit field, most significant first, ready for comparison. The
// value itself is shared in the arithmetic field as with Input.
func (rt *Runtime) ShareBits(dealer int32, secret field.Element) *Share {
	l := rt.conf.BitLength
	bf := rt.conf.BitField
	res := rt.handle(rt.conf.Field)
	bits := make([]*Share, l)
	for i := range bits {
		bits[i] = rt.handle(bf)
	}
	res.bits = bits
	rt.post(func() {
		tag := rt.tag("bshare")
		rt.track(res)
		for _, b := range bits {
			rt.track(b)
		}
		failAll := func(err error) {
			res.fail(err)
			for _, b := range bits {
				b.fail(err)
			}
		}
		if rt.poisoned != nil {
			failAll(rt.poisoned)
			return
		}
		if rt.id != dealer {
			rt.awaitDealt(res, dealer, tag, 0, rt.conf.Field)
			for i, b := range bits {
				rt.awaitDealt(b, dealer, tag, int32(1+i), bf)
			}
			return
		}
		if secret == nil {
			failAll(xerrors.New("dealer has no input value"))
			return
		}
		v := field.Big(secret)
		if v.BitLen() > l {
			failAll(xerrors.Errorf("value needs %d bits, sharing is %d wide", v.BitLen(), l))
			return
		}
		if err := rt.dealRound(secret, tag, 0, res); err != nil {
			failAll(err)
			return
		}
		// Round 1+i carries bit i, counting from the most significant.
		for i, b := range bits {
			bit := bf.Element(int64(v.Bit(l - 1 - i)))
			if err := rt.dealRound(bit, tag, int32(1+i), b); err != nil {
				failAll(err)
				return
			}
		}
	})
	return res
}

// dealRound deals one value, ships the shares under (tag, round) and resolves
// own with the dealer's share.
func (rt *Runtime) dealRound(secret field.Element, tag string, round int32, own *Share) error {
	shares, err := shamir.Deal(secret, rt.conf.T, rt.conf.N, rt.rng)
	if err != nil {
		return err
	}
	for j := 1; j <= rt.conf.N; j++ {
		if int32(j) == rt.id {
			continue
		}
		rt.sendTo(int32(j), tag, round, shares[j-1].Y.Bytes())
	}
	own.resolve(shares[rt.id-1].Y)
	return nil
}

// awaitDealt resolves res with the share the dealer sends under (tag, round).
func (rt *Runtime) awaitDealt(res *Share, dealer int32, tag string, round int32, f field.Field) {
	rt.await(dealer, tag, round, func(payload []byte) {
		e, err := f.FromBytes(payload)
		if err != nil {
			res.fail(xerrors.Errorf("share from %d: %w", dealer, err))
			return
		}
		res.resolve(e)
	})
}
