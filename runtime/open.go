package runtime

import (
	"asyncmpc/field"
	"asyncmpc/shamir"
)

// Open reveals a shared value to all players. Each player sends its share to
// everyone and reconstructs from the first t+1 that arrive; with honest but
// curious players they all lie on the dealer's polynomial. The returned
// handle resolves to the opened public value on every player, and being a
// degree-zero sharing it composes with further arithmetic.
func (rt *Runtime) Open(s *Share) *Share {
	res := rt.handle(s.field)
	rt.post(func() {
		rt.openInto(res, rt.tag("open"), s, false)
	})
	return res
}

// OpenVerified reveals a shared value with consistency checking: it waits for
// 2t+1 shares and verifies that all of them lie on one degree-t polynomial,
// failing with shamir.ErrInconsistentShares when a player opened a share off
// the polynomial.
func (rt *Runtime) OpenVerified(s *Share) *Share {
	res := rt.handle(s.field)
	rt.post(func() {
		rt.openInto(res, rt.tag("vopen"), s, true)
	})
	return res
}

func (rt *Runtime) openInto(res *Share, tag string, s *Share, verified bool) {
	rt.node(res, []*Share{s}, func(vals []field.Element) {
		rt.exchangeShares(res, tag, vals[0], verified)
	})
}

// exchangeShares runs the opening rounds once this player's share is known.
func (rt *Runtime) exchangeShares(res *Share, tag string, own field.Element, verified bool) {
	f := own.Field()
	rt.sendAllOthers(tag, 0, own.Bytes())

	need := rt.conf.T + 1
	if verified {
		need = 2*rt.conf.T + 1
	}
	shares := []shamir.Share{{X: rt.id, Y: own}}
	finish := func() {
		var v field.Element
		var err error
		if verified {
			v, err = shamir.ReconstructVerified(shares, rt.conf.T)
		} else {
			v, err = shamir.Reconstruct(shares, rt.conf.T)
		}
		if err != nil {
			res.fail(err)
			return
		}
		res.resolve(v)
	}
	for j := 1; j <= rt.conf.N; j++ {
		if int32(j) == rt.id {
			continue
		}
		j := int32(j)
		rt.await(j, tag, 0, func(payload []byte) {
			if res.state != statePending {
				return
			}
			e, err := f.FromBytes(payload)
			if err != nil {
				// A bad encoding cannot block the opening as long as
				// enough well-formed shares arrive.
				rt.log.Warn().Err(err).Int32("from", j).Msg("undecodable opened share")
				return
			}
			shares = append(shares, shamir.Share{X: j, Y: e})
			if len(shares) >= need {
				finish()
			}
		})
	}
	if len(shares) >= need {
		finish()
	}
}
