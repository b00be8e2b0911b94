package runtime

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/xerrors"

	"asyncmpc/field"
	"asyncmpc/shamir"
)

const saltLen = 16

// MulActive returns a handle on a*b with detection of active cheating during
// the resharing. The degree-2t product sharing is first randomized with a
// PRSS zero sharing of degree 2t, hiding the product points' extra structure.
// Each resharing share then travels in two rounds: a salted hash commitment
// first, the salt and share second. A player whose opened share does not
// match its commitment is reported through MaliciousError.
//
// Degree violations by a cheating dealer are not caught here; open results
// with OpenVerified to detect those.
func (rt *Runtime) MulActive(a, b *Share) *Share {
	res := rt.handle(a.field)
	rt.post(func() {
		if !a.field.Equal(b.field) {
			rt.track(res)
			res.fail(field.ErrFieldMismatch)
			return
		}
		rt.mulActiveInto(res, rt.tag("amul"), a, b)
	})
	return res
}

func (rt *Runtime) mulActiveInto(res *Share, tag string, a, b *Share) {
	rt.node(res, []*Share{a, b}, func(vals []field.Element) {
		if rt.conf.PRSS == nil {
			res.fail(ErrNoPRSS)
			return
		}
		f := vals[0].Field()
		z, err := rt.conf.PRSS.ZeroShare(f, rt.id, tag, 2*rt.conf.T)
		if err != nil {
			res.fail(err)
			return
		}
		rt.committedReshareInto(res, tag, vals[0].Mul(vals[1]).Add(z))
	})
}

// committedReshareInto is the degree reduction with commitments: round 1
// carries the commitment, round 2 the salt and share it commits to.
func (rt *Runtime) committedReshareInto(res *Share, tag string, point field.Element) {
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
			salt := make([]byte, saltLen)
			if _, err := io.ReadFull(rt.rng, salt); err != nil {
				res.fail(xerrors.Errorf("sampling salt: %w", err))
				return
			}
			yb := shares[j-1].Y.Bytes()
			rt.sendTo(int32(j), tag, 1, commitment(tag, rt.id, int32(j), salt, yb))
			rt.sendTo(int32(j), tag, 2, append(salt, yb...))
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
		var commit, blob []byte
		var haveCommit, haveBlob bool
		verify := func() {
			if !haveCommit || !haveBlob || res.state != statePending {
				return
			}
			accuse := func() {
				res.fail(&MaliciousError{Accused: []int32{j}})
			}
			if len(blob) < saltLen {
				accuse()
				return
			}
			salt, yb := blob[:saltLen], blob[saltLen:]
			if !bytes.Equal(commitment(tag, j, rt.id, salt, yb), commit) {
				accuse()
				return
			}
			e, err := f.FromBytes(yb)
			if err != nil {
				accuse()
				return
			}
			recv[j] = e
			maybeCombine()
		}
		rt.await(j, tag, 1, func(payload []byte) {
			commit, haveCommit = payload, true
			verify()
		})
		rt.await(j, tag, 2, func(payload []byte) {
			blob, haveBlob = payload, true
			verify()
		})
	}
	maybeCombine()
}

// commitment binds a dealt share to the protocol instance and both parties,
// so commitments cannot be replayed across instances or recipients.
func commitment(tag string, dealer, recipient int32, salt, share []byte) []byte {
	h := sha256.New()
	h.Write([]byte(tag))
	h.Write([]byte{0})
	var ids [8]byte
	binary.BigEndian.PutUint32(ids[:4], uint32(dealer))
	binary.BigEndian.PutUint32(ids[4:], uint32(recipient))
	h.Write(ids[:])
	h.Write(salt)
	h.Write(share)
	return h.Sum(nil)
}
