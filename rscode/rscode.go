// Package rscode wraps the Berlekamp-Welch Reed-Solomon codes used by the
// coded broadcast: a payload is split into n shares of which any k
// reconstruct the original, with error correction beyond that.
package rscode

import (
	"encoding/binary"

	"github.com/HACKERALERT/infectious"
	"golang.org/x/xerrors"
)

// Share is one erasure-coded fragment. Index identifies the evaluation
// point, starting at 0.
type Share struct {
	Index int32
	Data  []byte
}

// Code encodes byte messages of arbitrary length into n shares with
// reconstruction threshold k.
type Code struct {
	k, n int
	fec  *infectious.FEC
}

func New(k, n int) (*Code, error) {
	fec, err := infectious.NewFEC(k, n)
	if err != nil {
		return nil, xerrors.Errorf("building fec(%d,%d): %w", k, n, err)
	}
	return &Code{k: k, n: n, fec: fec}, nil
}

func (c *Code) K() int { return c.k }
func (c *Code) N() int { return c.n }

// Encode frames the message with its length, pads it to a multiple of k and
// produces the n shares.
func (c *Code) Encode(msg []byte) ([]Share, error) {
	framed := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(framed, uint32(len(msg)))
	copy(framed[4:], msg)
	if rem := len(framed) % c.k; rem != 0 {
		framed = append(framed, make([]byte, c.k-rem)...)
	}

	shares := make([]Share, c.n)
	output := func(s infectious.Share) {
		cp := s.DeepCopy()
		shares[s.Number] = Share{Index: int32(cp.Number), Data: cp.Data}
	}
	if err := c.fec.Encode(framed, output); err != nil {
		return nil, xerrors.Errorf("rs encode: %w", err)
	}
	return shares, nil
}

// Decode reconstructs the original message from at least k shares.
func (c *Code) Decode(shares []Share) ([]byte, error) {
	if len(shares) < c.k {
		return nil, xerrors.Errorf("need %d shares, got %d", c.k, len(shares))
	}
	in := make([]infectious.Share, len(shares))
	for i, s := range shares {
		in[i] = infectious.Share{Number: int(s.Index), Data: s.Data}
	}
	framed, err := c.fec.Decode(nil, in)
	if err != nil {
		return nil, xerrors.Errorf("rs decode: %w", err)
	}
	if len(framed) < 4 {
		return nil, xerrors.New("decoded frame too short")
	}
	msgLen := binary.BigEndian.Uint32(framed)
	if int(msgLen) > len(framed)-4 {
		return nil, xerrors.New("decoded frame length out of range")
	}
	return framed[4 : 4+msgLen], nil
}
