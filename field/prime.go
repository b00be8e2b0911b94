package field

import (
	"fmt"
	"io"
	"math/big"

	"golang.org/x/xerrors"
)

// Zp is the field of integers modulo an odd prime p. The modulus is a
// run-time configuration value shared by all players.
type Zp struct {
	p       *big.Int
	byteLen int
}

// NewZp returns the prime field with the given modulus. The modulus must be
// an odd prime of at least two elements worth of room for a threshold scheme.
func NewZp(p *big.Int) (*Zp, error) {
	if p == nil || p.Sign() <= 0 {
		return nil, xerrors.New("modulus must be positive")
	}
	if p.Bit(0) == 0 {
		return nil, xerrors.New("modulus must be odd")
	}
	if !p.ProbablyPrime(20) {
		return nil, xerrors.Errorf("modulus %v is not prime", p)
	}
	return &Zp{
		p:       new(big.Int).Set(p),
		byteLen: (p.BitLen() + 7) / 8,
	}, nil
}

// MustZp is NewZp for moduli known to be valid, typically in tests.
func MustZp(p int64) *Zp {
	f, err := NewZp(big.NewInt(p))
	if err != nil {
		panic(err)
	}
	return f
}

// Modulus returns a copy of the field's prime modulus.
func (f *Zp) Modulus() *big.Int { return new(big.Int).Set(f.p) }

// Sqrt returns the canonical square root of e, defined as the numerically
// smaller of the two roots so that all players agree on it, or
// ErrNoSquareRoot for a quadratic non-residue.
func (f *Zp) Sqrt(e Element) (Element, error) {
	v := e.(zpElem).v
	r := new(big.Int).ModSqrt(v, f.p)
	if r == nil {
		return nil, ErrNoSquareRoot
	}
	other := new(big.Int).Sub(f.p, r)
	if other.Sign() != 0 && other.Cmp(r) < 0 {
		r = other
	}
	return zpElem{f: f, v: r}, nil
}

func (f *Zp) Name() string { return fmt.Sprintf("Zp(%s)", f.p.String()) }

func (f *Zp) Element(v int64) Element {
	x := big.NewInt(v)
	x.Mod(x, f.p)
	return zpElem{f: f, v: x}
}

// FromBig reduces an arbitrary integer into the field.
func (f *Zp) FromBig(v *big.Int) Element {
	x := new(big.Int).Mod(v, f.p)
	return zpElem{f: f, v: x}
}

func (f *Zp) Zero() Element { return zpElem{f: f, v: new(big.Int)} }
func (f *Zp) One() Element  { return zpElem{f: f, v: big.NewInt(1)} }

func (f *Zp) FromBytes(bs []byte) (Element, error) {
	if len(bs) != f.byteLen {
		return nil, ErrInvalidEncoding
	}
	x := new(big.Int).SetBytes(bs)
	if x.Cmp(f.p) >= 0 {
		return nil, ErrInvalidEncoding
	}
	return zpElem{f: f, v: x}, nil
}

func (f *Zp) Random(rng io.Reader) (Element, error) {
	x, err := randBelow(rng, f.p)
	if err != nil {
		return nil, err
	}
	return zpElem{f: f, v: x}, nil
}

// Sample rejection-samples a uniform element from the stream: fixed-width
// reads, rejecting values at or above the modulus. Deterministic given the
// stream, which is what PRSS relies on.
func (f *Zp) Sample(stream io.Reader) (Element, error) {
	buf := make([]byte, f.byteLen)
	for {
		if _, err := io.ReadFull(stream, buf); err != nil {
			return nil, err
		}
		x := new(big.Int).SetBytes(buf)
		if x.Cmp(f.p) < 0 {
			return zpElem{f: f, v: x}, nil
		}
	}
}

func (f *Zp) ByteLen() int { return f.byteLen }

func (f *Zp) Equal(other Field) bool {
	o, ok := other.(*Zp)
	return ok && f.p.Cmp(o.p) == 0
}

// randBelow samples a uniform integer in [0, bound) from rng.
func randBelow(rng io.Reader, bound *big.Int) (*big.Int, error) {
	byteLen := (bound.BitLen() + 7) / 8
	buf := make([]byte, byteLen)
	for {
		if _, err := io.ReadFull(rng, buf); err != nil {
			return nil, err
		}
		x := new(big.Int).SetBytes(buf)
		if x.Cmp(bound) < 0 {
			return x, nil
		}
	}
}

type zpElem struct {
	f *Zp
	v *big.Int
}

func (e zpElem) Field() Field { return e.f }

func (e zpElem) Add(other Element) Element {
	mustSameField(e, other)
	o := other.(zpElem)
	x := new(big.Int).Add(e.v, o.v)
	x.Mod(x, e.f.p)
	return zpElem{f: e.f, v: x}
}

func (e zpElem) Sub(other Element) Element {
	mustSameField(e, other)
	o := other.(zpElem)
	x := new(big.Int).Sub(e.v, o.v)
	x.Mod(x, e.f.p)
	return zpElem{f: e.f, v: x}
}

func (e zpElem) Mul(other Element) Element {
	mustSameField(e, other)
	o := other.(zpElem)
	x := new(big.Int).Mul(e.v, o.v)
	x.Mod(x, e.f.p)
	return zpElem{f: e.f, v: x}
}

func (e zpElem) Neg() Element {
	x := new(big.Int).Neg(e.v)
	x.Mod(x, e.f.p)
	return zpElem{f: e.f, v: x}
}

func (e zpElem) Inv() (Element, error) {
	if e.v.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	x := new(big.Int).ModInverse(e.v, e.f.p)
	if x == nil {
		return nil, ErrDivisionByZero
	}
	return zpElem{f: e.f, v: x}, nil
}

func (e zpElem) IsZero() bool { return e.v.Sign() == 0 }

func (e zpElem) Equal(other Element) bool {
	o, ok := other.(zpElem)
	return ok && e.f.Equal(o.f) && e.v.Cmp(o.v) == 0
}

func (e zpElem) Bytes() []byte {
	bs := make([]byte, e.f.byteLen)
	e.v.FillBytes(bs)
	return bs
}

// Big returns the canonical representative in [0, p).
func (e zpElem) Big() *big.Int { return new(big.Int).Set(e.v) }

func (e zpElem) String() string { return e.v.String() }

// Big returns the canonical integer representative of a prime field element.
func Big(e Element) *big.Int {
	return e.(zpElem).Big()
}
