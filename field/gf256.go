package field

import (
	"fmt"
	"io"
)

// gf256Poly is the irreducible reduction polynomial x^8+x^4+x^3+x+1.
const gf256Poly = 0x11b

// GF256 is the binary field of 256 elements. Addition is XOR; multiplication
// is carry-less polynomial multiplication modulo gf256Poly, done through
// log/antilog tables built once at package init.
type GF256 struct{}

var (
	gf256Exp [510]byte
	gf256Log [256]byte
)

func init() {
	// 3 generates the multiplicative group under the AES polynomial.
	x := byte(1)
	for i := 0; i < 255; i++ {
		gf256Exp[i] = x
		gf256Log[x] = byte(i)
		x = gf256MulSlow(x, 3)
	}
	for i := 255; i < 510; i++ {
		gf256Exp[i] = gf256Exp[i-255]
	}
}

// gf256MulSlow is shift-and-add multiplication, used only to build the tables.
func gf256MulSlow(a, b byte) byte {
	var r uint16
	av := uint16(a)
	for b > 0 {
		if b&1 == 1 {
			r ^= av
		}
		av <<= 1
		if av&0x100 != 0 {
			av ^= gf256Poly
		}
		b >>= 1
	}
	return byte(r)
}

func (GF256) Name() string { return "GF256" }

func (GF256) Element(v int64) Element {
	return gfElem(byte(uint64(v) & 0xff))
}

func (GF256) Zero() Element { return gfElem(0) }
func (GF256) One() Element  { return gfElem(1) }

func (GF256) FromBytes(bs []byte) (Element, error) {
	if len(bs) != 1 {
		return nil, ErrInvalidEncoding
	}
	return gfElem(bs[0]), nil
}

func (GF256) Random(rng io.Reader) (Element, error) {
	var b [1]byte
	if _, err := io.ReadFull(rng, b[:]); err != nil {
		return nil, err
	}
	return gfElem(b[0]), nil
}

func (f GF256) Sample(stream io.Reader) (Element, error) {
	// Every byte is a valid element, no rejection needed.
	return f.Random(stream)
}

func (GF256) ByteLen() int { return 1 }

func (GF256) Equal(other Field) bool {
	_, ok := other.(GF256)
	return ok
}

type gfElem byte

func (e gfElem) Field() Field { return GF256{} }

func (e gfElem) Add(other Element) Element {
	mustSameField(e, other)
	return e ^ other.(gfElem)
}

// Sub equals Add in a field of characteristic two.
func (e gfElem) Sub(other Element) Element {
	mustSameField(e, other)
	return e ^ other.(gfElem)
}

func (e gfElem) Mul(other Element) Element {
	mustSameField(e, other)
	o := other.(gfElem)
	if e == 0 || o == 0 {
		return gfElem(0)
	}
	return gfElem(gf256Exp[int(gf256Log[e])+int(gf256Log[o])])
}

func (e gfElem) Neg() Element { return e }

func (e gfElem) Inv() (Element, error) {
	if e == 0 {
		return nil, ErrDivisionByZero
	}
	return gfElem(gf256Exp[255-int(gf256Log[e])]), nil
}

func (e gfElem) IsZero() bool { return e == 0 }

func (e gfElem) Equal(other Element) bool {
	o, ok := other.(gfElem)
	return ok && e == o
}

func (e gfElem) Bytes() []byte { return []byte{byte(e)} }

func (e gfElem) String() string { return fmt.Sprintf("%d", byte(e)) }
