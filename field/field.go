// Package field implements exact arithmetic over the two finite fields the
// protocols compute in: a configurable large prime field Zp and the fixed
// 256-element binary field GF(2^8).
package field

import (
	"errors"
	"io"
)

var (
	// ErrDivisionByZero is returned when inverting the additive identity.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrFieldMismatch is returned when two values from different fields are
	// combined without an explicit conversion.
	ErrFieldMismatch = errors.New("elements belong to different fields")
	// ErrInvalidEncoding is returned when decoding a byte string that is not
	// a canonical element encoding.
	ErrInvalidEncoding = errors.New("invalid element encoding")
	// ErrNoSquareRoot is returned when taking the square root of a
	// quadratic non-residue.
	ErrNoSquareRoot = errors.New("element has no square root")
)

// Element is an immutable field element. All arithmetic returns new elements
// and never mutates the receiver. Combining elements of different fields is a
// protocol construction bug and panics; callers crossing fields must convert
// explicitly.
type Element interface {
	Field() Field
	Add(Element) Element
	Sub(Element) Element
	Mul(Element) Element
	Neg() Element
	// Inv returns the multiplicative inverse, or ErrDivisionByZero for the
	// additive identity.
	Inv() (Element, error)
	IsZero() bool
	Equal(Element) bool
	// Bytes returns the canonical fixed-width big-endian encoding.
	Bytes() []byte
	String() string
}

// Field creates and decodes elements of a single finite field.
type Field interface {
	Name() string
	// Element reduces the given integer into the field.
	Element(int64) Element
	Zero() Element
	One() Element
	// FromBytes decodes a canonical encoding produced by Element.Bytes.
	FromBytes([]byte) (Element, error)
	// Random samples a uniform element from the given randomness source.
	Random(io.Reader) (Element, error)
	// Sample deterministically maps a byte stream to a uniform element by
	// rejection sampling. Two players reading identical streams obtain
	// bit-for-bit identical elements.
	Sample(io.Reader) (Element, error)
	// ByteLen is the length of the canonical element encoding.
	ByteLen() int
	Equal(Field) bool
}

// mustSameField guards binary operations against cross-field operands.
func mustSameField(a, b Element) {
	if !a.Field().Equal(b.Field()) {
		panic(ErrFieldMismatch)
	}
}
