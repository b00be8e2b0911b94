package field

import (
	"bytes"
	"crypto/rand"
	"math/big"
	mrand "math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func bigInt(v int64) *big.Int { return big.NewInt(v) }

// bigPrime is the Mersenne prime 2^127-1, a realistically sized modulus.
func bigPrime(t *testing.T) *Zp {
	p, ok := new(big.Int).SetString("170141183460469231731687303715884105727", 10)
	require.True(t, ok)
	f, err := NewZp(p)
	require.NoError(t, err)
	return f
}

func testFields(t *testing.T) []Field {
	return []Field{MustZp(11), bigPrime(t), GF256{}}
}

// TestField_Laws checks associativity, distributivity and the inverse laws on
// randomly sampled elements of every field.
func TestField_Laws(t *testing.T) {
	for _, f := range testFields(t) {
		f := f
		t.Run(f.Name(), func(t *testing.T) {
			for i := 0; i < 100; i++ {
				a, err := f.Random(rand.Reader)
				require.NoError(t, err)
				b, err := f.Random(rand.Reader)
				require.NoError(t, err)
				c, err := f.Random(rand.Reader)
				require.NoError(t, err)

				require.True(t, a.Add(b).Add(c).Equal(a.Add(b.Add(c))))
				require.True(t, a.Mul(b).Mul(c).Equal(a.Mul(b.Mul(c))))
				require.True(t, a.Add(b).Equal(b.Add(a)))
				require.True(t, a.Mul(b.Add(c)).Equal(a.Mul(b).Add(a.Mul(c))))
				require.True(t, a.Add(a.Neg()).IsZero())
				require.True(t, a.Sub(a).IsZero())

				if !a.IsZero() {
					inv, err := a.Inv()
					require.NoError(t, err)
					require.True(t, a.Mul(inv).Equal(f.One()))
				}
			}
		})
	}
}

func TestField_InvertZeroFails(t *testing.T) {
	for _, f := range testFields(t) {
		_, err := f.Zero().Inv()
		require.ErrorIs(t, err, ErrDivisionByZero)
	}
}

func TestField_BytesRoundTrip(t *testing.T) {
	for _, f := range testFields(t) {
		for i := 0; i < 50; i++ {
			a, err := f.Random(rand.Reader)
			require.NoError(t, err)
			bs := a.Bytes()
			require.Len(t, bs, f.ByteLen())
			back, err := f.FromBytes(bs)
			require.NoError(t, err)
			require.True(t, a.Equal(back))
		}
	}
}

func TestField_SampleDeterministic(t *testing.T) {
	// A long fixed stream so rejection sampling always finds an acceptable
	// value before running out of bytes.
	r := mrand.New(mrand.NewSource(99))
	stream := make([]byte, 4096)
	_, err := r.Read(stream)
	require.NoError(t, err)

	for _, f := range testFields(t) {
		a, err := f.Sample(bytes.NewReader(stream))
		require.NoError(t, err)
		b, err := f.Sample(bytes.NewReader(stream))
		require.NoError(t, err)
		require.True(t, a.Equal(b))
	}
}

func TestZp_RejectsBadModulus(t *testing.T) {
	_, err := NewZp(bigInt(10))
	require.Error(t, err)
	_, err = NewZp(bigInt(-7))
	require.Error(t, err)
}

func TestGF256_ExhaustiveInverse(t *testing.T) {
	f := GF256{}
	for v := int64(1); v < 256; v++ {
		a := f.Element(v)
		inv, err := a.Inv()
		require.NoError(t, err)
		require.True(t, a.Mul(inv).Equal(f.One()), "element %d", v)
	}
}

// TestGF256_AddIsXor pins down that addition carries no carry.
func TestGF256_AddIsXor(t *testing.T) {
	f := GF256{}
	require.True(t, f.Element(0x53).Add(f.Element(0xCA)).Equal(f.Element(0x53^0xCA)))
	require.True(t, f.Element(0xFF).Add(f.Element(0xFF)).IsZero())
}

func TestZp_CrossFieldPanics(t *testing.T) {
	a := MustZp(11).Element(3)
	b := MustZp(13).Element(3)
	require.Panics(t, func() { a.Add(b) })
	require.Panics(t, func() { a.Mul(GF256{}.Element(3)) })
}
