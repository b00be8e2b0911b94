package shamir

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"asyncmpc/field"
)

// subsets enumerates all k-element subsets of shares, used to check the
// round-trip over every qualified set.
func subsets(shares []Share, k int) [][]Share {
	var out [][]Share
	var rec func(start int, cur []Share)
	rec = func(start int, cur []Share) {
		if len(cur) == k {
			out = append(out, append([]Share(nil), cur...))
			return
		}
		for i := start; i < len(shares); i++ {
			rec(i+1, append(cur, shares[i]))
		}
	}
	rec(0, nil)
	return out
}

// TestShamir_RoundTripAllSubsets shares a secret with n=5 t=2 and checks that
// every choice of t+1 shares reconstructs it, in both fields.
func TestShamir_RoundTripAllSubsets(t *testing.T) {
	for _, f := range []field.Field{field.MustZp(11), field.GF256{}} {
		n, th := 5, 2
		secret := f.Element(7)
		shares, err := Deal(secret, th, n, rand.Reader)
		require.NoError(t, err)
		require.Len(t, shares, n)

		for _, sub := range subsets(shares, th+1) {
			got, err := Reconstruct(sub, th)
			require.NoError(t, err)
			require.True(t, secret.Equal(got))
		}
	}
}

func TestShamir_InsufficientShares(t *testing.T) {
	f := field.MustZp(1009)
	shares, err := Deal(f.Element(123), 3, 7, rand.Reader)
	require.NoError(t, err)

	_, err = Reconstruct(shares[:3], 3)
	require.ErrorIs(t, err, ErrInsufficientShares)

	// Duplicated points must not count twice towards the threshold.
	dup := []Share{shares[0], shares[0], shares[0], shares[1]}
	_, err = Reconstruct(dup, 3)
	require.ErrorIs(t, err, ErrInsufficientShares)
}

func TestShamir_VerifiedDetectsTampering(t *testing.T) {
	f := field.MustZp(1009)
	n, th := 7, 2
	secret := f.Element(42)
	shares, err := Deal(secret, th, n, rand.Reader)
	require.NoError(t, err)

	// Honest case: all points agree.
	got, err := ReconstructVerified(shares, th)
	require.NoError(t, err)
	require.True(t, secret.Equal(got))

	// One corrupted point past the interpolation base must be flagged.
	bad := append([]Share(nil), shares...)
	bad[n-1].Y = bad[n-1].Y.Add(f.One())
	_, err = ReconstructVerified(bad, th)
	require.ErrorIs(t, err, ErrInconsistentShares)

	// The passive path silently accepts the same input.
	_, err = Reconstruct(bad, th)
	require.NoError(t, err)
}

func TestShamir_RecombinationVectorReducesDegree(t *testing.T) {
	f := field.MustZp(1013)
	n, th := 7, 3

	// A degree-2t sharing, as after local share multiplication.
	shares, err := Deal(f.Element(77), 2*th, n, rand.Reader)
	require.NoError(t, err)

	xs := make([]int32, 2*th+1)
	for i := range xs {
		xs[i] = int32(i + 1)
	}
	ws, err := RecombinationVector(f, xs)
	require.NoError(t, err)

	acc := f.Zero()
	for i, w := range ws {
		acc = acc.Add(w.Mul(shares[i].Y))
	}
	require.True(t, f.Element(77).Equal(acc))
}

func TestShamir_DealRejectsBadParameters(t *testing.T) {
	f := field.MustZp(11)
	_, err := Deal(f.Element(1), 5, 5, rand.Reader)
	require.Error(t, err)
	_, err = Deal(f.Element(1), -1, 5, rand.Reader)
	require.Error(t, err)
}
