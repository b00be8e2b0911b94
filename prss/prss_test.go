package prss

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"asyncmpc/field"
	"asyncmpc/shamir"
)

func TestSubsets_Enumeration(t *testing.T) {
	subsets := enumerateSubsets(5, 3)
	require.Len(t, subsets, 10) // C(5,3)
	require.Equal(t, []int32{1, 2, 3}, subsets[0])
	require.Equal(t, []int32{3, 4, 5}, subsets[9])
	require.Equal(t, "1,2,3", subsetKey(subsets[0]))
}

// TestPRSS_RandomShareConsistent derives every player's share locally and
// checks the shares form a single consistent degree-t sharing.
func TestPRSS_RandomShareConsistent(t *testing.T) {
	n, th := 5, 2
	keys, err := Setup(n, th, rand.Reader)
	require.NoError(t, err)

	for _, f := range []field.Field{field.MustZp(1009), field.GF256{}} {
		shares := make([]shamir.Share, n)
		for id := int32(1); int(id) <= n; id++ {
			// Each player computes from its own restricted view.
			y, err := keys.ForPlayer(id).RandomShare(f, id, "session-1/counter-7")
			require.NoError(t, err)
			shares[id-1] = shamir.Share{X: id, Y: y}
		}

		// All points on one degree-t polynomial.
		v1, err := shamir.ReconstructVerified(shares, th)
		require.NoError(t, err)

		// Any t+1 points give the same value.
		v2, err := shamir.Reconstruct(shares[2:], th)
		require.NoError(t, err)
		require.True(t, v1.Equal(v2))
	}
}

func TestPRSS_DistinctTagsDistinctValues(t *testing.T) {
	n, th := 5, 2
	keys, err := Setup(n, th, rand.Reader)
	require.NoError(t, err)

	big := field.MustZp(9223372036854775783)
	open := func(tag string) field.Element {
		shares := make([]shamir.Share, n)
		for id := int32(1); int(id) <= n; id++ {
			y, err := keys.RandomShare(big, id, tag)
			require.NoError(t, err)
			shares[id-1] = shamir.Share{X: id, Y: y}
		}
		v, err := shamir.Reconstruct(shares, th)
		require.NoError(t, err)
		return v
	}

	require.False(t, open("tag-a").Equal(open("tag-b")))
	require.True(t, open("tag-a").Equal(open("tag-a")))
}

// TestPRSS_ZeroShare checks the degree-2t zero sharing really encodes zero.
func TestPRSS_ZeroShare(t *testing.T) {
	n, th := 7, 2
	keys, err := Setup(n, th, rand.Reader)
	require.NoError(t, err)

	f := field.MustZp(1013)
	shares := make([]shamir.Share, n)
	for id := int32(1); int(id) <= n; id++ {
		y, err := keys.ForPlayer(id).ZeroShare(f, id, "round-3", 2*th)
		require.NoError(t, err)
		shares[id-1] = shamir.Share{X: id, Y: y}
	}

	v, err := shamir.Reconstruct(shares, 2*th)
	require.NoError(t, err)
	require.True(t, v.IsZero())

	// The individual shares are not themselves zero.
	allZero := true
	for _, s := range shares {
		if !s.Y.IsZero() {
			allZero = false
		}
	}
	require.False(t, allZero)
}

func TestPRSS_ForPlayerRestrictsSeeds(t *testing.T) {
	keys, err := Setup(5, 2, rand.Reader)
	require.NoError(t, err)
	require.Equal(t, 10, keys.SubsetCount()) // C(5,3)

	view := keys.ForPlayer(1)
	require.Equal(t, 6, view.SubsetCount()) // C(4,2)
	require.Equal(t, []int32{1, 2, 3, 4, 5}, view.Members())

	// A restricted view derives its own share fine but refuses to produce
	// another player's share from incomplete subset coverage.
	_, err = view.RandomShare(field.GF256{}, 1, "x")
	require.NoError(t, err)
	_, err = view.RandomShare(field.GF256{}, 5, "x")
	require.Error(t, err)
}

func TestPRSS_SetupRejectsSmallGroups(t *testing.T) {
	_, err := Setup(4, 2, rand.Reader)
	require.Error(t, err)
}
