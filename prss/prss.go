// Package prss implements pseudo-random secret sharing: communication-free
// generation of Shamir-shared random values and zero sharings from key
// material agreed once at setup.
//
// For threshold t out of n players there is one seed per (n-t)-subset of
// players. All members of a subset hold its seed and can therefore locally
// evaluate the same pseudo-random function on a session tag; scaling each
// subset's output by a fixed degree-t polynomial that is 1 at zero and
// vanishes outside the subset turns the per-subset values into a consistent
// degree-t sharing, with no messages exchanged.
package prss

import (
	"io"
	"sort"

	"go.dedis.ch/kyber/v4/xof/blake2xb"
	"golang.org/x/xerrors"

	"asyncmpc/field"
)

const seedLen = 32

// Keys holds PRSS seed material. A full key set (as produced by Setup) is
// dealer/test material; each player runs with the ForPlayer view containing
// only the seeds of subsets it belongs to.
type Keys struct {
	n, t  int
	seeds map[string][]byte
}

// Setup generates fresh seed material for all (n-t)-subsets of n players
// with threshold t. Requires n >= 2t+1 so that every pair of honest players
// shares at least one subset.
func Setup(n, t int, rng io.Reader) (*Keys, error) {
	if n < 2*t+1 {
		return nil, xerrors.Errorf("prss needs n >= 2t+1, got n=%d t=%d", n, t)
	}
	seeds := make(map[string][]byte)
	for _, subset := range enumerateSubsets(n, n-t) {
		seed := make([]byte, seedLen)
		if _, err := io.ReadFull(rng, seed); err != nil {
			return nil, xerrors.Errorf("sampling subset seed: %w", err)
		}
		seeds[subsetKey(subset)] = seed
	}
	return &Keys{n: n, t: t, seeds: seeds}, nil
}

// ForPlayer returns the view holding only the seeds of subsets the given
// player is a member of, which is all a single player process should ever
// possess.
func (k *Keys) ForPlayer(id int32) *Keys {
	seeds := make(map[string][]byte)
	for _, subset := range k.subsets() {
		if contains(subset, id) {
			key := subsetKey(subset)
			seeds[key] = k.seeds[key]
		}
	}
	return &Keys{n: k.n, t: k.t, seeds: seeds}
}

func (k *Keys) N() int { return k.n }
func (k *Keys) T() int { return k.t }

// subsets returns the subsets present in this view, in canonical order.
func (k *Keys) subsets() [][]int32 {
	var out [][]int32
	for _, subset := range enumerateSubsets(k.n, k.n-k.t) {
		if _, ok := k.seeds[subsetKey(subset)]; ok {
			out = append(out, subset)
		}
	}
	return out
}

// prf evaluates the subset PRF on a tag, yielding a uniform field element.
// The blake2xb stream absorbs the field name so that derivations for Zp and
// GF256 never collide on a tag.
func (k *Keys) prf(seed []byte, f field.Field, tag string) (field.Element, error) {
	xof := blake2xb.New(seed)
	if _, err := xof.Write([]byte(f.Name())); err != nil {
		return nil, err
	}
	if _, err := xof.Write([]byte(tag)); err != nil {
		return nil, err
	}
	return f.Sample(xof)
}

// prfStream returns the raw XOF for derivations needing several elements.
func (k *Keys) prfStream(seed []byte, f field.Field, tag string) (io.Reader, error) {
	xof := blake2xb.New(seed)
	if _, err := xof.Write([]byte(f.Name())); err != nil {
		return nil, err
	}
	if _, err := xof.Write([]byte(tag)); err != nil {
		return nil, err
	}
	return xof, nil
}

// RandomShare returns this player's degree-t share of the pseudo-random
// value bound to the tag. All players calling RandomShare with the same tag
// hold a consistent sharing of the same uniform value.
func (k *Keys) RandomShare(f field.Field, id int32, tag string) (field.Element, error) {
	acc := f.Zero()
	covered := 0
	for _, subset := range k.subsets() {
		if !contains(subset, id) {
			continue
		}
		covered++
		r, err := k.prf(k.seeds[subsetKey(subset)], f, tag)
		if err != nil {
			return nil, err
		}
		g, err := k.coverWeight(f, subset, id)
		if err != nil {
			return nil, err
		}
		acc = acc.Add(r.Mul(g))
	}
	if covered != k.subsetsPerPlayer() {
		return nil, xerrors.Errorf("view holds %d of the %d subsets covering player %d",
			covered, k.subsetsPerPlayer(), id)
	}
	return acc, nil
}

// subsetsPerPlayer is the number of (n-t)-subsets containing a fixed player,
// C(n-1, n-t-1). A partial view cannot produce a correct share.
func (k *Keys) subsetsPerPlayer() int {
	return binomial(k.n-1, k.n-k.t-1)
}

func binomial(n, r int) int {
	if r < 0 || r > n {
		return 0
	}
	acc := 1
	for i := 1; i <= r; i++ {
		acc = acc * (n - r + i) / i
	}
	return acc
}

// ZeroShare returns this player's share of zero on a pseudo-random
// polynomial of the given degree (2t for randomizing products before degree
// reduction). The constant term is exactly zero; the remaining structure is
// pseudo-random.
func (k *Keys) ZeroShare(f field.Field, id int32, tag string, degree int) (field.Element, error) {
	inner := degree - k.t
	if inner < 1 {
		return nil, xerrors.Errorf("zero sharing degree %d not above threshold %d", degree, k.t)
	}
	x := f.Element(int64(id))
	acc := f.Zero()
	covered := 0
	for _, subset := range k.subsets() {
		if !contains(subset, id) {
			continue
		}
		covered++
		stream, err := k.prfStream(k.seeds[subsetKey(subset)], f, "zero|"+tag)
		if err != nil {
			return nil, err
		}
		// h(x) = c_1*x + ... + c_inner*x^inner, zero constant term.
		h := f.Zero()
		xp := f.One()
		for i := 0; i < inner; i++ {
			c, err := f.Sample(stream)
			if err != nil {
				return nil, err
			}
			xp = xp.Mul(x)
			h = h.Add(c.Mul(xp))
		}
		g, err := k.coverWeight(f, subset, id)
		if err != nil {
			return nil, err
		}
		acc = acc.Add(h.Mul(g))
	}
	if covered != k.subsetsPerPlayer() {
		return nil, xerrors.Errorf("view holds %d of the %d subsets covering player %d",
			covered, k.subsetsPerPlayer(), id)
	}
	return acc, nil
}

// coverWeight evaluates at id the degree-t polynomial that is 1 at zero and
// vanishes at every player outside the subset.
func (k *Keys) coverWeight(f field.Field, subset []int32, id int32) (field.Element, error) {
	x := f.Element(int64(id))
	acc := f.One()
	for _, j := range complement(subset, k.n) {
		xj := f.Element(int64(j))
		inv, err := f.Zero().Sub(xj).Inv()
		if err != nil {
			return nil, err
		}
		acc = acc.Mul(x.Sub(xj)).Mul(inv)
	}
	return acc, nil
}

// SubsetCount reports how many subsets this view holds seeds for; mostly
// useful for sizing expectations in tests and setup tooling.
func (k *Keys) SubsetCount() int { return len(k.seeds) }

// Members lists the player ids that appear in at least one held subset,
// sorted ascending.
func (k *Keys) Members() []int32 {
	seen := make(map[int32]struct{})
	for _, subset := range k.subsets() {
		for _, id := range subset {
			seen[id] = struct{}{}
		}
	}
	out := make([]int32, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
