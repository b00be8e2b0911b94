// Package shamir implements threshold secret sharing by polynomial
// evaluation, over any field from the field package. A degree-t sharing
// tolerates t curious players; reconstruction needs t+1 points.
package shamir

import (
	"errors"
	"io"

	"golang.org/x/xerrors"

	"asyncmpc/field"
)

var (
	// ErrInsufficientShares is returned when reconstruction is attempted
	// with fewer than threshold+1 distinct shares.
	ErrInsufficientShares = errors.New("not enough shares to reconstruct")
	// ErrInconsistentShares is returned by verified reconstruction when the
	// supplied points do not all lie on one degree-t polynomial.
	ErrInconsistentShares = errors.New("shares are inconsistent")
)

// Share is one player's evaluation point of the dealer's polynomial. X is the
// player id the polynomial was evaluated at, never zero.
type Share struct {
	X int32
	Y field.Element
}

// Deal samples a uniformly random polynomial of the given degree whose
// constant term is the secret and evaluates it at 1..n. The degree is t for a
// plain sharing and 2t for the zero sharings used in degree reduction.
func Deal(secret field.Element, degree, n int, rng io.Reader) ([]Share, error) {
	if degree < 0 || n <= degree {
		return nil, xerrors.Errorf("invalid sharing parameters degree=%d n=%d", degree, n)
	}
	f := secret.Field()
	coeffs := make([]field.Element, degree+1)
	coeffs[0] = secret
	for i := 1; i <= degree; i++ {
		c, err := f.Random(rng)
		if err != nil {
			return nil, xerrors.Errorf("sampling coefficient: %w", err)
		}
		coeffs[i] = c
	}

	shares := make([]Share, n)
	for i := 1; i <= n; i++ {
		shares[i-1] = Share{X: int32(i), Y: Eval(coeffs, f.Element(int64(i)))}
	}
	return shares, nil
}

// Eval evaluates the polynomial given by its coefficients (constant term
// first) at x, by Horner's rule.
func Eval(coeffs []field.Element, x field.Element) field.Element {
	acc := coeffs[len(coeffs)-1]
	for i := len(coeffs) - 2; i >= 0; i-- {
		acc = acc.Mul(x).Add(coeffs[i])
	}
	return acc
}

// Reconstruct recovers the secret from any t+1 shares by Lagrange
// interpolation at zero. Extra shares beyond t+1 are ignored; honest dealers
// are assumed. Use ReconstructVerified on the actively secure path.
func Reconstruct(shares []Share, t int) (field.Element, error) {
	pts, err := distinct(shares)
	if err != nil {
		return nil, err
	}
	if len(pts) < t+1 {
		return nil, ErrInsufficientShares
	}
	return interpolateAt(pts[:t+1], nil), nil
}

// ReconstructVerified recovers the secret and checks that every supplied
// share lies on the degree-t polynomial defined by the first t+1 of them.
// Returns ErrInconsistentShares listing the disagreeing evaluation points if
// any share is off the polynomial.
func ReconstructVerified(shares []Share, t int) (field.Element, error) {
	pts, err := distinct(shares)
	if err != nil {
		return nil, err
	}
	if len(pts) < t+1 {
		return nil, ErrInsufficientShares
	}
	base := pts[:t+1]
	var bad []int32
	for _, s := range pts[t+1:] {
		expect := interpolateAt(base, s.Y.Field().Element(int64(s.X)))
		if !expect.Equal(s.Y) {
			bad = append(bad, s.X)
		}
	}
	if len(bad) > 0 {
		return nil, xerrors.Errorf("points %v off the polynomial: %w", bad, ErrInconsistentShares)
	}
	return interpolateAt(base, nil), nil
}

// RecombinationVector returns the public Lagrange weights w such that for any
// polynomial f of degree < len(xs), sum_i w_i*f(xs_i) = f(0). Used by the
// multiplication protocol to reduce a degree-2t product sharing.
func RecombinationVector(f field.Field, xs []int32) ([]field.Element, error) {
	pts := make([]Share, len(xs))
	for i, x := range xs {
		pts[i] = Share{X: x, Y: f.Zero()}
	}
	ws := make([]field.Element, len(xs))
	for i := range pts {
		w, err := lagrangeWeight(f, pts, i, nil)
		if err != nil {
			return nil, err
		}
		ws[i] = w
	}
	return ws, nil
}

// interpolateAt evaluates the unique polynomial through the given points at
// x. A nil x means evaluation at zero. The points must have distinct X.
func interpolateAt(pts []Share, x field.Element) field.Element {
	f := pts[0].Y.Field()
	acc := f.Zero()
	for i := range pts {
		w, err := lagrangeWeight(f, pts, i, x)
		if err != nil {
			// Distinct X values make the denominators nonzero.
			panic(err)
		}
		acc = acc.Add(w.Mul(pts[i].Y))
	}
	return acc
}

// lagrangeWeight computes the i-th Lagrange basis polynomial evaluated at x
// (zero when x is nil).
func lagrangeWeight(f field.Field, pts []Share, i int, x field.Element) (field.Element, error) {
	if x == nil {
		x = f.Zero()
	}
	num := f.One()
	den := f.One()
	xi := f.Element(int64(pts[i].X))
	for j := range pts {
		if j == i {
			continue
		}
		xj := f.Element(int64(pts[j].X))
		num = num.Mul(x.Sub(xj))
		den = den.Mul(xi.Sub(xj))
	}
	inv, err := den.Inv()
	if err != nil {
		return nil, err
	}
	return num.Mul(inv), nil
}

// distinct drops duplicate evaluation points, keeping first occurrences.
func distinct(shares []Share) ([]Share, error) {
	seen := make(map[int32]struct{}, len(shares))
	out := make([]Share, 0, len(shares))
	for _, s := range shares {
		if s.X == 0 {
			return nil, xerrors.New("share with x=0 would expose the secret slot")
		}
		if _, ok := seen[s.X]; ok {
			continue
		}
		seen[s.X] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
