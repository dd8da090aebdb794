package math

import (
	"fmt"
	"io"

	"github.com/bftkit/thresholdcore/internal/codec"
	"github.com/bftkit/thresholdcore/internal/crypto/xof"
)

// SymmetricBivariatePolynomial is a polynomial f(x, y) = Σ_{i,j ≤ t} a_ij·x^i·y^j with a_ij = a_ji. Only the upper
// triangle a_ij, i ≤ j, is stored, in row-major order.
type SymmetricBivariatePolynomial struct {
	degree       int
	coefficients Scalars
}

// BivariateCommitment commits to the upper triangle of a symmetric bivariate polynomial, once in G1 and once in G2.
// The G1 points are used for the Feldman checks of rows and values, the G2 points yield the verification keys that
// are paired against G1 elements.
type BivariateCommitment struct {
	degree int
	g1     Points
	g2     Points
}

var _ codec.Marshaler = &BivariateCommitment{}

// TriangularSize returns the number of coefficients of a symmetric bivariate polynomial of the given degree.
func TriangularSize(degree int) int {
	return (degree + 1) * (degree + 2) / 2
}

// triangularIndex maps (i, j) to the position of a_ij within the row-major upper triangle.
func triangularIndex(degree int, i int, j int) int {
	if i > j {
		i, j = j, i
	}
	return i*(degree+1) - i*(i-1)/2 + (j - i)
}

// RandomSymmetricBivariatePolynomial samples a polynomial of the given degree with uniformly random coefficients.
func RandomSymmetricBivariatePolynomial(curve Curve, degree int, rand io.Reader) (*SymmetricBivariatePolynomial, error) {
	if degree < 0 {
		return nil, fmt.Errorf("invalid polynomial degree %d", degree)
	}
	coefficients := make(Scalars, TriangularSize(degree))
	for k := range coefficients {
		var err error
		if coefficients[k], err = curve.Scalar().SetRandom(rand); err != nil {
			return nil, err
		}
	}
	return &SymmetricBivariatePolynomial{degree, coefficients}, nil
}

func (f *SymmetricBivariatePolynomial) Degree() int {
	return f.degree
}

// Coefficient returns a_ij = a_ji.
func (f *SymmetricBivariatePolynomial) Coefficient(i int, j int) Scalar {
	return f.coefficients[triangularIndex(f.degree, i, j)]
}

// EvaluateRow returns the univariate polynomial f(x, y) in x for the given coordinate y. By symmetry this is also
// f(y, x) as a polynomial in x.
func (f *SymmetricBivariatePolynomial) EvaluateRow(y int) Polynomial {
	yScalar := f.coefficients[0].Clone().SetUint(uint(y))
	row := make(Polynomial, f.degree+1)
	for i := range row {
		// row[i] = Σ_j a_ij·y^j, evaluated with Horner's rule
		row[i] = f.Coefficient(i, f.degree).Clone()
		for j := f.degree - 1; j >= 0; j-- {
			row[i].Multiply(yScalar).Add(f.Coefficient(i, j))
		}
	}
	return row
}

// Evaluate returns f(x, y).
func (f *SymmetricBivariatePolynomial) Evaluate(x int, y int) Scalar {
	row := f.EvaluateRow(y)
	defer row.Zeroize()
	return row.EvalAt(f.coefficients[0].Clone().SetUint(uint(x)))
}

// Commit returns the commitment a_ij·G1, a_ij·G2 for all i ≤ j.
func (f *SymmetricBivariatePolynomial) Commit() *BivariateCommitment {
	return &BivariateCommitment{
		f.degree,
		Points(Polynomial(f.coefficients).Commitment(BLS12381G1)),
		Points(Polynomial(f.coefficients).Commitment(BLS12381G2)),
	}
}

// Zeroize overwrites all coefficients with zero, the polynomial must not be used afterwards.
func (f *SymmetricBivariatePolynomial) Zeroize() {
	f.coefficients.Zeroize()
}

func (c *BivariateCommitment) Degree() int {
	return c.degree
}

// EvaluateRow returns the G1 commitment to the row polynomial f(·, y).
func (c *BivariateCommitment) EvaluateRow(y int) PolynomialCommitment {
	return c.evaluateRow(c.g1, y)
}

// EvaluateRowG2 returns the G2 commitment to the row polynomial f(·, y).
func (c *BivariateCommitment) EvaluateRowG2(y int) PolynomialCommitment {
	return c.evaluateRow(c.g2, y)
}

func (c *BivariateCommitment) evaluateRow(points Points, y int) PolynomialCommitment {
	yScalar := points[0].Curve().Scalar().SetUint(uint(y))
	row := make(PolynomialCommitment, c.degree+1)
	for i := range row {
		row[i] = points[triangularIndex(c.degree, i, c.degree)].Clone()
		for j := c.degree - 1; j >= 0; j-- {
			row[i].ScalarMult(yScalar, row[i]).Add(row[i], points[triangularIndex(c.degree, i, j)])
		}
	}
	return row
}

// Evaluate returns f(x, y)·G1.
func (c *BivariateCommitment) Evaluate(x int, y int) Point {
	return c.EvaluateRow(y).EvalAt(BLS12381G1.Scalar().SetUint(uint(x)))
}

// VerifyConsistency checks that the G1 and G2 halves commit to the same coefficients. For challenges ρ_k derived from
// the whole commitment it tests e(Σ ρ_k·C1_k, G2) == e(G1, Σ ρ_k·C2_k), which fails with overwhelming probability if
// any pair of points differs in its discrete logarithm.
func (c *BivariateCommitment) VerifyConsistency() bool {
	if len(c.g1) != TriangularSize(c.degree) || len(c.g2) != len(c.g1) {
		return false
	}

	h := xof.New("thresholdcore/bivariate-commitment/consistency")
	h.WriteInt(c.degree)
	for k := range c.g1 {
		h.WriteBytes(c.g1[k].Bytes())
		h.WriteBytes(c.g2[k].Bytes())
	}

	lhs := BLS12381G1.Point()
	rhs := BLS12381G2.Point()
	for k := range c.g1 {
		ρ, err := BLS12381G1.Scalar().SetRandom(h)
		if err != nil {
			return false
		}
		lhs.Add(lhs, c.g1[k].Clone().ScalarMult(ρ, c.g1[k]))
		rhs.Add(rhs, c.g2[k].Clone().ScalarMult(ρ, c.g2[k]))
	}
	return PairingEqual(lhs, BLS12381G2.Generator(), BLS12381G1.Generator(), rhs)
}

func (c *BivariateCommitment) Equal(other *BivariateCommitment) bool {
	return c.degree == other.degree && c.g1.Equal(other.g1) && c.g2.Equal(other.g2)
}

func (c *BivariateCommitment) IsNil() bool {
	return c == nil
}

// MarshalTo writes degree ∥ G1 points ∥ G2 points.
func (c *BivariateCommitment) MarshalTo(target codec.Target) {
	target.WriteInt(c.degree)
	c.g1.MarshalTo(target)
	c.g2.MarshalTo(target)
}

// UnmarshalBivariateCommitment reads a commitment and requires it to be of the given degree.
func UnmarshalBivariateCommitment(source codec.Source, degree int) *BivariateCommitment {
	d := source.ReadIntInRange(degree, degree)
	n := TriangularSize(d)
	return &BivariateCommitment{
		d,
		UnmarshalPoints(source, BLS12381G1, n),
		UnmarshalPoints(source, BLS12381G2, n),
	}
}
