package math

import (
	"errors"
	"fmt"
	"io"

	"github.com/bftkit/thresholdcore/internal/codec"
)

// Polynomial holds the coefficients w[0], w[1], ..., w[t-1] of ω(x) = w[0] + w[1]·x + ... + w[t-1]·x^(t-1).
type Polynomial = Scalars

// PolynomialCommitment holds the points w[k]·G of a polynomial's coefficients.
type PolynomialCommitment []Point

// RandomPolynomial returns a random polynomial with t coefficients (degree t - 1) and w[0] = s.
func RandomPolynomial(s Scalar, t int, rand io.Reader) (Polynomial, error) {
	if t <= 0 {
		return nil, errors.New("invalid polynomial degree")
	}

	coefficients := make(Polynomial, t)
	coefficients[0] = s
	for i := 1; i < t; i++ {
		var err error
		coefficients[i], err = NewScalar(s.Modulus()).SetRandom(rand)
		if err != nil {
			return nil, err
		}
	}
	return coefficients, nil
}

// Eval evaluates ω at the share coordinate x = i + 1.
func (w Polynomial) Eval(i int) Scalar {
	if i < 0 {
		panic("polynomial evaluation index must be non-negative")
	}
	return w.EvalAt(w[0].Clone().SetUint(uint(i) + 1))
}

// EvalAt evaluates ω at x using Horner's rule.
func (w Polynomial) EvalAt(x Scalar) Scalar {
	result := w[len(w)-1].Clone()
	for k := len(w) - 2; k >= 0; k-- {
		result.Multiply(x).Add(w[k])
	}
	return result
}

// Commitment returns [w[0]·G, w[1]·G, ..., w[t-1]·G] for the generator G of the given curve.
func (w Polynomial) Commitment(curve Curve) PolynomialCommitment {
	C := make(PolynomialCommitment, len(w))
	for i, wᵢ := range w {
		C[i] = curve.Point().ScalarBaseMult(wᵢ)
	}
	return C
}

// UnmarshalPolynomial reads a polynomial written by Polynomial.MarshalWithLength, having exactly t coefficients.
func UnmarshalPolynomial(source codec.Source, modulus *Modulus, t int) Polynomial {
	source.ReadIntInRange(t, t)
	w := make(Polynomial, t)
	for i := range w {
		w[i] = NewScalar(modulus).UnmarshalFrom(source)
	}
	return w
}

// MarshalWithLength writes the number of coefficients followed by the coefficients.
func (w Polynomial) MarshalWithLength(target codec.Target) {
	target.WriteInt(len(w))
	w.MarshalTo(target)
}

// Eval evaluates the committed polynomial in the exponent at x = i + 1.
func (C PolynomialCommitment) Eval(i int) Point {
	if i < 0 {
		panic("polynomial commitment evaluation index must be non-negative")
	}
	return C.EvalAt(C[0].Curve().Scalar().SetUint(uint(i) + 1))
}

// EvalAt evaluates the committed polynomial in the exponent at x using Horner's rule.
func (C PolynomialCommitment) EvalAt(x Scalar) Point {
	result := C[len(C)-1].Clone()
	for k := len(C) - 2; k >= 0; k-- {
		result.ScalarMult(x, result).Add(result, C[k])
	}
	return result
}

// EvalRange evaluates the committed polynomial at x ∈ {1, 2, ..., n}.
func (C PolynomialCommitment) EvalRange(n int) []Point {
	result := make([]Point, n)
	for i := 0; i < n; i++ {
		result[i] = C.Eval(i)
	}
	return result
}

// Verify reports whether C is the commitment to w, coefficient by coefficient.
func (C PolynomialCommitment) Verify(w Polynomial) bool {
	if len(C) != len(w) {
		return false
	}
	curve := C[0].Curve()
	for i := range C {
		if !C[i].Equal(curve.Point().ScalarBaseMult(w[i])) {
			return false
		}
	}
	return true
}

// Add returns the coefficient-wise sum of both commitments, i.e., the commitment to the sum of the polynomials.
func (C PolynomialCommitment) Add(D PolynomialCommitment) PolynomialCommitment {
	if len(C) != len(D) {
		panic("cannot add polynomial commitments of different lengths")
	}
	result := make(PolynomialCommitment, len(C))
	for i := range C {
		result[i] = C[i].Clone().Add(C[i], D[i])
	}
	return result
}

// lagrangeBasisZero computes the i-th Lagrange basis coefficient evaluated at x = 0, that is
// l_i(0) = ∏_{j≠i} (xⱼ / (xⱼ - xᵢ)). The xs must be pairwise distinct.
func lagrangeBasisZero(i int, xs []Scalar) (Scalar, error) {
	M := xs[0].Modulus()
	numerator := NewScalar(M).SetUint(1)
	denominator := NewScalar(M).SetUint(1)
	tmp := NewScalar(M)

	xᵢ := xs[i]
	for j, xⱼ := range xs {
		if i != j {
			numerator.Multiply(xⱼ)                         // numerator   *= xⱼ
			denominator.Multiply(tmp.Set(xⱼ).Subtract(xᵢ)) // denominator *= xⱼ - xᵢ
		}
	}

	invDenominator, ok := denominator.InverseVarTime()
	if !ok {
		return nil, fmt.Errorf("non-invertible denominator")
	}
	return numerator.Multiply(invDenominator), nil
}

// Interpolator performs Lagrange interpolation at x = 0 for a fixed set of indices. Index i corresponds to the
// x-coordinate i + 1.
type Interpolator struct {
	curve         Curve
	lagrangeBasis []Scalar
}

func NewInterpolator(curve Curve, indices []int) (Interpolator, error) {
	if len(indices) == 0 {
		return Interpolator{}, fmt.Errorf("failed to initialize interpolator: no indices given")
	}

	xs := make([]Scalar, len(indices))
	for i, idx := range indices {
		if idx < 0 {
			return Interpolator{}, fmt.Errorf("failed to initialize interpolator: indices must be non-negative")
		}
		xs[i] = curve.Scalar().SetUint(uint(idx + 1))
	}

	result := Interpolator{curve, make([]Scalar, len(indices))}
	for i := range indices {
		var err error
		result.lagrangeBasis[i], err = lagrangeBasisZero(i, xs)
		if err != nil {
			return Interpolator{}, fmt.Errorf("failed to initialize interpolator (duplicate index?): %w", err)
		}
	}
	return result, nil
}

// ScalarAtZero interpolates the polynomial through the points (xᵢ, ys[i]) at x = 0.
func (ip Interpolator) ScalarAtZero(ys []Scalar) (Scalar, error) {
	if len(ys) != len(ip.lagrangeBasis) {
		return nil, fmt.Errorf("mismatching number of points to interpolate")
	}

	result := ip.curve.Scalar()
	for i, yᵢ := range ys {
		result.Add(ip.lagrangeBasis[i].Clone().Multiply(yᵢ))
	}
	return result, nil
}

// PointAtZero interpolates the polynomial through the points (xᵢ, Ys[i]) in the exponent at x = 0.
func (ip Interpolator) PointAtZero(Ys []Point) (Point, error) {
	if len(Ys) != len(ip.lagrangeBasis) {
		return nil, fmt.Errorf("mismatching number of points to interpolate")
	}

	result := Ys[0].New()
	for i, Yᵢ := range Ys {
		result.Add(result, Yᵢ.Clone().ScalarMult(ip.lagrangeBasis[i], Yᵢ))
	}
	return result, nil
}
