package math

import "github.com/bftkit/thresholdcore/internal/codec"

// Curve describes a prime order group of points together with its scalar field.
type Curve interface {
	// Prevents outside packages from implementing this interface, marshaling relies on the closed set of curves.
	internal()

	codec.Marshaler
	// Use codec.UnmarshalUsing(..., math.UnmarshalCurve) to unmarshal.

	Name() string

	// Scalar returns a new zero scalar mod the group order.
	Scalar() Scalar

	// Point returns a new point set to the identity element.
	Point() Point

	// Generator returns a copy of the group's base point, the caller may modify it.
	Generator() Point

	// GroupOrder returns the order of the group, i.e., the modulus of the scalar field. This is not the modulus of the
	// field over which the curve is defined.
	GroupOrder() *Modulus

	// ScalarBytes returns the length of an encoded scalar.
	ScalarBytes() int

	// PointBytes returns the length of an encoded point.
	PointBytes() int
}
