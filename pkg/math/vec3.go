// Package math provides the vector and bounds types used by the building geometry.
package math

import "math"

// Vec3 is a 3D point in the model's coordinate reference system.
type Vec3 struct {
	X, Y, Z float64
}

// Min returns the componentwise minimum of v and other.
func (v Vec3) Min(other Vec3) Vec3 {
	return Vec3{math.Min(v.X, other.X), math.Min(v.Y, other.Y), math.Min(v.Z, other.Z)}
}

// Max returns the componentwise maximum of v and other.
func (v Vec3) Max(other Vec3) Vec3 {
	return Vec3{math.Max(v.X, other.X), math.Max(v.Y, other.Y), math.Max(v.Z, other.Z)}
}

// Array returns the components as [x, y, z].
func (v Vec3) Array() [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// FromArray builds a Vec3 from [x, y, z].
func FromArray(a [3]float64) Vec3 {
	return Vec3{a[0], a[1], a[2]}
}
