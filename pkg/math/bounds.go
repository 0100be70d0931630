package math

// Bounds is an axis-aligned bounding box. The zero value is empty.
type Bounds struct {
	Min   Vec3
	Max   Vec3
	valid bool
}

// BoundsOf returns the bounds of the given points.
func BoundsOf(points []Vec3) Bounds {
	var b Bounds
	for _, p := range points {
		b.Extend(p)
	}
	return b
}

// Extend grows the box to contain p.
func (b *Bounds) Extend(p Vec3) {
	if !b.valid {
		b.Min, b.Max, b.valid = p, p, true
		return
	}
	b.Min = b.Min.Min(p)
	b.Max = b.Max.Max(p)
}

// Empty reports whether no point has been added.
func (b Bounds) Empty() bool {
	return !b.valid
}

// Extent returns [minx, miny, minz, maxx, maxy, maxz].
// An empty box yields all zeros.
func (b Bounds) Extent() [6]float64 {
	if !b.valid {
		return [6]float64{}
	}
	return [6]float64{b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z}
}
