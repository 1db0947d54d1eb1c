package geom

import "fmt"

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}

func (v Vec3i) Array() [3]int { return [3]int{v.X, v.Y, v.Z} }

func FromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

// AABB is an axis-aligned box with inclusive integer bounds. Callers that build one
// from user input must call Fix before using it.
type AABB struct {
	Min Vec3i `json:"min"`
	Max Vec3i `json:"max"`
}

func Box(a, b Vec3i) AABB {
	bb := AABB{Min: a, Max: b}
	bb.Fix()
	return bb
}

// Fix swaps bounds per axis so that Min <= Max.
func (b *AABB) Fix() {
	if b.Min.X > b.Max.X {
		b.Min.X, b.Max.X = b.Max.X, b.Min.X
	}
	if b.Min.Y > b.Max.Y {
		b.Min.Y, b.Max.Y = b.Max.Y, b.Min.Y
	}
	if b.Min.Z > b.Max.Z {
		b.Min.Z, b.Max.Z = b.Max.Z, b.Min.Z
	}
}

func (b AABB) IsFixed() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// Around returns the box of half-extent r centered on p.
func Around(p Vec3i, r int) AABB {
	if r < 0 {
		r = -r
	}
	return AABB{
		Min: Vec3i{X: p.X - r, Y: p.Y - r, Z: p.Z - r},
		Max: Vec3i{X: p.X + r, Y: p.Y + r, Z: p.Z + r},
	}
}

func (b AABB) SizeX() int { return b.Max.X - b.Min.X + 1 }
func (b AABB) SizeY() int { return b.Max.Y - b.Min.Y + 1 }
func (b AABB) SizeZ() int { return b.Max.Z - b.Min.Z + 1 }

// Contains reports whether p lies inside b. With use3D false the Y axis is ignored.
func (b AABB) Contains(p Vec3i, use3D bool) bool {
	if p.X < b.Min.X || p.X > b.Max.X || p.Z < b.Min.Z || p.Z > b.Max.Z {
		return false
	}
	if use3D && (p.Y < b.Min.Y || p.Y > b.Max.Y) {
		return false
	}
	return true
}

// Encloses reports whether inner lies fully inside b.
func (b AABB) Encloses(inner AABB, use3D bool) bool {
	if inner.Min.X < b.Min.X || inner.Max.X > b.Max.X || inner.Min.Z < b.Min.Z || inner.Max.Z > b.Max.Z {
		return false
	}
	if use3D && (inner.Min.Y < b.Min.Y || inner.Max.Y > b.Max.Y) {
		return false
	}
	return true
}

// Collides reports whether the two boxes share at least one cell.
func (b AABB) Collides(o AABB, use3D bool) bool {
	if b.Max.X < o.Min.X || o.Max.X < b.Min.X || b.Max.Z < o.Min.Z || o.Max.Z < b.Min.Z {
		return false
	}
	if use3D && (b.Max.Y < o.Min.Y || o.Max.Y < b.Min.Y) {
		return false
	}
	return true
}

func (b AABB) String() string {
	return fmt.Sprintf("%s-%s", b.Min, b.Max)
}
