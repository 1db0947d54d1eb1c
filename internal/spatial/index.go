package spatial

import "voxellands.ai/internal/geom"

// Entry is what the index needs to know about a claim.
type Entry interface {
	ID() int64
	Dimension() int
	AABB() geom.AABB
}

// Index maps grid cells to claim ids, one BiIndex per dimension. It stores ids only;
// the registry owns the claims. Index is not safe for concurrent use.
type Index struct {
	dims map[int]*BiIndex[CellID, int64]
}

func NewIndex() *Index {
	return &Index{dims: make(map[int]*BiIndex[CellID, int64])}
}

func (x *Index) dim(d int, create bool) *BiIndex[CellID, int64] {
	b := x.dims[d]
	if b == nil && create {
		b = NewBiIndex[CellID, int64]()
		x.dims[d] = b
	}
	return b
}

// Add inserts (cell,id) for every cell under the entry's 2D footprint.
func (x *Index) Add(e Entry) {
	b := x.dim(e.Dimension(), true)
	id := e.ID()
	ForEachCell(e.AABB(), func(c CellID) bool {
		b.Insert(c, id)
		return true
	})
}

// Remove erases every cell recorded for the entry. Unknown entries are a no-op.
func (x *Index) Remove(e Entry) {
	b := x.dim(e.Dimension(), false)
	if b == nil {
		return
	}
	b.EraseValue(e.ID())
}

// Refresh re-indexes an entry after a geometry change.
func (x *Index) Refresh(e Entry) {
	x.Remove(e)
	x.Add(e)
}

// QueryCell returns the ids touching the cell, or nil.
func (x *Index) QueryCell(dim int, c CellID) Set[int64] {
	b := x.dim(dim, false)
	if b == nil {
		return nil
	}
	return b.Forward(c)
}

// CellsOf returns the cells recorded for id in dim, or nil.
func (x *Index) CellsOf(dim int, id int64) Set[CellID] {
	b := x.dim(dim, false)
	if b == nil {
		return nil
	}
	return b.Reverse(id)
}

func (x *Index) Has(dim int, id int64) bool {
	b := x.dim(dim, false)
	return b != nil && b.HasValue(id)
}

func (x *Index) Dimensions() []int {
	out := make([]int, 0, len(x.dims))
	for d := range x.dims {
		out = append(out, d)
	}
	return out
}

// Footprint returns the cell range under the part of bb's footprint that lies inside
// the coordinate domain. ok is false when nothing does.
func Footprint(bb geom.AABB) (x0, z0, x1, z1 int32, ok bool) {
	if bb.Max.X < MinCoord || bb.Min.X > MaxCoord || bb.Max.Z < MinCoord || bb.Min.Z > MaxCoord ||
		bb.Min.X > bb.Max.X || bb.Min.Z > bb.Max.Z {
		return 0, 0, 0, 0, false
	}
	return CellCoord(bb.Min.X), CellCoord(bb.Min.Z), CellCoord(bb.Max.X), CellCoord(bb.Max.Z), true
}

// CellCount is the number of cells ForEachCell visits for bb.
func CellCount(bb geom.AABB) int64 {
	x0, z0, x1, z1, ok := Footprint(bb)
	if !ok {
		return 0
	}
	return (int64(x1) - int64(x0) + 1) * (int64(z1) - int64(z0) + 1)
}

// ForEachCell visits every cell under the box footprint once, stopping early when fn
// returns false.
func ForEachCell(bb geom.AABB, fn func(CellID) bool) {
	x0, z0, x1, z1, ok := Footprint(bb)
	if !ok {
		return
	}
	for cx := int64(x0); cx <= int64(x1); cx++ {
		for cz := int64(z0); cz <= int64(z1); cz++ {
			if !fn(EncodeCell(int32(cx), int32(cz))) {
				return
			}
		}
	}
}
