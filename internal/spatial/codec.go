package spatial

// CellShift is log2 of the cell edge length in world units (16x16 columns).
const CellShift = 4

// CellID packs a signed (x,z) cell pair: bit 63 is the x sign, bits 62..32 the x
// magnitude, bit 31 the z sign and bits 30..0 the z magnitude.
type CellID uint64

const (
	magMask  = 1<<31 - 1
	signBitX = 1 << 63
	signBitZ = 1 << 31
)

// EncodeCell packs the cell coordinates. Magnitudes are limited to 31 bits, which
// covers every cell a world coordinate in int32 range can map to.
func EncodeCell(x, z int32) CellID {
	var id uint64
	mx, sx := split(x)
	mz, sz := split(z)
	if sx {
		id |= signBitX
	}
	if sz {
		id |= signBitZ
	}
	id |= mx << 32
	id |= mz
	return CellID(id)
}

// DecodeCell is the inverse of EncodeCell.
func DecodeCell(id CellID) (x, z int32) {
	v := uint64(id)
	x = int32((v >> 32) & magMask)
	z = int32(v & magMask)
	if v&signBitX != 0 {
		x = -x
	}
	if v&signBitZ != 0 {
		z = -z
	}
	return x, z
}

func split(v int32) (mag uint64, neg bool) {
	if v < 0 {
		return uint64(-int64(v)) & magMask, true
	}
	return uint64(v) & magMask, false
}

// World coordinates the index accepts on the X and Z axes.
const (
	MinCoord = -(1 << 30)
	MaxCoord = 1<<30 - 1
)

// InDomain reports whether the column (x,z) is inside the indexed coordinate range.
func InDomain(x, z int) bool {
	return x >= MinCoord && x <= MaxCoord && z >= MinCoord && z <= MaxCoord
}

func clampCoord(v int) int {
	switch {
	case v < MinCoord:
		return MinCoord
	case v > MaxCoord:
		return MaxCoord
	}
	return v
}

// CellCoord maps a world coordinate to its cell coordinate (floor division).
// Coordinates outside the domain saturate to the edge cell.
func CellCoord(v int) int32 {
	return int32(clampCoord(v) >> CellShift)
}

// CellOf returns the cell holding the world column (x,z).
func CellOf(x, z int) CellID {
	return EncodeCell(CellCoord(x), CellCoord(z))
}
