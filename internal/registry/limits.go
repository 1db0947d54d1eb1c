package registry

import (
	"fmt"

	"voxellands.ai/internal/geom"
	"voxellands.ai/internal/land"
	"voxellands.ai/internal/spatial"
)

// Limits bounds claim geometry and nesting.
type Limits struct {
	MaxNestedDepth int
	MaxChildren    int
	MinEdge        int
	MaxEdge        int
	MinY           int
	MaxY           int
}

func DefaultLimits() Limits {
	return Limits{
		MaxNestedDepth: 3,
		MaxChildren:    8,
		MinEdge:        4,
		MaxEdge:        4096,
		MinY:           -64,
		MaxY:           320,
	}
}

func (l Limits) Nesting() land.Limits {
	return land.Limits{MaxNestedDepth: l.MaxNestedDepth, MaxChildren: l.MaxChildren}
}

// CheckRange validates the horizontal edge lengths and vertical bounds of bb.
func (l Limits) CheckRange(bb geom.AABB) error {
	if !bb.IsFixed() {
		return fmt.Errorf("%w: %s is not normalized", ErrRangeIllegal, bb)
	}
	if !spatial.InDomain(bb.Min.X, bb.Min.Z) || !spatial.InDomain(bb.Max.X, bb.Max.Z) {
		return fmt.Errorf("%w: %s outside the world", ErrRangeIllegal, bb)
	}
	for _, edge := range []int{bb.SizeX(), bb.SizeZ()} {
		if edge < l.MinEdge || edge > l.MaxEdge {
			return fmt.Errorf("%w: edge %d outside [%d,%d]", ErrRangeIllegal, edge, l.MinEdge, l.MaxEdge)
		}
	}
	if bb.Min.Y < l.MinY || bb.Max.Y > l.MaxY {
		return fmt.Errorf("%w: y %d..%d outside [%d,%d]", ErrRangeIllegal, bb.Min.Y, bb.Max.Y, l.MinY, l.MaxY)
	}
	return nil
}
