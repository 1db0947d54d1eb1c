package geom

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFix_SwapsPerAxis(t *testing.T) {
	b := AABB{Min: Vec3i{10, -5, 3}, Max: Vec3i{0, 5, -3}}
	b.Fix()
	require.Equal(t, Vec3i{0, -5, -3}, b.Min)
	require.Equal(t, Vec3i{10, 5, 3}, b.Max)
	require.True(t, b.IsFixed())
}

func TestContains_IgnoresYIn2D(t *testing.T) {
	b := Box(Vec3i{0, 0, 0}, Vec3i{10, 0, 10})
	require.True(t, b.Contains(Vec3i{5, 200, 5}, false))
	require.False(t, b.Contains(Vec3i{5, 200, 5}, true))
	require.False(t, b.Contains(Vec3i{11, 0, 5}, false))
}

func TestEnclosesAndCollides(t *testing.T) {
	outer := Box(Vec3i{0, 0, 0}, Vec3i{100, 0, 100})
	inner := Box(Vec3i{10, 0, 10}, Vec3i{20, 0, 20})
	require.True(t, outer.Encloses(inner, false))
	require.False(t, inner.Encloses(outer, false))

	edge := Box(Vec3i{20, 0, 20}, Vec3i{30, 0, 30})
	require.True(t, inner.Collides(edge, false))
	apart := Box(Vec3i{21, 0, 21}, Vec3i{30, 0, 30})
	require.False(t, inner.Collides(apart, false))

	low := Box(Vec3i{0, 0, 0}, Vec3i{5, 10, 5})
	high := Box(Vec3i{0, 11, 0}, Vec3i{5, 20, 5})
	require.True(t, low.Collides(high, false))
	require.False(t, low.Collides(high, true))
}
