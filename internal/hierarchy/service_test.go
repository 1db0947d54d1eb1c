package hierarchy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"voxellands.ai/internal/geom"
	"voxellands.ai/internal/land"
	"voxellands.ai/internal/persistence/kvstore"
	"voxellands.ai/internal/registry"
)

func setup(t *testing.T, limits registry.Limits) (*registry.Registry, *Service, *kvstore.Memory) {
	t.Helper()
	mem := kvstore.NewMemory()
	reg, err := registry.Open(registry.Options{Store: mem, Limits: limits})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg, New(reg, nil), mem
}

func box(x0, z0, x1, z1 int) geom.AABB {
	return geom.Box(geom.Vec3i{X: x0, Z: z0}, geom.Vec3i{X: x1, Z: z1})
}

func claim(bb geom.AABB) *land.Claim { return land.New(0, bb, false, uuid.New()) }

func claim3D(bb geom.AABB) *land.Claim { return land.New(0, bb, true, uuid.New()) }

func box3(x0, y0, z0, x1, y1, z1 int) geom.AABB {
	return geom.Box(geom.Vec3i{X: x0, Y: y0, Z: z0}, geom.Vec3i{X: x1, Y: y1, Z: z1})
}

func addRoot(t *testing.T, reg *registry.Registry, bb geom.AABB) *land.Claim {
	t.Helper()
	c := claim(bb)
	_, err := reg.AddOrdinaryClaim(c)
	require.NoError(t, err)
	return c
}

func attach(t *testing.T, s *Service, parent *land.Claim, bb geom.AABB) *land.Claim {
	t.Helper()
	c := claim(bb)
	_, err := s.AttachSubclaim(parent, c)
	require.NoError(t, err)
	return c
}

func TestAttachSubclaim(t *testing.T) {
	reg, s, _ := setup(t, registry.Limits{})
	p := addRoot(t, reg, box(0, 0, 100, 100))
	sub := claim(box(10, 10, 20, 20))

	id, err := s.AttachSubclaim(p, sub)
	require.NoError(t, err)
	require.Equal(t, sub.ID(), id)
	require.Equal(t, land.Parent, p.Type())
	require.Equal(t, land.Sub, sub.Type())
	require.Equal(t, 1, sub.CachedDepth())
	require.Equal(t, p.ID(), sub.ParentID())
	require.Equal(t, []land.ID{id}, p.Children())
	require.Equal(t, p.Permissions(), sub.Permissions())

	require.Equal(t, sub.ID(), reg.GetClaimAt(geom.Vec3i{X: 15, Z: 15}, 0).ID())
	require.Equal(t, p.ID(), reg.GetClaimAt(geom.Vec3i{X: 90, Z: 90}, 0).ID())
	require.Equal(t, 0, reg.Stats().Dirty)
}

func TestAttachSubclaim_Rejects(t *testing.T) {
	reg, s, _ := setup(t, registry.Limits{MaxNestedDepth: 1, MaxChildren: 2, MinEdge: 4, MaxEdge: 4096, MinY: -64, MaxY: 320})
	p := addRoot(t, reg, box(0, 0, 100, 100))
	first := attach(t, s, p, box(10, 10, 20, 20))
	next := reg.Stats().NextID

	_, err := s.AttachSubclaim(p, claim(box(90, 90, 120, 120)))
	require.ErrorIs(t, err, registry.ErrTransactionAborted)
	require.ErrorIs(t, err, registry.ErrRangeIllegal)

	_, err = s.AttachSubclaim(p, claim(box(15, 15, 30, 30)))
	require.ErrorIs(t, err, registry.ErrRangeIllegal)

	_, err = s.AttachSubclaim(first, claim(box(12, 12, 18, 18)))
	require.ErrorIs(t, err, ErrDepthLimit)

	attach(t, s, p, box(40, 40, 50, 50))
	_, err = s.AttachSubclaim(p, claim(box(60, 60, 70, 70)))
	require.ErrorIs(t, err, ErrDepthLimit)

	_, err = s.AttachSubclaim(p, first)
	require.ErrorIs(t, err, registry.ErrInvalidClaim)

	require.Equal(t, next+1, reg.Stats().NextID)
	require.Equal(t, 2, p.ChildCount())
}

func TestAttachSubclaim_MixedDimensions(t *testing.T) {
	reg, s, _ := setup(t, registry.Limits{})

	// A flat parent spans every height, so a 3D sub well above its stored Y fits.
	flat := addRoot(t, reg, box(0, 0, 100, 100))
	high, err := s.AttachSubclaim(flat, claim3D(box3(10, 50, 10, 20, 60, 20)))
	require.NoError(t, err)

	// A flat sibling in the same columns covers that height too.
	_, err = s.AttachSubclaim(flat, claim(box(12, 12, 18, 18)))
	require.ErrorIs(t, err, registry.ErrRangeIllegal)

	// A 3D sibling below the first one does not.
	low, err := s.AttachSubclaim(flat, claim3D(box3(10, 0, 10, 20, 10, 20)))
	require.NoError(t, err)
	require.Equal(t, high, reg.GetClaimAt(geom.Vec3i{X: 15, Y: 55, Z: 15}, 0).ID())
	require.Equal(t, low, reg.GetClaimAt(geom.Vec3i{X: 15, Y: 5, Z: 15}, 0).ID())
	require.Equal(t, flat.ID(), reg.GetClaimAt(geom.Vec3i{X: 15, Y: 30, Z: 15}, 0).ID())

	// A 3D parent encloses 3D subs only.
	cube := reg.Lookup(addRoot(t, reg, box(200, 200, 300, 300)).ID())
	require.NoError(t, reg.Update(cube.ID(), func(c *land.Claim) error {
		c.SetIs3D(true)
		return c.SetAABB(box3(200, 0, 200, 300, 100, 300))
	}))
	_, err = s.AttachSubclaim(cube, claim(box(210, 210, 220, 220)))
	require.ErrorIs(t, err, registry.ErrRangeIllegal)
	_, err = s.AttachSubclaim(cube, claim3D(box3(210, 90, 210, 220, 120, 220)))
	require.ErrorIs(t, err, registry.ErrRangeIllegal)
	_, err = s.AttachSubclaim(cube, claim3D(box3(210, 10, 210, 220, 20, 220)))
	require.NoError(t, err)
}

func TestHierarchy_TakesCopies(t *testing.T) {
	reg, s, _ := setup(t, registry.Limits{})
	p := addRoot(t, reg, box(0, 0, 100, 100))

	cp := reg.Lookup(p.ID())
	id, err := s.AttachSubclaim(cp, claim(box(10, 10, 20, 20)))
	require.NoError(t, err)
	require.False(t, cp.HasChildren())
	require.Equal(t, []land.ID{id}, reg.Lookup(p.ID()).Children())

	require.NoError(t, s.PromoteChildren(cp))
	_, ok := reg.GetClaim(p.ID())
	require.False(t, ok)
	require.Equal(t, land.Ordinary, reg.Lookup(id).Type())

	// A stale copy is checked against the live claim.
	require.ErrorIs(t, s.PromoteChildren(cp), registry.ErrNotFound)
}

func TestPromoteChildren(t *testing.T) {
	reg, s, mem := setup(t, registry.Limits{})
	p := addRoot(t, reg, box(0, 0, 100, 100))
	s1 := attach(t, s, p, box(10, 10, 20, 20))
	s2 := attach(t, s, p, box(30, 30, 40, 40))
	leaf := attach(t, s, s2, box(32, 32, 36, 36))
	require.Equal(t, 2, leaf.CachedDepth())

	require.ErrorIs(t, s.PromoteChildren(s2), registry.ErrTypeMismatch)
	require.NoError(t, s.PromoteChildren(p))

	_, ok := reg.GetClaim(p.ID())
	require.False(t, ok)
	_, ok, err := mem.Get(itoa(p.ID()))
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, land.NoID, s1.ParentID())
	require.Equal(t, land.NoID, s2.ParentID())
	require.Equal(t, land.Ordinary, s1.Type())
	require.Equal(t, land.Parent, s2.Type())
	require.Equal(t, 0, s1.CachedDepth())
	require.Equal(t, 0, s2.CachedDepth())
	require.Equal(t, 1, leaf.CachedDepth())
	require.Nil(t, reg.GetClaimAt(geom.Vec3i{X: 90, Z: 90}, 0))
}

func TestDeleteRecursive(t *testing.T) {
	reg, s, mem := setup(t, registry.Limits{})
	root := addRoot(t, reg, box(0, 0, 200, 200))
	a := attach(t, s, root, box(10, 10, 150, 150))
	m := attach(t, s, a, box(20, 20, 120, 120))
	c1 := attach(t, s, m, box(30, 30, 50, 50))
	c2 := attach(t, s, m, box(60, 60, 80, 80))
	require.Equal(t, land.Mix, m.Type())
	require.Equal(t, 3, c2.CachedDepth())

	removed, err := s.DeleteRecursive(m)
	require.NoError(t, err)
	require.ElementsMatch(t, []land.ID{m.ID(), c1.ID(), c2.ID()}, removed)

	for _, id := range removed {
		_, ok := reg.GetClaim(id)
		require.False(t, ok)
		_, ok, err := mem.Get(itoa(id))
		require.NoError(t, err)
		require.False(t, ok)
	}
	require.False(t, a.HasChild(m.ID()))
	require.Equal(t, land.Sub, a.Type())
	require.Equal(t, a.ID(), reg.GetClaimAt(geom.Vec3i{X: 40, Z: 40}, 0).ID())

	_, err = s.DeleteRecursive(a)
	require.ErrorIs(t, err, registry.ErrTypeMismatch)
}

func TestDeleteRecursive_StoreFailureKeepsTree(t *testing.T) {
	reg, s, mem := setup(t, registry.Limits{})
	root := addRoot(t, reg, box(0, 0, 200, 200))
	m := attach(t, s, root, box(20, 20, 120, 120))
	c1 := attach(t, s, m, box(30, 30, 50, 50))

	mem.FailWrites(true)
	_, err := s.DeleteRecursive(m)
	require.ErrorIs(t, err, registry.ErrStoreFailure)
	mem.FailWrites(false)

	require.True(t, root.HasChild(m.ID()))
	require.True(t, m.HasChild(c1.ID()))
	require.Equal(t, c1.ID(), reg.GetClaimAt(geom.Vec3i{X: 40, Z: 40}, 0).ID())
	require.Equal(t, 2, c1.CachedDepth())
	require.False(t, root.IsDirty())
}

func TestDeleteSubclaim(t *testing.T) {
	reg, s, _ := setup(t, registry.Limits{})
	p := addRoot(t, reg, box(0, 0, 100, 100))
	sub := attach(t, s, p, box(10, 10, 20, 20))

	require.ErrorIs(t, s.DeleteSubclaim(p), registry.ErrTypeMismatch)
	require.NoError(t, s.DeleteSubclaim(sub))
	require.Equal(t, land.Ordinary, p.Type())
	require.Equal(t, p.ID(), reg.GetClaimAt(geom.Vec3i{X: 15, Z: 15}, 0).ID())
}

func TestTransferChildren(t *testing.T) {
	reg, s, _ := setup(t, registry.Limits{})
	root := addRoot(t, reg, box(0, 0, 200, 200))
	m := attach(t, s, root, box(20, 20, 120, 120))
	c1 := attach(t, s, m, box(30, 30, 50, 50))
	c2 := attach(t, s, m, box(60, 60, 80, 80))
	leaf := attach(t, s, c2, box(62, 62, 70, 70))

	require.ErrorIs(t, s.TransferChildren(root), registry.ErrTypeMismatch)
	require.NoError(t, s.TransferChildren(m))

	_, ok := reg.GetClaim(m.ID())
	require.False(t, ok)
	require.Equal(t, []land.ID{c1.ID(), c2.ID()}, root.Children())
	require.Equal(t, root.ID(), c1.ParentID())
	require.Equal(t, 1, c1.CachedDepth())
	require.Equal(t, 1, c2.CachedDepth())
	require.Equal(t, 2, leaf.CachedDepth())
	require.Equal(t, root.ID(), reg.GetClaimAt(geom.Vec3i{X: 100, Z: 100}, 0).ID())
}

func TestIterators(t *testing.T) {
	reg, s, _ := setup(t, registry.Limits{})
	root := addRoot(t, reg, box(0, 0, 200, 200))
	a := attach(t, s, root, box(10, 10, 100, 100))
	b := attach(t, s, root, box(110, 110, 190, 190))
	a1 := attach(t, s, a, box(20, 20, 40, 40))

	require.Equal(t, []land.ID{a.ID(), root.ID()}, ids(s.Ancestors(a1).All()))
	require.Equal(t, root.ID(), s.Root(a1).ID())
	require.Equal(t, root.ID(), s.Root(root).ID())
	require.Equal(t, []land.ID{a.ID(), a1.ID(), b.ID()}, ids(s.Descendants(root).All()))
	require.Equal(t, []land.ID{root.ID(), a.ID(), a1.ID(), b.ID()}, ids(s.FamilyTree(b)))

	it := s.Descendants(a)
	got, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, a1.ID(), got.ID())
	_, ok = it.Next()
	require.False(t, ok)
	_, ok = it.Next()
	require.False(t, ok)
	require.Empty(t, it.All())
}
