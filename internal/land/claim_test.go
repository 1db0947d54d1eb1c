package land

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"voxellands.ai/internal/geom"
)

func box(x0, z0, x1, z1 int) geom.AABB {
	return geom.Box(geom.Vec3i{X: x0, Z: z0}, geom.Vec3i{X: x1, Z: z1})
}

func TestType_DerivedFromRelations(t *testing.T) {
	c := New(0, box(0, 0, 10, 10), false, uuid.New())
	require.Equal(t, Ordinary, c.Type())

	c.AddChild(5)
	require.Equal(t, Parent, c.Type())

	c.SetParentID(9)
	require.Equal(t, Mix, c.Type())

	c.RemoveChild(5)
	require.Equal(t, Sub, c.Type())

	c.SetParentID(NoID)
	require.Equal(t, Ordinary, c.Type())
}

func TestDirtyCounter_SettersAndPersist(t *testing.T) {
	c := New(0, box(0, 0, 10, 10), false, uuid.New())
	require.False(t, c.IsDirty())

	c.SetName("home")
	c.SetDescription("d")
	require.Equal(t, uint64(2), c.DirtyCount())

	c.MarkPersisted()
	require.False(t, c.IsDirty())

	c.AddMember(uuid.New())
	require.True(t, c.IsDirty())

	// Depth is a cache and never marks the claim dirty.
	c.MarkPersisted()
	c.SetCachedDepth(3)
	require.False(t, c.IsDirty())
}

func TestSetAABB_OnlyOrdinary(t *testing.T) {
	c := New(0, box(0, 0, 10, 10), false, uuid.New())
	require.NoError(t, c.SetAABB(geom.AABB{Min: geom.Vec3i{X: 20, Z: 20}, Max: geom.Vec3i{X: 5, Z: 5}}))
	require.Equal(t, geom.Vec3i{X: 5, Z: 5}, c.AABB().Min)

	c.AddChild(2)
	before := c.DirtyCount()
	err := c.SetAABB(box(0, 0, 1, 1))
	require.ErrorIs(t, err, ErrNotOrdinary)
	require.Equal(t, before, c.DirtyCount())
	require.Equal(t, geom.Vec3i{X: 20, Z: 20}, c.AABB().Max)
}

func TestCanCreateSubclaim(t *testing.T) {
	l := Limits{MaxNestedDepth: 2, MaxChildren: 2}
	c := New(0, box(0, 0, 10, 10), false, uuid.New())
	require.True(t, c.CanCreateSubclaim(l))

	c.AddChild(1)
	c.AddChild(2)
	require.False(t, c.CanCreateSubclaim(l))

	c.RemoveChild(2)
	c.SetCachedDepth(2)
	require.False(t, c.CanCreateSubclaim(l))

	c.SetCachedDepth(HardDepthCap)
	require.False(t, c.CanCreateSubclaim(Limits{MaxNestedDepth: 100, MaxChildren: 100}))
}

func TestMigrateOwnerIdentity_Idempotent(t *testing.T) {
	c, err := FromRecord(Record{ID: 4, LegacyOwner: "2535412345678901", ParentID: NoID})
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, c.Owner())

	p := uuid.New()
	require.True(t, c.MigrateOwnerIdentity(p))
	require.Equal(t, p, c.Owner())
	require.Empty(t, c.LegacyOwner())
	n := c.DirtyCount()

	require.False(t, c.MigrateOwnerIdentity(uuid.New()))
	require.Equal(t, p, c.Owner())
	require.Equal(t, n, c.DirtyCount())
}

func TestSnapshotRestore(t *testing.T) {
	c := New(0, box(0, 0, 10, 10), false, uuid.New())
	c.SetName("a")
	s := c.Snapshot()

	c.SetID(12)
	c.AddChild(4)
	c.AddMember(uuid.New())
	c.SetPermission(PermBuild, PermEntry{Guest: true})
	c.SetName("b")

	c.Restore(s)
	require.Equal(t, NoID, c.ID())
	require.Equal(t, "a", c.Name())
	require.False(t, c.HasChildren())
	require.Empty(t, c.Members())
	require.False(t, c.Permissions().GuestAllowed(PermBuild))
	require.Equal(t, uint64(1), c.DirtyCount())
}

func TestClone_Detached(t *testing.T) {
	c := New(0, box(0, 0, 10, 10), false, uuid.New())
	c.AddChild(4)
	c.AddMember(uuid.New())
	c.SetCachedDepth(2)

	cp := c.Clone()
	require.Equal(t, c.Members(), cp.Members())
	require.Equal(t, c.DirtyCount(), cp.DirtyCount())
	require.Equal(t, 2, cp.CachedDepth())

	c.AddChild(5)
	c.AddMember(uuid.New())
	c.SetPermission(PermBuild, PermEntry{Guest: true})
	require.Equal(t, []ID{4}, cp.Children())
	require.Len(t, cp.Members(), 1)
	require.False(t, cp.Permissions().GuestAllowed(PermBuild))
}

func TestRecord_RoundTrip(t *testing.T) {
	owner, member := uuid.New(), uuid.New()
	c := New(2, geom.Box(geom.Vec3i{X: -10, Y: 5, Z: 3}, geom.Vec3i{X: 40, Y: 90, Z: 60}), true, owner)
	c.SetID(77)
	c.AddMember(member)
	c.SetPermissions(DefaultPermissionTable())
	c.SetName("keep")
	c.SetOriginalPrice(1200)
	c.SetParentID(3)
	c.AddChild(80)
	c.AddChild(81)

	b, err := json.Marshal(c)
	require.NoError(t, err)

	got, err := Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, c.Record(), got.Record())
	require.Equal(t, Mix, got.Type())
	require.True(t, got.IsMember(member))
	require.False(t, got.IsDirty())
}

func TestAllowed_RoleLookup(t *testing.T) {
	owner, member, guest := uuid.New(), uuid.New(), uuid.New()
	c := New(0, box(0, 0, 10, 10), false, owner)
	c.AddMember(member)
	c.SetPermissions(DefaultPermissionTable())

	require.True(t, c.Allowed(PermBuild, owner))
	require.True(t, c.Allowed(PermBuild, member))
	require.False(t, c.Allowed(PermBuild, guest))
	require.True(t, c.Allowed(PermUseDoor, guest))
	require.False(t, c.Allowed(PermExplosion, member))
}

func TestPermissionTable_UnknownKindsSkipped(t *testing.T) {
	var tb PermissionTable
	require.NoError(t, json.Unmarshal([]byte(`{"build":{"member":true,"guest":false},"fly":{"member":true,"guest":true}}`), &tb))
	require.Len(t, tb, 1)
	require.True(t, tb.MemberAllowed(PermBuild))
}
