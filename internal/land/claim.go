package land

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"voxellands.ai/internal/geom"
)

// ID identifies a claim. NoID marks an unassigned claim or an absent parent.
type ID = int64

const NoID ID = -1

// HardDepthCap bounds nesting regardless of configured limits.
const HardDepthCap = 16

// Type is derived from the parent/children relation and never stored.
type Type int

const (
	Ordinary Type = iota
	Parent
	Mix
	Sub
)

func (t Type) String() string {
	switch t {
	case Ordinary:
		return "ORDINARY"
	case Parent:
		return "PARENT"
	case Mix:
		return "MIX"
	case Sub:
		return "SUB"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

var ErrNotOrdinary = errors.New("geometry can only change on an ordinary claim")

type Limits struct {
	MaxNestedDepth int
	MaxChildren    int
}

// Claim is a land claim. Every setter bumps the dirty counter; the registry resets it
// after a successful persist. Claims held by the registry must only be mutated
// through Registry.Update or inside a transaction body.
type Claim struct {
	id          ID
	dimension   int
	aabb        geom.AABB
	is3D        bool
	owner       uuid.UUID
	legacyOwner string
	members     map[uuid.UUID]struct{}
	perms       PermissionTable
	name        string
	description string
	price       int64
	teleport    geom.Vec3i
	parentID    ID
	children    []ID

	dirty uint64
	depth int
}

// New builds an unregistered claim. The box is normalized.
func New(dimension int, bb geom.AABB, is3D bool, owner uuid.UUID) *Claim {
	bb.Fix()
	return &Claim{
		id:        NoID,
		dimension: dimension,
		aabb:      bb,
		is3D:      is3D,
		owner:     owner,
		members:   map[uuid.UUID]struct{}{},
		perms:     PermissionTable{},
		teleport:  bb.Min,
		parentID:  NoID,
	}
}

func (c *Claim) ID() ID                    { return c.id }
func (c *Claim) Dimension() int            { return c.dimension }
func (c *Claim) AABB() geom.AABB           { return c.aabb }
func (c *Claim) Is3D() bool                { return c.is3D }
func (c *Claim) Owner() uuid.UUID          { return c.owner }
func (c *Claim) LegacyOwner() string       { return c.legacyOwner }
func (c *Claim) Name() string              { return c.name }
func (c *Claim) Description() string       { return c.description }
func (c *Claim) OriginalPrice() int64      { return c.price }
func (c *Claim) TeleportPoint() geom.Vec3i { return c.teleport }
func (c *Claim) ParentID() ID              { return c.parentID }
func (c *Claim) HasParent() bool           { return c.parentID != NoID }
func (c *Claim) HasChildren() bool         { return len(c.children) > 0 }
func (c *Claim) ChildCount() int           { return len(c.children) }
func (c *Claim) CachedDepth() int          { return c.depth }
func (c *Claim) DirtyCount() uint64        { return c.dirty }
func (c *Claim) IsDirty() bool             { return c.dirty > 0 }

// Children returns a copy of the ordered child id list.
func (c *Claim) Children() []ID {
	out := make([]ID, len(c.children))
	copy(out, c.children)
	return out
}

func (c *Claim) HasChild(id ID) bool {
	for _, ch := range c.children {
		if ch == id {
			return true
		}
	}
	return false
}

func (c *Claim) Type() Type {
	switch {
	case c.HasParent() && c.HasChildren():
		return Mix
	case c.HasParent():
		return Sub
	case c.HasChildren():
		return Parent
	default:
		return Ordinary
	}
}

func (c *Claim) IsMember(p uuid.UUID) bool {
	_, ok := c.members[p]
	return ok
}

func (c *Claim) IsOwner(p uuid.UUID) bool { return c.owner != uuid.Nil && c.owner == p }

// Members returns the member set as a sorted slice.
func (c *Claim) Members() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(c.members))
	for m := range c.members {
		out = append(out, m)
	}
	sortUUIDs(out)
	return out
}

func (c *Claim) Permissions() PermissionTable { return c.perms.Clone() }

func (c *Claim) Allowed(kind PermKind, p uuid.UUID) bool {
	switch {
	case c.IsOwner(p):
		return true
	case c.IsMember(p):
		return c.perms.MemberAllowed(kind)
	default:
		return c.perms.GuestAllowed(kind)
	}
}

// CanCreateSubclaim reports whether another direct child may be attached.
func (c *Claim) CanCreateSubclaim(l Limits) bool {
	return c.depth < l.MaxNestedDepth && c.depth < HardDepthCap && len(c.children) < l.MaxChildren
}

func (c *Claim) touch() { c.dirty++ }

// MarkDirty flags the claim for persistence without changing any field.
func (c *Claim) MarkDirty() { c.touch() }

// MarkPersisted is called by the registry once the claim has been written out.
func (c *Claim) MarkPersisted() { c.dirty = 0 }

// SetID is used by the registry when allocating or reclaiming ids.
func (c *Claim) SetID(id ID) {
	c.id = id
	c.touch()
}

// SetAABB replaces the geometry. Only ordinary claims may be resized.
func (c *Claim) SetAABB(bb geom.AABB) error {
	if c.Type() != Ordinary {
		return fmt.Errorf("%w: claim %d is %s", ErrNotOrdinary, c.id, c.Type())
	}
	bb.Fix()
	c.aabb = bb
	c.touch()
	return nil
}

func (c *Claim) SetIs3D(v bool) {
	c.is3D = v
	c.touch()
}

func (c *Claim) SetOwner(p uuid.UUID) {
	c.owner = p
	c.touch()
}

// MigrateOwnerIdentity replaces a legacy owner identity with p. It is a no-op once an
// owner identity is present.
func (c *Claim) MigrateOwnerIdentity(p uuid.UUID) bool {
	if c.owner != uuid.Nil || p == uuid.Nil {
		return false
	}
	c.owner = p
	c.legacyOwner = ""
	c.touch()
	return true
}

func (c *Claim) AddMember(p uuid.UUID) {
	c.members[p] = struct{}{}
	c.touch()
}

func (c *Claim) RemoveMember(p uuid.UUID) {
	delete(c.members, p)
	c.touch()
}

func (c *Claim) SetPermissions(t PermissionTable) {
	c.perms = t.Clone()
	c.touch()
}

func (c *Claim) SetPermission(kind PermKind, e PermEntry) {
	if c.perms == nil {
		c.perms = PermissionTable{}
	}
	c.perms[kind] = e
	c.touch()
}

func (c *Claim) SetName(s string) {
	c.name = s
	c.touch()
}

func (c *Claim) SetDescription(s string) {
	c.description = s
	c.touch()
}

func (c *Claim) SetOriginalPrice(v int64) {
	c.price = v
	c.touch()
}

func (c *Claim) SetTeleportPoint(p geom.Vec3i) {
	c.teleport = p
	c.touch()
}

func (c *Claim) SetParentID(id ID) {
	c.parentID = id
	c.touch()
}

func (c *Claim) AddChild(id ID) {
	c.children = append(c.children, id)
	c.touch()
}

// RemoveChild drops id from the child list, keeping order. It reports whether id was present.
func (c *Claim) RemoveChild(id ID) bool {
	for i, ch := range c.children {
		if ch == id {
			c.children = append(c.children[:i], c.children[i+1:]...)
			c.touch()
			return true
		}
	}
	return false
}

// SetCachedDepth updates the memoized hierarchy depth. Depth is not persisted, so the
// dirty counter is left alone.
func (c *Claim) SetCachedDepth(d int) { c.depth = d }

// State is a deep copy of everything a transaction may change.
type State struct {
	id          ID
	dimension   int
	aabb        geom.AABB
	is3D        bool
	owner       uuid.UUID
	legacyOwner string
	members     map[uuid.UUID]struct{}
	perms       PermissionTable
	name        string
	description string
	price       int64
	teleport    geom.Vec3i
	parentID    ID
	children    []ID
	dirty       uint64
	depth       int
}

func (c *Claim) Snapshot() State {
	members := make(map[uuid.UUID]struct{}, len(c.members))
	for m := range c.members {
		members[m] = struct{}{}
	}
	children := make([]ID, len(c.children))
	copy(children, c.children)
	return State{
		id:          c.id,
		dimension:   c.dimension,
		aabb:        c.aabb,
		is3D:        c.is3D,
		owner:       c.owner,
		legacyOwner: c.legacyOwner,
		members:     members,
		perms:       c.perms.Clone(),
		name:        c.name,
		description: c.description,
		price:       c.price,
		teleport:    c.teleport,
		parentID:    c.parentID,
		children:    children,
		dirty:       c.dirty,
		depth:       c.depth,
	}
}

// Clone returns a detached deep copy of c, dirty counter and cached depth included.
func (c *Claim) Clone() *Claim {
	cp := &Claim{}
	cp.Restore(c.Snapshot())
	return cp
}

func (s State) ID() ID          { return s.id }
func (s State) AABB() geom.AABB { return s.aabb }
func (s State) Is3D() bool      { return s.is3D }
func (s State) ParentID() ID    { return s.parentID }

// SameChildren reports whether c still carries the child list captured in s.
func (s State) SameChildren(c *Claim) bool {
	if len(s.children) != len(c.children) {
		return false
	}
	for i := range s.children {
		if s.children[i] != c.children[i] {
			return false
		}
	}
	return true
}

// Restore puts back a snapshot, including the dirty counter.
func (c *Claim) Restore(s State) {
	c.id = s.id
	c.dimension = s.dimension
	c.aabb = s.aabb
	c.is3D = s.is3D
	c.owner = s.owner
	c.legacyOwner = s.legacyOwner
	c.members = s.members
	c.perms = s.perms
	c.name = s.name
	c.description = s.description
	c.price = s.price
	c.teleport = s.teleport
	c.parentID = s.parentID
	c.children = s.children
	c.dirty = s.dirty
	c.depth = s.depth
}
