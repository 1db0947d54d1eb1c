package land

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"voxellands.ai/internal/geom"
)

// SchemaVersion is the claim record version written by this build.
const SchemaVersion = 3

// Record is the persisted JSON form of a claim.
type Record struct {
	Version       int             `json:"version"`
	ID            int64           `json:"id"`
	Dimension     int             `json:"dimension"`
	Min           [3]int          `json:"min"`
	Max           [3]int          `json:"max"`
	Is3D          bool            `json:"is_3d"`
	Owner         string          `json:"owner"`
	LegacyOwner   string          `json:"legacy_owner,omitempty"`
	Members       []string        `json:"members"`
	Permissions   PermissionTable `json:"permissions"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	OriginalPrice int64           `json:"original_price"`
	TeleportPoint [3]int          `json:"teleport_point"`
	ParentID      int64           `json:"parent_id"`
	Children      []int64         `json:"children"`
}

func (c *Claim) Record() Record {
	members := c.Members()
	ms := make([]string, 0, len(members))
	for _, m := range members {
		ms = append(ms, m.String())
	}
	owner := ""
	if c.owner != uuid.Nil {
		owner = c.owner.String()
	}
	return Record{
		Version:       SchemaVersion,
		ID:            c.id,
		Dimension:     c.dimension,
		Min:           c.aabb.Min.Array(),
		Max:           c.aabb.Max.Array(),
		Is3D:          c.is3D,
		Owner:         owner,
		LegacyOwner:   c.legacyOwner,
		Members:       ms,
		Permissions:   c.perms.Clone(),
		Name:          c.name,
		Description:   c.description,
		OriginalPrice: c.price,
		TeleportPoint: c.teleport.Array(),
		ParentID:      c.parentID,
		Children:      c.Children(),
	}
}

func (c *Claim) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Record())
}

// FromRecord rebuilds a claim as loaded from storage; it starts clean with depth 0.
func FromRecord(r Record) (*Claim, error) {
	var owner uuid.UUID
	if r.Owner != "" {
		u, err := uuid.Parse(r.Owner)
		if err != nil {
			return nil, fmt.Errorf("claim %d: owner: %w", r.ID, err)
		}
		owner = u
	}
	members := make(map[uuid.UUID]struct{}, len(r.Members))
	for _, s := range r.Members {
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("claim %d: member %q: %w", r.ID, s, err)
		}
		members[u] = struct{}{}
	}
	perms := r.Permissions
	if perms == nil {
		perms = PermissionTable{}
	}
	children := make([]ID, len(r.Children))
	copy(children, r.Children)
	c := &Claim{
		id:          r.ID,
		dimension:   r.Dimension,
		aabb:        geom.Box(geom.FromArray(r.Min), geom.FromArray(r.Max)),
		is3D:        r.Is3D,
		owner:       owner,
		legacyOwner: r.LegacyOwner,
		members:     members,
		perms:       perms,
		name:        r.Name,
		description: r.Description,
		price:       r.OriginalPrice,
		teleport:    geom.FromArray(r.TeleportPoint),
		parentID:    r.ParentID,
		children:    children,
	}
	return c, nil
}

func Unmarshal(b []byte) (*Claim, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return FromRecord(r)
}
