package hierarchy

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"voxellands.ai/internal/land"
	"voxellands.ai/internal/registry"
)

var ErrDepthLimit = errors.New("hierarchy: nesting limit reached")

// Service edits the parent/child tree. Every edit is one registry transaction.
//
// Claims passed in only name their target: the service checks them against a fresh
// copy first, then resolves and re-validates the registry's own instances inside the
// transaction.
type Service struct {
	reg *registry.Registry
	log *zap.Logger
}

func New(reg *registry.Registry, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{reg: reg, log: log}
}

func (s *Service) Root(c *land.Claim) *land.Claim         { return Root(s.reg, c) }
func (s *Service) Ancestors(c *land.Claim) *Iter          { return Ancestors(s.reg, c) }
func (s *Service) Descendants(c *land.Claim) *Iter        { return Descendants(s.reg, c) }
func (s *Service) FamilyTree(c *land.Claim) []*land.Claim { return FamilyTree(s.reg, c) }

// current returns a copy of the registered claim c names, or an error.
func (s *Service) current(c *land.Claim, want ...land.Type) (*land.Claim, error) {
	if c == nil || c.ID() == land.NoID {
		return nil, registry.ErrInvalidClaim
	}
	cur := s.reg.Lookup(c.ID())
	if cur == nil {
		return nil, fmt.Errorf("%w: %d", registry.ErrNotFound, c.ID())
	}
	if err := checkType(cur, want...); err != nil {
		return nil, err
	}
	return cur, nil
}

// resolve joins the registry's instance of id and checks its type.
func resolve(tx *registry.TxContext, id land.ID, want ...land.Type) (*land.Claim, error) {
	c := tx.Claim(id)
	if c == nil {
		return nil, fmt.Errorf("%w: %d", registry.ErrNotFound, id)
	}
	if err := checkType(c, want...); err != nil {
		return nil, err
	}
	return c, nil
}

func checkType(c *land.Claim, want ...land.Type) error {
	if len(want) == 0 {
		return nil
	}
	for _, t := range want {
		if c.Type() == t {
			return nil
		}
	}
	return fmt.Errorf("%w: claim %d is %s", registry.ErrTypeMismatch, c.ID(), c.Type())
}

// AttachSubclaim registers sub as a new child of parent and returns its id. sub must be
// a fresh ordinary claim inside parent that overlaps nothing but parent and its
// ancestors. A 2D parent spans every height; a 3D parent only encloses 3D subs.
// On success sub belongs to the registry.
func (s *Service) AttachSubclaim(parent, sub *land.Claim) (land.ID, error) {
	if sub == nil || sub.ID() != land.NoID {
		return land.NoID, registry.ErrInvalidClaim
	}
	if sub.Type() != land.Ordinary {
		return land.NoID, fmt.Errorf("%w: sub is %s", registry.ErrTypeMismatch, sub.Type())
	}
	if _, err := s.current(parent); err != nil {
		return land.NoID, err
	}

	id := land.NoID
	err := s.reg.ExecuteTransaction([]*land.Claim{sub}, func(tx *registry.TxContext) bool {
		p, err := resolve(tx, parent.ID())
		if err != nil {
			return tx.Fail(err)
		}
		limits := tx.Limits()
		if !p.CanCreateSubclaim(limits.Nesting()) {
			return tx.Fail(fmt.Errorf("%w: claim %d at depth %d with %d children",
				ErrDepthLimit, p.ID(), p.CachedDepth(), p.ChildCount()))
		}
		if sub.Dimension() != p.Dimension() || (p.Is3D() && !sub.Is3D()) ||
			!p.AABB().Encloses(sub.AABB(), p.Is3D()) {
			return tx.Fail(fmt.Errorf("%w: %s not inside claim %d", registry.ErrRangeIllegal, sub.AABB(), p.ID()))
		}
		if err := limits.CheckRange(sub.AABB()); err != nil {
			return tx.Fail(err)
		}

		skip := []land.ID{p.ID()}
		for _, a := range Ancestors(tx, p).All() {
			skip = append(skip, a.ID())
		}
		if other := tx.Conflict(sub.Dimension(), sub.AABB(), sub.Is3D(), skip...); other != nil {
			return tx.Fail(fmt.Errorf("%w: overlaps claim %d", registry.ErrRangeIllegal, other.ID()))
		}

		if len(sub.Permissions()) == 0 {
			sub.SetPermissions(p.Permissions())
		}
		id = tx.AllocateID(sub)
		p.AddChild(id)
		sub.SetParentID(p.ID())
		tx.OnCommit(func() { sub.SetCachedDepth(p.CachedDepth() + 1) })
		return true
	})
	if err != nil {
		return land.NoID, err
	}
	return id, nil
}

// DeleteSubclaim removes a leaf sub-claim and unlinks it from its parent.
func (s *Service) DeleteSubclaim(sub *land.Claim) error {
	if _, err := s.current(sub, land.Sub); err != nil {
		return err
	}
	return s.reg.ExecuteTransaction(nil, func(tx *registry.TxContext) bool {
		c, err := resolve(tx, sub.ID(), land.Sub)
		if err != nil {
			return tx.Fail(err)
		}
		parent := tx.Claim(c.ParentID())
		if parent == nil {
			return tx.Fail(fmt.Errorf("%w: parent %d of claim %d",
				registry.ErrCacheInconsistency, c.ParentID(), c.ID()))
		}
		if !parent.RemoveChild(c.ID()) {
			return tx.Fail(fmt.Errorf("%w: claim %d not listed by parent %d",
				registry.ErrCacheInconsistency, c.ID(), parent.ID()))
		}
		tx.MarkForRemoval(c)
		return true
	})
}

// DeleteRecursive removes a parent or mix claim with its whole subtree and returns the
// removed ids, the claim itself first.
func (s *Service) DeleteRecursive(claim *land.Claim) ([]land.ID, error) {
	if _, err := s.current(claim, land.Parent, land.Mix); err != nil {
		return nil, err
	}

	var removed []land.ID
	err := s.reg.ExecuteTransaction(nil, func(tx *registry.TxContext) bool {
		removed = removed[:0]
		c, err := resolve(tx, claim.ID(), land.Parent, land.Mix)
		if err != nil {
			return tx.Fail(err)
		}
		if c.HasParent() {
			parent := tx.Claim(c.ParentID())
			if parent == nil {
				return tx.Fail(fmt.Errorf("%w: parent %d of claim %d",
					registry.ErrCacheInconsistency, c.ParentID(), c.ID()))
			}
			if !parent.RemoveChild(c.ID()) {
				return tx.Fail(fmt.Errorf("%w: claim %d not listed by parent %d",
					registry.ErrCacheInconsistency, c.ID(), parent.ID()))
			}
		}
		family := append([]*land.Claim{c}, Descendants(tx, c).All()...)
		for _, x := range family {
			tx.Join(x)
			tx.MarkForRemoval(x)
			removed = append(removed, x.ID())
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("subtree removed", zap.Int64("claim", removed[0]), zap.Int("count", len(removed)))
	return removed, nil
}

// children joins every child of c, failing on a dangling id.
func children(tx *registry.TxContext, c *land.Claim) ([]*land.Claim, error) {
	var out []*land.Claim
	for _, id := range c.Children() {
		ch := tx.Claim(id)
		if ch == nil {
			return nil, fmt.Errorf("%w: child %d of claim %d", registry.ErrCacheInconsistency, id, c.ID())
		}
		out = append(out, ch)
	}
	return out, nil
}

// PromoteChildren removes a root parent claim and turns each of its children into the
// root of its own tree.
func (s *Service) PromoteChildren(parent *land.Claim) error {
	if _, err := s.current(parent, land.Parent); err != nil {
		return err
	}
	return s.reg.ExecuteTransaction(nil, func(tx *registry.TxContext) bool {
		p, err := resolve(tx, parent.ID(), land.Parent)
		if err != nil {
			return tx.Fail(err)
		}
		kids, err := children(tx, p)
		if err != nil {
			return tx.Fail(err)
		}
		for _, ch := range kids {
			ch.SetParentID(land.NoID)
		}
		tx.MarkForRemoval(p)
		tx.OnCommit(func() {
			for _, ch := range kids {
				updateLevels(tx, ch, 0)
			}
		})
		return true
	})
}

// TransferChildren removes a mix claim and re-parents its children onto its parent.
func (s *Service) TransferChildren(mix *land.Claim) error {
	if _, err := s.current(mix, land.Mix); err != nil {
		return err
	}
	return s.reg.ExecuteTransaction(nil, func(tx *registry.TxContext) bool {
		m, err := resolve(tx, mix.ID(), land.Mix)
		if err != nil {
			return tx.Fail(err)
		}
		grand := tx.Claim(m.ParentID())
		if grand == nil {
			return tx.Fail(fmt.Errorf("%w: parent %d of claim %d",
				registry.ErrCacheInconsistency, m.ParentID(), m.ID()))
		}
		if !grand.RemoveChild(m.ID()) {
			return tx.Fail(fmt.Errorf("%w: claim %d not listed by parent %d",
				registry.ErrCacheInconsistency, m.ID(), grand.ID()))
		}
		kids, err := children(tx, m)
		if err != nil {
			return tx.Fail(err)
		}
		for _, ch := range kids {
			ch.SetParentID(grand.ID())
			grand.AddChild(ch.ID())
		}
		tx.MarkForRemoval(m)
		tx.OnCommit(func() {
			for _, ch := range kids {
				updateLevels(tx, ch, grand.CachedDepth()+1)
			}
		})
		return true
	})
}
