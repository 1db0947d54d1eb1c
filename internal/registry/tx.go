package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"voxellands.ai/internal/geom"
	"voxellands.ai/internal/land"
	"voxellands.ai/internal/persistence/kvstore"
)

// TxContext is handed to a transaction body. It runs with the registry write lock
// held, so its lookups take no locks.
type TxContext struct {
	r *Registry

	order []*land.Claim
	snaps map[*land.Claim]land.State
	fresh map[land.ID]*land.Claim

	removals map[*land.Claim]struct{}
	allocs   int
	hooks    []func()
	cause    error
}

func newTx(r *Registry) *TxContext {
	return &TxContext{
		r:        r,
		snaps:    map[*land.Claim]land.State{},
		fresh:    map[land.ID]*land.Claim{},
		removals: map[*land.Claim]struct{}{},
	}
}

func (tx *TxContext) join(c *land.Claim) {
	if _, ok := tx.snaps[c]; ok {
		return
	}
	tx.snaps[c] = c.Snapshot()
	tx.order = append(tx.order, c)
}

// live reports whether c is either unregistered or the registry's own instance.
func (tx *TxContext) live(c *land.Claim) bool {
	if c.ID() == land.NoID {
		return true
	}
	if f, ok := tx.fresh[c.ID()]; ok {
		return f == c
	}
	return tx.r.claims[c.ID()] == c
}

// Join adds c as a participant. Joining twice is a no-op; the snapshot is the state at
// the first join. Joining a copy of a registered claim fails the transaction.
func (tx *TxContext) Join(c *land.Claim) {
	if c == nil {
		return
	}
	if !tx.live(c) {
		tx.Fail(fmt.Errorf("%w: claim %d is a copy, resolve it with Claim", ErrInvalidClaim, c.ID()))
		return
	}
	tx.join(c)
}

// Claim resolves id to the registry's instance and joins it. It returns nil when no
// such claim exists.
func (tx *TxContext) Claim(id land.ID) *land.Claim {
	c := tx.Lookup(id)
	if c != nil {
		tx.join(c)
	}
	return c
}

// AllocateID gives c a fresh id and makes it a participant. A claim that already has
// an id keeps it.
func (tx *TxContext) AllocateID(c *land.Claim) land.ID {
	tx.join(c)
	if c.ID() != land.NoID {
		return c.ID()
	}
	id := tx.r.allocateID()
	tx.allocs++
	c.SetID(id)
	tx.fresh[id] = c
	return id
}

// MarkForRemoval schedules a participant for deletion at commit.
func (tx *TxContext) MarkForRemoval(c *land.Claim) {
	if _, ok := tx.snaps[c]; !ok {
		tx.Fail(fmt.Errorf("%w: claim %d is not a participant", ErrInvalidClaim, c.ID()))
		return
	}
	tx.removals[c] = struct{}{}
}

func (tx *TxContext) MarkedForRemoval(c *land.Claim) bool {
	_, ok := tx.removals[c]
	return ok
}

// Lookup resolves registered claims and claims allocated earlier in this transaction.
// The result is the registry's instance and must not be used after the body returns.
func (tx *TxContext) Lookup(id land.ID) *land.Claim {
	if c, ok := tx.fresh[id]; ok {
		return c
	}
	return tx.r.claims[id]
}

// Conflict returns the lowest-id claim outside skip that overlaps bb, or nil.
func (tx *TxContext) Conflict(dim int, bb geom.AABB, is3D bool, skip ...land.ID) *land.Claim {
	return tx.r.conflictLocked(dim, bb, is3D, skip...)
}

func (tx *TxContext) Limits() Limits { return tx.r.limits }

// OnCommit registers fn to run after a successful commit, still under the write lock.
func (tx *TxContext) OnCommit(fn func()) { tx.hooks = append(tx.hooks, fn) }

// Fail records why the body is giving up and returns false, so a body can end with
// `return tx.Fail(err)`.
func (tx *TxContext) Fail(err error) bool {
	if tx.cause == nil {
		tx.cause = err
	}
	return false
}

func (tx *TxContext) run(body func(*TxContext) bool) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			ok = tx.Fail(fmt.Errorf("panic: %v", p))
		}
	}()
	return body(tx)
}

// ExecuteTransaction runs body against participants under the write lock. When body
// returns true the changes are committed: claims marked for removal are deleted,
// freshly allocated claims are inserted and every other dirty participant is written,
// all in one store batch. Otherwise, or when body panics or the store write fails,
// every participant is restored and the allocated ids are handed back.
//
// Participants are fresh claims or instances obtained from tx; copies returned by the
// Registry query methods are rejected. body must not call any Registry method; use tx
// instead.
func (r *Registry) ExecuteTransaction(participants []*land.Claim, body func(tx *TxContext) bool) error {
	if body == nil {
		return fmt.Errorf("%w: nil transaction body", ErrInvalidClaim)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	tx := newTx(r)
	for _, c := range participants {
		if c == nil {
			return fmt.Errorf("%w: nil participant", ErrInvalidClaim)
		}
		if !tx.live(c) {
			return fmt.Errorf("%w: participant %d is a copy", ErrInvalidClaim, c.ID())
		}
		tx.join(c)
	}

	if tx.run(body) && tx.cause == nil {
		ids, err := r.commitLocked(tx)
		if err == nil {
			for _, fn := range tx.hooks {
				fn()
			}
			r.auditLocked(AuditCommit, ids, "")
			return nil
		}
		tx.cause = err
	}

	r.rollbackLocked(tx)
	reason := "body returned false"
	if tx.cause != nil {
		reason = tx.cause.Error()
	}
	r.log.Warn("transaction rolled back", zap.Int("participants", len(tx.order)), zap.String("reason", reason))
	r.auditLocked(AuditRollback, participantIDs(tx.order), reason)
	if tx.cause == nil {
		return ErrTransactionAborted
	}
	return fmt.Errorf("%w: %w", ErrTransactionAborted, tx.cause)
}

func (r *Registry) commitLocked(tx *TxContext) ([]int64, error) {
	batch := kvstore.NewBatch()
	var written []*land.Claim
	for _, c := range tx.order {
		snap := tx.snaps[c]
		_, isNew := tx.fresh[c.ID()]
		switch {
		case snap.ID() != land.NoID && c.ID() != snap.ID():
			return nil, fmt.Errorf("%w: claim %d changed id to %d", ErrInvalidClaim, snap.ID(), c.ID())
		case snap.ID() != land.NoID && r.claims[snap.ID()] != c:
			r.log.Error("participant is not the registered claim", zap.Int64("claim", snap.ID()))
			return nil, fmt.Errorf("%w: participant %d is not registered", ErrCacheInconsistency, snap.ID())
		}
		if _, rm := tx.removals[c]; rm {
			if !isNew && c.ID() != land.NoID {
				batch.Delete(claimKey(c.ID()))
			}
			continue
		}
		if c.ID() == land.NoID || !(isNew || c.IsDirty()) {
			continue
		}
		b, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("registry: encode %d: %w", c.ID(), err)
		}
		batch.Put(claimKey(c.ID()), string(b))
		written = append(written, c)
	}

	if batch.Len() > 0 {
		if err := r.store.Apply(batch); err != nil {
			return nil, fmt.Errorf("%w: commit: %v", ErrStoreFailure, err)
		}
	}

	for _, c := range tx.order {
		snap := tx.snaps[c]
		_, isNew := tx.fresh[c.ID()]
		if _, rm := tx.removals[c]; rm {
			if !isNew && c.ID() != land.NoID {
				delete(r.claims, c.ID())
				r.index.Remove(c)
			}
			continue
		}
		switch {
		case isNew:
			r.claims[c.ID()] = c
			r.index.Add(c)
		case c.ID() != land.NoID && c.AABB() != snap.AABB():
			r.index.Refresh(c)
		}
	}
	for _, c := range written {
		c.MarkPersisted()
	}
	return participantIDs(tx.order), nil
}

func (r *Registry) rollbackLocked(tx *TxContext) {
	for _, c := range tx.order {
		c.Restore(tx.snaps[c])
	}
	r.nextID.Add(-int64(tx.allocs))
}

func participantIDs(cs []*land.Claim) []int64 {
	ids := make([]int64, 0, len(cs))
	for _, c := range cs {
		if c.ID() != land.NoID {
			ids = append(ids, c.ID())
		}
	}
	return ids
}

// IsAborted reports whether err came from a rolled-back transaction.
func IsAborted(err error) bool { return errors.Is(err, ErrTransactionAborted) }
