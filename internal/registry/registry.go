package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voxellands.ai/internal/geom"
	"voxellands.ai/internal/land"
	"voxellands.ai/internal/migrate"
	"voxellands.ai/internal/persistence/backup"
	"voxellands.ai/internal/persistence/kvstore"
	"voxellands.ai/internal/spatial"
)

// StoreVersion is the store-wide schema version written by this build.
const StoreVersion = 2

const (
	keyVersion        = "__version__"
	keyOperators      = "operators"
	keyPlayerSettings = "player_settings"
	keyTemplate       = "template_perm"
)

type Options struct {
	Store  kvstore.Store
	Logger *zap.Logger
	Audit  AuditLogger
	Limits Limits

	// BackupDir receives a dump of the store before an in-place schema upgrade.
	// Empty disables the dump.
	BackupDir string

	// FlushInterval is the period of the background flush. Zero disables the loop.
	FlushInterval time.Duration

	ClaimMigrator migrate.Migrator
	StoreMigrator migrate.Migrator

	Now func() time.Time
}

// Registry owns every claim, the spatial index and the durable store. Queries take
// the read lock; every mutation, including a whole transaction body, holds the write
// lock. The lock is not reentrant: hooks and transaction bodies must not call back
// into the Registry.
type Registry struct {
	store    kvstore.Store
	log      *zap.Logger
	audit    AuditLogger
	limits   Limits
	claimMig migrate.Migrator
	storeMig migrate.Migrator
	now      func() time.Time

	mu        sync.RWMutex
	claims    map[land.ID]*land.Claim
	index     *spatial.Index
	operators map[uuid.UUID]struct{}
	settings  map[uuid.UUID]PlayerSettings
	template  land.PermissionTable
	closed    bool

	nextID atomic.Int64

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Open verifies the store version, loads everything into memory, rebuilds the spatial
// index and starts the flush loop.
func Open(opts Options) (*Registry, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("registry: nil store")
	}
	r := &Registry{
		store:     opts.Store,
		log:       opts.Logger,
		audit:     opts.Audit,
		limits:    opts.Limits,
		claimMig:  opts.ClaimMigrator,
		storeMig:  opts.StoreMigrator,
		now:       opts.Now,
		claims:    map[land.ID]*land.Claim{},
		index:     spatial.NewIndex(),
		operators: map[uuid.UUID]struct{}{},
		settings:  map[uuid.UUID]PlayerSettings{},
		template:  land.DefaultPermissionTable(),
		stop:      make(chan struct{}),
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.limits == (Limits{}) {
		r.limits = DefaultLimits()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.storeMig == nil {
		r.storeMig = migrate.NewStoreChain()
	}
	if r.claimMig == nil {
		c, err := migrate.NewClaimChain()
		if err != nil {
			return nil, err
		}
		r.claimMig = c
	}

	if err := r.checkVersion(opts.BackupDir); err != nil {
		return nil, err
	}
	upgraded, err := r.load()
	if err != nil {
		return nil, err
	}
	r.computeDepths()
	for _, c := range r.claims {
		r.index.Add(c)
	}

	r.log.Info("registry loaded",
		zap.Int("claims", len(r.claims)),
		zap.Int("upgraded", upgraded),
		zap.Int("operators", len(r.operators)),
		zap.Int64("next_id", r.nextID.Load()),
	)

	if opts.FlushInterval > 0 {
		r.wg.Add(1)
		go r.flushLoop(opts.FlushInterval)
	}
	return r, nil
}

func (r *Registry) checkVersion(backupDir string) error {
	raw, ok, err := r.store.Get(keyVersion)
	if err != nil {
		return fmt.Errorf("%w: read version: %v", ErrStoreFailure, err)
	}
	stored := StoreVersion
	if ok {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("registry: bad %s %q: %w", keyVersion, raw, err)
		}
		stored = v
	} else {
		empty := true
		if err := r.store.Scan(func(string, string) error {
			empty = false
			return errStopScan
		}); err != nil && !errors.Is(err, errStopScan) {
			return fmt.Errorf("%w: scan: %v", ErrStoreFailure, err)
		}
		if !empty {
			// Stores predating the version record.
			stored = 1
		}
	}

	if stored > StoreVersion {
		return fmt.Errorf("%w: store v%d, supported v%d", ErrStoreTooNew, stored, StoreVersion)
	}
	if ok && stored == StoreVersion {
		return nil
	}
	if stored < StoreVersion && backupDir != "" {
		if err := os.MkdirAll(backupDir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(backupDir, backup.FileName(stored, r.now()))
		h, err := backup.Dump(path, r.store, stored, "upgrade")
		if err != nil {
			return fmt.Errorf("registry: backup before upgrade: %w", err)
		}
		r.log.Info("store backed up before upgrade", zap.String("path", path), zap.Int("entries", h.Entries))
	}
	doc := map[string]any{"version": stored}
	if err := r.storeMig.Migrate(doc, StoreVersion); err != nil {
		if errors.Is(err, migrate.ErrTooNew) {
			return fmt.Errorf("%w: %v", ErrStoreTooNew, err)
		}
		return fmt.Errorf("registry: migrate store: %w", err)
	}
	if err := r.store.Put(keyVersion, strconv.Itoa(StoreVersion)); err != nil {
		return fmt.Errorf("%w: write version: %v", ErrStoreFailure, err)
	}
	if stored != StoreVersion {
		r.log.Info("store upgraded", zap.Int("from", stored), zap.Int("to", StoreVersion))
	}
	return nil
}

var errStopScan = errors.New("stop scan")

func (r *Registry) load() (upgraded int, err error) {
	maxID := land.ID(-1)
	err = r.store.Scan(func(k, v string) error {
		switch k {
		case keyVersion:
			return nil
		case keyOperators:
			var ss []string
			if err := json.Unmarshal([]byte(v), &ss); err != nil {
				return fmt.Errorf("%s: %w", keyOperators, err)
			}
			for _, s := range ss {
				p, err := uuid.Parse(s)
				if err != nil {
					r.log.Warn("skipping operator", zap.String("id", s), zap.Error(err))
					continue
				}
				r.operators[p] = struct{}{}
			}
			return nil
		case keyPlayerSettings:
			var m map[string]PlayerSettings
			if err := json.Unmarshal([]byte(v), &m); err != nil {
				return fmt.Errorf("%s: %w", keyPlayerSettings, err)
			}
			for s, ps := range m {
				p, err := uuid.Parse(s)
				if err != nil {
					r.log.Warn("skipping player settings", zap.String("id", s), zap.Error(err))
					continue
				}
				r.settings[p] = ps
			}
			return nil
		case keyTemplate:
			var t land.PermissionTable
			if err := json.Unmarshal([]byte(v), &t); err != nil {
				return fmt.Errorf("%s: %w", keyTemplate, err)
			}
			r.template = t
			return nil
		}

		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			r.log.Warn("skipping unknown key", zap.String("key", k))
			return nil
		}
		c, migrated, err := r.decodeClaim(id, v)
		if err != nil {
			return err
		}
		if migrated {
			c.MarkDirty()
			upgraded++
		}
		r.claims[id] = c
		if id > maxID {
			maxID = id
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStoreTooNew) || errors.Is(err, ErrInvalidClaim) {
			return 0, err
		}
		return 0, fmt.Errorf("registry: load: %w", err)
	}
	r.nextID.Store(maxID + 1)
	return upgraded, nil
}

func (r *Registry) decodeClaim(id land.ID, v string) (*land.Claim, bool, error) {
	doc, err := migrate.Decode([]byte(v))
	if err != nil {
		return nil, false, fmt.Errorf("claim %d: %w", id, err)
	}
	ver, err := migrate.Version(doc)
	if err != nil {
		return nil, false, fmt.Errorf("claim %d: %w", id, err)
	}
	if ver > land.SchemaVersion {
		return nil, false, fmt.Errorf("%w: claim %d is v%d, supported v%d", ErrStoreTooNew, id, ver, land.SchemaVersion)
	}
	if err := r.claimMig.Migrate(doc, land.SchemaVersion); err != nil {
		return nil, false, fmt.Errorf("claim %d: %w", id, err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, false, err
	}
	c, err := land.Unmarshal(b)
	if err != nil {
		return nil, false, fmt.Errorf("claim %d: %w", id, err)
	}
	if c.ID() != id {
		return nil, false, fmt.Errorf("%w: key %d holds record for %d", ErrInvalidClaim, id, c.ID())
	}
	return c, ver < land.SchemaVersion, nil
}

// computeDepths stamps every claim with its distance from its root. Claims whose parent
// is missing are treated as roots.
func (r *Registry) computeDepths() {
	type item struct {
		c     *land.Claim
		depth int
	}
	var stack []item
	for _, c := range r.claims {
		if !c.HasParent() {
			stack = append(stack, item{c, 0})
			continue
		}
		if _, ok := r.claims[c.ParentID()]; !ok {
			r.log.Error("claim references missing parent",
				zap.Int64("claim", c.ID()), zap.Int64("parent", c.ParentID()))
			stack = append(stack, item{c, 0})
		}
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		it.c.SetCachedDepth(it.depth)
		for _, id := range it.c.Children() {
			ch, ok := r.claims[id]
			if !ok {
				r.log.Error("claim references missing child",
					zap.Int64("claim", it.c.ID()), zap.Int64("child", id))
				continue
			}
			if it.depth+1 > land.HardDepthCap {
				r.log.Error("hierarchy deeper than hard cap", zap.Int64("claim", id))
				continue
			}
			stack = append(stack, item{ch, it.depth + 1})
		}
	}
}

func claimKey(id land.ID) string { return strconv.FormatInt(id, 10) }

func (r *Registry) Limits() Limits { return r.limits }

// GetClaim returns a copy of the registered claim. Copies are detached: they are safe
// to read after the lock is released and changing them has no effect on the registry.
func (r *Registry) GetClaim(id land.ID) (*land.Claim, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.claims[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Lookup is GetClaim returning nil for a missing claim.
func (r *Registry) Lookup(id land.ID) *land.Claim {
	c, _ := r.GetClaim(id)
	return c
}

// GetClaims returns copies of every claim accepted by filter, ordered by id. A nil
// filter accepts everything. filter runs under the read lock and must not keep c.
func (r *Registry) GetClaims(filter func(c *land.Claim) bool) []*land.Claim {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*land.Claim
	for _, c := range r.claims {
		if filter == nil || filter(c) {
			out = append(out, c)
		}
	}
	sortByID(out)
	return cloneAll(out)
}

// GetClaimAt returns a copy of the deepest claim containing pos, or nil. Claims at
// equal depth resolve to the lowest id.
func (r *Registry) GetClaimAt(pos geom.Vec3i, dim int) *land.Claim {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c := r.claimAtLocked(pos, dim); c != nil {
		return c.Clone()
	}
	return nil
}

func (r *Registry) claimAtLocked(pos geom.Vec3i, dim int) *land.Claim {
	if !spatial.InDomain(pos.X, pos.Z) {
		return nil
	}
	var best *land.Claim
	for id := range r.index.QueryCell(dim, spatial.CellOf(pos.X, pos.Z)) {
		c, ok := r.claims[id]
		if !ok {
			r.log.Error("index references missing claim", zap.Int64("claim", id), zap.Int("dimension", dim))
			continue
		}
		if !c.AABB().Contains(pos, c.Is3D()) {
			continue
		}
		if best == nil || c.CachedDepth() > best.CachedDepth() ||
			(c.CachedDepth() == best.CachedDepth() && c.ID() < best.ID()) {
			best = c
		}
	}
	return best
}

// GetClaimsAt returns copies of every claim in dim colliding with box, ordered by id.
func (r *Registry) GetClaimsAt(box geom.AABB, dim int) []*land.Claim {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.claimsAtLocked(box, dim))
}

// maxRadius covers the whole coordinate domain.
const maxRadius = spatial.MaxCoord - spatial.MinCoord

// GetClaimsNear returns the claims colliding with the cube of radius radius around pos.
func (r *Registry) GetClaimsNear(pos geom.Vec3i, radius, dim int) []*land.Claim {
	if radius < 0 {
		radius = -radius
	}
	if radius < 0 || radius > maxRadius {
		radius = maxRadius
	}
	pos = geom.Vec3i{X: saturate(pos.X), Y: saturate(pos.Y), Z: saturate(pos.Z)}
	return r.GetClaimsAt(geom.Around(pos, radius), dim)
}

// saturate keeps a query center far enough from the int range that Around cannot
// overflow. No claim lies that far out.
func saturate(v int) int {
	const bound = 1 << 40
	switch {
	case v < -bound:
		return -bound
	case v > bound:
		return bound
	}
	return v
}

func (r *Registry) claimsAtLocked(box geom.AABB, dim int) []*land.Claim {
	box.Fix()
	var out []*land.Claim
	r.visitLocked(box, dim, func(c *land.Claim) {
		if c.AABB().Collides(box, c.Is3D()) {
			out = append(out, c)
		}
	})
	sortByID(out)
	return out
}

// visitLocked calls fn once for every claim in dim whose footprint shares a cell with
// box. A footprint spanning more cells than there are claims is answered by a scan, so
// the cost is bounded by the smaller of the two.
func (r *Registry) visitLocked(box geom.AABB, dim int, fn func(c *land.Claim)) {
	if spatial.CellCount(box) > int64(len(r.claims)) {
		for _, c := range r.claims {
			if c.Dimension() == dim && c.AABB().Collides(box, false) {
				fn(c)
			}
		}
		return
	}
	seen := map[land.ID]struct{}{}
	spatial.ForEachCell(box, func(cell spatial.CellID) bool {
		for id := range r.index.QueryCell(dim, cell) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			c, ok := r.claims[id]
			if !ok {
				r.log.Error("index references missing claim", zap.Int64("claim", id), zap.Int("dimension", dim))
				continue
			}
			fn(c)
		}
		return true
	})
}

func sortByID(cs []*land.Claim) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID() < cs[j].ID() })
}

func cloneAll(cs []*land.Claim) []*land.Claim {
	for i, c := range cs {
		cs[i] = c.Clone()
	}
	return cs
}

func (r *Registry) allocateID() land.ID { return r.nextID.Add(1) - 1 }

// overlaps reports whether two claims share space. A 2D claim covers every height, so
// Y only separates two 3D claims.
func overlaps(a geom.AABB, a3D bool, b geom.AABB, b3D bool) bool {
	return a.Collides(b, a3D && b3D)
}

// conflictLocked returns the first claim other than those in skip that overlaps bb.
func (r *Registry) conflictLocked(dim int, bb geom.AABB, is3D bool, skip ...land.ID) *land.Claim {
	var hits []*land.Claim
	r.visitLocked(bb, dim, func(c *land.Claim) {
		if !containsID(skip, c.ID()) && overlaps(c.AABB(), c.Is3D(), bb, is3D) {
			hits = append(hits, c)
		}
	})
	if len(hits) == 0 {
		return nil
	}
	sortByID(hits)
	return hits[0]
}

func containsID(ids []land.ID, id land.ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// AddOrdinaryClaim registers a new ordinary claim and returns its id. The record is
// written by the next flush or Save. c becomes the registry's instance: other
// goroutines read it through the query methods, which hand out copies.
func (r *Registry) AddOrdinaryClaim(c *land.Claim) (land.ID, error) {
	if c == nil || c.ID() != land.NoID {
		return land.NoID, ErrInvalidClaim
	}
	if c.Type() != land.Ordinary {
		return land.NoID, fmt.Errorf("%w: new claim is %s", ErrTypeMismatch, c.Type())
	}
	if err := r.limits.CheckRange(c.AABB()); err != nil {
		return land.NoID, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return land.NoID, ErrClosed
	}
	if other := r.conflictLocked(c.Dimension(), c.AABB(), c.Is3D()); other != nil {
		return land.NoID, fmt.Errorf("%w: overlaps claim %d", ErrRangeIllegal, other.ID())
	}
	if len(c.Permissions()) == 0 {
		c.SetPermissions(r.template)
	}
	id := r.allocateID()
	c.SetID(id)
	c.SetCachedDepth(0)
	r.claims[id] = c
	r.index.Add(c)
	r.auditLocked(AuditAdd, []int64{id}, "")
	return id, nil
}

// RemoveOrdinaryClaim deletes an ordinary claim from memory and the store. When the
// store delete fails the claim is put back.
func (r *Registry) RemoveOrdinaryClaim(id land.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	c, ok := r.claims[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if c.Type() != land.Ordinary {
		return fmt.Errorf("%w: claim %d is %s", ErrTypeMismatch, id, c.Type())
	}
	delete(r.claims, id)
	r.index.Remove(c)
	if err := r.store.Delete(claimKey(id)); err != nil {
		r.claims[id] = c
		r.index.Add(c)
		return fmt.Errorf("%w: delete %d: %v", ErrStoreFailure, id, err)
	}
	r.auditLocked(AuditRemove, []int64{id}, "")
	return nil
}

// Update runs fn on a registered claim under the write lock. fn may change any
// non-structural attribute; a geometry change is validated and re-indexed. When fn
// fails, or the change is illegal, the claim is restored.
func (r *Registry) Update(id land.ID, fn func(c *land.Claim) error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	c, ok := r.claims[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	snap := c.Snapshot()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("registry: update %d panicked: %v", id, p)
		}
		if err != nil {
			c.Restore(snap)
		}
	}()
	if err := fn(c); err != nil {
		return err
	}
	if c.ID() != snap.ID() || c.ParentID() != snap.ParentID() || !snap.SameChildren(c) {
		return fmt.Errorf("%w: structural change outside a transaction", ErrInvalidClaim)
	}
	if c.AABB() != snap.AABB() || c.Is3D() != snap.Is3D() {
		if err := r.limits.CheckRange(c.AABB()); err != nil {
			return err
		}
		if other := r.conflictLocked(c.Dimension(), c.AABB(), c.Is3D(), id); other != nil {
			return fmt.Errorf("%w: overlaps claim %d", ErrRangeIllegal, other.ID())
		}
		r.index.Refresh(c)
	}
	r.auditLocked(AuditUpdate, []int64{id}, "")
	return nil
}

// ResizeClaim replaces the geometry of an ordinary claim.
func (r *Registry) ResizeClaim(id land.ID, bb geom.AABB) error {
	return r.Update(id, func(c *land.Claim) error {
		if err := c.SetAABB(bb); err != nil {
			return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
		return nil
	})
}

// RefreshClaimRange re-indexes a claim after its geometry changed.
func (r *Registry) RefreshClaimRange(id land.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	r.index.Refresh(c)
	return nil
}

// MigrateLegacyOwner assigns identity p to every claim still owned by the legacy
// identity and returns how many changed.
func (r *Registry) MigrateLegacyOwner(legacy string, p uuid.UUID) (int, error) {
	if legacy == "" || p == uuid.Nil {
		return 0, fmt.Errorf("registry: legacy owner and identity required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id, c := range r.claims {
		if c.LegacyOwner() == legacy && c.MigrateOwnerIdentity(p) {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		r.auditLocked(AuditUpdate, ids, "legacy owner "+legacy)
	}
	return len(ids), nil
}

// Save writes one claim if it is dirty.
func (r *Registry) Save(id land.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if !c.IsDirty() {
		return nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := r.store.Put(claimKey(id), string(b)); err != nil {
		return fmt.Errorf("%w: put %d: %v", ErrStoreFailure, id, err)
	}
	c.MarkPersisted()
	return nil
}

// Flush writes every dirty claim in one batch and returns how many were written.
func (r *Registry) Flush() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Registry) flushLocked() (int, error) {
	batch := kvstore.NewBatch()
	var dirty []*land.Claim
	for id, c := range r.claims {
		if !c.IsDirty() {
			continue
		}
		b, err := json.Marshal(c)
		if err != nil {
			return 0, fmt.Errorf("registry: encode %d: %w", id, err)
		}
		batch.Put(claimKey(id), string(b))
		dirty = append(dirty, c)
	}
	if len(dirty) == 0 {
		return 0, nil
	}
	if err := r.store.Apply(batch); err != nil {
		return 0, fmt.Errorf("%w: flush: %v", ErrStoreFailure, err)
	}
	sortByID(dirty)
	ids := make([]int64, len(dirty))
	for i, c := range dirty {
		c.MarkPersisted()
		ids[i] = c.ID()
	}
	r.auditLocked(AuditFlush, ids, "")
	return len(dirty), nil
}

func (r *Registry) flushLoop(every time.Duration) {
	defer r.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			n, err := r.Flush()
			if err != nil {
				r.log.Warn("periodic flush failed", zap.Error(err))
				continue
			}
			if n > 0 {
				r.log.Debug("periodic flush", zap.Int("claims", n))
			}
		}
	}
}

// Close stops the flush loop, writes every dirty claim and rejects further
// mutations. The store itself is left open.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		close(r.stop)
		r.wg.Wait()

		r.mu.Lock()
		defer r.mu.Unlock()
		n, err := r.flushLocked()
		r.closed = true
		r.closeErr = err
		r.log.Info("registry closed", zap.Int("flushed", n), zap.Error(err))
	})
	return r.closeErr
}

type Stats struct {
	Claims     int   `json:"claims"`
	Dirty      int   `json:"dirty"`
	Dimensions int   `json:"dimensions"`
	Operators  int   `json:"operators"`
	NextID     int64 `json:"next_id"`
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{
		Claims:     len(r.claims),
		Dimensions: len(r.index.Dimensions()),
		Operators:  len(r.operators),
		NextID:     r.nextID.Load(),
	}
	for _, c := range r.claims {
		if c.IsDirty() {
			s.Dirty++
		}
	}
	return s
}
