package spatial

// Set is the bucket type of BiIndex. Callers must not modify sets returned by it.
type Set[T comparable] map[T]struct{}

func (s Set[T]) Has(v T) bool {
	_, ok := s[v]
	return ok
}

// BiIndex is a many-to-many relation kept in both directions. Buckets are dropped as
// soon as they become empty, so HasKey(k) is equivalent to a non-empty Forward(k).
type BiIndex[K comparable, V comparable] struct {
	fwd map[K]Set[V]
	rev map[V]Set[K]
}

func NewBiIndex[K comparable, V comparable]() *BiIndex[K, V] {
	return &BiIndex[K, V]{
		fwd: make(map[K]Set[V]),
		rev: make(map[V]Set[K]),
	}
}

func (b *BiIndex[K, V]) Insert(k K, v V) {
	fs := b.fwd[k]
	if fs == nil {
		fs = make(Set[V])
		b.fwd[k] = fs
	}
	fs[v] = struct{}{}

	rs := b.rev[v]
	if rs == nil {
		rs = make(Set[K])
		b.rev[v] = rs
	}
	rs[k] = struct{}{}
}

// ErasePair removes the (k,v) pair from both views. Missing pairs are ignored.
func (b *BiIndex[K, V]) ErasePair(k K, v V) {
	if fs, ok := b.fwd[k]; ok {
		delete(fs, v)
		if len(fs) == 0 {
			delete(b.fwd, k)
		}
	}
	if rs, ok := b.rev[v]; ok {
		delete(rs, k)
		if len(rs) == 0 {
			delete(b.rev, v)
		}
	}
}

// EraseValue removes every pair that references v.
func (b *BiIndex[K, V]) EraseValue(v V) {
	rs, ok := b.rev[v]
	if !ok {
		return
	}
	for k := range rs {
		if fs, ok := b.fwd[k]; ok {
			delete(fs, v)
			if len(fs) == 0 {
				delete(b.fwd, k)
			}
		}
	}
	delete(b.rev, v)
}

func (b *BiIndex[K, V]) Contains(k K, v V) bool {
	fs, ok := b.fwd[k]
	if !ok {
		return false
	}
	return fs.Has(v)
}

// Forward returns the values related to k, or nil.
func (b *BiIndex[K, V]) Forward(k K) Set[V] { return b.fwd[k] }

// Reverse returns the keys related to v, or nil.
func (b *BiIndex[K, V]) Reverse(v V) Set[K] { return b.rev[v] }

func (b *BiIndex[K, V]) HasKey(k K) bool {
	_, ok := b.fwd[k]
	return ok
}

func (b *BiIndex[K, V]) HasValue(v V) bool {
	_, ok := b.rev[v]
	return ok
}

func (b *BiIndex[K, V]) Keys() int   { return len(b.fwd) }
func (b *BiIndex[K, V]) Values() int { return len(b.rev) }
