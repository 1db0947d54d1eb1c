package kvstore

import (
	"errors"
	"sort"
)

var ErrClosed = errors.New("kvstore: closed")

// Store is an ordered string key/value store.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Put(key, value string) error
	Delete(key string) error
	// Apply writes every put and delete of the batch atomically.
	Apply(b *Batch) error
	// Scan visits entries in key order until fn returns an error.
	Scan(fn func(key, value string) error) error
	Close() error
}

// Batch collects writes for Apply. A later write to the same key wins.
type Batch struct {
	ops map[string]*string
}

func NewBatch() *Batch {
	return &Batch{ops: map[string]*string{}}
}

func (b *Batch) Put(key, value string) {
	v := value
	b.ops[key] = &v
}

func (b *Batch) Delete(key string) {
	b.ops[key] = nil
}

func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.ops)
}

// Each visits operations in key order; value is nil for deletes.
func (b *Batch) Each(fn func(key string, value *string) error) error {
	if b == nil {
		return nil
	}
	keys := make([]string, 0, len(b.ops))
	for k := range b.ops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, b.ops[k]); err != nil {
			return err
		}
	}
	return nil
}
