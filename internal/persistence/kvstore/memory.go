package kvstore

import (
	"errors"
	"sort"
	"sync"
)

var ErrInjected = errors.New("kvstore: injected failure")

// Memory is an in-process Store. FailWrites makes every following write fail, which
// tests use to exercise rollback paths.
type Memory struct {
	mu     sync.Mutex
	data   map[string]string
	fail   bool
	closed bool
}

func NewMemory() *Memory {
	return &Memory{data: map[string]string{}}
}

func (m *Memory) FailWrites(v bool) {
	m.mu.Lock()
	m.fail = v
	m.mu.Unlock()
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *Memory) writable() error {
	if m.closed {
		return ErrClosed
	}
	if m.fail {
		return ErrInjected
	}
	return nil
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return err
	}
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return err
	}
	delete(m.data, key)
	return nil
}

func (m *Memory) Apply(b *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable(); err != nil {
		return err
	}
	return b.Each(func(key string, value *string) error {
		if value == nil {
			delete(m.data, key)
		} else {
			m.data[key] = *value
		}
		return nil
	})
}

func (m *Memory) Scan(fn func(key, value string) error) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = m.data[k]
	}
	m.mu.Unlock()

	for i, k := range keys {
		if err := fn(k, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
