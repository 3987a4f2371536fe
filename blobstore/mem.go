package blobstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Mem is an in-memory Store for tests.
type Mem struct {
	mu      sync.Mutex
	objects map[string]Object
	// FailPut, when set, makes every Put return the given error — used to
	// exercise degraded-object-storage paths.
	FailPut error
}

// NewMem creates an empty in-memory store.
func NewMem() *Mem {
	return &Mem{objects: make(map[string]Object)}
}

func (m *Mem) Put(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPut != nil {
		return m.FailPut
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[key] = Object{Data: cp, ContentType: contentType}
	return nil
}

func (m *Mem) Get(_ context.Context, key string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{Data: obj.Data, ContentType: obj.ContentType}, nil
}

func (m *Mem) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Mem) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Len returns the number of stored objects.
func (m *Mem) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
