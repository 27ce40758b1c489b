package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used in tests and offline tooling.
// A transaction holds the store lock for its whole body, so reads are
// trivially snapshot-consistent and commits all-or-nothing.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // collection -> id -> json
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[string][]byte{}}
}

func (m *MemoryStore) Get(_ context.Context, collection, id string, out any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.get(collection, id, out)
}

func (m *MemoryStore) get(collection, id string, out any) error {
	col, ok := m.data[collection]
	if !ok {
		return ErrNotFound
	}
	buf, ok := col[id]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(buf, out)
}

func (m *MemoryStore) List(_ context.Context, collection string) ([]Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list(collection), nil
}

func (m *MemoryStore) list(collection string) []Doc {
	col := m.data[collection]
	ids := make([]string, 0, len(col))
	for id := range col {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Doc, 0, len(ids))
	for _, id := range ids {
		out = append(out, Doc{Collection: collection, ID: id, Data: json.RawMessage(col[id])})
	}
	return out
}

func (m *MemoryStore) RunTransaction(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &memTx{store: m, staged: map[string]map[string]*[]byte{}}
	if err := fn(t); err != nil {
		return err // nothing staged is applied
	}
	for collection, docs := range t.staged {
		col := m.data[collection]
		if col == nil {
			col = map[string][]byte{}
			m.data[collection] = col
		}
		for id, buf := range docs {
			if buf == nil {
				delete(col, id)
			} else {
				col[id] = *buf
			}
		}
	}
	return nil
}

func (m *MemoryStore) RunBatch(ctx context.Context, writes []Write) error {
	return runBatch(ctx, m, writes)
}

type memTx struct {
	store  *MemoryStore
	staged map[string]map[string]*[]byte // nil value = delete
}

func (t *memTx) Get(_ context.Context, collection, id string, out any) error {
	if col, ok := t.staged[collection]; ok {
		if buf, ok := col[id]; ok {
			if buf == nil {
				return ErrNotFound
			}
			return json.Unmarshal(*buf, out)
		}
	}
	return t.store.get(collection, id, out)
}

func (t *memTx) List(_ context.Context, collection string) ([]Doc, error) {
	seen := map[string]json.RawMessage{}
	for _, d := range t.store.list(collection) {
		seen[d.ID] = d.Data
	}
	for id, buf := range t.staged[collection] {
		if buf == nil {
			delete(seen, id)
		} else {
			seen[id] = json.RawMessage(*buf)
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Doc, 0, len(ids))
	for _, id := range ids {
		out = append(out, Doc{Collection: collection, ID: id, Data: seen[id]})
	}
	return out, nil
}

func (t *memTx) Set(collection, id string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.stage(collection, id, &buf)
	return nil
}

func (t *memTx) Delete(collection, id string) error {
	t.stage(collection, id, nil)
	return nil
}

func (t *memTx) stage(collection, id string, buf *[]byte) {
	col := t.staged[collection]
	if col == nil {
		col = map[string]*[]byte{}
		t.staged[collection] = col
	}
	col[id] = buf
}
