package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryDocuments is an in-process document store with the same semantics as
// PostgresDocuments. It backs local development and tests.
type MemoryDocuments struct {
	mu   sync.Mutex
	data map[string]map[string][]byte
}

// NewMemoryDocuments creates an empty in-memory document store
func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{data: make(map[string]map[string][]byte)}
}

// Get retrieves a document by collection and id
func (m *MemoryDocuments) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.data[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return Document{ID: id, Data: bytes.Clone(raw)}, nil
}

// Query retrieves documents matching all filters
func (m *MemoryDocuments) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type row struct {
		doc Document
		obj map[string]any
	}

	var rows []row
	for id, raw := range m.data[collection] {
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
		}
		match := true
		for _, f := range q.Filters {
			value, ok := textAt(obj, fieldPath(f.Field))
			if !ok {
				match = false
				break
			}
			switch f.Op {
			case OpEqual:
				match = value == f.Value
			case OpAtLeast:
				match = value >= f.Value
			case OpAtMost:
				match = value <= f.Value
			default:
				return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
			}
			if !match {
				break
			}
		}
		if match {
			rows = append(rows, row{doc: Document{ID: id, Data: bytes.Clone(raw)}, obj: obj})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if q.OrderBy == "" {
			return rows[i].doc.ID < rows[j].doc.ID
		}
		a, _ := textAt(rows[i].obj, fieldPath(q.OrderBy))
		b, _ := textAt(rows[j].obj, fieldPath(q.OrderBy))
		if q.Descending {
			return a > b
		}
		return a < b
	})

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.doc)
	}
	return docs, nil
}

// Create stores a new document under a generated id
func (m *MemoryDocuments) Create(ctx context.Context, collection string, data any) (string, error) {
	id := uuid.NewString()
	if err := m.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Set writes a whole document under a known id
func (m *MemoryDocuments) Set(ctx context.Context, collection, id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data[collection] == nil {
		m.data[collection] = make(map[string][]byte)
	}
	m.data[collection][id] = payload
	return nil
}

// Update applies all field updates to one document atomically
func (m *MemoryDocuments) Update(ctx context.Context, collection, id string, updates ...FieldUpdate) error {
	if len(updates) == 0 {
		return fmt.Errorf("no field updates for %s/%s", collection, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.data[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", id, err)
	}

	for _, u := range updates {
		if err := applyUpdate(obj, u); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	m.data[collection][id] = payload
	return nil
}

func applyUpdate(obj map[string]any, u FieldUpdate) error {
	path := fieldPath(u.Path)
	parent := obj
	for _, key := range path[:len(path)-1] {
		next, ok := parent[key].(map[string]any)
		if !ok {
			next = make(map[string]any)
			parent[key] = next
		}
		parent = next
	}
	leaf := path[len(path)-1]

	switch u.op {
	case opSet:
		value, err := normalize(u.value)
		if err != nil {
			return fmt.Errorf("failed to encode field %s: %w", u.Path, err)
		}
		parent[leaf] = value
	case opIncrement:
		current, _ := parent[leaf].(float64)
		parent[leaf] = current + float64(u.delta)
	case opArrayUnion, opArrayRemove:
		current, _ := parent[leaf].([]any)
		values, err := normalize(u.values)
		if err != nil {
			return fmt.Errorf("failed to encode field %s: %w", u.Path, err)
		}
		if u.op == opArrayUnion {
			parent[leaf] = union(current, values.([]any))
		} else {
			parent[leaf] = remove(current, values.([]any))
		}
	}
	return nil
}

// normalize round-trips v through JSON so it compares like stored values
func normalize(v any) (any, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	if out == nil {
		if _, isSlice := v.([]any); isSlice {
			return []any{}, nil
		}
	}
	return out, nil
}

func union(current, values []any) []any {
	out := make([]any, 0, len(current)+len(values))
	out = append(out, current...)
	for _, v := range values {
		if !containsJSON(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func remove(current, values []any) []any {
	out := make([]any, 0, len(current))
	for _, v := range current {
		if !containsJSON(values, v) {
			out = append(out, v)
		}
	}
	return out
}

func containsJSON(list []any, v any) bool {
	want, _ := json.Marshal(v)
	for _, item := range list {
		got, _ := json.Marshal(item)
		if bytes.Equal(got, want) {
			return true
		}
	}
	return false
}

// textAt reads a field as text the way Postgres' #>> operator does
func textAt(obj map[string]any, path []string) (string, bool) {
	var cur any = obj
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = m[key]
		if !ok {
			return "", false
		}
	}
	switch v := cur.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		payload, _ := json.Marshal(v)
		return strings.TrimSpace(string(payload)), true
	}
}
