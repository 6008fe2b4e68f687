package repositories

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memTable struct {
	order []string
	rows  map[string]bson.Raw
}

// MemoryStore is a process-local Store used in development mode and tests.
// Records are kept BSON-encoded so they round-trip exactly like the Mongo backend.
type MemoryStore struct {
	mu       sync.RWMutex
	tables   map[string]*memTable
	indexes  map[string]map[string]IndexDef
	registry *bsoncodec.Registry
	logger   *zap.Logger
}

// NewMemoryStore creates an empty store provisioned with the given secondary indexes.
func NewMemoryStore(logger *zap.Logger, indexes map[string][]IndexDef) *MemoryStore {
	idx := make(map[string]map[string]IndexDef, len(indexes))
	for table, defs := range indexes {
		idx[table] = make(map[string]IndexDef, len(defs))
		for _, d := range defs {
			idx[table][d.Name] = d
		}
	}
	return &MemoryStore{
		tables:   make(map[string]*memTable),
		indexes:  idx,
		registry: NewRegistry(),
		logger:   logger,
	}
}

func (s *MemoryStore) table(name string) *memTable {
	t, ok := s.tables[name]
	if !ok {
		t = &memTable{rows: make(map[string]bson.Raw)}
		s.tables[name] = t
	}
	return t
}

func (s *MemoryStore) Put(_ context.Context, table string, key Key, record interface{}) error {
	raw, err := bson.MarshalWithRegistry(s.registry, record)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", table, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	k := key.String()
	if _, exists := t.rows[k]; !exists {
		t.order = append(t.order, k)
	}
	t.rows[k] = raw
	return nil
}

func (s *MemoryStore) Get(_ context.Context, table string, key Key, out interface{}) (bool, error) {
	s.mu.RLock()
	var (
		raw bson.Raw
		ok  bool
	)
	if t, exists := s.tables[table]; exists {
		raw, ok = t.rows[key.String()]
	}
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := bson.UnmarshalWithRegistry(s.registry, raw, out); err != nil {
		return false, fmt.Errorf("decode %s record: %w", table, err)
	}
	return true, nil
}

func (s *MemoryStore) QueryByIndex(_ context.Context, table string, q IndexQuery, out interface{}) error {
	s.mu.RLock()
	_, indexed := s.indexes[table][q.Index]
	rows, err := s.filter(table, q.Conditions)
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	if !indexed {
		s.logger.Warn("Index not found, falling back to scan",
			zap.String("table", table),
			zap.String("index", q.Index))
	}

	if q.SortKey != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			c, _ := compareValues(rows[i].doc[q.SortKey], rows[j].doc[q.SortKey])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && int64(len(rows)) > q.Limit {
		rows = rows[:q.Limit]
	}

	raws := make([]bson.Raw, len(rows))
	for i, r := range rows {
		raws[i] = r.raw
	}
	return s.decodeSlice(raws, out)
}

func (s *MemoryStore) Update(_ context.Context, table string, key Key, upd Update) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	k := key.String()
	raw, ok := t.rows[k]
	if !ok {
		return false, nil
	}

	doc := bson.M{}
	if err := bson.UnmarshalWithRegistry(s.registry, raw, &doc); err != nil {
		return false, fmt.Errorf("decode %s record: %w", table, err)
	}
	if !matches(doc, upd.Conditions) {
		return false, nil
	}

	for field, v := range upd.Set {
		doc[field] = v
	}
	for field, delta := range upd.Inc {
		current, _ := toFloat(doc[field])
		doc[field] = int64(current) + delta
	}

	updated, err := bson.MarshalWithRegistry(s.registry, doc)
	if err != nil {
		return false, fmt.Errorf("encode %s record: %w", table, err)
	}
	t.rows[k] = updated
	return true, nil
}

func (s *MemoryStore) Scan(_ context.Context, table string, limit int64, out interface{}) error {
	s.mu.RLock()
	raws := make([]bson.Raw, 0)
	t, ok := s.tables[table]
	if !ok {
		t = &memTable{}
	}
	for _, k := range t.order {
		if limit > 0 && int64(len(raws)) >= limit {
			break
		}
		raws = append(raws, t.rows[k])
	}
	s.mu.RUnlock()

	return s.decodeSlice(raws, out)
}

type memRow struct {
	raw bson.Raw
	doc bson.M
}

func (s *MemoryStore) filter(table string, conds []Condition) ([]memRow, error) {
	rows := make([]memRow, 0)
	t, ok := s.tables[table]
	if !ok {
		return rows, nil
	}
	for _, k := range t.order {
		raw := t.rows[k]
		doc := bson.M{}
		if err := bson.UnmarshalWithRegistry(s.registry, raw, &doc); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", table, err)
		}
		if matches(doc, conds) {
			rows = append(rows, memRow{raw: raw, doc: doc})
		}
	}
	return rows, nil
}

func (s *MemoryStore) decodeSlice(raws []bson.Raw, out interface{}) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("out must be a pointer to a slice, got %T", out)
	}
	sliceType := rv.Elem().Type()
	result := reflect.MakeSlice(sliceType, 0, len(raws))
	for _, raw := range raws {
		elem := reflect.New(sliceType.Elem())
		if err := bson.UnmarshalWithRegistry(s.registry, raw, elem.Interface()); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		result = reflect.Append(result, elem.Elem())
	}
	rv.Elem().Set(result)
	return nil
}

func matches(doc bson.M, conds []Condition) bool {
	for _, c := range conds {
		v, ok := doc[c.Field]
		if !ok {
			return false
		}
		switch c.Op {
		case OpEq:
			if cmp, ok := compareValues(v, c.Value); !ok || cmp != 0 {
				return false
			}
		case OpGte:
			if cmp, ok := compareValues(v, c.Value); !ok || cmp < 0 {
				return false
			}
		case OpLt:
			if cmp, ok := compareValues(v, c.Value); !ok || cmp >= 0 {
				return false
			}
		case OpLte:
			if cmp, ok := compareValues(v, c.Value); !ok || cmp > 0 {
				return false
			}
		case OpIn:
			values, _ := c.Value.([]interface{})
			found := false
			for _, candidate := range values {
				if cmp, ok := compareValues(v, candidate); ok && cmp == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues orders two scalar values of compatible kinds. The second result is
// false when the kinds cannot be compared.
func compareValues(a, b interface{}) (int, bool) {
	a, b = normalize(a), normalize(b)
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok || av != bv {
			return 1, ok
		}
		return 0, true
	}
	return 0, false
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case primitive.DateTime:
		return t.Time()
	case time.Time:
		return t.Truncate(time.Millisecond)
	case string, bool:
		return t
	}
	if f, ok := toFloat(v); ok {
		return f
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return v
}

func toFloat(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
