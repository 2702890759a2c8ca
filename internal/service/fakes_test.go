package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/resource-api/internal/model"
	"github.com/iliyamo/resource-api/internal/queue"
	"github.com/iliyamo/resource-api/internal/repository"
	"github.com/iliyamo/resource-api/internal/schema"
)

// memStore is an in-memory ResourceStore enforcing unique fields.
type memStore struct {
	mu     sync.Mutex
	schema *schema.Schema
	rows   map[int64]schema.Record
	next   int64
	writes int
	err    error // returned by every call when set
}

func newMemStore(s *schema.Schema) *memStore {
	return &memStore{schema: s, rows: map[int64]schema.Record{}, next: 1}
}

func (m *memStore) copyRow(r schema.Record) schema.Record { return r.Without() }

func (m *memStore) List(_ context.Context, p repository.ListParams) ([]schema.Record, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	var match []schema.Record
	for _, r := range m.rows {
		ok := true
		for _, f := range p.Filters {
			if !strings.Contains(toString(r[f.Field]), f.Value) {
				ok = false
			}
		}
		if ok {
			match = append(match, m.copyRow(r))
		}
	}
	sort.Slice(match, func(i, j int) bool {
		a, b := toString(match[i][p.Sort]), toString(match[j][p.Sort])
		if a == b {
			return match[i]["id"].(int64) < match[j]["id"].(int64)
		}
		if p.Desc {
			return a > b
		}
		return a < b
	})
	total := int64(len(match))
	if p.Offset >= len(match) {
		return []schema.Record{}, total, nil
	}
	end := p.Offset + p.Limit
	if end > len(match) {
		end = len(match)
	}
	return match[p.Offset:end], total, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return fmt.Sprintf("%020d", t)
	}
	return fmt.Sprint(v)
}

func (m *memStore) Get(_ context.Context, id int64) (schema.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.copyRow(r), nil
}

func (m *memStore) FindBy(_ context.Context, field string, value any) (schema.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for id := int64(1); id < m.next; id++ {
		if r, ok := m.rows[id]; ok && r[field] == value {
			return m.copyRow(r), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) unique(id int64, values schema.Record) error {
	for _, f := range m.schema.Fields() {
		v, ok := values[f.Name]
		if !f.Unique || !ok || v == nil {
			continue
		}
		for rid, r := range m.rows {
			if rid != id && r[f.Name] == v {
				return &repository.DuplicateError{Fields: []string{f.Name}}
			}
		}
	}
	return nil
}

func (m *memStore) Insert(_ context.Context, values schema.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if err := m.unique(0, values); err != nil {
		return 0, err
	}
	id := m.next
	m.next++
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	row := schema.Record{"id": id, "created_at": now, "updated_at": now}
	for _, f := range m.schema.Fields() {
		row[f.Name] = values[f.Name]
	}
	m.rows[id] = row
	m.writes++
	return id, nil
}

func (m *memStore) Update(_ context.Context, id int64, changes schema.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	r, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := m.unique(id, changes); err != nil {
		return err
	}
	for k, v := range changes {
		r[k] = v
	}
	m.writes++
	return nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	m.writes++
	return nil
}

// memSessions is an in-memory SessionStore with the same conditional
// update semantics as the SQL one.
type memSessions struct {
	mu        sync.Mutex
	rows      map[string]*model.Session
	next      uint64
	createErr error
	touchErr  error
	touches   int
}

func newMemSessions() *memSessions { return &memSessions{rows: map[string]*model.Session{}, next: 1} }

func (m *memSessions) Create(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	s.ID = m.next
	m.next++
	s.Status = model.SessionActive
	cp := *s
	m.rows[s.Token] = &cp
	return nil
}

func (m *memSessions) GetByToken(_ context.Context, token string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) Touch(_ context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.touchErr != nil {
		return m.touchErr
	}
	s, ok := m.rows[token]
	if !ok || s.Status != model.SessionActive {
		return repository.ErrSessionNotActive
	}
	s.LastCheckAt = &at
	m.touches++
	return nil
}

func (m *memSessions) Deactivate(_ context.Context, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[token]
	if !ok || s.Status != model.SessionActive {
		return repository.ErrSessionNotActive
	}
	s.Status = model.SessionInactive
	s.LogoutAt = &at
	return nil
}

func (m *memSessions) ListByUser(_ context.Context, userID uint64, limit int) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Session
	for _, s := range m.rows {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memCache is an in-memory SessionCache with SetNX fill semantics.
type memCache struct {
	mu      sync.Mutex
	entries map[string]model.Session
	gets    int
}

func newMemCache() *memCache { return &memCache{entries: map[string]model.Session{}} }

func (c *memCache) Get(_ context.Context, token string) (*model.Session, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	s, ok := c.entries[token]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (c *memCache) Fill(_ context.Context, s *model.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[s.Token]; !ok {
		c.entries[s.Token] = *s
	}
	return nil
}

func (c *memCache) Revoke(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = model.Session{Status: model.SessionInactive}
	return nil
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []queue.AuditEvent
}

func (r *recorder) Publish(_ context.Context, ev queue.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
