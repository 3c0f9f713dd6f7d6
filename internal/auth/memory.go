package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Moadams/ProjectTracker/internal/ids"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store in process. It backs local runs without a DSN.
type MemoryStore struct {
	mu         sync.RWMutex
	principals map[string]*Principal // id -> principal
	byEmail    map[string]string     // email -> id
	roles      map[RoleName]*Role
	profiles   map[string]*Profile // email -> profile
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		principals: make(map[string]*Principal),
		byEmail:    make(map[string]string),
		roles:      make(map[RoleName]*Role),
		profiles:   make(map[string]*Profile),
	}
}

func (s *MemoryStore) Principals(context.Context) PrincipalStore { return memPrincipals{s} }
func (s *MemoryStore) Roles(context.Context) RoleStore           { return memRoles{s} }
func (s *MemoryStore) Profiles(context.Context) ProfileStore     { return memProfiles{s} }

type memPrincipals struct{ s *MemoryStore }

func (m memPrincipals) Create(_ context.Context, p *Principal) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	email := normalizeEmail(p.Email)
	if _, ok := m.s.byEmail[email]; ok {
		return ErrAlreadyExists
	}
	if p.ID == "" {
		p.ID = ids.New()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	cp := clonePrincipal(p)
	cp.Email = email
	m.s.principals[cp.ID] = cp
	m.s.byEmail[email] = cp.ID
	return nil
}

func (m memPrincipals) Find(_ context.Context, id string) (*Principal, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	p, ok := m.s.principals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePrincipal(p), nil
}

func (m memPrincipals) FindByEmail(_ context.Context, email string) (*Principal, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	id, ok := m.s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePrincipal(m.s.principals[id]), nil
}

func (m memPrincipals) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	_, ok := m.s.byEmail[normalizeEmail(email)]
	return ok, nil
}

func (m memPrincipals) Touch(_ context.Context, id string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.principals[id]
	if !ok {
		return ErrNotFound
	}
	p.UpdatedAt = at
	return nil
}

type memRoles struct{ s *MemoryStore }

func (m memRoles) FindByName(_ context.Context, name RoleName) (*Role, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	r, ok := m.s.roles[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m memRoles) Create(_ context.Context, role *Role) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.roles[role.Name]; ok {
		return ErrAlreadyExists
	}
	if role.ID == "" {
		role.ID = ids.New()
	}
	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now().UTC()
	}
	cp := *role
	m.s.roles[role.Name] = &cp
	return nil
}

type memProfiles struct{ s *MemoryStore }

func (m memProfiles) FindByEmail(_ context.Context, email string) (*Profile, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	p, ok := m.s.profiles[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m memProfiles) Create(_ context.Context, p *Profile) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	email := normalizeEmail(p.Email)
	if _, ok := m.s.profiles[email]; ok {
		return ErrAlreadyExists
	}
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	cp.Email = email
	m.s.profiles[email] = &cp
	return nil
}

func clonePrincipal(p *Principal) *Principal {
	cp := *p
	cp.Roles = append([]RoleName(nil), p.Roles...)
	return &cp
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
