package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Moadams/ProjectTracker/internal/ids"
	"github.com/Moadams/ProjectTracker/internal/obs"
)

// RoleCache resolves roles by name, creating them on first use. Each role has
// its own slot: a populated slot is read without locking, an empty one is
// filled under the slot mutex so concurrent callers never create duplicates.
type RoleCache struct {
	store Store
	now   func() time.Time
	slots map[RoleName]*roleSlot // fixed at construction
}

type roleSlot struct {
	mu   sync.Mutex
	role atomic.Pointer[Role]
}

// NewRoleCache builds a cache with one slot per builtin role.
func NewRoleCache(store Store) *RoleCache {
	c := &RoleCache{
		store: store,
		now:   time.Now,
		slots: make(map[RoleName]*roleSlot, len(BuiltinRoles)),
	}
	for _, name := range BuiltinRoles {
		c.slots[name] = &roleSlot{}
	}
	return c
}

// GetOrCreate returns the role named name. Store failures surface as
// ErrRoleCreation and leave the slot empty so a later call retries.
// Passing a name outside the builtin set panics.
func (c *RoleCache) GetOrCreate(ctx context.Context, name RoleName) (Role, error) {
	slot, ok := c.slots[name]
	if !ok {
		panic(fmt.Sprintf("auth: unknown role %q", name))
	}
	if r := slot.role.Load(); r != nil {
		return *r, nil
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	if r := slot.role.Load(); r != nil {
		return *r, nil
	}

	role, err := c.resolve(ctx, name)
	if err != nil {
		return Role{}, err
	}
	slot.role.Store(role)
	return *role, nil
}

func (c *RoleCache) resolve(ctx context.Context, name RoleName) (*Role, error) {
	roles := c.store.Roles(ctx)
	role, err := roles.FindByName(ctx, name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: lookup %s: %v", ErrRoleCreation, name, err)
	}

	role = &Role{ID: ids.New(), Name: name, CreatedAt: c.now().UTC()}
	if err := roles.Create(ctx, role); err != nil {
		if !errors.Is(err, ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: create %s: %v", ErrRoleCreation, name, err)
		}
		// Another process won the insert.
		existing, ferr := roles.FindByName(ctx, name)
		if ferr != nil {
			return nil, fmt.Errorf("%w: reload %s: %v", ErrRoleCreation, name, ferr)
		}
		return existing, nil
	}
	obs.ObserveRoleCreation(string(name))
	return role, nil
}

// Warm resolves every builtin role. Used by the seed command.
func (c *RoleCache) Warm(ctx context.Context) error {
	for _, name := range BuiltinRoles {
		if _, err := c.GetOrCreate(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
