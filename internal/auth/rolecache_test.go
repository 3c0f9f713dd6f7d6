package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore wraps MemoryStore and counts role store traffic.
type countingStore struct {
	*MemoryStore
	creates   atomic.Int32
	lookups   atomic.Int32
	createErr error
	delay     time.Duration
}

func (s *countingStore) Roles(ctx context.Context) RoleStore {
	return countingRoles{s: s, inner: s.MemoryStore.Roles(ctx)}
}

type countingRoles struct {
	s     *countingStore
	inner RoleStore
}

func (r countingRoles) FindByName(ctx context.Context, name RoleName) (*Role, error) {
	r.s.lookups.Add(1)
	if r.s.delay > 0 {
		time.Sleep(r.s.delay)
	}
	return r.inner.FindByName(ctx, name)
}

func (r countingRoles) Create(ctx context.Context, role *Role) error {
	r.s.creates.Add(1)
	if r.s.createErr != nil {
		return r.s.createErr
	}
	return r.inner.Create(ctx, role)
}

func TestRoleCacheConcurrentGetOrCreate(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore(), delay: 5 * time.Millisecond}
	cache := NewRoleCache(store)

	const n = 64
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		got   = make([]Role, n)
		errs  = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			got[i], errs[i] = cache.GetOrCreate(context.Background(), RoleDeveloper)
		}(i)
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), store.creates.Load(), "role must be created exactly once")
	require.Equal(t, int32(1), store.lookups.Load(), "only the first caller may hit the store")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, got[0].ID, got[i].ID)
		assert.Equal(t, RoleDeveloper, got[i].Name)
	}
}

func TestRoleCacheUsesExistingRole(t *testing.T) {
	mem := NewMemoryStore()
	existing := &Role{Name: RoleManager}
	require.NoError(t, mem.Roles(context.Background()).Create(context.Background(), existing))

	store := &countingStore{MemoryStore: mem}
	cache := NewRoleCache(store)

	role, err := cache.GetOrCreate(context.Background(), RoleManager)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, role.ID)
	assert.Zero(t, store.creates.Load())
}

func TestRoleCacheCreationFailureIsSurfacedAndRetried(t *testing.T) {
	store := &countingStore{MemoryStore: NewMemoryStore(), createErr: errors.New("disk full")}
	cache := NewRoleCache(store)

	_, err := cache.GetOrCreate(context.Background(), RoleDeveloper)
	require.ErrorIs(t, err, ErrRoleCreation)

	store.createErr = nil
	role, err := cache.GetOrCreate(context.Background(), RoleDeveloper)
	require.NoError(t, err)
	assert.NotEmpty(t, role.ID)
	assert.Equal(t, int32(2), store.creates.Load())
}

func TestRoleCacheLostRaceReloads(t *testing.T) {
	mem := NewMemoryStore()
	store := &countingStore{MemoryStore: mem, createErr: ErrAlreadyExists}
	require.NoError(t, mem.Roles(context.Background()).Create(context.Background(), &Role{ID: "winner", Name: RoleContractor}))

	// Force the slow path to see "not found" first by using a fresh memory store view.
	cache := NewRoleCache(&missFirstStore{countingStore: store})
	role, err := cache.GetOrCreate(context.Background(), RoleContractor)
	require.NoError(t, err)
	assert.Equal(t, "winner", role.ID)
}

func TestRoleCacheUnknownRolePanics(t *testing.T) {
	cache := NewRoleCache(NewMemoryStore())
	assert.Panics(t, func() {
		_, _ = cache.GetOrCreate(context.Background(), RoleName("OWNER"))
	})
}

func TestRoleCacheWarm(t *testing.T) {
	mem := NewMemoryStore()
	require.NoError(t, NewRoleCache(mem).Warm(context.Background()))
	for _, name := range BuiltinRoles {
		_, err := mem.Roles(context.Background()).FindByName(context.Background(), name)
		require.NoError(t, err, "role %s", name)
	}
}

// missFirstStore reports the first lookup as missing, simulating a concurrent
// insert by another process between lookup and create.
type missFirstStore struct {
	*countingStore
	missed atomic.Bool
}

func (s *missFirstStore) Roles(ctx context.Context) RoleStore {
	return missFirstRoles{s: s, inner: s.countingStore.Roles(ctx)}
}

type missFirstRoles struct {
	s     *missFirstStore
	inner RoleStore
}

func (r missFirstRoles) FindByName(ctx context.Context, name RoleName) (*Role, error) {
	if r.s.missed.CompareAndSwap(false, true) {
		return nil, ErrNotFound
	}
	return r.inner.FindByName(ctx, name)
}

func (r missFirstRoles) Create(ctx context.Context, role *Role) error {
	return r.inner.Create(ctx, role)
}
