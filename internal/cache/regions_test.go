package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrLoadCachesValue(t *testing.T) {
	r := New()
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "apollo", nil
	}
	for i := 0; i < 3; i++ {
		v, err := GetOrLoad(context.Background(), r, Projects, "1", load)
		require.NoError(t, err)
		assert.Equal(t, "apollo", v)
	}
	assert.Equal(t, 1, calls)
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	r := New()
	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return 0, errors.New("db down")
	}
	for i := 0; i < 2; i++ {
		_, err := GetOrLoad(context.Background(), r, AllProjects, "all", load)
		require.Error(t, err)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, r.Len(AllProjects))
}

func TestInvalidateKeyAndRegion(t *testing.T) {
	r := New()
	r.Put(Projects, "1", "a")
	r.Put(Projects, "2", "b")
	r.Put(AllProjects, "all", []string{"a", "b"})

	r.Invalidate(Key(Projects, "1"), All(AllProjects))

	_, ok := Get[string](r, Projects, "1")
	assert.False(t, ok)
	v, ok := Get[string](r, Projects, "2")
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, 0, r.Len(AllProjects))
}

func TestRegionsAreIndependent(t *testing.T) {
	r := New()
	r.Put(Tasks, "1", "task")
	r.Put(Developers, "1", "dev")
	r.EvictAll(Tasks)

	_, ok := Get[string](r, Developers, "1")
	assert.True(t, ok)
}

func TestEntriesExpire(t *testing.T) {
	r := New(WithPolicy(TopDevelopers, Policy{TTL: 20 * time.Millisecond}))
	r.Put(TopDevelopers, "top", 5)
	require.Eventually(t, func() bool {
		_, ok := Get[int](r, TopDevelopers, "top")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestBoundedSize(t *testing.T) {
	r := New(WithDefaults(2, time.Minute))
	r.Put(Tasks, "1", 1)
	r.Put(Tasks, "2", 2)
	r.Put(Tasks, "3", 3)
	assert.Equal(t, 2, r.Len(Tasks))
	_, ok := Get[int](r, Tasks, "1")
	assert.False(t, ok)
}

func TestLoadOverlappingInvalidationIsNotStored(t *testing.T) {
	r := New()
	v, err := GetOrLoad(context.Background(), r, Projects, "1", func(context.Context) (string, error) {
		r.Evict(Projects, "1")
		return "stale", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", v)
	_, ok := Get[string](r, Projects, "1")
	assert.False(t, ok)
}

func TestWrongTypeIsAMiss(t *testing.T) {
	r := New()
	r.Put(TaskCounts, "open", "seven")
	_, ok := Get[int](r, TaskCounts, "open")
	assert.False(t, ok)
}

func TestUnknownRegionPanics(t *testing.T) {
	r := New()
	assert.Panics(t, func() { r.Put(Region("bogus"), "k", 1) })
	assert.Panics(t, func() { r.Invalidate(All(Region("bogus"))) })
}

func TestNilRegionsAlwaysMiss(t *testing.T) {
	var r *Regions
	r.Put(Projects, "1", "x")
	r.Invalidate(All(Projects))
	_, ok := Get[string](r, Projects, "1")
	assert.False(t, ok)
	v, err := GetOrLoad(context.Background(), r, Projects, "1", func(context.Context) (string, error) { return "y", nil })
	require.NoError(t, err)
	assert.Equal(t, "y", v)
}
