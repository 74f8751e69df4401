package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"atelier/api/internal/store"
)

type fakeUserStore struct {
	users map[string]store.User
	calls int
	err   error
}

func (f *fakeUserStore) GetUsersByIDs(_ context.Context, userIDs []string) (map[string]store.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	found := make(map[string]store.User)
	for _, id := range userIDs {
		if u, present := f.users[id]; present {
			found[id] = u
		}
	}
	return found, nil
}

func (f *fakeUserStore) SearchUsers(_ context.Context, query string, limit int) ([]store.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []store.User
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func setupCache(t *testing.T) *Cache {
	t.Helper()
	s := miniredis.RunT(t)
	cache, err := NewCache("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestLookupOmitsAbsentIDs(t *testing.T) {
	users := &fakeUserStore{users: map[string]store.User{
		"u1": {ID: "u1", Username: "ana"},
	}}
	d := New(users, nil)

	found := d.Lookup(context.Background(), []string{"u1", "ghost"})
	if len(found) != 1 {
		t.Fatalf("got %d profiles, want 1", len(found))
	}
	if _, present := found["ghost"]; present {
		t.Fatalf("absent ids must be omitted, not invented")
	}
}

func TestLookupDedupes(t *testing.T) {
	users := &fakeUserStore{users: map[string]store.User{"u1": {ID: "u1"}}}
	d := New(users, nil)

	found := d.Lookup(context.Background(), []string{"u1", "u1", "", "u1"})
	if len(found) != 1 {
		t.Fatalf("got %d profiles, want 1", len(found))
	}
}

func TestLookupUsesCache(t *testing.T) {
	cache := setupCache(t)
	users := &fakeUserStore{users: map[string]store.User{
		"u1": {ID: "u1", Username: "ana", Email: "ana@example.com"},
	}}
	d := New(users, cache)
	ctx := context.Background()

	first := d.Lookup(ctx, []string{"u1"})
	if first["u1"].Username != "ana" {
		t.Fatalf("first lookup = %+v", first)
	}
	if users.calls != 1 {
		t.Fatalf("store calls = %d, want 1", users.calls)
	}

	second := d.Lookup(ctx, []string{"u1"})
	if second["u1"].Email != "ana@example.com" {
		t.Fatalf("second lookup = %+v", second)
	}
	if users.calls != 1 {
		t.Fatalf("second lookup must be served from cache, store calls = %d", users.calls)
	}
}

func TestLookupDegradesOnStoreFailure(t *testing.T) {
	cache := setupCache(t)
	users := &fakeUserStore{users: map[string]store.User{"u1": {ID: "u1", Username: "ana"}}}
	d := New(users, cache)
	ctx := context.Background()

	d.Lookup(ctx, []string{"u1"}) // warm the cache
	users.err = errors.New("store down")

	found := d.Lookup(ctx, []string{"u1", "u2"})
	if found["u1"].Username != "ana" {
		t.Fatalf("cached profile must survive a store outage, got %+v", found)
	}
	if _, present := found["u2"]; present {
		t.Fatalf("unfetchable profile must be omitted")
	}
}

func TestCacheInvalidate(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()

	cache.Set(ctx, store.User{ID: "u1", Username: "ana"})
	if _, hit := cache.Get(ctx, "u1"); !hit {
		t.Fatalf("expected a cache hit after Set")
	}
	cache.Invalidate(ctx, "u1")
	if _, hit := cache.Get(ctx, "u1"); hit {
		t.Fatalf("expected a miss after Invalidate")
	}
}
