// Package directory looks up user profiles for roster building and the
// share dialog, fronted by an optional Redis cache.
package directory

import (
	"context"
	"log"

	"atelier/api/internal/store"
)

// Store is the user slice of the object store.
type Store interface {
	GetUsersByIDs(ctx context.Context, userIDs []string) (map[string]store.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]store.User, error)
}

type Directory struct {
	store Store
	cache *Cache
}

// New creates a directory. cache may be nil; every lookup then goes to the
// store.
func New(s Store, cache *Cache) *Directory {
	return &Directory{store: s, cache: cache}
}

// Lookup resolves a set of user ids to profiles. Absent ids are omitted
// from the result, never an error: a roster rendered from a partial
// directory is still a roster. A store failure degrades to whatever the
// cache could serve.
func (d *Directory) Lookup(ctx context.Context, userIDs []string) map[string]store.User {
	found := make(map[string]store.User, len(userIDs))
	var misses []string
	for _, id := range dedupe(userIDs) {
		if d.cache != nil {
			if user, hit := d.cache.Get(ctx, id); hit {
				found[id] = user
				continue
			}
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return found
	}

	fetched, err := d.store.GetUsersByIDs(ctx, misses)
	if err != nil {
		log.Printf("directory: lookup %d users: %v", len(misses), err)
		return found
	}
	for id, user := range fetched {
		found[id] = user
		if d.cache != nil {
			d.cache.Set(ctx, user)
		}
	}
	return found
}

// Search returns share-dialog candidates matching the query.
func (d *Directory) Search(ctx context.Context, query string, limit int) ([]store.User, error) {
	return d.store.SearchUsers(ctx, query, limit)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
