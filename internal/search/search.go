// Package search finds designs by name or owner for the listing surface.
// Meilisearch is used when available; Postgres ILIKE is the fallback.
package search

// Result is a single design hit.
type Result struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

// Query describes a design search.
type Query struct {
	Text    string
	OwnerID string // empty = any owner
	Limit   int
}

// DesignRecord is the data indexed per design.
type DesignRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}
