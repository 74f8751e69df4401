package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch implements design search over the designs table. It is the
// fallback when Meilisearch is not configured or unhealthy.
type PgSearch struct {
	db *sql.DB
}

func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true: if Postgres is down, the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

func (p *PgSearch) Search(q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, name, owner_id FROM designs
		WHERE name ILIKE '%' || $1 || '%'
	`
	args := []any{q.Text}
	if q.OwnerID != "" {
		query += ` AND owner_id = $2`
		args = append(args, q.OwnerID)
	}
	query += fmt.Sprintf(` ORDER BY updated_at DESC LIMIT %d`, limit)

	rows, err := p.db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("pg design search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Name, &r.OwnerID); err != nil {
			return nil, fmt.Errorf("scan design hit: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
