package search

import "log"

// Service is the facade that tries Meilisearch first and falls back to a
// direct Postgres query.
type Service struct {
	meili *Meili
	pg    *PgSearch
}

// NewService creates a search service. meili may be nil when Meilisearch
// is not configured.
func NewService(meili *Meili, pg *PgSearch) *Service {
	return &Service{meili: meili, pg: pg}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(q Query) []Result {
	if s.meili != nil && s.meili.Healthy() {
		results, err := s.meili.Search(q)
		if err == nil {
			return nonNil(results)
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, err := s.pg.Search(q)
	if err != nil {
		log.Printf("search: postgres error: %v", err)
		return []Result{}
	}
	return nonNil(results)
}

// IndexDesign indexes a design (fire-and-forget to Meilisearch).
func (s *Service) IndexDesign(record DesignRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDesign(record); err != nil {
			log.Printf("search: index design %s: %v", record.ID, err)
		}
	}()
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
