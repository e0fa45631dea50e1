package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// SearchIndexer maintains the per-document tsvector used by full-text
// search. French configuration matches the corpus language.
type SearchIndexer struct {
	db *sql.DB
}

func NewSearchIndexer(db *sql.DB) *SearchIndexer {
	return &SearchIndexer{db: db}
}

func (s *SearchIndexer) Refresh(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE documents
SET search_vector = to_tsvector('french', coalesce(filename, '') || ' ' || coalesce(extracted_text, ''))
WHERE id = $1
`, documentID)
	if err != nil {
		return fmt.Errorf("refresh search vector: %w", err)
	}
	return nil
}
