package store

import (
	"context"
	"fmt"
)

// MarkBad records identifier in the negative cache.
// Marking an identifier twice is a no-op.
func (s *Store) MarkBad(ctx context.Context, identifier string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bad_scripts (identifier) VALUES (?)
		ON CONFLICT(identifier) DO NOTHING
	`, identifier)
	if err != nil {
		return fmt.Errorf("mark bad %s: %w", identifier, err)
	}
	return nil
}

// IsBad reports whether identifier is in the negative cache.
func (s *Store) IsBad(ctx context.Context, identifier string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bad_scripts WHERE identifier = ?
	`, identifier).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is bad %s: %w", identifier, err)
	}
	return n > 0, nil
}

// ClearBad removes identifier from the negative cache.
func (s *Store) ClearBad(ctx context.Context, identifier string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bad_scripts WHERE identifier = ?`, identifier); err != nil {
		return fmt.Errorf("clear bad %s: %w", identifier, err)
	}
	return nil
}

// BadScripts lists the negative cache in the order entries were added.
func (s *Store) BadScripts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identifier FROM bad_scripts ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list bad scripts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan bad script: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
