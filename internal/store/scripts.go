package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/scripthost/internal/entity"
)

// Script is a cached script body.
type Script struct {
	URL         string
	Contents    string
	ContentHash string
}

// PutScript stores (or replaces) the cached body for url.
func (s *Store) PutScript(ctx context.Context, url, contents string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scripts (url, contents, content_hash)
		VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			contents = excluded.contents,
			content_hash = excluded.content_hash
	`, url, contents, entity.ContentHash(contents))
	if err != nil {
		return fmt.Errorf("put script %s: %w", url, err)
	}
	return nil
}

// GetScript returns the cached body for url.
// The boolean is false when nothing is cached.
func (s *Store) GetScript(ctx context.Context, url string) (Script, bool, error) {
	var sc Script
	err := s.db.QueryRowContext(ctx, `
		SELECT url, contents, content_hash FROM scripts WHERE url = ?
	`, url).Scan(&sc.URL, &sc.Contents, &sc.ContentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Script{}, false, nil
	}
	if err != nil {
		return Script{}, false, fmt.Errorf("get script %s: %w", url, err)
	}
	return sc, true, nil
}

// DeleteScript drops the cached body for url. Missing entries are not an error.
func (s *Store) DeleteScript(ctx context.Context, url string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scripts WHERE url = ?`, url); err != nil {
		return fmt.Errorf("delete script %s: %w", url, err)
	}
	return nil
}

// ScriptsWithHash lists cached URLs whose body hashes to contentHash,
// in insertion order.
func (s *Store) ScriptsWithHash(ctx context.Context, contentHash string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url FROM scripts WHERE content_hash = ? ORDER BY rowid ASC
	`, contentHash)
	if err != nil {
		return nil, fmt.Errorf("scripts with hash: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan script url: %w", err)
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}
