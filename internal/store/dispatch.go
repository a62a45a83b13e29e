package store

import (
	"context"
	"fmt"

	"github.com/roach88/palletwatch/internal/model"
)

// Claim records key in the dispatch log. Returns true only for the first
// claim of a key; later claims, from this process or a restarted one,
// return false.
//
// Uses ON CONFLICT(date, center, kind) DO NOTHING so concurrent claimers
// race on the primary key rather than on a read-then-write.
func (s *Store) Claim(ctx context.Context, key model.DispatchKey) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatches (date, center, kind)
		VALUES (?, ?, ?)
		ON CONFLICT(date, center, kind) DO NOTHING
	`, key.Date.String(), model.NormalizeLabel(key.Center), key.Kind)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %s: rows affected: %w", key, err)
	}
	return n > 0, nil
}

// Claimed lists every claimed key for date, ordered by center then kind.
func (s *Store) Claimed(ctx context.Context, date model.Date) ([]model.DispatchKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT center, kind FROM dispatches
		WHERE date = ?
		ORDER BY center COLLATE BINARY ASC, kind COLLATE BINARY ASC
	`, date.String())
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	keys := []model.DispatchKey{}
	for rows.Next() {
		k := model.DispatchKey{Date: date}
		if err := rows.Scan(&k.Center, &k.Kind); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return keys, nil
}
