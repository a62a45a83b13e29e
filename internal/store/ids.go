package store

import (
	"context"
	"fmt"
)

// LoadIDs returns the persisted processed ids in insertion order.
// Returns an empty slice (not nil) on a fresh database.
func (s *Store) LoadIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM processed_ids ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("load ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("load ids: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load ids: iterate: %w", err)
	}
	return ids, nil
}

// SaveIDs replaces the persisted ledger with ids in one transaction.
// Either the whole set is stored or the previous set is kept.
func (s *Store) SaveIDs(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save ids: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, "DELETE FROM processed_ids"); err != nil {
		return fmt.Errorf("save ids: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO processed_ids (id, position) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("save ids: prepare: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, i); err != nil {
			return fmt.Errorf("save ids: insert %q: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save ids: commit: %w", err)
	}
	return nil
}
