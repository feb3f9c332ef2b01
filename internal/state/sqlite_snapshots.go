package state

import (
	"context"
	"fmt"
)

// RecordSnapshot stores the population of a run at series, one row per
// member in soup order.
func (s *SQLiteStore) RecordSnapshot(runID string, series int, expressions []string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshots (run_id, series_number, lambda_expression)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, expr := range expressions {
		if _, err := stmt.ExecContext(ctx, runID, series, expr); err != nil {
			return fmt.Errorf("insert snapshot expression: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetSnapshot returns the population recorded at series in soup order.
// A missing snapshot yields an empty result.
func (s *SQLiteStore) GetSnapshot(runID string, series int) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(context.Background(), `
		SELECT lambda_expression FROM snapshots
		WHERE run_id = ? AND series_number = ?
		ORDER BY id
	`, runID, series)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var expr string
		if err := rows.Scan(&expr); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, expr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot: %w", err)
	}
	return out, nil
}

// ListSnapshotSeries returns the series numbers that have a snapshot.
func (s *SQLiteStore) ListSnapshotSeries(runID string) ([]int, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(context.Background(), `
		SELECT DISTINCT series_number FROM snapshots
		WHERE run_id = ?
		ORDER BY series_number
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot series: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []int
	for rows.Next() {
		var series int
		if err := rows.Scan(&series); err != nil {
			return nil, fmt.Errorf("scan snapshot series: %w", err)
		}
		out = append(out, series)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot series: %w", err)
	}
	return out, nil
}
