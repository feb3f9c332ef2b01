package state

import (
	"context"
	"fmt"
)

// RecordPoll stores every value of poll in one transaction.
func (s *SQLiteStore) RecordPoll(poll *Poll) error {
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
		INSERT OR REPLACE INTO poll_values (run_id, series_number, name, value)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for name, value := range poll.Values {
		if _, err := stmt.ExecContext(ctx, poll.RunID, poll.SeriesNumber, name, value); err != nil {
			return fmt.Errorf("insert poll value %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetPolls returns the polls of a run ordered by series number.
func (s *SQLiteStore) GetPolls(runID string) ([]*Poll, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(context.Background(), `
		SELECT series_number, name, value FROM poll_values
		WHERE run_id = ?
		ORDER BY series_number, name
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query polls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var polls []*Poll
	for rows.Next() {
		var series int
		var name string
		var value float64
		if err := rows.Scan(&series, &name, &value); err != nil {
			return nil, fmt.Errorf("scan poll value: %w", err)
		}
		if len(polls) == 0 || polls[len(polls)-1].SeriesNumber != series {
			polls = append(polls, &Poll{RunID: runID, SeriesNumber: series, Values: make(map[string]float64)})
		}
		polls[len(polls)-1].Values[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate polls: %w", err)
	}
	return polls, nil
}

// RecordTopTerms stores a most-frequent list taken at series.
func (s *SQLiteStore) RecordTopTerms(runID string, series int, top []TopTerm) error {
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
		INSERT OR REPLACE INTO top_terms (run_id, series_number, rank, lambda_expression, count)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, t := range top {
		if _, err := stmt.ExecContext(ctx, runID, series, t.Rank, t.Expression, t.Count); err != nil {
			return fmt.Errorf("insert top term %d: %w", t.Rank, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTopTerms returns the most-frequent list taken at series, by rank.
func (s *SQLiteStore) GetTopTerms(runID string, series int) ([]TopTerm, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(context.Background(), `
		SELECT rank, lambda_expression, count FROM top_terms
		WHERE run_id = ? AND series_number = ?
		ORDER BY rank
	`, runID, series)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var top []TopTerm
	for rows.Next() {
		var t TopTerm
		if err := rows.Scan(&t.Rank, &t.Expression, &t.Count); err != nil {
			return nil, fmt.Errorf("scan top term: %w", err)
		}
		top = append(top, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top terms: %w", err)
	}
	return top, nil
}
