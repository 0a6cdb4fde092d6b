package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/pullgraph/internal/graph"
)

// WritePass records a pass and its root results in one transaction and
// returns the pass's seq.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: writing the same pass
// ID twice keeps the first record and returns its seq.
func (s *Store) WritePass(ctx context.Context, report *graph.PassReport) (seq int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write pass: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	err = tx.QueryRowContext(ctx, `SELECT seq FROM passes WHERE id = ?`, report.ID).Scan(&seq)
	switch {
	case err == nil:
		return seq, nil
	case err != sql.ErrNoRows:
		return 0, fmt.Errorf("write pass: select existing: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM passes`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("write pass: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO passes
		(id, graph, cycle, kind, applied, apply_error, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		report.ID,
		report.Graph,
		report.Cycle,
		string(report.Kind),
		report.Applied,
		errorText(report.ApplyErr),
		seq,
	)
	if err != nil {
		return 0, fmt.Errorf("write pass: insert: %w", err)
	}

	for i, res := range report.Results {
		data, hash, err := marshalValue(res.Value)
		if err != nil {
			return 0, fmt.Errorf("write pass: root %q: %w", res.Root, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO root_results
			(pass_id, position, root, vertex, port, value, value_hash, commands, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			report.ID,
			i,
			res.Root,
			int64(res.Endpoint.Vertex),
			res.Endpoint.Index,
			data,
			hash,
			res.Commands,
			errorText(res.Err),
		)
		if err != nil {
			return 0, fmt.Errorf("write pass: root %q: %w", res.Root, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write pass: commit: %w", err)
	}
	return seq, nil
}

// RecordPass implements graph.Recorder.
func (s *Store) RecordPass(ctx context.Context, report *graph.PassReport) error {
	_, err := s.WritePass(ctx, report)
	return err
}

var _ graph.Recorder = (*Store)(nil)
