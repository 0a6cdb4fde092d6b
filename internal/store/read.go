package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/pullgraph/internal/value"
)

// PassRecord is a stored pass.
type PassRecord struct {
	ID         string `json:"id"`
	Graph      string `json:"graph"`
	Cycle      int64  `json:"cycle"`
	Kind       string `json:"kind"`
	Applied    bool   `json:"applied"`
	ApplyError string `json:"apply_error,omitempty"`
	Seq        int64  `json:"seq"`

	Results []ResultRecord `json:"results"`
}

// ResultRecord is a stored root result.
type ResultRecord struct {
	Position  int         `json:"position"`
	Root      string      `json:"root"`
	Vertex    int64       `json:"vertex"`
	Port      int         `json:"port"`
	Value     value.Value `json:"value,omitempty"`
	ValueHash string      `json:"value_hash,omitempty"`
	Commands  int         `json:"commands,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// ReadPasses returns every pass recorded for graph with its results.
// An empty graph name reads all graphs.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) ReadPasses(ctx context.Context, graph string) ([]PassRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, graph, cycle, kind, applied, apply_error, seq
		FROM passes
		WHERE ? = '' OR graph = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, graph, graph)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}

	passes := []PassRecord{}
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	// Release the single connection before reading results.
	rows.Close()

	for i := range passes {
		results, err := s.ReadResults(ctx, passes[i].ID)
		if err != nil {
			return nil, err
		}
		passes[i].Results = results
	}
	return passes, nil
}

// ReadPass returns one pass with its results.
// Returns sql.ErrNoRows (wrapped) if it does not exist.
func (s *Store) ReadPass(ctx context.Context, id string) (PassRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, graph, cycle, kind, applied, apply_error, seq
		FROM passes
		WHERE id = ?
	`, id)
	p, err := scanPass(row)
	if err != nil {
		return PassRecord{}, err
	}
	if p.Results, err = s.ReadResults(ctx, id); err != nil {
		return PassRecord{}, err
	}
	return p, nil
}

// ReadResults returns the root results of a pass in registration order.
func (s *Store) ReadResults(ctx context.Context, passID string) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, root, vertex, port, value, value_hash, commands, error
		FROM root_results
		WHERE pass_id = ?
		ORDER BY position ASC
	`, passID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []ResultRecord{}
	for rows.Next() {
		var (
			r               ResultRecord
			data, hash, msg sql.NullString
		)
		if err := rows.Scan(&r.Position, &r.Root, &r.Vertex, &r.Port, &data, &hash, &r.Commands, &msg); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if r.Value, err = unmarshalValue(data); err != nil {
			return nil, fmt.Errorf("result %q: %w", r.Root, err)
		}
		r.ValueHash = hash.String
		r.Error = msg.String
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// HistoryEntry is one cycle's result for a single root.
type HistoryEntry struct {
	Cycle     int64       `json:"cycle"`
	PassID    string      `json:"pass_id"`
	Value     value.Value `json:"value,omitempty"`
	ValueHash string      `json:"value_hash,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// ReadRootHistory returns every recorded result of root in graph, ordered
// by pass seq.
func (s *Store) ReadRootHistory(ctx context.Context, graph, root string) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.cycle, p.id, r.value, r.value_hash, r.error
		FROM root_results r
		JOIN passes p ON r.pass_id = p.id
		WHERE p.graph = ? AND r.root = ?
		ORDER BY p.seq ASC, p.id COLLATE BINARY ASC
	`, graph, root)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := []HistoryEntry{}
	for rows.Next() {
		var (
			e               HistoryEntry
			data, hash, msg sql.NullString
		)
		if err := rows.Scan(&e.Cycle, &e.PassID, &data, &hash, &msg); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if e.Value, err = unmarshalValue(data); err != nil {
			return nil, err
		}
		e.ValueHash = hash.String
		e.Error = msg.String
		history = append(history, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

// Graphs returns the names of every recorded graph, sorted.
func (s *Store) Graphs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT graph FROM passes ORDER BY graph COLLATE BINARY`)
	if err != nil {
		return nil, fmt.Errorf("query graphs: %w", err)
	}
	defer rows.Close()

	graphs := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan graph: %w", err)
		}
		graphs = append(graphs, g)
	}
	return graphs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPass(row scanner) (PassRecord, error) {
	var (
		p        PassRecord
		applyErr sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Graph, &p.Cycle, &p.Kind, &p.Applied, &applyErr, &p.Seq); err != nil {
		return PassRecord{}, fmt.Errorf("scan pass: %w", err)
	}
	p.ApplyError = applyErr.String
	return p, nil
}
