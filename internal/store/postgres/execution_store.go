package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tvrelay/internal/domain"
)

// ExecutionStore persists order execution results.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)

// NewExecutionStore creates an ExecutionStore backed by the given client.
func NewExecutionStore(client *Client) *ExecutionStore {
	return &ExecutionStore{pool: client.Pool()}
}

// Record inserts a single execution result.
func (s *ExecutionStore) Record(ctx context.Context, res domain.ExecutionResult) error {
	const query = `
		INSERT INTO executions (
			id, alert_id, symbol, action, side, quantity,
			reduce_only, skipped, reason, response, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	var response any
	if len(res.Response) > 0 {
		response = []byte(res.Response)
	}

	_, err := s.pool.Exec(ctx, query,
		res.ID,
		res.AlertID,
		res.Symbol,
		string(res.Action),
		string(res.Side),
		res.Quantity,
		res.ReduceOnly,
		res.Skipped,
		res.Reason,
		response,
		res.Error,
		res.At,
	)
	if err != nil {
		return fmt.Errorf("postgres: record execution %s: %w", res.ID, err)
	}
	return nil
}

// Get returns the execution with the given ID, or domain.ErrNotFound.
func (s *ExecutionStore) Get(ctx context.Context, id string) (domain.ExecutionResult, error) {
	const query = `
		SELECT id, alert_id, symbol, action, side, quantity,
		       reduce_only, skipped, reason, response, error, created_at
		FROM executions
		WHERE id = $1`

	var (
		res      domain.ExecutionResult
		action   string
		side     string
		response []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&res.ID,
		&res.AlertID,
		&res.Symbol,
		&action,
		&side,
		&res.Quantity,
		&res.ReduceOnly,
		&res.Skipped,
		&res.Reason,
		&response,
		&res.Error,
		&res.At,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ExecutionResult{}, fmt.Errorf("postgres: execution %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("postgres: get execution %s: %w", id, err)
	}
	res.Action = domain.Action(action)
	res.Side = domain.OrderSide(side)
	res.Response = response
	return res, nil
}

// List returns executions ordered newest first, filtered by opts.
func (s *ExecutionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.ExecutionResult, error) {
	var (
		conds []string
		args  []any
	)
	if opts.Since != nil {
		args = append(args, *opts.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `
		SELECT id, alert_id, symbol, action, side, quantity,
		       reduce_only, skipped, reason, response, error, created_at
		FROM executions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var results []domain.ExecutionResult
	for rows.Next() {
		var (
			res      domain.ExecutionResult
			action   string
			side     string
			response []byte
		)
		err := rows.Scan(
			&res.ID,
			&res.AlertID,
			&res.Symbol,
			&action,
			&side,
			&res.Quantity,
			&res.ReduceOnly,
			&res.Skipped,
			&res.Reason,
			&response,
			&res.Error,
			&res.At,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		res.Action = domain.Action(action)
		res.Side = domain.OrderSide(side)
		res.Response = response
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate executions: %w", err)
	}

	return results, nil
}
