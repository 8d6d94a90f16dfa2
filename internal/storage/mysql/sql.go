package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"ActionKit-Chain/internal/action"
)

// SQLInvocationRepository stores invocations in MySQL.
type SQLInvocationRepository struct {
	db *sql.DB
}

// Open connects, applies pending migrations and returns the repository.
func Open(ctx context.Context, cfg Config) (*SQLInvocationRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := &SQLInvocationRepository{db: db}
	if err := repo.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

const insertInvocationSQL = `INSERT INTO invocations
    (id, action, provider, network, args, result, error, error_code, outcome, started_at, duration_ms)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE id = id`

// Save inserts inv, ignoring redeliveries of the same ID.
func (s *SQLInvocationRepository) Save(ctx context.Context, inv action.Invocation) error {
	var args any
	if len(inv.Args) > 0 {
		encoded, err := json.Marshal(inv.Args)
		if err != nil {
			return fmt.Errorf("encode invocation args: %w", err)
		}
		args = string(encoded)
	}
	if _, err := s.db.ExecContext(ctx, insertInvocationSQL,
		inv.ID,
		inv.Action,
		inv.Provider,
		inv.Network,
		args,
		inv.Result,
		inv.Error,
		inv.ErrorCode,
		string(inv.Outcome),
		inv.StartedAt.UnixMilli(),
		inv.Duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("insert invocation %s: %w", inv.ID, err)
	}
	return nil
}

const listInvocationsSQL = `SELECT id, action, provider, network, args, result, error, error_code, outcome, started_at, duration_ms
    FROM invocations ORDER BY started_at DESC, id DESC LIMIT ?`

// ListLatest returns up to limit invocations, newest first.
func (s *SQLInvocationRepository) ListLatest(ctx context.Context, limit int) ([]action.Invocation, error) {
	rows, err := s.db.QueryContext(ctx, listInvocationsSQL, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var out []action.Invocation
	for rows.Next() {
		var (
			inv        action.Invocation
			args       sql.NullString
			outcome    string
			startedAt  int64
			durationMS int64
		)
		if err := rows.Scan(&inv.ID, &inv.Action, &inv.Provider, &inv.Network, &args,
			&inv.Result, &inv.Error, &inv.ErrorCode, &outcome, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		if args.Valid && args.String != "" {
			if err := json.Unmarshal([]byte(args.String), &inv.Args); err != nil {
				return nil, fmt.Errorf("decode args of %s: %w", inv.ID, err)
			}
		}
		inv.Outcome = action.Outcome(outcome)
		inv.StartedAt = time.UnixMilli(startedAt).UTC()
		inv.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return out, nil
}

// Close releases the pool.
func (s *SQLInvocationRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
