package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository keeps one row per namespace in a kv table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresRepository{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agenthub_snapshots (
			namespace TEXT PRIMARY KEY,
			payload BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (r *PostgresRepository) Load(ctx context.Context, namespace string) ([]byte, bool, error) {
	if namespace == "" {
		return nil, false, ErrEmptyNamespace
	}
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM agenthub_snapshots WHERE namespace=$1`,
		namespace,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %s: %w", namespace, err)
	}
	return payload, true, nil
}

func (r *PostgresRepository) Save(ctx context.Context, namespace string, snapshot []byte) error {
	if namespace == "" {
		return ErrEmptyNamespace
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO agenthub_snapshots (namespace, payload, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (namespace) DO UPDATE SET payload=EXCLUDED.payload, updated_at=now()`,
		namespace,
		snapshot,
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", namespace, err)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
