package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mediaforge/models"
)

type PostgresRepo struct {
	db *pgxpool.Pool
}

func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func NewPostgresRepo(db *pgxpool.Pool) Recorder {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) RecordResult(ctx context.Context, batchID string, result models.ConversionResult) error {
	query := `
		INSERT INTO conversions (batch_id, filename, status, original_size, output_count, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		batchID,
		result.Name,
		string(result.Status),
		result.OriginalSize,
		len(result.ProcessedFiles),
		result.Error,
	)
	return err
}
