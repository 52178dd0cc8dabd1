package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"honeymatch/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

const itineraryColumns = `
	id, title, summary, featured_image, activity_tags, theme_tags,
	embedding, curated_quality_metric, price, duration_days`

// PostgresRepository handles database operations
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// NewPostgresRepositoryFromDB wraps an already opened connection pool
func NewPostgresRepositoryFromDB(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping checks the database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RetrieveCandidates calls the match_itineraries stored procedure. Nil
// filter slices and a non-positive duration are sent as NULL, which the
// procedure treats as "no constraint".
func (r *PostgresRepository) RetrieveCandidates(
	ctx context.Context,
	filters model.FilterParams,
	limit int,
) ([]model.Itinerary, error) {
	query := `
		SELECT ` + itineraryColumns + `
		FROM match_itineraries($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var duration any
	if filters.TargetDuration > 0 {
		duration = filters.TargetDuration
	}
	var pace any
	if filters.Pace != nil {
		pace = *filters.Pace
	}

	itineraries := []model.Itinerary{}
	err := r.db.SelectContext(ctx, &itineraries, query,
		filters.MaxPrice,
		duration,
		nullableArray(filters.Regions),
		nullableArray(filters.Interests),
		nullableArray(filters.Vibe),
		pace,
		nullableArray(filters.AvoidTags),
		nullableArray(filters.TravelSeasons),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	return itineraries, nil
}

// GetItineraryByID retrieves a single itinerary, nil when it does not exist
func (r *PostgresRepository) GetItineraryByID(ctx context.Context, id string) (*model.Itinerary, error) {
	var it model.Itinerary
	query := `SELECT ` + itineraryColumns + ` FROM itineraries WHERE id = $1`
	err := r.db.GetContext(ctx, &it, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get itinerary: %w", err)
	}
	return &it, nil
}

// BatchUpdateEmbeddings updates embeddings for multiple itineraries in one
// transaction. Per-item failures are reported and do not stop the batch.
func (r *PostgresRepository) BatchUpdateEmbeddings(ctx context.Context, items []model.EmbeddingItem) (int, []string) {
	success := 0
	var errs []string

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		errs = append(errs, fmt.Sprintf("failed to start transaction: %v", err))
		return success, errs
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `UPDATE itineraries SET embedding = $1, updated_at = NOW() WHERE id = $2`)
	if err != nil {
		errs = append(errs, fmt.Sprintf("failed to prepare statement: %v", err))
		return success, errs
	}
	defer stmt.Close()

	for _, item := range items {
		res, err := stmt.ExecContext(ctx, pgvector.NewVector(item.Embedding), item.ItineraryID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("itinerary_id %s: %v", item.ItineraryID, err))
			continue
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			errs = append(errs, fmt.Sprintf("itinerary_id %s: not found", item.ItineraryID))
			continue
		}
		success++
	}

	if err := tx.Commit(); err != nil {
		errs = append(errs, fmt.Sprintf("failed to commit transaction: %v", err))
		return 0, errs
	}

	return success, errs
}

func nullableArray(values []string) any {
	if len(values) == 0 {
		return nil
	}
	return pq.Array(values)
}
