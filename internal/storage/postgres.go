package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/mselser95/polymarket-lens/pkg/types"
	"go.uber.org/zap"
)

const (
	createTableSQL = `
		CREATE TABLE IF NOT EXISTS price_history (
			market_id   TEXT             NOT NULL,
			ts          TIMESTAMPTZ      NOT NULL,
			price       DOUBLE PRECISION NOT NULL,
			archived_at TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			PRIMARY KEY (market_id, ts)
		)
	`

	upsertPointSQL = `
		INSERT INTO price_history (market_id, ts, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (market_id, ts) DO UPDATE SET price = EXCLUDED.price, archived_at = NOW()
	`

	selectPointsSQL = `
		SELECT ts, price FROM price_history
		WHERE market_id = $1 AND ts >= $2
		ORDER BY ts ASC
	`
)

// PostgresArchive implements HistoryArchive using PostgreSQL.
type PostgresArchive struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresArchive connects to PostgreSQL and creates the history table.
func NewPostgresArchive(ctx context.Context, cfg *PostgresConfig) (*PostgresArchive, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Test connection
	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	archive := NewPostgresArchiveFromDB(db, cfg.Logger)
	if err := archive.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	archive.logger.Info("postgres-archive-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return archive, nil
}

// NewPostgresArchiveFromDB wraps an open database handle.
func NewPostgresArchiveFromDB(db *sql.DB, logger *zap.Logger) *PostgresArchive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresArchive{db: db, logger: logger}
}

// EnsureSchema creates the history table if it does not exist.
func (p *PostgresArchive) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create price_history table: %w", err)
	}
	return nil
}

// SavePoints upserts points in a single transaction.
func (p *PostgresArchive) SavePoints(ctx context.Context, marketID string, points []types.PricePoint) (err error) {
	if len(points) == 0 {
		return nil
	}
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		ArchiveWritesTotal.WithLabelValues(ModePostgres, outcome).Inc()
	}()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertPointSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, pt := range points {
		if _, err = stmt.ExecContext(ctx, marketID, pt.Timestamp.UTC(), pt.Price); err != nil {
			return fmt.Errorf("upsert point: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	p.logger.Debug("history-archived",
		zap.String("market-id", marketID),
		zap.Int("points", len(points)))
	return nil
}

// LoadPoints reads points at or after since.
func (p *PostgresArchive) LoadPoints(ctx context.Context, marketID string, since time.Time) ([]types.PricePoint, error) {
	rows, err := p.db.QueryContext(ctx, selectPointsSQL, marketID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var points []types.PricePoint
	for rows.Next() {
		var pt types.PricePoint
		if err := rows.Scan(&pt.Timestamp, &pt.Price); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		pt.Timestamp = pt.Timestamp.UTC()
		points = append(points, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history: %w", err)
	}

	ArchiveReadsTotal.WithLabelValues(ModePostgres, hitLabel(len(points))).Inc()
	return points, nil
}

// Close closes the database connection.
func (p *PostgresArchive) Close() error {
	p.logger.Info("closing-postgres-archive")
	return p.db.Close()
}
