package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/charlaomota/V360/internal/domain"
)

var ErrReportNotFound = errors.New("report not found")

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, connStr string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate создает таблицу отчетов. Вызывается на старте.
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS search_reports (
            name TEXT PRIMARY KEY,
            query TEXT NOT NULL,
            collected_bytes INT NOT NULL DEFAULT 0,
            payload JSONB NOT NULL,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            updated_at TIMESTAMPTZ DEFAULT NOW()
        )
    `)
	if err != nil {
		return fmt.Errorf("migrate search_reports: %w", err)
	}
	return nil
}

// Store - sink отчетов поверх postgres, документ хранится в JSONB
type Store struct {
	db     *DB
	logger *zap.Logger
}

func NewStore(db *DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) Save(ctx context.Context, report *domain.ConsolidatedReport) (string, error) {
	name := domain.DocumentName(report.Query, report.Timestamp)

	payload, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	query := `
        INSERT INTO search_reports (name, query, collected_bytes, payload)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (name) DO UPDATE
        SET query = EXCLUDED.query,
            collected_bytes = EXCLUDED.collected_bytes,
            payload = EXCLUDED.payload,
            updated_at = NOW()
    `

	if _, err := s.db.Pool.Exec(ctx, query, name, report.Query, report.CollectedSize, payload); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}

	s.logger.Info("report saved",
		zap.String("name", name),
		zap.Int("collected_bytes", report.CollectedSize),
	)
	return name, nil
}

func (s *Store) Load(ctx context.Context, name string) (*domain.ConsolidatedReport, error) {
	var payload []byte
	err := s.db.Pool.QueryRow(ctx, `SELECT payload FROM search_reports WHERE name = $1`, name).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("load report: %w", err)
	}

	var report domain.ConsolidatedReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}
