package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/charlaomota/V360/internal/domain"
)

// Store пишет отчеты в JSON файлы каталога результатов
type Store struct {
	dir    string
	logger *zap.Logger
}

func New(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		dir = "analyses_data/search_results"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}

	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) Save(ctx context.Context, report *domain.ConsolidatedReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := domain.DocumentName(report.Query, report.Timestamp)
	path := filepath.Join(s.dir, name+".json")

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	// пишем во временный файл и переименовываем, чтобы не оставить огрызок
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("rename report: %w", err)
	}

	s.logger.Info("report saved",
		zap.String("name", name),
		zap.Int("size_bytes", len(data)),
	)
	return name, nil
}

func (s *Store) Load(ctx context.Context, name string) (*domain.ConsolidatedReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name+".json"))
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	var report domain.ConsolidatedReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}
