package sink

import (
	"context"

	"github.com/charlaomota/V360/internal/domain"
)

// ResultSink - долговременное хранилище консолидированных отчетов.
// Ключ документа - domain.DocumentName(query, timestamp).
// Save перезаписывает документ целиком (read-modify-write на стороне
// реализации, если она инкрементальная).
type ResultSink interface {
	Save(ctx context.Context, report *domain.ConsolidatedReport) (string, error)
	Load(ctx context.Context, name string) (*domain.ConsolidatedReport, error)
}
