package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/charlaomota/V360/internal/domain"
	"github.com/charlaomota/V360/internal/extract"
	"github.com/charlaomota/V360/internal/metrics"
	"github.com/charlaomota/V360/internal/search"
)

const (
	DefaultTargetBytes      = 500_000
	DefaultPageLimit        = 50
	DefaultPageSize         = 20
	DefaultBatchConcurrency = 10
	DefaultPageDelay        = time.Second
)

// CandidateSource отдает пачку кандидатов для одной страницы выдачи
type CandidateSource interface {
	Candidates(ctx context.Context, query string, page, limit int) ([]search.SearchResult, error)
}

type CollectorConfig struct {
	TargetBytes      int
	PageLimit        int
	PageSize         int
	BatchConcurrency int
	PageDelay        time.Duration
}

func (c *CollectorConfig) applyDefaults() {
	if c.TargetBytes <= 0 {
		c.TargetBytes = DefaultTargetBytes
	}
	if c.PageLimit <= 0 {
		c.PageLimit = DefaultPageLimit
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = DefaultBatchConcurrency
	}
	// PageDelay == 0 допустим, в тестах задержка не нужна
}

// Collector гонит byte-budgeted цикл сбора контента: постранично
// берет кандидатов у источника, извлекает текст пачками ограниченной
// ширины и копит байты в сессии до бюджета.
type Collector struct {
	source    CandidateSource
	extractor extract.Extractor
	cfg       CollectorConfig
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewCollector(source CandidateSource, extractor extract.Extractor, cfg CollectorConfig, logger *zap.Logger, m *metrics.Metrics) *Collector {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Collector{
		source:    source,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
	}
}

// Collect работает до первого из: бюджет набран, потолок страниц,
// пустая выдача, отмена контекста. Бюджет и потолок проверяются
// только на границах пачек - залетевшие в пачку fetch'и добегают
// до конца, умеренный перебор бюджета допустим.
func (c *Collector) Collect(ctx context.Context, query string, session *Session) (domain.StopReason, int) {
	pagesFetched := 0

	for page := 1; ; page++ {
		if ctx.Err() != nil {
			return domain.StopCanceled, pagesFetched
		}
		if page > c.cfg.PageLimit {
			c.logger.Warn("page ceiling reached",
				zap.Int("pages", pagesFetched),
				zap.Int("collected_bytes", session.CollectedSize()),
			)
			return domain.StopPageLimit, pagesFetched
		}

		candidates, err := c.source.Candidates(ctx, pageQuery(query, page), page, c.cfg.PageSize)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return domain.StopCanceled, pagesFetched
			}
			// страница не ретраится, следующая даст новых кандидатов
			c.logger.Warn("candidate page failed, skipping",
				zap.Int("page", page),
				zap.Error(err),
			)
			pagesFetched++
			continue
		}
		pagesFetched++

		if len(candidates) == 0 {
			c.logger.Info("candidate source exhausted",
				zap.Int("page", page),
				zap.Int("collected_bytes", session.CollectedSize()),
			)
			return domain.StopExhausted, pagesFetched
		}

		c.extractBatch(ctx, candidates, session)

		c.logger.Debug("page processed",
			zap.Int("page", page),
			zap.Int("candidates", len(candidates)),
			zap.Int("collected_bytes", session.CollectedSize()),
		)

		if session.CollectedSize() >= c.cfg.TargetBytes {
			c.logger.Info("content budget reached",
				zap.Int("collected_bytes", session.CollectedSize()),
				zap.Int("target_bytes", c.cfg.TargetBytes),
				zap.Int("pages", pagesFetched),
			)
			return domain.StopBudget, pagesFetched
		}

		// пауза между страницами, чтобы не душить провайдера
		if c.cfg.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return domain.StopCanceled, pagesFetched
			case <-time.After(c.cfg.PageDelay):
			}
		}
	}
}

// extractBatch извлекает кандидатов пачками ограниченной ширины.
// Отказ одного источника - скип, не ошибка; ретраев нет.
func (c *Collector) extractBatch(ctx context.Context, candidates []search.SearchResult, session *Session) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.BatchConcurrency)

	for _, cand := range candidates {
		g.Go(func() error {
			page, err := c.extractor.Extract(gctx, cand.URL)
			if err != nil {
				if c.metrics != nil {
					c.metrics.RecordExtraction("failed")
				}
				c.logger.Debug("extraction failed, source skipped",
					zap.String("url", cand.URL),
					zap.Error(err),
				)
				return nil
			}

			entry := domain.ContentEntry{
				URL:         page.URL,
				Title:       page.Title,
				Text:        page.Text,
				Snippet:     page.Description,
				SizeBytes:   page.SizeBytes(),
				ExtractedAt: time.Now(),
			}

			if session.Add(entry) {
				if c.metrics != nil {
					c.metrics.RecordExtraction("accepted")
				}
			} else {
				if c.metrics != nil {
					c.metrics.RecordExtraction("too_small")
				}
			}
			return nil
		})
	}

	g.Wait()
}

func pageQuery(query string, page int) string {
	if page <= 1 {
		return query
	}
	return fmt.Sprintf("%s page %d", query, page)
}
