package aggregator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlaomota/V360/internal/cache/memory"
	"github.com/charlaomota/V360/internal/domain"
	"github.com/charlaomota/V360/internal/metrics"
	"github.com/charlaomota/V360/internal/rotation"
	"github.com/charlaomota/V360/internal/search"
	"github.com/charlaomota/V360/internal/sink"
)

const (
	DefaultCallTimeout           = 300 * time.Second
	DefaultMaxResultsPerProvider = 10
)

type OrchestratorConfig struct {
	CallTimeout           time.Duration
	MaxResultsPerProvider int
	CacheTTL              time.Duration
}

// OrchestratorDeps - зависимости оркестратора
type OrchestratorDeps struct {
	Manager   *rotation.Manager
	Adapters  map[string]search.SearchClient
	Collector *Collector
	Cache     *memory.Cache
	Sink      sink.ResultSink
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Config    OrchestratorConfig
}

// Orchestrator гоняет fan-out поиск по провайдерам и бюджетный сбор
// контента, сводя все в один отчет. Отказ провайдера - данные отчета,
// не ошибка вызова: наружу уходят только таймаут и внутренние сбои.
type Orchestrator struct {
	manager   *rotation.Manager
	adapters  map[string]search.SearchClient
	collector *Collector
	cache     *memory.Cache
	sink      sink.ResultSink
	logger    *zap.Logger
	metrics   *metrics.Metrics
	cfg       OrchestratorConfig
}

func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config.CallTimeout <= 0 {
		deps.Config.CallTimeout = DefaultCallTimeout
	}
	if deps.Config.MaxResultsPerProvider <= 0 {
		deps.Config.MaxResultsPerProvider = DefaultMaxResultsPerProvider
	}
	if deps.Config.CacheTTL <= 0 {
		deps.Config.CacheTTL = time.Hour
	}

	return &Orchestrator{
		manager:   deps.Manager,
		adapters:  deps.Adapters,
		collector: deps.Collector,
		cache:     deps.Cache,
		sink:      deps.Sink,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		cfg:       deps.Config,
	}
}

// Run выполняет полную агрегацию: конкурентный fan-out по всем
// сконфигурированным провайдерам плюс цикл сбора контента, с общим
// wall-clock таймаутом. На таймауте возвращает domain.ErrCallTimeout -
// исход, отличимый от отказов провайдеров.
func (o *Orchestrator) Run(ctx context.Context, query, productContext string) (*domain.ConsolidatedReport, error) {
	start := time.Now()

	if o.metrics != nil {
		o.metrics.IncInFlight()
		defer o.metrics.DecInFlight()
	}

	if err := domain.ValidateQuery(query); err != nil {
		if o.metrics != nil {
			o.metrics.RecordAggregation("invalid", time.Since(start))
		}
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	done := make(chan *domain.ConsolidatedReport, 1)
	go func() {
		done <- o.execute(ctx, query, productContext)
	}()

	select {
	case report := <-done:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// работа свернулась по дедлайну - исход все равно таймаут
			if o.metrics != nil {
				o.metrics.RecordAggregation("timeout", time.Since(start))
			}
			return nil, domain.ErrCallTimeout
		}
		if o.metrics != nil {
			o.metrics.RecordAggregation("ok", time.Since(start))
			o.metrics.RecordCollection(report.CollectedSize, report.PagesFetched)
		}
		o.persist(report)
		return report, nil

	case <-ctx.Done():
		if o.metrics != nil {
			o.metrics.RecordAggregation("timeout", time.Since(start))
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			o.logger.Error("aggregation call timed out",
				zap.String("query", query),
				zap.Duration("timeout", o.cfg.CallTimeout),
			)
			return nil, domain.ErrCallTimeout
		}
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) execute(ctx context.Context, query, productContext string) *domain.ConsolidatedReport {
	session := NewSession(query, productContext)

	var wg sync.WaitGroup
	var stopped domain.StopReason
	var pages int

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.fanOut(ctx, query, session)
	}()

	if o.collector != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stopped, pages = o.collector.Collect(ctx, query, session)
		}()
	}

	wg.Wait()

	return session.Report(o.statusSnapshot(), stopped, pages)
}

// fanOut конкурентно опрашивает провайдеров. Без пула - молчаливый
// скип; отказ - классификация + RecordFailure и дальше. Вызов не
// проваливается из-за провайдеров никогда.
func (o *Orchestrator) fanOut(ctx context.Context, query string, session *Session) {
	var wg sync.WaitGroup

	for _, provider := range o.providerNames() {
		wg.Add(1)
		go func(provider string) {
			defer wg.Done()
			o.searchProvider(ctx, provider, query, session)
		}(provider)
	}

	wg.Wait()
}

func (o *Orchestrator) searchProvider(ctx context.Context, provider, query string, session *Session) {
	adapter := o.adapters[provider]

	if o.cache != nil {
		if resp, ok := o.cache.Get(cacheKey(provider, query)); ok {
			if o.metrics != nil {
				o.metrics.RecordCacheHit()
			}
			session.SetProviderResult(provider, toProviderResult(provider, "cache", resp, 0, o.cfg.MaxResultsPerProvider))
			return
		}
		if o.metrics != nil {
			o.metrics.RecordCacheMiss()
		}
	}

	cred, ok := o.manager.Select(provider)
	if !ok {
		// провайдер не сконфигурирован - это не ошибка
		o.logger.Debug("provider skipped, no credentials", zap.String("provider", provider))
		return
	}

	start := time.Now()
	resp, err := adapter.Search(ctx, search.SearchRequest{
		APIKey:     cred.Key,
		Query:      query,
		MaxResults: o.cfg.MaxResultsPerProvider,
	})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, search.ErrEmptyResults) {
			// пустая выдача - не отказ ключа
			o.manager.RecordSuccess(provider, cred)
			if o.metrics != nil {
				o.metrics.RecordProviderRequest(provider, "empty", elapsed)
			}
			return
		}

		class := search.Classify(err)
		o.manager.RecordFailure(provider, cred, class)
		session.AddFailure(domain.ProviderFailure{
			Provider: provider,
			Class:    class,
			Message:  err.Error(),
		})
		if o.metrics != nil {
			o.metrics.RecordProviderRequest(provider, "error", elapsed)
			o.metrics.RecordCredentialFailure(provider, class.String())
		}
		o.logger.Warn("provider search failed",
			zap.String("provider", provider),
			zap.String("key", cred.Tag()),
			zap.String("class", class.String()),
			zap.Error(err),
		)
		return
	}

	o.manager.RecordSuccess(provider, cred)
	if o.metrics != nil {
		o.metrics.RecordProviderRequest(provider, "ok", elapsed)
	}

	if o.cache != nil {
		o.cache.Set(cacheKey(provider, query), resp, o.cfg.CacheTTL)
	}

	session.SetProviderResult(provider, toProviderResult(provider, cred.Tag(), resp, elapsed, o.cfg.MaxResultsPerProvider))

	o.logger.Info("provider search ok",
		zap.String("provider", provider),
		zap.String("key", cred.Tag()),
		zap.Int("results", len(resp.Results)),
	)
}

func toProviderResult(provider, keyTag string, resp *search.SearchResponse, elapsed time.Duration, maxResults int) domain.ProviderResult {
	results := resp.Results
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	items := make([]domain.SearchItem, len(results))
	for i, r := range results {
		snippet := r.Snippet
		if snippet == "" {
			snippet = r.Content
		}
		items[i] = domain.SearchItem{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: snippet,
			Score:   r.Score,
		}
	}

	return domain.ProviderResult{
		Provider:     provider,
		KeyUsed:      keyTag,
		Results:      items,
		TotalResults: len(items),
		ElapsedMS:    elapsed.Milliseconds(),
	}
}

func (o *Orchestrator) statusSnapshot() map[string]domain.ProviderStatus {
	snapshot := make(map[string]domain.ProviderStatus, len(o.adapters))
	for _, provider := range o.providerNames() {
		snapshot[provider] = o.manager.Status(provider)
	}
	return snapshot
}

// Status отдает состояние пула одного провайдера
func (o *Orchestrator) Status(provider string) domain.ProviderStatus {
	return o.manager.Status(provider)
}

// StatusAll отдает снапшот по всем провайдерам
func (o *Orchestrator) StatusAll() map[string]domain.ProviderStatus {
	return o.statusSnapshot()
}

// ResetErrors сбрасывает счетчики ошибок: одному провайдеру или всем
func (o *Orchestrator) ResetErrors(provider string) {
	if provider == "" {
		o.manager.ResetAll()
		return
	}
	o.manager.Reset(provider)
}

func (o *Orchestrator) providerNames() []string {
	names := make([]string, 0, len(o.adapters))
	for name := range o.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// persist пишет отчет в sink. Отказ sink логируется, вызов не валит.
func (o *Orchestrator) persist(report *domain.ConsolidatedReport) {
	if o.sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name, err := o.sink.Save(ctx, report)
	if err != nil {
		o.logger.Error("report persistence failed", zap.Error(err))
		return
	}
	o.logger.Debug("report persisted", zap.String("name", name))
}

func cacheKey(provider, query string) string {
	return provider + ":" + query
}

// RotatingSource - CandidateSource поверх ротации ключей: каждый
// запрос страницы идет через свежевыбранный ключ провайдера.
type RotatingSource struct {
	Provider string
	Manager  *rotation.Manager
	Client   search.SearchClient
	Logger   *zap.Logger
}

func (r *RotatingSource) Candidates(ctx context.Context, query string, page, limit int) ([]search.SearchResult, error) {
	cred, ok := r.Manager.Select(r.Provider)
	if !ok {
		return nil, nil // не сконфигурирован - пустая выдача, цикл завершится
	}

	resp, err := r.Client.Search(ctx, search.SearchRequest{
		APIKey:     cred.Key,
		Query:      query,
		Page:       page,
		MaxResults: limit,
	})
	if err != nil {
		if errors.Is(err, search.ErrEmptyResults) {
			r.Manager.RecordSuccess(r.Provider, cred)
			return nil, nil
		}
		r.Manager.RecordFailure(r.Provider, cred, search.Classify(err))
		return nil, err
	}

	r.Manager.RecordSuccess(r.Provider, cred)
	return resp.Results, nil
}
