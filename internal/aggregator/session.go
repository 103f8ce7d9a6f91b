package aggregator

import (
	"sync"
	"time"

	"github.com/charlaomota/V360/internal/domain"
)

// MinEntryBytes отсекает пустые и шаблонные страницы
const MinEntryBytes = 100

// Session - эфемерное состояние одного вызова агрегации.
// Живет от начала вызова до сборки отчета, между вызовами не шарится.
// Все мутации сериализованы одним мьютексом: записи приходят
// из параллельных задач extraction и fan-out поиска.
type Session struct {
	Query          string
	ProductContext string
	StartedAt      time.Time

	mu          sync.Mutex
	entries     []domain.ContentEntry
	accumulated int
	results     map[string]domain.ProviderResult
	failures    []domain.ProviderFailure
}

func NewSession(query, productContext string) *Session {
	return &Session{
		Query:          query,
		ProductContext: productContext,
		StartedAt:      time.Now(),
		results:        make(map[string]domain.ProviderResult),
	}
}

// Add принимает запись если ее размер выше порога.
// Возвращает false для отфильтрованных записей - они не идут в бюджет.
func (s *Session) Add(entry domain.ContentEntry) bool {
	if entry.SizeBytes <= MinEntryBytes {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	s.accumulated += entry.SizeBytes
	return true
}

// CollectedSize - текущий аккумулятор байтов.
// Инвариант: всегда равен сумме размеров принятых записей.
func (s *Session) CollectedSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accumulated
}

func (s *Session) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Session) SetProviderResult(provider string, result domain.ProviderResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[provider] = result
}

func (s *Session) AddFailure(failure domain.ProviderFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure)
}

// Report собирает консолидированный отчет. Порядок записей -
// порядок принятия (first-accepted-first), ничего не выбрасывается.
func (s *Session) Report(status map[string]domain.ProviderStatus, stopped domain.StopReason, pages int) *domain.ConsolidatedReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]domain.ContentEntry, len(s.entries))
	copy(entries, s.entries)

	perProvider := make(map[string]domain.ProviderResult, len(s.results))
	for k, v := range s.results {
		perProvider[k] = v
	}

	failures := make([]domain.ProviderFailure, len(s.failures))
	copy(failures, s.failures)

	return &domain.ConsolidatedReport{
		Query:          s.Query,
		ProductContext: s.ProductContext,
		Timestamp:      time.Now(),
		PerProvider:    perProvider,
		Failures:       failures,
		ProviderStatus: status,
		CollectedSize:  s.accumulated,
		Entries:        entries,
		Stopped:        stopped,
		PagesFetched:   pages,
		Success:        true,
	}
}
