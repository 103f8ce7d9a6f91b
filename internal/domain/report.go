package domain

import (
	"regexp"
	"strings"
	"time"
)

const MaxQueryLength = 500

// FailureClass определяет длительность cooldown для ключа
type FailureClass string

const (
	FailureRateLimit     FailureClass = "rate_limit"
	FailureQuotaExceeded FailureClass = "quota_exceeded"
	FailureGeneric       FailureClass = "generic"
)

func (f FailureClass) IsValid() bool {
	switch f {
	case FailureRateLimit, FailureQuotaExceeded, FailureGeneric:
		return true
	}
	return false
}

func (f FailureClass) String() string { return string(f) }

type PoolState string

const (
	PoolHealthy      PoolState = "healthy"
	PoolDegraded     PoolState = "degraded"
	PoolUnconfigured PoolState = "unconfigured"
)

type ProviderStatus struct {
	State         PoolState `json:"state"`
	TotalKeys     int       `json:"total_keys"`
	AvailableKeys int       `json:"available_keys"`
}

// StopReason - почему завершился цикл сбора контента
type StopReason string

const (
	StopBudget    StopReason = "budget"
	StopPageLimit StopReason = "page_limit"
	StopExhausted StopReason = "exhausted"
	StopCanceled  StopReason = "canceled"
)

// ContentEntry - один принятый фрагмент контента
type ContentEntry struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	Snippet     string    `json:"snippet"`
	SizeBytes   int       `json:"size_bytes"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// ProviderResult - результат одного провайдера в fan-out поиске
type ProviderResult struct {
	Provider     string       `json:"provider"`
	KeyUsed      string       `json:"key_used"` // усеченный, полный ключ не светим
	Results      []SearchItem `json:"results"`
	TotalResults int          `json:"total_results"`
	ElapsedMS    int64        `json:"elapsed_ms"`
}

type SearchItem struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}

// ProviderFailure фиксируется в отчете, наружу не пробрасывается
type ProviderFailure struct {
	Provider string       `json:"provider"`
	Class    FailureClass `json:"class"`
	Message  string       `json:"message"`
}

// ConsolidatedReport - итоговый отчет одной агрегации
type ConsolidatedReport struct {
	Query          string                    `json:"query"`
	ProductContext string                    `json:"product_context,omitempty"`
	Timestamp      time.Time                 `json:"timestamp"`
	PerProvider    map[string]ProviderResult `json:"per_provider"`
	Failures       []ProviderFailure         `json:"failures,omitempty"`
	ProviderStatus map[string]ProviderStatus `json:"provider_status"`
	CollectedSize  int                       `json:"collected_size_bytes"`
	Entries        []ContentEntry            `json:"entries"`
	Stopped        StopReason                `json:"stopped,omitempty"`
	PagesFetched   int                       `json:"pages_fetched"`
	Success        bool                      `json:"success"`
}

func ValidateQuery(q string) error {
	q = strings.TrimSpace(q)
	if q == "" {
		return ErrEmptyQuery
	}
	if len(q) > MaxQueryLength {
		return ErrQueryTooLong
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^\w\s-]`)
var spaceRuns = regexp.MustCompile(`[-\s]+`)

// DocumentName строит ключ документа для sink: очищенный запрос + timestamp
func DocumentName(query string, ts time.Time) string {
	safe := unsafeChars.ReplaceAllString(strings.TrimSpace(query), "")
	safe = spaceRuns.ReplaceAllString(safe, "_")
	if len(safe) > 50 {
		safe = safe[:50]
	}
	return "RES_BUSCA_" + safe + "_" + ts.Format("20060102_150405")
}
