package search

import (
	"context"
	"errors"
	"strings"

	"github.com/charlaomota/V360/internal/domain"
)

var (
	ErrUnauthorized   = errors.New("invalid API key")
	ErrRateLimit      = errors.New("rate limit exceeded")
	ErrQuotaExceeded  = errors.New("quota exceeded")
	ErrInvalidRequest = errors.New("invalid request parameters")
	ErrSearchFailed   = errors.New("search request failed")
	ErrEmptyResults   = errors.New("no results found")
)

type SearchClient interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest - APIKey подставляется движком на каждый вызов
// из ротации, клиенты ключи не хранят
type SearchRequest struct {
	APIKey      string
	Query       string
	MaxResults  int
	Page        int
	SearchDepth string
}

type SearchResponse struct {
	Query        string
	Results      []SearchResult
	ResponseTime float64
}

type SearchResult struct {
	Title         string
	URL           string
	Content       string
	Snippet       string
	Score         float64
	PublishedDate string
}

// Classify сводит ошибку адаптера к классу отказа для backoff.
// ErrEmptyResults отказом не считается и сюда попадать не должен.
func Classify(err error) domain.FailureClass {
	switch {
	case errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrUnauthorized):
		return domain.FailureQuotaExceeded
	case errors.Is(err, ErrRateLimit):
		return domain.FailureRateLimit
	case strings.Contains(strings.ToLower(err.Error()), "rate"):
		return domain.FailureRateLimit
	default:
		return domain.FailureGeneric
	}
}
