package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/charlaomota/V360/internal/search"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.exa.ai"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type exaRequest struct {
	Query      string      `json:"query"`
	NumResults int         `json:"numResults,omitempty"`
	Contents   exaContents `json:"contents"`
}

type exaContents struct {
	Text       bool `json:"text"`
	Highlights bool `json:"highlights"`
}

type exaResponse struct {
	Results []exaResult `json:"results"`
}

type exaResult struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Text          string   `json:"text"`
	Highlights    []string `json:"highlights"`
	Score         float64  `json:"score"`
	PublishedDate string   `json:"publishedDate"`
}

func (c *Client) Search(ctx context.Context, req search.SearchRequest) (*search.SearchResponse, error) {
	if req.APIKey == "" {
		return nil, search.ErrUnauthorized
	}
	if req.MaxResults == 0 {
		req.MaxResults = 10
	}

	body, err := json.Marshal(exaRequest{
		Query:      req.Query,
		NumResults: req.MaxResults,
		Contents:   exaContents{Text: true, Highlights: true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", req.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, search.ErrUnauthorized
	case http.StatusPaymentRequired, http.StatusForbidden:
		return nil, search.ErrQuotaExceeded
	case http.StatusTooManyRequests:
		return nil, search.ErrRateLimit
	case http.StatusBadRequest:
		return nil, search.ErrInvalidRequest
	default:
		return nil, fmt.Errorf("%w: status %d", search.ErrSearchFailed, resp.StatusCode)
	}

	var exaResp exaResponse
	if err := json.Unmarshal(respBody, &exaResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(exaResp.Results) == 0 {
		return nil, search.ErrEmptyResults
	}

	results := make([]search.SearchResult, len(exaResp.Results))
	for i, r := range exaResp.Results {
		text := r.Text
		if len(text) > 1000 {
			text = text[:1000]
		}
		snippet := ""
		if len(r.Highlights) > 0 {
			snippet = r.Highlights[0]
		}
		results[i] = search.SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Content:       text,
			Snippet:       snippet,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
		}
	}

	return &search.SearchResponse{
		Query:   req.Query,
		Results: results,
	}, nil
}
