package tavily

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charlaomota/V360/internal/search"
)

func TestClient_Search(t *testing.T) {
	tests := []struct {
		name       string
		response   interface{}
		statusCode int
		wantErr    error
	}{
		{
			name: "successful search",
			response: tavilyResponse{
				Query: "test query",
				Results: []tavilyResult{
					{Title: "Test", URL: "https://example.com", Content: "Content", Score: 0.9},
				},
				ResponseTime: 1.5,
			},
			statusCode: http.StatusOK,
			wantErr:    nil,
		},
		{
			name: "empty results",
			response: tavilyResponse{
				Query:   "test query",
				Results: []tavilyResult{},
			},
			statusCode: http.StatusOK,
			wantErr:    search.ErrEmptyResults,
		},
		{
			name:       "unauthorized",
			response:   map[string]string{"error": "unauthorized"},
			statusCode: http.StatusUnauthorized,
			wantErr:    search.ErrUnauthorized,
		},
		{
			name:       "quota exceeded",
			response:   map[string]string{"error": "plan limit reached"},
			statusCode: http.StatusForbidden,
			wantErr:    search.ErrQuotaExceeded,
		},
		{
			name:       "rate limit",
			response:   map[string]string{"error": "rate limit"},
			statusCode: http.StatusTooManyRequests,
			wantErr:    search.ErrRateLimit,
		},
		{
			name:       "bad request",
			response:   map[string]string{"error": "bad request"},
			statusCode: http.StatusBadRequest,
			wantErr:    search.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			client := New(Config{
				BaseURL: server.URL,
				Timeout: 5 * time.Second,
			}, nil)

			req := search.SearchRequest{
				APIKey:     "test-key",
				Query:      "test query",
				MaxResults: 5,
			}

			resp, err := client.Search(context.Background(), req)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Search() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("Search() unexpected error = %v", err)
				return
			}

			if resp == nil {
				t.Error("Search() returned nil response")
			}
		})
	}
}

func TestClient_Search_KeyPerCall(t *testing.T) {
	var receivedKeys []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tavilyRequest
		json.NewDecoder(r.Body).Decode(&req)
		receivedKeys = append(receivedKeys, req.APIKey)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tavilyResponse{
			Query:   req.Query,
			Results: []tavilyResult{{Title: "Test", URL: "https://example.com", Content: "Content"}},
		})
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL}, nil)

	for _, key := range []string{"tvly-key-1", "tvly-key-2"} {
		_, err := client.Search(context.Background(), search.SearchRequest{
			APIKey: key,
			Query:  "q",
		})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
	}

	if len(receivedKeys) != 2 || receivedKeys[0] != "tvly-key-1" || receivedKeys[1] != "tvly-key-2" {
		t.Errorf("received keys = %v, want rotation keys passed through per call", receivedKeys)
	}
}

func TestClient_Search_MissingKey(t *testing.T) {
	client := New(Config{BaseURL: "http://unused"}, nil)

	_, err := client.Search(context.Background(), search.SearchRequest{Query: "q"})
	if !errors.Is(err, search.ErrUnauthorized) {
		t.Errorf("Search() without key error = %v, want ErrUnauthorized", err)
	}
}
