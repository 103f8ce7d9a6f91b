package config

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr error
	}{
		{
			name:    "valid defaults",
			envVars: map[string]string{},
			wantErr: nil,
		},
		{
			name: "postgres sink without database url",
			envVars: map[string]string{
				"SINK_TYPE": "postgres",
			},
			wantErr: ErrMissingDB,
		},
		{
			name: "postgres sink with database url",
			envVars: map[string]string{
				"SINK_TYPE":    "postgres",
				"DATABASE_URL": "postgres://localhost:5432/test",
			},
			wantErr: nil,
		},
		{
			name: "unknown sink type",
			envVars: map[string]string{
				"SINK_TYPE": "s3",
			},
			wantErr: ErrInvalidSinkType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()

			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}
			defer clearEnvVars()

			cfg, err := Load()

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("Load() unexpected error = %v", err)
				return
			}

			if cfg == nil {
				t.Error("Load() returned nil config")
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %v, want %v", cfg.Log.Level, "info")
	}
	if cfg.Aggregation.CallTimeout.Seconds() != 300 {
		t.Errorf("Aggregation.CallTimeout = %v, want 300s", cfg.Aggregation.CallTimeout)
	}
	if cfg.Collector.TargetBytes != 500_000 {
		t.Errorf("Collector.TargetBytes = %v, want 500000", cfg.Collector.TargetBytes)
	}
	if cfg.Collector.PageLimit != 50 {
		t.Errorf("Collector.PageLimit = %v, want 50", cfg.Collector.PageLimit)
	}
	if cfg.Collector.BatchSize != 10 {
		t.Errorf("Collector.BatchSize = %v, want 10", cfg.Collector.BatchSize)
	}
	if cfg.Rotation.UnhealthyThreshold != 5 {
		t.Errorf("Rotation.UnhealthyThreshold = %v, want 5", cfg.Rotation.UnhealthyThreshold)
	}
	if cfg.Rotation.RateLimitCooldown.Seconds() != 300 {
		t.Errorf("Rotation.RateLimitCooldown = %v, want 300s", cfg.Rotation.RateLimitCooldown)
	}
	if cfg.Rotation.QuotaCooldown.Seconds() != 3600 {
		t.Errorf("Rotation.QuotaCooldown = %v, want 3600s", cfg.Rotation.QuotaCooldown)
	}
	if cfg.Sink.Type != "file" {
		t.Errorf("Sink.Type = %v, want file", cfg.Sink.Type)
	}
}

func TestLoadProviderKeys(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    []string
	}{
		{
			name:    "no keys configured",
			envVars: map[string]string{},
			want:    nil,
		},
		{
			name: "bare key only",
			envVars: map[string]string{
				"TAVILY_API_KEY": "tvly-base",
			},
			want: []string{"tvly-base"},
		},
		{
			name: "numbered keys with gap",
			envVars: map[string]string{
				"TAVILY_API_KEY_1": "tvly-one",
				"TAVILY_API_KEY_3": "tvly-three",
			},
			want: []string{"tvly-one", "tvly-three"},
		},
		{
			name: "bare plus numbered, duplicates collapsed",
			envVars: map[string]string{
				"TAVILY_API_KEY":   "tvly-base",
				"TAVILY_API_KEY_1": "tvly-base",
				"TAVILY_API_KEY_2": "tvly-two",
			},
			want: []string{"tvly-base", "tvly-two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}
			defer clearEnvVars()

			got := loadProviderKeys("TAVILY_API_KEY")
			if len(got) != len(tt.want) {
				t.Fatalf("loadProviderKeys() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("loadProviderKeys()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGetEnvIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		envValue   string
		defaultVal int
		want       int
	}{
		{"valid int", "42", 10, 42},
		{"empty string", "", 10, 10},
		{"invalid int", "abc", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_INT", tt.envValue)
			defer os.Unsetenv("TEST_INT")

			got := getEnvIntOrDefault("TEST_INT", tt.defaultVal)
			if got != tt.want {
				t.Errorf("getEnvIntOrDefault() = %v, want %v", got, tt.want)
			}
		})
	}
}

func clearEnvVars() {
	envVars := []string{
		"HTTP_ADDR",
		"DATABASE_URL",
		"SINK_TYPE",
		"SINK_PATH",
		"LOG_LEVEL",
		"CALL_TIMEOUT_SEC",
		"CACHE_TTL_SEC",
		"RATE_LIMIT_PER_MINUTE",
		"COLLECT_TARGET_BYTES",
		"COLLECT_PAGE_LIMIT",
		"COLLECT_PAGE_SIZE",
		"COLLECT_BATCH_SIZE",
		"COLLECT_PAGE_DELAY_SEC",
		"KEY_UNHEALTHY_THRESHOLD",
		"RATE_LIMIT_COOLDOWN_SEC",
		"QUOTA_COOLDOWN_SEC",
		"GENERIC_COOLDOWN_SEC",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
	for _, prefix := range []string{"TAVILY_API_KEY", "EXA_API_KEY", "SERPER_API_KEY"} {
		os.Unsetenv(prefix)
		for i := 1; i <= maxNumberedKeys; i++ {
			os.Unsetenv(fmt.Sprintf("%s_%d", prefix, i))
		}
	}
}
