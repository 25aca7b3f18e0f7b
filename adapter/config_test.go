package adapter

import (
	"testing"
	"time"
)

func TestConfigMergeDefaults(t *testing.T) {
	cfg := (&Config{BaseURL: "https://api.example.com"}).MergeDefaults()
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("timeout = %v", cfg.Timeout)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("cache ttl = %v", cfg.CacheTTL)
	}
	if cfg.Namespace == "" {
		t.Fatal("namespace not defaulted")
	}
}

func TestConfigMergeOverlay(t *testing.T) {
	base := DefaultConfig()
	base.BaseURL = "https://api.example.com"
	base.Headers = map[string]string{"Authorization": "Bearer t", "X-A": "1"}

	merged := base.merge(&Config{
		Headers:  map[string]string{"X-A": "2"},
		CacheTTL: time.Minute,
	})
	if merged.BaseURL != base.BaseURL {
		t.Fatal("unset fields must be preserved")
	}
	if merged.Headers["Authorization"] != "Bearer t" || merged.Headers["X-A"] != "2" {
		t.Fatalf("headers = %v", merged.Headers)
	}
	if merged.CacheTTL != time.Minute {
		t.Fatalf("cache ttl = %v", merged.CacheTTL)
	}
	if base.Headers["X-A"] != "1" {
		t.Fatal("merge must not mutate the receiver")
	}
}

func TestValidateRest(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{BaseURL: "https://api.example.com", Timeout: time.Second}, false},
		{"missing url", Config{Timeout: time.Second}, true},
		{"bad scheme", Config{BaseURL: "ftp://x", Timeout: time.Second}, true},
		{"zero timeout", Config{BaseURL: "https://x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateRest()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
