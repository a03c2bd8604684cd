package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
http:
  addr: ":9090"
auth:
  jwt_access_ttl: 30m
  allowed_domains:
    - student.example.edu
matching:
  candidate_limit: 20
  like_rate_per_minute: 10
chat:
  page_size: 25
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Auth.JWTAccessTTL.String() != "30m0s" {
		t.Fatalf("unexpected access ttl: %s", cfg.Auth.JWTAccessTTL)
	}
	if len(cfg.Auth.AllowedDomains) != 1 || cfg.Auth.AllowedDomains[0] != "student.example.edu" {
		t.Fatalf("unexpected allowed domains: %v", cfg.Auth.AllowedDomains)
	}
	if cfg.Matching.CandidateLimit != 20 {
		t.Fatalf("unexpected candidate limit: %d", cfg.Matching.CandidateLimit)
	}
	if cfg.Matching.LikeRatePerMinute != 10 {
		t.Fatalf("unexpected like rate: %d", cfg.Matching.LikeRatePerMinute)
	}
	if cfg.Chat.PageSize != 25 {
		t.Fatalf("unexpected chat page size: %d", cfg.Chat.PageSize)
	}

	if cfg.Chat.MaxContentLen != 1000 {
		t.Fatalf("chat max_content_len default should stay 1000")
	}
	if cfg.Matching.LikeRatePer10Sec != 12 {
		t.Fatalf("like_rate_per_10sec default should stay 12")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected default addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Matching.CandidateLimit != 10 {
		t.Fatalf("unexpected default candidate limit: %d", cfg.Matching.CandidateLimit)
	}
	if cfg.Chat.PageSize != 50 || cfg.Chat.MaxPageSize != 100 {
		t.Fatalf("unexpected chat page defaults: %d/%d", cfg.Chat.PageSize, cfg.Chat.MaxPageSize)
	}
	if len(cfg.Auth.AllowedDomains) == 0 {
		t.Fatalf("allowed domains default should not be empty")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("AUTH_ALLOWED_DOMAINS", "A.edu, b.edu ,")
	t.Setenv("CHAT_PAGE_SIZE", "75")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":7070" {
		t.Fatalf("unexpected addr: %s", cfg.HTTP.Addr)
	}
	if len(cfg.Auth.AllowedDomains) != 2 || cfg.Auth.AllowedDomains[0] != "a.edu" || cfg.Auth.AllowedDomains[1] != "b.edu" {
		t.Fatalf("unexpected allowed domains: %v", cfg.Auth.AllowedDomains)
	}
	if cfg.Chat.PageSize != 75 {
		t.Fatalf("unexpected chat page size: %d", cfg.Chat.PageSize)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"JWT_SECRET",
		"JWT_ACCESS_TTL",
		"REFRESH_TTL",
		"AUTH_ALLOWED_DOMAINS",
		"MATCHING_CANDIDATE_LIMIT",
		"MATCHING_DEFAULT_RADIUS_KM",
		"LIKE_RATE_PER_MINUTE",
		"LIKE_RATE_PER_10SEC",
		"CHAT_PAGE_SIZE",
		"CHAT_MAX_PAGE_SIZE",
		"CHAT_MAX_CONTENT_LEN",
		"CLEANUP_INTERVAL",
		"CLEANUP_DISLIKE_RETENTION",
		"CLEANUP_INACTIVE_RETENTION",
	} {
		t.Setenv(key, "")
	}
}
