package gwconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level, got %q", cfg.LogLevel)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	yaml := "env: production\nlog_level: warn\nrate_limit_rpm: 120\nrate_limit_burst: 30\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "production" || cfg.LogLevel != "warn" {
		t.Fatalf("expected YAML overrides applied, got env=%q log_level=%q", cfg.Env, cfg.LogLevel)
	}
	if cfg.RateLimitRPM != 120 || cfg.RateLimitBurst != 30 {
		t.Fatalf("expected rate limit overrides applied, got rpm=%v burst=%v", cfg.RateLimitRPM, cfg.RateLimitBurst)
	}
	// Untouched keys keep their defaults.
	if cfg.SessionTTLSeconds != 3600 {
		t.Fatalf("expected default session ttl to survive, got %d", cfg.SessionTTLSeconds)
	}
}

func TestLoad_EnvOverridesWinOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte("log_level: warn\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(EnvPrefix+"LOG_LEVEL", "debug")
	t.Setenv(EnvPrefix+"MAX_TOOL_ITERATIONS", "3")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected env override to win, got %q", cfg.LogLevel)
	}
	if cfg.MaxToolIterations != 3 {
		t.Fatalf("expected env override for max tool iterations, got %d", cfg.MaxToolIterations)
	}
}

func TestLoad_ProviderAPIKeysCollectedByConventionalEnvName(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-openai")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), []string{"openai", "anthropic", "gemini"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ProviderAPIKeys["openai"] != "sk-test-openai" {
		t.Fatalf("expected openai key collected, got %+v", cfg.ProviderAPIKeys)
	}
	if _, ok := cfg.ProviderAPIKeys["anthropic"]; ok {
		t.Fatalf("expected empty-valued env var to be absent, got %+v", cfg.ProviderAPIKeys)
	}
	if _, ok := cfg.ProviderAPIKeys["gemini"]; ok {
		t.Fatalf("expected unset provider to be absent, got %+v", cfg.ProviderAPIKeys)
	}
}

func TestValidate_RejectsNonPositiveRateLimit(t *testing.T) {
	cfg := Default()
	cfg.RateLimitRPM = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero rate_limit_rpm")
	}
}

func TestValidate_RejectsCMSEnabledWithoutURL(t *testing.T) {
	cfg := Default()
	cfg.CMSEnabled = true
	cfg.CMSURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when cms_enabled but cms_url is empty")
	}
}

func TestSessionTTL_ConvertsSecondsToDuration(t *testing.T) {
	cfg := Default()
	cfg.SessionTTLSeconds = 120
	if cfg.SessionTTL().Seconds() != 120 {
		t.Fatalf("expected 120s duration, got %v", cfg.SessionTTL())
	}
}
