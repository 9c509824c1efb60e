package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{input: "a,b,c", want: []string{"a", "b", "c"}},
		{input: " a , ,b ", want: []string{"a", "b"}},
		{input: "", want: []string{}},
	}

	for _, tt := range tests {
		if got := parseCSV(tt.input); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("parseCSV(%q) = %#v, want %#v", tt.input, got, tt.want)
		}
	}
}

func TestOrchestratorDefaults(t *testing.T) {
	var cfg OrchestratorConfig

	if got := cfg.HopBudgetOrDefault(); got != DefaultHopBudget {
		t.Fatalf("hop budget = %d, want %d", got, DefaultHopBudget)
	}
	if got := cfg.DedupCapacityOrDefault(); got != DefaultDedupCapacity {
		t.Fatalf("dedup capacity = %d, want %d", got, DefaultDedupCapacity)
	}
	if got := cfg.MenuRowLimitOrDefault(); got != DefaultMenuRowLimit {
		t.Fatalf("menu row limit = %d, want %d", got, DefaultMenuRowLimit)
	}

	cfg = OrchestratorConfig{HopBudget: 4, HandlerTimeoutSeconds: 7}
	if got := cfg.HopBudgetOrDefault(); got != 4 {
		t.Fatalf("hop budget = %d, want 4", got)
	}
	if got := cfg.HandlerTimeoutOrDefault(); got != 7 {
		t.Fatalf("handler timeout = %d, want 7", got)
	}
}

func TestLoadConfigAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"channels": {"telegram": {"enabled": true, "token": "file-token"}},
		"store": {"backend": "memory"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SAHAYAK_CONFIG", path)
	t.Setenv(envTelegramBotToken, "env-token")
	t.Setenv(envTelegramAllowFrom, "101, 202")
	t.Setenv(envRedisAddress, "localhost:6390")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Channels.Telegram.Token != "env-token" {
		t.Fatalf("telegram token = %q, want env override", cfg.Channels.Telegram.Token)
	}
	if want := []string{"101", "202"}; !reflect.DeepEqual(cfg.Channels.Telegram.AllowFrom, want) {
		t.Fatalf("allow_from = %#v, want %#v", cfg.Channels.Telegram.AllowFrom, want)
	}
	if cfg.Store.Address != "localhost:6390" {
		t.Fatalf("store address = %q, want env override", cfg.Store.Address)
	}
}

func TestFindConfigPathRejectsMissingOverride(t *testing.T) {
	t.Setenv("SAHAYAK_CONFIG", filepath.Join(t.TempDir(), "nope.json"))

	if _, err := findConfigPath(); err == nil {
		t.Fatal("expected error for missing SAHAYAK_CONFIG target")
	}
}
