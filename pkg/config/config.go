package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
	envWhatsAppToken     = "WHATSAPP_TOKEN"
	envWhatsAppPhoneID   = "WHATSAPP_PHONE_NUMBER_ID"
	envWhatsAppVerify    = "WHATSAPP_VERIFY_TOKEN"
	envRedisAddress      = "SAHAYAK_REDIS_ADDR"
	envRedisPassword     = "SAHAYAK_REDIS_PASSWORD"
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Channels     ChannelsConfig     `json:"channels"`
	Provider     ProviderConfig     `json:"provider"`
	Store        StoreConfig        `json:"store"`
	Directory    DirectoryConfig    `json:"directory"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Gateway      GatewayConfig      `json:"gateway"`
	Logging      LoggingConfig      `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

// TelegramConfig configures the Telegram long-polling channel.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allow_from"`
}

// WhatsAppConfig configures the Meta Graph webhook channel.
type WhatsAppConfig struct {
	Enabled       bool   `json:"enabled"`
	Token         string `json:"token"`
	PhoneNumberID string `json:"phone_number_id"`
	VerifyToken   string `json:"verify_token"`
	ListenAddress string `json:"listen_address"`
	GraphBaseURL  string `json:"graph_base_url,omitempty"`
}

// ProviderConfig configures the LLM completion backend.
type ProviderConfig struct {
	Name                  string  `json:"name"`
	Model                 string  `json:"model"`
	ClassifierModel       string  `json:"classifier_model,omitempty"`
	BaseURL               string  `json:"base_url,omitempty"`
	Organization          string  `json:"organization,omitempty"`
	Project               string  `json:"project,omitempty"`
	MaxTokens             int     `json:"max_tokens,omitempty"`
	Temperature           float64 `json:"temperature,omitempty"`
	RequestTimeoutSeconds int     `json:"request_timeout_seconds,omitempty"`
}

// StoreConfig selects and configures the conversation-state backend.
type StoreConfig struct {
	Backend    string `json:"backend"`
	Address    string `json:"address,omitempty"`
	Password   string `json:"password,omitempty"`
	DB         int    `json:"db,omitempty"`
	KeyPrefix  string `json:"key_prefix,omitempty"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

// DirectoryConfig points at the location hierarchy data file.
type DirectoryConfig struct {
	Path string `json:"path"`
}

// PathOrDefault returns the configured hierarchy file location.
func (c DirectoryConfig) PathOrDefault() string {
	if strings.TrimSpace(c.Path) != "" {
		return c.Path
	}
	return "data/locations.json"
}

// OrchestratorConfig bounds turn execution.
type OrchestratorConfig struct {
	HopBudget             int `json:"hop_budget,omitempty"`
	HandlerTimeoutSeconds int `json:"handler_timeout_seconds,omitempty"`
	DedupCapacity         int `json:"dedup_capacity,omitempty"`
	DedupTTLSeconds       int `json:"dedup_ttl_seconds,omitempty"`
	MenuRowLimit          int `json:"menu_row_limit,omitempty"`
}

// GatewayConfig configures the status/metrics HTTP server.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Defaults applied when config.json leaves orchestrator limits unset.
const (
	DefaultHopBudget      = 10
	DefaultHandlerTimeout = 45
	DefaultDedupCapacity  = 500
	DefaultDedupTTL       = 20 * 60
	DefaultMenuRowLimit   = 10
)

// HopBudgetOrDefault returns the configured hop budget or the default bound.
func (c OrchestratorConfig) HopBudgetOrDefault() int {
	if c.HopBudget > 0 {
		return c.HopBudget
	}
	return DefaultHopBudget
}

// HandlerTimeoutOrDefault returns the handler timeout in seconds.
func (c OrchestratorConfig) HandlerTimeoutOrDefault() int {
	if c.HandlerTimeoutSeconds > 0 {
		return c.HandlerTimeoutSeconds
	}
	return DefaultHandlerTimeout
}

// DedupCapacityOrDefault returns the dedup cache entry bound.
func (c OrchestratorConfig) DedupCapacityOrDefault() int {
	if c.DedupCapacity > 0 {
		return c.DedupCapacity
	}
	return DefaultDedupCapacity
}

// DedupTTLOrDefault returns the dedup window in seconds.
func (c OrchestratorConfig) DedupTTLOrDefault() int {
	if c.DedupTTLSeconds > 0 {
		return c.DedupTTLSeconds
	}
	return DefaultDedupTTL
}

// MenuRowLimitOrDefault returns the maximum rows per menu section.
func (c OrchestratorConfig) MenuRowLimitOrDefault() int {
	if c.MenuRowLimit > 0 {
		return c.MenuRowLimit
	}
	return DefaultMenuRowLimit
}

// LoadConfig resolves config.json, unmarshals it, and applies environment overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}

	if token := strings.TrimSpace(os.Getenv(envWhatsAppToken)); token != "" {
		cfg.Channels.WhatsApp.Token = token
	}
	if phoneID := strings.TrimSpace(os.Getenv(envWhatsAppPhoneID)); phoneID != "" {
		cfg.Channels.WhatsApp.PhoneNumberID = phoneID
	}
	if verify := strings.TrimSpace(os.Getenv(envWhatsAppVerify)); verify != "" {
		cfg.Channels.WhatsApp.VerifyToken = verify
	}

	if addr := strings.TrimSpace(os.Getenv(envRedisAddress)); addr != "" {
		cfg.Store.Address = addr
	}
	if password := strings.TrimSpace(os.Getenv(envRedisPassword)); password != "" {
		cfg.Store.Password = password
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is SAHAYAK_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv("SAHAYAK_CONFIG")); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("SAHAYAK_CONFIG does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
