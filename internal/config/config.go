// Package config holds the Feishu application settings for the importer.
// Values come from environment variables (a .env file is honored by the CLI
// entry point) and are validated before any network call is attempted.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/zhanglc/feishu-bill-importer/internal/feishu"
)

// Config holds the Feishu credentials and table identifiers.
type Config struct {
	// AppID and AppSecret identify the Feishu application used for the
	// tenant access token exchange.
	AppID     string
	AppSecret string

	// AppToken addresses the Bitable document holding both tables.
	AppToken string

	// BillingTableID is the table receiving imported ledger rows.
	BillingTableID string

	// BatchNumberTableID is the table receiving one marker row per run.
	BatchNumberTableID string

	// BaseURL overrides the Feishu API endpoint, mainly for tests.
	BaseURL string
}

// ConfigError reports missing required settings before any network call.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: missing required settings: %s", strings.Join(e.Missing, ", "))
}

// Load reads configuration from environment variables. It does not fail on
// missing credentials; the dry-run path works without any of them. Call
// RequireCredentials before talking to Feishu.
func Load() *Config {
	cfg := &Config{
		AppID:              os.Getenv("FEISHU_APP_ID"),
		AppSecret:          os.Getenv("FEISHU_APP_SECRET"),
		AppToken:           os.Getenv("FEISHU_APP_TOKEN"),
		BillingTableID:     os.Getenv("FEISHU_TABLE_ID_BILLING"),
		BatchNumberTableID: os.Getenv("FEISHU_TABLE_ID_BATCH_NUMBER"),
		BaseURL:            os.Getenv("FEISHU_BASE_URL"),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = feishu.DefaultBaseURL
	}
	return cfg
}

// RequireCredentials verifies that app id, app secret and app token are all
// present. Returns a *ConfigError naming every missing variable.
func (c *Config) RequireCredentials() error {
	var missing []string
	if c.AppID == "" {
		missing = append(missing, "FEISHU_APP_ID")
	}
	if c.AppSecret == "" {
		missing = append(missing, "FEISHU_APP_SECRET")
	}
	if c.AppToken == "" {
		missing = append(missing, "FEISHU_APP_TOKEN")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// String returns a loggable representation with the secret masked.
func (c *Config) String() string {
	secret := ""
	if c.AppSecret != "" {
		secret = "[MASKED]"
	}
	return fmt.Sprintf("Config{AppID: %q, AppSecret: %s, AppToken: %q, BillingTableID: %q, BatchNumberTableID: %q, BaseURL: %q}",
		c.AppID, secret, c.AppToken, c.BillingTableID, c.BatchNumberTableID, c.BaseURL)
}
