// =============================================================================
// Ticket Ledger Export - Configuration Module
// =============================================================================
//
// This module loads the export settings from a YAML file, applies environment
// overrides and fills in defaults. Command line flags are merged on top by the
// cmd package, which then calls Validate once more.
//
// PRECEDENCE (lowest to highest):
//   1. Built-in defaults (applyDefaults)
//   2. The YAML file given with --config
//   3. Environment variables, also read from a .env file
//   4. Command line flags
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a setting has an unusable value.
var ErrInvalidConfig = errors.New("invalid configuration")

// Output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds every setting of an export run.
type Config struct {
	// Accounts are the ledger accounts (Artskonto) used for postings.
	Accounts Accounts `yaml:"accounts"`

	// Organizers limits the export to events of these organizer slugs.
	// An empty list exports all organizers.
	Organizers []string `yaml:"organizers"`

	// Providers names the payment providers of card and cash payments.
	Providers Providers `yaml:"providers"`

	// Grouping is one of "ungrouped", "line" or "grouped".
	// Default: "line"
	Grouping string `yaml:"grouping"`

	// Locale is the BCP 47 language of amounts and texts.
	// Default: "da"
	Locale string `yaml:"locale"`

	// ThousandsSeparator enables grouping separators in amounts.
	// Default: false
	ThousandsSeparator bool `yaml:"thousands_separator"`

	// MetaPSPKey is the event meta property holding the PSP element.
	// Default: "PSP"
	MetaPSPKey string `yaml:"meta_psp_key"`

	// CardTypeInfoKey is the key of the card type in the payment info JSON.
	// Default: "card_type"
	CardTypeInfoKey string `yaml:"card_type_info_key"`

	Database Database `yaml:"database"`
	Delivery Delivery `yaml:"delivery"`
	SMTP     SMTP     `yaml:"smtp"`

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`
}

// Accounts holds the three ledger accounts. All of them are required; the
// exporter refuses to start without them.
type Accounts struct {
	Debit  string `yaml:"debit"`
	Credit string `yaml:"credit"`
	Cash   string `yaml:"cash"`
}

// Providers holds payment provider identifiers.
type Providers struct {
	// Card defaults to "dibs".
	Card string `yaml:"card"`

	// Cash defaults to "cash".
	Cash string `yaml:"cash"`
}

// Database selects the transaction source. Fixture wins over URL.
type Database struct {
	// URL is a PostgreSQL connection string. Env: DATABASE_URL
	URL string `yaml:"url"`

	// Fixture is a transaction CSV file replayed instead of the database.
	Fixture string `yaml:"fixture"`
}

// Delivery controls where the finished export goes.
type Delivery struct {
	// Recipients receive the export by email. Without recipients the export
	// is written to OutputDir, or to stdout when OutputDir is empty.
	Recipients []string `yaml:"recipients"`

	// Sender is the From address of export emails.
	Sender string `yaml:"sender"`

	// SiteName is used in the email subject.
	// Default: "pretix"
	SiteName string `yaml:"site_name"`

	// FilenamePrefix is the first part of attachment and file names.
	// Default: "eventbillet"
	FilenamePrefix string `yaml:"filename_prefix"`

	// OutputDir receives the export file.
	OutputDir string `yaml:"output_dir"`

	// Format is "csv" or "xlsx".
	// Default: "csv"
	Format string `yaml:"format"`
}

// SMTP holds the mail server settings. Env: SMTP_HOST, SMTP_PORT,
// SMTP_USERNAME, SMTP_PASSWORD
type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load reads the configuration.
//
// PARAMETERS:
//   - configPath: The YAML file to read. Empty means defaults and
//     environment only.
//
// RETURNS:
//   - The configuration with environment overrides and defaults applied.
//   - An error if the file cannot be read, parsed or validated.
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&config, os.LookupEnv); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyEnvOverrides replaces connection settings with environment values.
func applyEnvOverrides(config *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		config.Database.URL = v
	}
	if v, ok := lookup("SMTP_HOST"); ok && v != "" {
		config.SMTP.Host = v
	}
	if v, ok := lookup("SMTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: SMTP_PORT %q is not a number", ErrInvalidConfig, v)
		}
		config.SMTP.Port = port
	}
	if v, ok := lookup("SMTP_USERNAME"); ok && v != "" {
		config.SMTP.Username = v
	}
	if v, ok := lookup("SMTP_PASSWORD"); ok && v != "" {
		config.SMTP.Password = v
	}
	return nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(config *Config) {
	if config.Providers.Card == "" {
		config.Providers.Card = "dibs"
	}
	if config.Providers.Cash == "" {
		config.Providers.Cash = "cash"
	}
	if config.Grouping == "" {
		config.Grouping = "line"
	}
	if config.Locale == "" {
		config.Locale = "da"
	}
	if config.MetaPSPKey == "" {
		config.MetaPSPKey = "PSP"
	}
	if config.CardTypeInfoKey == "" {
		config.CardTypeInfoKey = "card_type"
	}
	if config.Delivery.SiteName == "" {
		config.Delivery.SiteName = "pretix"
	}
	if config.Delivery.FilenamePrefix == "" {
		config.Delivery.FilenamePrefix = "eventbillet"
	}
	if config.Delivery.Format == "" {
		config.Delivery.Format = FormatCSV
	}
	if config.SMTP.Port == 0 {
		config.SMTP.Port = 587
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
}

// Validate checks values that can be checked without touching the network.
// Missing accounts are reported by the exporter.
func (c *Config) Validate() error {
	switch c.Delivery.Format {
	case FormatCSV, FormatXLSX:
	default:
		return fmt.Errorf("%w: unknown format %q (want %s or %s)", ErrInvalidConfig, c.Delivery.Format, FormatCSV, FormatXLSX)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}

	if c.SMTP.Port < 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("%w: smtp port %d out of range", ErrInvalidConfig, c.SMTP.Port)
	}

	if len(c.Delivery.Recipients) > 0 {
		if c.Delivery.Sender == "" {
			return fmt.Errorf("%w: recipients given without a sender", ErrInvalidConfig)
		}
		if c.SMTP.Host == "" {
			return fmt.Errorf("%w: recipients given without an smtp host", ErrInvalidConfig)
		}
	}

	return nil
}

// Redacted returns a copy of the configuration that is safe to print.
func (c *Config) Redacted() Config {
	redacted := *c

	if redacted.SMTP.Password != "" {
		redacted.SMTP.Password = "********"
	}
	if u, err := url.Parse(redacted.Database.URL); err == nil && u.User != nil {
		redacted.Database.URL = u.Redacted()
	}

	return redacted
}

// Dump renders the redacted configuration as YAML.
func (c *Config) Dump() (string, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}
