package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backends accepted by DATA_BACKEND.
const (
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port           string
	RequestTimeout time.Duration

	// Backend selection
	DataBackend   string
	MemorySeedDir string

	// Google Sheets (service account)
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Write journal; empty disables it
	JournalDBPath string

	// AMQP; empty URL disables event publishing
	AMQPURL      string
	AMQPExchange string

	LogLevel string
}

var defaults = map[string]any{
	"port":                        "8081",
	"request_timeout":             "30s",
	"data_backend":                BackendMemory,
	"memory_seed_dir":             "",
	"google_spreadsheet_id":       "",
	"google_service_account_json": "",
	"google_service_account_file": "",
	// Picked up when GOOGLE_SERVICE_ACCOUNT_FILE is unset.
	"google_application_credentials": "",
	"journal_db_path":                "",
	"amqp_url":                       "",
	"amqp_exchange":                  "jizhang",
	"log_level":                      "info",
}

// Load reads configuration from the environment, falling back to an optional
// jizhang.yaml in the working directory.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit configuration file. Environment variables
// take precedence over file values.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("jizhang")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		Port:           v.GetString("port"),
		RequestTimeout: getDuration(v, "request_timeout", 30*time.Second),

		DataBackend:   strings.ToLower(v.GetString("data_backend")),
		MemorySeedDir: v.GetString("memory_seed_dir"),

		GoogleSpreadsheetID:      v.GetString("google_spreadsheet_id"),
		GoogleServiceAccountJSON: v.GetString("google_service_account_json"),
		GoogleServiceAccountFile: v.GetString("google_service_account_file"),

		JournalDBPath: v.GetString("journal_db_path"),

		AMQPURL:      v.GetString("amqp_url"),
		AMQPExchange: v.GetString("amqp_exchange"),

		LogLevel: strings.ToLower(v.GetString("log_level")),
	}
	if cfg.GoogleServiceAccountFile == "" {
		cfg.GoogleServiceAccountFile = v.GetString("google_application_credentials")
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RequestTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be at least 1 second", c.RequestTimeout))
	} else if c.RequestTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be at most 5 minutes", c.RequestTimeout))
	}

	switch c.DataBackend {
	case BackendMemory:
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if !hasJSON && hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, []string{BackendMemory, BackendSheets}))
	}

	if c.JournalDBPath != "" {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.JournalDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create journal database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// getDuration falls back to def when the value does not parse.
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(v.GetString(key)); err == nil {
		return d
	}
	return def
}
