package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"pocketbalance/internal/core"
)

// Backend names accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// AI provider names accepted by AI_PROVIDER.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	// HTTP Server
	Port string
	// gRPC health server; empty disables it
	GRPCAddr string

	// Persistence
	DataBackend  string
	DataDir      string
	SQLiteDBPath string
	StorageKey   string

	Categories core.Categories

	// AI assistance
	AIProvider           string
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIModel          string
	OllamaURL            string
	OllamaModel          string
	AITimeout            time.Duration
	AIMaxConcurrentScans int
	AIRatePerMinute      int
	SuggestionCacheSize  int
	SuggestionCacheTTL   time.Duration

	// AMQP; empty URL disables change events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror (worker only)
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		GRPCAddr: getEnv("GRPC_ADDR", ""),

		DataBackend:  strings.ToLower(getEnv("DATA_BACKEND", BackendFile)),
		DataDir:      getEnv("DATA_DIR", "./data"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/pocketbalance.db"),
		StorageKey:   getEnv("STORAGE_KEY", "pocketbalance-transactions"),

		Categories: core.ParseCategories(os.Getenv("SPENDING_CATEGORIES")),

		AIProvider:           strings.ToLower(getEnv("AI_PROVIDER", ProviderNone)),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:          getEnv("OPENAI_MODEL", ""),
		OllamaURL:            getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:          getEnv("OLLAMA_MODEL", ""),
		AITimeout:            getEnvDuration("AI_TIMEOUT", 60*time.Second),
		AIMaxConcurrentScans: getEnvInt("AI_MAX_CONCURRENT_SCANS", 3),
		AIRatePerMinute:      getEnvInt("AI_RATE_PER_MINUTE", 30),
		SuggestionCacheSize:  getEnvInt("SUGGESTION_CACHE_SIZE", 256),
		SuggestionCacheTTL:   getEnvDuration("SUGGESTION_CACHE_TTL", time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pocketbalance"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "mirror_transactions"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// AIEnabled reports whether a provider is selected.
func (c *Config) AIEnabled() bool {
	return c.AIProvider != "" && c.AIProvider != ProviderNone
}

// AMQPEnabled reports whether change events are published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.GRPCAddr != "" {
		if _, _, err := net.SplitHostPort(c.GRPCAddr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid gRPC address '%s': %v", c.GRPCAddr, err))
		}
	}

	validBackends := []string{BackendMemory, BackendFile, BackendSQLite}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendFile:
		if c.DataDir == "" {
			errors = append(errors, "data directory cannot be empty when using file backend")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if strings.TrimSpace(c.StorageKey) == "" {
		errors = append(errors, "storage key cannot be empty")
	}
	if len(c.Categories) == 0 {
		errors = append(errors, "at least one spending category is required")
	}

	validProviders := []string{ProviderNone, ProviderOpenAI, ProviderOllama}
	if !slices.Contains(validProviders, c.AIProvider) {
		errors = append(errors, fmt.Sprintf("invalid AI provider '%s': must be one of %v", c.AIProvider, validProviders))
	}
	switch c.AIProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errors = append(errors, "OPENAI_API_KEY is required when AI_PROVIDER=openai")
		}
		if c.OpenAIBaseURL != "" {
			if err := validateHTTPURL(c.OpenAIBaseURL); err != nil {
				errors = append(errors, fmt.Sprintf("invalid OpenAI base URL: %v", err))
			}
		}
	case ProviderOllama:
		if err := validateHTTPURL(c.OllamaURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Ollama URL: %v", err))
		}
	}
	if c.AIEnabled() {
		if c.AITimeout < time.Second {
			errors = append(errors, fmt.Sprintf("invalid AI timeout %v: must be at least 1 second", c.AITimeout))
		}
		if c.AIMaxConcurrentScans < 1 {
			errors = append(errors, fmt.Sprintf("invalid max concurrent scans %d: must be at least 1", c.AIMaxConcurrentScans))
		}
		if c.AIRatePerMinute < 1 {
			errors = append(errors, fmt.Sprintf("invalid AI rate %d: must be at least 1 request per minute", c.AIRatePerMinute))
		}
		if c.SuggestionCacheSize < 0 {
			errors = append(errors, fmt.Sprintf("invalid suggestion cache size %d: must not be negative", c.SuggestionCacheSize))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if format := strings.ToLower(c.LogFormat); format != "text" && format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateMirror checks the settings the mirror worker needs on top of
// Validate.
func (c *Config) ValidateMirror() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the mirror worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the mirror worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME cannot be empty")
	}
	if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
		errors = append(errors, "either GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON must be provided")
	}
	if c.GoogleCredentialsFile != "" {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("mirror configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme '%s' must be http or https", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in '%s'", raw)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
