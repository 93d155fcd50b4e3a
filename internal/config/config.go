package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Gustavofrb/relatorio-mensal/internal/period"
)

type Config struct {
	// Upstream API
	APIBaseURL string
	APIToken   string
	APITimeout time.Duration

	// Database
	SQLiteDBPath      string
	SQLiteBusyTimeout time.Duration

	// Output
	OutputDir    string
	DefaultMonth string

	// HTTP Server
	Port             string
	RunRateLimit     int
	SummaryCacheTTL  time.Duration
	SummaryCacheSize int

	// Notifications
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	FromEmail        string
	FinanceEmails    []string
	OperationsEmails []string
	SupportEmails    []string
	ITEmails         []string
	LeadershipEmails []string
	SlackWebhookURL  string

	// Enrichment
	OpenAIAPIKey  string
	OpenAIBaseURL string
	LLMModel      string

	// AMQP
	AMQPURL         string
	AMQPExchange    string
	AMQPQueue       string
	AMQPEventsQueue string

	// Scheduler
	ScheduleEnabled  bool
	ScheduleInterval time.Duration
	ScheduleDay      int

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleSheetPrefix        string

	// Logging
	LogLevel string
}

func Load() *Config {
	smtpUser := getEnv("SMTP_USER", "")

	cfg := &Config{
		APIBaseURL: strings.TrimRight(getEnv("API_BASE_URL", "https://desafio-tecnico--tech.vercel.app"), "/"),
		APIToken:   getEnv("API_TOKEN", ""),
		APITimeout: getEnvDuration("API_TIMEOUT", 30*time.Second),

		SQLiteDBPath:      getEnv("SQLITE_DB_PATH", "data/database.sqlite"),
		SQLiteBusyTimeout: getEnvDuration("SQLITE_BUSY_TIMEOUT", 30*time.Second),

		OutputDir:    getEnv("OUTPUT_DIR", "output"),
		DefaultMonth: getEnv("DEFAULT_MONTH", ""),

		Port:             getEnv("PORT", "8000"),
		RunRateLimit:     getEnvInt("RUN_RATE_LIMIT", 6),
		SummaryCacheTTL:  getEnvDuration("SUMMARY_CACHE_TTL", 5*time.Minute),
		SummaryCacheSize: getEnvInt("SUMMARY_CACHE_SIZE", 24),

		SMTPHost:         getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:         getEnvInt("SMTP_PORT", 587),
		SMTPUser:         smtpUser,
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		FromEmail:        getEnv("FROM_EMAIL", smtpUser),
		FinanceEmails:    getEnvList("FINANCE_EMAILS"),
		OperationsEmails: getEnvList("OPERATIONS_EMAILS"),
		SupportEmails:    getEnvList("SUPPORT_EMAILS"),
		ITEmails:         getEnvList("IT_EMAILS"),
		LeadershipEmails: getEnvList("LEADERSHIP_EMAILS"),
		SlackWebhookURL:  getEnv("SLACK_WEBHOOK_URL", ""),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		LLMModel:      getEnv("LLM_MODEL", "gpt-4"),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "fechamento"),
		AMQPQueue:       getEnv("AMQP_QUEUE", "closing_runs"),
		AMQPEventsQueue: getEnv("AMQP_EVENTS_QUEUE", "closing_events"),

		ScheduleEnabled:  getEnvBool("SCHEDULE_ENABLED", false),
		ScheduleInterval: getEnvDuration("SCHEDULE_INTERVAL", time.Hour),
		ScheduleDay:      getEnvInt("SCHEDULE_DAY", 1),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleSheetPrefix:        getEnv("GOOGLE_SHEET_PREFIX", "Fechamento"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// AIEnabled reports whether the LLM-backed enrichment can be used.
func (c *Config) AIEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// SMTPEnabled reports whether email credentials are present.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPUser != "" && c.SMTPPassword != ""
}

// SheetsEnabled reports whether the spreadsheet export is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
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

	// Validate upstream API
	if parsedURL, err := url.Parse(c.APIBaseURL); err != nil || parsedURL.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s'", c.APIBaseURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}
	if c.APITimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be at least 1 second", c.APITimeout))
	}

	// Validate SQLite configuration
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
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
	if c.SQLiteBusyTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid SQLite busy timeout %v: must be at least 1 second", c.SQLiteBusyTimeout))
	}

	if c.OutputDir == "" {
		errors = append(errors, "output directory cannot be empty")
	}

	if c.DefaultMonth != "" {
		if _, err := period.Parse(c.DefaultMonth); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DEFAULT_MONTH '%s': must be YYYY-MM", c.DefaultMonth))
		}
	}

	// Validate server limits
	if c.RunRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid run rate limit %d: must be at least 1", c.RunRateLimit))
	}
	if c.SummaryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheSize))
	}

	// Validate notification recipients
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		errors = append(errors, fmt.Sprintf("invalid SMTP port %d: must be between 1 and 65535", c.SMTPPort))
	}
	validate := validator.New()
	recipients := map[string][]string{
		"FINANCE_EMAILS":    c.FinanceEmails,
		"OPERATIONS_EMAILS": c.OperationsEmails,
		"SUPPORT_EMAILS":    c.SupportEmails,
		"IT_EMAILS":         c.ITEmails,
		"LEADERSHIP_EMAILS": c.LeadershipEmails,
	}
	for _, key := range []string{"FINANCE_EMAILS", "OPERATIONS_EMAILS", "SUPPORT_EMAILS", "IT_EMAILS", "LEADERSHIP_EMAILS"} {
		for _, addr := range recipients[key] {
			if err := validate.Var(addr, "email"); err != nil {
				errors = append(errors, fmt.Sprintf("invalid email '%s' in %s", addr, key))
			}
		}
	}
	if c.FromEmail != "" {
		if err := validate.Var(c.FromEmail, "email"); err != nil {
			errors = append(errors, fmt.Sprintf("invalid FROM_EMAIL '%s'", c.FromEmail))
		}
	}
	if c.SlackWebhookURL != "" {
		if err := validate.Var(c.SlackWebhookURL, "url"); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Slack webhook URL '%s'", c.SlackWebhookURL))
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
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPEventsQueue == "" {
			errors = append(errors, "AMQP events queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate scheduler
	if c.ScheduleInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid schedule interval %v: must be at least 1 minute", c.ScheduleInterval))
	} else if c.ScheduleInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid schedule interval %v: must be at most 24 hours", c.ScheduleInterval))
	}
	if c.ScheduleDay < 1 || c.ScheduleDay > 28 {
		errors = append(errors, fmt.Sprintf("invalid schedule day %d: must be between 1 and 28", c.ScheduleDay))
	}

	// Validate Google Sheets export if enabled
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateCollection checks what a run against the live API needs.
func (c *Config) ValidateCollection() error {
	if c.APIToken == "" {
		return fmt.Errorf("API_TOKEN is required to collect data from %s", c.APIBaseURL)
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
