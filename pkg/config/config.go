package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Table backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendAirtable = "airtable"
)

// Config holds all application configuration values
type Config struct {
	Port         string
	GinMode      string
	LogLevel     string
	TableBackend string
	SheetName    string
	SheetURL     string
	DBPath       string
	Location     *time.Location

	AirtableAPIKey string
	AirtableBaseID string
	AirtableURL    string

	ValkeyAddr string
	LockTTL    time.Duration

	NotifyEmail  string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	NotifySMSTo      string

	SubmitURL     string
	SubmitTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TABLE_BACKEND", BackendSQLite)
	v.SetDefault("SHEET_NAME", "Form Responses")
	v.SetDefault("DB_PATH", "./data/contactsheet.db")
	v.SetDefault("TIMEZONE", "Europe/London")
	v.SetDefault("AIRTABLE_URL", "https://api.airtable.com")
	v.SetDefault("LOCK_TTL", "10s")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SUBMIT_URL", "http://localhost:8080/submit")
	v.SetDefault("SUBMIT_TIMEOUT", "15s")
}

// LoadConfig reads .env (if present), then the optional config file, then the
// environment. Environment variables win over the file.
func LoadConfig(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Error loading .env file", "error", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("error loading timezone: %w", err)
	}

	cfg := &Config{
		Port:         v.GetString("PORT"),
		GinMode:      v.GetString("GIN_MODE"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		TableBackend: strings.ToLower(v.GetString("TABLE_BACKEND")),
		SheetName:    v.GetString("SHEET_NAME"),
		SheetURL:     v.GetString("SHEET_URL"),
		DBPath:       v.GetString("DB_PATH"),
		Location:     loc,

		AirtableAPIKey: v.GetString("AIRTABLE_API_KEY"),
		AirtableBaseID: v.GetString("AIRTABLE_BASE_ID"),
		AirtableURL:    v.GetString("AIRTABLE_URL"),

		ValkeyAddr: v.GetString("VALKEY_ADDR"),
		LockTTL:    v.GetDuration("LOCK_TTL"),

		NotifyEmail:  v.GetString("NOTIFY_EMAIL"),
		SMTPHost:     v.GetString("SMTP_HOST"),
		SMTPPort:     v.GetInt("SMTP_PORT"),
		SMTPUsername: v.GetString("SMTP_USERNAME"),
		SMTPPassword: v.GetString("SMTP_PASSWORD"),
		SMTPFrom:     v.GetString("SMTP_FROM"),

		TwilioAccountSID: v.GetString("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  v.GetString("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       v.GetString("TWILIO_FROM"),
		NotifySMSTo:      v.GetString("NOTIFY_SMS_TO"),

		SubmitURL:     v.GetString("SUBMIT_URL"),
		SubmitTimeout: v.GetDuration("SUBMIT_TIMEOUT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later at first use.
func (c *Config) Validate() error {
	switch c.TableBackend {
	case BackendMemory, BackendSQLite:
	case BackendAirtable:
		if c.AirtableAPIKey == "" || c.AirtableBaseID == "" {
			return errors.New("airtable backend requires AIRTABLE_API_KEY and AIRTABLE_BASE_ID")
		}
	default:
		return fmt.Errorf("unknown TABLE_BACKEND %q", c.TableBackend)
	}
	if strings.TrimSpace(c.SheetName) == "" {
		return errors.New("SHEET_NAME must not be empty")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive, got %s", c.LockTTL)
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("SUBMIT_TIMEOUT must be positive, got %s", c.SubmitTimeout)
	}
	return nil
}

// SMSConfigured reports whether Twilio credentials and a recipient are set.
func (c *Config) SMSConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != "" && c.NotifySMSTo != ""
}
