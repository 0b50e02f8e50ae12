// Package config provides application configuration management using Viper.
// It supports loading from environment variables, config files, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	WhatsApp   WhatsAppConfig
	Sales      SalesConfig
	Automation AutomationConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string
	Port        int
	Environment string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	Name                  string
	SSLMode               string
	MaxConnections        int
	MaxIdleConnections    int
	ConnectionMaxLifetime time.Duration
}

// ConnectionString returns a PostgreSQL connection string.
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// WhatsAppConfig holds WhatsApp Cloud API settings.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	// VerifyToken is echoed back during webhook subscription verification.
	VerifyToken string
	// AppSecret signs webhook deliveries (X-Hub-Signature-256).
	// When empty, signature validation is skipped.
	AppSecret string
	APIURL    string
}

// SalesConfig holds sales-team notification settings.
type SalesConfig struct {
	// TeamNumbers is a comma-separated list of WhatsApp numbers that
	// receive hot-lead alerts.
	TeamNumbers string
}

// TeamContacts returns the sales-team numbers as a slice.
func (s *SalesConfig) TeamContacts() []string {
	if s.TeamNumbers == "" {
		return nil
	}
	numbers := strings.Split(s.TeamNumbers, ",")
	out := numbers[:0]
	for _, n := range numbers {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// AutomationConfig holds tuning knobs for the automation engine.
type AutomationConfig struct {
	// Source tags leads created by the webhook channel.
	Source string

	// BudgetMultiplier converts an extracted budget figure into
	// currency units. The default of 1000 reads "20" as 20000, which
	// also inflates fully written amounts; set to 1 to read amounts
	// literally. Pending product clarification.
	BudgetMultiplier int

	// ReservationWindow is how long an automated vehicle hold lasts.
	ReservationWindow time.Duration

	// TickInterval is the in-process hourly automation cadence.
	// Zero disables the internal ticker (external cron only).
	TickInterval time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables and config files.
// Environment variables take precedence over config file values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/dealerflow")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configNotFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFoundErr) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        v.GetString("server.host"),
			Port:        v.GetInt("server.port"),
			Environment: v.GetString("server.env"),
		},
		Database: DatabaseConfig{
			Host:                  v.GetString("database.host"),
			Port:                  v.GetInt("database.port"),
			User:                  v.GetString("database.user"),
			Password:              v.GetString("database.password"),
			Name:                  v.GetString("database.name"),
			SSLMode:               v.GetString("database.sslmode"),
			MaxConnections:        v.GetInt("database.max_connections"),
			MaxIdleConnections:    v.GetInt("database.max_idle_connections"),
			ConnectionMaxLifetime: v.GetDuration("database.connection_max_lifetime"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   v.GetString("whatsapp.access_token"),
			PhoneNumberID: v.GetString("whatsapp.phone_number_id"),
			VerifyToken:   v.GetString("whatsapp.verify_token"),
			AppSecret:     v.GetString("whatsapp.app_secret"),
			APIURL:        v.GetString("whatsapp.api_url"),
		},
		Sales: SalesConfig{
			TeamNumbers: v.GetString("sales.team_numbers"),
		},
		Automation: AutomationConfig{
			Source:            v.GetString("automation.source"),
			BudgetMultiplier:  v.GetInt("automation.budget_multiplier"),
			ReservationWindow: v.GetDuration("automation.reservation_window"),
			TickInterval:      v.GetDuration("automation.tick_interval"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "dealerflow")
	v.SetDefault("database.name", "dealerflow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_connections", 5)
	v.SetDefault("database.connection_max_lifetime", "5m")

	// WhatsApp Cloud API defaults
	v.SetDefault("whatsapp.api_url", "https://graph.facebook.com/v18.0")

	// Automation defaults
	v.SetDefault("automation.source", "whatsapp")
	v.SetDefault("automation.budget_multiplier", 1000)
	v.SetDefault("automation.reservation_window", "24h")
	v.SetDefault("automation.tick_interval", "1h")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration values are present.
func (c *Config) Validate() error {
	var missing []string

	if c.Database.Password == "" {
		missing = append(missing, "DATABASE_PASSWORD")
	}
	if c.WhatsApp.AccessToken == "" {
		missing = append(missing, "WHATSAPP_ACCESS_TOKEN")
	}
	if c.WhatsApp.PhoneNumberID == "" {
		missing = append(missing, "WHATSAPP_PHONE_NUMBER_ID")
	}
	if c.WhatsApp.VerifyToken == "" {
		missing = append(missing, "WHATSAPP_VERIFY_TOKEN")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
