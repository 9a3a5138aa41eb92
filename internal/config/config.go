package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/geusenergia/energisa-faturas/internal/utils"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `json:"server"`
	Redis    RedisConfig    `json:"redis"`
	Log      LogConfig      `json:"log"`
	Security SecurityConfig `json:"security"`
	Browser  BrowserConfig  `json:"browser"`
	Portal   PortalConfig   `json:"portal"`
	Billing  BillingConfig  `json:"billing"`
	Upstream UpstreamConfig `json:"upstream"`
	Mail     MailConfig     `json:"mail"`
	Staging  StagingConfig  `json:"staging"`
	Accounts AccountsConfig `json:"accounts"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int    `json:"port"`
	Environment  string `json:"environment"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	ReportTTL    time.Duration `json:"report_ttl"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	BurstSize         int           `json:"burst_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// BrowserConfig holds browser automation configuration
type BrowserConfig struct {
	Headless    bool          `json:"headless"`
	DownloadDir string        `json:"download_dir"`
	PageTimeout time.Duration `json:"page_timeout"`
}

// PortalConfig holds Energisa portal configuration
type PortalConfig struct {
	LoginURL       string        `json:"login_url"`
	UCListURL      string        `json:"uc_list_url"`
	InvoicesURL    string        `json:"invoices_url"`
	NavRetries     int           `json:"nav_retries"`
	StepDelay      time.Duration `json:"step_delay"`
	AuthTimeout    time.Duration `json:"auth_timeout"`
	ResendInterval time.Duration `json:"resend_interval"`
}

// BillingConfig holds GEUS billing API configuration
type BillingConfig struct {
	CreateURL string        `json:"create_url"`
	UpdateURL string        `json:"update_url"`
	APIKey    string        `json:"api_key"`
	Timeout   time.Duration `json:"timeout"`
}

// UpstreamConfig holds upstream invoice-listing API configuration
type UpstreamConfig struct {
	URL      string        `json:"url"`
	Login    string        `json:"login"`
	Password string        `json:"password"`
	Timeout  time.Duration `json:"timeout"`
}

// MailConfig holds IMAP configuration for the 2FA code inbox
type MailConfig struct {
	Host     string        `json:"host"`
	Login    string        `json:"login"`
	Password string        `json:"password"`
	Subject  string        `json:"subject"`
	MaxAge   time.Duration `json:"max_age"`
}

// StagingConfig holds staged invoice file configuration
type StagingConfig struct {
	Dir string `json:"dir"`
}

// AccountsConfig holds the configured geradora accounts
type AccountsConfig struct {
	CNPJs        []string      `json:"cnpjs"`
	PassInterval time.Duration `json:"pass_interval"`
	AlertURL     string        `json:"alert_url"`
}

// Load loads configuration from environment variables. The DEBUG_MODE
// flag selects the development billing/upstream endpoints once here;
// nothing downstream re-checks the environment.
func Load() (*Config, error) {
	debug := getEnvAsBool("DEBUG_MODE", false)

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", 8000),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvAsInt("IDLE_TIMEOUT", 60),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  time.Duration(getEnvAsInt("REDIS_DIAL_TIMEOUT", 5)) * time.Second,
			ReadTimeout:  time.Duration(getEnvAsInt("REDIS_READ_TIMEOUT", 3)) * time.Second,
			WriteTimeout: time.Duration(getEnvAsInt("REDIS_WRITE_TIMEOUT", 3)) * time.Second,
			ReportTTL:    time.Duration(getEnvAsInt("REDIS_REPORT_TTL", 86400)) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
				BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
				CleanupInterval:   time.Duration(getEnvAsInt("RATE_LIMIT_CLEANUP", 60)) * time.Second,
			},
			CORS: CORSConfig{
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"*"},
				AllowCredentials: false,
			},
		},
		Browser: BrowserConfig{
			Headless:    getEnvAsBool("BROWSER_HEADLESS", true),
			DownloadDir: getEnv("BROWSER_DOWNLOAD_DIR", os.TempDir()),
			PageTimeout: time.Duration(getEnvAsInt("PAGE_TIMEOUT", 30)) * time.Second,
		},
		Portal: PortalConfig{
			LoginURL:       getEnv("PORTAL_LOGIN_URL", "https://servicos.energisa.com.br/login"),
			UCListURL:      getEnv("PORTAL_UC_LIST_URL", "https://servicos.energisa.com.br/login/listagem-ucs"),
			InvoicesURL:    getEnv("PORTAL_INVOICES_URL", "https://servicos.energisa.com.br/faturas"),
			NavRetries:     getEnvAsInt("PORTAL_NAV_RETRIES", 3),
			StepDelay:      time.Duration(getEnvAsInt("PORTAL_STEP_DELAY", 1)) * time.Second,
			AuthTimeout:    time.Duration(getEnvAsInt("PORTAL_AUTH_TIMEOUT", 600)) * time.Second,
			ResendInterval: time.Duration(getEnvAsInt("PORTAL_RESEND_INTERVAL", 180)) * time.Second,
		},
		Billing: BillingConfig{
			CreateURL: pickEnv(debug, "API_CRIAR_FATURA_DEV", "API_CRIAR_FATURA_PROD"),
			UpdateURL: pickEnv(debug, "API_ATUALIZAR_FATURA_DEV", "API_ATUALIZAR_FATURA_PROD"),
			APIKey:    getEnv("GEUS_APIKEY", ""),
			Timeout:   time.Duration(getEnvAsInt("BILLING_TIMEOUT", 60)) * time.Second,
		},
		Upstream: UpstreamConfig{
			URL:      pickEnv(debug, "API_DOMAIN_FATURAS_DEV", "API_DOMAIN_FATURAS_PROD"),
			Login:    getEnv("API_CREDENTIAL_LOGIN", ""),
			Password: getEnv("API_CREDENTIAL_PASSWORD", ""),
			Timeout:  time.Duration(getEnvAsInt("UPSTREAM_TIMEOUT", 60)) * time.Second,
		},
		Mail: MailConfig{
			Host:     getEnv("SERVER_HOST", "imap.gmail.com:993"),
			Login:    getEnv("EMAIL_LOGIN", ""),
			Password: getEnv("EMAIL_PASSWORD", ""),
			Subject:  getEnv("SMS_SUBJECT", "[SMSForwarder] New message from 28115"),
			MaxAge:   time.Duration(getEnvAsInt("SMS_CODE_MAX_AGE", 30)) * time.Second,
		},
		Staging: StagingConfig{
			Dir: getEnv("STAGING_DIR", "media/json"),
		},
		Accounts: AccountsConfig{
			CNPJs:        splitAndTrim(getEnv("GERADORAS_CNPJS", "")),
			PassInterval: time.Duration(getEnvAsInt("PASS_INTERVAL", 5)) * time.Second,
			AlertURL:     getEnv("MANAGER_ALERT_URL", ""),
		},
	}

	// Validate required fields
	if cfg.Billing.APIKey == "" {
		return nil, fmt.Errorf("GEUS_APIKEY is required")
	}
	if cfg.Billing.CreateURL == "" || cfg.Billing.UpdateURL == "" {
		return nil, fmt.Errorf("billing API endpoints are required (API_CRIAR_FATURA_*/API_ATUALIZAR_FATURA_*)")
	}
	if cfg.Upstream.URL == "" {
		return nil, fmt.Errorf("upstream listing endpoint is required (API_DOMAIN_FATURAS_*)")
	}
	if len(cfg.Accounts.CNPJs) == 0 {
		return nil, fmt.Errorf("GERADORAS_CNPJS is required")
	}
	for i, cnpj := range cfg.Accounts.CNPJs {
		if !utils.IsValidCNPJ(cnpj) {
			return nil, fmt.Errorf("invalid CNPJ in GERADORAS_CNPJS: %s", cnpj)
		}
		cfg.Accounts.CNPJs[i] = utils.FormatCNPJ(cnpj)
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func pickEnv(debug bool, devKey, prodKey string) string {
	if debug {
		return getEnv(devKey, "")
	}
	return getEnv(prodKey, "")
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
