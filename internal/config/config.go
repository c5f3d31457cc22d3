package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	IdentityModeClaims = "claims"
	IdentityModeLookup = "lookup"
)

type Config struct {
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	RequestTimeout     time.Duration
	JWTSecret          string
	JWTAccessTTL       time.Duration
	JWTRefreshTTL      time.Duration
	IdentityMode       string
	DatabaseURL        string
	DBMaxConns         int32
	DBMinConns         int32
	StubMode           bool
	CORSOrigins        []string
	RateLimitRPM       int
	AuthRateLimitRPM   int
	PDFBrowserPath     string
	PDFTimeout         time.Duration
	GSTRate            float64
	CompanyName        string
	CompanyAddress     string
	ClientName         string
	ClientAddress      string
	MetricsEnabled     bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "5000"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		JWTSecret:          strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAccessTTL:       getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL:      getDuration("JWT_REFRESH_TTL", 168*time.Hour),
		IdentityMode:       strings.ToLower(getEnv("AUTH_IDENTITY_MODE", IdentityModeClaims)),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:         int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:         int32(getInt("DB_MIN_CONNS", 1)),
		StubMode:           getBool("STUB_MODE", false),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:   getInt("AUTH_RATE_LIMIT_RPM", 10),
		PDFBrowserPath:     getEnv("PDF_BROWSER_PATH", "chromium"),
		PDFTimeout:         getDuration("PDF_TIMEOUT", 30*time.Second),
		GSTRate:            getFloat("INVOICE_GST_RATE", 0.18),
		CompanyName:        getEnv("INVOICE_COMPANY_NAME", "Levitation Infotech"),
		CompanyAddress:     getEnv("INVOICE_COMPANY_ADDRESS", ""),
		ClientName:         getEnv("INVOICE_CLIENT_NAME", ""),
		ClientAddress:      getEnv("INVOICE_CLIENT_ADDRESS", ""),
		MetricsEnabled:     getBool("METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive")
	}

	if c.JWTRefreshTTL <= c.JWTAccessTTL {
		return fmt.Errorf("JWT_REFRESH_TTL must be longer than JWT_ACCESS_TTL")
	}

	switch c.IdentityMode {
	case IdentityModeClaims, IdentityModeLookup:
	default:
		return fmt.Errorf("AUTH_IDENTITY_MODE must be %q or %q", IdentityModeClaims, IdentityModeLookup)
	}

	if !c.StubMode && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required unless STUB_MODE is enabled")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS and DB_MAX_CONNS are inconsistent")
	}

	if c.GSTRate < 0 || c.GSTRate >= 1 {
		return fmt.Errorf("INVOICE_GST_RATE must be a fraction between 0 and 1")
	}

	if c.PDFTimeout <= 0 {
		return fmt.Errorf("PDF_TIMEOUT must be positive")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
