package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port         int
	Database     DatabaseConfig
	SiteRoot     string
	PingEndpoint string
	NumWorkers   int
	S3           S3Config
	SMTP         SMTPConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type         string // postgres or sqlite
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// S3Config holds object storage settings for oversized ping bodies.
// Offloading is disabled when Endpoint is empty.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
}

// SMTPConfig holds outbound email settings used by the report sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string // report recipient
}

// Load loads configuration from environment variables. A .env file in the
// working directory is honored when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	siteRoot := strings.TrimRight(getEnv("SITE_ROOT", "http://localhost:8000"), "/")

	cfg := &Config{
		Port: getEnvInt("PORT", 8000),
		Database: DatabaseConfig{
			Type:         getEnv("DB_TYPE", "postgres"),
			DSN:          getEnv("DB_DSN", buildPostgresDSN()),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		SiteRoot:     siteRoot,
		PingEndpoint: getEnv("PING_ENDPOINT", siteRoot+"/ping/"),
		NumWorkers:   getEnvInt("NUM_WORKERS", 10),
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", "pulsewatch"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Secure:    getEnvBool("S3_SECURE", true),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvInt("SMTP_PORT", 25),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("REPORT_FROM", "alerts@localhost"),
			To:       getEnv("REPORT_TO", ""),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	return cfg
}

func buildPostgresDSN() string {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "pulsewatch")
	password := getEnv("DB_PASSWORD", "secret")
	dbName := getEnv("DB_NAME", "pulsewatch")
	sslMode := getEnv("DB_SSLMODE", "disable")

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   dbName,
	}

	query := u.Query()
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Type != "postgres" && c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if c.NumWorkers < 1 {
		return fmt.Errorf("NUM_WORKERS must be at least 1")
	}

	if _, err := url.Parse(c.SiteRoot); err != nil {
		return fmt.Errorf("SITE_ROOT is not a valid URL: %w", err)
	}

	if c.S3.Endpoint != "" {
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_ENDPOINT is set")
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}
