package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	ModelPath string `validate:"required"`
	ModelName string `validate:"required,excludesall=/"`

	LogLevel string `validate:"oneof=debug info warn error"`
	LogFile  string

	DataSource string `validate:"oneof=csv xlsx postgres"`
	DataFile   string `validate:"required_unless=DataSource postgres"`
	XLSXSheet  string

	PostgresHost     string
	PostgresPort     string `validate:"numeric"`
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	TableName        string `validate:"required"`

	MaxConcurrency int `validate:"gte=0"`
	MaxRetries     int `validate:"gte=1"`

	RedisURL string `validate:"omitempty,url"`
	HTTPAddr string `validate:"required"`
	// CORSAllowedOrigins is a comma-separated list; "*" allows any origin.
	CORSAllowedOrigins string
}

// Load reads the .env file and returns a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		ModelPath: getEnv("MODEL_PATH", "models"),
		ModelName: getEnv("MODEL_NAME", "rent_apartment_model.gob"),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:  getEnv("LOG_FILE", "logs/app.log"),

		DataSource: strings.ToLower(getEnv("DATA_SOURCE", "csv")),
		DataFile:   getEnv("DATA_FILE", "data/rent_apartments.csv"),
		XLSXSheet:  getEnv("XLSX_SHEET", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "rent"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "rent123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		TableName:        getEnv("RENT_APARTMENT_TABLE_NAME", "rent_apartments"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 0),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),

		RedisURL: getEnv("REDIS_URL", ""),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("config: validate: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("config: validation failed: %s", strings.Join(msgs, "; "))
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
		log.Printf("[config] invalid %s=%q, using default %d", key, val, fallback)
	}
	return fallback
}
