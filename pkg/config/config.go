package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	GigaChat GigaChatConfig
	Sources  SourcesConfig
	Pipeline PipelineConfig
	Logger   LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	InsecureSkipVerify bool
}

// SourcesConfig selects the connector mode and configures the upstreams.
// Mode is a deployment decision; MockFallback additionally lets the
// orchestrator substitute the mock dataset when the live source fails.
type SourcesConfig struct {
	Mode         string // "live" or "mock"
	MockFallback bool
	BankAPIURL   string
	BankAPIKey   string
	YouthAPIURL  string
	YouthAPIKey  string
	Timeout      time.Duration
	CacheTTL     time.Duration
	CacheSize    int
}

// PipelineConfig carries the recommendation pipeline's tunables. These are
// configuration by design: tolerance and truncation limits must not hide in
// the code as magic numbers.
type PipelineConfig struct {
	MaxCandidates   int
	EngineTimeout   time.Duration
	RetryLimit      int
	TemplateVersion string
	WeightTolerance float64
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables work for Docker/K8s.
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	readTimeout := getInt("SERVER_READ_TIMEOUT", 30)
	writeTimeout := getInt("SERVER_WRITE_TIMEOUT", 30)
	sourceTimeout := getInt("SOURCE_TIMEOUT_SECONDS", 30)
	cacheTTL := getInt("SOURCE_CACHE_TTL_SECONDS", 300)
	engineTimeoutMS := getInt("PIPELINE_ENGINE_TIMEOUT_MS", 30000)

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "fino_ai"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getInt("DB_MAX_CONNS", 10),
			MinConns: getInt("DB_MIN_CONNS", 2),
		},
		GigaChat: GigaChatConfig{
			APIKey:             getEnv("GIGACHAT_API_KEY", ""),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			InsecureSkipVerify: getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false") == "true",
		},
		Sources: SourcesConfig{
			Mode:         getEnv("SOURCE_MODE", "mock"),
			MockFallback: getEnv("SOURCE_MOCK_FALLBACK", "true") == "true",
			BankAPIURL:   getEnv("BANK_API_URL", "http://localhost:8001/api/v1"),
			BankAPIKey:   getEnv("BANK_API_KEY", ""),
			YouthAPIURL:  getEnv("YOUTH_API_URL", "http://localhost:8002/api/v1"),
			YouthAPIKey:  getEnv("YOUTH_API_KEY", ""),
			Timeout:      time.Duration(sourceTimeout) * time.Second,
			CacheTTL:     time.Duration(cacheTTL) * time.Second,
			CacheSize:    getInt("SOURCE_CACHE_SIZE", 64),
		},
		Pipeline: PipelineConfig{
			MaxCandidates:   getInt("PIPELINE_MAX_CANDIDATES", 20),
			EngineTimeout:   time.Duration(engineTimeoutMS) * time.Millisecond,
			RetryLimit:      getInt("PIPELINE_RETRY_LIMIT", 3),
			TemplateVersion: getEnv("PIPELINE_TEMPLATE_VERSION", "v1"),
			WeightTolerance: getFloat("PIPELINE_WEIGHT_TOLERANCE", 0.01),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
