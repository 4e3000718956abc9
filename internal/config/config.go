package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	SMTP      SMTPConfig
	Ai        AIConfig
	Ledger    LedgerConfig
	Interview InterviewConfig
	Midtrans  MidtransConfig
	Otel      OtelConfig
}

type AppConfig struct {
	Port                string
	BaseURL             string
	ClientURL           string
	Environment         string
	LogFilePath         string
	RealtimeLogFilePath string
	CorsAllowedOrigins  string
	NatsURL             string
	RedisURL            string
	JWTSecret           string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type AIConfig struct {
	Provider       string // "ollama" or "openai"
	Model          string // e.g. "llama3", "gpt-4o-mini"
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	Temperature    float64
	MaxTokens      int
}

type LedgerConfig struct {
	FreeCredits   int
	RefundRetries int
	RefundBackoff time.Duration
	OperatorEmail string
}

type InterviewConfig struct {
	SessionIdleTTL time.Duration
	EvictionGrace  time.Duration
	SegmentMarker  string
	EndToken       string
	JobKindsFile   string
	QuizJobKind    string
	QuizTopic      string // watermill topic for quiz jobs
}

type CreditPackage struct {
	Id          string
	Credits     int
	GrossAmount int64
}

type MidtransConfig struct {
	ServerKey    string
	IsProduction bool
	Packages     []CreditPackage
}

func (m MidtransConfig) Package(id string) (CreditPackage, bool) {
	for _, p := range m.Packages {
		if p.Id == id {
			return p, true
		}
	}
	return CreditPackage{}, false
}

type OtelConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	packages, err := ParseCreditPackages(getEnv("CREDIT_PACKAGES", "starter:10:50000,pro:30:135000"))
	if err != nil {
		log.Printf("Warn: invalid CREDIT_PACKAGES, no packages offered: %v", err)
	}

	return &Config{
		App: AppConfig{
			Port:                getEnv("APP_PORT", "3000"),
			BaseURL:             getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:           getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:         getEnv("GO_ENV", "development"),
			LogFilePath:         getEnv("LOG_FILE_PATH", "logs/app.log"),
			RealtimeLogFilePath: getEnv("REALTIME_LOG_FILE_PATH", "logs/realtime.log"),
			CorsAllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:             getEnv("NATS_URL", ""),
			RedisURL:            getEnv("REDIS_URL", ""),
			JWTSecret:           getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Interview Coach"),
		},
		Ai: AIConfig{
			Provider:       getEnv("LLM_PROVIDER", "ollama"),
			Model:          getEnv("LLM_MODEL", "llama3"),
			BaseURL:        getEnv("LLM_BASE_URL", getEnv("OLLAMA_BASE_URL", "")),
			APIKey:         getEnv("LLM_API_KEY", ""),
			RequestTimeout: getEnvAsDuration("LLM_REQUEST_TIMEOUT", 120*time.Second),
			Temperature:    getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 0),
		},
		Ledger: LedgerConfig{
			FreeCredits:   getEnvAsInt("LEDGER_FREE_CREDITS", 3),
			RefundRetries: getEnvAsInt("LEDGER_REFUND_RETRIES", 3),
			RefundBackoff: getEnvAsDuration("LEDGER_REFUND_BACKOFF", 500*time.Millisecond),
			OperatorEmail: getEnv("LEDGER_OPERATOR_EMAIL", ""),
		},
		Interview: InterviewConfig{
			SessionIdleTTL: getEnvAsDuration("INTERVIEW_SESSION_IDLE_TTL", 30*time.Minute),
			EvictionGrace:  getEnvAsDuration("INTERVIEW_EVICTION_GRACE", 5*time.Minute),
			SegmentMarker:  getEnv("INTERVIEW_SEGMENT_MARKER", "[[ANSWER]]"),
			EndToken:       getEnv("INTERVIEW_END_TOKEN", "[[END_INTERVIEW]]"),
			JobKindsFile:   getEnv("JOB_KINDS_FILE", ""),
			QuizJobKind:    getEnv("QUIZ_JOB_KIND", "quiz"),
			QuizTopic:      getEnv("QUIZ_JOB_TOPIC", "GENERATE_QUIZ"),
		},
		Midtrans: MidtransConfig{
			ServerKey:    getEnv("MIDTRANS_SERVER_KEY", ""),
			IsProduction: getEnvAsBool("MIDTRANS_IS_PRODUCTION", false),
			Packages:     packages,
		},
		Otel: OtelConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "ai-interview-backend"),
		},
	}
}

// ParseCreditPackages reads "id:credits:price" entries separated by commas.
func ParseCreditPackages(raw string) ([]CreditPackage, error) {
	var packages []CreditPackage
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("package %q: want id:credits:price", entry)
		}
		credits, err := strconv.Atoi(parts[1])
		if err != nil || credits <= 0 {
			return nil, fmt.Errorf("package %q: invalid credits", entry)
		}
		price, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil || price <= 0 {
			return nil, fmt.Errorf("package %q: invalid price", entry)
		}
		packages = append(packages, CreditPackage{Id: parts[0], Credits: credits, GrossAmount: price})
	}
	return packages, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
