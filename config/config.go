package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	Port            int
	RedisURL        string
	RedisPassword   string
	SessionTimeout  time.Duration
	GeminiAPIKey    string
	GeminiModel     string
	LLMTimeout      time.Duration // Per-attempt deadline for a model call
	LLMMaxAttempts  int           // 2 = one retry
	TurnBudget      time.Duration // Deadline for all model calls in one webhook turn
	TwilioAuthToken string        // Enables X-Twilio-Signature checks when set
	PublicURL       string        // Base URL Twilio signs against, e.g. https://aasha.example.org
	AllowedOrigins  []string
	KeepAlivePeriod time.Duration
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Port:            8080,
		RedisURL:        "localhost:6379",
		SessionTimeout:  30 * time.Minute,
		GeminiModel:     "gemini-2.5-flash",
		LLMTimeout:      8 * time.Second,
		LLMMaxAttempts:  2,
		TurnBudget:      12 * time.Second,
		AllowedOrigins:  []string{"*"},
		KeepAlivePeriod: 30 * time.Second,
	}

	// Required: GEMINI_API_KEY
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.GeminiModel = model
	}

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	// Optional: REDIS_URL
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}

	// Optional: REDIS_PASSWORD
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	// Optional: LLM_TIMEOUT (in seconds)
	if timeout := os.Getenv("LLM_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid LLM_TIMEOUT: %w", err)
		}
		config.LLMTimeout = time.Duration(t) * time.Second
	}

	// Optional: LLM_MAX_ATTEMPTS
	if attempts := os.Getenv("LLM_MAX_ATTEMPTS"); attempts != "" {
		a, err := strconv.Atoi(attempts)
		if err != nil {
			return nil, fmt.Errorf("invalid LLM_MAX_ATTEMPTS: %w", err)
		}
		if a < 1 {
			return nil, fmt.Errorf("invalid LLM_MAX_ATTEMPTS: must be at least 1")
		}
		config.LLMMaxAttempts = a
	}

	// Optional: TURN_BUDGET (in seconds). Twilio gives up on a webhook after 15s.
	if budget := os.Getenv("TURN_BUDGET"); budget != "" {
		b, err := strconv.Atoi(budget)
		if err != nil {
			return nil, fmt.Errorf("invalid TURN_BUDGET: %w", err)
		}
		if b < 1 {
			return nil, fmt.Errorf("invalid TURN_BUDGET: must be at least 1")
		}
		config.TurnBudget = time.Duration(b) * time.Second
	}

	config.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	config.PublicURL = strings.TrimSuffix(os.Getenv("PUBLIC_URL"), "/")
	if config.TwilioAuthToken != "" && config.PublicURL == "" {
		return nil, fmt.Errorf("PUBLIC_URL is required when TWILIO_AUTH_TOKEN is set")
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: KEEPALIVE_PERIOD (in seconds)
	if keepalive := os.Getenv("KEEPALIVE_PERIOD"); keepalive != "" {
		k, err := strconv.Atoi(keepalive)
		if err != nil {
			return nil, fmt.Errorf("invalid KEEPALIVE_PERIOD: %w", err)
		}
		config.KeepAlivePeriod = time.Duration(k) * time.Second
	}

	return config, nil
}
