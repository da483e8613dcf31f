package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol)
	LLMProvider string // Provider identifier: openai, groq, deepseek, ollama
	LLMAPIKey   string
	LLMBaseURL  string // Optional, has a default per provider
	LLMModel    string
	LLMTimeout  int // LLM request timeout in seconds (default: 60)

	// Embedding configuration
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int

	// Conversation configuration
	MemoryWindow   int // Recent turns kept as prompt context (default: 10)
	SessionTTLMins int // Inactivity minutes before a session expires (default: 1440)

	// Booking configuration
	BusinessHourStart int // Hour of day bookings may start (default: 9)
	BusinessHourEnd   int // Hour of day bookings must end by (default: 18)
	SearchHorizonDays int // How far forward alternative slots are searched (default: 14)
	MaxAlternatives   int // Alternative slots proposed on conflict (default: 3)

	// SMTP configuration for booking confirmations (optional; mocked when empty)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// Telegram chat channel (optional)
	TelegramBotToken      string
	TelegramWebhookSecret string

	// Outbound webhook endpoint for reservation events (optional)
	WebhookURL string

	Mode        string
	Addr        string
	Port        int
	Data        string
	Driver      string
	DSN         string
	InstanceURL string
	Version     string
}

// Provider default configurations for LLM.
// Used when NEOBOOK_AI_LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"groq": {
		BaseURL: "https://api.groq.com/openai/v1",
		Model:   "llama-3.3-70b-versatile",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an LLM API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("NEOBOOK_AI_LLM_PROVIDER", "groq")
	p.LLMAPIKey = getEnvOrDefault("NEOBOOK_AI_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("NEOBOOK_AI_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("NEOBOOK_AI_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("NEOBOOK_AI_LLM_TIMEOUT_SECONDS", 60)

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		p.LLMProvider = "groq"
	}
	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
	}

	p.EmbeddingProvider = getEnvOrDefault("NEOBOOK_AI_EMBEDDING_PROVIDER", "openai")
	p.EmbeddingModel = getEnvOrDefault("NEOBOOK_AI_EMBEDDING_MODEL", "text-embedding-3-small")
	p.EmbeddingAPIKey = getEnvOrDefault("NEOBOOK_AI_EMBEDDING_API_KEY", p.LLMAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("NEOBOOK_AI_EMBEDDING_BASE_URL", "")
	p.EmbeddingDimensions = getEnvOrDefaultInt("NEOBOOK_AI_EMBEDDING_DIMENSIONS", 384)

	p.MemoryWindow = getEnvOrDefaultInt("NEOBOOK_MEMORY_WINDOW", 10)
	p.SessionTTLMins = getEnvOrDefaultInt("NEOBOOK_SESSION_TTL_MINUTES", 1440)

	p.BusinessHourStart = getEnvOrDefaultInt("NEOBOOK_BOOKING_HOUR_START", 9)
	p.BusinessHourEnd = getEnvOrDefaultInt("NEOBOOK_BOOKING_HOUR_END", 18)
	p.SearchHorizonDays = getEnvOrDefaultInt("NEOBOOK_BOOKING_HORIZON_DAYS", 14)
	p.MaxAlternatives = getEnvOrDefaultInt("NEOBOOK_BOOKING_MAX_ALTERNATIVES", 3)

	p.SMTPHost = getEnvOrDefault("NEOBOOK_SMTP_HOST", "")
	p.SMTPPort = getEnvOrDefaultInt("NEOBOOK_SMTP_PORT", 587)
	p.SMTPUsername = getEnvOrDefault("NEOBOOK_SMTP_USERNAME", "")
	p.SMTPPassword = getEnvOrDefault("NEOBOOK_SMTP_PASSWORD", "")
	p.SMTPFrom = getEnvOrDefault("NEOBOOK_SMTP_FROM", "")

	p.TelegramBotToken = getEnvOrDefault("NEOBOOK_TELEGRAM_BOT_TOKEN", "")
	p.TelegramWebhookSecret = getEnvOrDefault("NEOBOOK_TELEGRAM_WEBHOOK_SECRET", "")
	p.WebhookURL = getEnvOrDefault("NEOBOOK_WEBHOOK_URL", "")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies.
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "postgres" && p.Driver != "sqlite" {
		return errors.Errorf("unsupported database driver: %s", p.Driver)
	}

	if p.BusinessHourStart < 0 || p.BusinessHourEnd > 24 || p.BusinessHourStart >= p.BusinessHourEnd {
		return errors.Errorf("invalid business hours: %d-%d", p.BusinessHourStart, p.BusinessHourEnd)
	}
	if p.MemoryWindow <= 0 {
		p.MemoryWindow = 10
	}
	if p.SearchHorizonDays <= 0 {
		p.SearchHorizonDays = 14
	}
	if p.MaxAlternatives <= 0 {
		p.MaxAlternatives = 3
	}

	if p.Driver == "sqlite" {
		if p.Data == "" {
			p.Data = os.TempDir()
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("neobook_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile)
		}
	} else if p.DSN == "" {
		return errors.New("dsn required for postgres driver")
	}

	return nil
}
