package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the assistant server.
type Profile struct {
	// Main LLM used for conversation, beautification and answers (OpenAI-compatible protocol).
	LLMProvider string // openai, deepseek, siliconflow, openrouter, ollama
	LLMAPIKey   string
	LLMBaseURL  string
	LLMModel    string
	LLMTimeout  int // seconds, default 120

	// Light LLM used for classification, resolution and extraction.
	// Falls back to the main LLM settings when unset.
	LightModel   string
	LightAPIKey  string
	LightBaseURL string

	// Text-to-speech (ElevenLabs)
	TTSAPIKey  string
	TTSVoiceID string
	TTSModel   string

	// Domain collaborators. Empty keys disable the capability.
	NewsAPIKey         string
	YelpAPIKey         string
	YouComAPIKey       string
	GoogleAPIKey       string // geocoding + weather
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string
	TelegramBotToken   string
	JWTSecret          string
	LearnerQueueSize   int
	LearnerWorkers     int
	OutboundRatePerSec int

	Mode     string
	Addr     string
	Data     string
	Driver   string // sqlite, postgres, redis
	DSN      string
	LogFile  string
	LogLevel string
	Version  string
	Port     int
}

// Provider default configurations for LLM.
// Used when the base URL or model is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL    string
	Model      string
	LightModel string
}{
	"openai": {
		BaseURL:    "https://api.openai.com/v1",
		Model:      "gpt-4o",
		LightModel: "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL:    "https://api.deepseek.com",
		Model:      "deepseek-chat",
		LightModel: "deepseek-chat",
	},
	"siliconflow": {
		BaseURL:    "https://api.siliconflow.cn/v1",
		Model:      "Qwen/Qwen2.5-72B-Instruct",
		LightModel: "Qwen/Qwen2.5-7B-Instruct",
	},
	"openrouter": {
		BaseURL:    "https://openrouter.ai/api/v1",
		Model:      "openai/gpt-4o",
		LightModel: "openai/gpt-4o-mini",
	},
	"ollama": {
		BaseURL:    "http://localhost:11434/v1",
		Model:      "llama3.1",
		LightModel: "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsTTSEnabled reports whether speech synthesis is configured.
func (p *Profile) IsTTSEnabled() bool {
	return p.TTSAPIKey != ""
}

// IsGoogleEnabled reports whether calendar and mail access is configured.
func (p *Profile) IsGoogleEnabled() bool {
	return p.GoogleClientID != "" && p.GoogleClientSecret != "" && p.GoogleRefreshToken != ""
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

// FromEnv loads collaborator configuration from environment variables.
// Values already set (e.g. from flags) are kept.
func (p *Profile) FromEnv() {
	p.LLMProvider = keep(p.LLMProvider, getEnvOrDefault("MANAS_LLM_PROVIDER", "openai"))
	p.LLMAPIKey = keep(p.LLMAPIKey, getEnvOrDefault("MANAS_LLM_API_KEY", ""))
	p.LLMBaseURL = keep(p.LLMBaseURL, getEnvOrDefault("MANAS_LLM_BASE_URL", ""))
	p.LLMModel = keep(p.LLMModel, getEnvOrDefault("MANAS_LLM_MODEL", ""))
	if p.LLMTimeout <= 0 {
		p.LLMTimeout = getEnvOrDefaultInt("MANAS_LLM_TIMEOUT_SECONDS", 120)
	}

	if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
		slog.Warn("unknown LLM provider, treating as generic OpenAI-compatible endpoint", "provider", p.LLMProvider)
	}
	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		p.LLMBaseURL = keep(p.LLMBaseURL, defaults.BaseURL)
		p.LLMModel = keep(p.LLMModel, defaults.Model)
		p.LightModel = keep(p.LightModel, getEnvOrDefault("MANAS_LIGHT_LLM_MODEL", defaults.LightModel))
	}
	p.LightModel = keep(p.LightModel, getEnvOrDefault("MANAS_LIGHT_LLM_MODEL", p.LLMModel))
	p.LightAPIKey = keep(p.LightAPIKey, getEnvOrDefault("MANAS_LIGHT_LLM_API_KEY", p.LLMAPIKey))
	p.LightBaseURL = keep(p.LightBaseURL, getEnvOrDefault("MANAS_LIGHT_LLM_BASE_URL", p.LLMBaseURL))

	p.TTSAPIKey = keep(p.TTSAPIKey, getEnvOrDefault("MANAS_ELEVENLABS_API_KEY", ""))
	p.TTSVoiceID = keep(p.TTSVoiceID, getEnvOrDefault("MANAS_ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"))
	p.TTSModel = keep(p.TTSModel, getEnvOrDefault("MANAS_ELEVENLABS_MODEL", "eleven_turbo_v2"))

	p.NewsAPIKey = keep(p.NewsAPIKey, getEnvOrDefault("MANAS_NEWSAPI_KEY", ""))
	p.YelpAPIKey = keep(p.YelpAPIKey, getEnvOrDefault("MANAS_YELP_API_KEY", ""))
	p.YouComAPIKey = keep(p.YouComAPIKey, getEnvOrDefault("MANAS_YOUCOM_API_KEY", ""))
	p.GoogleAPIKey = keep(p.GoogleAPIKey, getEnvOrDefault("MANAS_GOOGLE_API_KEY", ""))
	p.GoogleClientID = keep(p.GoogleClientID, getEnvOrDefault("MANAS_GOOGLE_CLIENT_ID", ""))
	p.GoogleClientSecret = keep(p.GoogleClientSecret, getEnvOrDefault("MANAS_GOOGLE_CLIENT_SECRET", ""))
	p.GoogleRefreshToken = keep(p.GoogleRefreshToken, getEnvOrDefault("MANAS_GOOGLE_REFRESH_TOKEN", ""))
	p.TelegramBotToken = keep(p.TelegramBotToken, getEnvOrDefault("MANAS_TELEGRAM_BOT_TOKEN", ""))
	p.JWTSecret = keep(p.JWTSecret, getEnvOrDefault("MANAS_JWT_SECRET", ""))

	if p.LearnerQueueSize <= 0 {
		p.LearnerQueueSize = getEnvOrDefaultInt("MANAS_LEARNER_QUEUE_SIZE", 64)
	}
	if p.LearnerWorkers <= 0 {
		p.LearnerWorkers = getEnvOrDefaultInt("MANAS_LEARNER_WORKERS", 1)
	}
	if p.OutboundRatePerSec <= 0 {
		p.OutboundRatePerSec = getEnvOrDefaultInt("MANAS_OUTBOUND_RATE_PER_SEC", 5)
	}
}

func keep(current, fallback string) string {
	if current != "" {
		return current
	}
	return fallback
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and reports configuration that cannot work.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	switch p.Driver {
	case "sqlite", "postgres", "redis":
	case "":
		p.Driver = "sqlite"
	default:
		return errors.Errorf("unsupported driver %q", p.Driver)
	}

	if p.LLMProvider != "ollama" && p.LLMAPIKey == "" {
		return errors.New("LLM API key is required (MANAS_LLM_API_KEY)")
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		if p.Data == "" {
			p.Data = "."
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
		p.DSN = filepath.Join(dataDir, fmt.Sprintf("manas_%s.db", p.Mode))
	}
	if p.DSN == "" {
		return errors.Errorf("dsn is required for driver %s", p.Driver)
	}
	return nil
}
