package ai

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/core/tts"
	"github.com/hrygo/manas/ai/finalizer"
	"github.com/hrygo/manas/internal/profile"
)

// Config represents the assistant's AI configuration.
type Config struct {
	// LLM generates conversation, answers and beautified replies.
	LLM llm.Config
	// LightLLM runs classification, reference resolution and extraction.
	LightLLM llm.Config
	// TTS is only used when TTSEnabled is set.
	TTS        tts.Config
	TTSEnabled bool
	Learner    finalizer.LearnerConfig
}

const (
	mainMaxTokens    = 1024
	mainTemperature  = 0.7
	lightMaxTokens   = 256
	lightTemperature = 0.1
	lightTimeout     = 30 // seconds
)

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		LLM: llm.Config{
			Provider:    p.LLMProvider,
			Model:       p.LLMModel,
			APIKey:      p.LLMAPIKey,
			BaseURL:     p.LLMBaseURL,
			MaxTokens:   mainMaxTokens,
			Temperature: mainTemperature,
			Timeout:     p.LLMTimeout,
		},
		Learner: finalizer.LearnerConfig{
			QueueSize: p.LearnerQueueSize,
			Workers:   p.LearnerWorkers,
		},
	}

	// The light model shares the main provider unless its own endpoint is configured.
	cfg.LightLLM = llm.Config{
		Provider:    p.LLMProvider,
		Model:       firstNonEmpty(p.LightModel, p.LLMModel),
		APIKey:      firstNonEmpty(p.LightAPIKey, p.LLMAPIKey),
		BaseURL:     firstNonEmpty(p.LightBaseURL, p.LLMBaseURL),
		MaxTokens:   lightMaxTokens,
		Temperature: lightTemperature,
		Timeout:     lightTimeout,
	}

	if p.IsTTSEnabled() {
		cfg.TTSEnabled = true
		cfg.TTS = tts.Config{
			APIKey:  p.TTSAPIKey,
			VoiceID: p.TTSVoiceID,
			ModelID: p.TTSModel,
			Timeout: 30 * time.Second,
		}
	}
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}
	if c.LLM.Model == "" {
		return errors.New("LLM model is required")
	}
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}
	if c.TTSEnabled && c.TTS.APIKey == "" {
		return errors.New("TTS API key is required when speech is enabled")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
