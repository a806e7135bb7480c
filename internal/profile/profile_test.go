package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"MANAS_LLM_PROVIDER",
	"MANAS_LLM_API_KEY",
	"MANAS_LLM_BASE_URL",
	"MANAS_LLM_MODEL",
	"MANAS_LIGHT_LLM_MODEL",
	"MANAS_LIGHT_LLM_API_KEY",
	"MANAS_LIGHT_LLM_BASE_URL",
	"MANAS_ELEVENLABS_API_KEY",
	"MANAS_ELEVENLABS_VOICE_ID",
	"MANAS_LEARNER_QUEUE_SIZE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "openai", p.LLMProvider)
	assert.Equal(t, "https://api.openai.com/v1", p.LLMBaseURL)
	assert.Equal(t, "gpt-4o", p.LLMModel)
	assert.Equal(t, "gpt-4o-mini", p.LightModel)
	assert.Equal(t, 120, p.LLMTimeout)
	assert.Equal(t, "21m00Tcm4TlvDq8ikWAM", p.TTSVoiceID)
	assert.Equal(t, "eleven_turbo_v2", p.TTSModel)
	assert.Equal(t, 64, p.LearnerQueueSize)
	assert.Equal(t, 1, p.LearnerWorkers)
	assert.False(t, p.IsTTSEnabled())
	assert.False(t, p.IsGoogleEnabled())
}

func TestFromEnv_LightModelInheritsMainCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("MANAS_LLM_PROVIDER", "deepseek")
	t.Setenv("MANAS_LLM_API_KEY", "sk-main")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "https://api.deepseek.com", p.LLMBaseURL)
	assert.Equal(t, "sk-main", p.LightAPIKey)
	assert.Equal(t, p.LLMBaseURL, p.LightBaseURL)
}

func TestFromEnv_FlagsWin(t *testing.T) {
	clearEnv(t)
	t.Setenv("MANAS_LLM_MODEL", "from-env")

	p := &Profile{LLMModel: "from-flag"}
	p.FromEnv()

	assert.Equal(t, "from-flag", p.LLMModel)
}

func TestValidate(t *testing.T) {
	t.Run("sqlite DSN derived from data dir", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "prod", Driver: "sqlite", Data: dir, LLMAPIKey: "k"}
		require.NoError(t, p.Validate())
		assert.Equal(t, filepath.Join(dir, "manas_prod.db"), p.DSN)
	})

	t.Run("unknown mode falls back to dev", func(t *testing.T) {
		p := &Profile{Mode: "demo", Driver: "postgres", DSN: "postgres://x", LLMAPIKey: "k"}
		require.NoError(t, p.Validate())
		assert.Equal(t, "dev", p.Mode)
		assert.True(t, p.IsDev())
	})

	t.Run("missing API key", func(t *testing.T) {
		p := &Profile{Driver: "postgres", DSN: "postgres://x", LLMProvider: "openai"}
		assert.Error(t, p.Validate())
	})

	t.Run("ollama needs no key", func(t *testing.T) {
		p := &Profile{Driver: "redis", DSN: "redis://localhost:6379/0", LLMProvider: "ollama"}
		assert.NoError(t, p.Validate())
	})

	t.Run("unsupported driver", func(t *testing.T) {
		p := &Profile{Driver: "mysql", DSN: "x", LLMAPIKey: "k"}
		assert.Error(t, p.Validate())
	})

	t.Run("missing data dir", func(t *testing.T) {
		p := &Profile{Driver: "sqlite", Data: filepath.Join(t.TempDir(), "nope"), LLMAPIKey: "k"}
		assert.Error(t, p.Validate())
	})
}
