package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 8*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 2, cfg.LLMMaxAttempts)
	assert.Equal(t, 12*time.Second, cfg.TurnBudget)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.TwilioAuthToken)
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("PORT", "9000")
	t.Setenv("SESSION_TIMEOUT", "5")
	t.Setenv("LLM_TIMEOUT", "3")
	t.Setenv("LLM_MAX_ATTEMPTS", "1")
	t.Setenv("TURN_BUDGET", "10")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("PUBLIC_URL", "https://aasha.example.org/")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 3*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 1, cfg.LLMMaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.TurnBudget)
	assert.Equal(t, "https://aasha.example.org", cfg.PublicURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadConfigInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":             "eighty",
		"SESSION_TIMEOUT":  "soon",
		"LLM_TIMEOUT":      "x",
		"LLM_MAX_ATTEMPTS": "0",
		"TURN_BUDGET":      "0",
		"KEEPALIVE_PERIOD": "never",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "test-key")
			t.Setenv(key, value)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigSignatureNeedsPublicURL(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("PUBLIC_URL", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}
