package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "fr", cfg.Business.DefaultLanguage)
	assert.Equal(t, 9, cfg.Business.HoursStart)
	assert.Equal(t, 18, cfg.Business.HoursEnd)
	assert.Equal(t, 10, cfg.Conversation.HistoryLimit)
	assert.Equal(t, 5, cfg.Conversation.EscalationThreshold)
	assert.Equal(t, 150, cfg.Conversation.MaxReplyChars)
	assert.Equal(t, 20*time.Second, cfg.Generative.Timeout)
	assert.InDelta(t, 0.7, cfg.Generative.Temperature, 1e-9)
	assert.Equal(t, 120, cfg.Generative.MaxTokens)
	assert.Equal(t, time.Minute, cfg.Scheduler.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.FollowUpDelay)
	assert.False(t, cfg.AdminEnabled())
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_EnvFileOverrides(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("DEFAULT_LANGUAGE=en\nBUSINESS_HOURS_START=8\nGENERATIVE_TIMEOUT=5s\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DEFAULT_LANGUAGE")
		os.Unsetenv("BUSINESS_HOURS_START")
		os.Unsetenv("GENERATIVE_TIMEOUT")
	})

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "en", cfg.Business.DefaultLanguage)
	assert.Equal(t, 8, cfg.Business.HoursStart)
	assert.Equal(t, 5*time.Second, cfg.Generative.Timeout)
}

func TestValidate(t *testing.T) {
	t.Setenv("BUSINESS_HOURS_START", "19")
	t.Setenv("BUSINESS_HOURS_END", "18")
	t.Setenv("HISTORY_LIMIT", "0")

	_, err := Load(filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after end")
	assert.Contains(t, err.Error(), "HISTORY_LIMIT")
}

func TestValidate_AdminNeedsSecret(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "hunter22")

	_, err := Load(filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLogrusLogLevel(t *testing.T) {
	c := &Configuration{LogLevel: "debug"}
	assert.Equal(t, logrus.DebugLevel, c.LogrusLogLevel())
	c.LogLevel = "bogus"
	assert.Equal(t, logrus.InfoLevel, c.LogrusLogLevel())
}
