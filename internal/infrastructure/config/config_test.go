package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ENGINE_TICK_INTERVAL", "2s")
	t.Setenv("LOCAL_STORE_PATH", "/tmp/familyboard/device.db")
	t.Setenv("ONESIGNAL_APP_ID", "app")
	t.Setenv("ONESIGNAL_REST_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Engine.TickInterval)
	assert.Equal(t, 15*time.Second, cfg.Engine.SendTimeout)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpiresIn)
	assert.Equal(t, "/tmp/familyboard/device.db", cfg.Local.Path)
	assert.Equal(t, "https://api.emailjs.com", cfg.Email.BaseURL)
	assert.Equal(t, "family-", cfg.Push.ExternalIDPrefix)
	assert.True(t, cfg.Push.Configured())
	assert.False(t, cfg.Email.Configured())
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT secret")
}

func TestEmailConfigured(t *testing.T) {
	cfg := EmailConfig{ServiceID: "svc", TemplateID: "tpl"}
	assert.False(t, cfg.Configured())

	cfg.PublicKey = "pk"
	assert.True(t, cfg.Configured())
}
