package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAdminIDs(t *testing.T) {
	ids, err := parseAdminIDs(" 101, ,202,")
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 202}, ids)

	_, err = parseAdminIDs("101,abc")
	assert.Error(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("ADMIN_IDS", "7")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("WEBHOOK_PORT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite://db.sqlite3", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:8080", cfg.WebhookAddr())
	assert.Equal(t, []int64{7}, cfg.AdminIDs)
}

func TestLoadConfigRequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}
