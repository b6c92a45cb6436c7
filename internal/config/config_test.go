package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "redditbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
[general]
board = "sandboxtest"
triggers = ["Rust", "rust"]

[ratelimit]
capacity = 30

[monitor]
thread_delay = "250ms"

[reddit]
client_id = "id"
client_secret = "secret"
username = "UltimateBottyBoi"
password = "pw"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sandboxtest", cfg.General.Board)
	assert.Equal(t, []string{"Rust", "rust"}, cfg.General.Triggers)
	assert.Equal(t, "You said Dexter!", cfg.General.ReplyText, "unset keys keep their defaults")
	assert.Equal(t, 30, cfg.RateLimit.Capacity)
	assert.Equal(t, 60, cfg.RateLimit.IntervalSeconds)
	assert.Equal(t, 250*time.Millisecond, cfg.Monitor.ThreadDelay)
	assert.Equal(t, 30*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Reddit.Timeout)
	assert.Equal(t, "UltimateBottyBoi", cfg.BotIdentity())
	require.NoError(t, Validate(cfg))
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[reddit]
client_id = "id"
username = "from-file"
`)
	t.Setenv("REDDITBOT_REDDIT_CLIENT_SECRET", "env-secret")
	t.Setenv("REDDITBOT_REDDIT_PASSWORD", "env-pw")
	t.Setenv("REDDITBOT_GENERAL_IDENTITY", "OtherBot")
	t.Setenv("REDDITBOT_RATELIMIT_INTERVAL_SECONDS", "120")
	t.Setenv("REDDITBOT_GENERAL_TRIGGERS", "foo, bar,,")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Reddit.ClientSecret)
	assert.Equal(t, "env-pw", cfg.Reddit.Password)
	assert.Equal(t, "from-file", cfg.Reddit.Username)
	assert.Equal(t, "OtherBot", cfg.BotIdentity())
	assert.Equal(t, 120, cfg.RateLimit.IntervalSeconds)
	assert.Equal(t, []string{"foo", "bar"}, cfg.General.Triggers)
	assert.Equal(t, []string{"foo", "bar"}, cfg.Triggers())
}

func TestEnvValue(t *testing.T) {
	key, value := envValue("REDDITBOT_GENERAL_TRIGGERS", "Dexter,dexter")
	assert.Equal(t, "general.triggers", key)
	assert.Equal(t, []string{"Dexter", "dexter"}, value)

	key, value = envValue("REDDITBOT_GENERAL_REPLY_TEXT", "a, b")
	assert.Equal(t, "general.reply_text", key)
	assert.Equal(t, "a, b", value, "scalar keys keep their commas")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "reddit.client_secret", envKey("REDDITBOT_REDDIT_CLIENT_SECRET"))
	assert.Equal(t, "general.board", envKey("REDDITBOT_GENERAL_BOARD"))
	assert.Equal(t, "status", envKey("REDDITBOT_STATUS"))
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reddit.client_id is required")
	assert.Contains(t, err.Error(), "reddit.password is required")
	assert.Contains(t, err.Error(), "general.identity or reddit.username is required")

	cfg.Reddit.ClientID = "id"
	cfg.Reddit.ClientSecret = "secret"
	cfg.Reddit.Username = "bot"
	cfg.Reddit.Password = "pw"
	require.NoError(t, Validate(cfg))

	cfg.RateLimit.Capacity = 0
	cfg.RateLimit.IntervalSeconds = 0
	cfg.General.Triggers = []string{""}
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ratelimit.capacity")
	assert.Contains(t, err.Error(), "ratelimit.interval_seconds")
	assert.Contains(t, err.Error(), "general.triggers")
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redditbot.toml")
	require.NoError(t, InitConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "BotBois", cfg.General.Board)
	assert.Equal(t, "your-bot-account", cfg.Reddit.Username)
	require.NoError(t, Validate(cfg))

	assert.Error(t, InitConfig(path), "refuses to overwrite")
}
