package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// REDDITBOT_REDDIT_CLIENT_SECRET sets reddit.client_secret.
const EnvPrefix = "REDDITBOT_"

// Config represents the application configuration
type Config struct {
	General struct {
		Board     string   `koanf:"board"`
		Identity  string   `koanf:"identity"`
		ReplyText string   `koanf:"reply_text"`
		Triggers  []string `koanf:"triggers"`
		DryRun    bool     `koanf:"dry_run"`
	} `koanf:"general"`

	RateLimit struct {
		Capacity        int `koanf:"capacity"`
		IntervalSeconds int `koanf:"interval_seconds"`
	} `koanf:"ratelimit"`

	Monitor struct {
		ThreadDelay     time.Duration `koanf:"thread_delay"`
		PollInterval    time.Duration `koanf:"poll_interval"`
		ThreadLimit     int           `koanf:"thread_limit"`
		MaxAuthFailures int           `koanf:"max_auth_failures"`
		RecentReplies   int           `koanf:"recent_replies"`
	} `koanf:"monitor"`

	Reddit struct {
		ClientID     string        `koanf:"client_id"`
		ClientSecret string        `koanf:"client_secret"`
		Username     string        `koanf:"username"`
		Password     string        `koanf:"password"`
		AppName      string        `koanf:"app_name"`
		Version      string        `koanf:"version"`
		BaseURL      string        `koanf:"base_url"`
		AuthURL      string        `koanf:"auth_url"`
		Timeout      time.Duration `koanf:"timeout"`
	} `koanf:"reddit"`

	Logging struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
		File   string `koanf:"file"`
	} `koanf:"logging"`

	Status struct {
		Listen string `koanf:"listen"`
	} `koanf:"status"`
}

// BotIdentity is the author name the bot posts under.
func (c *Config) BotIdentity() string {
	if c.General.Identity != "" {
		return c.General.Identity
	}
	return c.Reddit.Username
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"general.board":              "BotBois",
		"general.reply_text":         "You said Dexter!",
		"general.triggers":           []string{"Dexter", "dexter", "DEXTER"},
		"general.dry_run":            false,
		"ratelimit.capacity":         60,
		"ratelimit.interval_seconds": 60,
		"monitor.thread_delay":       "1s",
		"monitor.poll_interval":      "30s",
		"monitor.thread_limit":       25,
		"monitor.max_auth_failures":  3,
		"monitor.recent_replies":     1024,
		"reddit.app_name":            "redditbot",
		"reddit.version":             "1.0",
		"reddit.base_url":            "https://oauth.reddit.com",
		"reddit.auth_url":            "https://www.reddit.com/api/v1/access_token",
		"reddit.timeout":             "10s",
		"logging.level":              "info",
		"logging.format":             "console",
	}
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./redditbot.toml", "$HOME/.redditbot.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix REDDITBOT_
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// envKey maps REDDITBOT_SECTION_SOME_KEY to section.some_key. Only the first
// underscore separates the section, so keys keep their own underscores.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	return section + "." + rest
}

// listKeys are comma-separated when set from the environment.
var listKeys = map[string]bool{
	"general.triggers": true,
}

func envValue(k, v string) (string, interface{}) {
	key := envKey(k)
	if !listKeys[key] {
		return key, v
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return key, nonBlank(parts)
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	return os.WriteFile(configPath, []byte(sampleConfig), 0600)
}

const sampleConfig = `# redditbot configuration
# Every key can be overridden from the environment, e.g. REDDITBOT_REDDIT_PASSWORD.

[general]
board = "BotBois"
# identity defaults to reddit.username
reply_text = "You said Dexter!"
triggers = ["Dexter", "dexter", "DEXTER"]
dry_run = false

[ratelimit]
capacity = 60
interval_seconds = 60

[monitor]
thread_delay = "1s"
poll_interval = "30s"
thread_limit = 25
max_auth_failures = 3
recent_replies = 1024

[reddit]
client_id = "your-client-id"
client_secret = "your-client-secret"
username = "your-bot-account"
password = "your-bot-password"
app_name = "redditbot"
version = "1.0"

[logging]
level = "info"
format = "console"

[status]
# listen = "127.0.0.1:8089"
`

// Validate validates the configuration
func Validate(config *Config) error {
	var errs []error

	if strings.TrimSpace(config.General.Board) == "" {
		errs = append(errs, errors.New("general.board is required"))
	}
	if config.General.ReplyText == "" {
		errs = append(errs, errors.New("general.reply_text is required"))
	}
	if len(nonBlank(config.General.Triggers)) == 0 {
		errs = append(errs, errors.New("general.triggers needs at least one phrase"))
	}
	if config.BotIdentity() == "" {
		errs = append(errs, errors.New("general.identity or reddit.username is required"))
	}

	if config.RateLimit.Capacity < 1 {
		errs = append(errs, fmt.Errorf("ratelimit.capacity must be greater than 0, got %d", config.RateLimit.Capacity))
	}
	if config.RateLimit.IntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("ratelimit.interval_seconds must be greater than 0, got %d", config.RateLimit.IntervalSeconds))
	}

	if config.Monitor.ThreadDelay < 0 {
		errs = append(errs, errors.New("monitor.thread_delay must not be negative"))
	}
	if config.Monitor.PollInterval < 0 {
		errs = append(errs, errors.New("monitor.poll_interval must not be negative"))
	}
	if config.Monitor.ThreadLimit < 1 || config.Monitor.ThreadLimit > 100 {
		errs = append(errs, fmt.Errorf("monitor.thread_limit must be between 1 and 100, got %d", config.Monitor.ThreadLimit))
	}

	if config.Reddit.ClientID == "" {
		errs = append(errs, errors.New("reddit.client_id is required"))
	}
	if config.Reddit.ClientSecret == "" {
		errs = append(errs, errors.New("reddit.client_secret is required"))
	}
	if config.Reddit.Username == "" {
		errs = append(errs, errors.New("reddit.username is required"))
	}
	if config.Reddit.Password == "" {
		errs = append(errs, errors.New("reddit.password is required"))
	}

	return errors.Join(errs...)
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Triggers returns the configured phrases with empty entries dropped.
func (c *Config) Triggers() []string {
	return nonBlank(c.General.Triggers)
}
