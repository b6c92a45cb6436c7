package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/joho/godotenv"

	"github.com/redditbot/internal/config"
)

// DefaultEnvFile is read when --env-file is not given. It may be absent.
const DefaultEnvFile = ".env"

// ConfigCheckResult holds the result of credential validation
type ConfigCheckResult struct {
	Missing  []string          // Required settings that are missing
	Present  map[string]string // Settings that are set (masked values)
	Warnings []string          // Non-fatal warnings
}

type credential struct {
	key    string
	envVar string
	value  string
	secret bool
}

func credentials(cfg *config.Config) []credential {
	return []credential{
		{"reddit.client_id", config.EnvPrefix + "REDDIT_CLIENT_ID", cfg.Reddit.ClientID, false},
		{"reddit.client_secret", config.EnvPrefix + "REDDIT_CLIENT_SECRET", cfg.Reddit.ClientSecret, true},
		{"reddit.username", config.EnvPrefix + "REDDIT_USERNAME", cfg.Reddit.Username, false},
		{"reddit.password", config.EnvPrefix + "REDDIT_PASSWORD", cfg.Reddit.Password, true},
	}
}

// CheckRequiredConfig reports which Reddit credentials are set and warns
// about secrets kept in the config file instead of the environment.
func CheckRequiredConfig(cfg *config.Config) *ConfigCheckResult {
	result := &ConfigCheckResult{
		Missing:  []string{},
		Present:  make(map[string]string),
		Warnings: []string{},
	}

	for _, c := range credentials(cfg) {
		if c.value == "" {
			result.Missing = append(result.Missing, c.key)
			continue
		}
		if c.secret {
			result.Present[c.key] = maskSecret(c.value)
			if os.Getenv(c.envVar) == "" {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("%s is read from the config file; prefer %s", c.key, c.envVar))
			}
		} else {
			result.Present[c.key] = c.value
		}
	}

	return result
}

// PrintConfigCheck prints the credential check results
func PrintConfigCheck(w io.Writer, result *ConfigCheckResult) {
	fmt.Fprintln(w, "=== Credential Check ===")

	if len(result.Missing) > 0 {
		fmt.Fprintln(w, "❌ Missing required settings:")
		for _, v := range result.Missing {
			fmt.Fprintf(w, "   - %s\n", v)
		}
		fmt.Fprintln(w, "")
	}

	if len(result.Present) > 0 {
		keys := make([]string, 0, len(result.Present))
		for k := range result.Present {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(w, "✓ Configured settings:")
		for _, k := range keys {
			fmt.Fprintf(w, "   - %s = %s\n", k, result.Present[k])
		}
		fmt.Fprintln(w, "")
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "⚠ Warning: %s\n", warning)
	}

	if len(result.Missing) == 0 {
		fmt.Fprintln(w, "✓ All required credentials are present")
	}

	fmt.Fprintln(w, "========================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}

// LoadEnvFile loads environment variables from filename, overwriting existing
// ones. An empty filename reads DefaultEnvFile if it exists.
func LoadEnvFile(filename string) error {
	if filename == "" {
		err := godotenv.Overload(DefaultEnvFile)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Overload(filename)
}
