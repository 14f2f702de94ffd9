package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jmylchreest/leadhunter/internal/compose"
	"github.com/jmylchreest/leadhunter/internal/delivery"
	"github.com/jmylchreest/leadhunter/internal/output"
	"github.com/jmylchreest/leadhunter/internal/secrets"
	"github.com/jmylchreest/leadhunter/pkg/capture"
)

// captureSettings overlays the capture: and fingerprint: config sections on
// the defaults.
func captureSettings(v *viper.Viper) (capture.Config, capture.Fingerprint, error) {
	cfg := capture.DefaultConfig()
	if err := v.UnmarshalKey("capture", &cfg); err != nil {
		return cfg, capture.Fingerprint{}, fmt.Errorf("capture config: %w", err)
	}
	fp := capture.DefaultFingerprint()
	if err := v.UnmarshalKey("fingerprint", &fp); err != nil {
		return cfg, fp, fmt.Errorf("fingerprint config: %w", err)
	}
	return cfg, fp, nil
}

// credentials resolves a credential from the keychain or environment, then
// from the keys: config section.
func credentials(v *viper.Viper, store *secrets.Store) func(string) string {
	return func(name string) string {
		if value := store.Lookup(name); value != "" {
			return value
		}
		for _, kv := range compose.KeyVariables {
			if kv.Key == name {
				return v.GetString("keys." + kv.Provider)
			}
		}
		return ""
	}
}

// composeSettings builds the composer config. An unset provider is picked
// from the first available API key.
func composeSettings(v *viper.Viper, lookup func(string) string) (compose.Config, error) {
	cfg := compose.DefaultConfig()
	if err := v.UnmarshalKey("compose", &cfg); err != nil {
		return cfg, fmt.Errorf("compose config: %w", err)
	}
	if cfg.Provider == "" {
		cfg.Provider, cfg.APIKey = compose.DetectProvider(lookup)
	}
	if cfg.APIKey == "" {
		for _, kv := range compose.KeyVariables {
			if kv.Provider == cfg.Provider {
				cfg.APIKey = lookup(kv.Key)
			}
		}
	}
	if cfg.Model == "" {
		cfg.Model = compose.DefaultModel(cfg.Provider)
	}
	return cfg, cfg.Validate()
}

// deliverySettings builds the relay config. Login and password default to
// the Gmail credentials.
func deliverySettings(v *viper.Viper, lookup func(string) string) (delivery.Config, error) {
	cfg := delivery.DefaultConfig()
	if err := v.UnmarshalKey("smtp", &cfg); err != nil {
		return cfg, fmt.Errorf("smtp config: %w", err)
	}
	if cfg.Username == "" {
		cfg.Username = lookup(secrets.GmailAddress)
	}
	if cfg.Password == "" {
		cfg.Password = lookup(secrets.GmailAppPassword)
	}
	return cfg, cfg.Validate()
}

// resolveFormat prefers the explicit flag, then the output file extension,
// then json.
func resolveFormat(flag, path string) (output.Format, error) {
	if strings.TrimSpace(flag) != "" {
		return output.ParseFormat(flag)
	}
	if f, ok := output.FormatFromPath(path); ok {
		return f, nil
	}
	return output.FormatJSON, nil
}

// parseSize reads a human size; empty or "0" means the default.
func parseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int(n), nil
}

// historyPath returns history.path, or leadhunter/history.db under the user
// config directory.
func historyPath(v *viper.Viper) string {
	if p := v.GetString("history.path"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "leadhunter-history.db"
	}
	return filepath.Join(dir, "leadhunter", "history.db")
}
