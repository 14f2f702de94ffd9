package capture

import (
	"fmt"
	"strings"
)

// Fingerprint holds the browser identity values injected into a session to
// look less like automation. Sites keep adding checks, so these values are
// best effort and expected to go stale.
type Fingerprint struct {
	Languages []string `mapstructure:"languages" yaml:"languages"`
	Platform  string   `mapstructure:"platform" yaml:"platform"`
	Vendor    string   `mapstructure:"vendor" yaml:"vendor"`
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
}

// DefaultFingerprint mimics a desktop Chrome on Windows.
func DefaultFingerprint() Fingerprint {
	return Fingerprint{
		Languages: []string{"en-US", "en"},
		Platform:  "Win32",
		Vendor:    "Google Inc.",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Merge returns f with empty fields taken from other.
func (f Fingerprint) Merge(other Fingerprint) Fingerprint {
	if len(f.Languages) == 0 {
		f.Languages = other.Languages
	}
	if f.Platform == "" {
		f.Platform = other.Platform
	}
	if f.Vendor == "" {
		f.Vendor = other.Vendor
	}
	if f.UserAgent == "" {
		f.UserAgent = other.UserAgent
	}
	return f
}

// AcceptLanguage renders Languages as an Accept-Language header value with
// descending quality weights.
func (f Fingerprint) AcceptLanguage() string {
	parts := make([]string, 0, len(f.Languages))
	for i, lang := range f.Languages {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		}
		if i == 0 {
			parts = append(parts, lang)
			continue
		}
		q := 1.0 - 0.1*float64(i)
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", lang, q))
	}
	return strings.Join(parts, ",")
}
