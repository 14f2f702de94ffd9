// Package secrets resolves credentials from the OS keychain, falling back to
// environment variables.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups leadhunter's entries in the OS keychain.
const KeyringService = "leadhunter"

// Credential names. Each is both the keychain account and the environment
// variable consulted when the keychain has no entry.
const (
	GmailAddress     = "MY_GMAIL"
	GmailAppPassword = "GMAIL_APP_PASSWORD"
	GeminiAPIKey     = "GEMINI_API_KEY"
	AnthropicAPIKey  = "ANTHROPIC_API_KEY"
	OpenAIAPIKey     = "OPENAI_API_KEY"
)

// Known lists the credentials leadhunter reads.
var Known = []string{GmailAddress, GmailAppPassword, GeminiAPIKey, AnthropicAPIKey, OpenAIAPIKey}

// ErrNotFound is returned when neither source holds a credential.
var ErrNotFound = errors.New("credential not found")

// Source says where a credential was found.
type Source string

const (
	SourceKeychain Source = "keychain"
	SourceEnv      Source = "env"
	SourceMissing  Source = "missing"
)

// Store reads and writes credentials.
type Store struct {
	service string
	getenv  func(string) string
}

// New returns a Store over the leadhunter keychain service and the process
// environment.
func New() *Store {
	return &Store{service: KeyringService, getenv: os.Getenv}
}

// NewWithEnv returns a Store that reads environment values through getenv.
func NewWithEnv(getenv func(string) string) *Store {
	return &Store{service: KeyringService, getenv: getenv}
}

// Get returns the named credential from the keychain, then the environment.
func (s *Store) Get(name string) (string, error) {
	value, src := s.resolve(name)
	if src == SourceMissing {
		return "", fmt.Errorf("%s: %w (set it with `leadhunter secrets set %s` or the %s environment variable)", name, ErrNotFound, name, name)
	}
	return value, nil
}

// Lookup returns the credential or "".
func (s *Store) Lookup(name string) string {
	value, _ := s.resolve(name)
	return value
}

// Source reports where name would be read from.
func (s *Store) Source(name string) Source {
	_, src := s.resolve(name)
	return src
}

func (s *Store) resolve(name string) (string, Source) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", SourceMissing
	}
	if v, err := keyring.Get(s.service, name); err == nil && strings.TrimSpace(v) != "" {
		return v, SourceKeychain
	}
	if v := strings.TrimSpace(s.getenv(name)); v != "" {
		return v, SourceEnv
	}
	return "", SourceMissing
}

// Set stores value in the keychain.
func (s *Store) Set(name, value string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("credential name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("credential value is empty")
	}
	return keyring.Set(s.service, name, value)
}

// Delete removes name from the keychain.
func (s *Store) Delete(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("credential name is empty")
	}
	if err := keyring.Delete(s.service, name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return err
	}
	return nil
}
