// Package credentials resolves the secrets notetaker needs at runtime.
//
// Each secret is looked up in its environment variables first and then in the
// system keyring:
// - macOS: Keychain
// - Windows: Credential Manager
// - Linux: Secret Service (libsecret)
//
// Secrets are never written to the config file. Use `notetaker credentials set`
// to store one in the keyring.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Secret names understood by the resolver and the credentials command.
const (
	OpenAIAPIKey  = "openai-api-key"
	BrevoAPIKey   = "brevo-api-key"
	DBPassword    = "db-password"
	RedisPassword = "redis-password"
)

// Common errors.
var (
	// ErrNotFound is returned when a secret is set nowhere.
	ErrNotFound = errors.New("secret not found")
	// ErrUnknownSecret is returned for names outside the known set.
	ErrUnknownSecret = errors.New("unknown secret")
)

// Source says where a resolved secret came from.
type Source string

const (
	SourceEnv     Source = "env"
	SourceKeyring Source = "keyring"
	SourceNone    Source = "unset"
)

// envVars lists the environment variables checked for each secret, in order.
var envVars = map[string][]string{
	OpenAIAPIKey:  {"NOTETAKER_OPENAI_API_KEY", "OPENAI_API_KEY"},
	BrevoAPIKey:   {"NOTETAKER_BREVO_API_KEY", "BREVO_API_KEY"},
	DBPassword:    {"NOTETAKER_DB_PASSWORD"},
	RedisPassword: {"NOTETAKER_REDIS_PASSWORD"},
}

// Names returns the known secret names, sorted.
func Names() []string {
	names := make([]string, 0, len(envVars))
	for name := range envVars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnvVars returns the environment variables checked for name.
func EnvVars(name string) []string {
	return envVars[name]
}

// Known reports whether name is a secret the resolver understands.
func Known(name string) bool {
	_, ok := envVars[name]
	return ok
}

// Resolver looks secrets up in the environment, then in a Backend.
type Resolver struct {
	backend Backend
	getenv  func(string) string
}

// NewResolver creates a resolver backed by the system keyring.
func NewResolver() *Resolver {
	return NewResolverWithBackend(NewKeyringBackend())
}

// NewResolverWithBackend creates a resolver with a custom backend.
// A nil backend resolves from the environment only.
func NewResolverWithBackend(backend Backend) *Resolver {
	return &Resolver{backend: backend, getenv: os.Getenv}
}

// Lookup returns the secret and where it was found. A missing secret returns
// ErrNotFound with SourceNone; a keyring failure is returned as is.
func (r *Resolver) Lookup(name string) (string, Source, error) {
	vars, ok := envVars[name]
	if !ok {
		return "", SourceNone, fmt.Errorf("%w: %s", ErrUnknownSecret, name)
	}

	for _, v := range vars {
		if value := strings.TrimSpace(r.getenv(v)); value != "" {
			return value, SourceEnv, nil
		}
	}

	if r.backend == nil {
		return "", SourceNone, ErrNotFound
	}
	value, err := r.backend.Get(name)
	if err != nil {
		return "", SourceNone, err
	}
	return value, SourceKeyring, nil
}

// Resolve returns the secret or "" when it is not configured. Keyring errors
// are treated as not configured so that optional services degrade instead of
// failing startup; the error is still returned for logging.
func (r *Resolver) Resolve(name string) (string, error) {
	value, _, err := r.Lookup(name)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return value, err
}

// Store saves a secret in the backend.
func (r *Resolver) Store(name, value string) error {
	if !Known(name) {
		return fmt.Errorf("%w: %s", ErrUnknownSecret, name)
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value must not be empty")
	}
	if r.backend == nil {
		return ErrKeyringUnavailable
	}
	return r.backend.Set(name, strings.TrimSpace(value))
}

// Remove deletes a secret from the backend. Environment variables are untouched.
func (r *Resolver) Remove(name string) error {
	if !Known(name) {
		return fmt.Errorf("%w: %s", ErrUnknownSecret, name)
	}
	if r.backend == nil {
		return ErrKeyringUnavailable
	}
	return r.backend.Delete(name)
}

// Description names the backend for display.
func (r *Resolver) Description() string {
	if r.backend == nil {
		return "environment only"
	}
	return r.backend.Description()
}

// MaskCredential returns a masked version of the credential for display.
func MaskCredential(cred string) string {
	if len(cred) <= 8 {
		return strings.Repeat("*", len(cred))
	}
	return cred[:4] + strings.Repeat("*", len(cred)-8) + cred[len(cred)-4:]
}
