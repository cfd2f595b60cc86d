package credentials

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name used in the system keyring.
const keyringService = "notetaker"

// ErrKeyringUnavailable indicates the system keyring is not available.
var ErrKeyringUnavailable = errors.New("system keyring unavailable")

// Backend stores named secrets.
type Backend interface {
	// Get returns ErrNotFound when the secret is not stored.
	Get(name string) (string, error)
	Set(name, value string) error
	// Delete is a no-op for secrets that are not stored.
	Delete(name string) error

	// Description returns a human-readable description of the storage mechanism.
	Description() string
}

// KeyringBackend stores secrets in the system keyring
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
type KeyringBackend struct {
	service string
	mu      sync.Mutex
}

// NewKeyringBackend creates a backend under the notetaker service name.
func NewKeyringBackend() *KeyringBackend {
	return &KeyringBackend{service: keyringService}
}

// Get retrieves a secret from the system keyring.
func (b *KeyringBackend) Get(name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	value, err := keyring.Get(b.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return value, nil
}

// Set stores a secret, replacing any previous value.
func (b *KeyringBackend) Set(name, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := keyring.Set(b.service, name, value); err != nil {
		return fmt.Errorf("%w: storing %s: %v", ErrKeyringUnavailable, name, err)
	}
	return nil
}

// Delete removes a secret from the keyring.
func (b *KeyringBackend) Delete(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := keyring.Delete(b.service, name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: deleting %s: %v", ErrKeyringUnavailable, name, err)
	}
	return nil
}

// Description returns a description of this backend.
func (b *KeyringBackend) Description() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "System Keyring (Secret Service)"
	}
}

// IsKeyringAvailable checks if the system keyring is accessible.
func IsKeyringAvailable() bool {
	_, err := NewKeyringBackend().Get("probe")
	return err == nil || errors.Is(err, ErrNotFound)
}
