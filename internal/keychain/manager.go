// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides thread-safe access to the OS keychain for storefront.
// It stores small values such as the "logged in" flag and the identity backend's
// session tokens, keyed by namespace so unrelated callers cannot collide.
//
// The package supports macOS Keychain (through the security command or the keyring
// library), Windows Credential Manager, Secret Service, KWallet, pass, and an
// encrypted file fallback. A Manager is constructed explicitly and passed to its
// users; there is no process-wide instance.
package keychain

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "storefront"

// Namespace used for the identity backend's own session tokens.
const AuthNamespace = "auth"

// Keys used for storing backend secrets under AuthNamespace.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUID          = "uid"
)

// ErrNotFound is returned when a key has never been written or was removed.
var ErrNotFound = errors.New("keychain: item not found")

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu      sync.RWMutex
	ring    keyring.Keyring
	backend keychainBackend
}

// keychainBackend defines the interface for native keychain operations.
type keychainBackend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// Options controls how the OS keyring is opened.
type Options struct {
	// ServiceName overrides the keyring service; defaults to ServiceName.
	ServiceName string
	// Backends restricts keyring backends by name ("keychain", "wincred",
	// "secret-service", "kwallet", "pass", "file"). Empty means platform defaults.
	Backends []string
	// FileDir is where the encrypted file backend keeps its items.
	FileDir string
	// FilePassword unlocks the file backend without prompting.
	FilePassword string
}

// NewManager creates a new keychain manager with the OS keyring initialized.
func NewManager(opts Options) (*Manager, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = ServiceName
	}

	// Try native security backend first on macOS
	if runtime.GOOS == "darwin" && len(opts.Backends) == 0 {
		backend, err := newSecurityBackend(opts.ServiceName)
		if err == nil {
			return &Manager{backend: backend}, nil
		}
		// Fall through to keyring library if security command fails
	}

	ring, err := openRing(opts)
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewManagerWithKeyring wraps an already opened keyring, for example
// keyring.NewArrayKeyring in tests.
func NewManagerWithKeyring(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// openRing opens the OS keyring with the configured or platform default backends.
func openRing(opts Options) (keyring.Keyring, error) {
	allowed, err := allowedBackends(opts.Backends)
	if err != nil {
		return nil, err
	}

	cfg := keyring.Config{
		ServiceName:     opts.ServiceName,
		AllowedBackends: allowed,
		PassPrefix:      opts.ServiceName,
		FileDir:         opts.FileDir,
		KWalletAppID:    opts.ServiceName,
		KWalletFolder:   opts.ServiceName,

		LibSecretCollectionName: "login",
	}
	if opts.FilePassword != "" {
		cfg.FilePasswordFunc = keyring.FixedStringPrompt(opts.FilePassword)
	} else {
		cfg.FilePasswordFunc = keyring.TerminalPrompt
	}

	// Hint prefixes where supported to minimize namespace collisions
	if runtime.GOOS == "windows" {
		cfg.WinCredPrefix = opts.ServiceName
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. On macOS 26.0+, install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return ring, nil
}

func allowedBackends(names []string) ([]keyring.BackendType, error) {
	if len(names) == 0 {
		switch runtime.GOOS {
		case "darwin":
			// Pass requires 'pass' utility installed: brew install pass
			return []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}, nil
		case "windows":
			return []keyring.BackendType{keyring.WinCredBackend}, nil
		default:
			return []keyring.BackendType{
				keyring.SecretServiceBackend,
				keyring.KWalletBackend,
				keyring.PassBackend,
				keyring.FileBackend,
			}, nil
		}
	}

	out := make([]keyring.BackendType, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "keychain":
			out = append(out, keyring.KeychainBackend)
		case "wincred":
			out = append(out, keyring.WinCredBackend)
		case "secret-service", "secretservice":
			out = append(out, keyring.SecretServiceBackend)
		case "kwallet":
			out = append(out, keyring.KWalletBackend)
		case "pass":
			out = append(out, keyring.PassBackend)
		case "file":
			out = append(out, keyring.FileBackend)
		case "keyctl":
			out = append(out, keyring.KeyCtlBackend)
		default:
			return nil, fmt.Errorf("unknown keyring backend %q", n)
		}
	}
	return out, nil
}

// itemKey joins namespace and key into the flat key the keyring stores.
func itemKey(namespace, key string) string {
	return namespace + ":" + key
}

// Set stores value under namespace/key, replacing any previous value.
// This method is thread-safe.
func (m *Manager) Set(namespace, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set(itemKey(namespace, key), value)
}

// Get returns the value under namespace/key or ErrNotFound.
// This method is thread-safe.
func (m *Manager) Get(namespace, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.get(itemKey(namespace, key))
}

// SaveAuthTokens stores access and refresh tokens in the OS keychain.
// Empty values leave the stored token untouched.
// This method is thread-safe.
func (m *Manager) SaveAuthTokens(accessToken, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if accessToken != "" {
		if err := m.set(itemKey(AuthNamespace, KeyAccessToken), accessToken); err != nil {
			return err
		}
	}
	if refreshToken != "" {
		if err := m.set(itemKey(AuthNamespace, KeyRefreshToken), refreshToken); err != nil {
			return err
		}
	}
	return nil
}

// LoadAccessToken retrieves the access token from the keychain.
// This method is thread-safe.
func (m *Manager) LoadAccessToken() (string, error) {
	return m.loadNonEmpty(KeyAccessToken, "empty access token")
}

// LoadRefreshToken retrieves the refresh token from the keychain.
// This method is thread-safe.
func (m *Manager) LoadRefreshToken() (string, error) {
	return m.loadNonEmpty(KeyRefreshToken, "empty refresh token")
}

func (m *Manager) loadNonEmpty(key, emptyMsg string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token, err := m.get(itemKey(AuthNamespace, key))
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.New(emptyMsg)
	}
	return token, nil
}

// ClearAuth removes all auth-related secrets from the keychain.
// This method is thread-safe.
func (m *Manager) ClearAuth() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, k := range []string{KeyAccessToken, KeyRefreshToken, KeyUID} {
		if err := m.delete(itemKey(AuthNamespace, k)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) set(key, value string) error {
	if m.backend != nil {
		return m.backend.Set(key, value)
	}
	return m.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: ServiceName + " " + key})
}

func (m *Manager) get(key string) (string, error) {
	if m.backend != nil {
		v, err := m.backend.Get(key)
		if errors.Is(err, errSecurityNotFound) {
			return "", ErrNotFound
		}
		return v, err
	}

	it, err := m.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(it.Data), nil
}

func (m *Manager) delete(key string) error {
	if m.backend != nil {
		return m.backend.Delete(key)
	}
	if err := m.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
