// Package auth stores FTP passwords outside the command line, in the system
// keyring when one is available and in an encrypted file otherwise.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zalando/go-keyring"

	"github.com/dl-alexandre/dirsync/internal/utils"
)

const accountsFile = "accounts.json"

// Manager resolves and stores FTP passwords keyed by user@host.
type Manager struct {
	configDir      string
	useKeyring     bool
	storage        StorageBackend
	storageWarning string
}

// ManagerOptions configures the credential manager
type ManagerOptions struct {
	ForceEncryptedFile bool // Force use of encrypted file storage
}

// NewManager creates a credential manager that prefers the system keyring
func NewManager(configDir string) *Manager {
	return NewManagerWithOptions(configDir, ManagerOptions{})
}

// NewManagerWithOptions creates a credential manager with specific options
func NewManagerWithOptions(configDir string, opts ManagerOptions) *Manager {
	mgr := &Manager{
		configDir: configDir,
	}

	if opts.ForceEncryptedFile || !checkKeyringAvailable() {
		storage, err := NewEncryptedFileStorage(configDir)
		if err != nil {
			mgr.storageWarning = fmt.Sprintf("WARNING: Encryption setup failed (%v). Credential storage is unavailable.", err)
			return mgr
		}
		mgr.storage = storage
		if !opts.ForceEncryptedFile {
			mgr.storageWarning = "INFO: System keyring not available. Using encrypted file storage."
		}
		return mgr
	}

	mgr.storage = NewKeyringStorage(utils.KeyringService)
	mgr.useKeyring = true
	return mgr
}

// checkKeyringAvailable tests if system keyring is available
func checkKeyringAvailable() bool {
	testKey := utils.KeyringService + "-probe"
	if err := keyring.Set(utils.KeyringService, testKey, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(utils.KeyringService, testKey)
	return true
}

// CredentialKey names the stored secret for an FTP account.
func CredentialKey(user, host string) string {
	return user + "@" + host
}

// Password returns the stored password for user@host. Its signature matches
// the FTP backend's password lookup hook.
func (m *Manager) Password(user, host string) (string, error) {
	key := CredentialKey(user, host)
	if m.storage == nil {
		return "", authError(key, errors.New("no credential storage available"))
	}
	data, err := m.storage.Load(key)
	if err != nil {
		return "", authError(key, err)
	}
	return string(data), nil
}

// SetPassword stores password for user@host
func (m *Manager) SetPassword(user, host, password string) error {
	if m.storage == nil {
		return errors.New("no credential storage available")
	}
	key := CredentialKey(user, host)
	if err := m.storage.Save(key, []byte(password)); err != nil {
		return fmt.Errorf("save credential %s: %w", key, err)
	}
	return m.addAccount(key)
}

// DeletePassword removes the stored password for user@host; absent entries are not an error
func (m *Manager) DeletePassword(user, host string) error {
	if m.storage == nil {
		return nil
	}
	key := CredentialKey(user, host)
	if err := m.storage.Delete(key); err != nil {
		return fmt.Errorf("delete credential %s: %w", key, err)
	}
	return m.removeAccount(key)
}

// ListAccounts lists the user@host keys with a stored password
func (m *Manager) ListAccounts() ([]string, error) {
	if files, ok := m.storage.(*EncryptedFileStorage); ok {
		keys, err := files.Keys()
		sort.Strings(keys)
		return keys, err
	}

	// The keyring cannot enumerate, so keys are tracked in a side file
	data, err := os.ReadFile(filepath.Join(m.configDir, accountsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, err
	}
	sort.Strings(accounts)
	return accounts, nil
}

// UseKeyring returns whether the manager is using the system keyring
func (m *Manager) UseKeyring() bool {
	return m.useKeyring
}

// GetStorageBackend names the active storage
func (m *Manager) GetStorageBackend() string {
	if m.storage == nil {
		return "none"
	}
	return m.storage.Name()
}

// GetStorageWarning returns a notice about degraded storage, if any
func (m *Manager) GetStorageWarning() string {
	return m.storageWarning
}

func (m *Manager) addAccount(key string) error {
	if !m.useKeyring {
		return nil
	}
	accounts, err := m.ListAccounts()
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if a == key {
			return nil
		}
	}
	return m.writeAccounts(append(accounts, key))
}

func (m *Manager) removeAccount(key string) error {
	if !m.useKeyring {
		return nil
	}
	accounts, err := m.ListAccounts()
	if err != nil {
		return err
	}
	updated := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if a != key {
			updated = append(updated, a)
		}
	}
	return m.writeAccounts(updated)
}

func (m *Manager) writeAccounts(accounts []string) error {
	data, err := json.Marshal(accounts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.configDir, accountsFile), data, 0600)
}

func authError(key string, cause error) error {
	cliErr := utils.NewCLIError(utils.ErrCodeAuthFailed,
		fmt.Sprintf("no password for %s: %v", key, cause)).
		WithSuggestedAction("store one with 'dirsync credentials set' or put it in the ftp:// URL").
		WithContext("account", key).
		Build()
	return utils.WrapAppError(cliErr, cause)
}
