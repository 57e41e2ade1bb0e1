// Package settings provides the persisted configuration record consumed
// by the sync engine and scheduler.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Defaults applied on load and whenever the surrounding UI supplies an
// invalid value.
const (
	DefaultCommitInterval = 15
	DefaultAuthMethod     = "ssh"
	DefaultCommitMessage  = "Vault auto-sync: {{date}}"
	DefaultLogMaxEntries  = 50

	// LastSyncNever is the literal stored before the first successful run.
	LastSyncNever = "Never"
)

// Settings is the single persisted configuration record.
type Settings struct {
	CommitInterval int    `yaml:"commit_interval" mapstructure:"commit_interval"` // minutes, >= 1
	RepoURL        string `yaml:"repo_url" mapstructure:"repo_url"`
	AuthMethod     string `yaml:"auth_method" mapstructure:"auth_method"` // ssh|https, advisory only
	AutoSync       bool   `yaml:"auto_sync" mapstructure:"auto_sync"`
	LastSync       string `yaml:"last_sync" mapstructure:"last_sync"`
	CommitMessage  string `yaml:"commit_message" mapstructure:"commit_message"`
	LogMaxEntries  int    `yaml:"log_max_entries" mapstructure:"log_max_entries"`
}

// Default returns the settings record with all defaults applied.
func Default() Settings {
	return Settings{
		CommitInterval: DefaultCommitInterval,
		RepoURL:        "",
		AuthMethod:     DefaultAuthMethod,
		AutoSync:       true,
		LastSync:       LastSyncNever,
		CommitMessage:  DefaultCommitMessage,
		LogMaxEntries:  DefaultLogMaxEntries,
	}
}

// Clamped returns a copy with out-of-range values replaced by defaults.
// Invalid input from the surrounding UI must never reach the sync engine.
func (s Settings) Clamped() Settings {
	if s.CommitInterval < 1 {
		s.CommitInterval = DefaultCommitInterval
	}
	if s.AuthMethod != "ssh" && s.AuthMethod != "https" {
		s.AuthMethod = DefaultAuthMethod
	}
	if s.LastSync == "" {
		s.LastSync = LastSyncNever
	}
	if s.CommitMessage == "" {
		s.CommitMessage = DefaultCommitMessage
	}
	if s.LogMaxEntries <= 0 {
		s.LogMaxEntries = DefaultLogMaxEntries
	}
	return s
}

// Store is the persistence boundary for settings.
type Store interface {
	Load() (Settings, error)
	Save(Settings) error
}

// FileStore persists settings as a YAML file, read through viper so
// partial files pick up defaults for missing keys.
type FileStore struct {
	path string

	mu       sync.Mutex
	observer func(Settings)
}

// NewFileStore creates a store for the given file path. The file need not
// exist yet; Load returns defaults until the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

// OnChange registers an optional observer invoked after every successful
// Save. Registered by the presentation layer; the sync engine does not
// depend on it.
func (f *FileStore) OnChange(fn func(Settings)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observer = fn
}

// Load reads the settings file, applying defaults for missing keys and
// clamping invalid values.
func (f *FileStore) Load() (Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := viper.New()
	v.SetConfigFile(f.path)
	v.SetConfigType("yaml")

	d := Default()
	v.SetDefault("commit_interval", d.CommitInterval)
	v.SetDefault("repo_url", d.RepoURL)
	v.SetDefault("auth_method", d.AuthMethod)
	v.SetDefault("auto_sync", d.AutoSync)
	v.SetDefault("last_sync", d.LastSync)
	v.SetDefault("commit_message", d.CommitMessage)
	v.SetDefault("log_max_entries", d.LogMaxEntries)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return d, nil
		}
		return d, fmt.Errorf("read settings: %w", err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return d, fmt.Errorf("parse settings: %w", err)
	}
	return s.Clamped(), nil
}

// Save writes the settings file and notifies the observer, if any.
// Values are clamped before they are persisted.
func (f *FileStore) Save(s Settings) error {
	f.mu.Lock()
	s = s.Clamped()

	data, err := yaml.Marshal(s)
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		f.mu.Unlock()
		return fmt.Errorf("create settings directory: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		f.mu.Unlock()
		return fmt.Errorf("write settings: %w", err)
	}

	observer := f.observer
	f.mu.Unlock()

	if observer != nil {
		observer(s)
	}
	return nil
}
