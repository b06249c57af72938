package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tailscale/hujson"

	"github.com/barysiuk/profiler/internal/core/host"
)

const (
	configDirName  = ".profiler"
	configFileName = "config.json"

	// HomeEnvVar overrides the configuration directory.
	HomeEnvVar = "PROFILER_HOME"
)

// ConfigManager handles reading and writing the profiler configuration.
type ConfigManager struct {
	configDir string
	mu        sync.RWMutex
}

// NewConfigManager creates a ConfigManager using $PROFILER_HOME, or
// ~/.profiler/ when it is unset.
func NewConfigManager() (*ConfigManager, error) {
	if dir := os.Getenv(HomeEnvVar); dir != "" {
		return &ConfigManager{configDir: ExpandPath(dir)}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	return &ConfigManager{
		configDir: filepath.Join(home, configDirName),
	}, nil
}

// NewConfigManagerWithDir creates a ConfigManager using a custom config directory.
// Useful for testing.
func NewConfigManagerWithDir(dir string) *ConfigManager {
	return &ConfigManager{configDir: dir}
}

// ConfigDir returns the configuration directory path.
func (cm *ConfigManager) ConfigDir() string {
	return cm.configDir
}

// ConfigPath returns the full path to the config file.
func (cm *ConfigManager) ConfigPath() string {
	return filepath.Join(cm.configDir, configFileName)
}

// Load reads the config from disk, filling unset fields with defaults.
// Returns the default config if the file doesn't exist. The file may contain
// comments and trailing commas.
func (cm *ConfigManager) Load() (*Config, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	cfg := DefaultConfig()

	data, err := os.ReadFile(cm.ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := json.Unmarshal(std, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cm.ConfigPath(), err)
	}
	return cfg, nil
}

// Save writes the config to disk, creating the directory if needed.
func (cm *ConfigManager) Save(cfg *Config) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := os.MkdirAll(cm.configDir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	saved := *cfg
	saved.Host.Password = "" // secrets live in the environment

	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return writeFileAtomic(cm.ConfigPath(), append(data, '\n'))
}

// BackupsDir returns where backup archives are kept locally.
func (cm *ConfigManager) BackupsDir(cfg *Config) string {
	if cfg != nil && cfg.Backup.Dir != "" {
		return ExpandPath(cfg.Backup.Dir)
	}
	return filepath.Join(cm.configDir, "backups")
}

// StagingDir returns the scratch directory used while building or restoring
// a backup.
func (cm *ConfigManager) StagingDir() string {
	return filepath.Join(cm.configDir, "staging")
}

// ReportsDir returns where reconciliation reports are persisted.
func (cm *ConfigManager) ReportsDir() string {
	return filepath.Join(cm.configDir, "reports")
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	t := DefaultTimings()
	return &Config{
		Host: HostConfig{
			URL:            "localhost:8080",
			Transport:      "http",
			BridgeAddon:    host.DefaultBridgeAddon,
			HomeDir:        "~/.kodi",
			SlowCallMS:     int(host.DefaultSlowCall / time.Millisecond),
			ModalTimeoutMS: int(host.DefaultModalTimeout / time.Millisecond),
		},
		Install: InstallConfig{
			PerRepoTimeoutS:      int(t.RepoTimeout / time.Second),
			PerAddonTimeoutS:     int(t.AddonTimeout / time.Second),
			PollIntervalMS:       int(t.PollInterval / time.Millisecond),
			FolderPollIntervalMS: int(t.FolderPollInterval / time.Millisecond),
			PostRefreshSettleMS:  int(t.PostRefreshSettle / time.Millisecond),
			ExtractSettleMS:      int(t.ExtractSettle / time.Millisecond),
			RescanSettleMS:       int(t.RescanSettle / time.Millisecond),
			EnableSettleMS:       int(t.EnableSettle / time.Millisecond),
			HeartbeatS:           int(t.Heartbeat / time.Second),
		},
		Backup: BackupConfig{
			IncludeKeymaps:          true,
			IncludeAdvancedSettings: true,
			OverwriteXML:            true,
			ClearGUICache:           true,
			SwitchSkin:              true,
		},
		Store: StoreConfig{
			Region: "us-east-1",
		},
	}
}

// Validate checks every duration is positive and that the post-refresh
// settle delay is shorter than the per-item timeouts.
func (c *Config) Validate() error {
	switch c.Host.Transport {
	case "", "http", "websocket", "ws":
	default:
		return fmt.Errorf("host.transport %q must be http or websocket", c.Host.Transport)
	}
	if c.Host.SlowCallMS <= 0 {
		return fmt.Errorf("host.slow_call_ms must be positive")
	}
	if c.Host.ModalTimeoutMS <= 0 {
		return fmt.Errorf("host.modal_timeout_ms must be positive")
	}
	return c.Install.Timings().Validate()
}

// HostOptions returns the control-channel client options for this config.
func (c *Config) HostOptions() host.Options {
	return host.Options{
		BridgeAddon:  c.Host.BridgeAddon,
		SlowCall:     time.Duration(c.Host.SlowCallMS) * time.Millisecond,
		ModalTimeout: time.Duration(c.Host.ModalTimeoutMS) * time.Millisecond,
	}
}

// AddonsDir returns the local path of the host's add-on root.
func (c *Config) AddonsDir() string {
	return filepath.Join(ExpandPath(c.Host.HomeDir), "addons")
}

// UserdataDir returns the local path of the host's profile directory.
func (c *Config) UserdataDir() string {
	return filepath.Join(ExpandPath(c.Host.HomeDir), "userdata")
}

// TempDir returns the scratch directory for downloads.
func (c *Config) TempDir() string {
	if c.Host.TempDir != "" {
		return ExpandPath(c.Host.TempDir)
	}
	return os.TempDir()
}
