// Package core provides the business logic for profiler: configuration,
// manifests, the install-reconciliation engine, and the backup and restore
// workflows built around it. It has zero UI dependencies and is
// independently testable.
package core

// Config represents the profiler configuration stored at ~/.profiler/config.json.
type Config struct {
	Host    HostConfig    `json:"host" yaml:"host"`
	Install InstallConfig `json:"install" yaml:"install"`
	Backup  BackupConfig  `json:"backup" yaml:"backup"`
	Store   StoreConfig   `json:"store" yaml:"store"`
}

// HostConfig describes how to reach the media-center host.
type HostConfig struct {
	URL            string `json:"url" yaml:"url"`
	Transport      string `json:"transport" yaml:"transport"` // "http" or "websocket"
	Username       string `json:"username,omitempty" yaml:"username,omitempty"`
	Password       string `json:"password,omitempty" yaml:"-"`
	BridgeAddon    string `json:"bridge_addon" yaml:"bridge_addon"`
	HomeDir        string `json:"home_dir" yaml:"home_dir"` // local path behind special://home
	TempDir        string `json:"temp_dir" yaml:"temp_dir"`
	SlowCallMS     int    `json:"slow_call_ms" yaml:"slow_call_ms"`
	ModalTimeoutMS int    `json:"modal_timeout_ms" yaml:"modal_timeout_ms"`
}

// InstallConfig holds the reconciliation timeouts and settle delays.
type InstallConfig struct {
	PerRepoTimeoutS      int  `json:"per_repo_timeout_s" yaml:"per_repo_timeout_s"`
	PerAddonTimeoutS     int  `json:"per_addon_timeout_s" yaml:"per_addon_timeout_s"`
	PollIntervalMS       int  `json:"poll_interval_ms" yaml:"poll_interval_ms"`
	FolderPollIntervalMS int  `json:"folder_poll_interval_ms" yaml:"folder_poll_interval_ms"`
	PostRefreshSettleMS  int  `json:"post_refresh_settle_ms" yaml:"post_refresh_settle_ms"`
	ExtractSettleMS      int  `json:"extract_settle_ms" yaml:"extract_settle_ms"`
	RescanSettleMS       int  `json:"rescan_settle_ms" yaml:"rescan_settle_ms"`
	EnableSettleMS       int  `json:"enable_settle_ms" yaml:"enable_settle_ms"`
	HeartbeatS           int  `json:"heartbeat_s" yaml:"heartbeat_s"`
	RepoIDFallback       bool `json:"repo_id_fallback" yaml:"repo_id_fallback"`
}

// BackupConfig selects what a backup captures and how a restore writes it back.
type BackupConfig struct {
	Dir                     string `json:"dir,omitempty" yaml:"dir,omitempty"`
	IncludeKeymaps          bool   `json:"include_keymaps" yaml:"include_keymaps"`
	IncludeAdvancedSettings bool   `json:"include_advanced_settings" yaml:"include_advanced_settings"`
	OverwriteXML            bool   `json:"overwrite_xml" yaml:"overwrite_xml"`
	ClearGUICache           bool   `json:"clear_gui_cache" yaml:"clear_gui_cache"`
	SwitchSkin              bool   `json:"switch_skin" yaml:"switch_skin"`
}

// StoreConfig locates the S3-compatible bucket backups are uploaded to.
// Credentials come from the environment, never from this file.
type StoreConfig struct {
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Manifest is the desired-state document stored as manifest.json inside a
// backup archive.
type Manifest struct {
	KodiMajor  int         `json:"kodi_major" yaml:"kodi_major"`
	ActiveSkin string      `json:"active_skin" yaml:"active_skin"`
	Repos      []RepoEntry `json:"repos" yaml:"repos"`
	Addons     []string    `json:"addons" yaml:"addons"`
}

// RepoEntry describes one repository to install and where its archive comes from.
type RepoEntry struct {
	ID          string `json:"id" yaml:"id"`
	ZipInBackup string `json:"zip_in_backup" yaml:"zip_in_backup"` // path relative to the backup root
	ZipURL      string `json:"zip_url" yaml:"zip_url"`
	ZipPath     string `json:"zip_path,omitempty" yaml:"zip_path,omitempty"` // resolved absolute path, filled at restore time
}

// Report is the outcome of one reconciliation run.
type Report struct {
	Repos  CategoryReport `json:"repos" yaml:"repos"`
	Addons CategoryReport `json:"addons" yaml:"addons"`
}

// CategoryReport holds the three disjoint result buckets for one category.
type CategoryReport struct {
	Installed []string  `json:"installed" yaml:"installed"`
	Skipped   []string  `json:"skipped" yaml:"skipped"`
	Failed    []Failure `json:"failed" yaml:"failed"`
}

// Failure is a single failed item and its reason.
type Failure struct {
	ID    string      `json:"id" yaml:"id"`
	Error string      `json:"error" yaml:"error"`
	Kind  FailureKind `json:"-" yaml:"-"`
}

// State is the restore bookkeeping persisted at ~/.profiler/state.json so
// that a later run can finish what a restore started.
type State struct {
	RestoreInProgress bool   `json:"restore_in_progress"`
	PendingFinalize   bool   `json:"pending_finalize"`
	PendingSkin       string `json:"pending_skin,omitempty"`
	LastBackupID      string `json:"last_backup_id,omitempty"`
	LastReport        string `json:"last_report,omitempty"` // path of the last persisted report
}

// BackupInfo describes one backup archive, local or remote.
type BackupInfo struct {
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location" yaml:"location"` // local path or object key
	Size     int64  `json:"size" yaml:"size"`
	Remote   bool   `json:"remote" yaml:"remote"`
}

// BackupNotes is written as report.json next to the manifest inside a backup.
type BackupNotes struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	CreatedAt  string   `json:"created_at"`
	KodiMajor  int      `json:"kodi_major"`
	ActiveSkin string   `json:"active_skin"`
	Notes      []string `json:"notes"`
}
