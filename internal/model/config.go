package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Credential modes for connecting to the TFS server.
const (
	CredentialModeSystem   = "system"
	CredentialModeExplicit = "explicit"
)

// ConnectionConfig holds the settings needed to reach a TFS server.
// Secrets (the password or personal access token) are never stored
// here; they live in the system keyring keyed by BaseURL.
type ConnectionConfig struct {
	// BaseURL is the root URL of the TFS instance
	// (e.g., https://tfs.corp.example.com/tfs).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// CredentialMode selects how to authenticate: "system" uses a
	// personal access token from the keyring, "explicit" uses
	// username/password (with optional domain).
	CredentialMode string `mapstructure:"credential_mode" yaml:"credential_mode"`

	// Username and Domain apply only in explicit mode.
	Username string `mapstructure:"username" yaml:"username"`
	Domain   string `mapstructure:"domain" yaml:"domain"`
}

// IssueConfig holds settings for the issue-tracking provider.
type IssueConfig struct {
	// CustomReleaseField is the reference name of the work item field
	// carrying the release number (e.g., "Custom.ReleaseNumber").
	// When empty, no release filter is sent to the server and issues
	// map with an empty release number.
	CustomReleaseField string `mapstructure:"custom_release_field" yaml:"custom_release_field"`

	// AllowHTML keeps work item descriptions as the server's HTML.
	// When false, descriptions are stripped to plain text.
	AllowHTML bool `mapstructure:"allow_html" yaml:"allow_html"`

	// Filter narrows queries to a collection, project, and/or area path.
	Filter CategoryFilter `mapstructure:"filter" yaml:"filter"`
}

// ImportConfig holds settings for the build importer.
type ImportConfig struct {
	// TeamProject is the TFS project whose builds are imported.
	TeamProject string `mapstructure:"team_project" yaml:"team_project"`

	// BuildDefinition is the name of the build definition to resolve
	// builds from.
	BuildDefinition string `mapstructure:"build_definition" yaml:"build_definition"`

	// ArtifactName is the name the imported artifact is stored under.
	ArtifactName string `mapstructure:"artifact_name" yaml:"artifact_name"`

	// IncludeUnsuccessful also considers builds that did not succeed.
	IncludeUnsuccessful bool `mapstructure:"include_unsuccessful" yaml:"include_unsuccessful"`

	// ArtifactRoot is the local directory artifacts are written under.
	ArtifactRoot string `mapstructure:"artifact_root" yaml:"artifact_root"`
}

// AppConfig is the top-level configuration profile.
type AppConfig struct {
	Connection ConnectionConfig `mapstructure:"connection" yaml:"connection"`
	Issues     IssueConfig      `mapstructure:"issues" yaml:"issues"`
	Import     ImportConfig     `mapstructure:"import" yaml:"import"`

	// DatabasePath is the SQLite file backing the variable store and
	// artifact registry.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/bmx-tfs/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "bmx-tfs", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dataDir := "."
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".local", "share", "bmx-tfs")
	}
	return &AppConfig{
		Connection: ConnectionConfig{
			CredentialMode: CredentialModeSystem,
		},
		Import: ImportConfig{
			ArtifactName: "drop",
			ArtifactRoot: filepath.Join(dataDir, "artifacts"),
		},
		DatabasePath: filepath.Join(dataDir, "bmx-tfs.db"),
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	defaults := defaultAppConfig()
	v.SetDefault("connection.credential_mode", defaults.Connection.CredentialMode)
	v.SetDefault("import.artifact_name", defaults.Import.ArtifactName)
	v.SetDefault("import.artifact_root", defaults.Import.ArtifactRoot)
	v.SetDefault("database_path", defaults.DatabasePath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("connection", cfg.Connection)
	v.Set("issues", cfg.Issues)
	v.Set("import", cfg.Import)
	v.Set("database_path", cfg.DatabasePath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
