package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, CredentialModeSystem, cfg.Connection.CredentialMode)
	assert.Equal(t, "drop", cfg.Import.ArtifactName)
	assert.NotEmpty(t, cfg.DatabasePath)
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	in := &AppConfig{
		Connection: ConnectionConfig{
			BaseURL:        "https://tfs.corp.example.com/tfs",
			CredentialMode: CredentialModeExplicit,
			Username:       "deploy",
			Domain:         "CORP",
		},
		Issues: IssueConfig{
			CustomReleaseField: "Custom.ReleaseNumber",
			AllowHTML:          true,
			Filter: CategoryFilter{
				Collection: "DefaultCollection",
				Project:    "Billing",
				AreaPath:   `Billing\Payments`,
			},
		},
		Import: ImportConfig{
			TeamProject:     "Billing",
			BuildDefinition: "Nightly",
			ArtifactName:    "drop",
			ArtifactRoot:    "/tmp/artifacts",
		},
		DatabasePath: "/tmp/bmx.db",
	}

	require.NoError(t, SaveConfig(path, in))

	out, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, in.Connection, out.Connection)
	assert.Equal(t, in.Issues, out.Issues)
	assert.Equal(t, in.Import, out.Import)
	assert.Equal(t, in.DatabasePath, out.DatabasePath)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestIssueClosed(t *testing.T) {
	assert.True(t, Issue{Status: StateClosed}.Closed())
	assert.True(t, Issue{Status: StateResolved}.Closed())
	assert.False(t, Issue{Status: "Active"}.Closed())
	assert.False(t, Issue{Status: "closed"}.Closed())
}
