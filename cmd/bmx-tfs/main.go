package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/exova-dev/bmx-tfs/internal/credential"
	"github.com/exova-dev/bmx-tfs/internal/model"
	"github.com/exova-dev/bmx-tfs/internal/provider/tfs"
)

var (
	cfgPath string
	cfg     *model.AppConfig
)

// rootCmd is the bmx-tfs entry point.
var rootCmd = &cobra.Command{
	Use:   "bmx-tfs",
	Short: "Query TFS work items and import build drops as artifacts",
	Long: `bmx-tfs connects a deployment pipeline to a Team Foundation Server:
it queries work items for a release, updates their status and
descriptions, enumerates the collection/project hierarchy, and imports
a build's drop folder into the local artifact store.

Configuration lives at ~/.config/bmx-tfs/config.yaml (see "bmx-tfs
configure"). Secrets are kept in the system keyring, never in the
config file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = model.LoadConfig(cfgPath)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgPath, "config", model.DefaultConfigPath(),
		"path to the configuration file",
	)
}

// newAdapter builds the TFS adapter for the configured server,
// resolving the secret from the system keyring.
func newAdapter() (*tfs.Adapter, error) {
	if cfg.Connection.BaseURL == "" {
		return nil, fmt.Errorf(
			"no server configured; run \"bmx-tfs configure\" first",
		)
	}

	secret, err := credential.Get(cfg.Connection.BaseURL)
	if err != nil {
		return nil, fmt.Errorf(
			"no credential stored for %s; run \"bmx-tfs configure\": %w",
			cfg.Connection.BaseURL, err,
		)
	}

	return tfs.NewAdapter(cfg.Connection, cfg.Issues, secret), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
