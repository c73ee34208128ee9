package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/exova-dev/bmx-tfs/internal/credential"
	"github.com/exova-dev/bmx-tfs/internal/model"
)

// configureCmd interactively records the server connection settings and
// stores the secret in the system keyring.
var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set up the TFS connection and store its credential",
	RunE:  runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	conn := cfg.Connection
	secret := ""

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Description("Root URL of the TFS instance").
				Placeholder("https://tfs.corp.example.com/tfs").
				Value(&conn.BaseURL).
				Validate(func(s string) error {
					if !strings.HasPrefix(s, "http://") &&
						!strings.HasPrefix(s, "https://") {
						return fmt.Errorf("must be an http(s) URL")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Credential mode").
				Options(
					huh.NewOption("Personal access token", model.CredentialModeSystem),
					huh.NewOption("Username and password", model.CredentialModeExplicit),
				).
				Value(&conn.CredentialMode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&conn.Username),
			huh.NewInput().
				Title("Domain").
				Description("Optional Windows domain").
				Value(&conn.Domain),
		).WithHideFunc(func() bool {
			return conn.CredentialMode != model.CredentialModeExplicit
		}),
		huh.NewGroup(
			huh.NewInput().
				Title("Secret").
				Description("Personal access token or password").
				EchoMode(huh.EchoModePassword).
				Value(&secret),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("collecting connection settings: %w", err)
	}

	conn.BaseURL = strings.TrimRight(strings.TrimSpace(conn.BaseURL), "/")

	if secret != "" {
		if err := credential.Set(conn.BaseURL, secret); err != nil {
			return err
		}
	}

	cfg.Connection = conn
	if err := model.SaveConfig(cfgPath, cfg); err != nil {
		return err
	}

	fmt.Println(successStyle.Render("saved ") + cfgPath)
	return nil
}
