package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// validateCmd checks connectivity and credentials.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Verify connectivity and credentials against the TFS server",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	adapter, err := newAdapter()
	if err != nil {
		return err
	}

	if err := adapter.ValidateConnection(cmd.Context()); err != nil {
		return err
	}

	fmt.Println(successStyle.Render("connection ok: ") + cfg.Connection.BaseURL)
	return nil
}
