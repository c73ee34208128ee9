package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/exova-dev/bmx-tfs/internal/host"
	"github.com/exova-dev/bmx-tfs/internal/store"
)

// artifactsCmd lists artifacts recorded by previous imports.
var artifactsCmd = &cobra.Command{
	Use:   "artifacts <application>",
	Short: "List imported artifacts for an application",
	Args:  cobra.ExactArgs(1),
	RunE:  runArtifacts,
}

// variablesCmd lists the variables persisted for a build.
var variablesCmd = &cobra.Command{
	Use:   "variables <application> <release> <build>",
	Short: "List persisted variables for a build",
	Args:  cobra.ExactArgs(3),
	RunE:  runVariables,
}

func init() {
	rootCmd.AddCommand(artifactsCmd)
	rootCmd.AddCommand(variablesCmd)
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.ListArtifacts(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println(dimStyle.Render("no artifacts recorded"))
		return nil
	}

	for _, r := range records {
		fmt.Printf("%s  %s/%s  %d file(s)  %s\n",
			idStyle.Render(r.Name), r.Release, r.Build, r.FileCount,
			dimStyle.Render(r.CreatedAt.Local().Format("2006-01-02 15:04")))
	}

	return nil
}

func runVariables(cmd *cobra.Command, args []string) error {
	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	scope := host.VariableScope{
		Application: args[0],
		Release:     args[1],
		Build:       args[2],
	}

	variables, err := db.ListVariables(cmd.Context(), scope)
	if err != nil {
		return err
	}

	if len(variables) == 0 {
		fmt.Println(dimStyle.Render("no variables persisted"))
		return nil
	}

	for _, v := range variables {
		value := v.Value
		if v.Sensitive {
			value = dimStyle.Render("(sensitive)")
		}
		fmt.Printf("%s = %s\n", idStyle.Render(v.Name), value)
	}

	return nil
}
