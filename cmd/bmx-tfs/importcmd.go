package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/exova-dev/bmx-tfs/internal/host"
	"github.com/exova-dev/bmx-tfs/internal/importer"
	"github.com/exova-dev/bmx-tfs/internal/store"
)

// importCmd imports a TFS build's drop folder into the artifact store.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a build's drop folder into the artifact store",
	Long: `Import resolves a build by team project, build definition, and
(optionally) build number, then copies its drop folder into a zip
artifact under import.artifact_root. The resolved build number is
persisted as the ` + importer.BuildNumberVariable + ` variable scoped
to the application/release/build.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("team-project", "", "Team project (overrides config)")
	importCmd.Flags().String("definition", "", "Build definition (overrides config)")
	importCmd.Flags().String("build-number", "", "Exact build number; latest when omitted")
	importCmd.Flags().Bool("include-unsuccessful", false, "Also consider builds that did not succeed")
	importCmd.Flags().String("artifact-name", "", "Artifact name (overrides config)")
	importCmd.Flags().String("application", "", "Application the artifact belongs to")
	importCmd.Flags().String("release", "", "Release the artifact belongs to")
	importCmd.Flags().String("build", "", "Host build identifier the artifact belongs to")
	importCmd.Flags().String("deployable", "", "Deployable the artifact is bound to")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	adapter, err := newAdapter()
	if err != nil {
		return err
	}

	teamProject := cfg.Import.TeamProject
	if v, _ := cmd.Flags().GetString("team-project"); v != "" {
		teamProject = v
	}
	definition := cfg.Import.BuildDefinition
	if v, _ := cmd.Flags().GetString("definition"); v != "" {
		definition = v
	}
	artifactName := cfg.Import.ArtifactName
	if v, _ := cmd.Flags().GetString("artifact-name"); v != "" {
		artifactName = v
	}

	if teamProject == "" || definition == "" {
		return fmt.Errorf("team project and build definition are required")
	}

	buildNumber, _ := cmd.Flags().GetString("build-number")
	includeUnsuccessful, _ := cmd.Flags().GetBool("include-unsuccessful")
	if !cmd.Flags().Changed("include-unsuccessful") {
		includeUnsuccessful = cfg.Import.IncludeUnsuccessful
	}

	application, _ := cmd.Flags().GetString("application")
	release, _ := cmd.Flags().GetString("release")
	build, _ := cmd.Flags().GetString("build")
	deployable, _ := cmd.Flags().GetString("deployable")
	if application == "" || release == "" || build == "" {
		return fmt.Errorf("--application, --release and --build are required")
	}

	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	imp := importer.New(
		adapter,
		host.LocalFileOps{},
		&host.ZipArtifactFactory{Root: cfg.Import.ArtifactRoot, Registry: db},
		db,
	)

	result, err := imp.Import(cmd.Context(), importer.Request{
		TeamProject:         teamProject,
		BuildDefinition:     definition,
		BuildNumber:         buildNumber,
		IncludeUnsuccessful: includeUnsuccessful,
		ArtifactName:        artifactName,
		Application:         application,
		Release:             release,
		Build:               build,
		Deployable:          deployable,
	})
	if err != nil {
		return err
	}

	if result.Warning != "" {
		fmt.Println(warnStyle.Render("warning: ") + result.Warning)
		return nil
	}

	fmt.Printf("%sbuild %s, %d file(s) -> artifact %q\n",
		successStyle.Render("imported "),
		result.BuildNumber, result.FileCount, artifactName)

	return nil
}
