// Package importer copies a TFS build's drop output into the host's
// artifact store and records the resolved build number as a build-scoped
// variable.
package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/exova-dev/bmx-tfs/internal/host"
	"github.com/exova-dev/bmx-tfs/internal/model"
)

// BuildNumberVariable is the name of the variable the importer persists
// with the resolved build number.
const BuildNumberVariable = "TfsBuildNumber"

// BuildResolver resolves a build descriptor from its coordinates. The
// TFS adapter implements it.
type BuildResolver interface {
	ResolveBuild(
		ctx context.Context,
		teamProject string,
		buildDefinition string,
		buildNumber string,
		includeUnsuccessful bool,
	) (*model.Build, error)
}

// Request identifies the build to import and the artifact identity to
// import it as.
type Request struct {
	TeamProject         string
	BuildDefinition     string
	BuildNumber         string
	IncludeUnsuccessful bool

	ArtifactName string
	Application  string
	Release      string
	Build        string
	Deployable   string
}

// ConfigError reports remote configuration the import cannot proceed
// without, such as a build definition with no drop location.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Message
}

// BuildImporter orchestrates one build import. It is stateless; every
// Import call is independent.
type BuildImporter struct {
	resolver  BuildResolver
	fileOps   host.FileOps
	artifacts host.ArtifactFactory
	variables host.VariableStore
}

// New creates a BuildImporter from its collaborators.
func New(
	resolver BuildResolver,
	fileOps host.FileOps,
	artifacts host.ArtifactFactory,
	variables host.VariableStore,
) *BuildImporter {
	return &BuildImporter{
		resolver:  resolver,
		fileOps:   fileOps,
		artifacts: artifacts,
		variables: variables,
	}
}

// Import resolves the requested build, streams its drop output into a
// new artifact, and persists the resolved build number. A build that
// cannot be found or has no drop location fails before anything is
// created. An empty drop is a warning, not an error: the result carries
// the warning and no artifact is committed.
func (im *BuildImporter) Import(
	ctx context.Context,
	req Request,
) (*model.ImportResult, error) {
	build, err := im.resolver.ResolveBuild(
		ctx,
		req.TeamProject,
		req.BuildDefinition,
		req.BuildNumber,
		req.IncludeUnsuccessful,
	)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(build.DropLocation) == "" {
		return nil, &ConfigError{
			Message: fmt.Sprintf(
				"build %s has no drop location; configure a drop folder "+
					"on the build definition", build.Number,
			),
		}
	}

	entries, err := im.fileOps.ListRecursive(ctx, build.DropLocation)
	if err != nil {
		return nil, fmt.Errorf(
			"enumerating drop location %s: %w", build.DropLocation, err,
		)
	}

	// The enumeration includes the base directory itself; drop it so
	// the drop folder is never treated as a matched entry.
	matched := make([]host.FileEntry, 0, len(entries))
	for _, entry := range entries {
		if pathsEqual(entry.Path, build.DropLocation) {
			continue
		}
		matched = append(matched, entry)
	}

	if len(matched) == 0 {
		return &model.ImportResult{
			BuildNumber: build.Number,
			Warning: fmt.Sprintf(
				"no entries found in drop location %s; no artifact created",
				build.DropLocation,
			),
		}, nil
	}

	fileCount, err := im.buildArtifact(ctx, req, build.DropLocation, matched)
	if err != nil {
		return nil, err
	}

	err = im.variables.UpsertVariable(
		ctx,
		host.VariableScope{
			Application: req.Application,
			Release:     req.Release,
			Build:       req.Build,
		},
		BuildNumberVariable,
		build.Number,
		false,
	)
	if err != nil {
		return nil, fmt.Errorf("persisting build number variable: %w", err)
	}

	return &model.ImportResult{
		BuildNumber:     build.Number,
		FileCount:       fileCount,
		ArtifactCreated: true,
	}, nil
}

// buildArtifact streams the matched entries into a new artifact and
// commits it. A failure mid-stream aborts the builder so no partial
// artifact is left behind.
func (im *BuildImporter) buildArtifact(
	ctx context.Context,
	req Request,
	dropRoot string,
	entries []host.FileEntry,
) (int, error) {
	builder, err := im.artifacts.Open(ctx, host.ArtifactSpec{
		Application: req.Application,
		Release:     req.Release,
		Build:       req.Build,
		Deployable:  req.Deployable,
		Name:        req.ArtifactName,
	})
	if err != nil {
		return 0, fmt.Errorf("opening artifact %s: %w", req.ArtifactName, err)
	}

	count := 0
	for _, entry := range entries {
		if entry.Dir {
			continue
		}

		if err := im.addEntry(ctx, builder, dropRoot, entry); err != nil {
			builder.Abort()
			return 0, err
		}
		count++
	}

	if err := builder.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing artifact %s: %w", req.ArtifactName, err)
	}

	return count, nil
}

// addEntry streams a single drop entry into the builder.
func (im *BuildImporter) addEntry(
	ctx context.Context,
	builder host.ArtifactBuilder,
	dropRoot string,
	entry host.FileEntry,
) error {
	r, err := im.fileOps.Open(ctx, entry.Path)
	if err != nil {
		return fmt.Errorf("reading drop entry %s: %w", entry.Path, err)
	}
	defer r.Close()

	if err := builder.Add(ctx, relativePath(dropRoot, entry.Path), r); err != nil {
		return err
	}

	return nil
}

// relativePath strips the drop root prefix from an entry path,
// tolerating either slash direction and a trailing separator on the
// root.
func relativePath(root, path string) string {
	nr := normalizePath(root)
	np := normalizePath(path)

	if strings.HasPrefix(np, nr) {
		rel := strings.ReplaceAll(path, `\`, "/")[len(nr):]
		return strings.TrimLeft(rel, "/")
	}

	return strings.TrimLeft(strings.ReplaceAll(path, `\`, "/"), "/")
}

// pathsEqual reports whether two paths name the same location under the
// narrow tolerance the root-exclusion check uses: case-insensitive,
// slash-normalized, identical after stripping a single trailing
// separator, and with raw lengths differing by at most one. This is not
// general path canonicalization.
func pathsEqual(a, b string) bool {
	diff := len(a) - len(b)
	if diff < -1 || diff > 1 {
		return false
	}

	na := strings.TrimSuffix(normalizePath(a), "/")
	nb := strings.TrimSuffix(normalizePath(b), "/")
	return na == nb
}

// normalizePath lowercases a path and converts backslashes to forward
// slashes.
func normalizePath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
}
