// Package host declares the contracts for the deployment host's
// services the build importer consumes: agent file operations, artifact
// construction, and variable persistence. The host supplies its own
// implementations at composition time; the reference implementations in
// this package back the standalone CLI.
package host

import (
	"context"
	"io"
)

// FileEntry is one entry found under a drop location.
type FileEntry struct {
	// Path is the entry's full path as the file-operations service
	// reported it.
	Path string

	// Dir reports whether the entry is a directory.
	Dir bool

	// Size is the file size in bytes; zero for directories.
	Size int64
}

// FileOps enumerates and reads files on the build agent.
type FileOps interface {
	// ListRecursive returns every entry under root, including the root
	// entry itself. Callers that must not treat the base directory as a
	// matched file are responsible for excluding it.
	ListRecursive(ctx context.Context, root string) ([]FileEntry, error)

	// Open opens a file for reading.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ArtifactSpec identifies the artifact an import produces.
type ArtifactSpec struct {
	Application string
	Release     string
	Build       string
	Deployable  string

	// Name is the artifact name within the build.
	Name string
}

// ArtifactBuilder accumulates file entries into one artifact. A builder
// is scoped to a single import: stream entries with Add, then either
// Commit or Abort exactly once.
type ArtifactBuilder interface {
	// Add streams one file into the artifact under the given
	// artifact-relative path.
	Add(ctx context.Context, relPath string, r io.Reader) error

	// Commit finalizes the artifact. A commit failure is fatal to the
	// enclosing operation; it is not retried.
	Commit(ctx context.Context) error

	// Abort discards everything streamed so far.
	Abort() error
}

// ArtifactFactory opens artifact builders.
type ArtifactFactory interface {
	Open(ctx context.Context, spec ArtifactSpec) (ArtifactBuilder, error)
}

// VariableScope binds a persisted variable to an application, release,
// and build.
type VariableScope struct {
	Application string
	Release     string
	Build       string
}

// VariableStore persists named variables scoped to a build.
type VariableStore interface {
	// UpsertVariable creates or replaces the variable's value within
	// the given scope.
	UpsertVariable(
		ctx context.Context,
		scope VariableScope,
		name string,
		value string,
		sensitive bool,
	) error
}
