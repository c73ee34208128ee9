package store

import (
	"context"

	"github.com/exova-dev/bmx-tfs/internal/host"
	"github.com/exova-dev/bmx-tfs/internal/model"
)

// Store defines the persistence interface for build-scoped variables
// and the artifact registry.
type Store interface {
	// === Variables ===

	UpsertVariable(
		ctx context.Context,
		scope host.VariableScope,
		name string,
		value string,
		sensitive bool,
	) error
	GetVariable(
		ctx context.Context,
		scope host.VariableScope,
		name string,
	) (*model.Variable, error)
	ListVariables(
		ctx context.Context,
		scope host.VariableScope,
	) ([]model.Variable, error)

	// === Artifact registry ===

	RecordArtifact(
		ctx context.Context,
		spec host.ArtifactSpec,
		fileCount int,
	) error
	ListArtifacts(
		ctx context.Context,
		application string,
	) ([]model.ArtifactRecord, error)

	Close() error
}
