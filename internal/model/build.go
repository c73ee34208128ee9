package model

// Build is the descriptor of a single TFS build, as resolved from the
// build service.
type Build struct {
	// Number is the server-assigned build number string.
	Number string `json:"number"`

	// DropLocation is the path of the directory the build wrote its
	// output to. Blank when the build definition has no drop configured.
	DropLocation string `json:"drop_location"`

	// Succeeded reports whether the build finished with a succeeded
	// result. Used to filter candidates unless the caller opted into
	// unsuccessful builds.
	Succeeded bool `json:"succeeded"`
}

// ImportResult summarizes one build-import operation.
type ImportResult struct {
	// BuildNumber is the resolved remote build number.
	BuildNumber string `json:"build_number"`

	// FileCount is the number of drop entries streamed into the artifact.
	FileCount int `json:"file_count"`

	// ArtifactCreated is false when the operation ended on the
	// empty-drop warning path without committing an artifact.
	ArtifactCreated bool `json:"artifact_created"`

	// Warning carries the non-fatal outcome message, if any.
	Warning string `json:"warning,omitempty"`
}
