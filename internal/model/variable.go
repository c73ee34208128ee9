package model

import "time"

// Variable is a named value persisted against an application, release,
// and build, as the deployment host's variable service stores them.
type Variable struct {
	Application string    `json:"application"`
	Release     string    `json:"release"`
	Build       string    `json:"build"`
	Name        string    `json:"name"`
	Value       string    `json:"value"`
	Sensitive   bool      `json:"sensitive"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ArtifactRecord is one committed artifact as recorded in the registry.
type ArtifactRecord struct {
	ID          string    `json:"id"`
	Application string    `json:"application"`
	Release     string    `json:"release"`
	Build       string    `json:"build"`
	Deployable  string    `json:"deployable"`
	Name        string    `json:"name"`
	FileCount   int       `json:"file_count"`
	CreatedAt   time.Time `json:"created_at"`
}
