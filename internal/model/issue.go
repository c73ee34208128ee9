package model

// Well-known TFS work item states that count as closed. The comparison
// is case-sensitive: these are the exact labels the server reports.
const (
	StateClosed   = "Closed"
	StateResolved = "Resolved"
)

// Issue is the normalized representation of a single TFS work item.
// It is immutable once mapped from a remote record.
type Issue struct {
	// ID is the work item identifier, as a string.
	ID string `json:"id"`

	// Title is the work item's System.Title field.
	Title string `json:"title"`

	// Description is the work item body. Depending on configuration it
	// is either the raw HTML from the server or a plain-text rendering.
	Description string `json:"description"`

	// Status is the work item's System.State field, verbatim.
	Status string `json:"status"`

	// AreaPath is the work item's System.AreaPath field.
	AreaPath string `json:"area_path"`

	// ReleaseNumber is the value of the configured custom release field,
	// empty when no such field is configured or set.
	ReleaseNumber string `json:"release_number,omitempty"`

	// URL is the link to the work item in the TFS web editor.
	URL string `json:"url,omitempty"`
}

// Closed reports whether the issue's status is one of the two
// well-known closed states.
func (i Issue) Closed() bool {
	return i.Status == StateClosed || i.Status == StateResolved
}
