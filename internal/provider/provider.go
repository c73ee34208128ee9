package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/exova-dev/bmx-tfs/internal/model"
)

// NotAvailableError indicates that the issue-tracking service could not
// be reached or refused the connection. The original failure message is
// preserved for the caller.
type NotAvailableError struct {
	Message string
	Err     error
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("service not available: %s", e.Message)
}

func (e *NotAvailableError) Unwrap() error { return e.Err }

// IsNotAvailable reports whether err (or any error in its chain) is a
// NotAvailableError.
func IsNotAvailable(err error) bool {
	var na *NotAvailableError
	return errors.As(err, &na)
}

// NotFoundError indicates that a lookup expected to match a record
// matched none.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// IsNotFound reports whether err (or any error in its chain) is a
// NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// AmbiguousError indicates that a lookup expected to match exactly one
// record matched several. No partial result is returned in that case.
type AmbiguousError struct {
	Kind  string
	Key   string
	Count int
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%s %q matched %d records, expected exactly one",
		e.Kind, e.Key, e.Count)
}

// IssueProvider defines the issue-tracking contract the host consumes.
// Every operation opens its own scoped connection and releases it before
// returning; no session state survives between calls.
type IssueProvider interface {
	// ValidateConnection verifies credentials and connectivity.
	// Any failure is reported as a NotAvailableError.
	ValidateConnection(ctx context.Context) error

	// ListIssues retrieves the issues for a release, narrowed by the
	// optional category filter. An empty result is not an error.
	ListIssues(
		ctx context.Context,
		releaseNumber string,
		filter model.CategoryFilter,
	) ([]model.Issue, error)

	// IsClosed reports whether the given issue counts as closed.
	IsClosed(issue model.Issue) bool

	// IssueURL resolves the link to the issue editor for an identifier.
	IssueURL(ctx context.Context, issueID string) (string, error)

	// AppendDescription appends a newline plus text to the description
	// of the single issue matching issueID. Zero matches yield a
	// NotFoundError, several an AmbiguousError.
	AppendDescription(ctx context.Context, issueID, text string) error

	// ChangeStatus sets the state field of the issue to newStatus.
	ChangeStatus(ctx context.Context, issueID, newStatus string) error

	// CloseIssue transitions the issue to the closed state.
	CloseIssue(ctx context.Context, issueID string) error
}

// CategoryProvider enumerates the filterable category hierarchy.
type CategoryProvider interface {
	// ListCategories returns one root node per project collection, each
	// carrying that collection's projects as leaf children.
	ListCategories(ctx context.Context) ([]model.Category, error)
}
