package tfs

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/exova-dev/bmx-tfs/internal/model"
	"github.com/exova-dev/bmx-tfs/internal/provider"
)

// apiVersion is appended to every REST call; 1.0 is the oldest level
// all on-premises TFS releases with the REST API understand.
const apiVersion = "api-version=1.0"

// defaultCollection is used when no collection filter is configured.
const defaultCollection = "DefaultCollection"

// Adapter implements provider.IssueProvider and provider.CategoryProvider
// against a TFS server. Every operation opens its own session and closes
// it before returning.
type Adapter struct {
	conn   model.ConnectionConfig
	issues model.IssueConfig
	secret string
}

var (
	_ provider.IssueProvider    = (*Adapter)(nil)
	_ provider.CategoryProvider = (*Adapter)(nil)
)

// NewAdapter creates a TFS adapter. The secret is the personal access
// token (system mode) or password (explicit mode); it is resolved by
// the caller, typically from the system keyring.
func NewAdapter(
	conn model.ConnectionConfig,
	issues model.IssueConfig,
	secret string,
) *Adapter {
	return &Adapter{
		conn:   conn,
		issues: issues,
		secret: secret,
	}
}

// connect opens a scoped session for one operation.
func (a *Adapter) connect(ctx context.Context) (*Session, error) {
	return Connect(ctx, a.conn, a.secret)
}

// collectionSegment returns the URL path segment of the collection to
// query, preferring the filter's collection over the configured one.
func (a *Adapter) collectionSegment(filter model.CategoryFilter) string {
	name := filter.Collection
	if name == "" {
		name = a.issues.Filter.Collection
	}
	if name == "" {
		name = defaultCollection
	}
	return url.PathEscape(name)
}

// ValidateConnection opens and immediately closes a session. Any
// failure is reported as a NotAvailableError preserving the original
// message.
func (a *Adapter) ValidateConnection(ctx context.Context) error {
	sess, err := a.connect(ctx)
	if err != nil {
		return &provider.NotAvailableError{Message: err.Error(), Err: err}
	}
	sess.Close()
	return nil
}

// ListIssues queries work items for a release, narrowed by the category
// filter, and maps them to normalized issues ordered by identifier.
func (a *Adapter) ListIssues(
	ctx context.Context,
	releaseNumber string,
	filter model.CategoryFilter,
) ([]model.Issue, error) {
	sess, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	collection := a.collectionSegment(filter)

	query := buildWiql(wiqlSpec{
		releaseField:  a.issues.CustomReleaseField,
		releaseNumber: releaseNumber,
		project:       filter.Project,
		areaPath:      filter.AreaPath,
	})

	var wiqlResp WiqlResponse
	err = sess.client.Post(
		ctx,
		fmt.Sprintf("/%s/_apis/wit/wiql?%s", collection, apiVersion),
		WiqlRequest{Query: query},
		&wiqlResp,
	)
	if err != nil {
		return nil, fmt.Errorf("querying work items: %w", err)
	}

	if len(wiqlResp.WorkItems) == 0 {
		return nil, nil
	}

	items, err := a.fetchFields(ctx, sess, collection, wiqlResp.WorkItems)
	if err != nil {
		return nil, err
	}

	issues := make([]model.Issue, 0, len(items))
	for _, wi := range items {
		issue := a.mapWorkItem(wi)

		// The remote clause is skipped when no release field is
		// configured, so re-check the release match locally. The
		// comparison is exact and case-sensitive.
		if a.issues.CustomReleaseField != "" && releaseNumber != "" &&
			issue.ReleaseNumber != releaseNumber {
			continue
		}

		issues = append(issues, issue)
	}

	return issues, nil
}

// fetchFields retrieves the selected fields for the referenced work
// items in a single batched call.
func (a *Adapter) fetchFields(
	ctx context.Context,
	sess *Session,
	collection string,
	refs []WorkItemRef,
) ([]WorkItem, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, strconv.Itoa(ref.ID))
	}

	spec := wiqlSpec{releaseField: a.issues.CustomReleaseField}
	path := fmt.Sprintf(
		"/%s/_apis/wit/workitems?ids=%s&fields=%s&%s",
		collection,
		strings.Join(ids, ","),
		url.QueryEscape(strings.Join(spec.selectFields(), ",")),
		apiVersion,
	)

	var list WorkItemList
	if err := sess.client.Get(ctx, path, &list); err != nil {
		return nil, fmt.Errorf("fetching work item fields: %w", err)
	}

	return list.Value, nil
}

// IsClosed reports whether the issue's status is one of the two fixed
// closed-state labels. The comparison is case-sensitive.
func (a *Adapter) IsClosed(issue model.Issue) bool {
	return issue.Closed()
}

// IssueURL resolves the link to the work item editor for an identifier.
// The server must be reachable; resolution fails otherwise.
func (a *Adapter) IssueURL(ctx context.Context, issueID string) (string, error) {
	id, err := parseIssueID(issueID)
	if err != nil {
		return "", err
	}

	sess, err := a.connect(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving issue URL: %w", err)
	}
	defer sess.Close()

	collection := a.collectionSegment(model.CategoryFilter{})
	return fmt.Sprintf(
		"%s/%s/_workitems/edit/%d", sess.client.BaseURL(), collection, id,
	), nil
}

// AppendDescription appends a newline plus text to the description of
// the single work item matching issueID. Zero matches fail with a
// NotFoundError, several with an AmbiguousError; no partial update is
// made in either case.
func (a *Adapter) AppendDescription(
	ctx context.Context,
	issueID string,
	text string,
) error {
	sess, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	wi, err := a.fetchOne(ctx, sess, issueID)
	if err != nil {
		return err
	}

	description := fieldString(wi.Fields, fieldDescription) + "\n" + text

	collection := a.collectionSegment(model.CategoryFilter{})
	path := fmt.Sprintf(
		"/%s/_apis/wit/workitems/%d?%s", collection, wi.ID, apiVersion,
	)

	patch := []PatchOp{{
		Op:    "add",
		Path:  "/fields/" + fieldDescription,
		Value: description,
	}}

	if err := sess.client.Patch(ctx, path, patch, nil); err != nil {
		return fmt.Errorf("updating description of %s: %w", issueID, err)
	}

	return nil
}

// ChangeStatus sets the state field of the work item to newStatus.
func (a *Adapter) ChangeStatus(
	ctx context.Context,
	issueID string,
	newStatus string,
) error {
	sess, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	wi, err := a.fetchOne(ctx, sess, issueID)
	if err != nil {
		return err
	}

	collection := a.collectionSegment(model.CategoryFilter{})
	path := fmt.Sprintf(
		"/%s/_apis/wit/workitems/%d?%s", collection, wi.ID, apiVersion,
	)

	patch := []PatchOp{{
		Op:    "add",
		Path:  "/fields/" + fieldState,
		Value: newStatus,
	}}

	if err := sess.client.Patch(ctx, path, patch, nil); err != nil {
		return fmt.Errorf("changing status of %s: %w", issueID, err)
	}

	return nil
}

// CloseIssue transitions the work item to the closed state.
func (a *Adapter) CloseIssue(ctx context.Context, issueID string) error {
	return a.ChangeStatus(ctx, issueID, model.StateClosed)
}

// ListCategories walks the collection/project hierarchy and maps it to
// a two-level category tree. Area paths are a query filter only and are
// never enumerated as nodes.
func (a *Adapter) ListCategories(ctx context.Context) ([]model.Category, error) {
	sess, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	var collections CollectionList
	err = sess.client.Get(
		ctx, "/_apis/projectcollections?"+apiVersion, &collections,
	)
	if err != nil {
		return nil, fmt.Errorf("listing project collections: %w", err)
	}

	categories := make([]model.Category, 0, len(collections.Value))
	for _, coll := range collections.Value {
		var projects ProjectList
		err = sess.client.Get(
			ctx,
			fmt.Sprintf(
				"/%s/_apis/projects?%s", url.PathEscape(coll.Name), apiVersion,
			),
			&projects,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"listing projects of collection %s: %w", coll.Name, err,
			)
		}

		children := make([]model.Category, 0, len(projects.Value))
		for _, proj := range projects.Value {
			children = append(children, model.Category{
				Kind: model.CategoryProject,
				Name: proj.Name,
			})
		}

		categories = append(categories, model.Category{
			Kind:     model.CategoryCollection,
			Name:     coll.Name,
			Children: children,
		})
	}

	return categories, nil
}

// fetchOne looks up the single work item matching issueID. The lookup
// goes through a WIQL query so that zero and multiple matches can be
// told apart and rejected.
func (a *Adapter) fetchOne(
	ctx context.Context,
	sess *Session,
	issueID string,
) (*WorkItem, error) {
	id, err := parseIssueID(issueID)
	if err != nil {
		return nil, err
	}

	collection := a.collectionSegment(model.CategoryFilter{})

	var wiqlResp WiqlResponse
	err = sess.client.Post(
		ctx,
		fmt.Sprintf("/%s/_apis/wit/wiql?%s", collection, apiVersion),
		WiqlRequest{Query: buildIDWiql(id)},
		&wiqlResp,
	)
	if err != nil {
		return nil, fmt.Errorf("looking up work item %s: %w", issueID, err)
	}

	switch n := len(wiqlResp.WorkItems); {
	case n == 0:
		return nil, &provider.NotFoundError{Kind: "work item", Key: issueID}
	case n > 1:
		return nil, &provider.AmbiguousError{
			Kind: "work item", Key: issueID, Count: n,
		}
	}

	items, err := a.fetchFields(ctx, sess, collection, wiqlResp.WorkItems)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &provider.NotFoundError{Kind: "work item", Key: issueID}
	}

	return &items[0], nil
}

// mapWorkItem converts a work item record to a normalized issue.
func (a *Adapter) mapWorkItem(wi WorkItem) model.Issue {
	description := fieldString(wi.Fields, fieldDescription)
	if !a.issues.AllowHTML {
		description = stripHTML(description)
	}

	release := ""
	if a.issues.CustomReleaseField != "" {
		release = fieldString(wi.Fields, a.issues.CustomReleaseField)
	}

	return model.Issue{
		ID:            strconv.Itoa(wi.ID),
		Title:         fieldString(wi.Fields, fieldTitle),
		Description:   description,
		Status:        fieldString(wi.Fields, fieldState),
		AreaPath:      fieldString(wi.Fields, fieldAreaPath),
		ReleaseNumber: release,
		URL:           wi.URL,
	}
}

// parseIssueID parses a work item identifier. Identifiers are numeric;
// anything else is rejected before it can reach a query.
func parseIssueID(issueID string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(issueID))
	if err != nil {
		return 0, fmt.Errorf("invalid work item id %q", issueID)
	}
	return id, nil
}

// fieldString reads a field value as a string, tolerating the numeric
// values the server returns for fields like System.Id.
func fieldString(fields map[string]interface{}, name string) string {
	v, ok := fields[name]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags from a string and collapses whitespace,
// providing a plain-text rendering of an HTML description.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	// Replace common block-level tags with newlines.
	result := html
	for _, tag := range []string{"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>"} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	// Strip all remaining HTML tags.
	result = htmlTagPattern.ReplaceAllString(result, "")

	// Decode common HTML entities.
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	// Collapse multiple consecutive blank lines.
	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
