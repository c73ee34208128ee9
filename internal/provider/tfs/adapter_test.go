package tfs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exova-dev/bmx-tfs/internal/model"
	"github.com/exova-dev/bmx-tfs/internal/provider"
)

// fakeTFS serves just enough of the TFS REST API for the adapter tests.
// Tests preload work items and set wiqlResult to the ids a query should
// match; the fake records the WIQL text and patch operations it receives.
type fakeTFS struct {
	t   *testing.T
	srv *httptest.Server

	mu          sync.Mutex
	items       map[int]map[string]interface{}
	wiqlResult  []int
	wiqlQueries []string
	patches     map[int][][]PatchOp
	fetchCalls  int

	collections []fakeCollection
	builds      []BuildRecord
	buildQuery  map[string]string
}

type fakeCollection struct {
	name     string
	projects []string
}

func newFakeTFS(t *testing.T) *fakeTFS {
	t.Helper()

	f := &fakeTFS{
		t:       t,
		items:   make(map[int]map[string]interface{}),
		patches: make(map[int][][]PatchOp),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /_apis/connectionData", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ConnectionData{
			AuthenticatedUser: AuthenticatedUser{
				ID:                  "u-1",
				ProviderDisplayName: "Deploy Service",
			},
		})
	})

	mux.HandleFunc("GET /_apis/projectcollections", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		list := CollectionList{Count: len(f.collections)}
		for _, c := range f.collections {
			list.Value = append(list.Value, Collection{Name: c.name})
		}
		writeJSON(w, list)
	})

	mux.HandleFunc("GET /{collection}/_apis/projects", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		name := r.PathValue("collection")
		for _, c := range f.collections {
			if c.name != name {
				continue
			}
			list := ProjectList{Count: len(c.projects)}
			for _, p := range c.projects {
				list.Value = append(list.Value, Project{Name: p})
			}
			writeJSON(w, list)
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("POST /{collection}/_apis/wit/wiql", func(w http.ResponseWriter, r *http.Request) {
		var req WiqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		f.wiqlQueries = append(f.wiqlQueries, req.Query)
		resp := WiqlResponse{QueryType: "flat"}
		for _, id := range f.wiqlResult {
			resp.WorkItems = append(resp.WorkItems, WorkItemRef{ID: id})
		}
		f.mu.Unlock()

		writeJSON(w, resp)
	})

	mux.HandleFunc("GET /{collection}/_apis/wit/workitems", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.fetchCalls++

		var list WorkItemList
		for _, idStr := range strings.Split(r.URL.Query().Get("ids"), ",") {
			id, err := strconv.Atoi(idStr)
			require.NoError(t, err)
			fields, ok := f.items[id]
			if !ok {
				continue
			}
			list.Value = append(list.Value, WorkItem{ID: id, Fields: fields})
		}
		list.Count = len(list.Value)
		writeJSON(w, list)
	})

	mux.HandleFunc("PATCH /{collection}/_apis/wit/workitems/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		require.NoError(t, err)

		var ops []PatchOp
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ops))

		f.mu.Lock()
		defer f.mu.Unlock()

		f.patches[id] = append(f.patches[id], ops)
		fields, ok := f.items[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		for _, op := range ops {
			name := strings.TrimPrefix(op.Path, "/fields/")
			fields[name] = op.Value
		}
		writeJSON(w, WorkItem{ID: id, Fields: fields})
	})

	mux.HandleFunc("GET /{collection}/{project}/_apis/build/builds", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.buildQuery = map[string]string{}
		for key, vals := range r.URL.Query() {
			f.buildQuery[key] = vals[0]
		}

		list := BuildList{Count: len(f.builds), Value: f.builds}
		writeJSON(w, list)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	return f
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// adapter returns an adapter pointed at the fake server.
func (f *fakeTFS) adapter(issues model.IssueConfig) *Adapter {
	return NewAdapter(
		model.ConnectionConfig{
			BaseURL:        f.srv.URL,
			CredentialMode: model.CredentialModeExplicit,
			Username:       "deploy",
			Domain:         "CORP",
		},
		issues,
		"secret",
	)
}

// addItem registers a work item with the given fields.
func (f *fakeTFS) addItem(id int, fields map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id] = fields
}

func (f *fakeTFS) lastWiql() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.wiqlQueries) == 0 {
		return ""
	}
	return f.wiqlQueries[len(f.wiqlQueries)-1]
}

func TestValidateConnection(t *testing.T) {
	f := newFakeTFS(t)
	adapter := f.adapter(model.IssueConfig{})

	require.NoError(t, adapter.ValidateConnection(t.Context()))
}

func TestValidateConnectionUnavailable(t *testing.T) {
	f := newFakeTFS(t)
	adapter := f.adapter(model.IssueConfig{})

	// Take the server down; the failure must surface as "not
	// available" with the underlying message preserved.
	f.srv.Close()

	err := adapter.ValidateConnection(t.Context())
	require.Error(t, err)
	assert.True(t, provider.IsNotAvailable(err))
	assert.Contains(t, err.Error(), "service not available")
	assert.Contains(t, err.Error(), f.srv.URL)
}

func TestListIssuesMapsFields(t *testing.T) {
	f := newFakeTFS(t)
	f.addItem(101, map[string]interface{}{
		"System.Title":         "Fix payment rounding",
		"System.Description":   "<p>Totals drift by a cent.</p>",
		"System.State":         "Active",
		"System.AreaPath":      `Billing\Payments`,
		"Custom.ReleaseNumber": "4.2.1",
	})
	f.wiqlResult = []int{101}

	adapter := f.adapter(model.IssueConfig{
		CustomReleaseField: "Custom.ReleaseNumber",
	})

	issues, err := adapter.ListIssues(t.Context(), "4.2.1", model.CategoryFilter{
		Project:  "Billing",
		AreaPath: `Billing\Payments`,
	})
	require.NoError(t, err)
	require.Len(t, issues, 1)

	issue := issues[0]
	assert.Equal(t, "101", issue.ID)
	assert.Equal(t, "Fix payment rounding", issue.Title)
	assert.Equal(t, "Totals drift by a cent.", issue.Description)
	assert.Equal(t, "Active", issue.Status)
	assert.Equal(t, `Billing\Payments`, issue.AreaPath)
	assert.Equal(t, "4.2.1", issue.ReleaseNumber)

	query := f.lastWiql()
	assert.Contains(t, query, "[Custom.ReleaseNumber] = '4.2.1'")
	assert.Contains(t, query, "[System.TeamProject] = 'Billing'")
	assert.Contains(t, query, `[System.AreaPath] UNDER 'Billing\Payments'`)
	assert.Contains(t, query, "ORDER BY [System.Id] ASC")
}

func TestListIssuesKeepsHTMLWhenAllowed(t *testing.T) {
	f := newFakeTFS(t)
	f.addItem(5, map[string]interface{}{
		"System.Title":       "HTML body",
		"System.Description": "<p>kept as-is</p>",
		"System.State":       "Active",
	})
	f.wiqlResult = []int{5}

	adapter := f.adapter(model.IssueConfig{AllowHTML: true})

	issues, err := adapter.ListIssues(t.Context(), "", model.CategoryFilter{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "<p>kept as-is</p>", issues[0].Description)
}

func TestListIssuesReleaseRefilterIsExact(t *testing.T) {
	f := newFakeTFS(t)
	f.addItem(1, map[string]interface{}{
		"System.Title": "match", "System.State": "Active",
		"Custom.ReleaseNumber": "4.2.1",
	})
	f.addItem(2, map[string]interface{}{
		"System.Title": "suffix mismatch", "System.State": "Active",
		"Custom.ReleaseNumber": "4.2.1-RC",
	})
	f.addItem(3, map[string]interface{}{
		"System.Title": "case mismatch", "System.State": "Active",
		"Custom.ReleaseNumber": "4.2.1a",
	})
	// The fake returns everything regardless of the query; the local
	// refilter must narrow it to the exact match.
	f.wiqlResult = []int{1, 2, 3}

	adapter := f.adapter(model.IssueConfig{
		CustomReleaseField: "Custom.ReleaseNumber",
	})

	issues, err := adapter.ListIssues(t.Context(), "4.2.1", model.CategoryFilter{})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "1", issues[0].ID)
}

func TestListIssuesWithoutReleaseFieldReturnsAll(t *testing.T) {
	f := newFakeTFS(t)
	f.addItem(1, map[string]interface{}{"System.Title": "a", "System.State": "Active"})
	f.addItem(2, map[string]interface{}{"System.Title": "b", "System.State": "Closed"})
	f.wiqlResult = []int{1, 2}

	adapter := f.adapter(model.IssueConfig{})

	issues, err := adapter.ListIssues(t.Context(), "4.2.1", model.CategoryFilter{})
	require.NoError(t, err)
	assert.Len(t, issues, 2)
	assert.Empty(t, issues[0].ReleaseNumber)
	assert.NotContains(t, f.lastWiql(), "4.2.1")
}

func TestListIssuesEmptyResult(t *testing.T) {
	f := newFakeTFS(t)
	adapter := f.adapter(model.IssueConfig{})

	issues, err := adapter.ListIssues(t.Context(), "", model.CategoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, issues)

	// No matched references means the batched field fetch is skipped.
	assert.Zero(t, f.fetchCalls)
}

func TestIsClosed(t *testing.T) {
	adapter := NewAdapter(model.ConnectionConfig{}, model.IssueConfig{}, "")

	cases := []struct {
		status string
		want   bool
	}{
		{"Closed", true},
		{"Resolved", true},
		{"closed", false},
		{"RESOLVED", false},
		{"Active", false},
		{"Closed ", false},
		{"", false},
	}

	for _, tc := range cases {
		got := adapter.IsClosed(model.Issue{Status: tc.status})
		assert.Equal(t, tc.want, got, "status %q", tc.status)
	}
}

func TestIssueURL(t *testing.T) {
	f := newFakeTFS(t)
	adapter := f.adapter(model.IssueConfig{})

	url, err := adapter.IssueURL(t.Context(), "42")
	require.NoError(t, err)
	assert.Equal(t, f.srv.URL+"/DefaultCollection/_workitems/edit/42", url)
}

func TestIssueURLRejectsNonNumericID(t *testing.T) {
	f := newFakeTFS(t)
	adapter := f.adapter(model.IssueConfig{})

	_, err := adapter.IssueURL(t.Context(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid work item id")
}

func TestAppendDescriptionTwiceAppendsTwice(t *testing.T) {
	f := newFakeTFS(t)
	f.addItem(7, map[string]interface{}{
		"System.Title":       "needs notes",
		"System.Description": "original",
		"System.State":       "Active",
	})
	f.wiqlResult = []int{7}

	adapter := f.adapter(model.IssueConfig{})

	require.NoError(t, adapter.AppendDescription(t.Context(), "7", "deployed to QA"))
	require.NoError(t, adapter.AppendDescription(t.Context(), "7", "deployed to QA"))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t,
		"original\ndeployed to QA\ndeployed to QA",
		f.items[7]["System.Description"])

	require.Len(t, f.patches[7], 2)
	op := f.patches[7][0][0]
	assert.Equal(t, "add", op.Op)
	assert.Equal(t, "/fields/System.Description", op.Path)
}

func TestAppendDescriptionNotFound(t *testing.T) {
	f := newFakeTFS(t)
	f.wiqlResult = nil

	adapter := f.adapter(model.IssueConfig{})

	err := adapter.AppendDescription(t.Context(), "999", "text")
	require.Error(t, err)
	assert.True(t, provider.IsNotFound(err))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.patches)
}

func TestAppendDescriptionAmbiguous(t *testing.T) {
	f := newFakeTFS(t)
	f.addItem(7, map[string]interface{}{"System.Description": "x"})
	f.wiqlResult = []int{7, 7}

	adapter := f.adapter(model.IssueConfig{})

	err := adapter.AppendDescription(t.Context(), "7", "text")
	require.Error(t, err)

	var ambiguous *provider.AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, 2, ambiguous.Count)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.patches)
}

func TestChangeStatus(t *testing.T) {
	f := newFakeTFS(t)
	f.addItem(12, map[string]interface{}{"System.State": "Active"})
	f.wiqlResult = []int{12}

	adapter := f.adapter(model.IssueConfig{})

	require.NoError(t, adapter.ChangeStatus(t.Context(), "12", "Resolved"))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "Resolved", f.items[12]["System.State"])
}

func TestCloseIssue(t *testing.T) {
	f := newFakeTFS(t)
	f.addItem(12, map[string]interface{}{"System.State": "Active"})
	f.wiqlResult = []int{12}

	adapter := f.adapter(model.IssueConfig{})

	require.NoError(t, adapter.CloseIssue(t.Context(), "12"))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, model.StateClosed, f.items[12]["System.State"])
}

func TestListCategories(t *testing.T) {
	f := newFakeTFS(t)
	f.collections = []fakeCollection{
		{name: "DefaultCollection", projects: []string{"Billing", "Website"}},
		{name: "Archive", projects: nil},
	}

	adapter := f.adapter(model.IssueConfig{})

	categories, err := adapter.ListCategories(t.Context())
	require.NoError(t, err)
	require.Len(t, categories, 2)

	assert.Equal(t, model.CategoryCollection, categories[0].Kind)
	assert.Equal(t, "DefaultCollection", categories[0].Name)
	require.Len(t, categories[0].Children, 2)
	assert.Equal(t, model.CategoryProject, categories[0].Children[0].Kind)
	assert.Equal(t, "Billing", categories[0].Children[0].Name)
	assert.Empty(t, categories[0].Children[0].Children)

	assert.Equal(t, "Archive", categories[1].Name)
	assert.Empty(t, categories[1].Children)
}

func TestResolveBuild(t *testing.T) {
	f := newFakeTFS(t)
	f.builds = []BuildRecord{{
		ID:           9,
		BuildNumber:  "Nightly_20260821.3",
		Result:       "succeeded",
		DropLocation: `\\tfsbuild\drops\Nightly_20260821.3`,
	}}

	adapter := f.adapter(model.IssueConfig{})

	build, err := adapter.ResolveBuild(
		t.Context(), "Billing", "Nightly", "Nightly_20260821.3", false,
	)
	require.NoError(t, err)
	assert.Equal(t, "Nightly_20260821.3", build.Number)
	assert.Equal(t, `\\tfsbuild\drops\Nightly_20260821.3`, build.DropLocation)
	assert.True(t, build.Succeeded)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "Nightly", f.buildQuery["definition"])
	assert.Equal(t, "Nightly_20260821.3", f.buildQuery["buildNumber"])
	assert.Equal(t, "succeeded", f.buildQuery["resultFilter"])
}

func TestResolveBuildIncludeUnsuccessful(t *testing.T) {
	f := newFakeTFS(t)
	f.builds = []BuildRecord{{
		BuildNumber:  "Nightly_20260821.4",
		Result:       "failed",
		DropLocation: `\\tfsbuild\drops\Nightly_20260821.4`,
	}}

	adapter := f.adapter(model.IssueConfig{})

	build, err := adapter.ResolveBuild(t.Context(), "Billing", "Nightly", "", true)
	require.NoError(t, err)
	assert.False(t, build.Succeeded)

	f.mu.Lock()
	defer f.mu.Unlock()
	_, hasFilter := f.buildQuery["resultFilter"]
	assert.False(t, hasFilter)
	_, hasNumber := f.buildQuery["buildNumber"]
	assert.False(t, hasNumber)
}

func TestResolveBuildNotFound(t *testing.T) {
	f := newFakeTFS(t)

	adapter := f.adapter(model.IssueConfig{})

	_, err := adapter.ResolveBuild(t.Context(), "Billing", "Nightly", "nope", false)
	require.Error(t, err)
	assert.True(t, provider.IsNotFound(err))
}

func TestStripHTML(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"<p>one</p><p>two</p>", "one\ntwo"},
		{"a &amp; b &lt;c&gt;", "a & b <c>"},
		{"line<br>break", "line\nbreak"},
		{"", ""},
		{"plain text", "plain text"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, stripHTML(tc.in), "input %q", tc.in)
	}
}

func TestFieldString(t *testing.T) {
	fields := map[string]interface{}{
		"s": "text",
		"n": float64(42),
	}

	assert.Equal(t, "text", fieldString(fields, "s"))
	assert.Equal(t, "42", fieldString(fields, "n"))
	assert.Equal(t, "", fieldString(fields, "missing"))
	assert.Equal(t, "", fieldString(map[string]interface{}{"x": nil}, "x"))
}

// Ensure the fake and the client agree on auth: a request without the
// expected Basic credentials would not round-trip in production, so
// assert the client actually sends them.
func TestClientSendsDomainQualifiedBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		writeJSON(w, ConnectionData{})
	}))
	t.Cleanup(srv.Close)

	_, err := Connect(t.Context(), model.ConnectionConfig{
		BaseURL:        srv.URL,
		CredentialMode: model.CredentialModeExplicit,
		Username:       "deploy",
		Domain:         "CORP",
	}, "hunter2")
	require.NoError(t, err)

	assert.Equal(t, `CORP\deploy`, gotUser)
	assert.Equal(t, "hunter2", gotPass)
}

func TestClientSystemModePATAuth(t *testing.T) {
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		writeJSON(w, ConnectionData{})
	}))
	t.Cleanup(srv.Close)

	_, err := Connect(t.Context(), model.ConnectionConfig{
		BaseURL:        srv.URL,
		CredentialMode: model.CredentialModeSystem,
	}, "pat-token")
	require.NoError(t, err)

	assert.Equal(t, "", gotUser)
	assert.Equal(t, "pat-token", gotPass)
}

func TestClientRetriesOn429(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, ConnectionData{})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(model.ConnectionConfig{BaseURL: srv.URL}, "tok")
	defer client.Close()

	var data ConnectionData
	require.NoError(t, client.Get(t.Context(), "/_apis/connectionData", &data))
	assert.Equal(t, 2, attempts)
}

func TestClientReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"TF51005: query references a missing field","typeKey":"WiqlError"}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(model.ConnectionConfig{BaseURL: srv.URL}, "tok")
	defer client.Close()

	err := client.Get(t.Context(), "/x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TF51005")
}
