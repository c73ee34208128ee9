package tfs

// ConnectionData is the response from GET /_apis/connectionData, used
// as the authentication probe when opening a session.
type ConnectionData struct {
	AuthenticatedUser AuthenticatedUser `json:"authenticatedUser"`
}

// AuthenticatedUser identifies the identity the server resolved for
// the current credentials.
type AuthenticatedUser struct {
	ID                  string `json:"id"`
	ProviderDisplayName string `json:"providerDisplayName"`
}

// CollectionList is the response from GET /_apis/projectcollections.
type CollectionList struct {
	Count int          `json:"count"`
	Value []Collection `json:"value"`
}

// Collection represents one project collection.
type Collection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ProjectList is the response from GET /{collection}/_apis/projects.
type ProjectList struct {
	Count int       `json:"count"`
	Value []Project `json:"value"`
}

// Project represents one team project within a collection.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WiqlRequest is the body of POST /{collection}/_apis/wit/wiql.
type WiqlRequest struct {
	Query string `json:"query"`
}

// WiqlResponse holds the work item references matched by a WIQL query.
type WiqlResponse struct {
	QueryType string        `json:"queryType"`
	WorkItems []WorkItemRef `json:"workItems"`
}

// WorkItemRef is a lightweight reference to a matched work item.
type WorkItemRef struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// WorkItemList is the response from the batched work items endpoint.
type WorkItemList struct {
	Count int        `json:"count"`
	Value []WorkItem `json:"value"`
}

// WorkItem is a single work item record. Field values are keyed by
// their reference names (e.g. "System.Title"); the server returns
// strings for text fields and numbers for numeric ones.
type WorkItem struct {
	ID     int                    `json:"id"`
	Rev    int                    `json:"rev"`
	Fields map[string]interface{} `json:"fields"`
	URL    string                 `json:"url"`
}

// PatchOp is one JSON-Patch operation for a work item update.
type PatchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

// BuildList is the response from GET /{collection}/{project}/_apis/build/builds.
type BuildList struct {
	Count int           `json:"count"`
	Value []BuildRecord `json:"value"`
}

// BuildRecord is one build returned by the build service. DropLocation
// is the drop folder the build wrote its output to; it is blank for
// definitions without a configured drop.
type BuildRecord struct {
	ID           int    `json:"id"`
	BuildNumber  string `json:"buildNumber"`
	Result       string `json:"result"`
	Status       string `json:"status"`
	DropLocation string `json:"dropLocation"`
}

// ErrorResponse is the standard TFS error response format.
type ErrorResponse struct {
	Message string `json:"message"`
	TypeKey string `json:"typeKey"`
}
