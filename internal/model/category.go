package model

// CategoryKind identifies a level of the TFS category hierarchy.
type CategoryKind string

const (
	CategoryCollection CategoryKind = "collection"
	CategoryProject    CategoryKind = "project"

	// CategoryAreaPath exists as a filter level only; it is never
	// materialized as a node in the enumerated tree.
	CategoryAreaPath CategoryKind = "area-path"
)

// Category is one node of the filterable collection/project hierarchy.
type Category struct {
	// Kind is the hierarchy level this node represents.
	Kind CategoryKind `json:"kind"`

	// Name is the display label (collection or project name).
	Name string `json:"name"`

	// Children holds the next hierarchy level, ordered as the server
	// returned them. Leaf nodes have no children.
	Children []Category `json:"children,omitempty"`
}

// CategoryFilter narrows an issue query to a subtree of the category
// hierarchy. Empty fields mean "no restriction at that level".
type CategoryFilter struct {
	Collection string `json:"collection,omitempty" mapstructure:"collection" yaml:"collection"`
	Project    string `json:"project,omitempty" mapstructure:"project" yaml:"project"`
	AreaPath   string `json:"area_path,omitempty" mapstructure:"area_path" yaml:"area_path"`
}
