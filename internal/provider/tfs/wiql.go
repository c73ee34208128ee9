package tfs

import (
	"fmt"
	"strings"
)

// Reference names of the work item fields every query selects.
const (
	fieldID          = "System.Id"
	fieldTitle       = "System.Title"
	fieldDescription = "System.Description"
	fieldState       = "System.State"
	fieldAreaPath    = "System.AreaPath"
	fieldProject     = "System.TeamProject"
)

// wiqlSpec describes one issue query. Empty fields mean the
// corresponding clause is omitted.
type wiqlSpec struct {
	// releaseField is the reference name of the custom release field.
	// The release clause is only emitted when it is configured.
	releaseField  string
	releaseNumber string
	project       string
	areaPath      string
}

// selectFields returns the fields the query selects, including the
// custom release field when one is configured.
func (s wiqlSpec) selectFields() []string {
	fields := []string{
		fieldID, fieldTitle, fieldDescription, fieldState, fieldAreaPath,
	}
	if s.releaseField != "" {
		fields = append(fields, s.releaseField)
	}
	return fields
}

// buildWiql renders the spec into WIQL text. Every interpolated value
// passes through escapeWiql, and field reference names through
// fieldRef, so caller-supplied filter values cannot alter the query
// structure.
func buildWiql(s wiqlSpec) string {
	cols := make([]string, 0, 6)
	for _, f := range s.selectFields() {
		cols = append(cols, fieldRef(f))
	}

	var conditions []string
	if s.releaseField != "" && s.releaseNumber != "" {
		conditions = append(conditions, fmt.Sprintf(
			"%s = '%s'", fieldRef(s.releaseField), escapeWiql(s.releaseNumber),
		))
	}
	if s.project != "" {
		conditions = append(conditions, fmt.Sprintf(
			"%s = '%s'", fieldRef(fieldProject), escapeWiql(s.project),
		))
	}
	if s.areaPath != "" {
		conditions = append(conditions, fmt.Sprintf(
			"%s UNDER '%s'", fieldRef(fieldAreaPath), escapeWiql(s.areaPath),
		))
	}

	query := "SELECT " + strings.Join(cols, ", ") + " FROM WorkItems"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY " + fieldRef(fieldID) + " ASC"

	return query
}

// buildIDWiql renders the query used to look up a single work item by
// its numeric identifier.
func buildIDWiql(id int) string {
	return fmt.Sprintf(
		"SELECT %s FROM WorkItems WHERE %s = %d",
		fieldRef(fieldID), fieldRef(fieldID), id,
	)
}

// escapeWiql escapes a string literal for inclusion in WIQL text by
// doubling single quotes, the query language's quote escape.
func escapeWiql(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// fieldRef brackets a field reference name. Brackets inside the name
// itself are dropped: reference names never legitimately contain them.
func fieldRef(name string) string {
	name = strings.ReplaceAll(name, "[", "")
	name = strings.ReplaceAll(name, "]", "")
	return "[" + name + "]"
}
