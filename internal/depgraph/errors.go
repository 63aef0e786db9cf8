package depgraph

import "fmt"

// SchemaError reports a node or edge record missing a required field.
type SchemaError struct {
	Kind  string // "node" or "edge"
	Index int
	Field string
	Got   any
}

func (e *SchemaError) Error() string {
	if e.Got != nil {
		return fmt.Sprintf("%s record %d: field %q must be a non-empty string, got %v", e.Kind, e.Index, e.Field, e.Got)
	}
	return fmt.Sprintf("%s record %d: missing required field %q", e.Kind, e.Index, e.Field)
}

// DuplicateNodeError reports two node records sharing an id.
type DuplicateNodeError struct {
	ID    string
	Index int
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node record %d: duplicate id %q", e.Index, e.ID)
}

// DanglingReferenceError reports an edge endpoint absent from the node list.
type DanglingReferenceError struct {
	Index   int
	Source  string
	Target  string
	Missing string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("edge record %d (%s -> %s): unknown node %q", e.Index, e.Source, e.Target, e.Missing)
}
