package graphio

import "fmt"

// InputMissingError reports a required input file that does not exist.
type InputMissingError struct {
	Path string
}

func (e *InputMissingError) Error() string {
	return fmt.Sprintf("input file %s does not exist", e.Path)
}

// ParseError reports an input file that could not be read as a JSON array of
// objects. Index is the offending element, or -1 when the whole file is bad.
type ParseError struct {
	Path  string
	Index int
	Err   error
}

func (e *ParseError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("parse %s: element %d: %v", e.Path, e.Index, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
