package ingest

import (
	"errors"
	"fmt"
)

var (
	errFieldCount   = errors.New("wrong number of fields")
	errEmptyField   = errors.New("empty field")
	errNegative     = errors.New("negative value")
	errFieldTooLong = errors.New("field too long")
)

// SchemaError reports an upload whose header does not match the schema.
// Nothing has been written when it is returned.
type SchemaError struct {
	Schema   string
	Expected string
	Got      string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid header for %s schema: expected %q, got %q", e.Schema, e.Expected, e.Got)
}

// RecordError reports a malformed data line. Line is 1-based and counts the
// header line.
type RecordError struct {
	Line    int
	Content string
	Reason  string
	Err     error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("invalid line %d (%s): %s", e.Line, e.Reason, e.Content)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func (e *SchemaError) Details() map[string]any {
	return map[string]any{"schema": e.Schema, "expected": e.Expected}
}

func (e *RecordError) Details() map[string]any {
	return map[string]any{"line": e.Line, "reason": e.Reason}
}
