package table

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrParse  = errors.New("invalid csv")
	ErrSchema = errors.New("missing required column")
	ErrWrite  = errors.New("write failed")
)

// ErrEmptyFile is wrapped in a parse error when the input has no header row.
var ErrEmptyFile = errors.New("empty file")

// Error describes a failed load, validation or write.
type Error struct {
	Kind   error  // ErrParse, ErrSchema or ErrWrite
	Path   string // File involved, if any
	Column string // Column involved, for schema errors
	Err    error  // Underlying cause
}

func (e *Error) Error() string {
	switch {
	case e.Kind == ErrSchema:
		return fmt.Sprintf("%v %q", e.Kind, e.Column)
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func parseError(path string, err error) error {
	return &Error{Kind: ErrParse, Path: path, Err: err}
}

func writeError(path string, err error) error {
	return &Error{Kind: ErrWrite, Path: path, Err: err}
}

func schemaError(column string) error {
	return &Error{Kind: ErrSchema, Column: column}
}
