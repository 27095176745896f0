package projectstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a project or one of its documents does not
	// exist.
	ErrNotFound = errors.New("projectstore: not found")
	// ErrInvalidName is returned when a project name sanitizes to nothing.
	ErrInvalidName = errors.New("projectstore: invalid project name")
	// ErrInvalidPath is returned for paths outside the store root.
	ErrInvalidPath = errors.New("projectstore: path outside projects root")
	// ErrAlreadyExists is returned when creating over an existing project.
	ErrAlreadyExists = errors.New("projectstore: project already exists")
	// ErrIO matches every IOError and MissingArtifactError.
	ErrIO = errors.New("projectstore: io failure")
)

// IOError wraps a filesystem failure with the operation and path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("projectstore: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes both ErrIO and the underlying cause to errors.Is.
func (e *IOError) Unwrap() []error { return []error{ErrIO, e.Err} }

// MissingArtifactError reports a skeleton path that is absent after Create
// claimed to write it.
type MissingArtifactError struct {
	Artifact string
	Path     string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("projectstore: %s was not created: %s", e.Artifact, e.Path)
}

func (e *MissingArtifactError) Unwrap() error { return ErrIO }

func ioErr(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}
