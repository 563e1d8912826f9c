package module

import (
	"errors"
	"fmt"
)

// DuplicateModuleError reports a second registration under the same name.
type DuplicateModuleError struct {
	Name string
}

// Error implements the error interface.
func (e *DuplicateModuleError) Error() string {
	return fmt.Sprintf("module %q is already registered", e.Name)
}

// IsDuplicateModuleError reports whether err is or wraps a
// DuplicateModuleError.
func IsDuplicateModuleError(err error) bool {
	var de *DuplicateModuleError
	return errors.As(err, &de)
}

// UnknownModuleError reports a build or use of an unregistered module.
type UnknownModuleError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("module %q is not registered", e.Name)
}

// IsUnknownModuleError reports whether err is or wraps an
// UnknownModuleError.
func IsUnknownModuleError(err error) bool {
	var ue *UnknownModuleError
	return errors.As(err, &ue)
}

// DefinitionError reports a malformed declaration inside a builder:
// a duplicate future id, a missing target, an unknown output, a required
// parameter without a value.
type DefinitionError struct {
	Module  string
	Message string
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	return fmt.Sprintf("module %s: %s", e.Module, e.Message)
}

// IsDefinitionError reports whether err is or wraps a DefinitionError.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}
