package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/keystone/internal/compiler"
	"github.com/roach88/keystone/internal/engine"
	"github.com/roach88/keystone/internal/graph"
	"github.com/roach88/keystone/internal/journal"
	"github.com/roach88/keystone/internal/module"
	"github.com/roach88/keystone/internal/network"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // A future failed or could not be reconciled
	ExitCommandError = 2 // Command error (bad flags, configuration, module definitions, locked journal)
)

// Error codes for structured output.
const (
	ErrCodeGeneric   = "E001" // Generic/unknown error
	ErrCodeConfig    = "E002" // Network configuration or secret
	ErrCodeModule    = "E003" // Module definition or parameters
	ErrCodeGraph     = "E004" // Cycle or unknown reference
	ErrCodeJournal   = "E005" // Journal unavailable or locked
	ErrCodeExecution = "E006" // Future failed
	ErrCodeReconcile = "E007" // Interrupted future could not be reconciled
	ErrCodeTransport = "E008" // Network endpoint unavailable
	ErrCodeScenario  = "E009" // Scenario assertions or golden trace failed
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify maps an error from the core packages to an exit code and an
// error code.
func classify(err error) (int, string) {
	var (
		compileErr *compiler.CompileError
		dupFuture  *graph.DuplicateFutureError
	)
	switch {
	case network.IsConfigurationError(err):
		return ExitCommandError, ErrCodeConfig
	case module.IsDuplicateModuleError(err), module.IsUnknownModuleError(err),
		module.IsDefinitionError(err), errors.As(err, &compileErr):
		return ExitCommandError, ErrCodeModule
	case graph.IsCyclicDependencyError(err), graph.IsUnknownReferenceError(err),
		errors.As(err, &dupFuture):
		return ExitCommandError, ErrCodeGraph
	case journal.IsLockedError(err), errors.Is(err, journal.ErrNotFound),
		errors.Is(err, journal.ErrConfirmed):
		return ExitCommandError, ErrCodeJournal
	case engine.IsReconciliationAmbiguous(err):
		return ExitFailure, ErrCodeReconcile
	case engine.IsExecutionError(err), errors.Is(err, context.Canceled):
		return ExitFailure, ErrCodeExecution
	}
	return ExitCommandError, ErrCodeGeneric
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// textRenderer is implemented by results with a tabular text form.
type textRenderer interface {
	RenderText(w io.Writer) error
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	if r, ok := data.(textRenderer); ok {
		return r.RenderText(f.Writer)
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err through the formatter and returns the ExitError the
// command should return. details is included in JSON output.
func (f *OutputFormatter) Fail(message string, err error, details any) error {
	exit, code := classify(err)
	if outErr := f.Error(code, fmt.Sprintf("%s: %v", message, err), details); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
