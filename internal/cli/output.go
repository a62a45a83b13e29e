package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Runtime failure (fatal cycle error, failed sends, etc.)
	ExitCommandError = 2 // Command error (bad config, unreadable file, etc.)
)

// Error codes carried in JSON error responses.
const (
	CodeConfig  = "E_CONFIG"
	CodeInit    = "E_INIT"
	CodeParse   = "E_PARSE"
	CodeRuntime = "E_RUNTIME"
)

// ExitError represents an error with a specific exit code.
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
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Texter is implemented by results with their own text rendering.
type Texter interface {
	Text() string
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Response is the JSON envelope of every command.
type Response struct {
	Status string         `json:"status"`          // "ok" or "error"
	Data   any            `json:"data,omitempty"`  // success payload
	Error  *ResponseError `json:"error,omitempty"` // error details
}

// ResponseError is the error payload of a JSON response. Code is one of the
// Code* constants.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	if t, ok := data.(Texter); ok {
		_, err := io.WriteString(f.Writer, t.Text())
		return err
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error:  &ResponseError{Code: code, Message: message},
		})
	}
	_, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return err
}
