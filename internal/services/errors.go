package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDetection             = errors.New("detection failure")
	ErrConflictingOptions    = errors.New("conflicting options")
	ErrInvalidOption         = errors.New("invalid option value")
	ErrUnsupportedConversion = errors.New("unsupported conversion")
	ErrConfiguration         = errors.New("configuration error")
	ErrMissingTool           = errors.New("missing tool")
	ErrBackendFailed         = errors.New("backend failed")
	ErrEmptyOutput           = errors.New("empty output")
	ErrDestinationExists     = errors.New("destination exists")
	ErrDestinationBusy       = errors.New("destination busy")
	ErrFinalizeIO            = errors.New("finalize i/o error")
	ErrCanceled              = errors.New("canceled")
	ErrBatchFailures         = errors.New("batch completed with failures")
)

// Process exit codes. Each failure family is distinguishable by callers.
const (
	ExitSuccess       = 0
	ExitFailure       = 1
	ExitPlanning      = 2
	ExitMissingTool   = 3
	ExitDestination   = 4
	ExitBackend       = 5
	ExitFinalize      = 6
	ExitBatchFailures = 7
	ExitCanceled      = 130
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrBackendFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// MissingToolError names an external binary that could not be located.
type MissingToolError struct {
	Tool string
	Hint string
}

func (e *MissingToolError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("%s not found in PATH", e.Tool)
	}
	return fmt.Sprintf("%s not found in PATH (%s)", e.Tool, e.Hint)
}

func (e *MissingToolError) Unwrap() error { return ErrMissingTool }

// BackendError reports a backend process that exited unsuccessfully.
type BackendError struct {
	Tool        string
	ExitCode    int
	Diagnostics []string
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	if last := lastDiagnostic(e.Diagnostics); last != "" {
		msg += ": " + last
	}
	return msg
}

func (e *BackendError) Unwrap() error { return ErrBackendFailed }

func lastDiagnostic(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// ExitCode maps an error to the process exit status reported by the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return ExitCanceled
	case errors.Is(err, ErrBatchFailures):
		return ExitBatchFailures
	case errors.Is(err, ErrMissingTool):
		return ExitMissingTool
	case errors.Is(err, ErrDestinationExists), errors.Is(err, ErrDestinationBusy):
		return ExitDestination
	case errors.Is(err, ErrBackendFailed), errors.Is(err, ErrEmptyOutput):
		return ExitBackend
	case errors.Is(err, ErrFinalizeIO):
		return ExitFinalize
	case errors.Is(err, ErrDetection),
		errors.Is(err, ErrConflictingOptions),
		errors.Is(err, ErrInvalidOption),
		errors.Is(err, ErrUnsupportedConversion),
		errors.Is(err, ErrConfiguration):
		return ExitPlanning
	default:
		return ExitFailure
	}
}

// Kind returns a short stable label for the error family, used in history
// records and JSON output.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrDetection):
		return "detection_failure"
	case errors.Is(err, ErrConflictingOptions):
		return "conflicting_options"
	case errors.Is(err, ErrInvalidOption):
		return "invalid_option_value"
	case errors.Is(err, ErrUnsupportedConversion):
		return "unsupported_conversion"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrMissingTool):
		return "missing_tool"
	case errors.Is(err, ErrBackendFailed):
		return "backend_failed"
	case errors.Is(err, ErrEmptyOutput):
		return "empty_output"
	case errors.Is(err, ErrDestinationExists):
		return "destination_exists"
	case errors.Is(err, ErrDestinationBusy):
		return "destination_busy"
	case errors.Is(err, ErrFinalizeIO):
		return "finalize_io"
	default:
		return "error"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "conversion failure"
	}
	return strings.Join(parts, ": ")
}
