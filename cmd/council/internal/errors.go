package internal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/council"
	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/types"
)

// Exit code constants for the CLI
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitError indicates a general error
	ExitError = 1
	// ExitUsage indicates invalid input on the command line
	ExitUsage = 2
	// ExitTimeout indicates the operation timed out
	ExitTimeout = 3
	// ExitCancelled indicates the operation was cancelled
	ExitCancelled = 4
	// ExitUnavailable indicates the model backend or every agent is unavailable
	ExitUnavailable = 5
	// ExitConfigError indicates a configuration error
	ExitConfigError = 10
	// ExitDatabaseError indicates a database error
	ExitDatabaseError = 12
)

// CLIError represents a CLI-specific error with an exit code
type CLIError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// WrapError creates a new CLIError wrapping an existing error
func WrapError(code int, message string, err error) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewCLIError creates a new CLIError with the given code and message
func NewCLIError(code int, message string) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
	}
}

// HandleError prints err to the command's error output and returns the
// exit code for it.
func HandleError(cmd *cobra.Command, err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, context.Canceled) || types.HasCode(err, council.ErrDeliberationCanceled) {
		cmd.PrintErrln("Operation cancelled")
		return ExitCancelled
	}

	if errors.Is(err, context.DeadlineExceeded) || types.HasCode(err, llm.ErrTimeout) {
		cmd.PrintErrln("Operation timed out")
		return ExitTimeout
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		cmd.PrintErrln("Error:", cliErr.Message)
		if cliErr.Cause != nil && verboseSet(cmd) {
			cmd.PrintErrln("Cause:", cliErr.Cause)
		}
		return cliErr.Code
	}

	var councilErr *types.CouncilError
	if errors.As(err, &councilErr) {
		cmd.PrintErrln("Error:", councilErr.Error())
		if councilErr.Retryable {
			cmd.PrintErrln("This error is transient; retrying may succeed.")
		}
		return exitCodeFor(councilErr.Code)
	}

	cmd.PrintErrln("Error:", err)
	return ExitError
}

// exitCodeFor maps error codes to CLI exit codes
func exitCodeFor(code types.ErrorCode) int {
	switch code {
	case types.CONFIG_LOAD_FAILED, types.CONFIG_PARSE_FAILED,
		types.CONFIG_VALIDATION_FAILED, types.CONFIG_NOT_FOUND,
		agent.ErrCatalogInvalid:
		return ExitConfigError
	case types.DB_OPEN_FAILED, types.DB_MIGRATION_FAILED,
		types.DB_QUERY_FAILED, types.DB_NOT_FOUND:
		return ExitDatabaseError
	case council.ErrNoAgentsOnline, llm.ErrBackendUnavailable, agent.ErrAgentUnavailable:
		return ExitUnavailable
	case council.ErrInvalidRequest, llm.ErrInvalidRequest, agent.ErrAgentNotFound:
		return ExitUsage
	default:
		return ExitError
	}
}

func verboseSet(cmd *cobra.Command) bool {
	flag := cmd.Flag("verbose")
	return flag != nil && flag.Changed
}

// IsVerbose checks if verbose mode is enabled via environment variable or flag
// This is used for panic recovery to determine if stack traces should be shown
func IsVerbose() bool {
	if os.Getenv("COUNCIL_VERBOSE") != "" {
		return true
	}

	for _, arg := range os.Args {
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}

	return false
}
