package errors

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for the CLI.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, out: os.Stderr}
}

// exitCodes maps categories to process exit codes. Unlisted categories exit 1.
var exitCodes = map[ErrorCategory]int{
	CategoryValidation:  2,
	CategoryConfig:      7,
	CategoryModule:      7,
	CategoryNetwork:     8,
	CategoryInternal:    10,
	CategoryHook:        11,
	CategoryStage:       11,
	CategoryExecution:   11,
	CategoryPostProcess: 11,
	CategoryFileSystem:  11,
	CategoryWatch:       12,
	CategorySuperseded:  0,
}

// ExitCodeFor returns the exit code for err: 0 for nil, 1 when unclassified.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	ce, ok := AsClassified(err)
	if !ok {
		return 1
	}
	if code, ok := exitCodes[ce.Category()]; ok {
		return code
	}
	return 1
}

// FormatError formats an error for user-facing display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	if !ok || a.verbose {
		return fmt.Sprintf("Error: %v", err)
	}
	if classified.Category() == CategoryInternal {
		return "Internal error occurred (use -v for details)"
	}
	if cause := classified.Cause(); cause != nil {
		return fmt.Sprintf("Error: %s: %v", classified.Message(), cause)
	}
	return "Error: " + classified.Message()
}

// Handle logs and prints err, returning the exit code the process should use.
func (a *CLIErrorAdapter) Handle(err error) int {
	if err == nil {
		return 0
	}
	if a.verbose || GetSeverity(err) == SeverityFatal {
		a.logger.Error("Command failed", "error", err, "category", string(GetCategory(err)))
	}
	_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	return a.ExitCodeFor(err)
}
