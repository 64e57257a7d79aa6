package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/roach88/mirror/internal/engine"
	"github.com/roach88/mirror/internal/model"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Sync incomplete: conflicts or failed records
	ExitCommandError = 2 // Command error (bad config, unreachable journal, etc.)
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
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
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
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
	RunID  string      `json:"run_id,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "CONFLICT", "FAILED", ...
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// JSON reports whether output is machine-readable.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "%s [%s]: %s\n", styleError("Error"), code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Report renders a sync report. Text output is one line per record
// followed by a summary; JSON output wraps the report in a CLIResponse.
func (f *OutputFormatter) Report(verb string, report engine.Report) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: reportStatus(report),
			Data:   report,
			RunID:  report.RunID,
		})
	}

	for _, res := range report.Results {
		fmt.Fprintf(f.Writer, "%s %s\n", styleOutcome(res.Outcome), recordLabel(res))
		if res.Message != "" && (res.Outcome != engine.OutcomePushed || f.Verbose) {
			fmt.Fprintf(f.Writer, "           %s\n", res.Message)
		}
		for _, u := range res.Unresolved {
			fmt.Fprintf(f.Writer, "           %s row %s: no option %q for %s\n",
				styleWarn("unresolved"), u.RowID, u.Value, u.PropertyID)
		}
		if f.Verbose {
			for _, re := range res.RowErrors {
				fmt.Fprintf(f.Writer, "           %s %s %s: %s\n", styleError("rejected"), re.Op, re.RowID, re.Message)
			}
		}
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(f.Writer, "%s %s (%s)\n", styleWarn(pad("skipped")), s.Path, s.Reason)
	}

	fmt.Fprintf(f.Writer, "%s: %s\n", verb, summarize(report))
	return nil
}

// Status renders local record states.
func (f *OutputFormatter) Status(report engine.Report) error {
	if f.JSON() {
		return f.Success(report)
	}
	if len(report.Results) == 0 && len(report.Skipped) == 0 {
		fmt.Fprintln(f.Writer, "No local records.")
		return nil
	}
	for _, res := range report.Results {
		fmt.Fprintf(f.Writer, "%s %s\n", styleState(res.State), recordLabel(res))
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(f.Writer, "%s %s (%s)\n", styleWarn(pad("skipped")), s.Path, s.Reason)
	}
	return nil
}

func recordLabel(res engine.RecordResult) string {
	path := res.Collection + "/" + res.Slug
	if res.Kind == model.KindPage {
		path += ".md"
	}
	if res.Collection == "" && res.Slug == "" {
		path = res.RecordID
	}
	if res.Title != "" {
		return fmt.Sprintf("%s  %s", path, styleFaint(res.Title))
	}
	return path
}

func reportStatus(report engine.Report) string {
	if report.HasConflicts() || report.HasFailures() {
		return "incomplete"
	}
	return "ok"
}

func summarize(report engine.Report) string {
	if len(report.Results) == 0 {
		return "nothing to do"
	}
	order := []engine.Outcome{
		engine.OutcomeCreated,
		engine.OutcomeUpdated,
		engine.OutcomePushed,
		engine.OutcomeDeleted,
		engine.OutcomeUnchanged,
		engine.OutcomeConflict,
		engine.OutcomeFailed,
	}
	out := ""
	for _, o := range order {
		n := report.Count(o)
		if n == 0 {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += fmt.Sprintf("%d %s", n, o)
	}
	return out
}

var (
	styleOK    = color.New(color.FgGreen).SprintFunc()
	styleWarn  = color.New(color.FgYellow).SprintFunc()
	styleError = color.New(color.FgRed, color.Bold).SprintFunc()
	styleFaint = color.New(color.Faint).SprintFunc()
	styleGone  = color.New(color.FgMagenta).SprintFunc()
)

// pad aligns the first column before color codes are added.
func pad(s string) string {
	return fmt.Sprintf("%-10s", s)
}

func styleOutcome(o engine.Outcome) string {
	label := pad(string(o))
	switch o {
	case engine.OutcomeCreated, engine.OutcomeUpdated, engine.OutcomePushed:
		return styleOK(label)
	case engine.OutcomeConflict:
		return styleWarn(label)
	case engine.OutcomeFailed:
		return styleError(label)
	case engine.OutcomeDeleted:
		return styleGone(label)
	default:
		return styleFaint(label)
	}
}

func styleState(state string) string {
	label := pad(state)
	switch state {
	case model.Synced.String():
		return styleOK(label)
	case model.Modified.String():
		return styleWarn(label)
	default:
		return styleError(label)
	}
}
