// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Stats operations
	OpStatsLoad  Op = "load statistics"
	OpStatsReset Op = "reset statistics"

	// Consent operations
	OpConsentLoad Op = "load debugger consent"
	OpConsentSave Op = "save debugger consent"

	// Browser operations
	OpTabAttach    Op = "attach to tab"
	OpSessionStart Op = "start page session"

	// Config operations
	OpConfigLoad       Op = "load configuration"
	OpSignaturesReload Op = "reload signatures"

	// API operations
	OpAPIServe Op = "serve API"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
