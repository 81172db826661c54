package core

// error_messages.go maps technical errors to user-friendly messages with
// codes for support reference. When users encounter errors, they can quote
// the code to support staff for faster diagnosis.
//
// Typed errors are matched first (errors.As / errors.Is); anything else is
// matched against known message patterns.
//
// # Duplicate Errors (DUP001-DUP099)
//
//	DUP001 - Duplicate record: a record with this name or email already exists
//	DUP002 - Already a contact: the lead's email belongs to an existing contact
//
// # Record Errors (REC001-REC099)
//
//	REC001 - Not found: the record does not exist in this tenant
//	REC002 - Already converted: a converted lead cannot be edited
//	REC003 - Nothing to reconcile: the lead has no matching contact
//
// # Database Errors (DB001-DB099)
//
//	DB002 - Unique constraint: value must be unique but already exists
//	DB003 - Foreign key: referenced record does not exist
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Deadlock
//	DB008 - Store failure: any other error surfaced by the record store
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid email
//	VAL002 - Invalid number
//	VAL003 - Required field is empty
//	VAL004 - Missing required column
//	VAL006 - Invalid enum value
//	VAL007 - Invalid uuid
//	VAL000 - Any other validation failure
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Invalid CSV
//	FILE003 - Encoding error
//	FILE004 - No file provided
//	FILE005 - Empty file (header only or blank)
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Too many imports in progress
//	IMP002 - Request cancelled
//	IMP003 - Request timed out
//
// # Other
//
//	KND001  - Unknown entity kind
//	RATE001 - Rate limited
//	ERR000  - Unknown error; check application logs for the original error

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`          // What happened (user-friendly)
	Action  string `json:"action"`           // What to do about it
	Code    string `json:"code"`             // Error code for support reference
	Detail  string `json:"detail,omitempty"` // Specifics from typed errors (field, identity)
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	// Database constraint errors
	{"unique constraint", UserMessage{Message: "This value must be unique but already exists", Action: "Check for duplicate entries in your data", Code: "DB002"}},
	{"violates unique", UserMessage{Message: "A duplicate value was found", Action: "Review your data for duplicate names or emails", Code: "DB002"}},
	{"foreign key", UserMessage{Message: "Referenced record does not exist", Action: "Ensure accounts are imported before their contacts", Code: "DB003"}},

	// Database connection errors
	{"connection refused", UserMessage{Message: "Unable to connect to database", Action: "Please try again in a few moments", Code: "DB004"}},
	{"connection reset", UserMessage{Message: "Database connection was interrupted", Action: "Please try again", Code: "DB005"}},
	{"deadlock", UserMessage{Message: "Database was busy with conflicting operations", Action: "Please try again", Code: "DB007"}},

	// Request lifecycle
	{"context canceled", UserMessage{Message: "Request was cancelled", Action: "Please try again", Code: "IMP002"}},
	{"context deadline exceeded", UserMessage{Message: "Request timed out", Action: "Try importing a smaller file or check your connection", Code: "IMP003"}},
	{"timeout", UserMessage{Message: "Operation timed out", Action: "Try importing a smaller file or try again later", Code: "DB006"}},

	// Validation errors
	{"invalid email", UserMessage{Message: "Invalid email address detected", Action: "Use a full address such as name@example.com", Code: "VAL001"}},
	{"invalid number", UserMessage{Message: "Invalid number format detected", Action: "Use plain digits, optionally with a decimal point", Code: "VAL002"}},
	{"required field", UserMessage{Message: "Required field is empty", Action: "Ensure all required columns have values", Code: "VAL003"}},
	{"missing required column", UserMessage{Message: "Required column is missing from CSV", Action: "Check that all required columns are present in your file", Code: "VAL004"}},
	{"invalid enum", UserMessage{Message: "Value is not in the allowed list", Action: "Check the allowed values for this field", Code: "VAL006"}},
	{"invalid uuid", UserMessage{Message: "Invalid record reference", Action: "Use the ID of an existing record", Code: "VAL007"}},

	// File errors
	{"file too large", UserMessage{Message: "File exceeds maximum size limit", Action: "Split the file into smaller chunks", Code: "FILE001"}},
	{"invalid csv", UserMessage{Message: "File is not a valid CSV", Action: "Ensure file is comma-separated with consistent columns", Code: "FILE002"}},
	{"encoding error", UserMessage{Message: "File contains invalid characters", Action: "Save file as UTF-8 encoding", Code: "FILE003"}},
	{"no file provided", UserMessage{Message: "No file was selected", Action: "Please select a CSV file to import", Code: "FILE004"}},
	{"empty file", UserMessage{Message: "The file has no data rows", Action: "Please upload a CSV file with a header and at least one data row", Code: "FILE005"}},

	// Import and routing errors
	{"too many concurrent imports", UserMessage{Message: "System is busy processing other imports", Action: "Please wait a moment and try again", Code: "IMP001"}},
	{"unknown entity kind", UserMessage{Message: "Unknown record type", Action: "Use accounts, contacts or leads", Code: "KND001"}},
	{"rate limit", UserMessage{Message: "Too many requests", Action: "Please wait a moment before trying again", Code: "RATE001"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Typed errors are checked first, then known error patterns
// (case-insensitive). If nothing matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	msg := MapError(&ConflictError{Kind: KindContact, Identity: "Jane Doe <jane@x.com>"})
//	// msg.Code == "DUP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if IsStoreError(err) {
		return UserMessage{Message: "The record store could not complete the request", Action: "Please try again", Code: "DB008"}
	}
	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		if ce.AlreadyContact {
			return UserMessage{
				Message: "This lead's email already belongs to a contact",
				Action:  "Open the existing contact or reconcile the lead",
				Code:    "DUP002",
				Detail:  ce.Identity,
			}, true
		}
		field := string(ce.Field)
		if field == "" {
			field = "value"
		}
		return UserMessage{
			Message: fmt.Sprintf("%s with this %s already exists", withArticle(ce.Kind.Singular()), field),
			Action:  "Update the existing record instead of creating a new one",
			Code:    "DUP001",
			Detail:  ce.Identity,
		}, true
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return UserMessage{Message: "Record not found", Action: "Verify the record ID and tenant", Code: "REC001"}, true
	case errors.Is(err, ErrLeadConverted):
		return UserMessage{Message: "This lead has already been converted", Action: "Edit the contact created from it instead", Code: "REC002"}, true
	case errors.Is(err, ErrNothingToReconcile):
		return UserMessage{Message: "Nothing to reconcile for this lead", Action: "Convert the lead instead", Code: "REC003"}, true
	case errors.Is(err, ErrEmptyInput):
		return findPattern("empty file"), true
	case errors.Is(err, ErrTooManyImports):
		return findPattern("too many concurrent imports"), true
	case errors.Is(err, context.Canceled):
		return findPattern("context canceled"), true
	case errors.Is(err, context.DeadlineExceeded):
		return findPattern("context deadline exceeded"), true
	}

	var ve ValidationError
	if errors.As(err, &ve) {
		msg := defaultValidation
		lower := strings.ToLower(ve.Message)
		for _, ep := range errorPatterns {
			if strings.HasPrefix(ep.msg.Code, "VAL") && strings.Contains(lower, ep.pattern) {
				msg = ep.msg
				break
			}
		}
		msg.Detail = ve.Error()
		return msg, true
	}
	return UserMessage{}, false
}

func withArticle(noun string) string {
	if noun != "" && strings.ContainsRune("aeiou", rune(noun[0])) {
		return "An " + noun
	}
	return "A " + noun
}

var defaultValidation = UserMessage{
	Message: "Some values are not valid",
	Action:  "Correct the highlighted field and try again",
	Code:    "VAL000",
}

func findPattern(pattern string) UserMessage {
	for _, ep := range errorPatterns {
		if ep.pattern == pattern {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
