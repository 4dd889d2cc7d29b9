package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Missing columns: The sheet is missing required columns
//	         Action: Add every required column header to the first row
//	         Patterns: "missing required columns"
//
//	VAL002 - No data: The file contains no data rows
//	         Action: Upload a sheet with a header row and at least one contact
//	         Patterns: "empty file", "contains no data"
//
// # Contact Errors (CON001-CON099)
//
//	CON001 - No valid contacts: No row carried a usable phone number
//	         Action: Check the Mobile, Phone and Work Phone columns
//	         Patterns: "no valid contacts"
//
//	CON002 - Invalid phone: A phone number could not be normalized
//	         Action: Use 7-15 digits, optionally starting with + and a country code
//	         Patterns: "phone: "
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit
//	FILE002 - Invalid CSV: File is not a valid CSV
//	FILE003 - Invalid spreadsheet: Workbook could not be opened
//	FILE004 - No file: No file was selected
//	FILE005 - Unsupported type: Only .csv, .xlsx and .xls files are accepted
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy: Too many uploads in progress
//	UPL003 - Session expired: Upload session not found
//	UPL004 - Request cancelled
//	UPL005 - Request timeout
//
// # Messaging Errors (SMS001-SMS099)
//
//	SMS001 - Not configured: SMS credentials are missing
//	SMS002 - Invalid message: Message body is empty or too long
//	SMS003 - Provider rejected: The SMS provider refused the message
//	SMS004 - Consent required: SMS consent has not been given
//	SMS005 - Invalid recipient: The phone number cannot receive SMS
//	SMS006 - Status unavailable: The provider could not report message status
//	SMS007 - Batch too large: The send would outlast the send time limit
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Invalid request: The JSON body could not be read
//	REQ002 - Missing template: A message or template is required
//
// # Rate Limiting (RATE001)
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Support staff should check
// application logs for the original technical error.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns come first.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Validation
	{
		pattern: "missing required columns",
		msg: UserMessage{
			Message: "The sheet is missing required columns",
			Action:  "Add every required column header to the first row",
			Code:    "VAL001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file contains no data",
			Action:  "Upload a sheet with a header row and at least one contact",
			Code:    "VAL002",
		},
	},
	{
		pattern: "contains no data",
		msg: UserMessage{
			Message: "The file contains no data",
			Action:  "Upload a sheet with a header row and at least one contact",
			Code:    "VAL002",
		},
	},

	// Contacts
	{
		pattern: "no valid contacts",
		msg: UserMessage{
			Message: "No valid contacts found in the file",
			Action:  "Check the Mobile, Phone and Work Phone columns",
			Code:    "CON001",
		},
	},
	{
		pattern: "phone: ",
		msg: UserMessage{
			Message: "A phone number could not be normalized",
			Action:  "Use 7-15 digits, optionally starting with + and a country code",
			Code:    "CON002",
		},
	},

	// Files
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller sheets",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with a header row",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid spreadsheet",
		msg: UserMessage{
			Message: "The workbook could not be opened",
			Action:  "Save the file as .xlsx or export it to CSV",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a spreadsheet or CSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Invalid file type",
			Action:  "Please upload an Excel (.xlsx or .xls) or CSV file",
			Code:    "FILE005",
		},
	},

	// Uploads
	{
		pattern: "too many concurrent uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "upload not found",
		msg: UserMessage{
			Message: "Upload session not found",
			Action:  "The upload may have expired. Please upload the file again",
			Code:    "UPL003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},

	// Messaging
	{
		pattern: "credentials missing",
		msg: UserMessage{
			Message: "SMS sending is not configured",
			Action:  "Ask an administrator to configure the SMS provider",
			Code:    "SMS001",
		},
	},
	{
		pattern: "invalid message",
		msg: UserMessage{
			Message: "Message is empty or too long",
			Action:  "Shorten the template and try again",
			Code:    "SMS002",
		},
	},
	{
		pattern: "twilio send failed",
		msg: UserMessage{
			Message: "The SMS provider rejected the message",
			Action:  "Check the recipient number and try again",
			Code:    "SMS003",
		},
	},
	{
		pattern: "consent required",
		msg: UserMessage{
			Message: "SMS consent has not been given",
			Action:  "Accept the SMS terms before sending",
			Code:    "SMS004",
		},
	},
	{
		pattern: "invalid recipient",
		msg: UserMessage{
			Message: "The recipient phone number is not valid",
			Action:  "Correct the phone number in the sheet and upload again",
			Code:    "SMS005",
		},
	},
	{
		pattern: "twilio status failed",
		msg: UserMessage{
			Message: "Message status is unavailable",
			Action:  "Check the message ID and try again later",
			Code:    "SMS006",
		},
	},
	{
		pattern: "batch exceeds send time limit",
		msg: UserMessage{
			Message: "Too many recipients for one send",
			Action:  "Select fewer contacts and send in several batches",
			Code:    "SMS007",
		},
	},

	// Requests
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "The request could not be read",
			Action:  "Send a valid JSON body",
			Code:    "REQ001",
		},
	},
	{
		pattern: "message required",
		msg: UserMessage{
			Message: "A message is required",
			Action:  "Enter a message or template before sending",
			Code:    "REQ002",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return formatMessage(msg)
}

// SystemErrorMessage is the opaque text shown for unexpected failures.
func SystemErrorMessage() string {
	return formatMessage(defaultMessage)
}

func formatMessage(msg UserMessage) string {
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
