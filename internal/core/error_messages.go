package core

// # Error Codes Reference
//
// Errors shown to users carry a code they can quote when asking for help.
//
//	SCH001  - Missing column: the file has no "nome" column (or the configured one)
//	FILE001 - File too large: the file exceeds the upload limit
//	FILE002 - Invalid CSV: the file could not be parsed
//	FILE003 - Unreadable file: the file does not exist or cannot be opened
//	FILE004 - No file: nothing was selected
//	FILE005 - Empty file: the file has no header row
//	FILE006 - Not a CSV: the file name does not end in .csv
//	SAVE001 - Write failed: the destination could not be written
//	SAVE002 - Nothing to save: no valid file has been loaded
//	SAVE003 - Bad destination: the save path does not end in .csv or .xlsx
//	UPL002  - System busy: too many loads or saves waiting
//	REQ001  - Request cancelled
//	REQ002  - Request timed out
//	REQ003  - Cross-site request: the request did not come from this page
//	RATE001 - Too many requests
//	ERR000  - Unknown error: check the application logs
//
// Sentinel errors are matched first with errors.Is; errors that only exist
// as text (from middleware or the HTTP stack) fall back to case-insensitive
// substring patterns. The first match wins.

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/JonMunkholm/csvnome/internal/table"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`          // What happened
	Action  string `json:"action"`           // What to do about it
	Code    string `json:"code"`             // Support reference
	Detail  string `json:"detail,omitempty"` // Underlying cause, for parse and write failures
}

var (
	msgTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgNotFound = UserMessage{
		Message: "The file could not be found",
		Action:  "Check the path and try again",
		Code:    "FILE003",
	}
)

type errorKind struct {
	target error
	msg    UserMessage
	detail bool
}

// errorKinds is checked in order. Parse failures caused by a missing or
// unreadable file are matched before the general parse case.
var errorKinds = []errorKind{
	{
		target: table.ErrSchema,
		msg: UserMessage{
			Message: "The file is missing a required column",
			Action:  `Add the column (by default "nome") to the header row`,
			Code:    "SCH001",
		},
		detail: true,
	},
	{
		target: ErrNotCSV,
		msg: UserMessage{
			Message: "Only CSV files can be opened",
			Action:  "Choose a file ending in .csv",
			Code:    "FILE006",
		},
	},
	{target: ErrFileTooLarge, msg: msgTooLarge},
	{
		target: ErrNoFile,
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Select or drop a CSV file",
			Code:    "FILE004",
		},
	},
	{
		target: table.ErrEmptyFile,
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Choose a CSV file with a header row",
			Code:    "FILE005",
		},
	},
	{
		target: ErrNothingToSave,
		msg: UserMessage{
			Message: "There is nothing to save yet",
			Action:  "Load a valid CSV file first",
			Code:    "SAVE002",
		},
	},
	{
		target: ErrSaveExtension,
		msg: UserMessage{
			Message: "Files can only be saved as CSV or XLSX",
			Action:  "Choose a file name ending in .csv or .xlsx",
			Code:    "SAVE003",
		},
	},
	{
		target: table.ErrWrite,
		msg: UserMessage{
			Message: "The file could not be saved",
			Action:  "Check that the destination folder exists and is writable",
			Code:    "SAVE001",
		},
		detail: true,
	},
	{target: fs.ErrNotExist, msg: msgNotFound, detail: true},
	{
		target: fs.ErrPermission,
		msg: UserMessage{
			Message: "The file could not be opened",
			Action:  "Check the file permissions",
			Code:    "FILE003",
		},
		detail: true,
	},
	{
		target: table.ErrParse,
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated with a header row",
			Code:    "FILE002",
		},
		detail: true,
	},
	{
		target: ErrBusy,
		msg: UserMessage{
			Message: "System is busy processing other files",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		target: ErrCrossOrigin,
		msg: UserMessage{
			Message: "The request did not come from this application",
			Action:  "Use the csvnome page to load and save files",
			Code:    "REQ003",
		},
	},
	{
		target: context.Canceled,
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		target: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "REQ002",
		},
	},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers errors that reach us only as text.
var errorPatterns = []errorPattern{
	{
		pattern: "request body too large",
		msg:     msgTooLarge,
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "no such file",
		msg:     msgNotFound,
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message. Schema, parse and
// write failures keep the underlying cause in Detail.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			msg := k.msg
			if k.detail {
				msg.Detail = causeOf(err)
			}
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// causeOf returns the innermost useful text of err.
func causeOf(err error) string {
	var te *table.Error
	if errors.As(err, &te) && te.Err != nil {
		return te.Err.Error()
	}
	return err.Error()
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action", followed by the cause when there is one.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	s := fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
	if msg.Detail != "" {
		s += ". Details: " + msg.Detail
	}
	return s
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with the message shown for it.
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

// NewUserError maps err; it returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
