package dto

import (
	"errors"

	"basegraph.app/insight/internal/apperr"
)

// UserAction is one remediation step a client can offer the user.
type UserAction struct {
	Action      string `json:"action"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// ErrorResponse is the failure body for every non-2xx outcome. Status
// is always "failed"; ErrorType carries the taxonomy kind.
type ErrorResponse struct {
	Status       string         `json:"status"`
	ErrorType    string         `json:"error_type"`
	ErrorMessage string         `json:"error_message"`
	ErrorDetails map[string]any `json:"error_details,omitempty"`
	UserActions  []UserAction   `json:"user_actions"`
}

var actionCatalog = map[string]UserAction{
	"retry": {
		Action:      "retry",
		Label:       "Try again",
		Description: "The failure was transient; retrying usually succeeds.",
	},
	"re_upload": {
		Action:      "re_upload",
		Label:       "Upload a different file",
		Description: "Pick a supported, well-formed document and upload it again.",
	},
	"convert_to_docx": {
		Action:      "convert_to_docx",
		Label:       "Convert to .docx",
		Description: "Save the file in the modern Word format and upload that instead.",
	},
	"split_document": {
		Action:      "split_document",
		Label:       "Split the document",
		Description: "Break the document into smaller parts and upload them separately.",
	},
	"check_config": {
		Action:      "check_config",
		Label:       "Check server configuration",
		Description: "Verify the AI provider credentials configured for the service.",
	},
}

// UserActionsFor picks the remediation steps for a failure kind.
// Legacy .doc uploads additionally get the convert action first.
func UserActionsFor(kind apperr.Kind, details map[string]any) []UserAction {
	var names []string
	switch kind {
	case apperr.KindUnsupportedFormat:
		if ext, ok := details["extension"].(string); ok && ext == "doc" {
			names = []string{"convert_to_docx", "re_upload"}
		} else {
			names = []string{"re_upload"}
		}
	case apperr.KindFileTooLarge:
		names = []string{"split_document", "re_upload"}
	case apperr.KindTimeExceedsBudget:
		names = []string{"split_document"}
	case apperr.KindExtractionFailed, apperr.KindFileCorrupted:
		names = []string{"re_upload", "convert_to_docx"}
	case apperr.KindLowQuality:
		names = []string{"re_upload"}
	case apperr.KindUnauthorized:
		names = []string{"check_config"}
	case apperr.KindBadRequest:
		names = nil
	default:
		names = []string{"retry"}
	}

	actions := make([]UserAction, 0, len(names))
	for _, name := range names {
		actions = append(actions, actionCatalog[name])
	}
	return actions
}

// NewErrorResponse builds a failure body from already-known parts.
func NewErrorResponse(kind apperr.Kind, message string, details map[string]any) *ErrorResponse {
	return &ErrorResponse{
		Status:       "failed",
		ErrorType:    string(kind),
		ErrorMessage: message,
		ErrorDetails: details,
		UserActions:  UserActionsFor(kind, details),
	}
}

// ToErrorResponse maps any error to the failure body. Unclassified
// errors surface as server_error with a generic message so internals
// never leak.
func ToErrorResponse(err error) *ErrorResponse {
	kind := apperr.KindOf(err)
	message := "internal server error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	return NewErrorResponse(kind, message, apperr.DetailsOf(err))
}
