package utils

import "net/http"

// Error codes returned to callers. Handlers map anything that is not an
// *AppError to a generic internal failure.
const (
	CodeInvalidInput     = "invalid_input"
	CodeNotFound         = "not_found"
	CodeUnsupported      = "unsupported"
	CodeExtractionFailed = "extraction_failed"
	CodeStorageIO        = "storage_io"
	CodeInternal         = "internal"
)

// AppError is a structured, caller-facing failure. Notes carry partial
// diagnostic output (e.g. per-page extraction warnings) even when the
// operation as a whole failed.
type AppError struct {
	Code       string   `json:"code"`
	StatusCode int      `json:"-"`
	Message    string   `json:"error"`
	Notes      []string `json:"notes,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

func NewInvalidInputError(message string) *AppError {
	return &AppError{Code: CodeInvalidInput, StatusCode: http.StatusBadRequest, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Code: CodeNotFound, StatusCode: http.StatusNotFound, Message: message}
}

func NewUnsupportedError(message string) *AppError {
	return &AppError{Code: CodeUnsupported, StatusCode: http.StatusNotImplemented, Message: message}
}

func NewExtractionError(message string, notes []string) *AppError {
	return &AppError{Code: CodeExtractionFailed, StatusCode: http.StatusUnprocessableEntity, Message: message, Notes: notes}
}

func NewStorageError(message string) *AppError {
	return &AppError{Code: CodeStorageIO, StatusCode: http.StatusInternalServerError, Message: message}
}

func NewInternalError(message string) *AppError {
	return &AppError{Code: CodeInternal, StatusCode: http.StatusInternalServerError, Message: message}
}

// ErrorCode extracts the taxonomy code from an error, or CodeInternal
// for anything unstructured.
func ErrorCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeInternal
}

// IsNotFound reports whether err is a structured not-found failure.
func IsNotFound(err error) bool {
	return ErrorCode(err) == CodeNotFound
}
