package services

import (
	"errors"
	"fmt"
)

var (
	ErrNoSuchEntity = errors.New("entity not found")

	// ErrUploadTooLarge is returned when an upload exceeds MaxUploadBytes.
	ErrUploadTooLarge = errors.New("upload exceeds size limit")

	// ErrInvalidRequest wraps malformed caller input that is not a chart spec.
	ErrInvalidRequest = errors.New("invalid request")
)

// SuggestionCode classifies why a suggestion could not be produced.
type SuggestionCode string

const (
	SuggestDatasetNotFound SuggestionCode = "dataset_not_found"
	SuggestAPIKeyMissing   SuggestionCode = "api_key_missing"
	SuggestLLMTimeout      SuggestionCode = "llm_timeout"
	SuggestLLMAPIError     SuggestionCode = "llm_api_error"
	SuggestJSONParseError  SuggestionCode = "json_parse_error"
	SuggestInvalidSpec     SuggestionCode = "invalid_spec"
	SuggestInvalidColumns  SuggestionCode = "invalid_columns"
	SuggestTableTooLarge   SuggestionCode = "table_too_large"
)

// SuggestionError is the single error type returned by Suggester.Suggest.
type SuggestionError struct {
	Code    SuggestionCode
	Message string
	Details map[string]any
	Err     error
}

func (e *SuggestionError) Error() string {
	return fmt.Sprintf("suggestion failed (%s): %s", e.Code, e.Message)
}

func (e *SuggestionError) Unwrap() error { return e.Err }

func suggestionErr(code SuggestionCode, err error, details map[string]any, format string, args ...any) *SuggestionError {
	return &SuggestionError{Code: code, Message: fmt.Sprintf(format, args...), Details: details, Err: err}
}
