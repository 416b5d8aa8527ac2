package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gfn "github.com/panyam/goutils/fn"

	"github.com/panyam/adaptiva/charts"
	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/services"
	"github.com/panyam/adaptiva/tables"
)

// ErrorBody is the JSON shape of every non-2xx API response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

var errRateLimited = errors.New("rate limit exceeded")

// errorResponse maps an error from the services onto a status and body.
func errorResponse(err error) (int, ErrorBody) {
	body := ErrorBody{Message: err.Error()}

	var structural *chartspec.StructuralError
	var rejected *charts.RenderError
	var suggestion *services.SuggestionError
	var tooBig *http.MaxBytesError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &suggestion):
		status = suggestionStatus(suggestion.Code)
		body.Code = string(suggestion.Code)
		body.Message = suggestion.Message
		if len(suggestion.Details) > 0 {
			body.Details = suggestion.Details
		}
	case errors.As(err, &structural):
		status = http.StatusUnprocessableEntity
		body.Code = "invalid_spec"
		body.Details = structural.Problems
	case errors.As(err, &rejected):
		status = http.StatusBadRequest
		body.Code = "spec_rejected"
		body.Details = rejected.Issues
		body.Message = strings.Join(gfn.Map(rejected.Issues, func(i charts.Issue) string { return i.Message }), "; ")
	case errors.Is(err, tables.ErrDatasetNotFound):
		status = http.StatusNotFound
		body.Code = "dataset_not_found"
	case errors.Is(err, services.ErrNoSuchEntity):
		status = http.StatusNotFound
		body.Code = "not_found"
	case errors.Is(err, tables.ErrTableTooLarge):
		status = http.StatusRequestEntityTooLarge
		body.Code = "table_too_large"
	case errors.Is(err, services.ErrUploadTooLarge), errors.As(err, &tooBig):
		status = http.StatusRequestEntityTooLarge
		body.Code = "upload_too_large"
	case errors.Is(err, tables.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
		body.Code = "unsupported_format"
	case errors.Is(err, tables.ErrNoData):
		status = http.StatusBadRequest
		body.Code = "no_data"
	case errors.Is(err, services.ErrInvalidRequest):
		status = http.StatusBadRequest
		body.Code = "invalid_request"
	case errors.Is(err, errRateLimited):
		status = http.StatusTooManyRequests
		body.Code = "rate_limited"
	default:
		var ingest *tables.IngestError
		if errors.As(err, &ingest) {
			status = http.StatusBadRequest
			body.Code = "ingest_failed"
		}
	}
	body.Error = http.StatusText(status)
	return status, body
}

func suggestionStatus(code services.SuggestionCode) int {
	switch code {
	case services.SuggestDatasetNotFound:
		return http.StatusNotFound
	case services.SuggestTableTooLarge:
		return http.StatusRequestEntityTooLarge
	case services.SuggestLLMTimeout:
		return http.StatusGatewayTimeout
	case services.SuggestLLMAPIError:
		return http.StatusBadGateway
	case services.SuggestAPIKeyMissing:
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= 500 {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Error writing response", "error", err)
	}
}
