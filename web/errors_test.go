package web

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/panyam/adaptiva/charts"
	"github.com/panyam/adaptiva/chartspec"
	"github.com/panyam/adaptiva/services"
	"github.com/panyam/adaptiva/tables"
)

func TestErrorResponse(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"Dataset Not Found", &tables.NotFoundError{Ref: tables.DatasetRef{DatasetID: "abc"}}, http.StatusNotFound, "dataset_not_found"},
		{"Wrapped Too Large", fmt.Errorf("loading: %w", tables.ErrTableTooLarge), http.StatusRequestEntityTooLarge, "table_too_large"},
		{"Upload Too Large", services.ErrUploadTooLarge, http.StatusRequestEntityTooLarge, "upload_too_large"},
		{"Unsupported Format", tables.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, "unsupported_format"},
		{"Ingest Failure", &tables.IngestError{Format: "csv", Err: fmt.Errorf("bad quote")}, http.StatusBadRequest, "ingest_failed"},
		{"Structural", &chartspec.StructuralError{Problems: []chartspec.Problem{{Field: "chart_type", Message: "required"}}}, http.StatusUnprocessableEntity, "invalid_spec"},
		{"Suggestion Timeout", &services.SuggestionError{Code: services.SuggestLLMTimeout, Message: "timed out"}, http.StatusGatewayTimeout, "llm_timeout"},
		{"Suggestion Invalid Spec", &services.SuggestionError{Code: services.SuggestInvalidSpec, Message: "bad"}, http.StatusBadRequest, "invalid_spec"},
		{"Rate Limited", errRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{"Unknown", fmt.Errorf("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := errorResponse(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, body.Code)
			assert.Equal(t, http.StatusText(tc.status), body.Error)
		})
	}

	t.Run("Rejected Spec Joins Messages", func(t *testing.T) {
		err := &charts.RenderError{Issues: []charts.Issue{
			{Field: "x_axis.column", Code: "column_not_found", Message: "no column Regon"},
			{Field: "y_axis.columns[0]", Code: "column_not_found", Message: "no column Sales"},
		}}
		status, body := errorResponse(err)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "spec_rejected", body.Code)
		assert.Equal(t, "no column Regon; no column Sales", body.Message)
		assert.Len(t, body.Details, 2)
	})
}
