package api

import (
	"encoding/json"
	"net/http"

	"nylta-workers/internal/common/errors"
	"nylta-workers/internal/models"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondValidationErrors(w http.ResponseWriter, fields map[string]string) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":             "Validation failed",
		"validation_errors": fields,
	})
}

// errorResponse inlines the batch progress of a failed submission so the
// per-client errors sit next to the code.
type errorResponse struct {
	Error    string                 `json:"error"`
	Code     errors.ErrorCode       `json:"code"`
	Details  string                 `json:"details,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	*models.SubmissionProgress
}

// respondStandardError maps worker error codes onto HTTP statuses.
func respondStandardError(w http.ResponseWriter, err error) {
	stdErr, ok := errors.AsStandardError(err)
	if !ok {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := errorResponse{
		Error:   stdErr.Message,
		Code:    stdErr.Code,
		Details: stdErr.Details,
	}
	for k, v := range stdErr.Metadata {
		if p, ok := v.(models.SubmissionProgress); ok && k == "progress" {
			resp.SubmissionProgress = &p
			continue
		}
		if resp.Metadata == nil {
			resp.Metadata = map[string]interface{}{}
		}
		resp.Metadata[k] = v
	}
	respondJSON(w, statusFor(stdErr.Code), resp)
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeValidationFailed, errors.ErrCodeCSVParseFailed, errors.ErrCodeInputParsingFailed:
		return http.StatusBadRequest
	case errors.ErrCodeDraftNotFound:
		return http.StatusNotFound
	case errors.ErrCodeStepIncomplete, errors.ErrCodeSignatureInvalid:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeBatchSubmissionFailed, errors.ErrCodeCRMAPIError:
		return http.StatusBadGateway
	case errors.ErrCodeCRMNotConfigured, errors.ErrCodeDraftStoreFailed, errors.ErrCodeSubmissionCancelled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
