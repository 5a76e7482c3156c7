package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"nylta-workers/internal/models"
	"nylta-workers/internal/wizard"
	submitbulkfiling "nylta-workers/internal/workers/bulk-filing/submit-bulk-filing"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type previousError struct {
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName" validate:"required"`
	Error      string `json:"error"`
}

type submitResponse struct {
	*submitbulkfiling.Output
	CompletedSteps []int `json:"completedSteps"`
}

type submitRequest struct {
	ParentFirmID    string          `json:"parentFirmId" validate:"required,max=128"`
	FirmName        string          `json:"firmName" validate:"max=256"`
	FirmEmail       string          `json:"firmEmail" validate:"omitempty,email"`
	RetryFailedOnly bool            `json:"retryFailedOnly"`
	OrderNumber     string          `json:"orderNumber" validate:"omitempty,startswith=NYLTA-"`
	PreviousErrors  []previousError `json:"previousErrors" validate:"omitempty,dive"`
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := s.validateStruct(req); fields != nil {
		respondValidationErrors(w, fields)
		return
	}

	input := &submitbulkfiling.Input{
		SessionID:       sessionID,
		ParentFirmID:    req.ParentFirmID,
		FirmName:        req.FirmName,
		FirmEmail:       req.FirmEmail,
		RetryFailedOnly: req.RetryFailedOnly,
		OrderNumber:     req.OrderNumber,
	}
	for _, pe := range req.PreviousErrors {
		input.PreviousErrors = append(input.PreviousErrors, models.ClientError{
			ClientID:   pe.ClientID,
			ClientName: pe.ClientName,
			Error:      pe.Error,
		})
	}

	output, err := s.submitter.Execute(r.Context(), input)
	if err != nil {
		s.logger.Warn("Bulk filing submission rejected", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		respondStandardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, submitResponse{
		Output:         output,
		CompletedSteps: sortedSteps(wizard.CompletedSteps(wizard.LastStep, models.SubmissionStatus(output.Status))),
	})
}

func (s *Server) searchOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := mux.Vars(r)["orderNumber"]

	docs, err := s.orders.SearchOrder(r.Context(), orderNumber)
	if err != nil {
		s.logger.Error("Order search failed", map[string]interface{}{
			"orderNumber": orderNumber,
			"error":       err.Error(),
		})
		respondError(w, http.StatusBadGateway, "order search failed")
		return
	}
	if len(docs) == 0 {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"orderNumber": orderNumber,
		"submissions": docs,
	})
}

// validateStruct returns field -> message keyed by JSON name, or nil.
func (s *Server) validateStruct(v interface{}) map[string]string {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return map[string]string{"_global": err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		msg := fmt.Sprintf("failed validation on '%s'", e.Tag())
		switch e.Tag() {
		case "required", "required_if":
			msg = "This field is required"
		case "email":
			msg = "Invalid email address"
		case "max":
			msg = fmt.Sprintf("Must be at most %s characters", e.Param())
		case "startswith":
			msg = fmt.Sprintf("Must start with %s", e.Param())
		}
		fields[jsonPath(e.Namespace())] = msg
	}
	return fields
}

// jsonPath drops the struct name from a validator namespace.
func jsonPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func jsonTagName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
