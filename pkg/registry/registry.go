// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nylta-workers/internal/common/errors"
	"nylta-workers/internal/common/validation"
	pcc "nylta-workers/internal/workers/bulk-filing/parse-client-csv"
	sbf "nylta-workers/internal/workers/bulk-filing/submit-bulk-filing"
	vws "nylta-workers/internal/workers/bulk-filing/validate-wizard-step"
)

const CategoryBulkFiling = "bulk-filing"

// Default describes the job types registered by the worker manager.
func Default() *ActivityRegistry {
	return &ActivityRegistry{
		Version:     "1.0.0",
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Activities: []Activity{
			{
				ID:          "parse-client-csv",
				DisplayName: "Parse Client CSV",
				Description: "Parses an uploaded client CSV and appends the clients to the session draft",
				Category:    CategoryBulkFiling,
				Version:     "1.0.0",
				TaskType:    pcc.TaskType,
				InputSchema: pcc.GetInputSchema(),
				Outputs:     []string{"clientCount", "totalClients", "clientIds", "step"},
				ErrorCodes: codes(errors.ErrCodeCSVParseFailed, errors.ErrCodeValidationFailed,
					errors.ErrCodeDraftStoreFailed),
				Timeout: pcc.DefaultConfig().Timeout.String(),
				Retries: 3,
				Tags:    []string{"wizard", "csv"},
			},
			{
				ID:          "validate-wizard-step",
				DisplayName: "Validate Wizard Step",
				Description: "Evaluates the completion predicate of one wizard step",
				Category:    CategoryBulkFiling,
				Version:     "1.0.0",
				TaskType:    vws.TaskType,
				InputSchema: vws.GetInputSchema(),
				Outputs: []string{"step", "stepName", "stepComplete", "missing", "warnings",
					"completedSteps", "clientCount"},
				ErrorCodes: codes(errors.ErrCodeDraftNotFound, errors.ErrCodeDraftStoreFailed,
					errors.ErrCodeValidationFailed),
				Timeout: vws.DefaultConfig().Timeout.String(),
				Retries: 3,
				Tags:    []string{"wizard"},
			},
			{
				ID:          "submit-bulk-filing",
				DisplayName: "Submit Bulk Filing",
				Description: "Submits every client of the session to the CRM, or only the failed ones on retry",
				Category:    CategoryBulkFiling,
				Version:     "1.0.0",
				TaskType:    sbf.TaskType,
				InputSchema: sbf.GetInputSchema(),
				Outputs: []string{"batchId", "orderNumber", "status", "total", "completed",
					"failed", "contactIds", "errors", "items", "draftCleared"},
				ErrorCodes: codes(errors.ErrCodeDraftNotFound, errors.ErrCodeStepIncomplete,
					errors.ErrCodeSignatureInvalid, errors.ErrCodeBatchSubmissionFailed,
					errors.ErrCodeSubmissionCancelled, errors.ErrCodeCRMNotConfigured),
				Timeout: sbf.DefaultConfig().Timeout.String(),
				Retries: 1,
				Tags:    []string{"wizard", "crm", "highlevel"},
			},
		},
	}
}

func codes(in ...errors.ErrorCode) []string {
	out := make([]string, len(in))
	for i, c := range in {
		out[i] = string(c)
	}
	return out
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// Save writes the registry as indented JSON, creating the directory.
func Save(reg *ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Find returns the activity with the given id or task type.
func (r *ActivityRegistry) Find(key string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].ID == key || r.Activities[i].TaskType == key {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Validate checks required fields, task type naming and uniqueness of ids
// and task types.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, a := range r.Activities {
		if a.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate activity ID: %s", a.ID)
		}
		ids[a.ID] = true

		if a.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", a.ID)
		}
		if a.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", a.ID)
		}
		if err := validation.ValidateTaskType(a.TaskType); err != nil {
			return fmt.Errorf("activity %s has invalid task type: %w", a.ID, err)
		}
		if taskTypes[a.TaskType] {
			return fmt.Errorf("duplicate task type: %s", a.TaskType)
		}
		taskTypes[a.TaskType] = true

		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				return fmt.Errorf("activity %s has invalid timeout %q", a.ID, a.Timeout)
			}
		}
	}
	return nil
}
