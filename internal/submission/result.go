package submission

import (
	"time"

	"nylta-workers/internal/models"
)

const (
	ItemSucceeded = "success"
	ItemFailed    = "failed"
	ItemCancelled = "cancelled"
)

type ItemResult struct {
	Position         int    `json:"position"`
	ClientID         string `json:"clientId"`
	ClientName       string `json:"clientName"`
	SubmissionNumber string `json:"submissionNumber"`
	ContactID        string `json:"contactId,omitempty"`
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
	DurationMs       int64  `json:"durationMs"`
}

// Result is the outcome of one Submit call.
type Result struct {
	Batch      *Batch                    `json:"-"`
	Progress   models.SubmissionProgress `json:"progress"`
	Items      []ItemResult              `json:"items"`
	StartedAt  time.Time                 `json:"startedAt"`
	FinishedAt time.Time                 `json:"finishedAt"`
}

// Summary is the serialisable view of a result handed to workers and the API.
type Summary struct {
	BatchID      string                    `json:"batchId"`
	OrderNumber  string                    `json:"orderNumber"`
	ParentFirmID string                    `json:"parentFirmId"`
	Progress     models.SubmissionProgress `json:"progress"`
	Items        []ItemResult              `json:"items"`
	StartedAt    time.Time                 `json:"startedAt"`
	FinishedAt   time.Time                 `json:"finishedAt"`
}

func (r *Result) Summary() Summary {
	s := Summary{
		Progress:   r.Progress.Snapshot(),
		Items:      append([]ItemResult{}, r.Items...),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Batch != nil {
		s.BatchID = r.Batch.ID
		s.OrderNumber = r.Batch.OrderNumber
		s.ParentFirmID = r.Batch.Firm.ParentFirmID
	}
	return s
}

func (r *Result) FailedItems() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Status != ItemSucceeded {
			out = append(out, it)
		}
	}
	return out
}
