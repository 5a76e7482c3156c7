package submitbulkfiling

import (
	"nylta-workers/internal/models"
	"nylta-workers/internal/submission"
)

type Input struct {
	SessionID    string `json:"sessionId"`
	ParentFirmID string `json:"parentFirmId"`
	FirmName     string `json:"firmName,omitempty"`
	FirmEmail    string `json:"firmEmail,omitempty"`

	// RetryFailedOnly resubmits the clients named in PreviousErrors under
	// OrderNumber. Both default to the run recorded in the draft.
	RetryFailedOnly bool                 `json:"retryFailedOnly,omitempty"`
	OrderNumber     string               `json:"orderNumber,omitempty"`
	PreviousErrors  []models.ClientError `json:"previousErrors,omitempty"`
}

type Output struct {
	BatchID      string                  `json:"batchId"`
	OrderNumber  string                  `json:"orderNumber"`
	Status       string                  `json:"status"`
	Total        int                     `json:"total"`
	Completed    int                     `json:"completed"`
	Failed       int                     `json:"failed"`
	ContactIDs   []string                `json:"contactIds"`
	Errors       []models.ClientError    `json:"errors"`
	Items        []submission.ItemResult `json:"items"`
	DraftCleared bool                    `json:"draftCleared"`
}
