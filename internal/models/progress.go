package models

type SubmissionStatus string

const (
	StatusIdle       SubmissionStatus = "idle"
	StatusSubmitting SubmissionStatus = "submitting"
	StatusComplete   SubmissionStatus = "complete"
	StatusError      SubmissionStatus = "error"
)

type ClientError struct {
	ClientID   string `json:"clientId,omitempty"`
	ClientName string `json:"clientName"`
	Error      string `json:"error"`
}

// SubmissionProgress tracks one batch run. Observers always receive a copy.
type SubmissionProgress struct {
	Total         int              `json:"total"`
	Completed     int              `json:"completed"`
	Failed        int              `json:"failed"`
	CurrentClient string           `json:"currentClient"`
	Status        SubmissionStatus `json:"status"`
	Errors        []ClientError    `json:"errors"`
	ContactIDs    []string         `json:"contactIds"`
}

func NewSubmissionProgress(total int) SubmissionProgress {
	return SubmissionProgress{
		Total:      total,
		Status:     StatusIdle,
		Errors:     []ClientError{},
		ContactIDs: []string{},
	}
}

// Snapshot returns a deep copy safe to hand to another goroutine.
func (p SubmissionProgress) Snapshot() SubmissionProgress {
	out := p
	out.Errors = append([]ClientError{}, p.Errors...)
	out.ContactIDs = append([]string{}, p.ContactIDs...)
	return out
}

func (p SubmissionProgress) Succeeded() int {
	return p.Completed - p.Failed
}

// SubmissionRun is the outcome of the latest batch run of a draft. It stays in
// the draft while any client is still unsubmitted so a resubmit sends only
// those clients, under the same order number.
type SubmissionRun struct {
	BatchID            string           `json:"batchId"`
	OrderNumber        string           `json:"orderNumber"`
	Status             SubmissionStatus `json:"status"`
	Errors             []ClientError    `json:"errors"`
	SubmittedClientIDs []string         `json:"submittedClientIds"`
}

// Clone returns a deep copy.
func (r SubmissionRun) Clone() SubmissionRun {
	out := r
	out.Errors = append([]ClientError{}, r.Errors...)
	out.SubmittedClientIDs = append([]string{}, r.SubmittedClientIDs...)
	return out
}
