package submission

import (
	"context"

	"nylta-workers/internal/models"
)

// FailedClients returns the clients named in progress.Errors, in their
// original order. Errors are matched by client id, falling back to the LLC
// name for errors recorded without one.
func FailedClients(clients []models.Client, progress models.SubmissionProgress) []models.Client {
	if len(progress.Errors) == 0 {
		return []models.Client{}
	}

	byID := make(map[string]bool, len(progress.Errors))
	byName := make(map[string]bool, len(progress.Errors))
	for _, e := range progress.Errors {
		if e.ClientID != "" {
			byID[e.ClientID] = true
		} else {
			byName[e.ClientName] = true
		}
	}

	out := []models.Client{}
	for _, c := range clients {
		if (c.ID != "" && byID[c.ID]) || byName[c.LLCName] {
			out = append(out, c)
		}
	}
	return out
}

// RetryFailed resubmits only the clients that failed in previous. The retry
// keeps the order number and each client's submission number.
func (d *Driver) RetryFailed(ctx context.Context, batch *Batch, previous models.SubmissionProgress, observe Observer) (*Result, error) {
	if batch == nil {
		return nil, ErrNoClients
	}
	failed := FailedClients(batch.Clients, previous)
	if len(failed) == 0 {
		return nil, ErrNothingToRetry
	}

	d.logger.Info("retrying failed clients", map[string]interface{}{
		"batchId":     batch.ID,
		"orderNumber": batch.OrderNumber,
		"clients":     len(failed),
	})

	return d.Submit(ctx, batch.Subset(failed, d.now()), observe)
}
