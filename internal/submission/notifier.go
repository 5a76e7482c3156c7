package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nylta-workers/internal/models"
)

// Mailer is satisfied by aws.Mailer.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// Alerter is satisfied by aws.Alerter.
type Alerter interface {
	Publish(ctx context.Context, subject, message string) (string, error)
}

// Notifier emails the firm its order summary and raises an ops alert when no
// client of the batch made it into the CRM.
type Notifier struct {
	mailer  Mailer
	alerter Alerter
}

func NewNotifier(mailer Mailer, alerter Alerter) *Notifier {
	return &Notifier{mailer: mailer, alerter: alerter}
}

func (n *Notifier) Name() string { return "notifier" }

func (n *Notifier) Record(ctx context.Context, result *Result) error {
	if result == nil || result.Batch == nil {
		return nil
	}
	batch := result.Batch
	p := result.Progress

	var errs []error
	if n.mailer != nil && batch.Firm.Email != "" {
		subject := fmt.Sprintf("NYLTA bulk filing order %s", batch.OrderNumber)
		if _, err := n.mailer.Send(ctx, batch.Firm.Email, subject, confirmationBody(result)); err != nil {
			errs = append(errs, fmt.Errorf("send confirmation: %w", err))
		}
	}

	if n.alerter != nil && p.Status == models.StatusError {
		subject := fmt.Sprintf("Bulk filing %s failed", batch.OrderNumber)
		msg := fmt.Sprintf("All %d clients of batch %s for firm %s failed to submit.\n%s",
			p.Total, batch.ID, firmLabel(batch.Firm), errorLines(p.Errors))
		if _, err := n.alerter.Publish(ctx, subject, msg); err != nil {
			errs = append(errs, fmt.Errorf("publish alert: %w", err))
		}
	}

	return errors.Join(errs...)
}

func confirmationBody(result *Result) string {
	b := result.Batch
	p := result.Progress

	var sb strings.Builder
	fmt.Fprintf(&sb, "Order number: %s\n", b.OrderNumber)
	fmt.Fprintf(&sb, "Clients submitted: %d of %d\n", p.Succeeded(), p.Total)
	if p.Failed > 0 {
		fmt.Fprintf(&sb, "Clients that need attention: %d\n\n", p.Failed)
		sb.WriteString(errorLines(p.Errors))
		sb.WriteString("\nYou can retry the failed clients from the review step.\n")
	}
	sb.WriteString("\nSubmissions:\n")
	for _, item := range result.Items {
		fmt.Fprintf(&sb, "  %s  %s  %s\n", item.SubmissionNumber, item.ClientName, item.Status)
	}
	return sb.String()
}

func errorLines(errs []models.ClientError) string {
	var sb strings.Builder
	for _, e := range errs {
		fmt.Fprintf(&sb, "- %s: %s\n", e.ClientName, e.Error)
	}
	return sb.String()
}

func firmLabel(f Firm) string {
	if f.Name != "" {
		return f.Name
	}
	return f.ParentFirmID
}
