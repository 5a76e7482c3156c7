package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AuditSink writes one audit_log row per batch and one bulk_filing_items row
// per client in a single transaction.
type AuditSink struct {
	db  *sql.DB
	now func() time.Time
}

func NewAuditSink(db *sql.DB) *AuditSink {
	return &AuditSink{db: db, now: time.Now}
}

func (a *AuditSink) Name() string { return "audit" }

func (a *AuditSink) Record(ctx context.Context, result *Result) (err error) {
	if a.db == nil {
		return errors.New("audit sink has no database")
	}
	if result == nil || result.Batch == nil {
		return errors.New("audit sink needs a batch result")
	}

	summary := result.Summary()
	details, err := json.Marshal(map[string]interface{}{
		"orderNumber":  summary.OrderNumber,
		"parentFirmId": summary.ParentFirmID,
		"status":       summary.Progress.Status,
		"total":        summary.Progress.Total,
		"failed":       summary.Progress.Failed,
		"contactIds":   summary.Progress.ContactIDs,
		"errors":       summary.Progress.Errors,
	})
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := a.now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		"bulk_filing_submitted",
		"bulk_filing_batch",
		summary.BatchID,
		details,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	for _, item := range summary.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO bulk_filing_items (
				batch_id, order_number, submission_number, client_id,
				client_name, contact_id, status, error, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			summary.BatchID,
			summary.OrderNumber,
			item.SubmissionNumber,
			item.ClientID,
			item.ClientName,
			nullString(item.ContactID),
			item.Status,
			nullString(item.Error),
			now,
		)
		if err != nil {
			return fmt.Errorf("insert item %s: %w", item.SubmissionNumber, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit audit tx: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
