package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "nylta-workers/internal/common/errors"
	"nylta-workers/internal/common/highlevel"
	"nylta-workers/internal/common/logger"
	"nylta-workers/internal/common/metrics"
	"nylta-workers/internal/common/observability"
	"nylta-workers/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultConcurrency    = 1
	DefaultSubmitInterval = 200 * time.Millisecond
	DefaultItemTimeout    = 30 * time.Second

	confirmTimeout = 30 * time.Second
)

var (
	ErrNoClients      = errors.New("batch has no clients")
	ErrNothingToRetry = errors.New("previous run has no failed clients")
	ErrMissingCRM     = errors.New("crm client is required")
	errItemNotStarted = errors.New("submission cancelled before this client was sent")
)

// CRM is the part of the HighLevel client the driver calls.
type CRM interface {
	CreateContact(ctx context.Context, contact *highlevel.ContactRequest) (string, error)
	AddNote(ctx context.Context, contactID, note string) (string, error)
	AddTags(ctx context.Context, contactID string, tags []string) error
}

// Sink receives the outcome of every finished batch. Sink errors are logged
// and never change the outcome.
type Sink interface {
	Name() string
	Record(ctx context.Context, result *Result) error
}

// BatchRecorder is implemented by observability.Observability.
type BatchRecorder interface {
	RecordBatch(ctx context.Context, succeeded, failed int, status string, duration time.Duration)
}

// Observer is called with a fresh snapshot after every state change.
type Observer func(models.SubmissionProgress)

type Options struct {
	// Concurrency bounds in-flight CRM calls. 1 keeps submissions strictly
	// sequential.
	Concurrency int
	// SubmitInterval is the minimum spacing between CRM create calls.
	SubmitInterval time.Duration
	ItemTimeout    time.Duration
}

func DefaultOptions() Options {
	return Options{
		Concurrency:    DefaultConcurrency,
		SubmitInterval: DefaultSubmitInterval,
		ItemTimeout:    DefaultItemTimeout,
	}
}

type Driver struct {
	crm      CRM
	opts     Options
	logger   logger.Logger
	sinks    []Sink
	recorder BatchRecorder
	now      func() time.Time
}

func NewDriver(crm CRM, opts Options, log logger.Logger, sinks ...Sink) (*Driver, error) {
	if crm == nil {
		return nil, ErrMissingCRM
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.SubmitInterval < 0 {
		opts.SubmitInterval = 0
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = DefaultItemTimeout
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Driver{
		crm:    crm,
		opts:   opts,
		logger: log,
		sinks:  sinks,
		now:    time.Now,
	}, nil
}

// WithRecorder attaches a batch metrics recorder.
func (d *Driver) WithRecorder(r BatchRecorder) *Driver {
	d.recorder = r
	return d
}

// NewBatch starts a batch with the driver's clock.
func (d *Driver) NewBatch(firm Firm, clients []models.Client, attestation models.AttestationData) *Batch {
	return NewBatch(firm, clients, attestation, d.now())
}

type itemOutcome struct {
	contactID string
	err       error
	started   bool
	duration  time.Duration
}

// Submit sends every client of the batch and returns the final progress.
// Progress is delivered in submission order whatever the concurrency. When ctx
// is cancelled, clients not yet sent are recorded as failed and ctx.Err() is
// returned together with the result.
func (d *Driver) Submit(ctx context.Context, batch *Batch, observe Observer) (*Result, error) {
	if batch == nil || len(batch.Clients) == 0 {
		return nil, ErrNoClients
	}
	if observe == nil {
		observe = func(models.SubmissionProgress) {}
	}

	ctx, span := observability.StartSpan(ctx, "bulk_filing.submit",
		attribute.String("batch.id", batch.ID),
		attribute.String("order.number", batch.OrderNumber),
		attribute.Int("batch.size", len(batch.Clients)),
	)
	defer span.End()

	started := d.now()
	n := len(batch.Clients)

	d.logger.Info("bulk filing batch started", map[string]interface{}{
		"batchId":     batch.ID,
		"orderNumber": batch.OrderNumber,
		"clients":     n,
		"concurrency": d.opts.Concurrency,
	})

	progress := models.NewSubmissionProgress(n)
	progress.Status = models.StatusSubmitting
	progress.CurrentClient = batch.Clients[0].LLCName
	observe(progress.Snapshot())

	var limiter *rate.Limiter
	if d.opts.SubmitInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(d.opts.SubmitInterval), 1)
	}

	results := make([]chan itemOutcome, n)
	for i := range results {
		results[i] = make(chan itemOutcome, 1)
	}

	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for i := 0; i < n; i++ {
			if ctx.Err() != nil {
				results[i] <- itemOutcome{err: errItemNotStarted}
				continue
			}
			i := i
			g.Go(func() error {
				results[i] <- d.submitOne(ctx, limiter, batch, i)
				return nil
			})
		}
	}()

	items := make([]ItemResult, n)
	for i := 0; i < n; i++ {
		out := <-results[i]
		client := batch.Clients[i]

		item := ItemResult{
			Position:         batch.SubmissionPosition(i),
			ClientID:         client.ID,
			ClientName:       client.LLCName,
			SubmissionNumber: batch.SubmissionNumber(i),
			ContactID:        out.contactID,
			DurationMs:       out.duration.Milliseconds(),
		}

		progress.Completed++
		if out.err != nil {
			progress.Failed++
			progress.Errors = append(progress.Errors, models.ClientError{
				ClientID:   client.ID,
				ClientName: client.LLCName,
				Error:      out.err.Error(),
			})
			item.Status = ItemFailed
			if !out.started {
				item.Status = ItemCancelled
			}
			item.Error = out.err.Error()
			metrics.BulkFilingItems.WithLabelValues(item.Status).Inc()
		} else {
			progress.ContactIDs = append(progress.ContactIDs, out.contactID)
			item.Status = ItemSucceeded
			metrics.BulkFilingItems.WithLabelValues(item.Status).Inc()
		}
		items[i] = item

		if i+1 < n {
			progress.CurrentClient = batch.Clients[i+1].LLCName
		}
		observe(progress.Snapshot())
	}

	<-dispatched
	_ = g.Wait()

	if progress.Failed == progress.Total {
		progress.Status = models.StatusError
	} else {
		progress.Status = models.StatusComplete
	}
	progress.CurrentClient = ""

	result := &Result{
		Batch:      batch,
		Progress:   progress.Snapshot(),
		Items:      items,
		StartedAt:  started,
		FinishedAt: d.now(),
	}

	// confirmation and sinks run even when the caller has gone away
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmTimeout)
	defer cancel()

	if err := d.ConfirmOrder(finishCtx, batch, result.Progress); err != nil {
		d.logger.Warn("order confirmation failed", map[string]interface{}{
			"batchId":     batch.ID,
			"orderNumber": batch.OrderNumber,
			"error":       err,
		})
	}
	d.runSinks(finishCtx, result)

	duration := result.FinishedAt.Sub(started)
	metrics.BulkFilingBatchDuration.WithLabelValues(string(progress.Status)).Observe(duration.Seconds())
	if d.recorder != nil {
		d.recorder.RecordBatch(finishCtx, progress.Succeeded(), progress.Failed, string(progress.Status), duration)
	}

	span.SetAttributes(
		attribute.Int("batch.succeeded", progress.Succeeded()),
		attribute.Int("batch.failed", progress.Failed),
	)
	if progress.Status == models.StatusError {
		span.SetStatus(codes.Error, "all clients failed")
	}

	d.logger.Info("bulk filing batch finished", map[string]interface{}{
		"batchId":   batch.ID,
		"status":    string(progress.Status),
		"total":     progress.Total,
		"failed":    progress.Failed,
		"succeeded": progress.Succeeded(),
		"duration":  duration.String(),
	})

	observe(result.Progress.Snapshot())

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (d *Driver) submitOne(ctx context.Context, limiter *rate.Limiter, batch *Batch, i int) itemOutcome {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return itemOutcome{err: fmt.Errorf("%w: %v", errItemNotStarted, err)}
		}
	}
	if ctx.Err() != nil {
		return itemOutcome{err: errItemNotStarted}
	}

	payload, err := BuildContactPayload(batch, i)
	if err != nil {
		return itemOutcome{err: err, started: true}
	}

	itemCtx, cancel := context.WithTimeout(ctx, d.opts.ItemTimeout)
	defer cancel()

	itemCtx, span := observability.StartSpan(itemCtx, "bulk_filing.create_contact",
		attribute.String("submission.number", batch.SubmissionNumber(i)),
	)
	defer span.End()

	start := time.Now()
	contactID, err := d.crm.CreateContact(itemCtx, payload)
	out := itemOutcome{contactID: contactID, err: err, started: true, duration: time.Since(start)}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Warn("client submission failed", map[string]interface{}{
			"batchId":          batch.ID,
			"submissionNumber": batch.SubmissionNumber(i),
			"clientName":       batch.Clients[i].LLCName,
			"error":            err,
		})
	}
	return out
}

// ConfirmOrder attaches the order summary note and tags to the firm contact.
func (d *Driver) ConfirmOrder(ctx context.Context, batch *Batch, progress models.SubmissionProgress) error {
	if batch.Firm.ParentFirmID == "" {
		return fmt.Errorf("no parent firm contact for order %s", batch.OrderNumber)
	}

	note := fmt.Sprintf("Bulk filing order %s (batch %s): %d of %d clients submitted, %d failed.",
		batch.OrderNumber, batch.ID, progress.Succeeded(), progress.Total, progress.Failed)
	for _, e := range progress.Errors {
		note += fmt.Sprintf("\n- %s: %s", e.ClientName, e.Error)
	}

	if _, err := d.crm.AddNote(ctx, batch.Firm.ParentFirmID, note); err != nil {
		return fmt.Errorf("add order note: %w", err)
	}
	tags := []string{"nylta-bulk-order", batch.OrderNumber}
	if err := d.crm.AddTags(ctx, batch.Firm.ParentFirmID, tags); err != nil {
		return fmt.Errorf("add order tags: %w", err)
	}
	return nil
}

func (d *Driver) runSinks(ctx context.Context, result *Result) {
	for _, s := range d.sinks {
		if err := s.Record(ctx, result); err != nil {
			se := sinkError(s, err)
			d.logger.Warn("batch sink failed", map[string]interface{}{
				"sink":      s.Name(),
				"batchId":   result.Batch.ID,
				"errorCode": se.Code,
				"error":     se.Details,
			})
		}
	}
}

func sinkError(s Sink, err error) *apperrors.StandardError {
	switch sink := s.(type) {
	case *AuditSink:
		return apperrors.NewAuditLogFailedError(err)
	case *ResultIndexer:
		return apperrors.NewIndexingFailedError(sink.index, err)
	case *Notifier:
		return apperrors.NewNotificationSendFailedError("order confirmation", err)
	}
	return apperrors.NewInternalError(fmt.Errorf("%s: %w", s.Name(), err))
}
