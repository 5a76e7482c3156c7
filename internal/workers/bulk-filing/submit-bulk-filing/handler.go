package submitbulkfiling

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"nylta-workers/internal/common/camunda"
	"nylta-workers/internal/common/config"
	"nylta-workers/internal/common/errors"
	"nylta-workers/internal/common/highlevel"
	"nylta-workers/internal/common/logger"
	"nylta-workers/internal/common/metrics"
	"nylta-workers/internal/common/validation"
	"nylta-workers/internal/draftstore"
	"nylta-workers/internal/models"
	"nylta-workers/internal/signature"
	"nylta-workers/internal/submission"
	"nylta-workers/internal/wizard"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "bulk-filing.batch.submit"

// Submitter is implemented by *submission.Driver.
type Submitter interface {
	NewBatch(firm submission.Firm, clients []models.Client, attestation models.AttestationData) *submission.Batch
	Submit(ctx context.Context, batch *submission.Batch, observe submission.Observer) (*submission.Result, error)
	RetryFailed(ctx context.Context, batch *submission.Batch, previous models.SubmissionProgress, observe submission.Observer) (*submission.Result, error)
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	camunda      *camunda.Client
	drafts       draftstore.Repository
	submitter    Submitter
	errorHandler *errors.ErrorHandler
	jobWorker    worker.JobWorker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Camunda      *camunda.Client
	Drafts       draftstore.Repository
	Submitter    Submitter
	CustomConfig *Config
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for submit-bulk-filing: %w", err)
	}
	if opts.Drafts == nil {
		return nil, fmt.Errorf("draft store is required for submit-bulk-filing")
	}
	if opts.Submitter == nil {
		return nil, fmt.Errorf("submitter is required for submit-bulk-filing")
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}

	return &Handler{
		config:       workerConfig,
		logger:       loggerInstance,
		camunda:      opts.Camunda,
		drafts:       opts.Drafts,
		submitter:    opts.Submitter,
		errorHandler: errors.NewErrorHandler(loggerInstance),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing bulk filing submission", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             TaskType,
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// Execute submits the session's clients. A draft that already has a recorded
// run resumes its order and sends only the clients no run has submitted;
// RetryFailedOnly narrows that to the clients named in PreviousErrors, or in
// the recorded run's errors. The draft is cleared once every client has been
// accepted, otherwise the run is saved into it.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	state, err := h.drafts.Load(ctx, input.SessionID)
	if err != nil {
		if stderrors.Is(err, draftstore.ErrDraftNotFound) {
			return nil, errors.NewDraftNotFoundError(input.SessionID)
		}
		return nil, errors.NewDraftStoreFailedError(err)
	}

	w := wizard.FromState(*state)
	for _, report := range w.Reports() {
		if !report.Complete {
			return nil, errors.NewStepIncompleteError(report.Step, report.Missing)
		}
	}

	attestation := w.Attestation()
	if err := signature.Validate(attestation.Signature); err != nil {
		return nil, errors.NewSignatureInvalidError(err)
	}

	firm := submission.Firm{
		ParentFirmID: input.ParentFirmID,
		Name:         input.FirmName,
		Email:        input.FirmEmail,
	}
	batch := h.submitter.NewBatch(firm, w.Clients(), *attestation)
	lastRun := w.LastRun()

	observe := func(p models.SubmissionProgress) {
		h.logger.Debug("Submission progress", map[string]interface{}{
			"sessionId":     input.SessionID,
			"completed":     p.Completed,
			"failed":        p.Failed,
			"total":         p.Total,
			"currentClient": p.CurrentClient,
		})
	}

	var (
		result *submission.Result
		// clients an unrecorded earlier run of the order accepted
		earlier []string
	)
	switch {
	case input.RetryFailedOnly:
		previous, orderNumber := retryScope(input, lastRun, w.PendingClients())
		if len(previous.Errors) == 0 {
			return nil, errors.NewValidationFailedError("retryFailedOnly requires previousErrors or a recorded failed run")
		}
		if orderNumber != "" {
			batch.OrderNumber = orderNumber
		}
		if lastRun == nil {
			earlier = outsideRetry(batch.Clients, previous)
		}
		result, err = h.submitter.RetryFailed(ctx, batch, previous, observe)

	case lastRun != nil:
		pending := w.PendingClients()
		if len(pending) == 0 {
			return nil, errors.NewValidationFailedError(
				fmt.Sprintf("every client of order %s was already submitted", lastRun.OrderNumber))
		}
		batch.OrderNumber = lastRun.OrderNumber
		h.logger.Info("Resuming bulk filing order", map[string]interface{}{
			"sessionId":   input.SessionID,
			"orderNumber": lastRun.OrderNumber,
			"pending":     len(pending),
			"worker":      TaskType,
		})
		result, err = h.submitter.Submit(ctx, batch.Subset(pending, time.Now()), observe)

	default:
		result, err = h.submitter.Submit(ctx, batch, observe)
	}
	if result == nil {
		return nil, convertSubmitError(err)
	}

	// recorded before any error is mapped so accepted clients are never resent
	cleared := h.recordRun(context.WithoutCancel(ctx), input.SessionID, w, result, earlier)

	p := result.Progress
	if err != nil {
		return nil, convertSubmitError(err).
			WithMetadata("orderNumber", result.Batch.OrderNumber).
			WithMetadata("progress", p)
	}
	if p.Status == models.StatusError {
		first := ""
		if len(p.Errors) > 0 {
			first = p.Errors[0].Error
		}
		return nil, errors.NewBatchSubmissionFailedError(p.Total, first).
			WithMetadata("orderNumber", result.Batch.OrderNumber).
			WithMetadata("batchId", result.Batch.ID).
			WithMetadata("progress", p)
	}

	return &Output{
		BatchID:      result.Batch.ID,
		OrderNumber:  result.Batch.OrderNumber,
		Status:       string(p.Status),
		Total:        p.Total,
		Completed:    p.Completed,
		Failed:       p.Failed,
		ContactIDs:   p.ContactIDs,
		Errors:       p.Errors,
		Items:        result.Items,
		DraftCleared: cleared,
	}, nil
}

// retryScope picks the errors and order number a retry works from. Clients a
// recorded run already submitted are never retried.
func retryScope(input *Input, lastRun *models.SubmissionRun, pending []models.Client) (models.SubmissionProgress, string) {
	errs, orderNumber := input.PreviousErrors, input.OrderNumber
	if lastRun != nil {
		if len(errs) == 0 {
			errs = lastRun.Errors
		}
		if orderNumber == "" {
			orderNumber = lastRun.OrderNumber
		}
	}

	previous := models.NewSubmissionProgress(len(errs))
	if lastRun == nil {
		previous.Errors = append(previous.Errors, errs...)
		return previous, orderNumber
	}

	open := make(map[string]bool, len(pending))
	for _, c := range pending {
		open[c.ID] = true
		open[c.LLCName] = true
	}
	for _, e := range errs {
		if (e.ClientID != "" && open[e.ClientID]) || (e.ClientID == "" && open[e.ClientName]) {
			previous.Errors = append(previous.Errors, e)
		}
	}
	return previous, orderNumber
}

func outsideRetry(clients []models.Client, previous models.SubmissionProgress) []string {
	retried := map[string]bool{}
	for _, c := range submission.FailedClients(clients, previous) {
		retried[c.ID] = true
	}
	out := []string{}
	for _, c := range clients {
		if !retried[c.ID] {
			out = append(out, c.ID)
		}
	}
	return out
}

// recordRun clears the draft when no client is left to submit and otherwise
// saves the run into it. It reports whether the draft was cleared.
func (h *Handler) recordRun(ctx context.Context, sessionID string, w *wizard.Wizard, result *submission.Result, earlier []string) bool {
	submitted := append([]string{}, earlier...)
	for _, item := range result.Items {
		if item.Status == submission.ItemSucceeded {
			submitted = append(submitted, item.ClientID)
		}
	}
	w.RecordRun(models.SubmissionRun{
		BatchID:            result.Batch.ID,
		OrderNumber:        result.Batch.OrderNumber,
		Status:             result.Progress.Status,
		Errors:             result.Progress.Errors,
		SubmittedClientIDs: submitted,
	})

	if len(w.PendingClients()) == 0 {
		if err := h.drafts.Clear(ctx, sessionID); err != nil {
			h.logger.Warn("Failed to clear draft after submission", map[string]interface{}{
				"sessionId": sessionID,
				"error":     err.Error(),
				"worker":    TaskType,
			})
			return false
		}
		return true
	}

	if err := h.drafts.Save(ctx, sessionID, w.State()); err != nil {
		h.logger.Error("Failed to save submission run into draft", map[string]interface{}{
			"sessionId":   sessionID,
			"orderNumber": result.Batch.OrderNumber,
			"error":       err.Error(),
			"worker":      TaskType,
		})
	}
	return false
}

func convertSubmitError(err error) *errors.StandardError {
	switch {
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewSubmissionCancelledError(err)
	case stderrors.Is(err, submission.ErrNothingToRetry), stderrors.Is(err, submission.ErrNoClients):
		return errors.NewValidationFailedError(err.Error())
	case stderrors.Is(err, highlevel.ErrNotConfigured):
		return errors.NewCRMNotConfiguredError(err.Error())
	}
	return errors.NewInternalError(err)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}

	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewValidationFailedError(fmt.Sprintf("Validation errors: %v", result.GetErrorMessages()))
	}

	input := &Input{
		SessionID:    variables["sessionId"].(string),
		ParentFirmID: variables["parentFirmId"].(string),
	}

	if firmName, ok := variables["firmName"].(string); ok {
		input.FirmName = firmName
	}
	if firmEmail, ok := variables["firmEmail"].(string); ok {
		input.FirmEmail = firmEmail
	}
	if retry, ok := variables["retryFailedOnly"].(bool); ok {
		input.RetryFailedOnly = retry
	}
	if orderNumber, ok := variables["orderNumber"].(string); ok {
		input.OrderNumber = orderNumber
	}
	if prev, ok := variables["previousErrors"].([]interface{}); ok {
		for _, item := range prev {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			ce := models.ClientError{}
			ce.ClientID, _ = m["clientId"].(string)
			ce.ClientName, _ = m["clientName"].(string)
			ce.Error, _ = m["error"].(string)
			input.PreviousErrors = append(input.PreviousErrors, ce)
		}
	}

	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"batchId":          output.BatchID,
		"orderNumber":      output.OrderNumber,
		"submissionStatus": output.Status,
		"totalClients":     output.Total,
		"completedClients": output.Completed,
		"failedClients":    output.Failed,
		"contactIds":       output.ContactIDs,
		"submissionErrors": output.Errors,
		"hasFailures":      output.Failed > 0,
		"draftCleared":     output.DraftCleared,
	}

	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(variables)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return
	}

	h.logger.Info("Bulk filing submitted", map[string]interface{}{
		"jobKey":      job.GetKey(),
		"orderNumber": output.OrderNumber,
		"total":       output.Total,
		"failed":      output.Failed,
		"worker":      TaskType,
	})
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	bpmnErr := h.errorHandler.HandleJobError(ctx, client, job, err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, bpmnErr.Code).Inc()
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", map[string]interface{}{
			"worker": TaskType,
		})
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("camunda client is required to register %s", TaskType)
	}

	jobWorker, err := h.camunda.OpenWorker(camunda.Registration{
		TaskType:      TaskType,
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.Timeout,
		Handler:       h.Handle,
	})
	if err != nil {
		return err
	}
	h.jobWorker = jobWorker

	h.logger.Info("Bulk filing submit worker registered with Camunda", map[string]interface{}{
		"taskType":      TaskType,
		"maxJobsActive": h.config.MaxJobsActive,
		"timeout":       h.config.Timeout.String(),
	})
	return nil
}

func (h *Handler) Close() {
	if h.jobWorker != nil {
		h.logger.Info("Shutting down worker gracefully", map[string]interface{}{
			"worker": TaskType,
		})
		h.jobWorker.Close()
		h.jobWorker = nil
	}
}

func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.camunda == nil {
		return fmt.Errorf("camunda client not configured")
	}
	if err := h.camunda.HealthCheck(ctx); err != nil {
		return fmt.Errorf("camunda health check failed: %w", err)
	}
	return nil
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers["submit-bulk-filing"]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.MaxJobsActive > 0 {
				cfg.MaxJobsActive = workerCfg.MaxJobsActive
			}
			if workerCfg.Timeout > 0 {
				cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
			}
		}
	}

	return cfg
}
