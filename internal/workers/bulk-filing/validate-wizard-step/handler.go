package validatewizardstep

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"nylta-workers/internal/common/camunda"
	"nylta-workers/internal/common/config"
	"nylta-workers/internal/common/errors"
	"nylta-workers/internal/common/logger"
	"nylta-workers/internal/common/metrics"
	"nylta-workers/internal/common/validation"
	"nylta-workers/internal/draftstore"
	"nylta-workers/internal/models"
	"nylta-workers/internal/wizard"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "bulk-filing.step.validate"

type Handler struct {
	config       *Config
	logger       logger.Logger
	camunda      *camunda.Client
	drafts       draftstore.Repository
	errorHandler *errors.ErrorHandler
	jobWorker    worker.JobWorker
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Camunda      *camunda.Client
	Drafts       draftstore.Repository
	CustomConfig *Config
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for validate-wizard-step: %w", err)
	}
	if opts.Drafts == nil {
		return nil, fmt.Errorf("draft store is required for validate-wizard-step")
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
		errorHandler: errors.NewErrorHandler(loggerInstance),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Validating wizard step", map[string]interface{}{
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

// Execute reports on one step of the session draft. An incomplete step is a
// normal outcome, not a job failure.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	state, err := h.drafts.Load(ctx, input.SessionID)
	if err != nil {
		if stderrors.Is(err, draftstore.ErrDraftNotFound) {
			return nil, errors.NewDraftNotFoundError(input.SessionID)
		}
		return nil, errors.NewDraftStoreFailedError(err)
	}

	step := input.Step
	if step == 0 {
		step = state.Step
	}
	if !wizard.ValidStep(step) {
		return nil, errors.NewValidationFailedError(fmt.Sprintf("step %d is out of range", step))
	}

	report := wizard.Validate(step, state.Clients, state.Attestation)

	return &Output{
		Step:           report.Step,
		StepName:       report.Name,
		StepComplete:   report.Complete,
		Missing:        nonNil(report.Missing),
		Warnings:       nonNil(report.Warnings),
		CompletedSteps: completedSteps(state.Step),
		ClientCount:    len(state.Clients),
	}, nil
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
		SessionID: variables["sessionId"].(string),
	}

	// JSON numbers arrive as float64
	if step, ok := variables["step"].(float64); ok {
		input.Step = int(step)
	}

	return input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"step":           output.Step,
		"stepName":       output.StepName,
		"stepComplete":   output.StepComplete,
		"missingFields":  output.Missing,
		"stepWarnings":   output.Warnings,
		"completedSteps": output.CompletedSteps,
		"clientCount":    output.ClientCount,
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

	h.logger.Info("Wizard step validated", map[string]interface{}{
		"jobKey":   job.GetKey(),
		"step":     output.Step,
		"complete": output.StepComplete,
		"missing":  len(output.Missing),
		"worker":   TaskType,
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

	h.logger.Info("Step validation worker registered with Camunda", map[string]interface{}{
		"taskType":      TaskType,
		"maxJobsActive": h.config.MaxJobsActive,
		"timeout":       h.config.Timeout.String(),
	})
	return nil
}

func (h *Handler) Close() {
	if h.jobWorker != nil {
		h.jobWorker.Close()
		h.jobWorker = nil
	}
}

func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.camunda == nil {
		return fmt.Errorf("camunda client not configured")
	}
	return h.camunda.HealthCheck(ctx)
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func completedSteps(current int) []int {
	done := wizard.CompletedSteps(current, models.StatusIdle)
	out := make([]int, 0, len(done))
	for s := range done {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers["validate-wizard-step"]; exists {
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
