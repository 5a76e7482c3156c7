package parseclientcsv

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"nylta-workers/internal/common/camunda"
	"nylta-workers/internal/common/config"
	"nylta-workers/internal/common/errors"
	"nylta-workers/internal/common/logger"
	"nylta-workers/internal/common/metrics"
	"nylta-workers/internal/common/validation"
	"nylta-workers/internal/draftstore"
	"nylta-workers/internal/wizard"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "bulk-filing.csv.parse"

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
		return nil, fmt.Errorf("invalid configuration for parse-client-csv: %w", err)
	}
	if opts.Drafts == nil {
		return nil, fmt.Errorf("draft store is required for parse-client-csv")
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

	h.logger.Info("Processing client CSV upload", map[string]interface{}{
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

// Execute parses the CSV and appends the clients to the session draft. A
// missing draft is started at step 1.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	clients, err := wizard.ParseUpload(input.CSVText)
	if err != nil {
		return nil, errors.NewCSVParseFailedError(err)
	}

	w := wizard.New()
	state, err := h.drafts.Load(ctx, input.SessionID)
	switch {
	case err == nil:
		w = wizard.FromState(*state)
	case stderrors.Is(err, draftstore.ErrDraftNotFound):
		h.logger.Debug("No draft for session, starting a new one", map[string]interface{}{
			"sessionId": input.SessionID,
			"worker":    TaskType,
		})
	default:
		return nil, errors.NewDraftStoreFailedError(err)
	}

	before := len(w.Clients())
	if err := w.AddClients(clients); err != nil {
		return nil, errors.NewValidationFailedError(err.Error())
	}

	if err := h.drafts.Save(ctx, input.SessionID, w.State()); err != nil {
		if stderrors.Is(err, draftstore.ErrInvalidDraft) {
			return nil, errors.NewValidationFailedError(err.Error())
		}
		return nil, errors.NewDraftStoreFailedError(err)
	}

	all := w.Clients()
	ids := make([]string, 0, len(all)-before)
	for _, c := range all[before:] {
		ids = append(ids, c.ID)
	}

	return &Output{
		ClientCount:  len(clients),
		TotalClients: len(all),
		ClientIDs:    ids,
		Step:         w.Step(),
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

	return &Input{
		SessionID: variables["sessionId"].(string),
		CSVText:   variables["csvText"].(string),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"clientCount":  output.ClientCount,
		"totalClients": output.TotalClients,
		"clientIds":    output.ClientIDs,
		"wizardStep":   output.Step,
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

	h.logger.Info("Client CSV imported", map[string]interface{}{
		"jobKey":       job.GetKey(),
		"clientCount":  output.ClientCount,
		"totalClients": output.TotalClients,
		"worker":       TaskType,
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

	h.logger.Info("CSV parse worker registered with Camunda", map[string]interface{}{
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
		if workerCfg, exists := appConfig.Workers["parse-client-csv"]; exists {
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
