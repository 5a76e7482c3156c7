package parseclientcsv

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"nylta-workers/internal/common/config"
	"nylta-workers/internal/common/errors"
	"nylta-workers/internal/common/logger"
	"nylta-workers/internal/draftstore"
	"nylta-workers/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Draft Repository
// ==========================

type MockDrafts struct {
	mock.Mock
}

func (m *MockDrafts) Save(ctx context.Context, sessionID string, state models.WizardState) error {
	args := m.Called(ctx, sessionID, state)
	return args.Error(0)
}

func (m *MockDrafts) Load(ctx context.Context, sessionID string) (*models.WizardState, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WizardState), args.Error(1)
}

func (m *MockDrafts) Clear(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// ==========================
// Test Helpers
// ==========================

const sampleCSV = "LLC Legal Name,Formation Date (YYYY-MM-DD),Contact Email\n" +
	"Acme LLC,2020-01-01,a@acme.test\n" +
	"Beta LLC,2021-02-02,b@beta.test\n"

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "bulk-filing-process",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_ParseClientCSV",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

func createValidConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
	}
}

func setupStore(t *testing.T) *draftstore.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store, err := draftstore.New(client, draftstore.Options{}, logger.NewNoOpLogger())
	require.NoError(t, err)
	return store
}

func newTestHandler(t *testing.T, drafts draftstore.Repository) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: createValidConfig(),
		Drafts:       drafts,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid configuration",
			opts:    HandlerOptions{CustomConfig: createValidConfig(), Drafts: &MockDrafts{}},
			wantErr: false,
		},
		{
			name:    "missing draft store",
			opts:    HandlerOptions{CustomConfig: createValidConfig()},
			wantErr: true,
			errMsg:  "draft store is required",
		},
		{
			name: "invalid timeout",
			opts: HandlerOptions{
				CustomConfig: &Config{Enabled: true, MaxJobsActive: 5, Timeout: -time.Second},
				Drafts:       &MockDrafts{},
			},
			wantErr: true,
			errMsg:  "timeout must be positive",
		},
		{
			name: "invalid max jobs active",
			opts: HandlerOptions{
				CustomConfig: &Config{Enabled: true, Timeout: time.Second},
				Drafts:       &MockDrafts{},
			},
			wantErr: true,
			errMsg:  "max_jobs_active must be positive",
		},
		{
			name: "app config overrides defaults",
			opts: HandlerOptions{
				AppConfig: &config.Config{Workers: map[string]config.WorkerConfig{
					"parse-client-csv": {Enabled: true, MaxJobsActive: 2, Timeout: 5000},
				}},
				Drafts: &MockDrafts{},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := NewHandler(tt.opts)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, handler)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, handler)
				assert.NotNil(t, handler.logger)
				assert.Equal(t, TaskType, handler.GetTaskType())
			}
		})
	}
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	cfg := createConfigFromAppConfig(&config.Config{Workers: map[string]config.WorkerConfig{
		"parse-client-csv": {Enabled: false, MaxJobsActive: 2, Timeout: 5000},
	}}, nil)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 2, cfg.MaxJobsActive)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	assert.Equal(t, DefaultConfig(), createConfigFromAppConfig(nil, nil))
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	handler := newTestHandler(t, &MockDrafts{})

	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
		errCode   errors.ErrorCode
	}{
		{
			name:      "valid input",
			variables: map[string]interface{}{"sessionId": "s-1", "csvText": sampleCSV, "otherProcessVar": 1},
		},
		{
			name:      "missing csv text",
			variables: map[string]interface{}{"sessionId": "s-1"},
			wantErr:   true,
			errCode:   errors.ErrCodeValidationFailed,
		},
		{
			name:      "empty session id",
			variables: map[string]interface{}{"sessionId": "", "csvText": sampleCSV},
			wantErr:   true,
			errCode:   errors.ErrCodeValidationFailed,
		},
		{
			name:      "csv text is not a string",
			variables: map[string]interface{}{"sessionId": "s-1", "csvText": 42},
			wantErr:   true,
			errCode:   errors.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := handler.parseInput(createMockJob(1, tt.variables))
			if tt.wantErr {
				require.Error(t, err)
				stdErr, ok := errors.AsStandardError(err)
				require.True(t, ok)
				assert.Equal(t, tt.errCode, stdErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "s-1", input.SessionID)
			assert.Equal(t, sampleCSV, input.CSVText)
		})
	}
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_NewSession(t *testing.T) {
	store := setupStore(t)
	handler := newTestHandler(t, store)
	ctx := context.Background()

	output, err := handler.Execute(ctx, &Input{SessionID: "s-1", CSVText: sampleCSV})
	require.NoError(t, err)
	assert.Equal(t, 2, output.ClientCount)
	assert.Equal(t, 2, output.TotalClients)
	assert.Len(t, output.ClientIDs, 2)
	assert.Equal(t, 1, output.Step)

	state, err := store.Load(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, state.Clients, 2)
	assert.Equal(t, "Acme LLC", state.Clients[0].LLCName)
	assert.Equal(t, models.FilingTypeDisclosure, state.Clients[1].FilingType)
}

func TestHandler_Execute_AppendsToDraft(t *testing.T) {
	store := setupStore(t)
	handler := newTestHandler(t, store)
	ctx := context.Background()

	_, err := handler.Execute(ctx, &Input{SessionID: "s-2", CSVText: sampleCSV})
	require.NoError(t, err)

	output, err := handler.Execute(ctx, &Input{SessionID: "s-2", CSVText: "LLC Legal Name\nGamma LLC\n"})
	require.NoError(t, err)
	assert.Equal(t, 1, output.ClientCount)
	assert.Equal(t, 3, output.TotalClients)
	require.Len(t, output.ClientIDs, 1)

	state, err := store.Load(ctx, "s-2")
	require.NoError(t, err)
	assert.Equal(t, output.ClientIDs[0], state.Clients[2].ID)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   *Input
		setup   func(m *MockDrafts)
		errCode errors.ErrorCode
	}{
		{
			name:    "header only",
			input:   &Input{SessionID: "s", CSVText: "LLC Legal Name\n"},
			setup:   func(m *MockDrafts) {},
			errCode: errors.ErrCodeCSVParseFailed,
		},
		{
			name:    "missing name column",
			input:   &Input{SessionID: "s", CSVText: "EIN\n12\n"},
			setup:   func(m *MockDrafts) {},
			errCode: errors.ErrCodeCSVParseFailed,
		},
		{
			name:  "load fails",
			input: &Input{SessionID: "s", CSVText: sampleCSV},
			setup: func(m *MockDrafts) {
				m.On("Load", mock.Anything, "s").Return(nil, stderrors.New("connection refused"))
			},
			errCode: errors.ErrCodeDraftStoreFailed,
		},
		{
			name:  "save fails",
			input: &Input{SessionID: "s", CSVText: sampleCSV},
			setup: func(m *MockDrafts) {
				m.On("Load", mock.Anything, "s").Return(nil, draftstore.ErrDraftNotFound)
				m.On("Save", mock.Anything, "s", mock.Anything).Return(stderrors.New("READONLY"))
			},
			errCode: errors.ErrCodeDraftStoreFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts := &MockDrafts{}
			tt.setup(drafts)
			handler := newTestHandler(t, drafts)

			output, err := handler.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Nil(t, output)

			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.errCode, stdErr.Code)
			drafts.AssertExpectations(t)
		})
	}
}

// ==========================
// Registration Tests
// ==========================

func TestHandler_RegisterDisabled(t *testing.T) {
	cfg := createValidConfig()
	cfg.Enabled = false
	handler, err := NewHandler(HandlerOptions{CustomConfig: cfg, Drafts: &MockDrafts{}, Logger: logger.NewNoOpLogger()})
	require.NoError(t, err)

	assert.NoError(t, handler.Register())
	assert.False(t, handler.IsEnabled())
	handler.Close()
}

func TestHandler_RegisterWithoutCamunda(t *testing.T) {
	handler := newTestHandler(t, &MockDrafts{})
	assert.Error(t, handler.Register())
	assert.Error(t, handler.HealthCheck(context.Background()))
}
