// Package draftstore persists wizard drafts in Redis under a per-session key
// with a sliding TTL.
package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nylta-workers/internal/common/logger"
	"nylta-workers/internal/common/metrics"
	"nylta-workers/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/xeipuuv/gojsonschema"
)

const (
	DefaultKeyPrefix = "nylta_bulk_wizard_state"
	DefaultTTL       = 24 * time.Hour
)

var (
	ErrDraftNotFound = errors.New("draft not found")
	ErrInvalidDraft  = errors.New("draft failed schema validation")
	ErrMissingID     = errors.New("session id is required")
)

type Options struct {
	KeyPrefix string
	TTL       time.Duration
}

// Repository is the draft access used by the workers and the API.
type Repository interface {
	Save(ctx context.Context, sessionID string, state models.WizardState) error
	Load(ctx context.Context, sessionID string) (*models.WizardState, error)
	Clear(ctx context.Context, sessionID string) error
}

type Store struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	schema *gojsonschema.Schema
	logger logger.Logger
}

func New(client redis.Cmdable, opts Options, log logger.Logger) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(wizardStateSchema))
	if err != nil {
		return nil, fmt.Errorf("compile wizard state schema: %w", err)
	}

	return &Store{
		client: client,
		prefix: strings.TrimSuffix(opts.KeyPrefix, ":"),
		ttl:    opts.TTL,
		schema: schema,
		logger: log,
	}, nil
}

// Key returns the Redis key of a session draft.
func (s *Store) Key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Save validates and writes the draft, refreshing its TTL.
func (s *Store) Save(ctx context.Context, sessionID string, state models.WizardState) error {
	if sessionID == "" {
		return ErrMissingID
	}

	data, err := encode(state)
	if err != nil {
		return err
	}
	if err := s.validate(data); err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.Key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft %s: %w", sessionID, err)
	}

	metrics.WizardDraftsSaved.Inc()
	s.logger.Debug("wizard draft saved", map[string]interface{}{
		"sessionId": sessionID,
		"step":      state.Step,
		"clients":   len(state.Clients),
	})
	return nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (*models.WizardState, error) {
	if sessionID == "" {
		return nil, ErrMissingID
	}

	data, err := s.client.Get(ctx, s.Key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, sessionID)
		}
		return nil, fmt.Errorf("load draft %s: %w", sessionID, err)
	}

	var state models.WizardState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	if state.Clients == nil {
		state.Clients = []models.Client{}
	}
	return &state, nil
}

// Clear removes the draft. Clearing a missing draft is not an error.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrMissingID
	}
	if err := s.client.Del(ctx, s.Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear draft %s: %w", sessionID, err)
	}
	s.logger.Info("wizard draft cleared", map[string]interface{}{"sessionId": sessionID})
	return nil
}

// TTL reports the remaining lifetime of a draft.
func (s *Store) TTL(ctx context.Context, sessionID string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, s.Key(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("draft ttl %s: %w", sessionID, err)
	}
	if ttl < 0 {
		return 0, fmt.Errorf("%w: %s", ErrDraftNotFound, sessionID)
	}
	return ttl, nil
}

func (s *Store) validate(data []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrInvalidDraft, strings.Join(errs, "; "))
	}
	return nil
}

// encode marshals the draft with nil lists written as [].
func encode(state models.WizardState) ([]byte, error) {
	out := models.WizardState{
		Clients:     make([]models.Client, len(state.Clients)),
		Step:        state.Step,
		Attestation: state.Attestation,
		LastRun:     state.LastRun,
	}
	for i, c := range state.Clients {
		if c.CompanyApplicants == nil {
			c.CompanyApplicants = []models.CompanyApplicant{}
		}
		if c.BeneficialOwners == nil {
			c.BeneficialOwners = []models.BeneficialOwner{}
		}
		out.Clients[i] = c
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal draft: %w", err)
	}
	return data, nil
}
