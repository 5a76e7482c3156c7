package draftstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"nylta-workers/internal/common/logger"
	"nylta-workers/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func setupMiniredis(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store, err := New(client, Options{TTL: time.Hour}, logger.NewTestLogger(t))
	require.NoError(t, err)
	return store, mr
}

func sampleState(step int) models.WizardState {
	return models.WizardState{
		Clients: []models.Client{
			{
				ID:                 "client-1",
				LLCName:            "Acme LLC",
				FormationDate:      "2020-01-01",
				CountryOfFormation: models.DefaultCountryOfFormation,
				EntityType:         models.EntityTypeDomestic,
				FilingType:         models.FilingTypeDisclosure,
				ServiceType:        models.ServiceTypeFiling,
				CompanyApplicants:  []models.CompanyApplicant{},
				BeneficialOwners: []models.BeneficialOwner{
					{Person: models.Person{ID: "bo-1", FullName: "Jane Owner"}, OwnershipPercentage: "60"},
				},
			},
		},
		Step:        step,
		Attestation: nil,
	}
}

// ==========================
// Round Trip Tests
// ==========================

func TestStore_SaveLoadClear(t *testing.T) {
	store, mr := setupMiniredis(t)
	ctx := context.Background()

	state := sampleState(3)
	require.NoError(t, store.Save(ctx, "session-1", state))
	assert.True(t, mr.Exists("nylta_bulk_wizard_state:session-1"))

	loaded, err := store.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, state, *loaded)
	assert.Nil(t, loaded.Attestation)

	require.NoError(t, store.Clear(ctx, "session-1"))
	assert.False(t, mr.Exists("nylta_bulk_wizard_state:session-1"))

	_, err = store.Load(ctx, "session-1")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestStore_SaveRefreshesTTL(t *testing.T) {
	store, mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "session-1", sampleState(1)))
	mr.FastForward(50 * time.Minute)

	ttl, err := store.TTL(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, ttl)

	require.NoError(t, store.Save(ctx, "session-1", sampleState(2)))
	assert.Equal(t, time.Hour, mr.TTL("nylta_bulk_wizard_state:session-1"))
}

func TestStore_DraftExpires(t *testing.T) {
	store, mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "session-1", sampleState(1)))
	mr.FastForward(61 * time.Minute)

	_, err := store.Load(ctx, "session-1")
	assert.ErrorIs(t, err, ErrDraftNotFound)

	_, err = store.TTL(ctx, "session-1")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestStore_AttestationRoundTrip(t *testing.T) {
	store, _ := setupMiniredis(t)
	ctx := context.Background()

	state := sampleState(5)
	state.Attestation = &models.AttestationData{
		Signature: "data:image/png;base64,AAAA",
		FullName:  "Pat Preparer",
		Initials:  "PP",
		Title:     "Partner",
		Date:      "2024-06-01",
	}
	require.NoError(t, store.Save(ctx, "session-2", state))

	loaded, err := store.Load(ctx, "session-2")
	require.NoError(t, err)
	require.NotNil(t, loaded.Attestation)
	assert.Equal(t, "Pat Preparer", loaded.Attestation.FullName)
}

func TestStore_SubmissionRunRoundTrip(t *testing.T) {
	store, _ := setupMiniredis(t)
	ctx := context.Background()

	state := sampleState(6)
	state.LastRun = &models.SubmissionRun{
		BatchID:            "batch-1",
		OrderNumber:        "NYLTA-20240601-ABCDEF12",
		Status:             models.StatusComplete,
		Errors:             []models.ClientError{{ClientID: "c-2", ClientName: "Beta LLC", Error: "422"}},
		SubmittedClientIDs: []string{"c-1"},
	}
	require.NoError(t, store.Save(ctx, "session-3", state))

	loaded, err := store.Load(ctx, "session-3")
	require.NoError(t, err)
	require.NotNil(t, loaded.LastRun)
	assert.Equal(t, *state.LastRun, *loaded.LastRun)
}

// ==========================
// Validation Tests
// ==========================

func TestStore_SaveRejectsInvalidDrafts(t *testing.T) {
	tooManyOwners := sampleState(3)
	tooManyOwners.Clients[0].BeneficialOwners = make([]models.BeneficialOwner, models.MaxBeneficialOwners+1)

	badEnum := sampleState(2)
	badEnum.Clients[0].FilingType = "partial"

	badRun := sampleState(6)
	badRun.LastRun = &models.SubmissionRun{OrderNumber: "NYLTA-X", Status: models.StatusSubmitting}

	tests := []struct {
		name  string
		state models.WizardState
	}{
		{"run still submitting", badRun},
		{"step out of range", sampleState(9)},
		{"step zero", sampleState(0)},
		{"too many owners", tooManyOwners},
		{"unknown filing type", badEnum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mr := setupMiniredis(t)
			err := store.Save(context.Background(), "session-x", tt.state)
			assert.ErrorIs(t, err, ErrInvalidDraft)
			assert.False(t, mr.Exists("nylta_bulk_wizard_state:session-x"))
		})
	}
}

func TestStore_SaveNormalizesNilLists(t *testing.T) {
	store, _ := setupMiniredis(t)
	ctx := context.Background()

	state := sampleState(2)
	state.Clients[0].CompanyApplicants = nil
	state.Clients[0].BeneficialOwners = nil
	require.NoError(t, store.Save(ctx, "session-3", state))

	loaded, err := store.Load(ctx, "session-3")
	require.NoError(t, err)
	assert.NotNil(t, loaded.Clients[0].BeneficialOwners)
	assert.Empty(t, loaded.Clients[0].BeneficialOwners)
}

func TestStore_RequiresSessionID(t *testing.T) {
	store, _ := setupMiniredis(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Save(ctx, "", sampleState(1)), ErrMissingID)
	_, err := store.Load(ctx, "")
	assert.ErrorIs(t, err, ErrMissingID)
	assert.ErrorIs(t, store.Clear(ctx, ""), ErrMissingID)
}

// ==========================
// Redis Failure Tests
// ==========================

func TestStore_RedisErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store, err := New(db, Options{KeyPrefix: "drafts:", TTL: time.Minute}, logger.NewNoOpLogger())
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, "drafts:s1", store.Key("s1"))

	mock.ExpectGet("drafts:s1").SetErr(errors.New("connection refused"))
	_, err = store.Load(ctx, "s1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDraftNotFound))
	assert.Contains(t, err.Error(), "connection refused")

	data, err := encode(sampleState(1))
	require.NoError(t, err)
	mock.ExpectSet("drafts:s1", data, time.Minute).SetErr(errors.New("READONLY"))
	err = store.Save(ctx, "s1", sampleState(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")

	mock.ExpectGet("drafts:s2").RedisNil()
	_, err = store.Load(ctx, "s2")
	assert.ErrorIs(t, err, ErrDraftNotFound)

	mock.ExpectGet("drafts:s3").SetVal("{not json")
	_, err = store.Load(ctx, "s3")
	assert.ErrorIs(t, err, ErrInvalidDraft)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_Defaults(t *testing.T) {
	db, _ := redismock.NewClientMock()
	store, err := New(db, Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "nylta_bulk_wizard_state:abc", store.Key("abc"))
	assert.Equal(t, DefaultTTL, store.ttl)

	_, err = New(nil, Options{}, nil)
	assert.Error(t, err)
}
