// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nylta-workers/internal/common/highlevel"
	"nylta-workers/internal/common/logger"
	"nylta-workers/internal/draftstore"
	"nylta-workers/internal/models"
	"nylta-workers/internal/submission"
	"nylta-workers/internal/wizard"

	pcc "nylta-workers/internal/workers/bulk-filing/parse-client-csv"
	sbf "nylta-workers/internal/workers/bulk-filing/submit-bulk-filing"
	vws "nylta-workers/internal/workers/bulk-filing/validate-wizard-step"
)

const sessionID = "e2e-session"

const clientCSV = "LLC Legal Name,Formation Date (YYYY-MM-DD),Contact Email,Entity Type,Filing Type,Exemption Category,Exemption Explanation\n" +
	"Acme Holdings LLC,2019-03-14,acme@example.com,Domestic,Disclosure,,\n" +
	"Birch Ventures LLC,2021-07-01,birch@example.com,Foreign,Disclosure,,\n" +
	"Cedar Trust LLC,2015-11-30,cedar@example.com,Domestic,Exemption,Large operating company,Over 20 US employees\n"

// highLevelStub serves the contacts endpoints the driver calls.
type highLevelStub struct {
	mu       sync.Mutex
	reject   map[string]bool
	created  []string
	notes    []string
	tagCalls int
}

func (s *highLevelStub) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/contacts/", s.createContact).Methods(http.MethodPost)
	r.HandleFunc("/contacts/{id}/notes", s.addNote).Methods(http.MethodPost)
	r.HandleFunc("/contacts/{id}/tags", s.addTags).Methods(http.MethodPost)
	return r
}

func (s *highLevelStub) createContact(w http.ResponseWriter, r *http.Request) {
	var req highlevel.ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, req.Name)
	if s.reject[req.Name] {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "duplicate contact"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"contact": map[string]string{"id": "hl-" + req.Name},
	})
}

func (s *highLevelStub) addNote(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	s.notes = append(s.notes, body["body"])
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]interface{}{"note": map[string]string{"id": "note-1"}})
}

func (s *highLevelStub) addTags(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.tagCalls++
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"tags": []string{}})
}

func (s *highLevelStub) setReject(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = map[string]bool{}
	for _, n := range names {
		s.reject[n] = true
	}
	s.created = nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type pipeline struct {
	store    *draftstore.Store
	crm      *highLevelStub
	sqlMock  sqlmock.Sqlmock
	parse    *pcc.Handler
	validate *vws.Handler
	submit   *sbf.Handler
}

func setupPipeline(t *testing.T) *pipeline {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logger.NewTestLogger(t)

	store, err := draftstore.New(rdb, draftstore.Options{TTL: time.Hour}, log)
	require.NoError(t, err)

	stub := &highLevelStub{reject: map[string]bool{}}
	hlServer := httptest.NewServer(stub.router())
	t.Cleanup(hlServer.Close)

	crm, err := highlevel.NewClient(highlevel.Config{
		BaseURL:    hlServer.URL,
		APIKey:     "test-key",
		LocationID: "loc-e2e",
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)

	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	driver, err := submission.NewDriver(crm, submission.Options{
		Concurrency: 2,
		ItemTimeout: 5 * time.Second,
	}, log, submission.NewAuditSink(db))
	require.NoError(t, err)

	parse, err := pcc.NewHandler(pcc.HandlerOptions{
		CustomConfig: &pcc.Config{Enabled: true, MaxJobsActive: 1, Timeout: time.Minute},
		Drafts:       store,
		Logger:       log,
	})
	require.NoError(t, err)

	validate, err := vws.NewHandler(vws.HandlerOptions{
		CustomConfig: &vws.Config{Enabled: true, MaxJobsActive: 1, Timeout: time.Minute},
		Drafts:       store,
		Logger:       log,
	})
	require.NoError(t, err)

	submit, err := sbf.NewHandler(sbf.HandlerOptions{
		CustomConfig: &sbf.Config{Enabled: true, MaxJobsActive: 1, Timeout: time.Minute},
		Drafts:       store,
		Submitter:    driver,
		Logger:       log,
	})
	require.NoError(t, err)

	return &pipeline{
		store:    store,
		crm:      stub,
		sqlMock:  sqlMock,
		parse:    parse,
		validate: validate,
		submit:   submit,
	}
}

func (p *pipeline) expectAudit(items int) {
	p.sqlMock.ExpectBegin()
	p.sqlMock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(1, 1))
	for i := 0; i < items; i++ {
		p.sqlMock.ExpectExec(`INSERT INTO bulk_filing_items`).WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
	}
	p.sqlMock.ExpectCommit()
}

func signature(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for x := 2; x < 12; x++ {
		img.Set(x, 4, color.RGBA{A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// ==========================
// Full bulk filing flow
// ==========================

func TestBulkFilingPipeline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	p := setupPipeline(t)

	// Upload
	parsed, err := p.parse.Execute(ctx, &pcc.Input{SessionID: sessionID, CSVText: clientCSV})
	require.NoError(t, err)
	assert.Equal(t, 3, parsed.ClientCount)
	assert.Equal(t, 3, parsed.TotalClients)
	require.Len(t, parsed.ClientIDs, 3)

	// Company details hold from the CSV alone; the foreign client only warns.
	details, err := p.validate.Execute(ctx, &vws.Input{SessionID: sessionID, Step: wizard.StepCompanyDetails})
	require.NoError(t, err)
	assert.True(t, details.StepComplete)
	require.NotEmpty(t, details.Warnings)
	assert.Contains(t, details.Warnings[0], "clients[1].dateAuthorityFiledNY")

	// Owners are required for the two disclosure clients.
	owners, err := p.validate.Execute(ctx, &vws.Input{SessionID: sessionID, Step: wizard.StepApplicantsOwners})
	require.NoError(t, err)
	assert.False(t, owners.StepComplete)
	assert.Equal(t, []string{"clients[0].beneficialOwners", "clients[1].beneficialOwners"}, owners.Missing)

	exemptions, err := p.validate.Execute(ctx, &vws.Input{SessionID: sessionID, Step: wizard.StepExemptions})
	require.NoError(t, err)
	assert.True(t, exemptions.StepComplete)

	// Complete the draft the way the wizard UI does.
	state, err := p.store.Load(ctx, sessionID)
	require.NoError(t, err)
	w := wizard.FromState(*state)
	for _, id := range parsed.ClientIDs[:2] {
		_, err := w.AddBeneficialOwner(id, models.BeneficialOwner{
			Person:              models.Person{FullName: "Jordan Owner"},
			OwnershipPercentage: "100",
		})
		require.NoError(t, err)
	}
	w.SetAttestation(&models.AttestationData{
		Signature: signature(t),
		FullName:  "Pat Preparer",
		Initials:  "PP",
		Title:     "Managing Partner",
		Date:      "2024-06-01",
	})
	for w.Step() < wizard.LastStep {
		require.NoError(t, w.Next(), "advance from step %d", w.Step())
	}
	require.NoError(t, p.store.Save(ctx, sessionID, w.State()))

	review, err := p.validate.Execute(ctx, &vws.Input{SessionID: sessionID})
	require.NoError(t, err)
	assert.Equal(t, wizard.StepReview, review.Step)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, review.CompletedSteps)

	// First submission: the CRM rejects one client.
	p.crm.setReject("Birch Ventures LLC")
	p.expectAudit(3)

	first, err := p.submit.Execute(ctx, &sbf.Input{
		SessionID:    sessionID,
		ParentFirmID: "firm-e2e",
		FirmName:     "Preparer LLP",
		FirmEmail:    "ops@preparer.test",
	})
	require.NoError(t, err)
	assert.Equal(t, "complete", first.Status)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 3, first.Completed)
	assert.Equal(t, 1, first.Failed)
	assert.Equal(t, []string{"hl-Acme Holdings LLC", "hl-Cedar Trust LLC"}, first.ContactIDs)
	require.Len(t, first.Errors, 1)
	assert.Equal(t, "Birch Ventures LLC", first.Errors[0].ClientName)
	assert.False(t, first.DraftCleared)

	kept, err := p.store.Load(ctx, sessionID)
	require.NoError(t, err, "draft must survive a partial failure")
	require.NotNil(t, kept.LastRun)
	assert.Equal(t, first.OrderNumber, kept.LastRun.OrderNumber)
	assert.Len(t, kept.LastRun.SubmittedClientIDs, 2)

	// Retry sends only the failed client under the same order number.
	p.crm.setReject()
	p.expectAudit(1)

	retry, err := p.submit.Execute(ctx, &sbf.Input{
		SessionID:       sessionID,
		ParentFirmID:    "firm-e2e",
		FirmName:        "Preparer LLP",
		RetryFailedOnly: true,
		OrderNumber:     first.OrderNumber,
		PreviousErrors:  first.Errors,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Birch Ventures LLC"}, p.crm.created)
	assert.Equal(t, first.OrderNumber, retry.OrderNumber)
	assert.Equal(t, 1, retry.Total)
	assert.Equal(t, 0, retry.Failed)
	require.Len(t, retry.Items, 1)
	assert.Equal(t, first.OrderNumber+"-002", retry.Items[0].SubmissionNumber)
	assert.True(t, retry.DraftCleared)

	_, err = p.store.Load(ctx, sessionID)
	assert.ErrorIs(t, err, draftstore.ErrDraftNotFound)

	// Each run confirmed the order on the firm contact.
	assert.Len(t, p.crm.notes, 2)
	assert.Equal(t, 2, p.crm.tagCalls)
	assert.Contains(t, p.crm.notes[0], first.OrderNumber)

	assert.NoError(t, p.sqlMock.ExpectationsWereMet())
}

func TestBulkFilingPipeline_RejectsUnattestedDraft(t *testing.T) {
	ctx := context.Background()
	p := setupPipeline(t)

	_, err := p.parse.Execute(ctx, &pcc.Input{SessionID: sessionID, CSVText: clientCSV})
	require.NoError(t, err)

	_, err = p.submit.Execute(ctx, &sbf.Input{SessionID: sessionID, ParentFirmID: "firm-e2e"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STEP_INCOMPLETE")
	assert.Empty(t, p.crm.created)
	assert.NoError(t, p.sqlMock.ExpectationsWereMet())
}
