package submission

import (
	"encoding/json"
	"testing"
	"time"

	"nylta-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Batch Identifier Tests
// ==========================

func TestOrderNumber(t *testing.T) {
	at := time.Date(2024, 6, 1, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "NYLTA-20240602-ABCDEF12", OrderNumber("abcdef12-3456-7890", at))
	assert.Equal(t, "NYLTA-20240602-AB", OrderNumber("ab", at))
	assert.Equal(t, "NYLTA-20240602-ABCDEF12-007", SubmissionNumber("NYLTA-20240602-ABCDEF12", 7))
}

func TestBatch_Subset(t *testing.T) {
	batch := testBatch("A", "B", "C")
	batch.Clients[2].ID = ""

	sub := batch.Subset([]models.Client{batch.Clients[2], batch.Clients[1]}, time.Now())
	assert.NotEqual(t, batch.ID, sub.ID)
	assert.Equal(t, batch.OrderNumber, sub.OrderNumber)
	assert.Equal(t, batch.OrderNumber+"-003", sub.SubmissionNumber(0))
	assert.Equal(t, batch.OrderNumber+"-002", sub.SubmissionNumber(1))
	assert.Equal(t, batch.Firm, sub.Firm)
	assert.Equal(t, batch.Attestation, sub.Attestation)
}

// ==========================
// Payload Tests
// ==========================

func TestBuildContactPayload(t *testing.T) {
	batch := testBatch("Acme LLC", "Beta LLC")
	c := &batch.Clients[1]
	c.ContactEmail = "beta@example.com"
	c.CompanyCity = "Albany"
	c.EIN = "12-3456789"
	c.BeneficialOwners = []models.BeneficialOwner{
		{Person: models.Person{ID: "bo-1", FullName: "Jane Owner"}, OwnershipPercentage: "100"},
	}

	req, err := BuildContactPayload(batch, 1)
	require.NoError(t, err)

	assert.Equal(t, "Beta LLC", req.Name)
	assert.Equal(t, "Beta LLC", req.CompanyName)
	assert.Equal(t, "beta@example.com", req.Email)
	assert.Equal(t, "Albany", req.City)
	assert.Equal(t, ContactSource, req.Source)
	assert.Equal(t, []string{TagBulkFiling, "disclosure", "filing", "domestic"}, req.Tags)

	assert.Equal(t, "firm-1", req.CustomFieldValue(FieldParentFirmID))
	assert.Equal(t, batch.ID, req.CustomFieldValue(FieldBatchID))
	assert.Equal(t, batch.OrderNumber, req.CustomFieldValue(FieldOrderNumber))
	assert.Equal(t, batch.OrderNumber+"-002", req.CustomFieldValue(FieldSubmissionNumber))
	assert.Equal(t, "12-3456789", req.CustomFieldValue(FieldEIN))
	assert.Equal(t, "Pat", req.CustomFieldValue(FieldAttestationFullName))
	assert.Equal(t, "data:image/png;base64,AAAA", req.CustomFieldValue(FieldAttestationSignature))
	assert.Equal(t, "[]", req.CustomFieldValue(FieldCompanyApplicants))

	var owners []models.BeneficialOwner
	require.NoError(t, json.Unmarshal([]byte(req.CustomFieldValue(FieldBeneficialOwners)), &owners))
	require.Len(t, owners, 1)
	assert.Equal(t, "Jane Owner", owners[0].FullName)
}

func TestBuildContactPayload_OutOfRange(t *testing.T) {
	_, err := BuildContactPayload(testBatch("A"), 3)
	assert.Error(t, err)
}
