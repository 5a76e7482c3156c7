package submission

import (
	"encoding/json"
	"fmt"

	"nylta-workers/internal/common/highlevel"
	"nylta-workers/internal/models"
)

const (
	ContactSource = "NYLTA Bulk Filing"
	TagBulkFiling = "nylta-bulk-filing"
)

// Custom field keys of a filing contact.
const (
	FieldParentFirmID         = "parentFirmId"
	FieldBatchID              = "batchId"
	FieldOrderNumber          = "orderNumber"
	FieldSubmissionNumber     = "submissionNumber"
	FieldLLCName              = "llcName"
	FieldFictitiousName       = "fictitiousName"
	FieldNYDOSID              = "nydosId"
	FieldEIN                  = "ein"
	FieldFormationDate        = "formationDate"
	FieldCountryOfFormation   = "countryOfFormation"
	FieldEntityType           = "entityType"
	FieldDateAuthorityFiledNY = "dateAuthorityFiledNY"
	FieldFilingType           = "filingType"
	FieldServiceType          = "serviceType"
	FieldExemptionCategory    = "exemptionCategory"
	FieldExemptionExplanation = "exemptionExplanation"
	FieldCompanyApplicants    = "companyApplicants"
	FieldBeneficialOwners     = "beneficialOwners"
	FieldAttestationSignature = "attestationSignature"
	FieldAttestationFullName  = "attestationFullName"
	FieldAttestationInitials  = "attestationInitials"
	FieldAttestationTitle     = "attestationTitle"
	FieldAttestationDate      = "attestationDate"
)

// BuildContactPayload flattens client i of the batch into a contact create
// request decorated with the batch identifiers and the shared attestation.
func BuildContactPayload(batch *Batch, i int) (*highlevel.ContactRequest, error) {
	if i < 0 || i >= len(batch.Clients) {
		return nil, fmt.Errorf("client index %d out of range", i)
	}
	c := batch.Clients[i]
	a := batch.Attestation

	applicants, err := json.Marshal(nonNilApplicants(c.CompanyApplicants))
	if err != nil {
		return nil, fmt.Errorf("marshal company applicants: %w", err)
	}
	owners, err := json.Marshal(nonNilOwners(c.BeneficialOwners))
	if err != nil {
		return nil, fmt.Errorf("marshal beneficial owners: %w", err)
	}

	fields := []highlevel.CustomField{
		{Key: FieldParentFirmID, FieldValue: batch.Firm.ParentFirmID},
		{Key: FieldBatchID, FieldValue: batch.ID},
		{Key: FieldOrderNumber, FieldValue: batch.OrderNumber},
		{Key: FieldSubmissionNumber, FieldValue: batch.SubmissionNumber(i)},
		{Key: FieldLLCName, FieldValue: c.LLCName},
		{Key: FieldFictitiousName, FieldValue: c.FictitiousName},
		{Key: FieldNYDOSID, FieldValue: c.NYDOSID},
		{Key: FieldEIN, FieldValue: c.EIN},
		{Key: FieldFormationDate, FieldValue: c.FormationDate},
		{Key: FieldCountryOfFormation, FieldValue: c.CountryOfFormation},
		{Key: FieldEntityType, FieldValue: c.EntityType},
		{Key: FieldDateAuthorityFiledNY, FieldValue: c.DateAuthorityFiledNY},
		{Key: FieldFilingType, FieldValue: c.FilingType},
		{Key: FieldServiceType, FieldValue: c.ServiceType},
		{Key: FieldExemptionCategory, FieldValue: c.ExemptionCategory},
		{Key: FieldExemptionExplanation, FieldValue: c.ExemptionExplanation},
		{Key: FieldCompanyApplicants, FieldValue: string(applicants)},
		{Key: FieldBeneficialOwners, FieldValue: string(owners)},
		{Key: FieldAttestationSignature, FieldValue: a.Signature},
		{Key: FieldAttestationFullName, FieldValue: a.FullName},
		{Key: FieldAttestationInitials, FieldValue: a.Initials},
		{Key: FieldAttestationTitle, FieldValue: a.Title},
		{Key: FieldAttestationDate, FieldValue: a.Date},
	}

	return &highlevel.ContactRequest{
		Name:         c.LLCName,
		CompanyName:  c.LLCName,
		Email:        c.ContactEmail,
		Address1:     c.CompanyStreetAddress,
		City:         c.CompanyCity,
		State:        c.CompanyState,
		PostalCode:   c.CompanyZipCode,
		Country:      c.CompanyCountry,
		Source:       ContactSource,
		Tags:         ContactTags(c),
		CustomFields: fields,
	}, nil
}

func ContactTags(c models.Client) []string {
	tags := []string{TagBulkFiling}
	for _, t := range []string{c.FilingType, c.ServiceType, c.EntityType} {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func nonNilApplicants(in []models.CompanyApplicant) []models.CompanyApplicant {
	if in == nil {
		return []models.CompanyApplicant{}
	}
	return in
}

func nonNilOwners(in []models.BeneficialOwner) []models.BeneficialOwner {
	if in == nil {
		return []models.BeneficialOwner{}
	}
	return in
}
