// Package models holds the record shapes shared by the wizard, the draft store,
// the submission driver and the job workers.
package models

const (
	EntityTypeDomestic = "domestic"
	EntityTypeForeign  = "foreign"

	FilingTypeDisclosure = "disclosure"
	FilingTypeExemption  = "exemption"

	ServiceTypeMonitoring = "monitoring"
	ServiceTypeFiling     = "filing"

	DefaultCountryOfFormation = "United States"

	MaxCompanyApplicants = 3
	MaxBeneficialOwners  = 9
)

// Client is one LLC filing in a bulk batch.
type Client struct {
	ID                   string `json:"id"`
	LLCName              string `json:"llcName"`
	FictitiousName       string `json:"fictitiousName,omitempty"`
	NYDOSID              string `json:"nydosId,omitempty"`
	EIN                  string `json:"ein,omitempty"`
	FormationDate        string `json:"formationDate,omitempty"`
	CountryOfFormation   string `json:"countryOfFormation,omitempty"`
	EntityType           string `json:"entityType"`
	DateAuthorityFiledNY string `json:"dateAuthorityFiledNY,omitempty"`
	ContactEmail         string `json:"contactEmail,omitempty"`
	FilingType           string `json:"filingType"`
	ServiceType          string `json:"serviceType"`

	CompanyStreetAddress string `json:"companyStreetAddress,omitempty"`
	CompanyCity          string `json:"companyCity,omitempty"`
	CompanyState         string `json:"companyState,omitempty"`
	CompanyZipCode       string `json:"companyZipCode,omitempty"`
	CompanyCountry       string `json:"companyCountry,omitempty"`

	CompanyApplicants []CompanyApplicant `json:"companyApplicants"`
	BeneficialOwners  []BeneficialOwner  `json:"beneficialOwners"`

	ExemptionCategory    string `json:"exemptionCategory,omitempty"`
	ExemptionExplanation string `json:"exemptionExplanation,omitempty"`
}

func (c *Client) IsExemption() bool {
	return c.FilingType == FilingTypeExemption
}

func (c *Client) IsForeign() bool {
	return c.EntityType == EntityTypeForeign
}

// Person carries the identity, address and government ID fields common to
// company applicants and beneficial owners.
type Person struct {
	ID                    string `json:"id"`
	FullName              string `json:"fullName"`
	DateOfBirth           string `json:"dateOfBirth,omitempty"`
	StreetAddress         string `json:"streetAddress,omitempty"`
	City                  string `json:"city,omitempty"`
	State                 string `json:"state,omitempty"`
	ZipCode               string `json:"zipCode,omitempty"`
	Country               string `json:"country,omitempty"`
	IDType                string `json:"idType,omitempty"`
	IDNumber              string `json:"idNumber,omitempty"`
	IDIssuingJurisdiction string `json:"idIssuingJurisdiction,omitempty"`
}

type CompanyApplicant struct {
	Person
}

type BeneficialOwner struct {
	Person
	OwnershipPercentage string `json:"ownershipPercentage,omitempty"`
	Position            string `json:"position,omitempty"`
}

// AttestationData is shared by every client of a batch.
type AttestationData struct {
	Signature string `json:"signature"`
	FullName  string `json:"fullName"`
	Initials  string `json:"initials"`
	Title     string `json:"title"`
	Date      string `json:"date"`
}

// WizardState is the persisted draft of a bulk filing session.
type WizardState struct {
	Clients     []Client         `json:"clients"`
	Step        int              `json:"step"`
	Attestation *AttestationData `json:"attestation"`
	LastRun     *SubmissionRun   `json:"lastRun,omitempty"`
}
