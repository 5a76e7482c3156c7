package wizard

import (
	"fmt"
	"strings"

	"nylta-workers/internal/models"
)

const (
	StepUpload = iota + 1
	StepCompanyDetails
	StepApplicantsOwners
	StepExemptions
	StepAttestation
	StepReview

	FirstStep = StepUpload
	LastStep  = StepReview
)

var stepNames = map[int]string{
	StepUpload:           "Upload",
	StepCompanyDetails:   "Company details",
	StepApplicantsOwners: "Applicants & owners",
	StepExemptions:       "Exemptions",
	StepAttestation:      "Attestation",
	StepReview:           "Review & submit",
}

func StepName(step int) string {
	if name, ok := stepNames[step]; ok {
		return name
	}
	return fmt.Sprintf("Step %d", step)
}

func ValidStep(step int) bool {
	return step >= FirstStep && step <= LastStep
}

// StepReport is the outcome of a step's completion predicate. Missing holds
// field paths such as clients[0].llcName; warnings never block the step.
type StepReport struct {
	Step     int      `json:"step"`
	Name     string   `json:"name"`
	Complete bool     `json:"complete"`
	Missing  []string `json:"missing"`
	Warnings []string `json:"warnings"`
}

// Validate evaluates the completion predicate of step.
func Validate(step int, clients []models.Client, attestation *models.AttestationData) StepReport {
	r := StepReport{
		Step:     step,
		Name:     StepName(step),
		Missing:  []string{},
		Warnings: []string{},
	}

	switch step {
	case StepUpload:
		if len(clients) == 0 {
			r.Missing = append(r.Missing, "clients")
		}
	case StepCompanyDetails:
		validateCompanyDetails(&r, clients)
	case StepApplicantsOwners:
		validateOwners(&r, clients)
	case StepExemptions:
		validateExemptions(&r, clients)
	case StepAttestation:
		validateAttestation(&r, attestation)
	case StepReview:
	default:
		r.Missing = append(r.Missing, "step")
	}

	r.Complete = len(r.Missing) == 0
	return r
}

// IsStepComplete reports whether step's predicate holds.
func IsStepComplete(step int, clients []models.Client, attestation *models.AttestationData) bool {
	return Validate(step, clients, attestation).Complete
}

func validateCompanyDetails(r *StepReport, clients []models.Client) {
	for i := range clients {
		c := &clients[i]
		required := []struct {
			field string
			value string
		}{
			{fieldLLCName, c.LLCName},
			{fieldFormationDate, c.FormationDate},
			{fieldCountryOfFormation, c.CountryOfFormation},
			{fieldContactEmail, c.ContactEmail},
		}
		for _, f := range required {
			if blank(f.value) {
				r.Missing = append(r.Missing, clientPath(i, f.field))
			}
		}
		if c.IsForeign() && blank(c.DateAuthorityFiledNY) {
			r.Warnings = append(r.Warnings,
				clientPath(i, fieldDateAuthorityFiledNY)+": expected for foreign entities")
		}
	}
}

// validateOwners gates disclosure clients only; exemption clients need no
// applicants or owners.
func validateOwners(r *StepReport, clients []models.Client) {
	for i := range clients {
		c := &clients[i]
		if c.IsExemption() {
			continue
		}
		if len(c.BeneficialOwners) == 0 {
			r.Missing = append(r.Missing, clientPath(i, "beneficialOwners"))
			continue
		}
		for j, bo := range c.BeneficialOwners {
			if blank(bo.FullName) {
				r.Missing = append(r.Missing, fmt.Sprintf("%s[%d].fullName", clientPath(i, "beneficialOwners"), j))
			}
		}
	}
}

func validateExemptions(r *StepReport, clients []models.Client) {
	for i := range clients {
		c := &clients[i]
		if !c.IsExemption() {
			continue
		}
		if blank(c.ExemptionCategory) {
			r.Missing = append(r.Missing, clientPath(i, fieldExemptionCategory))
		}
		if blank(c.ExemptionExplanation) {
			r.Missing = append(r.Missing, clientPath(i, fieldExemptionExplanation))
		}
	}
}

func validateAttestation(r *StepReport, a *models.AttestationData) {
	if a == nil {
		r.Missing = append(r.Missing, "attestation")
		return
	}
	for _, f := range []struct {
		field string
		value string
	}{
		{"signature", a.Signature},
		{"fullName", a.FullName},
		{"initials", a.Initials},
		{"title", a.Title},
		{"date", a.Date},
	} {
		if blank(f.value) {
			r.Missing = append(r.Missing, "attestation."+f.field)
		}
	}
}

func clientPath(i int, field string) string {
	return fmt.Sprintf("clients[%d].%s", i, field)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
