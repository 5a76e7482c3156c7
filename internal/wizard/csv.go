package wizard

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"nylta-workers/internal/models"

	"github.com/google/uuid"
)

var (
	ErrNoDataRows        = errors.New("csv must contain a header row and at least one data row")
	ErrMissingNameColumn = errors.New("csv is missing the LLC Legal Name column")
	ErrNoValidRows       = errors.New("csv contains no rows with an LLC name")
	ErrMalformedCSV      = errors.New("csv could not be read")
)

// Client field keys used by the header table.
const (
	fieldLLCName              = "llcName"
	fieldFictitiousName       = "fictitiousName"
	fieldNYDOSID              = "nydosId"
	fieldEIN                  = "ein"
	fieldFormationDate        = "formationDate"
	fieldCountryOfFormation   = "countryOfFormation"
	fieldEntityType           = "entityType"
	fieldDateAuthorityFiledNY = "dateAuthorityFiledNY"
	fieldContactEmail         = "contactEmail"
	fieldFilingType           = "filingType"
	fieldServiceType          = "serviceType"
	fieldExemptionCategory    = "exemptionCategory"
	fieldExemptionExplanation = "exemptionExplanation"
	fieldCompanyStreetAddress = "companyStreetAddress"
	fieldCompanyCity          = "companyCity"
	fieldCompanyState         = "companyState"
	fieldCompanyZipCode       = "companyZipCode"
	fieldCompanyCountry       = "companyCountry"
)

// templateColumns is the export/template column order.
var templateColumns = []struct {
	header string
	field  string
}{
	{"LLC Legal Name", fieldLLCName},
	{"DBA / Fictitious Name", fieldFictitiousName},
	{"NY DOS ID", fieldNYDOSID},
	{"EIN", fieldEIN},
	{"Formation Date (YYYY-MM-DD)", fieldFormationDate},
	{"Country/State of Formation", fieldCountryOfFormation},
	{"Entity Type", fieldEntityType},
	{"Date Authority Filed NY", fieldDateAuthorityFiledNY},
	{"Contact Email", fieldContactEmail},
	{"Filing Type", fieldFilingType},
	{"Service Type", fieldServiceType},
	{"Exemption Category", fieldExemptionCategory},
	{"Exemption Explanation", fieldExemptionExplanation},
	{"Company Street Address", fieldCompanyStreetAddress},
	{"Company City", fieldCompanyCity},
	{"Company State", fieldCompanyState},
	{"Company ZIP Code", fieldCompanyZipCode},
	{"Company Country", fieldCompanyCountry},
}

// CSVHeaderMap maps an exact header string to a client field key.
var CSVHeaderMap = buildHeaderMap()

func buildHeaderMap() map[string]string {
	m := make(map[string]string, len(templateColumns)+2)
	for _, col := range templateColumns {
		m[col.header] = col.field
	}
	m["Formation Date"] = fieldFormationDate
	m["DBA"] = fieldFictitiousName
	return m
}

var newID = uuid.NewString

func TemplateHeaders() []string {
	headers := make([]string, len(templateColumns))
	for i, col := range templateColumns {
		headers[i] = col.header
	}
	return headers
}

// ParseClients converts CSV text into clients. Rows without an LLC name are
// dropped. Any input it cannot use yields an empty slice.
func ParseClients(text string) []models.Client {
	records, err := readRecords(text)
	if err != nil || len(records) < 2 {
		return []models.Client{}
	}
	return mapRecords(records)
}

// ParseUpload is ParseClients with the reason for an empty result.
func ParseUpload(text string) ([]models.Client, error) {
	records, err := readRecords(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	if len(records) < 2 {
		return nil, ErrNoDataRows
	}

	hasName := false
	for _, h := range records[0] {
		if CSVHeaderMap[strings.TrimSpace(h)] == fieldLLCName {
			hasName = true
			break
		}
	}
	if !hasName {
		return nil, ErrMissingNameColumn
	}

	clients := mapRecords(records)
	if len(clients) == 0 {
		return nil, ErrNoValidRows
	}
	return clients, nil
}

// WriteTemplate writes the template header followed by one row per client.
func WriteTemplate(w io.Writer, clients []models.Client) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TemplateHeaders()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(templateColumns))
	for i := range clients {
		for j, col := range templateColumns {
			row[j] = fieldValue(&clients[i], col.field)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func readRecords(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, "\ufeff")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlankRecord(rec) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func mapRecords(records [][]string) []models.Client {
	fields := make([]string, len(records[0]))
	for i, h := range records[0] {
		fields[i] = CSVHeaderMap[strings.TrimSpace(h)]
	}

	clients := make([]models.Client, 0, len(records)-1)
	for _, rec := range records[1:] {
		c := models.Client{}
		for i, v := range rec {
			if i >= len(fields) || fields[i] == "" {
				continue
			}
			setField(&c, fields[i], strings.TrimSpace(v))
		}
		if strings.TrimSpace(c.LLCName) == "" {
			continue
		}
		c.ID = newID()
		clients = append(clients, applyDefaults(c))
	}
	return clients
}

// applyDefaults normalizes the enum fields and fills the defaults of a new client.
func applyDefaults(c models.Client) models.Client {
	c.EntityType = normalizeEntityType(c.EntityType)
	c.FilingType = normalizeFilingType(c.FilingType)
	c.ServiceType = normalizeServiceType(c.ServiceType)
	if strings.TrimSpace(c.CountryOfFormation) == "" {
		c.CountryOfFormation = models.DefaultCountryOfFormation
	}
	if c.CompanyApplicants == nil {
		c.CompanyApplicants = []models.CompanyApplicant{}
	}
	if c.BeneficialOwners == nil {
		c.BeneficialOwners = []models.BeneficialOwner{}
	}
	return c
}

func normalizeEntityType(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), models.EntityTypeForeign) {
		return models.EntityTypeForeign
	}
	return models.EntityTypeDomestic
}

func normalizeFilingType(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), models.FilingTypeExemption) {
		return models.FilingTypeExemption
	}
	return models.FilingTypeDisclosure
}

func normalizeServiceType(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), models.ServiceTypeMonitoring) {
		return models.ServiceTypeMonitoring
	}
	return models.ServiceTypeFiling
}

func setField(c *models.Client, field, v string) {
	switch field {
	case fieldLLCName:
		c.LLCName = v
	case fieldFictitiousName:
		c.FictitiousName = v
	case fieldNYDOSID:
		c.NYDOSID = v
	case fieldEIN:
		c.EIN = v
	case fieldFormationDate:
		c.FormationDate = v
	case fieldCountryOfFormation:
		c.CountryOfFormation = v
	case fieldEntityType:
		c.EntityType = v
	case fieldDateAuthorityFiledNY:
		c.DateAuthorityFiledNY = v
	case fieldContactEmail:
		c.ContactEmail = v
	case fieldFilingType:
		c.FilingType = v
	case fieldServiceType:
		c.ServiceType = v
	case fieldExemptionCategory:
		c.ExemptionCategory = v
	case fieldExemptionExplanation:
		c.ExemptionExplanation = v
	case fieldCompanyStreetAddress:
		c.CompanyStreetAddress = v
	case fieldCompanyCity:
		c.CompanyCity = v
	case fieldCompanyState:
		c.CompanyState = v
	case fieldCompanyZipCode:
		c.CompanyZipCode = v
	case fieldCompanyCountry:
		c.CompanyCountry = v
	}
}

func fieldValue(c *models.Client, field string) string {
	switch field {
	case fieldLLCName:
		return c.LLCName
	case fieldFictitiousName:
		return c.FictitiousName
	case fieldNYDOSID:
		return c.NYDOSID
	case fieldEIN:
		return c.EIN
	case fieldFormationDate:
		return c.FormationDate
	case fieldCountryOfFormation:
		return c.CountryOfFormation
	case fieldEntityType:
		return c.EntityType
	case fieldDateAuthorityFiledNY:
		return c.DateAuthorityFiledNY
	case fieldContactEmail:
		return c.ContactEmail
	case fieldFilingType:
		return c.FilingType
	case fieldServiceType:
		return c.ServiceType
	case fieldExemptionCategory:
		return c.ExemptionCategory
	case fieldExemptionExplanation:
		return c.ExemptionExplanation
	case fieldCompanyStreetAddress:
		return c.CompanyStreetAddress
	case fieldCompanyCity:
		return c.CompanyCity
	case fieldCompanyState:
		return c.CompanyState
	case fieldCompanyZipCode:
		return c.CompanyZipCode
	case fieldCompanyCountry:
		return c.CompanyCountry
	}
	return ""
}
