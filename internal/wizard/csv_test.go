package wizard

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"nylta-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// ParseClients Tests
// ==========================

func TestParseClients_MinimalExample(t *testing.T) {
	text := "LLC Legal Name,Formation Date (YYYY-MM-DD)\n\"Acme LLC\",\"2020-01-01\"\n"

	clients := ParseClients(text)
	require.Len(t, clients, 1)

	c := clients[0]
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Acme LLC", c.LLCName)
	assert.Equal(t, "2020-01-01", c.FormationDate)
	assert.Equal(t, "United States", c.CountryOfFormation)
	assert.Equal(t, models.EntityTypeDomestic, c.EntityType)
	assert.Equal(t, models.FilingTypeDisclosure, c.FilingType)
	assert.Equal(t, models.ServiceTypeFiling, c.ServiceType)
	assert.Empty(t, c.BeneficialOwners)
	assert.NotNil(t, c.BeneficialOwners)
}

func TestParseClients(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		check func(t *testing.T, clients []models.Client)
	}{
		{
			name: "fewer than two lines",
			text: "LLC Legal Name,EIN\n",
			check: func(t *testing.T, clients []models.Client) {
				assert.Empty(t, clients)
				assert.NotNil(t, clients)
			},
		},
		{
			name: "rows without a name are dropped",
			text: "LLC Legal Name,EIN\nAcme LLC,12-3456789\n,98-7654321\n  ,11\n",
			check: func(t *testing.T, clients []models.Client) {
				require.Len(t, clients, 1)
				assert.Equal(t, "12-3456789", clients[0].EIN)
			},
		},
		{
			name: "column order is not significant and unknown headers are ignored",
			text: "Notes,Contact Email,LLC Legal Name\nignored,a@b.co,Beta LLC\n",
			check: func(t *testing.T, clients []models.Client) {
				require.Len(t, clients, 1)
				assert.Equal(t, "Beta LLC", clients[0].LLCName)
				assert.Equal(t, "a@b.co", clients[0].ContactEmail)
			},
		},
		{
			name: "enum values are case normalized",
			text: "LLC Legal Name,Entity Type,Filing Type,Service Type\nGamma LLC,FOREIGN,Exemption,Monitoring\nDelta LLC,partnership,other,premium\n",
			check: func(t *testing.T, clients []models.Client) {
				require.Len(t, clients, 2)
				assert.Equal(t, models.EntityTypeForeign, clients[0].EntityType)
				assert.Equal(t, models.FilingTypeExemption, clients[0].FilingType)
				assert.Equal(t, models.ServiceTypeMonitoring, clients[0].ServiceType)
				assert.Equal(t, models.EntityTypeDomestic, clients[1].EntityType)
				assert.Equal(t, models.FilingTypeDisclosure, clients[1].FilingType)
				assert.Equal(t, models.ServiceTypeFiling, clients[1].ServiceType)
			},
		},
		{
			name: "quoted commas, CRLF and blank lines",
			text: "LLC Legal Name,Company Street Address\r\n\r\n\"Acme, Inc. LLC\",\"1 Main St, Suite 2\"\r\n",
			check: func(t *testing.T, clients []models.Client) {
				require.Len(t, clients, 1)
				assert.Equal(t, "Acme, Inc. LLC", clients[0].LLCName)
				assert.Equal(t, "1 Main St, Suite 2", clients[0].CompanyStreetAddress)
			},
		},
		{
			name: "header aliases",
			text: "LLC Legal Name,Formation Date,DBA\nEpsilon LLC,2019-05-05,Eps\n",
			check: func(t *testing.T, clients []models.Client) {
				require.Len(t, clients, 1)
				assert.Equal(t, "2019-05-05", clients[0].FormationDate)
				assert.Equal(t, "Eps", clients[0].FictitiousName)
			},
		},
		{
			name: "explicit country is kept",
			text: "LLC Legal Name,Country/State of Formation\nZeta LLC,Delaware\n",
			check: func(t *testing.T, clients []models.Client) {
				require.Len(t, clients, 1)
				assert.Equal(t, "Delaware", clients[0].CountryOfFormation)
			},
		},
		{
			name: "short rows",
			text: "LLC Legal Name,EIN,NY DOS ID\nEta LLC\n",
			check: func(t *testing.T, clients []models.Client) {
				require.Len(t, clients, 1)
				assert.Empty(t, clients[0].EIN)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ParseClients(tt.text))
		})
	}
}

func TestParseClients_GeneratesDistinctIDs(t *testing.T) {
	clients := ParseClients("LLC Legal Name\nA LLC\nB LLC\nC LLC\n")
	require.Len(t, clients, 3)

	seen := map[string]bool{}
	for _, c := range clients {
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
}

// ==========================
// ParseUpload Tests
// ==========================

func TestParseUpload_Errors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"empty", "", ErrNoDataRows},
		{"header only", "LLC Legal Name\n", ErrNoDataRows},
		{"missing name column", "EIN,Contact Email\n12,a@b.co\n", ErrMissingNameColumn},
		{"no valid rows", "LLC Legal Name,EIN\n,12\n", ErrNoValidRows},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clients, err := ParseUpload(tt.text)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, clients)
		})
	}
}

func TestParseUpload_Success(t *testing.T) {
	clients, err := ParseUpload("LLC Legal Name\nAcme LLC\n")
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

// ==========================
// Template Round Trip
// ==========================

func TestWriteTemplate_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 7, 50} {
		t.Run(fmt.Sprintf("%d rows", n), func(t *testing.T) {
			clients := make([]models.Client, n)
			for i := range clients {
				clients[i] = applyDefaults(models.Client{
					ID:                   newID(),
					LLCName:              fmt.Sprintf("Client %d, LLC", i),
					FormationDate:        "2021-03-04",
					EntityType:           models.EntityTypeForeign,
					FilingType:           models.FilingTypeExemption,
					ExemptionCategory:    "Large operating company",
					ExemptionExplanation: "Has \"20+\" employees",
					CompanyCountry:       "US",
				})
			}

			var buf bytes.Buffer
			require.NoError(t, WriteTemplate(&buf, clients))

			parsed := ParseClients(buf.String())
			require.Len(t, parsed, n)
			for i, c := range parsed {
				assert.NotEmpty(t, c.LLCName)
				assert.Equal(t, clients[i].LLCName, c.LLCName)
				assert.Equal(t, clients[i].ExemptionExplanation, c.ExemptionExplanation)
				assert.Equal(t, models.EntityTypeForeign, c.EntityType)
				assert.Equal(t, models.FilingTypeExemption, c.FilingType)
			}
		})
	}
}

func TestTemplateHeaders_AllMapped(t *testing.T) {
	headers := TemplateHeaders()
	assert.Equal(t, "LLC Legal Name", headers[0])
	for _, h := range headers {
		assert.NotEmpty(t, CSVHeaderMap[h], h)
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf, nil))
	assert.Equal(t, strings.Join(headers, ",")+"\n", buf.String())
}
