package highlevel

type CustomField struct {
	Key        string `json:"key"`
	FieldValue string `json:"field_value"`
}

// ContactRequest is the create/update body of the contacts endpoint.
type ContactRequest struct {
	LocationID   string        `json:"locationId,omitempty"`
	Name         string        `json:"name,omitempty"`
	FirstName    string        `json:"firstName,omitempty"`
	LastName     string        `json:"lastName,omitempty"`
	Email        string        `json:"email,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	CompanyName  string        `json:"companyName,omitempty"`
	Address1     string        `json:"address1,omitempty"`
	City         string        `json:"city,omitempty"`
	State        string        `json:"state,omitempty"`
	PostalCode   string        `json:"postalCode,omitempty"`
	Country      string        `json:"country,omitempty"`
	Source       string        `json:"source,omitempty"`
	Tags         []string      `json:"tags,omitempty"`
	CustomFields []CustomField `json:"customFields,omitempty"`
}

// CustomFieldValue returns the value for key, or "".
func (r *ContactRequest) CustomFieldValue(key string) string {
	for _, f := range r.CustomFields {
		if f.Key == key {
			return f.FieldValue
		}
	}
	return ""
}

type Contact struct {
	ID          string   `json:"id"`
	LocationID  string   `json:"locationId,omitempty"`
	Name        string   `json:"contactName,omitempty"`
	Email       string   `json:"email,omitempty"`
	CompanyName string   `json:"companyName,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type contactEnvelope struct {
	Contact Contact `json:"contact"`
}
