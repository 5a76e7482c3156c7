package wizard

import (
	"errors"
	"fmt"

	"nylta-workers/internal/models"
)

var (
	ErrClientNotFound    = errors.New("client not found")
	ErrPersonNotFound    = errors.New("person not found")
	ErrTooManyApplicants = fmt.Errorf("a client can have at most %d company applicants", models.MaxCompanyApplicants)
	ErrTooManyOwners     = fmt.Errorf("a client can have at most %d beneficial owners", models.MaxBeneficialOwners)
)

// AddClient appends c, assigning an id and the intake defaults, and returns
// the stored record.
func (w *Wizard) AddClient(c models.Client) (models.Client, error) {
	if err := checkLimits(&c); err != nil {
		return models.Client{}, err
	}
	if c.ID == "" {
		c.ID = newID()
	}
	c = applyDefaults(cloneClient(c))
	w.state.Clients = append(w.state.Clients, c)
	return cloneClient(c), nil
}

// AddClients appends an imported batch. Nothing is added if any record
// exceeds the applicant or owner limits.
func (w *Wizard) AddClients(clients []models.Client) error {
	for i := range clients {
		if err := checkLimits(&clients[i]); err != nil {
			return fmt.Errorf("client %d: %w", i, err)
		}
	}
	for _, c := range clients {
		if c.ID == "" {
			c.ID = newID()
		}
		w.state.Clients = append(w.state.Clients, applyDefaults(cloneClient(c)))
	}
	return nil
}

func (w *Wizard) Client(id string) (models.Client, error) {
	i := w.indexOf(id)
	if i < 0 {
		return models.Client{}, fmt.Errorf("%w: %s", ErrClientNotFound, id)
	}
	return cloneClient(w.state.Clients[i]), nil
}

func (w *Wizard) RemoveClient(id string) error {
	i := w.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrClientNotFound, id)
	}
	w.state.Clients = append(w.state.Clients[:i], w.state.Clients[i+1:]...)
	return nil
}

// UpdateClient applies fn to a copy of the client and stores the result. The
// id cannot be changed and the list limits still apply.
func (w *Wizard) UpdateClient(id string, fn func(*models.Client)) error {
	i := w.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrClientNotFound, id)
	}

	updated := cloneClient(w.state.Clients[i])
	fn(&updated)
	updated.ID = id
	if err := checkLimits(&updated); err != nil {
		return err
	}
	w.state.Clients[i] = applyDefaults(updated)
	return nil
}

func (w *Wizard) AddCompanyApplicant(clientID string, ca models.CompanyApplicant) (models.CompanyApplicant, error) {
	i := w.indexOf(clientID)
	if i < 0 {
		return models.CompanyApplicant{}, fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	c := &w.state.Clients[i]
	if len(c.CompanyApplicants) >= models.MaxCompanyApplicants {
		return models.CompanyApplicant{}, ErrTooManyApplicants
	}
	if ca.ID == "" {
		ca.ID = newID()
	}
	c.CompanyApplicants = append(c.CompanyApplicants, ca)
	return ca, nil
}

func (w *Wizard) RemoveCompanyApplicant(clientID, applicantID string) error {
	i := w.indexOf(clientID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	c := &w.state.Clients[i]
	for j := range c.CompanyApplicants {
		if c.CompanyApplicants[j].ID == applicantID {
			c.CompanyApplicants = append(c.CompanyApplicants[:j], c.CompanyApplicants[j+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: applicant %s", ErrPersonNotFound, applicantID)
}

func (w *Wizard) AddBeneficialOwner(clientID string, bo models.BeneficialOwner) (models.BeneficialOwner, error) {
	i := w.indexOf(clientID)
	if i < 0 {
		return models.BeneficialOwner{}, fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	c := &w.state.Clients[i]
	if len(c.BeneficialOwners) >= models.MaxBeneficialOwners {
		return models.BeneficialOwner{}, ErrTooManyOwners
	}
	if bo.ID == "" {
		bo.ID = newID()
	}
	c.BeneficialOwners = append(c.BeneficialOwners, bo)
	return bo, nil
}

func (w *Wizard) RemoveBeneficialOwner(clientID, ownerID string) error {
	i := w.indexOf(clientID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	c := &w.state.Clients[i]
	for j := range c.BeneficialOwners {
		if c.BeneficialOwners[j].ID == ownerID {
			c.BeneficialOwners = append(c.BeneficialOwners[:j], c.BeneficialOwners[j+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: owner %s", ErrPersonNotFound, ownerID)
}

// SetAttestation replaces the batch attestation; nil clears it.
func (w *Wizard) SetAttestation(a *models.AttestationData) {
	if a == nil {
		w.state.Attestation = nil
		return
	}
	cp := *a
	w.state.Attestation = &cp
}

func (w *Wizard) indexOf(id string) int {
	for i := range w.state.Clients {
		if w.state.Clients[i].ID == id {
			return i
		}
	}
	return -1
}

func checkLimits(c *models.Client) error {
	if len(c.CompanyApplicants) > models.MaxCompanyApplicants {
		return ErrTooManyApplicants
	}
	if len(c.BeneficialOwners) > models.MaxBeneficialOwners {
		return ErrTooManyOwners
	}
	return nil
}
