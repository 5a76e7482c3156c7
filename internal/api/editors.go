package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"nylta-workers/internal/models"
	"nylta-workers/internal/wizard"

	"github.com/gorilla/mux"
)

// editDraft loads the session draft, applies edit and saves the result. edit
// writes its own response and returns false when the change is rejected.
func (s *Server) editDraft(w http.ResponseWriter, r *http.Request, edit func(wz *wizard.Wizard, body []byte) bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	wz, sessionID := s.loadWizard(w, r)
	if wz == nil {
		return
	}
	if !edit(wz, body) {
		return
	}
	s.saveAndRespond(w, r, sessionID, wz)
}

func decodeBody(w http.ResponseWriter, body []byte, v interface{}) bool {
	if err := json.Unmarshal(body, v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func respondEditError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, wizard.ErrClientNotFound), stderrors.Is(err, wizard.ErrPersonNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case stderrors.Is(err, wizard.ErrTooManyApplicants), stderrors.Is(err, wizard.ErrTooManyOwners):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) addClient(w http.ResponseWriter, r *http.Request) {
	s.editDraft(w, r, func(wz *wizard.Wizard, body []byte) bool {
		var c models.Client
		if !decodeBody(w, body, &c) {
			return false
		}
		if _, err := wz.AddClient(c); err != nil {
			respondEditError(w, err)
			return false
		}
		return true
	})
}

// updateClient merges the JSON body over the stored client.
func (s *Server) updateClient(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]
	s.editDraft(w, r, func(wz *wizard.Wizard, body []byte) bool {
		current, err := wz.Client(clientID)
		if err != nil {
			respondEditError(w, err)
			return false
		}
		if !decodeBody(w, body, &current) {
			return false
		}
		if err := wz.UpdateClient(clientID, func(c *models.Client) { *c = current }); err != nil {
			respondEditError(w, err)
			return false
		}
		return true
	})
}

func (s *Server) removeClient(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]
	s.editDraft(w, r, func(wz *wizard.Wizard, _ []byte) bool {
		if err := wz.RemoveClient(clientID); err != nil {
			respondEditError(w, err)
			return false
		}
		return true
	})
}

func (s *Server) addApplicant(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]
	s.editDraft(w, r, func(wz *wizard.Wizard, body []byte) bool {
		var ca models.CompanyApplicant
		if !decodeBody(w, body, &ca) {
			return false
		}
		if _, err := wz.AddCompanyApplicant(clientID, ca); err != nil {
			respondEditError(w, err)
			return false
		}
		return true
	})
}

func (s *Server) removeApplicant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.editDraft(w, r, func(wz *wizard.Wizard, _ []byte) bool {
		if err := wz.RemoveCompanyApplicant(vars["clientId"], vars["personId"]); err != nil {
			respondEditError(w, err)
			return false
		}
		return true
	})
}

func (s *Server) addOwner(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]
	s.editDraft(w, r, func(wz *wizard.Wizard, body []byte) bool {
		var bo models.BeneficialOwner
		if !decodeBody(w, body, &bo) {
			return false
		}
		if _, err := wz.AddBeneficialOwner(clientID, bo); err != nil {
			respondEditError(w, err)
			return false
		}
		return true
	})
}

func (s *Server) removeOwner(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.editDraft(w, r, func(wz *wizard.Wizard, _ []byte) bool {
		if err := wz.RemoveBeneficialOwner(vars["clientId"], vars["personId"]); err != nil {
			respondEditError(w, err)
			return false
		}
		return true
	})
}

func (s *Server) putAttestation(w http.ResponseWriter, r *http.Request) {
	s.editDraft(w, r, func(wz *wizard.Wizard, body []byte) bool {
		var a models.AttestationData
		if !decodeBody(w, body, &a) {
			return false
		}
		wz.SetAttestation(&a)
		return true
	})
}

func (s *Server) deleteAttestation(w http.ResponseWriter, r *http.Request) {
	s.editDraft(w, r, func(wz *wizard.Wizard, _ []byte) bool {
		wz.SetAttestation(nil)
		return true
	})
}
