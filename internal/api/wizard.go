package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"sort"
	"strconv"

	"nylta-workers/internal/draftstore"
	"nylta-workers/internal/models"
	"nylta-workers/internal/wizard"
	parseclientcsv "nylta-workers/internal/workers/bulk-filing/parse-client-csv"

	"github.com/gorilla/mux"
)

type draftResponse struct {
	SessionID      string             `json:"sessionId"`
	State          models.WizardState `json:"state"`
	StepName       string             `json:"stepName"`
	Report         wizard.StepReport  `json:"report"`
	CompletedSteps []int              `json:"completedSteps"`
}

type validationResponse struct {
	SessionID      string              `json:"sessionId"`
	Step           int                 `json:"step"`
	Reports        []wizard.StepReport `json:"reports"`
	CompletedSteps []int               `json:"completedSteps"`
	ReadyToSubmit  bool                `json:"readyToSubmit"`
}

type stepErrorResponse struct {
	Error  string            `json:"error"`
	Report wizard.StepReport `json:"report"`
}

func newDraftResponse(sessionID string, w *wizard.Wizard) draftResponse {
	return draftResponse{
		SessionID:      sessionID,
		State:          w.State(),
		StepName:       wizard.StepName(w.Step()),
		Report:         w.Report(),
		CompletedSteps: sortedSteps(w.CompletedSteps()),
	}
}

func sortedSteps(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for s, ok := range set {
		if ok {
			out = append(out, s)
		}
	}
	sort.Ints(out)
	return out
}

// loadWizard writes the error response itself and returns nil when the draft
// cannot be loaded.
func (s *Server) loadWizard(w http.ResponseWriter, r *http.Request) (*wizard.Wizard, string) {
	sessionID := mux.Vars(r)["sessionId"]
	state, err := s.drafts.Load(r.Context(), sessionID)
	if err != nil {
		s.respondDraftError(w, sessionID, err)
		return nil, sessionID
	}
	return wizard.FromState(*state), sessionID
}

func (s *Server) respondDraftError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case stderrors.Is(err, draftstore.ErrDraftNotFound):
		respondError(w, http.StatusNotFound, "draft not found")
	case stderrors.Is(err, draftstore.ErrInvalidDraft), stderrors.Is(err, draftstore.ErrMissingID):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("Draft store operation failed", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		respondError(w, http.StatusServiceUnavailable, "draft store unavailable")
	}
}

func (s *Server) saveAndRespond(w http.ResponseWriter, r *http.Request, sessionID string, wz *wizard.Wizard) {
	if err := s.drafts.Save(r.Context(), sessionID, wz.State()); err != nil {
		s.respondDraftError(w, sessionID, err)
		return
	}
	respondJSON(w, http.StatusOK, newDraftResponse(sessionID, wz))
}

func (s *Server) getDraft(w http.ResponseWriter, r *http.Request) {
	wz, sessionID := s.loadWizard(w, r)
	if wz == nil {
		return
	}
	respondJSON(w, http.StatusOK, newDraftResponse(sessionID, wz))
}

func (s *Server) putDraft(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	var state models.WizardState
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&state); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// the recorded submission run is server state and survives a replace
	state.LastRun = nil
	existing, err := s.drafts.Load(r.Context(), sessionID)
	switch {
	case err == nil:
		state.LastRun = existing.LastRun
	case !stderrors.Is(err, draftstore.ErrDraftNotFound):
		s.respondDraftError(w, sessionID, err)
		return
	}
	s.saveAndRespond(w, r, sessionID, wizard.FromState(state))
}

func (s *Server) deleteDraft(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	if err := s.drafts.Clear(r.Context(), sessionID); err != nil {
		s.respondDraftError(w, sessionID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) importCSV(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	if len(body) == 0 {
		respondValidationErrors(w, map[string]string{"body": "CSV text is required"})
		return
	}

	output, err := s.importer.Execute(r.Context(), &parseclientcsv.Input{
		SessionID: sessionID,
		CSVText:   string(body),
	})
	if err != nil {
		respondStandardError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, output)
}

func (s *Server) next(w http.ResponseWriter, r *http.Request) {
	wz, sessionID := s.loadWizard(w, r)
	if wz == nil {
		return
	}

	if err := wz.Next(); err != nil {
		var stepErr *wizard.StepError
		switch {
		case stderrors.As(err, &stepErr):
			respondJSON(w, http.StatusUnprocessableEntity, stepErrorResponse{
				Error:  err.Error(),
				Report: stepErr.Report,
			})
		case stderrors.Is(err, wizard.ErrLastStep):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.saveAndRespond(w, r, sessionID, wz)
}

func (s *Server) back(w http.ResponseWriter, r *http.Request) {
	wz, sessionID := s.loadWizard(w, r)
	if wz == nil {
		return
	}
	wz.Back()
	s.saveAndRespond(w, r, sessionID, wz)
}

func (s *Server) goTo(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(mux.Vars(r)["step"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid step")
		return
	}

	wz, sessionID := s.loadWizard(w, r)
	if wz == nil {
		return
	}

	if err := wz.GoTo(step); err != nil {
		switch {
		case stderrors.Is(err, wizard.ErrInvalidStep):
			respondError(w, http.StatusBadRequest, err.Error())
		case stderrors.Is(err, wizard.ErrStepLocked):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.saveAndRespond(w, r, sessionID, wz)
}

func (s *Server) validation(w http.ResponseWriter, r *http.Request) {
	wz, sessionID := s.loadWizard(w, r)
	if wz == nil {
		return
	}

	reports := wz.Reports()
	ready := true
	for _, rep := range reports {
		if !rep.Complete {
			ready = false
			break
		}
	}

	respondJSON(w, http.StatusOK, validationResponse{
		SessionID:      sessionID,
		Step:           wz.Step(),
		Reports:        reports,
		CompletedSteps: sortedSteps(wz.CompletedSteps()),
		ReadyToSubmit:  ready,
	})
}

func (s *Server) csvTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="nylta-bulk-filing-template.csv"`)
	if err := wizard.WriteTemplate(w, nil); err != nil {
		s.logger.Error("Failed to write CSV template", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
