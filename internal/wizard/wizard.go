// Package wizard implements the six-step bulk filing wizard: CSV intake, the
// per-step completion predicates, navigation and the field editors.
package wizard

import (
	"errors"
	"fmt"
	"strings"

	"nylta-workers/internal/models"
)

var (
	ErrStepIncomplete = errors.New("current step is incomplete")
	ErrLastStep       = errors.New("already at the last step")
	ErrStepLocked     = errors.New("step is not reachable yet")
	ErrInvalidStep    = errors.New("step out of range")
)

// StepError carries the report of the step that blocked navigation.
type StepError struct {
	Report StepReport
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %d missing %s", ErrStepIncomplete, e.Report.Step, strings.Join(e.Report.Missing, ", "))
}

func (e *StepError) Unwrap() error {
	return ErrStepIncomplete
}

// Wizard owns the canonical draft state of one session. It is not safe for
// concurrent use.
type Wizard struct {
	state  models.WizardState
	status models.SubmissionStatus
}

func New() *Wizard {
	return &Wizard{
		state: models.WizardState{
			Clients: []models.Client{},
			Step:    FirstStep,
		},
		status: models.StatusIdle,
	}
}

// FromState resumes a wizard from a persisted draft. Out-of-range steps are
// clamped.
func FromState(state models.WizardState) *Wizard {
	w := New()
	w.state = cloneState(state)
	if w.state.Clients == nil {
		w.state.Clients = []models.Client{}
	}
	switch {
	case w.state.Step < FirstStep:
		w.state.Step = FirstStep
	case w.state.Step > LastStep:
		w.state.Step = LastStep
	}
	if w.state.LastRun != nil {
		w.SetSubmissionStatus(w.state.LastRun.Status)
	}
	return w
}

// State returns a deep copy of the draft.
func (w *Wizard) State() models.WizardState {
	return cloneState(w.state)
}

func (w *Wizard) Step() int {
	return w.state.Step
}

func (w *Wizard) Clients() []models.Client {
	return cloneClients(w.state.Clients)
}

func (w *Wizard) Attestation() *models.AttestationData {
	if w.state.Attestation == nil {
		return nil
	}
	a := *w.state.Attestation
	return &a
}

// SetSubmissionStatus records the outcome of the last submission; a complete
// batch unlocks every step in the indicator.
func (w *Wizard) SetSubmissionStatus(status models.SubmissionStatus) {
	w.status = status
}

func (w *Wizard) SubmissionStatus() models.SubmissionStatus {
	return w.status
}

func (w *Wizard) LastRun() *models.SubmissionRun {
	if w.state.LastRun == nil {
		return nil
	}
	r := w.state.LastRun.Clone()
	return &r
}

// RecordRun merges a batch outcome into the draft. Clients accepted by earlier
// runs of the same order stay submitted.
func (w *Wizard) RecordRun(run models.SubmissionRun) {
	run = run.Clone()
	if prev := w.state.LastRun; prev != nil && prev.OrderNumber == run.OrderNumber {
		seen := make(map[string]bool, len(run.SubmittedClientIDs))
		for _, id := range run.SubmittedClientIDs {
			seen[id] = true
		}
		for _, id := range prev.SubmittedClientIDs {
			if !seen[id] {
				run.SubmittedClientIDs = append(run.SubmittedClientIDs, id)
			}
		}
	}
	w.state.LastRun = &run
	w.SetSubmissionStatus(run.Status)
}

// PendingClients returns the clients no run has submitted yet, in draft order.
func (w *Wizard) PendingClients() []models.Client {
	if w.state.LastRun == nil {
		return w.Clients()
	}
	done := make(map[string]bool, len(w.state.LastRun.SubmittedClientIDs))
	for _, id := range w.state.LastRun.SubmittedClientIDs {
		done[id] = true
	}
	out := []models.Client{}
	for _, c := range w.state.Clients {
		if !done[c.ID] {
			out = append(out, cloneClient(c))
		}
	}
	return out
}

func (w *Wizard) Report() StepReport {
	return Validate(w.state.Step, w.state.Clients, w.state.Attestation)
}

// Reports evaluates every gated step.
func (w *Wizard) Reports() []StepReport {
	reports := make([]StepReport, 0, LastStep-1)
	for step := FirstStep; step < LastStep; step++ {
		reports = append(reports, Validate(step, w.state.Clients, w.state.Attestation))
	}
	return reports
}

// Next advances one step if the current step is complete.
func (w *Wizard) Next() error {
	if w.state.Step >= LastStep {
		return ErrLastStep
	}
	report := w.Report()
	if !report.Complete {
		return &StepError{Report: report}
	}
	w.state.Step++
	return nil
}

// Back moves one step back without any gate.
func (w *Wizard) Back() {
	if w.state.Step > FirstStep {
		w.state.Step--
	}
}

// GoTo jumps to any step at or behind the current one, or to a completed step.
func (w *Wizard) GoTo(step int) error {
	if !ValidStep(step) {
		return fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	if step <= w.state.Step || w.CompletedSteps()[step] {
		w.state.Step = step
		return nil
	}
	return fmt.Errorf("%w: %d (current %d)", ErrStepLocked, step, w.state.Step)
}

func (w *Wizard) CompletedSteps() map[int]bool {
	return CompletedSteps(w.state.Step, w.status)
}

// CompletedSteps derives the step indicator from position alone: every step
// before the current one, or all steps once the batch is complete.
func CompletedSteps(step int, status models.SubmissionStatus) map[int]bool {
	completed := make(map[int]bool, LastStep)
	if status == models.StatusComplete {
		for s := FirstStep; s <= LastStep; s++ {
			completed[s] = true
		}
		return completed
	}
	for s := FirstStep; s < step && s <= LastStep; s++ {
		completed[s] = true
	}
	return completed
}

func cloneState(s models.WizardState) models.WizardState {
	out := models.WizardState{
		Clients: cloneClients(s.Clients),
		Step:    s.Step,
	}
	if s.Attestation != nil {
		a := *s.Attestation
		out.Attestation = &a
	}
	if s.LastRun != nil {
		r := s.LastRun.Clone()
		out.LastRun = &r
	}
	return out
}

func cloneClients(in []models.Client) []models.Client {
	if in == nil {
		return nil
	}
	out := make([]models.Client, len(in))
	for i := range in {
		out[i] = cloneClient(in[i])
	}
	return out
}

func cloneClient(c models.Client) models.Client {
	if c.CompanyApplicants != nil {
		c.CompanyApplicants = append([]models.CompanyApplicant{}, c.CompanyApplicants...)
	}
	if c.BeneficialOwners != nil {
		c.BeneficialOwners = append([]models.BeneficialOwner{}, c.BeneficialOwners...)
	}
	return c
}
