package models

// DeleteStep identifies one step of the certificate delete workflow.
type DeleteStep string

const (
	StepRevoke      DeleteStep = "revoke"
	StepCertificate DeleteStep = "certificate"
	StepPrivateKey  DeleteStep = "private_key"
	StepRequest     DeleteStep = "request"
)

// StepOutcome is the result of a single delete step.
type StepOutcome string

const (
	OutcomeRevoked  StepOutcome = "revoked"
	OutcomeDeleted  StepOutcome = "deleted"
	OutcomeNotFound StepOutcome = "not_found"
	OutcomeFailed   StepOutcome = "failed"
	OutcomeSkipped  StepOutcome = "skipped"
)

// StepResult records what happened in one step.
type StepResult struct {
	Step    DeleteStep  `json:"step"`
	Outcome StepOutcome `json:"outcome"`
	Detail  string      `json:"detail,omitempty"`
}

// DeleteReport aggregates the steps of a delete. Success means the certificate
// or the private key was actually removed.
type DeleteReport struct {
	Name     string       `json:"name"`
	Steps    []StepResult `json:"steps"`
	Deleted  []string     `json:"deleted"`
	Warnings []string     `json:"warnings,omitempty"`
	Success  bool         `json:"success"`
}

// Record appends a step result.
func (r *DeleteReport) Record(step DeleteStep, outcome StepOutcome, detail string) {
	r.Steps = append(r.Steps, StepResult{Step: step, Outcome: outcome, Detail: detail})
}

// Warn appends a warning message.
func (r *DeleteReport) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Outcome returns the outcome of step, or "" if it was not recorded.
func (r *DeleteReport) Outcome(step DeleteStep) StepOutcome {
	for _, s := range r.Steps {
		if s.Step == step {
			return s.Outcome
		}
	}
	return ""
}
