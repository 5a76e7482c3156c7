package validatewizardstep

type Input struct {
	SessionID string `json:"sessionId"`
	// Step defaults to the draft's current step when zero.
	Step int `json:"step,omitempty"`
}

type Output struct {
	Step           int      `json:"step"`
	StepName       string   `json:"stepName"`
	StepComplete   bool     `json:"stepComplete"`
	Missing        []string `json:"missing"`
	Warnings       []string `json:"warnings"`
	CompletedSteps []int    `json:"completedSteps"`
	ClientCount    int      `json:"clientCount"`
}
