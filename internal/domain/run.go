package domain

import "time"

// Date outcome statuses recorded for every candidate of a run.
const (
	OutcomeExtracted = "extracted"
	OutcomeSkipped   = "skipped"
	OutcomeMissing   = "missing"
	OutcomeFailed    = "failed"
)

// DateOutcome is what happened to one candidate date during a run.
type DateOutcome struct {
	Date    string `json:"date"`
	Status  string `json:"status"`
	Phase   string `json:"phase,omitempty"`
	Message string `json:"message,omitempty"`
}

// RunReport summarizes one orchestration run.
type RunReport struct {
	ID         string        `json:"id"`
	Mode       string        `json:"mode"`
	TargetDate string        `json:"target_date,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Candidates int           `json:"candidates"`
	Extracted  int           `json:"extracted"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Warnings   int           `json:"warnings"`
	Aggregated bool          `json:"aggregated"`
	Analyses   int           `json:"analyses"`
	Excluded   int           `json:"excluded"`
	Error      string        `json:"error,omitempty"`
	Outcomes   []DateOutcome `json:"outcomes,omitempty"`
}

// FailedDates lists the dates that need a manual retry.
func (r *RunReport) FailedDates() []string {
	var dates []string
	for _, o := range r.Outcomes {
		if o.Status == OutcomeFailed || o.Status == OutcomeMissing {
			dates = append(dates, o.Date)
		}
	}
	return dates
}
