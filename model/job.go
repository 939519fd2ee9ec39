package model

import (
	"time"
)

// Job is one tracked run of the analysis pipeline for a single upload.
type Job struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"` // queued, processing, done, error
	Step      string    `json:"step"`
	Error     string    `json:"error,omitempty"`
	Report    *Report   `json:"report,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Job status constants
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

// Step labels shown to the polling client.
const (
	StepQueued     = "waiting to start"
	StepExtracting = "extracting text"
	StepAnalyzing  = "analyzing structure"
	StepAssembling = "assembling report"
	StepComplete   = "complete"
	StepFailed     = "analysis failed"
)

// IsTerminal reports whether no further transitions may happen.
func (j *Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// Ready reports whether the report can be rendered.
func (j *Job) Ready() bool {
	return j.Status == StatusDone && j.Report != nil
}

func IsTerminalStatus(status string) bool {
	return status == StatusDone || status == StatusError
}

// ValidStatus reports whether status is one of the four lifecycle states.
func ValidStatus(status string) bool {
	switch status {
	case StatusQueued, StatusProcessing, StatusDone, StatusError:
		return true
	}
	return false
}
