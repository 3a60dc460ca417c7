// Package report describes the outcome of one tool operation in a form
// suitable for printing and for the run history store.
package report

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run kinds recorded in history
const (
	KindGenerate = "generate"
	KindValidate = "validate"
	KindPackage  = "package"
	KindHealth   = "health"
)

// RunReport summarizes one operation of the tool
type RunReport struct {
	RunID       string        `json:"run_id"`
	Kind        string        `json:"kind"`
	Target      string        `json:"target"`
	FinalStatus string        `json:"final_status"` // "succeeded" or "failed"
	Duration    time.Duration `json:"-"`
	Retries     int           `json:"retries"`
	Detail      string        `json:"detail,omitempty"`
	Timestamp   int64         `json:"timestamp"` // Unix timestamp
}

// NewRunReport creates a report for a completed operation
func NewRunReport(kind, target string, success bool, duration time.Duration, retries int) *RunReport {
	finalStatus := "failed"
	if success {
		finalStatus = "succeeded"
	}
	return &RunReport{
		RunID:       uuid.NewString(),
		Kind:        kind,
		Target:      target,
		FinalStatus: finalStatus,
		Duration:    duration,
		Retries:     retries,
		Timestamp:   time.Now().Unix(),
	}
}

// Succeeded reports whether the operation succeeded
func (r *RunReport) Succeeded() bool {
	return r.FinalStatus == "succeeded"
}

// DurationSeconds returns the duration in seconds as a float64
func (r *RunReport) DurationSeconds() float64 {
	return float64(r.Duration) / float64(time.Second)
}

// MarshalJSON implements custom JSON marshaling for RunReport
func (r *RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(&struct {
		DurationSeconds float64 `json:"duration_seconds"`
		*Alias
	}{
		DurationSeconds: r.DurationSeconds(),
		Alias:           (*Alias)(r),
	})
}
