package core

import "time"

// Run triggers.
const (
	TriggerCLI       = "cli"
	TriggerHTTP      = "http"
	TriggerQueue     = "queue"
	TriggerScheduler = "scheduler"
)

// RunReport describes a completed closing run.
type RunReport struct {
	RunID           string              `json:"run_id"`
	Month           string              `json:"month"`
	Trigger         string              `json:"trigger,omitempty"`
	Rows            int                 `json:"rows"`
	Stats           Stats               `json:"stats"`
	Reports         []string            `json:"reports"`
	RecurringIssues map[string][]string `json:"recurring_issues,omitempty"`
	Summary         string              `json:"summary"`
	SheetRef        string              `json:"sheet_ref,omitempty"`
	StartedAt       time.Time           `json:"started_at"`
	Duration        time.Duration       `json:"duration"`
}
