package domain

import "time"

// RunLog summarizes one reconciliation run. Records are immutable once
// written: the run log table is append-only.
type RunLog struct {
	ID                string
	StartedAt         time.Time
	FinishedAt        time.Time
	SuccessGroupNames []string
	FailedGroupNames  []string
	TotalEventsSaved  int
	Errors            []RunError
}

// RunError captures a single recoverable failure observed during a run,
// with enough context for a postmortem without live log access.
type RunError struct {
	ErrorName    string
	ErrorMessage string
	StackTrace   string
	GroupName    string
}
