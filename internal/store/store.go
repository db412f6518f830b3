package store

import "context"

// RunRecord is one journal entry: a single instruction submission and how it
// ended. EnvironmentCounts maps an environment kind to the number of steps
// rendered for it ("unknown" and "error" included).
type RunRecord struct {
	ID                string
	Instruction       string
	Status            string
	Message           string
	StepCount         int
	EnvironmentCounts map[string]int
	ReportGenerated   bool
	CreatedAt         string
	CompletedAt       string
}

type Journal interface {
	CreateRun(ctx context.Context, run RunRecord) error
	CompleteRun(ctx context.Context, run RunRecord) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
