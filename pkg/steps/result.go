// Package steps implements one executor per workflow step kind. Executors
// are pure with respect to execution state: they read the record snapshot
// and variables, call out through injected capabilities, and describe what
// should happen next through a Result. Persisting that outcome is the
// engine's job.
package steps

import (
	"github.com/praxishq/flowengine/pkg/models"
)

// Result describes the outcome of executing one step. Exactly one of the
// three shapes is populated: advance (NextStepID, possibly empty for
// implicit completion), suspend (Suspend non-nil), or terminate (Terminate
// non-empty).
type Result struct {
	NextStepID string
	Suspend    *models.WaitingFor
	Terminate  models.ExecutionStatus

	// Detail is recorded in the execution history. Warning marks a
	// best-effort failure that did not stop the workflow.
	Detail  string
	Warning bool
}

func advance(nextStepID, detail string) Result {
	return Result{NextStepID: nextStepID, Detail: detail}
}

func advanceWarning(nextStepID, detail string) Result {
	return Result{NextStepID: nextStepID, Detail: detail, Warning: true}
}

func suspend(waiting *models.WaitingFor, detail string) Result {
	return Result{Suspend: waiting, Detail: detail}
}

func terminate(status models.ExecutionStatus, detail string) Result {
	return Result{Terminate: status, Detail: detail}
}
