package steps

import (
	"fmt"
	"time"

	"github.com/praxishq/flowengine/pkg/models"
)

func (e *Executor) executeWait(step *models.Step) (Result, error) {
	if step.Wait == nil {
		return Result{}, fmt.Errorf("step %s: wait step has no wait config", step.ID)
	}

	switch {
	case step.Wait.Duration != "":
		duration, err := time.ParseDuration(step.Wait.Duration)
		if err != nil {
			return Result{}, fmt.Errorf("step %s: parse wait duration %q: %w", step.ID, step.Wait.Duration, err)
		}

		resumeAt := e.clock.Now().Add(duration)

		return suspend(&models.WaitingFor{
			Type:     models.WaitDelay,
			ResumeAt: &resumeAt,
		}, fmt.Sprintf("waiting %s until %s", step.Wait.Duration, resumeAt.Format(time.RFC3339))), nil

	case step.Wait.Field != "":
		return suspend(&models.WaitingFor{
			Type:          models.WaitFieldChange,
			Field:         step.Wait.Field,
			ExpectedValue: step.Wait.ExpectedValue,
		}, fmt.Sprintf("waiting for field %s to change", step.Wait.Field)), nil

	default:
		return Result{}, fmt.Errorf("step %s: wait step configures neither duration nor field", step.ID)
	}
}
