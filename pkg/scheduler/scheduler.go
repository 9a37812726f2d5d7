// Package scheduler implements the resume sweep: a periodic batch scan for
// suspended executions whose wake time has elapsed. Waiting is dehydrated
// to storage, so the sweep is the only timer in the system; granularity is
// the sweep interval, and a restart loses nothing.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/praxishq/flowengine/pkg/clock"
	"github.com/praxishq/flowengine/pkg/engine"
	"github.com/praxishq/flowengine/pkg/otelhelper"
	"github.com/praxishq/flowengine/pkg/persistence"
)

// DefaultBatchSize bounds how many due executions one sweep picks up.
const DefaultBatchSize = 50

// SweepResult summarizes one sweep pass. Processed counts executions this
// sweep claimed; executions claimed by a concurrent sweep are skipped and
// not counted.
type SweepResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type Scheduler struct {
	persistence persistence.Persistence
	engine      *engine.Engine
	clock       clock.Clock
	logger      *slog.Logger
	tracer      trace.Tracer
	cron        *cron.Cron
	batchSize   int
}

func New(
	store persistence.Persistence,
	eng *engine.Engine,
	clk clock.Clock,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		persistence: store,
		engine:      eng,
		clock:       clk,
		logger:      logger.With("module", "scheduler"),
		tracer:      noop.NewTracerProvider().Tracer("scheduler"),
		batchSize:   DefaultBatchSize,
	}
}

// WithTracer attaches a tracer; without it spans are no-ops.
func (s *Scheduler) WithTracer(tracer trace.Tracer) *Scheduler {
	s.tracer = tracer

	return s
}

// WithBatchSize overrides the batch size used by the cron-driven sweep.
func (s *Scheduler) WithBatchSize(batchSize int) *Scheduler {
	s.batchSize = batchSize

	return s
}

// Sweep finds waiting executions with an elapsed delay and hands each back
// to the engine. Every execution is claimed with a conditional update
// before processing, so two overlapping sweeps never double-process one
// execution. Per-execution failures are isolated: one bad execution only
// bumps the failed count.
func (s *Scheduler) Sweep(ctx context.Context, batchSize int) (SweepResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "scheduler.sweep",
		attribute.Int("flowengine.sweep.batch_size", batchSize),
	)
	defer span.End()

	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	var result SweepResult

	due, err := s.persistence.Executions().Due(ctx, s.clock.Now(), batchSize)
	if err != nil {
		otelhelper.SetError(span, err)

		return result, fmt.Errorf("query due executions: %w", err)
	}

	for _, exec := range due {
		claimed, err := s.persistence.Executions().Claim(ctx, exec.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to claim due execution",
				"execution_id", exec.ID, "error", err)

			result.Processed++
			result.Failed++

			continue
		}

		if !claimed {
			s.logger.DebugContext(ctx, "due execution claimed elsewhere, skipping", "execution_id", exec.ID)

			continue
		}

		result.Processed++

		if err := s.engine.ProcessExecution(ctx, exec.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to process due execution",
				"execution_id", exec.ID, "error", err)

			result.Failed++

			continue
		}

		result.Succeeded++
	}

	if result.Processed > 0 {
		s.logger.InfoContext(ctx, "sweep finished",
			"processed", result.Processed, "succeeded", result.Succeeded, "failed", result.Failed)
	}

	span.SetAttributes(
		attribute.Int("flowengine.sweep.processed", result.Processed),
		attribute.Int("flowengine.sweep.succeeded", result.Succeeded),
		attribute.Int("flowengine.sweep.failed", result.Failed),
	)

	return result, nil
}

// Recover re-invokes executions stuck in running status longer than
// idleFor, the ones a crashed process abandoned mid-loop. Safe to call on
// startup: side-effecting steps leave an idempotency marker in history, so
// re-entry does not repeat their side effects.
func (s *Scheduler) Recover(ctx context.Context, idleFor time.Duration) (int, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "scheduler.recover")
	defer span.End()

	stuck, err := s.persistence.Executions().Running(ctx, s.clock.Now().Add(-idleFor))
	if err != nil {
		otelhelper.SetError(span, err)

		return 0, fmt.Errorf("query stuck executions: %w", err)
	}

	recovered := 0

	for _, exec := range stuck {
		s.logger.WarnContext(ctx, "recovering execution left running",
			"execution_id", exec.ID, "updated_at", exec.UpdatedAt)

		if err := s.engine.ProcessExecution(ctx, exec.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to recover execution",
				"execution_id", exec.ID, "error", err)

			continue
		}

		recovered++
	}

	return recovered, nil
}

// Start schedules periodic sweeps with a cron expression.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	runner := cron.New()

	_, err := runner.AddFunc(schedule, func() {
		if _, err := s.Sweep(ctx, s.batchSize); err != nil {
			s.logger.ErrorContext(ctx, "scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep with %q: %w", schedule, err)
	}

	runner.Start()
	s.cron = runner

	s.logger.InfoContext(ctx, "scheduler started", "schedule", schedule)

	return nil
}

// Stop halts the cron runner and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
