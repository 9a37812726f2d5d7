//go:build integration
// +build integration

package postgresql

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/praxishq/flowengine/pkg/models"
	"github.com/praxishq/flowengine/pkg/persistence"
)

var postgresContainer *postgres.PostgresContainer

func TestMain(m *testing.M) {
	code := m.Run()

	if postgresContainer != nil {
		_ = postgresContainer.Terminate(context.Background())
	}

	os.Exit(code)
}

func setupTestDB(t *testing.T) *Persistence {
	t.Helper()

	ctx := context.Background()

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error
		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("flowengine_test"),
			postgres.WithUsername("flowengine"),
			postgres.WithPassword("flowengine"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	_, err = store.db.ExecContext(ctx, "TRUNCATE TABLE workflow_executions, workflow_definitions")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close(ctx)
	})

	return store
}

func testDefinition(id string) *models.WorkflowDefinition {
	now := time.Now().UTC().Truncate(time.Microsecond)

	return &models.WorkflowDefinition{
		ID:          id,
		Name:        "Definition " + id,
		ObjectType:  "lead",
		TriggerType: models.TriggerFieldChanged,
		TriggerConfig: &models.TriggerConfig{
			Field: "status",
			From:  "new",
			To:    "qualified",
		},
		FirstStepID: "done",
		IsActive:    true,
		Steps:       []*models.Step{{ID: "done", Kind: models.StepEnd}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func testExecution(id string) *models.WorkflowExecution {
	now := time.Now().UTC().Truncate(time.Microsecond)

	return &models.WorkflowExecution{
		ID:            id,
		WorkflowID:    "wf-1",
		ObjectType:    "lead",
		RecordID:      "rec-1",
		Status:        models.ExecutionRunning,
		CurrentStepID: "start",
		Variables:     map[string]any{"attempt": float64(1)},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestDefinitionRepository_Postgres(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	repo := store.Definitions()

	_, err := repo.ByID(ctx, "missing")
	assert.True(t, persistence.IsDefinitionNotFound(err))

	def := testDefinition("wf-1")
	require.NoError(t, repo.Save(ctx, def))

	loaded, err := repo.ByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, def.Name, loaded.Name)
	assert.Equal(t, def.TriggerType, loaded.TriggerType)
	require.NotNil(t, loaded.TriggerConfig)
	assert.Equal(t, "status", loaded.TriggerConfig.Field)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, models.StepEnd, loaded.Steps[0].Kind)

	// Save is an upsert.
	def.Name = "Renamed definition"
	def.IsActive = false
	require.NoError(t, repo.Save(ctx, def))

	loaded, err = repo.ByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed definition", loaded.Name)
	assert.False(t, loaded.IsActive)

	inactive := testDefinition("wf-2")
	inactive.IsActive = false
	require.NoError(t, repo.Save(ctx, inactive))

	otherType := testDefinition("wf-3")
	otherType.ObjectType = "invoice"
	require.NoError(t, repo.Save(ctx, otherType))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := repo.ActiveByObjectType(ctx, "invoice")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "wf-3", active[0].ID)

	require.NoError(t, repo.Delete(ctx, "wf-1"))
	assert.True(t, persistence.IsDefinitionNotFound(repo.Delete(ctx, "wf-1")))
}

func TestExecutionRepository_Postgres(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	repo := store.Executions()

	_, err := repo.ByID(ctx, "missing")
	assert.True(t, persistence.IsExecutionNotFound(err))

	exec := testExecution("exec-1")
	exec.History = []models.HistoryEntry{
		{StepID: "start", Kind: models.StepSendEmail, Status: models.HistoryStepCompleted, At: exec.CreatedAt},
	}
	require.NoError(t, repo.Create(ctx, exec))

	loaded, err := repo.ByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, exec.WorkflowID, loaded.WorkflowID)
	assert.Equal(t, models.ExecutionRunning, loaded.Status)
	assert.Equal(t, map[string]any{"attempt": float64(1)}, loaded.Variables)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, models.HistoryStepCompleted, loaded.History[0].Status)

	resumeAt := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	loaded.Status = models.ExecutionWaiting
	loaded.WaitingFor = &models.WaitingFor{Type: models.WaitDelay, ResumeAt: &resumeAt}
	loaded.NextRunAt = &resumeAt
	require.NoError(t, repo.Update(ctx, loaded))

	reloaded, err := repo.ByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionWaiting, reloaded.Status)
	require.NotNil(t, reloaded.WaitingFor)
	assert.Equal(t, models.WaitDelay, reloaded.WaitingFor.Type)
	assert.True(t, resumeAt.Equal(*reloaded.NextRunAt))

	assert.True(t, persistence.IsExecutionNotFound(repo.Update(ctx, testExecution("ghost"))))
}

func TestExecutionRepository_Postgres_Claim(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	repo := store.Executions()

	resumeAt := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	exec := testExecution("exec-claim")
	exec.Status = models.ExecutionWaiting
	exec.WaitingFor = &models.WaitingFor{Type: models.WaitDelay, ResumeAt: &resumeAt}
	exec.NextRunAt = &resumeAt
	require.NoError(t, repo.Create(ctx, exec))

	claimed, err := repo.Claim(ctx, "exec-claim")
	require.NoError(t, err)
	assert.True(t, claimed)

	loaded, err := repo.ByID(ctx, "exec-claim")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionRunning, loaded.Status)
	assert.Nil(t, loaded.WaitingFor)
	assert.Nil(t, loaded.NextRunAt)

	// The conditional update makes a second claim lose.
	claimed, err = repo.Claim(ctx, "exec-claim")
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = repo.Claim(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestExecutionRepository_Postgres_Queries(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	repo := store.Executions()

	now := time.Now().UTC().Truncate(time.Microsecond)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	due := testExecution("exec-due")
	due.Status = models.ExecutionWaiting
	due.WaitingFor = &models.WaitingFor{Type: models.WaitDelay, ResumeAt: &past}
	due.NextRunAt = &past
	require.NoError(t, repo.Create(ctx, due))

	notYet := testExecution("exec-later")
	notYet.Status = models.ExecutionWaiting
	notYet.WaitingFor = &models.WaitingFor{Type: models.WaitDelay, ResumeAt: &future}
	notYet.NextRunAt = &future
	require.NoError(t, repo.Create(ctx, notYet))

	fieldWait := testExecution("exec-field")
	fieldWait.Status = models.ExecutionWaiting
	fieldWait.WaitingFor = &models.WaitingFor{
		Type:          models.WaitFieldChange,
		Field:         "status",
		ExpectedValue: "paid",
	}
	require.NoError(t, repo.Create(ctx, fieldWait))

	stale := testExecution("exec-stale")
	stale.UpdatedAt = now.Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, stale))

	dueExecs, err := repo.Due(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, dueExecs, 1)
	assert.Equal(t, "exec-due", dueExecs[0].ID)

	waiting, err := repo.WaitingOnFieldChange(ctx, "lead", "rec-1")
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, "exec-field", waiting[0].ID)
	assert.Equal(t, "paid", waiting[0].WaitingFor.ExpectedValue)

	running, err := repo.Running(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "exec-stale", running[0].ID)

	byWorkflow, err := repo.ByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 4)
}

func TestHealthCheck_Postgres(t *testing.T) {
	store := setupTestDB(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
}
