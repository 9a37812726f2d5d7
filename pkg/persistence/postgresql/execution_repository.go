package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/praxishq/flowengine/pkg/models"
	"github.com/praxishq/flowengine/pkg/persistence"
)

// ExecutionRepository handles workflow execution database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `id, workflow_id, object_type, record_id, status, current_step_id,
	variables, waiting_for, next_run_at, history, failure_reason, created_at, updated_at, completed_at`

func (r *ExecutionRepository) Create(ctx context.Context, exec *models.WorkflowExecution) error {
	variablesJSON, waitingForJSON, historyJSON, err := marshalExecutionJSON(exec)
	if err != nil {
		return persistence.NewStoreError("Create", exec.ID, err)
	}

	query := `
		INSERT INTO workflow_executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.ExecContext(ctx, query,
		exec.ID,
		exec.WorkflowID,
		exec.ObjectType,
		exec.RecordID,
		exec.Status,
		nullString(exec.CurrentStepID),
		variablesJSON,
		waitingForJSON,
		exec.NextRunAt,
		historyJSON,
		exec.FailureReason,
		exec.CreatedAt,
		exec.UpdatedAt,
		exec.CompletedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Create", exec.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) ByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions WHERE id = $1`

	exec, err := r.scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("ByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewStoreError("ByID", id, err)
	}

	return exec, nil
}

func (r *ExecutionRepository) Update(ctx context.Context, exec *models.WorkflowExecution) error {
	variablesJSON, waitingForJSON, historyJSON, err := marshalExecutionJSON(exec)
	if err != nil {
		return persistence.NewStoreError("Update", exec.ID, err)
	}

	query := `
		UPDATE workflow_executions SET
			status = $2,
			current_step_id = $3,
			variables = $4,
			waiting_for = $5,
			next_run_at = $6,
			history = $7,
			failure_reason = $8,
			updated_at = $9,
			completed_at = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		exec.ID,
		exec.Status,
		nullString(exec.CurrentStepID),
		variablesJSON,
		waitingForJSON,
		exec.NextRunAt,
		historyJSON,
		exec.FailureReason,
		exec.UpdatedAt,
		exec.CompletedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Update", exec.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Update", exec.ID, err)
	}

	if rows == 0 {
		return persistence.NewStoreError("Update", exec.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

// Claim performs the conditional waiting -> running transition. The WHERE
// clause is the whole concurrency story: only one caller observes the row
// in waiting status, so only one RowsAffected comes back as 1.
func (r *ExecutionRepository) Claim(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE workflow_executions SET
			status = 'running',
			waiting_for = NULL,
			next_run_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = 'waiting'
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, persistence.NewStoreError("Claim", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, persistence.NewStoreError("Claim", id, err)
	}

	return rows == 1, nil
}

func (r *ExecutionRepository) Due(ctx context.Context, before time.Time, limit int) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions
		WHERE status = 'waiting' AND waiting_for->>'type' = 'delay' AND next_run_at <= $1
		ORDER BY next_run_at
		LIMIT $2`

	return r.queryExecutions(ctx, "Due", query, before, limit)
}

func (r *ExecutionRepository) WaitingOnFieldChange(ctx context.Context, objectType, recordID string) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions
		WHERE status = 'waiting' AND waiting_for->>'type' = 'field_change'
			AND object_type = $1 AND record_id = $2
		ORDER BY created_at`

	return r.queryExecutions(ctx, "WaitingOnFieldChange", query, objectType, recordID)
}

func (r *ExecutionRepository) Running(ctx context.Context, updatedBefore time.Time) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions
		WHERE status = 'running' AND updated_at < $1
		ORDER BY updated_at`

	return r.queryExecutions(ctx, "Running", query, updatedBefore)
}

func (r *ExecutionRepository) ByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowExecution, error) {
	query := `SELECT ` + executionColumns + ` FROM workflow_executions
		WHERE workflow_id = $1
		ORDER BY created_at`

	return r.queryExecutions(ctx, "ByWorkflow", query, workflowID)
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, op, query string, args ...any) ([]*models.WorkflowExecution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError(op, "", err)
	}
	defer func() { _ = rows.Close() }()

	var execs []*models.WorkflowExecution

	for rows.Next() {
		exec, err := r.scanExecution(rows)
		if err != nil {
			return nil, persistence.NewStoreError(op, "", err)
		}

		execs = append(execs, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError(op, "", err)
	}

	return execs, nil
}

func (r *ExecutionRepository) scanExecution(row rowScanner) (*models.WorkflowExecution, error) {
	var (
		exec           models.WorkflowExecution
		currentStepID  sql.NullString
		variablesJSON  []byte
		waitingForJSON []byte
		historyJSON    []byte
	)

	err := row.Scan(
		&exec.ID,
		&exec.WorkflowID,
		&exec.ObjectType,
		&exec.RecordID,
		&exec.Status,
		&currentStepID,
		&variablesJSON,
		&waitingForJSON,
		&exec.NextRunAt,
		&historyJSON,
		&exec.FailureReason,
		&exec.CreatedAt,
		&exec.UpdatedAt,
		&exec.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	exec.CurrentStepID = currentStepID.String

	if len(variablesJSON) > 0 {
		if err := json.Unmarshal(variablesJSON, &exec.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
		}
	}

	if len(waitingForJSON) > 0 {
		if err := json.Unmarshal(waitingForJSON, &exec.WaitingFor); err != nil {
			return nil, fmt.Errorf("failed to unmarshal waiting_for: %w", err)
		}
	}

	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &exec.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
	}

	return &exec, nil
}

func marshalExecutionJSON(exec *models.WorkflowExecution) (variables, waitingFor, history []byte, err error) {
	if exec.Variables != nil {
		variables, err = json.Marshal(exec.Variables)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal variables: %w", err)
		}
	}

	if exec.WaitingFor != nil {
		waitingFor, err = json.Marshal(exec.WaitingFor)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal waiting_for: %w", err)
		}
	}

	if exec.History != nil {
		history, err = json.Marshal(exec.History)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal history: %w", err)
		}
	}

	return variables, waitingFor, history, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
