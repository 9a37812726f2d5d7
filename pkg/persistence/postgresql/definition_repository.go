package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/praxishq/flowengine/pkg/models"
	"github.com/praxishq/flowengine/pkg/persistence"
)

// DefinitionRepository handles workflow definition database operations.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

const definitionColumns = `id, name, description, tenant_id, object_type, trigger_type,
	trigger_config, first_step_id, steps, is_active, created_at, updated_at`

func (r *DefinitionRepository) Save(ctx context.Context, def *models.WorkflowDefinition) error {
	stepsJSON, err := json.Marshal(def.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	var triggerConfigJSON []byte
	if def.TriggerConfig != nil {
		triggerConfigJSON, err = json.Marshal(def.TriggerConfig)
		if err != nil {
			return fmt.Errorf("failed to marshal trigger config: %w", err)
		}
	}

	query := `
		INSERT INTO workflow_definitions (` + definitionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			tenant_id = EXCLUDED.tenant_id,
			object_type = EXCLUDED.object_type,
			trigger_type = EXCLUDED.trigger_type,
			trigger_config = EXCLUDED.trigger_config,
			first_step_id = EXCLUDED.first_step_id,
			steps = EXCLUDED.steps,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		def.ID,
		def.Name,
		def.Description,
		def.TenantID,
		def.ObjectType,
		def.TriggerType,
		triggerConfigJSON,
		def.FirstStepID,
		stepsJSON,
		def.IsActive,
		def.CreatedAt,
		def.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", def.ID, err)
	}

	return nil
}

func (r *DefinitionRepository) ByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE id = $1`

	def, err := r.scanDefinition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("ByID", id, persistence.ErrDefinitionNotFound)
		}

		return nil, persistence.NewStoreError("ByID", id, err)
	}

	return def, nil
}

func (r *DefinitionRepository) All(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions ORDER BY created_at`

	return r.queryDefinitions(ctx, query)
}

func (r *DefinitionRepository) ActiveByObjectType(ctx context.Context, objectType string) ([]*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions
		WHERE is_active = true AND object_type = $1 ORDER BY created_at`

	return r.queryDefinitions(ctx, query, objectType)
}

func (r *DefinitionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflow_definitions WHERE id = $1", id)
	if err != nil {
		return persistence.NewStoreError("Delete", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Delete", id, err)
	}

	if rows == 0 {
		return persistence.NewStoreError("Delete", id, persistence.ErrDefinitionNotFound)
	}

	return nil
}

func (r *DefinitionRepository) queryDefinitions(ctx context.Context, query string, args ...any) ([]*models.WorkflowDefinition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("queryDefinitions", "", err)
	}
	defer func() { _ = rows.Close() }()

	var defs []*models.WorkflowDefinition

	for rows.Next() {
		def, err := r.scanDefinition(rows)
		if err != nil {
			return nil, persistence.NewStoreError("queryDefinitions", "", err)
		}

		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewStoreError("queryDefinitions", "", err)
	}

	return defs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *DefinitionRepository) scanDefinition(row rowScanner) (*models.WorkflowDefinition, error) {
	var (
		def               models.WorkflowDefinition
		triggerConfigJSON []byte
		stepsJSON         []byte
	)

	err := row.Scan(
		&def.ID,
		&def.Name,
		&def.Description,
		&def.TenantID,
		&def.ObjectType,
		&def.TriggerType,
		&triggerConfigJSON,
		&def.FirstStepID,
		&stepsJSON,
		&def.IsActive,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(triggerConfigJSON) > 0 {
		if err := json.Unmarshal(triggerConfigJSON, &def.TriggerConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
		}
	}

	if err := json.Unmarshal(stepsJSON, &def.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	return &def, nil
}
