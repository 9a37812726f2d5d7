package memory

import (
	"context"
	"sync"

	"github.com/praxishq/flowengine/pkg/models"
	"github.com/praxishq/flowengine/pkg/persistence"
)

// DefinitionRepository stores workflow definitions in a map.
type DefinitionRepository struct {
	mu          sync.RWMutex
	definitions map[string]*models.WorkflowDefinition
}

// NewDefinitionRepository creates an empty definition repository.
func NewDefinitionRepository() *DefinitionRepository {
	return &DefinitionRepository{
		definitions: make(map[string]*models.WorkflowDefinition),
	}
}

func (r *DefinitionRepository) Save(_ context.Context, def *models.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.definitions[def.ID] = def

	return nil
}

func (r *DefinitionRepository) ByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.definitions[id]
	if !ok {
		return nil, persistence.NewStoreError("ByID", id, persistence.ErrDefinitionNotFound)
	}

	return def, nil
}

func (r *DefinitionRepository) All(_ context.Context) ([]*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*models.WorkflowDefinition, 0, len(r.definitions))
	for _, def := range r.definitions {
		defs = append(defs, def)
	}

	return defs, nil
}

func (r *DefinitionRepository) ActiveByObjectType(_ context.Context, objectType string) ([]*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var defs []*models.WorkflowDefinition

	for _, def := range r.definitions {
		if def.IsActive && def.ObjectType == objectType {
			defs = append(defs, def)
		}
	}

	return defs, nil
}

func (r *DefinitionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.definitions[id]; !ok {
		return persistence.NewStoreError("Delete", id, persistence.ErrDefinitionNotFound)
	}

	delete(r.definitions, id)

	return nil
}
