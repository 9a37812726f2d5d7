// Package memory provides an in-memory persistence implementation, used by
// tests and as the default driver when no database is configured.
package memory

import (
	"context"

	"github.com/praxishq/flowengine/pkg/persistence"
)

// Persistence implements persistence.Persistence with in-process maps.
type Persistence struct {
	definitions *DefinitionRepository
	executions  *ExecutionRepository
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence() *Persistence {
	return &Persistence{
		definitions: NewDefinitionRepository(),
		executions:  NewExecutionRepository(),
	}
}

func (p *Persistence) Definitions() persistence.DefinitionRepository {
	return p.definitions
}

func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p.executions
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
