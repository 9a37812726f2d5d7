package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflow_definitions (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				tenant_id VARCHAR(255) NOT NULL DEFAULT '',
				object_type VARCHAR(255) NOT NULL,
				trigger_type VARCHAR(50) NOT NULL,
				trigger_config JSONB,
				first_step_id VARCHAR(255) NOT NULL,
				steps JSONB NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_definitions_object_type ON workflow_definitions(object_type);
			CREATE INDEX idx_definitions_is_active ON workflow_definitions(is_active);

			CREATE TABLE workflow_executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflow_definitions(id),
				object_type VARCHAR(255) NOT NULL,
				record_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'waiting', 'completed', 'failed', 'cancelled')),
				current_step_id VARCHAR(255),
				variables JSONB,
				waiting_for JSONB,
				next_run_at TIMESTAMP WITH TIME ZONE,
				history JSONB,
				failure_reason TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_workflow_id ON workflow_executions(workflow_id);
			CREATE INDEX idx_executions_status ON workflow_executions(status);
			CREATE INDEX idx_executions_next_run_at ON workflow_executions(next_run_at) WHERE status = 'waiting';
			CREATE INDEX idx_executions_record ON workflow_executions(object_type, record_id) WHERE status = 'waiting';
		`,
	}
}
