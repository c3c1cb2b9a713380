package migrations

import (
	"gorm.io/gorm"
)

// AddDispatchIndexes creates the indexes the execution-relay and
// observability query paths depend on.
func AddDispatchIndexes(db *gorm.DB) error {
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Fill application looks executions up by order
		`CREATE INDEX IF NOT EXISTS idx_executions_sequence_number
		 ON executions(sequence_number)`,

		// Dispatch outcomes are queried per order
		`CREATE INDEX IF NOT EXISTS idx_dispatch_records_sequence_number
		 ON dispatch_records(sequence_number)`,

		// Composite index for per-target failure investigation
		`CREATE INDEX IF NOT EXISTS idx_dispatch_records_target_status
		 ON dispatch_records(target, status)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
