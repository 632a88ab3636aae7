package store

import (
	"context"
	"database/sql"

	"github.com/xtxerr/sensorstats/internal/errors"
)

// schemaStatements create the readings table. Every statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS readings (
		device_uuid  VARCHAR NOT NULL,
		type         VARCHAR NOT NULL,
		value        BIGINT  NOT NULL,
		date_created BIGINT  NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_readings_device_time
		ON readings (device_uuid, date_created)`,
}

// Migrate creates the schema if it does not exist.
// It is run once during service initialization.
func (s *Store) Migrate(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.TransactionContext(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Storage("migrate", err)
	}

	log.Info("schema ready", "table", "readings")
	return nil
}
