package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/xtxerr/sensorstats/internal/errors"
)

// Reading is one timestamped integer observation from a device sensor.
type Reading struct {
	DeviceUUID  string `json:"device_uuid"`
	Type        string `json:"type"`
	Value       int64  `json:"value"`
	DateCreated int64  `json:"date_created"` // Unix seconds
}

// Filter selects the readings a query runs over.
type Filter struct {
	DeviceUUID string
	Type       string // empty matches every type
	Start      *int64 // inclusive, Unix seconds
	End        *int64 // inclusive, Unix seconds
}

// Key identifies the filter for request de-duplication.
func (f Filter) Key() string {
	var b strings.Builder
	b.WriteString(f.DeviceUUID)
	b.WriteByte(0)
	b.WriteString(f.Type)
	b.WriteByte(0)
	if f.Start != nil {
		b.WriteString(time.Unix(*f.Start, 0).UTC().Format(time.RFC3339))
	}
	b.WriteByte(0)
	if f.End != nil {
		b.WriteString(time.Unix(*f.End, 0).UTC().Format(time.RFC3339))
	}
	return b.String()
}

// Where renders the filter as a parameterized WHERE clause.
// Only fixed column fragments are written into the SQL text; every
// user-supplied value travels in args.
func (f Filter) Where() (string, []interface{}) {
	clauses := []string{"device_uuid = ?"}
	args := []interface{}{f.DeviceUUID}

	if f.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, f.Type)
	}
	if f.Start != nil {
		clauses = append(clauses, "date_created >= ?")
		args = append(args, *f.Start)
	}
	if f.End != nil {
		clauses = append(clauses, "date_created <= ?")
		args = append(args, *f.End)
	}

	return strings.Join(clauses, " AND "), args
}

// Backend is the contract every reading store engine satisfies.
type Backend interface {
	// Migrate creates the readings table if it does not exist.
	Migrate(ctx context.Context) error

	// Insert appends one reading.
	Insert(ctx context.Context, r *Reading) error

	// Scan returns the readings matching f ordered by date_created.
	Scan(ctx context.Context, f Filter) ([]Reading, error)

	// Values returns the values matching f sorted ascending.
	// The result comes from a single statement and is therefore one snapshot.
	Values(ctx context.Context, f Filter) ([]int64, error)

	// Health checks connectivity.
	Health(ctx context.Context) error

	// Close releases the engine.
	Close() error
}

// =============================================================================
// DuckDB implementation
// =============================================================================

// Insert inserts a single reading.
func (s *Store) Insert(ctx context.Context, r *Reading) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO readings (device_uuid, type, value, date_created)
		VALUES (?, ?, ?, ?)
	`, r.DeviceUUID, r.Type, r.Value, r.DateCreated)
	if err != nil {
		return errors.Storage("insert reading", err)
	}
	return nil
}

// InsertBatch inserts readings in one transaction.
func (s *Store) InsertBatch(ctx context.Context, readings []Reading) error {
	if len(readings) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.TransactionContext(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO readings (device_uuid, type, value, date_created)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range readings {
			r := &readings[i]
			if _, err := stmt.ExecContext(ctx, r.DeviceUUID, r.Type, r.Value, r.DateCreated); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Storage("insert batch", err)
	}
	return nil
}

// Scan returns the readings matching f.
func (s *Store) Scan(ctx context.Context, f Filter) ([]Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	where, args := f.Where()
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_uuid, type, value, date_created
		FROM readings
		WHERE `+where+`
		ORDER BY date_created
	`, args...)
	if err != nil {
		return nil, errors.Storage("scan readings", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.DeviceUUID, &r.Type, &r.Value, &r.DateCreated); err != nil {
			return nil, errors.Storage("scan row", err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Storage("scan readings", err)
	}

	return readings, nil
}

// Values returns the values matching f sorted ascending.
func (s *Store) Values(ctx context.Context, f Filter) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	where, args := f.Where()
	rows, err := s.db.QueryContext(ctx, `
		SELECT value
		FROM readings
		WHERE `+where+`
		ORDER BY value
	`, args...)
	if err != nil {
		return nil, errors.Storage("query values", err)
	}
	defer rows.Close()

	var values []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Storage("scan value", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Storage("query values", err)
	}

	return values, nil
}
