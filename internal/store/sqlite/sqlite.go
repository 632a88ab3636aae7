// Package sqlite is the alternate reading store engine, backed by SQLite
// through GORM. It is selected with store.driver: sqlite.
package sqlite

import (
	"context"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/xtxerr/sensorstats/internal/errors"
	"github.com/xtxerr/sensorstats/internal/logging"
	"github.com/xtxerr/sensorstats/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var log = logging.Component("store.sqlite")

// Reading is the GORM model for the readings table.
// The table has no primary key: duplicate readings are valid.
type Reading struct {
	DeviceUUID  string `gorm:"column:device_uuid;not null;index:idx_readings_device_time,priority:1"`
	Type        string `gorm:"column:type;not null"`
	Value       int64  `gorm:"column:value;not null"`
	DateCreated int64  `gorm:"column:date_created;not null;index:idx_readings_device_time,priority:2"`
}

// TableName pins the table name used by the DuckDB engine as well.
func (Reading) TableName() string {
	return "readings"
}

// Backend is the SQLite reading store.
type Backend struct {
	db *gorm.DB

	mu     sync.RWMutex
	closed bool
}

var _ store.Backend = (*Backend)(nil)

// Open opens the SQLite database at filename.
// An empty filename opens a private in-memory database.
func Open(filename string) (*Backend, error) {
	if filename == "" {
		filename = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(filename), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql handle")
	}
	// SQLite allows one writer; a single connection serializes access and
	// keeps an in-memory database shared across queries.
	sqlDB.SetMaxOpenConns(1)

	log.Debug("store opened", "file", filename)

	return &Backend{db: db}, nil
}

func (b *Backend) checkOpen() error {
	if b.closed {
		return errors.ErrStoreClosed
	}
	return nil
}

// Migrate creates the readings table and index if missing.
func (b *Backend) Migrate(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return err
	}

	if err := b.db.WithContext(ctx).AutoMigrate(&Reading{}); err != nil {
		return errors.Storage("migrate readings", err)
	}

	log.Info("schema ready", "table", "readings")
	return nil
}

// Insert appends one reading.
func (b *Backend) Insert(ctx context.Context, r *store.Reading) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return err
	}

	row := Reading{
		DeviceUUID:  r.DeviceUUID,
		Type:        r.Type,
		Value:       r.Value,
		DateCreated: r.DateCreated,
	}
	if tx := b.db.WithContext(ctx).Create(&row); tx.Error != nil {
		return errors.Storage("insert reading", tx.Error)
	}
	return nil
}

// Scan returns the readings matching f ordered by date_created.
func (b *Backend) Scan(ctx context.Context, f store.Filter) ([]store.Reading, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var rows []Reading
	tx := b.query(ctx, f).Order("date_created asc").Find(&rows)
	if tx.Error != nil {
		return nil, errors.Storage("scan readings", tx.Error)
	}

	result := make([]store.Reading, len(rows))
	for idx, row := range rows {
		result[idx] = store.Reading{
			DeviceUUID:  row.DeviceUUID,
			Type:        row.Type,
			Value:       row.Value,
			DateCreated: row.DateCreated,
		}
	}
	return result, nil
}

// Values returns the values matching f sorted ascending.
func (b *Backend) Values(ctx context.Context, f store.Filter) ([]int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var values []int64
	tx := b.query(ctx, f).Order("value asc").Pluck("value", &values)
	if tx.Error != nil {
		return nil, errors.Storage("query values", tx.Error)
	}
	return values, nil
}

// query builds the filtered base query from the same parameterized clause
// the DuckDB engine uses.
func (b *Backend) query(ctx context.Context, f store.Filter) *gorm.DB {
	where, args := f.Where()
	return b.db.WithContext(ctx).Model(&Reading{}).Where(where, args...)
}

// Health checks connectivity.
func (b *Backend) Health(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkOpen(); err != nil {
		return err
	}

	sqlDB, err := b.db.DB()
	if err != nil {
		return errors.Storage("get sql handle", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Storage("ping", err)
	}
	return nil
}

// Close closes the database.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
