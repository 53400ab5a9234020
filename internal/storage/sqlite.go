// Package storage persists snapshots and last-known field values in SQLite so
// cache contents survive restarts and closed-market requests can fall back to
// the freshest values ever observed. The driver is pure Go; no cgo.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"etfcli/internal/cache"
	"etfcli/pkg/contracts/domain"
)

// SnapshotRecord is a persisted cache entry. The snapshot itself travels as
// JSON; the expiry metadata stays relational so warm starts can filter
// without unmarshaling.
type SnapshotRecord struct {
	Key               string `gorm:"primaryKey"`
	Ticker            string `gorm:"index"`
	Payload           []byte
	StoredAt          time.Time
	TTL               time.Duration
	InvalidateOnClose bool
}

// LastKnownRecord is the freshest value ever reconciled for one ticker field.
// Never expired, never invalidated: it feeds the stale-substitution path when
// the market is closed and the terminal fallback when every source is down.
type LastKnownRecord struct {
	Ticker     string `gorm:"primaryKey"`
	Field      string `gorm:"primaryKey"`
	Value      float64
	Source     string
	ObservedAt time.Time
	UpdatedAt  time.Time
}

// Store is the SQLite-backed persistence layer.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New opens (or creates) the database at path and migrates the schema.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "snapshot_store"))

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}

	if err := db.AutoMigrate(&SnapshotRecord{}, &LastKnownRecord{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot database: %w", err)
	}

	logger.Info("snapshot store ready", slog.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// SaveEntry upserts a cache entry for warm starts. Write-behind: failures are
// the caller's to log, never to surface to the request path.
func (s *Store) SaveEntry(ctx context.Context, entry cache.Entry) error {
	payload, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", entry.Key, err)
	}

	record := SnapshotRecord{
		Key:               entry.Key,
		Ticker:            entry.Snapshot.Ticker,
		Payload:           payload,
		StoredAt:          entry.CreatedAt,
		TTL:               entry.TTL,
		InvalidateOnClose: entry.InvalidateOnClose,
	}
	return s.db.WithContext(ctx).Save(&record).Error
}

// LoadEntries returns every persisted cache entry. Validity filtering happens
// on restore; records that no longer unmarshal are skipped with a warning.
func (s *Store) LoadEntries(ctx context.Context) ([]cache.Entry, error) {
	var records []SnapshotRecord
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load snapshot records: %w", err)
	}

	entries := make([]cache.Entry, 0, len(records))
	for _, record := range records {
		var snapshot domain.Snapshot
		if err := json.Unmarshal(record.Payload, &snapshot); err != nil {
			s.logger.Warn("skipping undecodable snapshot record",
				slog.String("key", record.Key),
				slog.String("error", err.Error()))
			continue
		}
		entries = append(entries, cache.Entry{
			Key:               record.Key,
			Snapshot:          &snapshot,
			CreatedAt:         record.StoredAt,
			TTL:               record.TTL,
			InvalidateOnClose: record.InvalidateOnClose,
		})
	}
	return entries, nil
}

// PruneEntries deletes snapshot records stored before the cutoff and returns
// how many went. Last-known values are never pruned.
func (s *Store) PruneEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("stored_at < ?", cutoff).
		Delete(&SnapshotRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune snapshot records: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.logger.Info("pruned snapshot records",
			slog.Int64("records", result.RowsAffected),
			slog.Time("cutoff", cutoff))
	}
	return result.RowsAffected, nil
}

// SaveLastKnown upserts the given field values as the ticker's last-known
// set. Callers pass only freshly observed values; stale substitutions must
// never overwrite the value they were substituted from.
func (s *Store) SaveLastKnown(ctx context.Context, ticker string, fields map[domain.Field]domain.FieldValue) error {
	ticker = strings.ToUpper(ticker)
	for field, fv := range fields {
		record := LastKnownRecord{
			Ticker:     ticker,
			Field:      string(field),
			Value:      fv.Value,
			Source:     string(fv.Source),
			ObservedAt: fv.ObservedAt,
		}
		if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
			return fmt.Errorf("save last-known %s/%s: %w", ticker, field, err)
		}
	}
	return nil
}

// LastKnown returns every last-known field value for a ticker. A ticker with
// no history yields an empty map, not an error.
func (s *Store) LastKnown(ctx context.Context, ticker string) (map[domain.Field]domain.FieldValue, error) {
	var records []LastKnownRecord
	if err := s.db.WithContext(ctx).Find(&records, "ticker = ?", strings.ToUpper(ticker)).Error; err != nil {
		return nil, fmt.Errorf("load last-known %s: %w", ticker, err)
	}

	fields := make(map[domain.Field]domain.FieldValue, len(records))
	for _, record := range records {
		field, ok := domain.ParseField(record.Field)
		if !ok {
			continue
		}
		fields[field] = domain.FieldValue{
			Value:      record.Value,
			Source:     domain.SourceID(record.Source),
			ObservedAt: record.ObservedAt,
		}
	}
	return fields, nil
}

// Ping verifies the database connection is usable. Readiness probes call it.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
