package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"portalchain/core/events"
)

const (
	defaultFilePragmas = "mode=rwc&_busy_timeout=5000&_journal_mode=WAL"
	defaultListLimit   = 100
	maxListLimit       = 500
)

var (
	// ErrPathRequired is returned when the journal path is missing.
	ErrPathRequired = errors.New("journal path must be configured")
	// ErrDSNRequired is returned when a postgres journal has no DSN.
	ErrDSNRequired = errors.New("journal dsn must be configured")
)

// Entry is a committed ledger event as stored in the journal.
type Entry struct {
	Seq        int64             `json:"seq"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	RecordedAt time.Time         `json:"recordedAt"`
}

type record struct {
	Seq        int64  `gorm:"primaryKey;autoIncrement;index:idx_ledger_events_type,priority:2"`
	EventID    string `gorm:"uniqueIndex;not null"`
	Type       string `gorm:"index:idx_ledger_events_type,priority:1;not null"`
	Attributes string `gorm:"not null"`
	RecordedAt int64  `gorm:"not null"`
}

func (record) TableName() string { return "ledger_events" }

// Journal appends committed events to a SQL table so clients can page
// through ledger activity after the fact.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// FileDSN converts a filesystem path into an on-disk sqlite DSN.
func FileDSN(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrPathRequired
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve journal path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, defaultFilePragmas), nil
}

// Open initialises a sqlite journal at path.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	dsn, err := FileDSN(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(strings.TrimSpace(path)), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	j, err := openDialector(sqlite.Open(dsn), logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return nil, fmt.Errorf("journal handle: %w", err)
	}
	// sqlite serialises writers; a single connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	return j, nil
}

// OpenPostgres initialises a journal backed by the postgres database at dsn.
func OpenPostgres(dsn string, logger *slog.Logger) (*Journal, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrDSNRequired
	}
	return openDialector(postgres.Open(dsn), logger)
}

func openDialector(dialector gorm.Dialector, logger *slog.Logger) (*Journal, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.AutoMigrate(&record{}); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{db: db, logger: logger, now: time.Now}, nil
}

// Close releases database resources.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Emit implements events.Emitter. Write failures are logged rather than
// returned because the ledger state has already been committed.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || evt == nil {
		return
	}
	if _, err := j.Append(context.Background(), evt); err != nil {
		j.logger.Error("journal append failed", slog.String("kind", evt.EventType()), slog.Any("error", err))
	}
}

// Append stores evt and returns its journal entry.
func (j *Journal) Append(ctx context.Context, evt events.Event) (Entry, error) {
	entry := Entry{
		ID:         uuid.NewString(),
		Type:       evt.EventType(),
		RecordedAt: j.now().UTC(),
	}
	if payload, ok := evt.(events.Payload); ok && payload.Event() != nil {
		entry.Attributes = payload.Event().Attributes
	}
	attrs, err := json.Marshal(entry.Attributes)
	if err != nil {
		return Entry{}, fmt.Errorf("encode attributes: %w", err)
	}
	row := record{
		EventID:    entry.ID,
		Type:       entry.Type,
		Attributes: string(attrs),
		RecordedAt: entry.RecordedAt.UnixNano(),
	}
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Entry{}, fmt.Errorf("insert event: %w", err)
	}
	entry.Seq = row.Seq
	return entry, nil
}

// Query filters journal reads.
type Query struct {
	After int64
	Type  string
	Limit int
}

// List returns entries with a sequence greater than q.After in ascending
// order.
func (j *Journal) List(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	tx := j.db.WithContext(ctx).Where("seq > ?", q.After)
	if t := strings.TrimSpace(q.Type); t != "" {
		tx = tx.Where("type = ?", t)
	}
	var rows []record
	if err := tx.Order("seq ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry := Entry{
			Seq:        row.Seq,
			ID:         row.EventID,
			Type:       row.Type,
			RecordedAt: time.Unix(0, row.RecordedAt).UTC(),
		}
		if row.Attributes != "" && row.Attributes != "null" {
			if err := json.Unmarshal([]byte(row.Attributes), &entry.Attributes); err != nil {
				return nil, fmt.Errorf("decode attributes: %w", err)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}
