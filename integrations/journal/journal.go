// Package journal persists flattened ledger events into a SQL database so they
// can be queried after the fact.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cryptoavisos/core/events"
)

// Entry is a single persisted event.
type Entry struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position   uint64    `gorm:"uniqueIndex;not null"`
	Type       string    `gorm:"size:64;index"`
	TicketID   string    `gorm:"size:66;index"`
	ProductID  string    `gorm:"size:20;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

// Record decodes the stored attributes back into an event record.
func (e Entry) Record() (*events.Record, error) {
	attrs := map[string]string{}
	if e.Attributes != "" {
		if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
			return nil, err
		}
	}
	return &events.Record{Type: e.Type, Attributes: attrs}, nil
}

// Filter narrows a journal query. Zero fields match everything.
type Filter struct {
	Type      string
	TicketID  string
	ProductID string
	Limit     int
}

const defaultLimit = 100

// Journal is an events.Emitter writing every event it receives to the
// database in arrival order.
type Journal struct {
	mu     sync.Mutex
	db     *gorm.DB
	logger *slog.Logger
	next   uint64
}

// Open opens (or creates) the sqlite journal at path. The special path
// ":memory:" keeps the journal in memory.
func Open(path string, log *slog.Logger) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	return New(db, log)
}

// New wraps an existing gorm handle, migrating the entry table.
func New(db *gorm.DB, log *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, errors.New("journal: database required")
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	var last Entry
	next := uint64(1)
	err := db.Order("position desc").Limit(1).Take(&last).Error
	switch {
	case err == nil:
		next = last.Position + 1
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return &Journal{db: db, logger: log.With("component", "journal"), next: next}, nil
}

// Emit implements events.Emitter. Failures are logged; the ledger has already
// committed by the time events are published.
func (j *Journal) Emit(evt events.Event) {
	if err := j.Append(context.Background(), evt); err != nil {
		j.logger.Error("journal append failed", "type", evt.EventType(), "error", err)
	}
}

// Append stores evt and returns once it is written.
func (j *Journal) Append(ctx context.Context, evt events.Event) error {
	rec := events.ToRecord(evt)
	if rec == nil {
		return nil
	}
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return err
	}
	entry := Entry{
		ID:         uuid.New(),
		Type:       rec.Type,
		TicketID:   rec.Attributes["ticketId"],
		ProductID:  rec.Attributes["productId"],
		Attributes: string(attrs),
		CreatedAt:  time.Now().UTC(),
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	entry.Position = j.next
	if err := j.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return err
	}
	j.next++
	return nil
}

// List returns entries matching f in the order they were journaled.
func (j *Journal) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := j.db.WithContext(ctx).Model(&Entry{})
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.TicketID != "" {
		query = query.Where("ticket_id = ?", f.TicketID)
	}
	if f.ProductID != "" {
		query = query.Where("product_id = ?", f.ProductID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	var entries []Entry
	if err := query.Order("position asc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
