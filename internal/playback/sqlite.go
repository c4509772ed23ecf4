package playback

import (
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mdufaud/sihdgo/internal/typedarray"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteProvider reads a durable, timestamp-ordered sequence of records
// out of a SQLite-backed recording. Records are read lazily and in
// batches rather than all at once, so a provider over a large recording
// does not need to hold it entirely in memory.
type SQLiteProvider struct {
	db *sql.DB

	mu        sync.Mutex
	rows      *sql.Rows
	lastID    int64
	drained   bool
	providing bool
}

// OpenSQLiteProvider opens (and, if necessary, creates) a recordings
// database at dsn and returns a Provider over its rows in timestamp
// order.
func OpenSQLiteProvider(dsn string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	p := &SQLiteProvider{db: db, providing: true}
	return p, nil
}

// AppendRecord persists one record, for use by a recording process that
// writes to the same database a SQLiteProvider later reads from.
func (p *SQLiteProvider) AppendRecord(record PlayableRecord) error {
	recordID := record.ID
	if recordID == "" {
		recordID = uuid.NewString()
	}
	_, err := p.db.Exec(
		`INSERT INTO records (record_id, name, timestamp_unix_nano, kind, value) VALUES (?, ?, ?, ?, ?)`,
		recordID, record.Name, record.Timestamp.UnixNano(), int(record.Value.Type()), record.Value.Buf(),
	)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

func (p *SQLiteProvider) Close() error {
	p.mu.Lock()
	if p.rows != nil {
		p.rows.Close()
	}
	p.mu.Unlock()
	return p.db.Close()
}

func (p *SQLiteProvider) Providing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.providing
}

// Provide returns the next record in timestamp order, opening a cursor
// on first use and re-querying once it runs dry in case the underlying
// table has since grown (a concurrent writer is appending records).
func (p *SQLiteProvider) Provide() (PlayableRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rows == nil {
		if err := p.openCursorLocked(); err != nil {
			p.providing = false
			return PlayableRecord{}, false
		}
	}

	if !p.rows.Next() {
		p.rows.Close()
		p.rows = nil
		if p.drained {
			p.providing = false
		}
		return PlayableRecord{}, false
	}

	var id int64
	var recordID string
	var name string
	var timestampNano int64
	var kind int
	var value []byte
	if err := p.rows.Scan(&id, &recordID, &name, &timestampNano, &kind, &value); err != nil {
		return PlayableRecord{}, false
	}
	if id > p.lastID {
		p.lastID = id
	}

	elems := len(value) / typedarray.ElemSize(typedarray.Kind(kind))
	arr, err := typedarray.New(typedarray.Kind(kind), elems)
	if err != nil {
		return PlayableRecord{}, false
	}
	if err := arr.CopyFromBytes(value, 0); err != nil {
		return PlayableRecord{}, false
	}

	return PlayableRecord{
		ID:        recordID,
		Name:      name,
		Timestamp: time.Unix(0, timestampNano),
		Value:     arr,
	}, true
}

// SetDrainedWhenExhausted marks the provider as eventually exhausted: once
// a query finds no further rows after lastID, Providing() reports false
// instead of remaining permanently true.
func (p *SQLiteProvider) SetDrainedWhenExhausted(drained bool) {
	p.mu.Lock()
	p.drained = drained
	p.mu.Unlock()
}

func (p *SQLiteProvider) openCursorLocked() error {
	rows, err := p.db.Query(
		`SELECT id, record_id, name, timestamp_unix_nano, kind, value FROM records WHERE id > ? ORDER BY timestamp_unix_nano ASC, id ASC`,
		p.lastID,
	)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	p.rows = rows
	return nil
}

var _ Provider[PlayableRecord] = (*SQLiteProvider)(nil)
