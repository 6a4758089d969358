// Package store keeps the history of received messages in sqlite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"Aethertone/pkg/codec"
	"Aethertone/pkg/decoder"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

// Record is a stored message. Payload holds one byte per symbol: the
// character code in text mode, the level in voice mode.
type Record struct {
	ID         int64
	Mode       codec.Mode
	Complete   bool
	Payload    []byte
	ReceivedAt time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	raw, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := raw.Ping(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	raw.SetMaxOpenConns(1)

	db := &DB{raw}
	if err := db.migrate(); err != nil {
		raw.Close()
		return nil, err
	}
	return db, nil
}

const ddlMessages = `
CREATE TABLE IF NOT EXISTS messages (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    mode        INTEGER NOT NULL,
    complete    INTEGER NOT NULL,
    payload     BLOB    NOT NULL,
    received_at INTEGER NOT NULL -- unix milliseconds
);
CREATE INDEX IF NOT EXISTS idx_messages_received_at ON messages (received_at DESC);
`

func (db *DB) migrate() error {
	if _, err := db.Exec(ddlMessages); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// SaveMessage stores m and returns its row id.
func (db *DB) SaveMessage(m decoder.Message, at time.Time) (int64, error) {
	payload := make([]byte, 0, len(m.Symbols))
	for _, s := range m.Symbols {
		payload = append(payload, byte(s.Value))
	}

	res, err := db.Exec(
		`INSERT INTO messages (mode, complete, payload, received_at) VALUES (?, ?, ?, ?)`,
		int(m.Mode), m.Complete, payload, at.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("store: insert message: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to n messages, newest first.
func (db *DB) Recent(n int) ([]Record, error) {
	rows, err := db.Query(
		`SELECT id, mode, complete, payload, received_at FROM messages
		 ORDER BY received_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r    Record
			mode int
			ts   int64
		)
		if err := rows.Scan(&r.ID, &mode, &r.Complete, &r.Payload, &ts); err != nil {
			return nil, err
		}
		r.Mode = codec.Mode(mode)
		r.ReceivedAt = time.UnixMilli(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Message rebuilds the decoded message.
func (r Record) Message() decoder.Message {
	m := decoder.Message{Mode: r.Mode, Complete: r.Complete, Symbols: make([]codec.Symbol, len(r.Payload))}
	for i, b := range r.Payload {
		m.Symbols[i] = codec.Symbol{Mode: r.Mode, Value: int(b)}
	}
	return m
}
