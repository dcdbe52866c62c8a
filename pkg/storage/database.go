// Package storage persists a log of every packet crossing the bridge in
// a local SQLite database.
package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound = errors.New("not found")
)

// Direction marks which way a packet crossed the bridge.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// PacketLog manages the local packet history database.
//
// Mesh floods re-deliver the same packet along different paths, so the
// log deduplicates on content hash per direction: a repeat delivery
// bumps a counter instead of inserting a new row.
type PacketLog struct {
	db *sql.DB
}

// StoredPacket is one row of the packet log.
type StoredPacket struct {
	ID          int64
	ContentHash string
	Direction   Direction
	Route       uint8
	Type        uint8
	PathLen     int
	Raw         []byte
	Sender      string // decoded public channel sender, empty otherwise
	Text        string // decoded public channel text, empty otherwise
	MsgTime     int64  // embedded group text timestamp, 0 otherwise
	SeenCount   int
	FirstSeen   int64
	LastSeen    int64
}

// NewPacketLog opens (creating if needed) the packet log at dbPath.
func NewPacketLog(dbPath string) (*PacketLog, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %v", err)
	}

	pl := &PacketLog{db: db}
	if err := pl.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return pl, nil
}

// initSchema creates database tables
func (pl *PacketLog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS packets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content_hash TEXT NOT NULL,
		direction TEXT NOT NULL,
		route INTEGER NOT NULL,
		type INTEGER NOT NULL,
		path_len INTEGER NOT NULL,
		raw BLOB NOT NULL,
		sender TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL DEFAULT '',
		msg_time INTEGER NOT NULL DEFAULT 0,
		seen_count INTEGER NOT NULL DEFAULT 1,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		UNIQUE(content_hash, direction)
	);

	CREATE INDEX IF NOT EXISTS idx_packets_last_seen ON packets(last_seen DESC);
	CREATE INDEX IF NOT EXISTS idx_packets_type ON packets(type);
	`

	if _, err := pl.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %v", err)
	}

	return nil
}

// Close closes the database.
func (pl *PacketLog) Close() error {
	return pl.db.Close()
}
