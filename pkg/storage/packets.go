package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/meshcore-tools/meshbridge/pkg/crypto"
	"github.com/meshcore-tools/meshbridge/pkg/protocol"
)

// Save records a raw packet in the log. Packets that decode as public
// channel group texts under secret are stored with their sender, text,
// and embedded timestamp; everything else keeps empty decoded fields.
// A packet already logged in the same direction bumps its seen counter.
func (pl *PacketLog) Save(raw []byte, direction Direction, secret []byte) error {
	contentHash, err := crypto.HashString(raw)
	if err != nil {
		return fmt.Errorf("failed to hash packet: %v", err)
	}

	var route, ptype uint8
	var pathLen int
	var sender, text string
	var msgTime int64

	if pkt, err := protocol.DecodePacket(raw); err == nil {
		route = uint8(pkt.Header.Route)
		ptype = uint8(pkt.Header.Type)
		pathLen = len(pkt.Path)

		if gt, err := crypto.OpenGroupTextPacket(secret, pkt); err == nil {
			sender = gt.Sender
			text = gt.Text
			msgTime = int64(gt.Timestamp)
		}
	}

	now := time.Now().Unix()

	query := `
		INSERT INTO packets (
			content_hash, direction, route, type, path_len, raw,
			sender, text, msg_time, first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash, direction) DO UPDATE SET
			seen_count = seen_count + 1,
			last_seen = excluded.last_seen
	`

	_, err = pl.db.Exec(
		query,
		contentHash,
		direction,
		route,
		ptype,
		pathLen,
		raw,
		sender,
		text,
		msgTime,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save packet: %v", err)
	}

	return nil
}

// Recent returns the most recently seen packets, newest first.
func (pl *PacketLog) Recent(limit int) ([]*StoredPacket, error) {
	query := `
		SELECT id, content_hash, direction, route, type, path_len, raw,
		       sender, text, msg_time, seen_count, first_seen, last_seen
		FROM packets
		ORDER BY last_seen DESC, id DESC
		LIMIT ?
	`

	rows, err := pl.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packets []*StoredPacket
	for rows.Next() {
		p, err := scanPacket(rows)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}

	return packets, rows.Err()
}

// GetByHash retrieves a logged packet by content hash and direction.
func (pl *PacketLog) GetByHash(contentHash string, direction Direction) (*StoredPacket, error) {
	query := `
		SELECT id, content_hash, direction, route, type, path_len, raw,
		       sender, text, msg_time, seen_count, first_seen, last_seen
		FROM packets
		WHERE content_hash = ? AND direction = ?
	`

	row := pl.db.QueryRow(query, contentHash, direction)

	p, err := scanPacket(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return p, nil
}

// Counts returns how many distinct packets are logged per direction.
func (pl *PacketLog) Counts() (sent, received int64, err error) {
	query := `SELECT direction, COUNT(*) FROM packets GROUP BY direction`

	rows, err := pl.db.Query(query)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var direction Direction
		var count int64
		if err := rows.Scan(&direction, &count); err != nil {
			return 0, 0, err
		}

		switch direction {
		case DirectionSent:
			sent = count
		case DirectionReceived:
			received = count
		}
	}

	return sent, received, rows.Err()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPacket(s scanner) (*StoredPacket, error) {
	var p StoredPacket

	err := s.Scan(
		&p.ID,
		&p.ContentHash,
		&p.Direction,
		&p.Route,
		&p.Type,
		&p.PathLen,
		&p.Raw,
		&p.Sender,
		&p.Text,
		&p.MsgTime,
		&p.SeenCount,
		&p.FirstSeen,
		&p.LastSeen,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}
