package main

import (
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Log entry kinds. A "line" is text addressed to one player (recipient =
// nickname) or to everyone (recipient = sysNick); a "ctrl" is a client
// control signal with no recipient.
const (
	logKindLine = "line"
	logKindCtrl = "ctrl"
)

// Control signal payloads.
const (
	// CtrlDropInput tells a session to discard its current input prompt.
	CtrlDropInput = "drop_input"
)

// maxLogEntries is the per-room cap; past it the oldest half is trimmed.
const maxLogEntries = 50000

// LogEntry is one row of a room's append-only message log.
type LogEntry struct {
	Seq       int64  `db:"seq"`
	RoomID    string `db:"room_id"`
	Recipient string `db:"recipient"` // nickname, sysNick, or "" for ctrl
	Kind      string `db:"kind"`
	Body      string `db:"body"`
}

// IsBroadcast reports whether the entry is addressed to the whole room.
func (e LogEntry) IsBroadcast() bool { return e.Kind == logKindLine && e.Recipient == sysNick }

// IsPrivateTo reports whether the entry is a line addressed to nick.
func (e LogEntry) IsPrivateTo(nick string) bool {
	return e.Kind == logKindLine && e.Recipient == nick
}

// LogStore holds every room's message log in one sqlite table. The database
// is in-memory by default, so the log lives and dies with the process; seq
// is AUTOINCREMENT and stays monotonic across trims, which keeps lagging
// cursors valid — they just skip whatever a trim removed.
type LogStore struct {
	db *sqlx.DB
	mu sync.Mutex // serializes append+trim so the cap check is not racy
}

const logSchema = `
CREATE TABLE IF NOT EXISTS room_log (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id TEXT NOT NULL,
	recipient TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL,
	body TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_room_log_tail ON room_log(room_id, seq);
`

func NewLogStore(db *sqlx.DB) (*LogStore, error) {
	if _, err := db.Exec(logSchema); err != nil {
		return nil, fmt.Errorf("init log schema: %w", err)
	}
	return &LogStore{db: db}, nil
}

// AppendLine appends a private line for one player.
func (s *LogStore) AppendLine(roomID, nick, text string) error {
	return s.append(roomID, nick, logKindLine, text)
}

// AppendBroadcast appends a line visible to the whole room.
func (s *LogStore) AppendBroadcast(roomID, text string) error {
	return s.append(roomID, sysNick, logKindLine, text)
}

// AppendControl appends a client control signal.
func (s *LogStore) AppendControl(roomID, ctrl string) error {
	return s.append(roomID, "", logKindCtrl, ctrl)
}

func (s *LogStore) append(roomID, recipient, kind, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO room_log (room_id, recipient, kind, body) VALUES (?, ?, ?, ?)`,
		roomID, recipient, kind, body)
	if err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}

	var count int
	if err := s.db.Get(&count, `SELECT COUNT(*) FROM room_log WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("count log entries: %w", err)
	}
	if count > maxLogEntries {
		// Keep the most recent half. A cursor that lags past the trimmed
		// window misses those entries for good; sessions poll fast enough
		// that this has not been a problem in practice.
		_, err := s.db.Exec(`
			DELETE FROM room_log WHERE room_id = ? AND seq IN (
				SELECT seq FROM room_log WHERE room_id = ? ORDER BY seq LIMIT ?
			)`, roomID, roomID, count/2)
		if err != nil {
			return fmt.Errorf("trim log: %w", err)
		}
	}
	return nil
}

// TailAfter returns, in append order, every entry of a room's log with a
// sequence number greater than cursor.
func (s *LogStore) TailAfter(roomID string, cursor int64) ([]LogEntry, error) {
	var entries []LogEntry
	err := s.db.Select(&entries, `
		SELECT seq, room_id, recipient, kind, body
		FROM room_log
		WHERE room_id = ? AND seq > ?
		ORDER BY seq`, roomID, cursor)
	if err != nil {
		return nil, fmt.Errorf("tail log: %w", err)
	}
	return entries, nil
}

// LatestSeq returns the sequence number of a room's newest entry, 0 for an
// empty log. Joining sessions start their cursor here so they only see
// traffic from their own join onward.
func (s *LogStore) LatestSeq(roomID string) (int64, error) {
	var seq int64
	err := s.db.Get(&seq, `SELECT COALESCE(MAX(seq), 0) FROM room_log WHERE room_id = ?`, roomID)
	return seq, err
}

// Count returns the number of live entries for a room.
func (s *LogStore) Count(roomID string) (int, error) {
	var count int
	err := s.db.Get(&count, `SELECT COUNT(*) FROM room_log WHERE room_id = ?`, roomID)
	return count, err
}

// Purge removes a room's entire log. Called when the room is deregistered.
func (s *LogStore) Purge(roomID string) error {
	_, err := s.db.Exec(`DELETE FROM room_log WHERE room_id = ?`, roomID)
	return err
}
