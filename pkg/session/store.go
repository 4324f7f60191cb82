package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/raro-catalog/bibliofind/pkg/planquery"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	session_id TEXT PRIMARY KEY,
	user_id TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	phase TEXT NOT NULL CHECK (phase IN ('query_definition','corpus_exploration')),
	expired_at TEXT
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES chat_sessions(session_id),
	role TEXT NOT NULL CHECK (role IN ('user','assistant','system')),
	content TEXT NOT NULL,
	query_plan TEXT,
	candidate_set BLOB,
	timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id);

CREATE TABLE IF NOT EXISTS active_subgroups (
	session_id TEXT PRIMARY KEY REFERENCES chat_sessions(session_id),
	defining_query TEXT NOT NULL,
	filter_summary TEXT NOT NULL,
	record_ids TEXT NOT NULL,
	candidate_count INTEGER NOT NULL,
	candidate_set BLOB,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_goals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES chat_sessions(session_id),
	goal TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_goals_session ON user_goals(session_id);
`

// Store is the Session Store (spec.md §4.7): a SQLite-backed handle
// with per-session locking layered over the teacher's mutex-guarded
// *sql.DB idiom (internal/store.Store), generalized here with a lock
// keyed by session_id instead of a single store-wide RWMutex, since
// spec.md §5 requires different sessions to proceed concurrently while
// a single session's turns are serialized.
type Store struct {
	db *sql.DB

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore opens (or creates) a SQLite database at dsn and applies the schema.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: apply schema: %w", err)
	}

	return &Store{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for callers that need direct access
// (mirrors internal/store.Store.DB).
func (s *Store) DB() *sql.DB { return s.db }

// Lock returns the per-session mutex for sessionID, creating it if
// needed. The controller holds this for the duration of one turn
// (spec.md §5: "a turn is an atomic unit ... holds an exclusive
// per-session lock for its duration").
func (s *Store) Lock(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[sessionID] = m
	}
	return m
}

func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// CreateSession inserts a new session in the query_definition phase and returns its id.
func (s *Store) CreateSession(userID string) (string, error) {
	id := uuid.NewString()
	ts := nowUTC()
	_, err := s.db.Exec(
		`INSERT INTO chat_sessions(session_id, user_id, created_at, updated_at, phase) VALUES (?, ?, ?, ?, ?)`,
		id, nullableString(userID), ts, ts, string(PhaseQueryDefinition),
	)
	if err != nil {
		return "", fmt.Errorf("session: create: %w", err)
	}
	return id, nil
}

// LoadSession loads a session with its messages, active subgroup, and
// goals. Excludes expired sessions unless includeExpired is true
// (spec.md §4.7: "a session with expired_at != null is excluded from
// load_session unless explicitly requested").
func (s *Store) LoadSession(sessionID string, includeExpired bool) (ChatSession, error) {
	var cs ChatSession
	var userID, expiredAt sql.NullString
	row := s.db.QueryRow(
		`SELECT session_id, user_id, created_at, updated_at, phase, expired_at FROM chat_sessions WHERE session_id = ?`,
		sessionID,
	)
	var phase string
	if err := row.Scan(&cs.SessionID, &userID, &cs.CreatedAt, &cs.UpdatedAt, &phase, &expiredAt); err != nil {
		if err == sql.ErrNoRows {
			return ChatSession{}, invalidSession(sessionID)
		}
		return ChatSession{}, fmt.Errorf("session: load: %w", err)
	}
	if expiredAt.Valid && expiredAt.String != "" && !includeExpired {
		return ChatSession{}, invalidSession(sessionID)
	}

	cs.UserID = userID.String
	cs.Phase = Phase(phase)
	cs.ExpiredAt = expiredAt.String

	msgs, err := s.loadMessages(sessionID)
	if err != nil {
		return ChatSession{}, err
	}
	cs.Messages = msgs

	sub, err := s.loadActiveSubgroup(sessionID)
	if err != nil {
		return ChatSession{}, err
	}
	cs.ActiveSubgroup = sub

	goals, err := s.loadGoals(sessionID)
	if err != nil {
		return ChatSession{}, err
	}
	cs.UserGoals = goals

	return cs, nil
}

func (s *Store) loadMessages(sessionID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, role, content, query_plan, candidate_set, timestamp FROM chat_messages WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Message
	for rows.Next() {
		var m Message
		var role string
		var planJSON sql.NullString
		var candidateSet []byte
		if err := rows.Scan(&m.ID, &role, &m.Content, &planJSON, &candidateSet, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		m.CandidateSet = candidateSet
		if planJSON.Valid && planJSON.String != "" {
			var plan planquery.QueryPlan
			if err := json.Unmarshal([]byte(planJSON.String), &plan); err == nil {
				m.QueryPlan = &plan
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) loadActiveSubgroup(sessionID string) (*ActiveSubgroup, error) {
	var sub ActiveSubgroup
	var recordIDsJSON string
	err := s.db.QueryRow(
		`SELECT defining_query, filter_summary, record_ids, candidate_count, candidate_set, created_at FROM active_subgroups WHERE session_id = ?`,
		sessionID,
	).Scan(&sub.DefiningQuery, &sub.FilterSummary, &recordIDsJSON, &sub.CandidateCount, &sub.CandidateSet, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(recordIDsJSON), &sub.RecordIDs); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) loadGoals(sessionID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT goal FROM user_goals WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// AppendMessage appends msg to sessionID and bumps updated_at.
func (s *Store) AppendMessage(sessionID string, msg Message) error {
	var planJSON sql.NullString
	if msg.QueryPlan != nil {
		b, err := json.Marshal(msg.QueryPlan)
		if err != nil {
			return err
		}
		planJSON = sql.NullString{String: string(b), Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO chat_messages(session_id, role, content, query_plan, candidate_set, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, string(msg.Role), msg.Content, planJSON, msg.CandidateSet, nowUTC(),
	); err != nil {
		return fmt.Errorf("session: append message: %w", err)
	}

	if err := touchSession(tx, sessionID); err != nil {
		return err
	}

	return tx.Commit()
}

// SetActiveSubgroup replaces any existing active subgroup for sessionID.
func (s *Store) SetActiveSubgroup(sessionID string, sub ActiveSubgroup) error {
	recordIDsJSON, err := json.Marshal(sub.RecordIDs)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM active_subgroups WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("session: clear active subgroup: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO active_subgroups(session_id, defining_query, filter_summary, record_ids, candidate_count, candidate_set, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, sub.DefiningQuery, sub.FilterSummary, string(recordIDsJSON), sub.CandidateCount, sub.CandidateSet, nowUTC(),
	); err != nil {
		return fmt.Errorf("session: set active subgroup: %w", err)
	}
	if err := touchSession(tx, sessionID); err != nil {
		return err
	}

	return tx.Commit()
}

// ClearActiveSubgroup removes sessionID's active subgroup, if any.
func (s *Store) ClearActiveSubgroup(sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM active_subgroups WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("session: clear active subgroup: %w", err)
	}
	if err := touchSession(tx, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// SetPhase transitions sessionID to phase.
func (s *Store) SetPhase(sessionID string, phase Phase) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`UPDATE chat_sessions SET phase = ?, updated_at = ? WHERE session_id = ?`, string(phase), nowUTC(), sessionID); err != nil {
		return fmt.Errorf("session: set phase: %w", err)
	}
	return tx.Commit()
}

// ExpireSession soft-deletes sessionID by setting expired_at (spec.md §4.7: "does not delete").
func (s *Store) ExpireSession(sessionID string) error {
	_, err := s.db.Exec(`UPDATE chat_sessions SET expired_at = ?, updated_at = ? WHERE session_id = ?`, nowUTC(), nowUTC(), sessionID)
	if err != nil {
		return fmt.Errorf("session: expire: %w", err)
	}
	return nil
}

// DeleteSession cascades: removes the session's messages, active
// subgroup, user-goal rows, and the session row itself (spec.md §4.7).
func (s *Store) DeleteSession(sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"chat_messages", "active_subgroups", "user_goals"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("session: cascade delete %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM chat_sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("session: delete session: %w", err)
	}
	return tx.Commit()
}

func touchSession(tx *sql.Tx, sessionID string) error {
	if _, err := tx.Exec(`UPDATE chat_sessions SET updated_at = ? WHERE session_id = ?`, nowUTC(), sessionID); err != nil {
		return fmt.Errorf("session: touch: %w", err)
	}
	return nil
}

func nullableString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
