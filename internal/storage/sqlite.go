package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	CallActive = "active"
	CallEnded  = "ended"
	CallFailed = "failed"
)

// Call is the metadata kept for a finished or running call. Dialogue text is
// never stored.
type Call struct {
	ID        string     `json:"id"`
	Topic     string     `json:"topic"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Status    string     `json:"status"`
	Turns     int        `json:"turns"`
}

type QuizQuestion struct {
	Topic       string    `json:"topic"`
	Question    string    `json:"question"`
	Options     []string  `json:"options"`
	Answer      string    `json:"answer"`
	Explanation string    `json:"explanation"`
	CreatedAt   time.Time `json:"created_at"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "voice-tutor.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			turns INTEGER NOT NULL DEFAULT 0
		);
	`); err != nil {
		return fmt.Errorf("create calls table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS quiz_questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			topic TEXT NOT NULL,
			question_hash TEXT NOT NULL,
			question TEXT NOT NULL,
			options TEXT NOT NULL,
			answer TEXT NOT NULL,
			explanation TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			UNIQUE(topic, question_hash)
		);
	`); err != nil {
		return fmt.Errorf("create quiz_questions table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_calls_started_at ON calls(started_at)"); err != nil {
		return fmt.Errorf("create calls index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_quiz_questions_topic ON quiz_questions(topic, id)"); err != nil {
		return fmt.Errorf("create quiz_questions index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Snapshot writes a consistent copy of the database to path, which must not
// exist yet.
func (s *SQLiteStore) Snapshot(path string) error {
	if _, err := s.db.Exec(`VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("snapshot database to %s: %w", path, err)
	}
	return nil
}

func (s *SQLiteStore) CreateCall(id, topic string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("call id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO calls(id, topic, started_at, status) VALUES(?, ?, ?, ?)`,
		id,
		topic,
		startedAt.UTC().Format(time.RFC3339Nano),
		CallActive,
	)
	if err != nil {
		return fmt.Errorf("create call %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) EndCall(id string, endedAt time.Time, turns int, status string) error {
	if status == "" {
		status = CallEnded
	}
	res, err := s.db.Exec(
		`UPDATE calls SET ended_at = ?, status = ?, turns = ? WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339Nano),
		status,
		turns,
		id,
	)
	if err != nil {
		return fmt.Errorf("end call %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end call rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) GetCall(id string) (Call, error) {
	row := s.db.QueryRow(
		`SELECT id, topic, started_at, ended_at, status, turns FROM calls WHERE id = ?`,
		id,
	)
	c, err := scanCall(row)
	if err != nil {
		return Call{}, fmt.Errorf("query call %s: %w", id, err)
	}
	return c, nil
}

func (s *SQLiteStore) GetCallsByDate(date string) ([]Call, error) {
	rows, err := s.db.Query(
		`SELECT id, topic, started_at, ended_at, status, turns
		 FROM calls
		 WHERE substr(started_at, 1, 10) = ?
		 ORDER BY started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query calls by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	calls := make([]Call, 0, 16)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls rows: %w", err)
	}
	return calls, nil
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(started_at, 1, 10) AS date FROM calls ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

// ClaimQuestion stores q unless a question with the same hash already exists
// for the topic. It reports whether q was new.
func (s *SQLiteStore) ClaimQuestion(hash string, q QuizQuestion) (bool, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return false, fmt.Errorf("encode quiz options: %w", err)
	}
	createdAt := q.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO quiz_questions(topic, question_hash, question, options, answer, explanation, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		q.Topic,
		hash,
		q.Question,
		string(options),
		q.Answer,
		q.Explanation,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("claim quiz question for topic %s: %w", q.Topic, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim quiz question rows affected: %w", err)
	}

	return rows > 0, nil
}

// RecentQuestions returns up to limit question texts for topic, newest first.
func (s *SQLiteStore) RecentQuestions(topic string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT question FROM quiz_questions WHERE topic = ? ORDER BY id DESC LIMIT ?`,
		topic,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent questions for topic %s: %w", topic, err)
	}
	defer func() { _ = rows.Close() }()

	var questions []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question rows: %w", err)
	}
	return questions, nil
}

func (s *SQLiteStore) GetQuestions(topic string) ([]QuizQuestion, error) {
	rows, err := s.db.Query(
		`SELECT topic, question, options, answer, explanation, created_at
		 FROM quiz_questions WHERE topic = ? ORDER BY id ASC`,
		topic,
	)
	if err != nil {
		return nil, fmt.Errorf("query questions for topic %s: %w", topic, err)
	}
	defer func() { _ = rows.Close() }()

	questions := make([]QuizQuestion, 0, 16)
	for rows.Next() {
		var q QuizQuestion
		var options, createdAt string
		if err := rows.Scan(&q.Topic, &q.Question, &options, &q.Answer, &q.Explanation, &createdAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("decode quiz options: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse question created_at: %w", err)
		}
		q.CreatedAt = parsed
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question rows: %w", err)
	}
	return questions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var c Call
	var startedAt string
	var endedAt sql.NullString
	if err := row.Scan(&c.ID, &c.Topic, &startedAt, &endedAt, &c.Status, &c.Turns); err != nil {
		return Call{}, err
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Call{}, fmt.Errorf("parse call %s started_at: %w", c.ID, err)
	}
	c.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Call{}, fmt.Errorf("parse call %s ended_at: %w", c.ID, err)
		}
		c.EndedAt = &parsedEnd
	}
	return c, nil
}
