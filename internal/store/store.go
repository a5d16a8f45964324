package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eduintel/eduintel/internal/model"

	_ "modernc.org/sqlite"
)

// Store is the server-side learning history: one row per generation call
// plus completed quiz and practice results for the dashboard.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		id TEXT PRIMARY KEY,
		feature TEXT NOT NULL,
		backend TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT 'en',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error_kind TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quiz_results (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		topic TEXT NOT NULL,
		score INTEGER NOT NULL,
		total INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS practice_results (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		topic TEXT NOT NULL,
		score INTEGER NOT NULL,
		feedback TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LogGeneration records one generation call. The ID is assigned here.
func (s *Store) LogGeneration(rec model.GenerationRecord) (string, error) {
	id := uuid.NewString()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO generations (id, feature, backend, model, language, duration_ms, error_kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Feature, rec.Backend, rec.Model, rec.Language, rec.Duration, rec.ErrorKind, createdAt,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListGenerations returns the most recent generation records, newest
// first. A non-positive limit returns everything.
func (s *Store) ListGenerations(limit int) ([]model.GenerationRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, feature, backend, model, language, duration_ms, error_kind, created_at
		 FROM generations ORDER BY created_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.GenerationRecord
	for rows.Next() {
		var r model.GenerationRecord
		if err := rows.Scan(&r.ID, &r.Feature, &r.Backend, &r.Model, &r.Language, &r.Duration, &r.ErrorKind, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SaveQuizResult records a completed quiz.
func (s *Store) SaveQuizResult(res model.QuizResult) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO quiz_results (id, subject, topic, score, total, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, res.Subject, res.Topic, res.Score, res.Total, time.Now(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListQuizResults returns all quiz results, newest first.
func (s *Store) ListQuizResults() ([]model.QuizResult, error) {
	rows, err := s.db.Query(
		`SELECT id, subject, topic, score, total, created_at FROM quiz_results ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.QuizResult
	for rows.Next() {
		var r model.QuizResult
		if err := rows.Scan(&r.ID, &r.Subject, &r.Topic, &r.Score, &r.Total, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// SavePracticeResult records a scored practice answer.
func (s *Store) SavePracticeResult(res model.PracticeResult) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO practice_results (id, subject, topic, score, feedback, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, res.Subject, res.Topic, res.Score, res.Feedback, time.Now(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListPracticeResults returns all practice results, newest first.
func (s *Store) ListPracticeResults() ([]model.PracticeResult, error) {
	rows, err := s.db.Query(
		`SELECT id, subject, topic, score, feedback, created_at FROM practice_results ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.PracticeResult
	for rows.Next() {
		var r model.PracticeResult
		if err := rows.Scan(&r.ID, &r.Subject, &r.Topic, &r.Score, &r.Feedback, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Stats aggregates usage for the dashboard.
func (s *Store) Stats() (model.UsageStats, error) {
	stats := model.UsageStats{
		ByFeature:   map[model.Feature]int{},
		ByBackend:   map[model.Backend]int{},
		ByErrorKind: map[model.ErrorKind]int{},
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM generations`).Scan(&stats.TotalGenerations); err != nil {
		return stats, err
	}

	if err := countBy(s, `SELECT feature, COUNT(*) FROM generations GROUP BY feature`, stats.ByFeature); err != nil {
		return stats, err
	}
	if err := countBy(s, `SELECT backend, COUNT(*) FROM generations GROUP BY backend`, stats.ByBackend); err != nil {
		return stats, err
	}
	if err := countBy(s, `SELECT error_kind, COUNT(*) FROM generations WHERE error_kind != '' GROUP BY error_kind`, stats.ByErrorKind); err != nil {
		return stats, err
	}

	// sqlite returns NULL for AVG over an empty table.
	var avgQuiz, avgPractice sql.NullFloat64
	if err := s.db.QueryRow(`SELECT AVG(100.0 * score / total) FROM quiz_results WHERE total > 0`).Scan(&avgQuiz); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(`SELECT AVG(score) FROM practice_results`).Scan(&avgPractice); err != nil {
		return stats, err
	}
	stats.AvgQuizScore = avgQuiz.Float64
	stats.AvgPracticeScore = avgPractice.Float64

	return stats, nil
}

// Reset deletes the entire learning history.
func (s *Store) Reset() error {
	_, err := s.db.Exec(`
	DELETE FROM generations;
	DELETE FROM quiz_results;
	DELETE FROM practice_results;
	`)
	return err
}

func countBy[K ~string](s *Store, query string, dst map[K]int) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		dst[K(key)] = n
	}
	return rows.Err()
}
