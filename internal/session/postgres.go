package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS profile_sessions (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	code             TEXT NOT NULL UNIQUE,
	assessment_type  TEXT NOT NULL,
	format           TEXT NOT NULL,
	candidate_name   TEXT NOT NULL DEFAULT '',
	candidate_role   TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'pending',
	questions        JSONB NOT NULL DEFAULT '[]',
	answers          JSONB NOT NULL DEFAULT '{}',
	current_question INTEGER NOT NULL DEFAULT 0,
	total_time_ms    BIGINT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at       TIMESTAMPTZ,
	completed_at     TIMESTAMPTZ,
	finalized_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS profile_sessions_unfinalized_idx
	ON profile_sessions (completed_at) WHERE status = 'completed' AND finalized_at IS NULL;
CREATE INDEX IF NOT EXISTS profile_sessions_type_idx
	ON profile_sessions (assessment_type, created_at DESC);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the sessions table and its indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const sessionColumns = `id, code, assessment_type, format, candidate_name, candidate_role,
	status, questions, answers, current_question, total_time_ms,
	created_at, updated_at, started_at, completed_at, finalized_at`

func (s *PostgresStore) Create(ctx context.Context, sess *Session) error {
	questionsJSON, err := json.Marshal(sess.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	answersJSON, err := json.Marshal(sess.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO profile_sessions (code, assessment_type, format, candidate_name, candidate_role,
			status, questions, answers, current_question, total_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		sess.Code, sess.AssessmentType, sess.Format, sess.CandidateName, sess.CandidateRole,
		sess.Status, questionsJSON, answersJSON, sess.CurrentQuestion, sess.TotalTimeMs,
	).Scan(&sess.ID, &sess.CreatedAt, &sess.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrCodeTaken
	}
	return err
}

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM profile_sessions WHERE code = $1`, code)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM profile_sessions WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.AssessmentType != "" {
		n++
		query += fmt.Sprintf(" AND assessment_type = $%d", n)
		args = append(args, filter.AssessmentType)
	}
	if filter.Status != nil {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(*filter.Status))
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (s *PostgresStore) Update(ctx context.Context, sess *Session) error {
	questionsJSON, err := json.Marshal(sess.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	answersJSON, err := json.Marshal(sess.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		UPDATE profile_sessions SET
			candidate_name = $2, candidate_role = $3, status = $4,
			questions = $5, answers = $6, current_question = $7, total_time_ms = $8,
			started_at = $9, completed_at = $10, finalized_at = $11,
			updated_at = now()
		WHERE code = $1
		RETURNING updated_at`,
		sess.Code, sess.CandidateName, sess.CandidateRole, sess.Status,
		questionsJSON, answersJSON, sess.CurrentQuestion, sess.TotalTimeMs,
		sess.StartedAt, sess.CompletedAt, sess.FinalizedAt,
	).Scan(&sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) ListUnfinalized(ctx context.Context, limit, offset int) ([]*Session, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM profile_sessions WHERE status = 'completed' AND finalized_at IS NULL
		ORDER BY completed_at ASC, code ASC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (s *PostgresStore) MarkFinalized(ctx context.Context, code string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE profile_sessions SET finalized_at = $2 WHERE code = $1`, code, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSession(row pgx.Row) (*Session, error) {
	sess := &Session{}
	var questionsJSON, answersJSON []byte
	var status string
	if err := row.Scan(
		&sess.ID, &sess.Code, &sess.AssessmentType, &sess.Format, &sess.CandidateName, &sess.CandidateRole,
		&status, &questionsJSON, &answersJSON, &sess.CurrentQuestion, &sess.TotalTimeMs,
		&sess.CreatedAt, &sess.UpdatedAt, &sess.StartedAt, &sess.CompletedAt, &sess.FinalizedAt,
	); err != nil {
		return nil, err
	}
	sess.Status = Status(status)
	if questionsJSON != nil {
		if err := json.Unmarshal(questionsJSON, &sess.Questions); err != nil {
			return nil, fmt.Errorf("session %s: decode questions: %w", sess.Code, err)
		}
	}
	if answersJSON != nil {
		if err := json.Unmarshal(answersJSON, &sess.Answers); err != nil {
			return nil, fmt.Errorf("session %s: decode answers: %w", sess.Code, err)
		}
	}
	return sess, nil
}

func scanSessions(rows pgx.Rows) ([]*Session, error) {
	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}
