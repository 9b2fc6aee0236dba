package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations is the ordered schema for the assessment service. The uniqueness
// constraints on responses (child, section), question_answers (response,
// question), pool_summaries (child, pool) and final_reports (child) are the
// source of truth for idempotent generation; application-level existence
// checks are only an optimization.
var Migrations = []Migration{
	{1, "catalog", `
CREATE TABLE IF NOT EXISTS pools (
    id UUID PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    description TEXT,
    position INTEGER NOT NULL DEFAULT 0,
    weight INTEGER NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS sections (
    id UUID PRIMARY KEY,
    pool_id UUID NOT NULL REFERENCES pools(id),
    title VARCHAR(255) NOT NULL,
    description TEXT,
    position INTEGER NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS questions (
    id UUID PRIMARY KEY,
    section_id UUID NOT NULL REFERENCES sections(id),
    question_key VARCHAR(100) NOT NULL,
    text TEXT NOT NULL,
    min_age_months INTEGER NOT NULL DEFAULT 0,
    max_age_months INTEGER NOT NULL DEFAULT 120,
    max_score INTEGER NOT NULL DEFAULT 4,
    position INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (section_id, question_key)
);`},
	{2, "clinical", `
CREATE TABLE IF NOT EXISTS children (
    id UUID PRIMARY KEY,
    first_name VARCHAR(100) NOT NULL,
    last_name VARCHAR(100) NOT NULL,
    date_of_birth DATE NOT NULL,
    gender VARCHAR(20) NOT NULL,
    parent_name VARCHAR(200),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`},
	{3, "assessment", `
CREATE TABLE IF NOT EXISTS responses (
    id UUID PRIMARY KEY,
    child_id UUID NOT NULL REFERENCES children(id),
    section_id UUID NOT NULL REFERENCES sections(id),
    status VARCHAR(20) NOT NULL DEFAULT 'NOT_STARTED',
    total_score INTEGER,
    max_possible_score INTEGER,
    completed_at TIMESTAMPTZ,
    unanswered_questions JSONB NOT NULL DEFAULT '[]',
    assessment_language VARCHAR(50) NOT NULL DEFAULT 'en',
    last_conversation_id UUID,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (child_id, section_id)
);
CREATE TABLE IF NOT EXISTS question_answers (
    id UUID PRIMARY KEY,
    response_id UUID NOT NULL REFERENCES responses(id),
    question_id UUID NOT NULL REFERENCES questions(id),
    raw_answer TEXT NOT NULL,
    translated_answer TEXT,
    answer_bucket VARCHAR(50) NOT NULL,
    score INTEGER NOT NULL,
    answered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (response_id, question_id)
);
CREATE TABLE IF NOT EXISTS conversation_logs (
    id UUID PRIMARY KEY,
    response_id UUID NOT NULL REFERENCES responses(id),
    conversation JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`},
	{4, "report", `
CREATE TABLE IF NOT EXISTS pool_summaries (
    id UUID PRIMARY KEY,
    child_id UUID NOT NULL REFERENCES children(id) ON DELETE CASCADE,
    pool_id UUID NOT NULL,
    pool_title VARCHAR(255) NOT NULL,
    summary_content JSONB NOT NULL,
    total_sections INTEGER NOT NULL DEFAULT 0,
    completed_sections INTEGER NOT NULL DEFAULT 0,
    total_score INTEGER,
    max_possible_score INTEGER,
    not_applicable BOOLEAN NOT NULL DEFAULT FALSE,
    generated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (child_id, pool_id)
);
CREATE TABLE IF NOT EXISTS final_reports (
    id UUID PRIMARY KEY,
    child_id UUID NOT NULL UNIQUE REFERENCES children(id) ON DELETE CASCADE,
    overall_summary JSONB NOT NULL,
    total_pools INTEGER NOT NULL DEFAULT 0,
    completed_pools INTEGER NOT NULL DEFAULT 0,
    overall_score INTEGER,
    overall_max_score INTEGER,
    concern_index DOUBLE PRECISION,
    concern_band VARCHAR(20),
    doctor_reviewed_at TIMESTAMPTZ,
    doctor_reviewed_by VARCHAR(100),
    doctor_review_notes TEXT,
    hod_reviewed_at TIMESTAMPTZ,
    hod_reviewed_by VARCHAR(100),
    hod_review_notes TEXT,
    generated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`},
}

// Migrate applies all pending migrations in order, tracking versions in a
// _migrations table.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS _migrations (
    version INTEGER PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	if err != nil {
		return fmt.Errorf("create _migrations table: %w", err)
	}

	for _, m := range Migrations {
		var exists bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM _migrations WHERE version = $1)`, m.Version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists {
			continue
		}
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := pool.Exec(ctx,
			`INSERT INTO _migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}
