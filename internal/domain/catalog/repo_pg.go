package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Pool Repository ===========

type poolRepoPG struct{ pool *pgxpool.Pool }

func NewPoolRepoPG(pool *pgxpool.Pool) PoolRepository {
	return &poolRepoPG{pool: pool}
}

const poolCols = `id, title, description, position, weight, is_active, created_at, updated_at`

func scanPool(row pgx.Row) (*Pool, error) {
	var p Pool
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Position, &p.Weight, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *poolRepoPG) Create(ctx context.Context, p *Pool) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO pools (id, title, description, position, weight, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.Title, p.Description, p.Position, p.Weight, p.IsActive)
	return err
}

func (r *poolRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Pool, error) {
	return scanPool(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+poolCols+` FROM pools WHERE id = $1`, id))
}

func (r *poolRepoPG) ListActive(ctx context.Context) ([]*Pool, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+poolCols+` FROM pools WHERE is_active ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *poolRepoPG) List(ctx context.Context, limit, offset int) ([]*Pool, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM pools`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+poolCols+` FROM pools ORDER BY position LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *poolRepoPG) Update(ctx context.Context, p *Pool) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE pools SET title=$2, description=$3, position=$4, weight=$5, is_active=$6, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Title, p.Description, p.Position, p.Weight, p.IsActive)
	return err
}

func (r *poolRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `UPDATE pools SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// =========== Section Repository ===========

type sectionRepoPG struct{ pool *pgxpool.Pool }

func NewSectionRepoPG(pool *pgxpool.Pool) SectionRepository {
	return &sectionRepoPG{pool: pool}
}

const sectionCols = `id, pool_id, title, description, position, is_active, created_at, updated_at`

func scanSection(row pgx.Row) (*Section, error) {
	var s Section
	err := row.Scan(&s.ID, &s.PoolID, &s.Title, &s.Description, &s.Position, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *sectionRepoPG) Create(ctx context.Context, s *Section) error {
	s.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO sections (id, pool_id, title, description, position, is_active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.PoolID, s.Title, s.Description, s.Position, s.IsActive)
	return err
}

func (r *sectionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Section, error) {
	return scanSection(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+sectionCols+` FROM sections WHERE id = $1`, id))
}

func (r *sectionRepoPG) ListActiveByPool(ctx context.Context, poolID uuid.UUID) ([]*Section, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+sectionCols+` FROM sections WHERE pool_id = $1 AND is_active ORDER BY position`, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *sectionRepoPG) List(ctx context.Context, limit, offset int) ([]*Section, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM sections`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+sectionCols+` FROM sections ORDER BY pool_id, position LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *sectionRepoPG) Update(ctx context.Context, s *Section) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE sections SET title=$2, description=$3, position=$4, is_active=$5, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Title, s.Description, s.Position, s.IsActive)
	return err
}

func (r *sectionRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `UPDATE sections SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// =========== Question Repository ===========

type questionRepoPG struct{ pool *pgxpool.Pool }

func NewQuestionRepoPG(pool *pgxpool.Pool) QuestionRepository {
	return &questionRepoPG{pool: pool}
}

const questionCols = `id, section_id, question_key, text, min_age_months, max_age_months, max_score, position, created_at, updated_at`

func scanQuestion(row pgx.Row) (*Question, error) {
	var q Question
	err := row.Scan(&q.ID, &q.SectionID, &q.Key, &q.Text, &q.MinAgeMonths, &q.MaxAgeMonths,
		&q.MaxScore, &q.Position, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &q, err
}

func (r *questionRepoPG) Create(ctx context.Context, q *Question) error {
	q.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO questions (id, section_id, question_key, text, min_age_months, max_age_months, max_score, position)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		q.ID, q.SectionID, q.Key, q.Text, q.MinAgeMonths, q.MaxAgeMonths, q.MaxScore, q.Position)
	return err
}

func (r *questionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Question, error) {
	return scanQuestion(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+questionCols+` FROM questions WHERE id = $1`, id))
}

func (r *questionRepoPG) ListBySection(ctx context.Context, sectionID uuid.UUID) ([]*Question, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+questionCols+` FROM questions WHERE section_id = $1 ORDER BY position`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, q)
	}
	return items, rows.Err()
}

func (r *questionRepoPG) ListApplicable(ctx context.Context, sectionID uuid.UUID, ageMonths int) ([]*Question, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+questionCols+` FROM questions
		WHERE section_id = $1 AND min_age_months <= $2 AND max_age_months >= $2
		ORDER BY position`, sectionID, ageMonths)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, q)
	}
	return items, rows.Err()
}

func (r *questionRepoPG) CountApplicable(ctx context.Context, sectionID uuid.UUID, ageMonths int) (int, error) {
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*) FROM questions
		WHERE section_id = $1 AND min_age_months <= $2 AND max_age_months >= $2`,
		sectionID, ageMonths).Scan(&count)
	return count, err
}

func (r *questionRepoPG) Update(ctx context.Context, q *Question) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE questions SET question_key=$2, text=$3, min_age_months=$4, max_age_months=$5,
			max_score=$6, position=$7, updated_at=NOW()
		WHERE id = $1`,
		q.ID, q.Key, q.Text, q.MinAgeMonths, q.MaxAgeMonths, q.MaxScore, q.Position)
	return err
}

func (r *questionRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	return err
}
