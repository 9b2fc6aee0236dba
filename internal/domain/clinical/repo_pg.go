package clinical

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

type childRepoPG struct{ pool *pgxpool.Pool }

func NewChildRepoPG(pool *pgxpool.Pool) ChildRepository {
	return &childRepoPG{pool: pool}
}

func (r *childRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const childCols = `id, first_name, last_name, date_of_birth, gender, parent_name, created_at, updated_at`

func scanChild(row pgx.Row) (*Child, error) {
	var c Child
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.DateOfBirth, &c.Gender, &c.ParentName, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &c, err
}

func (r *childRepoPG) Create(ctx context.Context, c *Child) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO children (id, first_name, last_name, date_of_birth, gender, parent_name)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.FirstName, c.LastName, c.DateOfBirth, c.Gender, c.ParentName)
	return err
}

func (r *childRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Child, error) {
	return scanChild(r.conn(ctx).QueryRow(ctx, `SELECT `+childCols+` FROM children WHERE id = $1`, id))
}

func (r *childRepoPG) List(ctx context.Context, limit, offset int) ([]*Child, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM children`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+childCols+` FROM children ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *childRepoPG) Update(ctx context.Context, c *Child) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE children SET first_name=$2, last_name=$3, date_of_birth=$4, gender=$5, parent_name=$6, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.FirstName, c.LastName, c.DateOfBirth, c.Gender, c.ParentName)
	return err
}
