package report

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

const summaryCols = `id, child_id, pool_id, pool_title, summary_content, total_sections,
	completed_sections, total_score, max_possible_score, not_applicable, generated_at`

func scanSummary(row pgx.Row) (*PoolSummary, error) {
	var s PoolSummary
	err := row.Scan(&s.ID, &s.ChildID, &s.PoolID, &s.PoolTitle, &s.SummaryContent,
		&s.TotalSections, &s.CompletedSections, &s.TotalScore, &s.MaxPossibleScore,
		&s.NotApplicable, &s.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

type poolSummaryRepoPG struct {
	pool *pgxpool.Pool
}

// NewPoolSummaryRepoPG returns a pgx-backed PoolSummaryRepository.
func NewPoolSummaryRepoPG(pool *pgxpool.Pool) PoolSummaryRepository {
	return &poolSummaryRepoPG{pool: pool}
}

func (r *poolSummaryRepoPG) Create(ctx context.Context, s *PoolSummary) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO pool_summaries (id, child_id, pool_id, pool_title, summary_content,
			total_sections, completed_sections, total_score, max_possible_score,
			not_applicable, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.ChildID, s.PoolID, s.PoolTitle, s.SummaryContent,
		s.TotalSections, s.CompletedSections, s.TotalScore, s.MaxPossibleScore,
		s.NotApplicable, s.GeneratedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateGeneration
	}
	return err
}

func (r *poolSummaryRepoPG) GetByChildPool(ctx context.Context, childID, poolID uuid.UUID) (*PoolSummary, error) {
	return scanSummary(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+summaryCols+` FROM pool_summaries WHERE child_id = $1 AND pool_id = $2`,
		childID, poolID))
}

func (r *poolSummaryRepoPG) ListByChild(ctx context.Context, childID uuid.UUID) ([]*PoolSummary, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+summaryCols+` FROM pool_summaries WHERE child_id = $1 ORDER BY generated_at`,
		childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PoolSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *poolSummaryRepoPG) DeleteByChildPool(ctx context.Context, childID, poolID uuid.UUID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM pool_summaries WHERE child_id = $1 AND pool_id = $2`, childID, poolID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const reportCols = `id, child_id, overall_summary, total_pools, completed_pools,
	overall_score, overall_max_score, concern_index, concern_band,
	doctor_reviewed_at, doctor_reviewed_by, doctor_review_notes,
	hod_reviewed_at, hod_reviewed_by, hod_review_notes, generated_at`

func scanReport(row pgx.Row) (*FinalReport, error) {
	var fr FinalReport
	err := row.Scan(&fr.ID, &fr.ChildID, &fr.OverallSummary, &fr.TotalPools, &fr.CompletedPools,
		&fr.OverallScore, &fr.OverallMaxScore, &fr.ConcernIndex, &fr.ConcernBand,
		&fr.DoctorReviewedAt, &fr.DoctorReviewedBy, &fr.DoctorReviewNotes,
		&fr.HodReviewedAt, &fr.HodReviewedBy, &fr.HodReviewNotes,
		&fr.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &fr, err
}

type finalReportRepoPG struct {
	pool *pgxpool.Pool
}

// NewFinalReportRepoPG returns a pgx-backed FinalReportRepository.
func NewFinalReportRepoPG(pool *pgxpool.Pool) FinalReportRepository {
	return &finalReportRepoPG{pool: pool}
}

func (r *finalReportRepoPG) Create(ctx context.Context, fr *FinalReport) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO final_reports (id, child_id, overall_summary, total_pools, completed_pools,
			overall_score, overall_max_score, concern_index, concern_band, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		fr.ID, fr.ChildID, fr.OverallSummary, fr.TotalPools, fr.CompletedPools,
		fr.OverallScore, fr.OverallMaxScore, fr.ConcernIndex, fr.ConcernBand, fr.GeneratedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateGeneration
	}
	return err
}

func (r *finalReportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*FinalReport, error) {
	return scanReport(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+reportCols+` FROM final_reports WHERE id = $1`, id))
}

func (r *finalReportRepoPG) GetByChild(ctx context.Context, childID uuid.UUID) (*FinalReport, error) {
	return scanReport(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+reportCols+` FROM final_reports WHERE child_id = $1`, childID))
}

func (r *finalReportRepoPG) Update(ctx context.Context, fr *FinalReport) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE final_reports SET doctor_reviewed_at = $2, doctor_reviewed_by = $3,
			doctor_review_notes = $4, hod_reviewed_at = $5, hod_reviewed_by = $6,
			hod_review_notes = $7
		WHERE id = $1`,
		fr.ID, fr.DoctorReviewedAt, fr.DoctorReviewedBy, fr.DoctorReviewNotes,
		fr.HodReviewedAt, fr.HodReviewedBy, fr.HodReviewNotes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *finalReportRepoPG) DeleteByChild(ctx context.Context, childID uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM final_reports WHERE child_id = $1`, childID)
	return err
}
