package report

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReviewStatus is the one-way review ladder for a final report. It is
// derived from the review timestamps, not stored.
type ReviewStatus string

const (
	StatusGenerated      ReviewStatus = "GENERATED"
	StatusDoctorReviewed ReviewStatus = "DOCTOR_REVIEWED"
	StatusHodReviewed    ReviewStatus = "HOD_REVIEWED"
)

// PoolSummary maps to the pool_summaries table: at most one per
// (child, pool), enforced by uniqueness. Immutable except through explicit
// regeneration, which deletes and recreates it.
type PoolSummary struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	ChildID           uuid.UUID       `db:"child_id" json:"child_id"`
	PoolID            uuid.UUID       `db:"pool_id" json:"pool_id"`
	PoolTitle         string          `db:"pool_title" json:"pool_title"`
	SummaryContent    json.RawMessage `db:"summary_content" json:"summary_content"`
	TotalSections     int             `db:"total_sections" json:"total_sections"`
	CompletedSections int             `db:"completed_sections" json:"completed_sections"`
	TotalScore        *int            `db:"total_score" json:"total_score,omitempty"`
	MaxPossibleScore  *int            `db:"max_possible_score" json:"max_possible_score,omitempty"`
	NotApplicable     bool            `db:"not_applicable" json:"not_applicable"`
	GeneratedAt       time.Time       `db:"generated_at" json:"generated_at"`
}

// Percentage returns the pool's score as a percentage of its maximum.
// The second value is false when the pool carries no usable score: a
// not-applicable summary, or a zero maximum.
func (s *PoolSummary) Percentage() (float64, bool) {
	if s.NotApplicable || s.TotalScore == nil || s.MaxPossibleScore == nil || *s.MaxPossibleScore == 0 {
		return 0, false
	}
	return float64(*s.TotalScore) / float64(*s.MaxPossibleScore) * 100, true
}

// FinalReport maps to the final_reports table: at most one per child.
// Review state lives in the two nullable timestamps.
type FinalReport struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	ChildID           uuid.UUID       `db:"child_id" json:"child_id"`
	OverallSummary    json.RawMessage `db:"overall_summary" json:"overall_summary"`
	TotalPools        int             `db:"total_pools" json:"total_pools"`
	CompletedPools    int             `db:"completed_pools" json:"completed_pools"`
	OverallScore      *int            `db:"overall_score" json:"overall_score,omitempty"`
	OverallMaxScore   *int            `db:"overall_max_score" json:"overall_max_score,omitempty"`
	ConcernIndex      *float64        `db:"concern_index" json:"concern_index,omitempty"`
	ConcernBand       *string         `db:"concern_band" json:"concern_band,omitempty"`
	DoctorReviewedAt  *time.Time      `db:"doctor_reviewed_at" json:"doctor_reviewed_at,omitempty"`
	DoctorReviewedBy  *string         `db:"doctor_reviewed_by" json:"doctor_reviewed_by,omitempty"`
	DoctorReviewNotes *string         `db:"doctor_review_notes" json:"doctor_review_notes,omitempty"`
	HodReviewedAt     *time.Time      `db:"hod_reviewed_at" json:"hod_reviewed_at,omitempty"`
	HodReviewedBy     *string         `db:"hod_reviewed_by" json:"hod_reviewed_by,omitempty"`
	HodReviewNotes    *string         `db:"hod_review_notes" json:"hod_review_notes,omitempty"`
	GeneratedAt       time.Time       `db:"generated_at" json:"generated_at"`
}

// Status derives the review ladder position from the stamped timestamps.
func (r *FinalReport) Status() ReviewStatus {
	switch {
	case r.HodReviewedAt != nil:
		return StatusHodReviewed
	case r.DoctorReviewedAt != nil:
		return StatusDoctorReviewed
	default:
		return StatusGenerated
	}
}
