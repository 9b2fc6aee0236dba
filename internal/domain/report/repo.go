package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("report: not found")

	// ErrDuplicateGeneration signals a lost persist race: another writer
	// committed the same summary or report first. The loser discards its
	// generated content and reads the winner's row.
	ErrDuplicateGeneration = errors.New("report: already generated")

	// ErrNotYetComplete is the no-op outcome of a trigger that fired before
	// all prerequisite responses or summaries exist.
	ErrNotYetComplete = errors.New("report: prerequisites not yet complete")

	// ErrReviewSequence rejects out-of-order or repeated review stamps.
	ErrReviewSequence = errors.New("report: review sequence violation")

	// ErrAccessDenied rejects a report read by a role whose visibility
	// threshold the report has not reached.
	ErrAccessDenied = errors.New("report: access denied")
)

// GenerationError wraps an AI generation or parse failure. Nothing was
// persisted; the next qualifying trigger retries from scratch.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("report generation failed at %s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PoolSummaryRepository persists per-pool narrative summaries. Create must
// map the (child_id, pool_id) uniqueness violation to ErrDuplicateGeneration.
type PoolSummaryRepository interface {
	Create(ctx context.Context, s *PoolSummary) error
	GetByChildPool(ctx context.Context, childID, poolID uuid.UUID) (*PoolSummary, error)
	ListByChild(ctx context.Context, childID uuid.UUID) ([]*PoolSummary, error)
	DeleteByChildPool(ctx context.Context, childID, poolID uuid.UUID) error
}

// FinalReportRepository persists the per-child final report. Create must map
// the child_id uniqueness violation to ErrDuplicateGeneration.
type FinalReportRepository interface {
	Create(ctx context.Context, r *FinalReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*FinalReport, error)
	GetByChild(ctx context.Context, childID uuid.UUID) (*FinalReport, error)
	Update(ctx context.Context, r *FinalReport) error
	DeleteByChild(ctx context.Context, childID uuid.UUID) error
}
