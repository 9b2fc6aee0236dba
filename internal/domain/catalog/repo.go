package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a catalog entity does not exist.
var ErrNotFound = errors.New("catalog entity not found")

type PoolRepository interface {
	Create(ctx context.Context, p *Pool) error
	GetByID(ctx context.Context, id uuid.UUID) (*Pool, error)
	ListActive(ctx context.Context) ([]*Pool, error)
	List(ctx context.Context, limit, offset int) ([]*Pool, int, error)
	Update(ctx context.Context, p *Pool) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type SectionRepository interface {
	Create(ctx context.Context, s *Section) error
	GetByID(ctx context.Context, id uuid.UUID) (*Section, error)
	ListActiveByPool(ctx context.Context, poolID uuid.UUID) ([]*Section, error)
	List(ctx context.Context, limit, offset int) ([]*Section, int, error)
	Update(ctx context.Context, s *Section) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type QuestionRepository interface {
	Create(ctx context.Context, q *Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*Question, error)
	ListBySection(ctx context.Context, sectionID uuid.UUID) ([]*Question, error)
	// ListApplicable returns the section's questions whose inclusive age
	// window contains ageMonths, in position order.
	ListApplicable(ctx context.Context, sectionID uuid.UUID, ageMonths int) ([]*Question, error)
	CountApplicable(ctx context.Context, sectionID uuid.UUID, ageMonths int) (int, error)
	Update(ctx context.Context, q *Question) error
	Delete(ctx context.Context, id uuid.UUID) error
}
