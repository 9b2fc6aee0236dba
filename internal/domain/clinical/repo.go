package clinical

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a child does not exist.
var ErrNotFound = errors.New("child not found")

type ChildRepository interface {
	Create(ctx context.Context, c *Child) error
	GetByID(ctx context.Context, id uuid.UUID) (*Child, error)
	List(ctx context.Context, limit, offset int) ([]*Child, int, error)
	Update(ctx context.Context, c *Child) error
}
