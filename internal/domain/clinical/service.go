package clinical

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	children ChildRepository
}

func NewService(children ChildRepository) *Service {
	return &Service{children: children}
}

func (s *Service) CreateChild(ctx context.Context, c *Child) error {
	if c.FirstName == "" || c.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if c.DateOfBirth.IsZero() {
		return fmt.Errorf("date_of_birth is required")
	}
	if c.DateOfBirth.After(time.Now()) {
		return fmt.Errorf("date_of_birth cannot be in the future")
	}
	if !validGenders[c.Gender] {
		return fmt.Errorf("invalid gender: %s", c.Gender)
	}
	return s.children.Create(ctx, c)
}

func (s *Service) GetChild(ctx context.Context, id uuid.UUID) (*Child, error) {
	return s.children.GetByID(ctx, id)
}

func (s *Service) ListChildren(ctx context.Context, limit, offset int) ([]*Child, int, error) {
	return s.children.List(ctx, limit, offset)
}

func (s *Service) UpdateChild(ctx context.Context, c *Child) error {
	if c.Gender != "" && !validGenders[c.Gender] {
		return fmt.Errorf("invalid gender: %s", c.Gender)
	}
	return s.children.Update(ctx, c)
}
