package clinical

import (
	"time"

	"github.com/google/uuid"

	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/domain/catalog"
)

// Child maps to the children table. It is the aggregate root that owns all
// assessment responses, pool summaries and the final report.
type Child struct {
	ID          uuid.UUID `db:"id" json:"id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	DateOfBirth time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender      string    `db:"gender" json:"gender"`
	ParentName  *string   `db:"parent_name" json:"parent_name,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

var validGenders = map[string]bool{
	"MALE": true, "FEMALE": true, "OTHER": true,
}

// AgeMonths returns the child's age in whole calendar months as of now.
func (c *Child) AgeMonths(now time.Time) int {
	return catalog.AgeInMonths(c.DateOfBirth, now)
}
