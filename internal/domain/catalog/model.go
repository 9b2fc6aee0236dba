package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Pool maps to the pools table. Weight is the pool's percentage contribution
// to the overall concern index before renormalization.
type Pool struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Position    int       `db:"position" json:"position"`
	Weight      int       `db:"weight" json:"weight"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Section maps to the sections table. A section belongs to exactly one pool
// and is the unit of response completion.
type Section struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PoolID      uuid.UUID `db:"pool_id" json:"pool_id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Position    int       `db:"position" json:"position"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Question maps to the questions table. Key is a stable identifier assigned
// at configuration time; consumers must never derive keys from the mutable
// question text. The [MinAgeMonths, MaxAgeMonths] window is inclusive.
type Question struct {
	ID           uuid.UUID `db:"id" json:"id"`
	SectionID    uuid.UUID `db:"section_id" json:"section_id"`
	Key          string    `db:"question_key" json:"key"`
	Text         string    `db:"text" json:"text"`
	MinAgeMonths int       `db:"min_age_months" json:"min_age_months"`
	MaxAgeMonths int       `db:"max_age_months" json:"max_age_months"`
	MaxScore     int       `db:"max_score" json:"max_score"`
	Position     int       `db:"position" json:"position"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultMaxScore is the score ceiling for a single answer.
const DefaultMaxScore = 4

// DefaultMaxAgeMonths caps the applicability window at ten years.
const DefaultMaxAgeMonths = 120

// AppliesAt reports whether the question is in scope at the given age.
func (q *Question) AppliesAt(ageMonths int) bool {
	return q.MinAgeMonths <= ageMonths && ageMonths <= q.MaxAgeMonths
}

// AgeInMonths computes age in whole calendar months between dob and today.
// The day of month is deliberately ignored: near a month boundary this can
// differ from exact elapsed time by up to 29 days, but the scoring pipeline
// has always used this arithmetic and changing it would shift clinical
// scores.
func AgeInMonths(dob, today time.Time) int {
	return (today.Year()-dob.Year())*12 + int(today.Month()) - int(dob.Month())
}
