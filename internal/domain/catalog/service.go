package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service owns the assessment catalog and answers the applicability
// questions the rest of the pipeline depends on: which questions, sections
// and pools are in scope for a child of a given age. Applicability is
// derived purely from the stored windows, so for a fixed (age, catalog) pair
// every method below is deterministic.
type Service struct {
	pools     PoolRepository
	sections  SectionRepository
	questions QuestionRepository
}

func NewService(pools PoolRepository, sections SectionRepository, questions QuestionRepository) *Service {
	return &Service{pools: pools, sections: sections, questions: questions}
}

// -- Pools --

func (s *Service) CreatePool(ctx context.Context, p *Pool) error {
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	if p.Weight < 0 || p.Weight > 100 {
		return fmt.Errorf("weight must be between 0 and 100")
	}
	p.IsActive = true
	return s.pools.Create(ctx, p)
}

func (s *Service) GetPool(ctx context.Context, id uuid.UUID) (*Pool, error) {
	return s.pools.GetByID(ctx, id)
}

func (s *Service) ListPools(ctx context.Context, limit, offset int) ([]*Pool, int, error) {
	return s.pools.List(ctx, limit, offset)
}

func (s *Service) UpdatePool(ctx context.Context, p *Pool) error {
	if p.Weight < 0 || p.Weight > 100 {
		return fmt.Errorf("weight must be between 0 and 100")
	}
	return s.pools.Update(ctx, p)
}

// DeactivatePool soft-deletes; pools are never removed in normal operation.
func (s *Service) DeactivatePool(ctx context.Context, id uuid.UUID) error {
	return s.pools.Deactivate(ctx, id)
}

// -- Sections --

func (s *Service) CreateSection(ctx context.Context, sec *Section) error {
	if sec.Title == "" {
		return fmt.Errorf("title is required")
	}
	if sec.PoolID == uuid.Nil {
		return fmt.Errorf("pool_id is required")
	}
	if _, err := s.pools.GetByID(ctx, sec.PoolID); err != nil {
		return fmt.Errorf("pool %s: %w", sec.PoolID, err)
	}
	sec.IsActive = true
	return s.sections.Create(ctx, sec)
}

func (s *Service) GetSection(ctx context.Context, id uuid.UUID) (*Section, error) {
	return s.sections.GetByID(ctx, id)
}

func (s *Service) ListSections(ctx context.Context, limit, offset int) ([]*Section, int, error) {
	return s.sections.List(ctx, limit, offset)
}

func (s *Service) UpdateSection(ctx context.Context, sec *Section) error {
	return s.sections.Update(ctx, sec)
}

func (s *Service) DeactivateSection(ctx context.Context, id uuid.UUID) error {
	return s.sections.Deactivate(ctx, id)
}

// -- Questions --

func (s *Service) CreateQuestion(ctx context.Context, q *Question) error {
	if q.Text == "" {
		return fmt.Errorf("text is required")
	}
	if q.Key == "" {
		return fmt.Errorf("key is required")
	}
	if q.SectionID == uuid.Nil {
		return fmt.Errorf("section_id is required")
	}
	if q.MinAgeMonths < 0 || q.MaxAgeMonths < q.MinAgeMonths {
		return fmt.Errorf("invalid age window [%d, %d]", q.MinAgeMonths, q.MaxAgeMonths)
	}
	if q.MaxScore == 0 {
		q.MaxScore = DefaultMaxScore
	}
	if _, err := s.sections.GetByID(ctx, q.SectionID); err != nil {
		return fmt.Errorf("section %s: %w", q.SectionID, err)
	}
	return s.questions.Create(ctx, q)
}

func (s *Service) GetQuestion(ctx context.Context, id uuid.UUID) (*Question, error) {
	return s.questions.GetByID(ctx, id)
}

func (s *Service) ListQuestionsBySection(ctx context.Context, sectionID uuid.UUID) ([]*Question, error) {
	return s.questions.ListBySection(ctx, sectionID)
}

func (s *Service) UpdateQuestion(ctx context.Context, q *Question) error {
	if q.MinAgeMonths < 0 || q.MaxAgeMonths < q.MinAgeMonths {
		return fmt.Errorf("invalid age window [%d, %d]", q.MinAgeMonths, q.MaxAgeMonths)
	}
	return s.questions.Update(ctx, q)
}

func (s *Service) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	return s.questions.Delete(ctx, id)
}

// -- Applicability --

// ApplicableQuestions returns the section's questions in scope at ageMonths.
func (s *Service) ApplicableQuestions(ctx context.Context, sectionID uuid.UUID, ageMonths int) ([]*Question, error) {
	return s.questions.ListApplicable(ctx, sectionID, ageMonths)
}

// ApplicableSections returns the pool's active sections that contain at
// least one applicable question at ageMonths.
func (s *Service) ApplicableSections(ctx context.Context, poolID uuid.UUID, ageMonths int) ([]*Section, error) {
	sections, err := s.sections.ListActiveByPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	var applicable []*Section
	for _, sec := range sections {
		count, err := s.questions.CountApplicable(ctx, sec.ID, ageMonths)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			applicable = append(applicable, sec)
		}
	}
	return applicable, nil
}

// ApplicablePools returns the active pools that contain at least one
// applicable section at ageMonths.
func (s *Service) ApplicablePools(ctx context.Context, ageMonths int) ([]*Pool, error) {
	pools, err := s.pools.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var applicable []*Pool
	for _, p := range pools {
		sections, err := s.ApplicableSections(ctx, p.ID, ageMonths)
		if err != nil {
			return nil, err
		}
		if len(sections) > 0 {
			applicable = append(applicable, p)
		}
	}
	return applicable, nil
}

// ActivePools returns all active pools regardless of applicability.
func (s *Service) ActivePools(ctx context.Context) ([]*Pool, error) {
	return s.pools.ListActive(ctx)
}
