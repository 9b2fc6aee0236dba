package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/domain/catalog"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/domain/clinical"
)

var (
	// ErrSessionCompleted guards the terminal state: no answers or
	// submissions are accepted once a response is completed.
	ErrSessionCompleted = errors.New("assessment: response already completed")

	ErrQuestionNotInSection = errors.New("assessment: question does not belong to the response section")
)

// Cascader is notified when a response reaches COMPLETED. The report layer
// implements it; the hook runs after the completing write has committed.
type Cascader interface {
	OnSectionCompleted(ctx context.Context, childID, sectionID uuid.UUID)
}

// SubmitResult summarizes one conversation submission.
type SubmitResult struct {
	Response       *Response `json:"response"`
	AnswersCreated int       `json:"answers_created"`
}

type Service struct {
	responses ResponseRepository
	answers   AnswerRepository
	logs      ConversationLogRepository
	children  clinical.ChildRepository
	catalog   *catalog.Service
	mapper    *AnswerMapper
	cascade   Cascader
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(responses ResponseRepository, answers AnswerRepository, logs ConversationLogRepository,
	children clinical.ChildRepository, cat *catalog.Service, mapper *AnswerMapper, logger zerolog.Logger) *Service {
	return &Service{
		responses: responses,
		answers:   answers,
		logs:      logs,
		children:  children,
		catalog:   cat,
		mapper:    mapper,
		logger:    logger.With().Str("component", "assessment").Logger(),
		now:       time.Now,
	}
}

// SetCascade wires the completion hook after both services exist. The report
// service depends on assessment data, so construction order forces a setter.
func (s *Service) SetCascade(c Cascader) { s.cascade = c }

// StartResponse opens (or returns the existing) session for a child and
// section, snapshotting the questions applicable at the child's current age.
func (s *Service) StartResponse(ctx context.Context, childID, sectionID uuid.UUID, language string) (*Response, error) {
	child, err := s.children.GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetSection(ctx, sectionID); err != nil {
		return nil, err
	}
	if language == "" {
		language = "en"
	}

	age := child.AgeMonths(s.now())
	applicable, err := s.catalog.ApplicableQuestions(ctx, sectionID, age)
	if err != nil {
		return nil, err
	}
	if len(applicable) == 0 {
		return nil, fmt.Errorf("section %s has no questions applicable at %d months", sectionID, age)
	}

	resp := &Response{
		ID:                  uuid.New(),
		ChildID:             childID,
		SectionID:           sectionID,
		Status:              StatusNotStarted,
		UnansweredQuestions: toRefs(applicable),
		AssessmentLanguage:  language,
		CreatedAt:           s.now(),
	}
	err = s.responses.Create(ctx, resp)
	if errors.Is(err, ErrDuplicateSession) {
		return s.responses.GetByChildSection(ctx, childID, sectionID)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) GetResponse(ctx context.Context, id uuid.UUID) (*Response, error) {
	return s.responses.GetByID(ctx, id)
}

func (s *Service) ListResponses(ctx context.Context, childID uuid.UUID) ([]*Response, error) {
	return s.responses.ListByChild(ctx, childID)
}

func (s *Service) ListAnswers(ctx context.Context, responseID uuid.UUID) ([]*QuestionAnswer, error) {
	if _, err := s.responses.GetByID(ctx, responseID); err != nil {
		return nil, err
	}
	return s.answers.ListByResponse(ctx, responseID)
}

// RecordAnswer writes a single scored answer directly, bypassing the
// conversation flow. Used by clinician-entered corrections and seed tooling.
func (s *Service) RecordAnswer(ctx context.Context, responseID, questionID uuid.UUID,
	raw string, translated *string, bucket string, score int) (*Response, error) {

	resp, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if resp.Status == StatusCompleted {
		return nil, ErrSessionCompleted
	}

	q, err := s.catalog.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if q.SectionID != resp.SectionID {
		return nil, ErrQuestionNotInSection
	}
	if !validBuckets[bucket] {
		return nil, fmt.Errorf("unknown answer bucket %q", bucket)
	}
	if score < 0 || score > q.MaxScore {
		return nil, fmt.Errorf("score %d outside 0..%d", score, q.MaxScore)
	}

	err = s.answers.Create(ctx, &QuestionAnswer{
		ID:               uuid.New(),
		ResponseID:       responseID,
		QuestionID:       questionID,
		RawAnswer:        raw,
		TranslatedAnswer: translated,
		AnswerBucket:     bucket,
		Score:            score,
		AnsweredAt:       s.now(),
	})
	if err != nil {
		return nil, err
	}
	return s.refreshState(ctx, resp)
}

// SubmitConversation logs the raw conversation, extracts answers through the
// generator, and advances the response state. A mapping failure parks the
// response in PROCESSING; the conversation log survives so a later
// submission can pick up where this one failed.
func (s *Service) SubmitConversation(ctx context.Context, responseID uuid.UUID, conversation json.RawMessage) (*SubmitResult, error) {
	resp, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if resp.Status == StatusCompleted {
		return nil, ErrSessionCompleted
	}

	logEntry := &ConversationLog{
		ID:           uuid.New(),
		ResponseID:   responseID,
		Conversation: conversation,
		CreatedAt:    s.now(),
	}
	if err := s.logs.Create(ctx, logEntry); err != nil {
		return nil, err
	}
	resp.LastConversationID = &logEntry.ID

	mapped, err := s.mapper.Map(ctx, resp.AssessmentLanguage, resp.UnansweredQuestions, conversation)
	if err != nil {
		resp.Status = StatusProcessing
		if uerr := s.responses.Update(ctx, resp); uerr != nil {
			s.logger.Error().Err(uerr).Str("response_id", responseID.String()).Msg("failed to park response after mapping failure")
		}
		return nil, err
	}

	created := 0
	for _, a := range mapped.Answers {
		err := s.answers.Create(ctx, &QuestionAnswer{
			ID:               uuid.New(),
			ResponseID:       responseID,
			QuestionID:       a.QuestionID,
			RawAnswer:        a.RawAnswer,
			TranslatedAnswer: a.TranslatedAnswer,
			AnswerBucket:     a.AnswerBucket,
			Score:            a.Score,
			AnsweredAt:       s.now(),
		})
		if errors.Is(err, ErrDuplicateAnswer) {
			continue
		}
		if err != nil {
			return nil, err
		}
		created++
	}

	resp, err = s.refreshState(ctx, resp)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{Response: resp, AnswersCreated: created}, nil
}

// refreshState recomputes the pending set against the child's CURRENT age,
// not the snapshot taken at start, so questions whose window the child has
// since entered become required and questions aged out stop blocking
// completion. Scores are summed over answered questions only.
func (s *Service) refreshState(ctx context.Context, resp *Response) (*Response, error) {
	child, err := s.children.GetByID(ctx, resp.ChildID)
	if err != nil {
		return nil, err
	}
	age := child.AgeMonths(s.now())

	applicable, err := s.catalog.ApplicableQuestions(ctx, resp.SectionID, age)
	if err != nil {
		return nil, err
	}
	details, err := s.answers.ListDetailsByResponse(ctx, resp.ID)
	if err != nil {
		return nil, err
	}

	answered := make(map[uuid.UUID]bool, len(details))
	for _, d := range details {
		answered[d.Answer.QuestionID] = true
	}

	var pending []QuestionRef
	for _, q := range applicable {
		if !answered[q.ID] {
			pending = append(pending, QuestionRef{ID: q.ID, Key: q.Key, Text: q.Text, MaxScore: q.MaxScore})
		}
	}
	resp.UnansweredQuestions = pending

	completedNow := false
	switch {
	case len(pending) == 0 && len(details) > 0:
		total, max := 0, 0
		for _, d := range details {
			total += d.Answer.Score
			max += d.QuestionMaxScore
		}
		resp.TotalScore = &total
		resp.MaxPossibleScore = &max
		if resp.Status != StatusCompleted {
			completedNow = true
		}
		resp.Status = StatusCompleted
		now := s.now()
		resp.CompletedAt = &now
	case len(details) > 0:
		resp.Status = StatusInProgress
	}

	if err := s.responses.Update(ctx, resp); err != nil {
		return nil, err
	}

	if completedNow {
		s.logger.Info().
			Str("response_id", resp.ID.String()).
			Str("child_id", resp.ChildID.String()).
			Int("total_score", *resp.TotalScore).
			Int("max_possible_score", *resp.MaxPossibleScore).
			Msg("section completed")
		if s.cascade != nil {
			s.cascade.OnSectionCompleted(ctx, resp.ChildID, resp.SectionID)
		}
	}
	return resp, nil
}

// SectionProgress reports answered-versus-applicable counts for one section.
type SectionProgress struct {
	SectionID  uuid.UUID `json:"section_id"`
	Title      string    `json:"title"`
	Status     Status    `json:"status"`
	Answered   int       `json:"answered"`
	Applicable int       `json:"applicable"`
}

// PoolProgress groups section progress under a pool.
type PoolProgress struct {
	PoolID   uuid.UUID         `json:"pool_id"`
	Title    string            `json:"title"`
	Sections []SectionProgress `json:"sections"`
}

// ProgressReport is the full per-child completion rollup.
type ProgressReport struct {
	Pools      []PoolProgress `json:"pools"`
	Answered   int            `json:"answered"`
	Applicable int            `json:"applicable"`
	Percent    float64        `json:"percent"`
}

// Progress reports per-pool, per-section completion for a child at their
// current age, plus the overall answered percentage. Sections with no
// response yet report NOT_STARTED.
func (s *Service) Progress(ctx context.Context, childID uuid.UUID) (*ProgressReport, error) {
	child, err := s.children.GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	age := child.AgeMonths(s.now())

	pools, err := s.catalog.ApplicablePools(ctx, age)
	if err != nil {
		return nil, err
	}
	responses, err := s.responses.ListByChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	bySection := make(map[uuid.UUID]*Response, len(responses))
	for _, r := range responses {
		bySection[r.SectionID] = r
	}

	out := &ProgressReport{}
	for _, p := range pools {
		pp := PoolProgress{PoolID: p.ID, Title: p.Title}
		sections, err := s.catalog.ApplicableSections(ctx, p.ID, age)
		if err != nil {
			return nil, err
		}
		for _, sec := range sections {
			applicable, err := s.catalog.ApplicableQuestions(ctx, sec.ID, age)
			if err != nil {
				return nil, err
			}
			sp := SectionProgress{SectionID: sec.ID, Title: sec.Title, Status: StatusNotStarted, Applicable: len(applicable)}
			if r, ok := bySection[sec.ID]; ok {
				sp.Status = r.Status
				sp.Answered = len(applicable) - len(r.UnansweredQuestions)
				if sp.Answered < 0 {
					sp.Answered = 0
				}
			}
			out.Answered += sp.Answered
			out.Applicable += sp.Applicable
			pp.Sections = append(pp.Sections, sp)
		}
		out.Pools = append(out.Pools, pp)
	}
	if out.Applicable > 0 {
		out.Percent = float64(out.Answered) / float64(out.Applicable) * 100
	}
	return out, nil
}

func toRefs(questions []*catalog.Question) []QuestionRef {
	refs := make([]QuestionRef, 0, len(questions))
	for _, q := range questions {
		refs = append(refs, QuestionRef{ID: q.ID, Key: q.Key, Text: q.Text, MaxScore: q.MaxScore})
	}
	return refs
}
