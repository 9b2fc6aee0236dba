package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/domain/assessment"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/domain/catalog"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/domain/clinical"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/platform/genai"
)

// keyedMutex serializes generation per (child, pool) or (child) key, so an
// explicit delete+recreate never interleaves with a concurrent automatic
// generation in this process. Cross-process races are settled by the
// uniqueness constraints.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func poolKey(childID, poolID uuid.UUID) string {
	return "pool:" + childID.String() + ":" + poolID.String()
}

func reportKey(childID uuid.UUID) string { return "report:" + childID.String() }

// Service is the generation orchestrator: it reacts to section completions,
// generates pool summaries and the final report exactly once per unit, and
// gates report reads behind the review ladder.
type Service struct {
	summaries PoolSummaryRepository
	reports   FinalReportRepository
	responses assessment.ResponseRepository
	answers   assessment.AnswerRepository
	children  clinical.ChildRepository
	catalog   *catalog.Service
	gen       genai.Generator
	logger    zerolog.Logger
	now       func() time.Time
	regen     keyedMutex
	tx        TxRunner
}

// TxRunner runs fn inside one commit boundary. The default runs fn directly;
// the server wires a database-backed runner so the regenerate delete pair is
// atomic.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

func NewService(summaries PoolSummaryRepository, reports FinalReportRepository,
	responses assessment.ResponseRepository, answers assessment.AnswerRepository,
	children clinical.ChildRepository, cat *catalog.Service,
	gen genai.Generator, logger zerolog.Logger) *Service {
	return &Service{
		summaries: summaries,
		reports:   reports,
		responses: responses,
		answers:   answers,
		children:  children,
		catalog:   cat,
		gen:       gen,
		logger:    logger.With().Str("component", "report").Logger(),
		now:       time.Now,
		tx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
	}
}

// SetTxRunner replaces the default passthrough commit boundary.
func (s *Service) SetTxRunner(tx TxRunner) { s.tx = tx }

// OnSectionCompleted is the cascade entry point from the assessment layer.
// Failures here never propagate back into answer recording: the answers are
// already committed and the next completing event retries the whole chain.
func (s *Service) OnSectionCompleted(ctx context.Context, childID, sectionID uuid.UUID) {
	section, err := s.catalog.GetSection(ctx, sectionID)
	if err != nil {
		s.logger.Error().Err(err).Str("section_id", sectionID.String()).Msg("cascade: resolve section")
		return
	}

	_, err = s.CheckAndGeneratePoolSummary(ctx, childID, section.PoolID)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotYetComplete):
		return
	default:
		s.logger.Error().Err(err).
			Str("child_id", childID.String()).
			Str("pool_id", section.PoolID.String()).
			Msg("cascade: pool summary generation failed")
		return
	}

	if _, err := s.CheckAndGenerateFinalReport(ctx, childID); err != nil && !errors.Is(err, ErrNotYetComplete) {
		s.logger.Error().Err(err).Str("child_id", childID.String()).Msg("cascade: final report generation failed")
	}
}

// CheckAndGeneratePoolSummary generates the (child, pool) summary if all
// applicable sections are complete. Already-generated and not-yet-complete
// triggers are no-ops; a lost persist race returns the winner's row. The
// existence checks are an optimization only: the uniqueness constraint is
// the source of truth. The per-key lock keeps an automatic trigger from
// interleaving with a regeneration's delete+recreate window.
func (s *Service) CheckAndGeneratePoolSummary(ctx context.Context, childID, poolID uuid.UUID) (*PoolSummary, error) {
	unlock := s.regen.lock(poolKey(childID, poolID))
	defer unlock()
	return s.generatePoolSummary(ctx, childID, poolID)
}

func (s *Service) generatePoolSummary(ctx context.Context, childID, poolID uuid.UUID) (*PoolSummary, error) {
	if existing, err := s.summaries.GetByChildPool(ctx, childID, poolID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	child, err := s.children.GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	pool, err := s.catalog.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	age := child.AgeMonths(s.now())

	sections, err := s.catalog.ApplicableSections(ctx, poolID, age)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return s.generateNotApplicableSummary(ctx, child, pool, age)
	}

	var completed []*assessment.Response
	for _, sec := range sections {
		resp, err := s.responses.GetByChildSection(ctx, childID, sec.ID)
		if errors.Is(err, assessment.ErrNotFound) {
			return nil, ErrNotYetComplete
		}
		if err != nil {
			return nil, err
		}
		if resp.Status != assessment.StatusCompleted {
			return nil, ErrNotYetComplete
		}
		completed = append(completed, resp)
	}

	poolScore, poolMax := 0, 0
	var sectionContexts []sectionContext
	for i, resp := range completed {
		if resp.TotalScore != nil {
			poolScore += *resp.TotalScore
		}
		if resp.MaxPossibleScore != nil {
			poolMax += *resp.MaxPossibleScore
		}
		details, err := s.answers.ListDetailsByResponse(ctx, resp.ID)
		if err != nil {
			return nil, err
		}
		sc := sectionContext{Title: sections[i].Title}
		for _, d := range details {
			answer := d.Answer.RawAnswer
			if d.Answer.TranslatedAnswer != nil {
				answer = *d.Answer.TranslatedAnswer
			}
			sc.Answers = append(sc.Answers, answerContext{
				Question: d.QuestionText,
				Answer:   answer,
				Bucket:   d.Answer.AnswerBucket,
				Score:    d.Answer.Score,
				MaxScore: d.QuestionMaxScore,
			})
		}
		sectionContexts = append(sectionContexts, sc)
	}

	content, err := s.generateSummaryContent(ctx, pool.Title, age, child.Gender, sectionContexts)
	if err != nil {
		return nil, &GenerationError{Stage: "pool_summary", Err: err}
	}

	summary := &PoolSummary{
		ID:                uuid.New(),
		ChildID:           childID,
		PoolID:            poolID,
		PoolTitle:         pool.Title,
		SummaryContent:    content,
		TotalSections:     len(sections),
		CompletedSections: len(completed),
		TotalScore:        &poolScore,
		MaxPossibleScore:  &poolMax,
		GeneratedAt:       s.now(),
	}
	if err := s.summaries.Create(ctx, summary); err != nil {
		if errors.Is(err, ErrDuplicateGeneration) {
			// Lost the race: discard our content, use the winner's.
			s.logger.Info().
				Str("child_id", childID.String()).
				Str("pool_id", poolID.String()).
				Msg("pool summary race lost, discarding generated content")
			return s.summaries.GetByChildPool(ctx, childID, poolID)
		}
		return nil, err
	}
	s.logger.Info().
		Str("child_id", childID.String()).
		Str("pool_id", poolID.String()).
		Int("pool_score", poolScore).
		Int("pool_max", poolMax).
		Msg("pool summary generated")
	return summary, nil
}

// generateNotApplicableSummary is the zero-applicable-section fast path: a
// summary with zero scores and an explicit marker, never a generation
// failure. The generator is still consulted for consistent wording, but its
// failure falls back to a canned payload.
func (s *Service) generateNotApplicableSummary(ctx context.Context, child *clinical.Child, pool *catalog.Pool, age int) (*PoolSummary, error) {
	content := json.RawMessage(fmt.Sprintf(
		`{"summary":"The %s domain has no items applicable at %d months of age and was not assessed.","not_applicable":true}`,
		pool.Title, age))

	prompt := fmt.Sprintf(
		"Write a one-paragraph clinical note stating that the %q assessment domain has no items applicable for a child aged %d months and was therefore not assessed. Child gender: %s.",
		pool.Title, age, child.Gender)
	if raw, err := s.gen.Generate(ctx, prompt, `{"summary":"<paragraph>","not_applicable":true}`); err == nil {
		if parsed, perr := genai.Parse(raw); perr == nil {
			if buf, merr := json.Marshal(parsed); merr == nil {
				content = buf
			}
		}
	}

	zero := 0
	summary := &PoolSummary{
		ID:               uuid.New(),
		ChildID:          child.ID,
		PoolID:           pool.ID,
		PoolTitle:        pool.Title,
		SummaryContent:   content,
		TotalScore:       &zero,
		MaxPossibleScore: &zero,
		NotApplicable:    true,
		GeneratedAt:      s.now(),
	}
	if err := s.summaries.Create(ctx, summary); err != nil {
		if errors.Is(err, ErrDuplicateGeneration) {
			return s.summaries.GetByChildPool(ctx, child.ID, pool.ID)
		}
		return nil, err
	}
	return summary, nil
}

// CheckAndGenerateFinalReport generates the child's final report once every
// applicable pool has a summary. The AI context carries only age-in-months
// and gender; name and date of birth never leave the process.
func (s *Service) CheckAndGenerateFinalReport(ctx context.Context, childID uuid.UUID) (*FinalReport, error) {
	unlock := s.regen.lock(reportKey(childID))
	defer unlock()
	return s.generateFinalReport(ctx, childID)
}

func (s *Service) generateFinalReport(ctx context.Context, childID uuid.UUID) (*FinalReport, error) {
	if existing, err := s.reports.GetByChild(ctx, childID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	child, err := s.children.GetByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	age := child.AgeMonths(s.now())

	applicablePools, err := s.catalog.ApplicablePools(ctx, age)
	if err != nil {
		return nil, err
	}
	if len(applicablePools) == 0 {
		return nil, ErrNotYetComplete
	}

	summaries, err := s.summaries.ListByChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	byPool := make(map[uuid.UUID]*PoolSummary, len(summaries))
	for _, sum := range summaries {
		byPool[sum.PoolID] = sum
	}
	for _, p := range applicablePools {
		if _, ok := byPool[p.ID]; !ok {
			return nil, ErrNotYetComplete
		}
	}

	var scores []PoolScore
	overallScore, overallMax, completedPools := 0, 0, 0
	for _, p := range applicablePools {
		sum := byPool[p.ID]
		ps := PoolScore{Weight: p.Weight, NotApplicable: sum.NotApplicable}
		if sum.TotalScore != nil {
			ps.Score = *sum.TotalScore
		}
		if sum.MaxPossibleScore != nil {
			ps.Max = *sum.MaxPossibleScore
		}
		scores = append(scores, ps)
		if !sum.NotApplicable {
			overallScore += ps.Score
			overallMax += ps.Max
			completedPools++
		}
	}

	content, err := s.generateReportContent(ctx, age, child.Gender, applicablePools, byPool)
	if err != nil {
		return nil, &GenerationError{Stage: "final_report", Err: err}
	}

	fr := &FinalReport{
		ID:              uuid.New(),
		ChildID:         childID,
		OverallSummary:  content,
		TotalPools:      len(applicablePools),
		CompletedPools:  completedPools,
		OverallScore:    &overallScore,
		OverallMaxScore: &overallMax,
		GeneratedAt:     s.now(),
	}
	if aci, ok := ConcernIndex(scores); ok {
		band := BandFor(aci)
		fr.ConcernIndex = &aci
		fr.ConcernBand = &band
	}

	if err := s.reports.Create(ctx, fr); err != nil {
		if errors.Is(err, ErrDuplicateGeneration) {
			s.logger.Info().Str("child_id", childID.String()).Msg("final report race lost, discarding generated content")
			return s.reports.GetByChild(ctx, childID)
		}
		return nil, err
	}
	evt := s.logger.Info().Str("child_id", childID.String())
	if fr.ConcernIndex != nil {
		evt = evt.Float64("concern_index", *fr.ConcernIndex).Str("concern_band", *fr.ConcernBand)
	}
	evt.Msg("final report generated")
	return fr, nil
}

// RegeneratePoolSummary deletes and regenerates one pool summary, and with
// it the derived final report. This is the only path that overwrites
// history.
func (s *Service) RegeneratePoolSummary(ctx context.Context, childID, poolID uuid.UUID) (*PoolSummary, error) {
	unlock := s.regen.lock(poolKey(childID, poolID))
	defer unlock()

	// The old summary and its derived report disappear together or not at
	// all.
	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.summaries.DeleteByChildPool(ctx, childID, poolID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return s.reports.DeleteByChild(ctx, childID)
	})
	if err != nil {
		return nil, err
	}

	summary, err := s.generatePoolSummary(ctx, childID, poolID)
	if err != nil {
		return nil, err
	}
	if _, err := s.CheckAndGenerateFinalReport(ctx, childID); err != nil && !errors.Is(err, ErrNotYetComplete) {
		s.logger.Error().Err(err).Str("child_id", childID.String()).Msg("regenerate: final report generation failed")
	}
	return summary, nil
}

// RegenerateFinalReport deletes and regenerates the child's final report
// from the persisted pool summaries.
func (s *Service) RegenerateFinalReport(ctx context.Context, childID uuid.UUID) (*FinalReport, error) {
	unlock := s.regen.lock(reportKey(childID))
	defer unlock()

	if err := s.reports.DeleteByChild(ctx, childID); err != nil {
		return nil, err
	}
	return s.generateFinalReport(ctx, childID)
}

func (s *Service) GetPoolSummary(ctx context.Context, childID, poolID uuid.UUID) (*PoolSummary, error) {
	return s.summaries.GetByChildPool(ctx, childID, poolID)
}

func (s *Service) ListPoolSummaries(ctx context.Context, childID uuid.UUID) ([]*PoolSummary, error) {
	return s.summaries.ListByChild(ctx, childID)
}

// GetFinalReport enforces the visibility ladder: doctors (and admin) read
// any generated report, department heads only after doctor review, everyone
// else is denied.
func (s *Service) GetFinalReport(ctx context.Context, childID uuid.UUID, viewerRole string) (*FinalReport, error) {
	fr, err := s.reports.GetByChild(ctx, childID)
	if err != nil {
		return nil, err
	}
	switch viewerRole {
	case "admin", "DOCTOR":
		return fr, nil
	case "HOD":
		if fr.DoctorReviewedAt == nil {
			return nil, ErrAccessDenied
		}
		return fr, nil
	default:
		return nil, ErrAccessDenied
	}
}

// MarkDoctorReviewed stamps the first review step. Re-reviewing is rejected.
func (s *Service) MarkDoctorReviewed(ctx context.Context, reportID uuid.UUID, reviewerID string, notes *string) (*FinalReport, error) {
	fr, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if fr.DoctorReviewedAt != nil {
		return nil, fmt.Errorf("%w: already doctor-reviewed", ErrReviewSequence)
	}
	now := s.now()
	fr.DoctorReviewedAt = &now
	fr.DoctorReviewedBy = &reviewerID
	fr.DoctorReviewNotes = notes
	if err := s.reports.Update(ctx, fr); err != nil {
		return nil, err
	}
	return fr, nil
}

// MarkHodReviewed stamps the second review step. It requires a prior doctor
// review and rejects double review.
func (s *Service) MarkHodReviewed(ctx context.Context, reportID uuid.UUID, reviewerID string, notes *string) (*FinalReport, error) {
	fr, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if fr.DoctorReviewedAt == nil {
		return nil, fmt.Errorf("%w: not yet doctor-reviewed", ErrReviewSequence)
	}
	if fr.HodReviewedAt != nil {
		return nil, fmt.Errorf("%w: already hod-reviewed", ErrReviewSequence)
	}
	now := s.now()
	fr.HodReviewedAt = &now
	fr.HodReviewedBy = &reviewerID
	fr.HodReviewNotes = notes
	if err := s.reports.Update(ctx, fr); err != nil {
		return nil, err
	}
	return fr, nil
}

// ---- prompt construction ----

type answerContext struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Bucket   string `json:"bucket"`
	Score    int    `json:"score"`
	MaxScore int    `json:"max_score"`
}

type sectionContext struct {
	Title   string          `json:"section"`
	Answers []answerContext `json:"answers"`
}

const summarySchemaHint = `{
  "summary": "<2-3 paragraph clinical narrative for this domain>",
  "strengths": ["<observed strength>"],
  "concerns": ["<observed concern>"]
}`

func (s *Service) generateSummaryContent(ctx context.Context, poolTitle string, age int, gender string, sections []sectionContext) (json.RawMessage, error) {
	contextJSON, err := json.Marshal(sections)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the %q developmental domain for a child aged %d months (gender: %s).\n", poolTitle, age, gender)
	b.WriteString("Assessment data by section (JSON):\n")
	b.Write(contextJSON)
	b.WriteString("\nWrite clinically, in plain language a parent can follow. Do not diagnose; describe observed behaviour patterns.")

	raw, err := s.gen.Generate(ctx, b.String(), summarySchemaHint)
	if err != nil {
		return nil, err
	}
	parsed, err := genai.Parse(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(parsed)
}

const reportSchemaHint = `{
  "overall_summary": "<overall clinical narrative across all domains>",
  "domain_highlights": [{"domain": "<pool title>", "highlight": "<one sentence>"}],
  "recommendations": ["<next step for the family>"]
}`

func (s *Service) generateReportContent(ctx context.Context, age int, gender string, pools []*catalog.Pool, byPool map[uuid.UUID]*PoolSummary) (json.RawMessage, error) {
	type poolContext struct {
		Domain        string          `json:"domain"`
		Summary       json.RawMessage `json:"summary"`
		Score         *int            `json:"score"`
		MaxScore      *int            `json:"max_score"`
		NotApplicable bool            `json:"not_applicable"`
	}
	var pcs []poolContext
	for _, p := range pools {
		sum := byPool[p.ID]
		pcs = append(pcs, poolContext{
			Domain:        p.Title,
			Summary:       sum.SummaryContent,
			Score:         sum.TotalScore,
			MaxScore:      sum.MaxPossibleScore,
			NotApplicable: sum.NotApplicable,
		})
	}
	contextJSON, err := json.Marshal(pcs)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write the overall developmental assessment report for a child aged %d months (gender: %s).\n", age, gender)
	b.WriteString("Per-domain summaries and scores (JSON):\n")
	b.Write(contextJSON)
	b.WriteString("\nSynthesize across domains; do not repeat each domain summary verbatim. Do not diagnose.")

	raw, err := s.gen.Generate(ctx, b.String(), reportSchemaHint)
	if err != nil {
		return nil, err
	}
	parsed, err := genai.Parse(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(parsed)
}
