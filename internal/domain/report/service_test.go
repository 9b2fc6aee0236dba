package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/domain/assessment"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/domain/catalog"
	"github.com/devs8l/nurture-bridge-tech-backend-sub000/internal/domain/clinical"
)

// ---- repository mocks ----

type mockSummaryRepo struct {
	mu        sync.Mutex
	summaries map[string]*PoolSummary // child:pool
}

func summaryKey(childID, poolID uuid.UUID) string { return childID.String() + ":" + poolID.String() }

func newMockSummaryRepo() *mockSummaryRepo {
	return &mockSummaryRepo{summaries: map[string]*PoolSummary{}}
}

func (m *mockSummaryRepo) Create(_ context.Context, s *PoolSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := summaryKey(s.ChildID, s.PoolID)
	if _, ok := m.summaries[key]; ok {
		return ErrDuplicateGeneration
	}
	cp := *s
	m.summaries[key] = &cp
	return nil
}
func (m *mockSummaryRepo) GetByChildPool(_ context.Context, childID, poolID uuid.UUID) (*PoolSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[summaryKey(childID, poolID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}
func (m *mockSummaryRepo) ListByChild(_ context.Context, childID uuid.UUID) ([]*PoolSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*PoolSummary
	for _, s := range m.summaries {
		if s.ChildID == childID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}
func (m *mockSummaryRepo) DeleteByChildPool(_ context.Context, childID, poolID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := summaryKey(childID, poolID)
	if _, ok := m.summaries[key]; !ok {
		return ErrNotFound
	}
	delete(m.summaries, key)
	return nil
}

type mockReportRepo struct {
	mu      sync.Mutex
	reports map[uuid.UUID]*FinalReport // by child
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{reports: map[uuid.UUID]*FinalReport{}}
}

func (m *mockReportRepo) Create(_ context.Context, r *FinalReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[r.ChildID]; ok {
		return ErrDuplicateGeneration
	}
	cp := *r
	m.reports[r.ChildID] = &cp
	return nil
}
func (m *mockReportRepo) GetByID(_ context.Context, id uuid.UUID) (*FinalReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
func (m *mockReportRepo) GetByChild(_ context.Context, childID uuid.UUID) (*FinalReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[childID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}
func (m *mockReportRepo) Update(_ context.Context, r *FinalReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[r.ChildID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.reports[r.ChildID] = &cp
	return nil
}
func (m *mockReportRepo) DeleteByChild(_ context.Context, childID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, childID)
	return nil
}

type mockResponseRepo struct {
	bySection map[uuid.UUID]*assessment.Response
}

func (m *mockResponseRepo) Create(_ context.Context, r *assessment.Response) error {
	m.bySection[r.SectionID] = r
	return nil
}
func (m *mockResponseRepo) GetByID(_ context.Context, id uuid.UUID) (*assessment.Response, error) {
	for _, r := range m.bySection {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, assessment.ErrNotFound
}
func (m *mockResponseRepo) GetByChildSection(_ context.Context, childID, sectionID uuid.UUID) (*assessment.Response, error) {
	r, ok := m.bySection[sectionID]
	if !ok || r.ChildID != childID {
		return nil, assessment.ErrNotFound
	}
	return r, nil
}
func (m *mockResponseRepo) ListByChild(_ context.Context, childID uuid.UUID) ([]*assessment.Response, error) {
	var out []*assessment.Response
	for _, r := range m.bySection {
		if r.ChildID == childID {
			out = append(out, r)
		}
	}
	return out, nil
}
func (m *mockResponseRepo) Update(_ context.Context, r *assessment.Response) error {
	m.bySection[r.SectionID] = r
	return nil
}

type mockAnswerRepo struct {
	details map[uuid.UUID][]*assessment.AnswerDetail // by response
}

func (m *mockAnswerRepo) Create(_ context.Context, _ *assessment.QuestionAnswer) error { return nil }
func (m *mockAnswerRepo) ListByResponse(_ context.Context, _ uuid.UUID) ([]*assessment.QuestionAnswer, error) {
	return nil, nil
}
func (m *mockAnswerRepo) ListDetailsByResponse(_ context.Context, responseID uuid.UUID) ([]*assessment.AnswerDetail, error) {
	return m.details[responseID], nil
}

type mockChildRepo struct {
	children map[uuid.UUID]*clinical.Child
}

func (m *mockChildRepo) Create(_ context.Context, c *clinical.Child) error {
	m.children[c.ID] = c
	return nil
}
func (m *mockChildRepo) GetByID(_ context.Context, id uuid.UUID) (*clinical.Child, error) {
	c, ok := m.children[id]
	if !ok {
		return nil, clinical.ErrNotFound
	}
	return c, nil
}
func (m *mockChildRepo) List(_ context.Context, _, _ int) ([]*clinical.Child, int, error) {
	return nil, 0, nil
}
func (m *mockChildRepo) Update(_ context.Context, c *clinical.Child) error {
	m.children[c.ID] = c
	return nil
}

// ---- catalog mocks ----

type mockPoolRepo struct{ pools map[uuid.UUID]*catalog.Pool }

func (m *mockPoolRepo) Create(_ context.Context, p *catalog.Pool) error { m.pools[p.ID] = p; return nil }
func (m *mockPoolRepo) GetByID(_ context.Context, id uuid.UUID) (*catalog.Pool, error) {
	p, ok := m.pools[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}
func (m *mockPoolRepo) ListActive(_ context.Context) ([]*catalog.Pool, error) {
	var out []*catalog.Pool
	for _, p := range m.pools {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}
func (m *mockPoolRepo) List(_ context.Context, _, _ int) ([]*catalog.Pool, int, error) {
	return nil, 0, nil
}
func (m *mockPoolRepo) Update(_ context.Context, p *catalog.Pool) error  { m.pools[p.ID] = p; return nil }
func (m *mockPoolRepo) Deactivate(_ context.Context, _ uuid.UUID) error { return nil }

type mockSectionRepo struct{ sections map[uuid.UUID]*catalog.Section }

func (m *mockSectionRepo) Create(_ context.Context, s *catalog.Section) error {
	m.sections[s.ID] = s
	return nil
}
func (m *mockSectionRepo) GetByID(_ context.Context, id uuid.UUID) (*catalog.Section, error) {
	s, ok := m.sections[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return s, nil
}
func (m *mockSectionRepo) ListActiveByPool(_ context.Context, poolID uuid.UUID) ([]*catalog.Section, error) {
	var out []*catalog.Section
	for _, s := range m.sections {
		if s.PoolID == poolID && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}
func (m *mockSectionRepo) List(_ context.Context, _, _ int) ([]*catalog.Section, int, error) {
	return nil, 0, nil
}
func (m *mockSectionRepo) Update(_ context.Context, s *catalog.Section) error {
	m.sections[s.ID] = s
	return nil
}
func (m *mockSectionRepo) Deactivate(_ context.Context, _ uuid.UUID) error { return nil }

type mockQuestionRepo struct{ questions map[uuid.UUID]*catalog.Question }

func (m *mockQuestionRepo) Create(_ context.Context, q *catalog.Question) error {
	m.questions[q.ID] = q
	return nil
}
func (m *mockQuestionRepo) GetByID(_ context.Context, id uuid.UUID) (*catalog.Question, error) {
	q, ok := m.questions[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return q, nil
}
func (m *mockQuestionRepo) ListBySection(_ context.Context, sectionID uuid.UUID) ([]*catalog.Question, error) {
	var out []*catalog.Question
	for _, q := range m.questions {
		if q.SectionID == sectionID {
			out = append(out, q)
		}
	}
	return out, nil
}
func (m *mockQuestionRepo) ListApplicable(_ context.Context, sectionID uuid.UUID, ageMonths int) ([]*catalog.Question, error) {
	var out []*catalog.Question
	for _, q := range m.questions {
		if q.SectionID == sectionID && q.AppliesAt(ageMonths) {
			out = append(out, q)
		}
	}
	return out, nil
}
func (m *mockQuestionRepo) CountApplicable(ctx context.Context, sectionID uuid.UUID, ageMonths int) (int, error) {
	qs, err := m.ListApplicable(ctx, sectionID, ageMonths)
	return len(qs), err
}
func (m *mockQuestionRepo) Update(_ context.Context, q *catalog.Question) error {
	m.questions[q.ID] = q
	return nil
}
func (m *mockQuestionRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.questions, id)
	return nil
}

type stubGenerator struct {
	mu     sync.Mutex
	output string
	err    error
	calls  int
}

func (g *stubGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.output, nil
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// ---- fixture ----

type fixture struct {
	svc       *Service
	gen       *stubGenerator
	summaries *mockSummaryRepo
	reports   *mockReportRepo
	responses *mockResponseRepo

	child *clinical.Child
	// Pool A (weight 25) and B (weight 28) each have one applicable
	// section; pool C (weight 19) has no section applicable at 36 months.
	poolA, poolB, poolC *catalog.Pool
	secA, secB          *catalog.Section
	respA, respB        *assessment.Response
}

func intp(v int) *int { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	poolA := &catalog.Pool{ID: uuid.New(), Title: "Communication", Weight: 25, IsActive: true}
	poolB := &catalog.Pool{ID: uuid.New(), Title: "Social Interaction", Weight: 28, IsActive: true}
	poolC := &catalog.Pool{ID: uuid.New(), Title: "School Readiness", Weight: 19, IsActive: true}

	secA := &catalog.Section{ID: uuid.New(), PoolID: poolA.ID, Title: "Expressive language", IsActive: true}
	secB := &catalog.Section{ID: uuid.New(), PoolID: poolB.ID, Title: "Peer play", IsActive: true}
	secC := &catalog.Section{ID: uuid.New(), PoolID: poolC.ID, Title: "Classroom skills", IsActive: true}

	qa := &catalog.Question{ID: uuid.New(), SectionID: secA.ID, Key: "uses_sentences",
		Text: "Does the child use full sentences?", MinAgeMonths: 12, MaxAgeMonths: 120, MaxScore: 4}
	qb := &catalog.Question{ID: uuid.New(), SectionID: secB.ID, Key: "joins_play",
		Text: "Does the child join other children in play?", MinAgeMonths: 12, MaxAgeMonths: 120, MaxScore: 4}
	// Only applicable from 60 months, so pool C is not applicable at 36.
	qc := &catalog.Question{ID: uuid.New(), SectionID: secC.ID, Key: "follows_classroom_rules",
		Text: "Does the child follow classroom rules?", MinAgeMonths: 60, MaxAgeMonths: 120, MaxScore: 4}

	cat := catalog.NewService(
		&mockPoolRepo{pools: map[uuid.UUID]*catalog.Pool{poolA.ID: poolA, poolB.ID: poolB, poolC.ID: poolC}},
		&mockSectionRepo{sections: map[uuid.UUID]*catalog.Section{secA.ID: secA, secB.ID: secB, secC.ID: secC}},
		&mockQuestionRepo{questions: map[uuid.UUID]*catalog.Question{qa.ID: qa, qb.ID: qb, qc.ID: qc}},
	)

	child := &clinical.Child{
		ID:          uuid.New(),
		FirstName:   "Ravi",
		LastName:    "Nair",
		DateOfBirth: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		Gender:      "MALE",
	}

	completedAt := now.Add(-time.Hour)
	respA := &assessment.Response{
		ID: uuid.New(), ChildID: child.ID, SectionID: secA.ID,
		Status: assessment.StatusCompleted, TotalScore: intp(80), MaxPossibleScore: intp(100),
		CompletedAt: &completedAt,
	}
	respB := &assessment.Response{
		ID: uuid.New(), ChildID: child.ID, SectionID: secB.ID,
		Status: assessment.StatusCompleted, TotalScore: intp(28), MaxPossibleScore: intp(28),
		CompletedAt: &completedAt,
	}

	answers := &mockAnswerRepo{details: map[uuid.UUID][]*assessment.AnswerDetail{
		respA.ID: {{
			Answer:       assessment.QuestionAnswer{QuestionID: qa.ID, RawAnswer: "yes", AnswerBucket: assessment.BucketYes, Score: 4},
			QuestionText: qa.Text, QuestionKey: qa.Key, QuestionMaxScore: 4,
		}},
		respB.ID: {{
			Answer:       assessment.QuestionAnswer{QuestionID: qb.ID, RawAnswer: "often", AnswerBucket: assessment.BucketSometimes, Score: 2},
			QuestionText: qb.Text, QuestionKey: qb.Key, QuestionMaxScore: 4,
		}},
	}}

	gen := &stubGenerator{output: `{"summary":"narrative"}`}
	summaries := newMockSummaryRepo()
	reports := newMockReportRepo()
	responses := &mockResponseRepo{bySection: map[uuid.UUID]*assessment.Response{}}

	svc := NewService(summaries, reports, responses, answers,
		&mockChildRepo{children: map[uuid.UUID]*clinical.Child{child.ID: child}},
		cat, gen, zerolog.Nop())
	svc.now = func() time.Time { return now }

	return &fixture{
		svc: svc, gen: gen, summaries: summaries, reports: reports, responses: responses,
		child: child, poolA: poolA, poolB: poolB, poolC: poolC,
		secA: secA, secB: secB, respA: respA, respB: respB,
	}
}

func (f *fixture) completeSection(resp *assessment.Response) {
	f.responses.bySection[resp.SectionID] = resp
}

func TestPoolSummary_NotYetComplete(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CheckAndGeneratePoolSummary(context.Background(), f.child.ID, f.poolA.ID)
	if !errors.Is(err, ErrNotYetComplete) {
		t.Fatalf("err = %v, want ErrNotYetComplete", err)
	}
	if f.gen.callCount() != 0 {
		t.Error("generator called before completion")
	}
}

func TestPoolSummary_GeneratedOnceComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeSection(f.respA)

	summary, err := f.svc.CheckAndGeneratePoolSummary(ctx, f.child.ID, f.poolA.ID)
	if err != nil {
		t.Fatalf("CheckAndGeneratePoolSummary: %v", err)
	}
	if summary.NotApplicable {
		t.Error("summary marked not applicable")
	}
	if *summary.TotalScore != 80 || *summary.MaxPossibleScore != 100 {
		t.Errorf("scores = %d/%d, want 80/100", *summary.TotalScore, *summary.MaxPossibleScore)
	}
	if summary.TotalSections != 1 || summary.CompletedSections != 1 {
		t.Errorf("sections = %d/%d, want 1/1", summary.CompletedSections, summary.TotalSections)
	}

	// Second trigger is a no-op: same row, no extra generation.
	calls := f.gen.callCount()
	again, err := f.svc.CheckAndGeneratePoolSummary(ctx, f.child.ID, f.poolA.ID)
	if err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if again.ID != summary.ID {
		t.Error("second trigger created a new summary")
	}
	if f.gen.callCount() != calls {
		t.Error("second trigger invoked the generator")
	}
}

func TestPoolSummary_NotApplicableFastPath(t *testing.T) {
	f := newFixture(t)
	// Even with the generator down, the not-applicable path must succeed
	// with a canned payload.
	f.gen.err = errors.New("upstream down")

	summary, err := f.svc.CheckAndGeneratePoolSummary(context.Background(), f.child.ID, f.poolC.ID)
	if err != nil {
		t.Fatalf("not-applicable path failed: %v", err)
	}
	if !summary.NotApplicable {
		t.Error("summary not marked not applicable")
	}
	if *summary.TotalScore != 0 || *summary.MaxPossibleScore != 0 {
		t.Errorf("scores = %d/%d, want 0/0", *summary.TotalScore, *summary.MaxPossibleScore)
	}
}

func TestPoolSummary_GenerationFailureLeavesNoPartialWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeSection(f.respA)
	f.gen.err = errors.New("upstream 500")

	_, err := f.svc.CheckAndGeneratePoolSummary(ctx, f.child.ID, f.poolA.ID)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %v, want GenerationError", err)
	}
	if _, err := f.summaries.GetByChildPool(ctx, f.child.ID, f.poolA.ID); !errors.Is(err, ErrNotFound) {
		t.Fatal("failed generation left a persisted summary")
	}

	// The next trigger retries from scratch.
	f.gen.err = nil
	if _, err := f.svc.CheckAndGeneratePoolSummary(ctx, f.child.ID, f.poolA.ID); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestPoolSummary_ConcurrentTriggersPersistOne(t *testing.T) {
	f := newFixture(t)
	f.completeSection(f.respA)

	var wg sync.WaitGroup
	results := make([]*PoolSummary, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.svc.CheckAndGeneratePoolSummary(context.Background(), f.child.ID, f.poolA.ID)
			if err != nil {
				t.Errorf("trigger %d: %v", i, err)
				return
			}
			results[i] = s
		}(i)
	}
	wg.Wait()

	if results[0] == nil || results[1] == nil || results[0].ID != results[1].ID {
		t.Errorf("concurrent triggers did not converge on one summary: %+v vs %+v", results[0], results[1])
	}
	if len(f.summaries.summaries) != 1 {
		t.Errorf("persisted %d summaries, want 1", len(f.summaries.summaries))
	}
}

func TestCascade_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Section A completes first: pool A summarized, report still pending on
	// pool B.
	f.completeSection(f.respA)
	f.svc.OnSectionCompleted(ctx, f.child.ID, f.secA.ID)

	if _, err := f.summaries.GetByChildPool(ctx, f.child.ID, f.poolA.ID); err != nil {
		t.Fatalf("pool A summary missing: %v", err)
	}
	if _, err := f.reports.GetByChild(ctx, f.child.ID); !errors.Is(err, ErrNotFound) {
		t.Fatal("final report generated before all pools were summarized")
	}

	// Section B completes: pool B summarized and the final report cascades.
	f.completeSection(f.respB)
	f.svc.OnSectionCompleted(ctx, f.child.ID, f.secB.ID)

	fr, err := f.reports.GetByChild(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("final report missing: %v", err)
	}
	if fr.TotalPools != 2 || fr.CompletedPools != 2 {
		t.Errorf("pools = %d/%d, want 2/2", fr.CompletedPools, fr.TotalPools)
	}
	if *fr.OverallScore != 108 || *fr.OverallMaxScore != 128 {
		t.Errorf("overall = %d/%d, want 108/128", *fr.OverallScore, *fr.OverallMaxScore)
	}
	if fr.ConcernIndex == nil {
		t.Fatal("concern index not computed")
	}
	want := 80*(25.0/53.0) + 100*(28.0/53.0)
	if diff := *fr.ConcernIndex - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("concern index = %f, want %f", *fr.ConcernIndex, want)
	}
	if *fr.ConcernBand != BandHigh {
		t.Errorf("band = %s, want High", *fr.ConcernBand)
	}
	if fr.Status() != StatusGenerated {
		t.Errorf("status = %s, want GENERATED", fr.Status())
	}
}

func TestCascade_GenerationFailureDoesNotBlockRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeSection(f.respA)
	f.completeSection(f.respB)

	f.gen.err = errors.New("upstream 500")
	f.svc.OnSectionCompleted(ctx, f.child.ID, f.secA.ID)
	if len(f.summaries.summaries) != 0 {
		t.Fatal("failed cascade persisted a summary")
	}

	f.gen.err = nil
	f.svc.OnSectionCompleted(ctx, f.child.ID, f.secA.ID)
	if _, err := f.reports.GetByChild(ctx, f.child.ID); err != nil {
		t.Fatalf("cascade did not recover after generator came back: %v", err)
	}
}

func TestRegeneratePoolSummary_RebuildsDerivedReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeSection(f.respA)
	f.completeSection(f.respB)
	f.svc.OnSectionCompleted(ctx, f.child.ID, f.secA.ID)
	f.svc.OnSectionCompleted(ctx, f.child.ID, f.secB.ID)

	before, _ := f.summaries.GetByChildPool(ctx, f.child.ID, f.poolA.ID)
	reportBefore, _ := f.reports.GetByChild(ctx, f.child.ID)

	after, err := f.svc.RegeneratePoolSummary(ctx, f.child.ID, f.poolA.ID)
	if err != nil {
		t.Fatalf("RegeneratePoolSummary: %v", err)
	}
	if after.ID == before.ID {
		t.Error("regeneration kept the old summary row")
	}
	reportAfter, err := f.reports.GetByChild(ctx, f.child.ID)
	if err != nil {
		t.Fatalf("final report not rebuilt: %v", err)
	}
	if reportAfter.ID == reportBefore.ID {
		t.Error("regeneration kept the old report row")
	}
}

// gatedGenerator blocks inside Generate until released, so a test can hold a
// regeneration open mid-flight.
type gatedGenerator struct {
	mu      sync.Mutex
	entered chan struct{}
	release chan struct{}
	output  string
	calls   int
}

func (g *gatedGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.entered <- struct{}{}
	<-g.release
	return g.output, nil
}

func (g *gatedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestPoolSummary_AutomaticTriggerWaitsForRegeneration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeSection(f.respA)
	f.completeSection(f.respB)
	f.svc.OnSectionCompleted(ctx, f.child.ID, f.secA.ID)
	f.svc.OnSectionCompleted(ctx, f.child.ID, f.secB.ID)

	gated := &gatedGenerator{
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
		output:  `{"summary":"rebuilt"}`,
	}
	f.svc.gen = gated

	regenDone := make(chan *PoolSummary, 1)
	go func() {
		s, err := f.svc.RegeneratePoolSummary(ctx, f.child.ID, f.poolA.ID)
		if err != nil {
			t.Errorf("RegeneratePoolSummary: %v", err)
		}
		regenDone <- s
	}()

	// Regeneration has deleted the old rows and is stuck inside the
	// generator. An automatic trigger for the same (child, pool) arriving
	// now must wait rather than race the recreate.
	<-gated.entered
	autoDone := make(chan *PoolSummary, 1)
	go func() {
		s, err := f.svc.CheckAndGeneratePoolSummary(ctx, f.child.ID, f.poolA.ID)
		if err != nil {
			t.Errorf("automatic trigger: %v", err)
		}
		autoDone <- s
	}()

	select {
	case <-autoDone:
		t.Fatal("automatic trigger ran inside the regeneration window")
	case <-time.After(50 * time.Millisecond):
	}

	close(gated.release)
	regenerated := <-regenDone
	auto := <-autoDone

	if regenerated == nil || auto == nil || auto.ID != regenerated.ID {
		t.Errorf("automatic trigger did not adopt the regenerated summary: %+v vs %+v", auto, regenerated)
	}
	// One generation for the summary, one for the derived report; the
	// waiting trigger reuses the persisted row.
	if got := gated.callCount(); got != 2 {
		t.Errorf("generator calls = %d, want 2", got)
	}
	persisted, err := f.summaries.GetByChildPool(ctx, f.child.ID, f.poolA.ID)
	if err != nil || persisted.ID != regenerated.ID {
		t.Errorf("persisted summary = %+v (err %v), want the regenerated row", persisted, err)
	}
}

func TestReviewSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeSection(f.respA)
	f.completeSection(f.respB)
	f.svc.OnSectionCompleted(ctx, f.child.ID, f.secA.ID)
	f.svc.OnSectionCompleted(ctx, f.child.ID, f.secB.ID)
	fr, _ := f.reports.GetByChild(ctx, f.child.ID)

	notes := "looks consistent"
	if _, err := f.svc.MarkHodReviewed(ctx, fr.ID, "hod-1", &notes); !errors.Is(err, ErrReviewSequence) {
		t.Errorf("hod before doctor = %v, want ErrReviewSequence", err)
	}

	reviewed, err := f.svc.MarkDoctorReviewed(ctx, fr.ID, "doc-1", &notes)
	if err != nil {
		t.Fatalf("doctor review: %v", err)
	}
	if reviewed.Status() != StatusDoctorReviewed {
		t.Errorf("status = %s, want DOCTOR_REVIEWED", reviewed.Status())
	}
	if reviewed.DoctorReviewedBy == nil || *reviewed.DoctorReviewedBy != "doc-1" {
		t.Errorf("doctor_reviewed_by = %v, want doc-1", reviewed.DoctorReviewedBy)
	}
	if _, err := f.svc.MarkDoctorReviewed(ctx, fr.ID, "doc-2", nil); !errors.Is(err, ErrReviewSequence) {
		t.Errorf("double doctor review = %v, want ErrReviewSequence", err)
	}

	final, err := f.svc.MarkHodReviewed(ctx, fr.ID, "hod-1", nil)
	if err != nil {
		t.Fatalf("hod review: %v", err)
	}
	if final.Status() != StatusHodReviewed {
		t.Errorf("status = %s, want HOD_REVIEWED", final.Status())
	}
	if _, err := f.svc.MarkHodReviewed(ctx, fr.ID, "hod-2", nil); !errors.Is(err, ErrReviewSequence) {
		t.Errorf("double hod review = %v, want ErrReviewSequence", err)
	}
}

func TestVisibilityLadder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completeSection(f.respA)
	f.completeSection(f.respB)
	f.svc.OnSectionCompleted(ctx, f.child.ID, f.secA.ID)
	f.svc.OnSectionCompleted(ctx, f.child.ID, f.secB.ID)
	fr, _ := f.reports.GetByChild(ctx, f.child.ID)

	if _, err := f.svc.GetFinalReport(ctx, f.child.ID, "DOCTOR"); err != nil {
		t.Errorf("doctor read of GENERATED report: %v", err)
	}
	if _, err := f.svc.GetFinalReport(ctx, f.child.ID, "admin"); err != nil {
		t.Errorf("admin read of GENERATED report: %v", err)
	}
	if _, err := f.svc.GetFinalReport(ctx, f.child.ID, "HOD"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("hod read before doctor review = %v, want ErrAccessDenied", err)
	}
	if _, err := f.svc.GetFinalReport(ctx, f.child.ID, "PARENT"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("parent read = %v, want ErrAccessDenied", err)
	}

	if _, err := f.svc.MarkDoctorReviewed(ctx, fr.ID, "doc-1", nil); err != nil {
		t.Fatalf("doctor review: %v", err)
	}
	if _, err := f.svc.GetFinalReport(ctx, f.child.ID, "HOD"); err != nil {
		t.Errorf("hod read after doctor review: %v", err)
	}
}
