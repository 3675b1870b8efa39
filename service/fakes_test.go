package service

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/docx"
	"fapdraft-backend/llm"
	"fapdraft-backend/models"
	"fapdraft-backend/repository"
	"fapdraft-backend/retry"
)

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func ptr[T any](v T) *T { return &v }

// bagOfWords embeds text by hashing folded words into a fixed number of
// buckets, so texts sharing words are close.
type bagOfWords struct {
	dim   int
	calls int
	mu    sync.Mutex
}

func (b *bagOfWords) Dimension() int { return b.dim }
func (b *bagOfWords) Model() string  { return "bag-of-words" }

func (b *bagOfWords) Embed(_ context.Context, text string) ([]float32, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()

	vec := make([]float32, b.dim)
	words := strings.FieldsFunc(docx.Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(b.dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}

// stubLLM answers with fn and records every request.
type stubLLM struct {
	mu       sync.Mutex
	fn       func(req llm.Request) (string, error)
	requests []llm.Request
}

func (s *stubLLM) Provider() string { return "stub" }

func (s *stubLLM) Generate(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.fn(req)
}

func (s *stubLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func answer(text string) *stubLLM {
	return &stubLLM{fn: func(llm.Request) (string, error) { return text, nil }}
}

type fakeTenants struct {
	tenants map[int64]*models.Tenant
}

func (f *fakeTenants) GetByID(_ context.Context, id int64) (*models.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, apperrors.NotFound("tenant %d", id)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTenants) SetDefaults(_ context.Context, id int64, templateID *int64, basePath *string) error {
	t, ok := f.tenants[id]
	if !ok {
		return apperrors.NotFound("tenant %d", id)
	}
	if templateID != nil {
		t.DefaultTemplateID = templateID
	}
	if basePath != nil {
		t.BaseDocumentPath = basePath
	}
	return nil
}

type fakeCases struct {
	cases map[int64]*models.Case
}

func (f *fakeCases) GetByID(_ context.Context, tenantID, id int64) (*models.Case, error) {
	c, ok := f.cases[id]
	if !ok || c.TenantID != tenantID {
		return nil, apperrors.NotFound("case %d", id)
	}
	cp := *c
	return &cp, nil
}

type fakeBenefits struct {
	mu       sync.Mutex
	cases    *fakeCases
	reasons  *fakeReasons
	benefits map[int64]*models.Benefit
	nextID   int64
	updates  map[int64]repository.ClassificationUpdate
}

func newFakeBenefits(cases *fakeCases, reasons *fakeReasons) *fakeBenefits {
	return &fakeBenefits{
		cases:    cases,
		reasons:  reasons,
		benefits: map[int64]*models.Benefit{},
		updates:  map[int64]repository.ClassificationUpdate{},
	}
}

func (f *fakeBenefits) owned(tenantID int64, b *models.Benefit) bool {
	c, ok := f.cases.cases[b.CaseID]
	return ok && c.TenantID == tenantID
}

func (f *fakeBenefits) GetByID(_ context.Context, tenantID, id int64) (*models.Benefit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.benefits[id]
	if !ok || !f.owned(tenantID, b) {
		return nil, apperrors.NotFound("benefit %d", id)
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBenefits) ListByCase(_ context.Context, tenantID, caseID int64) ([]*models.Benefit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Benefit
	for _, b := range f.benefits {
		if b.CaseID == caseID && f.owned(tenantID, b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBenefits) CreateBatch(_ context.Context, tenantID, caseID int64, benefits []*models.Benefit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases.cases[caseID]
	if !ok || c.TenantID != tenantID {
		return apperrors.NotFound("case %d", caseID)
	}
	for _, b := range benefits {
		f.nextID++
		b.ID = f.nextID
		b.CaseID = caseID
		cp := *b
		f.benefits[b.ID] = &cp
	}
	return nil
}

func (f *fakeBenefits) add(b *models.Benefit) *models.Benefit {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	f.benefits[b.ID] = b
	return b
}

func (f *fakeBenefits) UpdateClassification(_ context.Context, tenantID, id int64, u repository.ClassificationUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.benefits[id]
	if !ok || !f.owned(tenantID, b) {
		return apperrors.NotFound("benefit %d", id)
	}
	if u.ReasonID != nil {
		if r, ok := f.reasons.reasons[*u.ReasonID]; !ok || r.TenantID != tenantID {
			return apperrors.NotFound("reason %d", *u.ReasonID)
		}
	}
	b.ClassifiedReasonID = u.ReasonID
	b.ClassificationConfidence = ptr(u.Confidence)
	b.ClassificationNote = ptr(u.Note)
	b.ClassificationPrompt = ptr(u.PromptVersion)
	b.NeedsReview = u.NeedsReview
	f.updates[id] = u
	return nil
}

type fakeReasons struct {
	reasons map[int64]*models.FapReason
}

func (f *fakeReasons) GetByID(_ context.Context, tenantID, id int64) (*models.FapReason, error) {
	r, ok := f.reasons[id]
	if !ok || r.TenantID != tenantID {
		return nil, apperrors.NotFound("reason %d", id)
	}
	return r, nil
}

func (f *fakeReasons) ListActive(_ context.Context, tenantID int64) ([]*models.FapReason, error) {
	var out []*models.FapReason
	for _, r := range f.reasons {
		if r.TenantID == tenantID && r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeTemplates struct {
	mu        sync.Mutex
	templates map[int64]*models.Template
	nextID    int64
}

func newFakeTemplates() *fakeTemplates {
	return &fakeTemplates{templates: map[int64]*models.Template{}}
}

func (f *fakeTemplates) Create(_ context.Context, t *models.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	cp := *t
	f.templates[t.ID] = &cp
	return nil
}

func (f *fakeTemplates) GetByID(_ context.Context, tenantID, id int64) (*models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok || t.TenantID != tenantID {
		return nil, apperrors.NotFound("template %d", id)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTemplates) ListActive(_ context.Context, tenantID int64, category string) ([]*models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Template
	for _, t := range f.templates {
		if t.TenantID == tenantID && t.Active && (category == "" || t.Category == category) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeTemplates) IncrementUsage(_ context.Context, tenantID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok || t.TenantID != tenantID {
		return apperrors.NotFound("template %d", id)
	}
	t.UsageCount++
	return nil
}

type fakeKnowledge struct {
	mu      sync.Mutex
	docs    map[int64]*models.KnowledgeDocument
	history []*models.ChatHistoryEntry
	nextID  int64
}

func newFakeKnowledge() *fakeKnowledge {
	return &fakeKnowledge{docs: map[int64]*models.KnowledgeDocument{}}
}

func (f *fakeKnowledge) CreateDocument(_ context.Context, d *models.KnowledgeDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	d.ID = f.nextID
	cp := *d
	f.docs[d.ID] = &cp
	return nil
}

func (f *fakeKnowledge) GetDocument(_ context.Context, tenantID, id int64) (*models.KnowledgeDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok || d.TenantID != tenantID {
		return nil, apperrors.NotFound("document %d", id)
	}
	cp := *d
	return &cp, nil
}

func (f *fakeKnowledge) ListDocuments(_ context.Context, tenantID int64, category string) ([]*models.KnowledgeDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.KnowledgeDocument
	for _, d := range f.docs {
		if d.TenantID == tenantID && d.Active && (category == "" || d.Category == category) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeKnowledge) SetChunkCount(_ context.Context, tenantID, id int64, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok || d.TenantID != tenantID {
		return apperrors.NotFound("document %d", id)
	}
	d.ChunkCount = count
	return nil
}

func (f *fakeKnowledge) Deactivate(_ context.Context, tenantID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok || d.TenantID != tenantID {
		return apperrors.NotFound("document %d", id)
	}
	d.Active = false
	return nil
}

func (f *fakeKnowledge) AppendHistory(_ context.Context, e *models.ChatHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.ID = f.nextID
	cp := *e
	f.history = append(f.history, &cp)
	return nil
}

func (f *fakeKnowledge) ListHistory(_ context.Context, tenantID, userID int64, limit int) ([]*models.ChatHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ChatHistoryEntry
	for i := len(f.history) - 1; i >= 0 && len(out) < limit; i-- {
		if e := f.history[i]; e.TenantID == tenantID && e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeGenerations struct {
	mu   sync.Mutex
	gens map[int64]*models.PetitionGeneration
	// progress records every status written, in order.
	progress []models.GenerationStatus
	nextID   int64
	// failProgress makes the next UpdateProgress call fail.
	failProgress error
}

func newFakeGenerations() *fakeGenerations {
	return &fakeGenerations{gens: map[int64]*models.PetitionGeneration{}}
}

func (f *fakeGenerations) Create(_ context.Context, g *models.PetitionGeneration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	version := 0
	for _, other := range f.gens {
		if other.CaseID == g.CaseID && other.Version > version {
			version = other.Version
		}
	}
	f.nextID++
	g.ID = f.nextID
	g.Version = version + 1
	cp := *g
	cp.Steps = append(models.GenerationSteps(nil), g.Steps...)
	f.gens[g.ID] = &cp
	return nil
}

func (f *fakeGenerations) get(tenantID, id int64) (*models.PetitionGeneration, error) {
	g, ok := f.gens[id]
	if !ok || g.TenantID != tenantID {
		return nil, apperrors.NotFound("generation %d", id)
	}
	return g, nil
}

func (f *fakeGenerations) GetByID(_ context.Context, tenantID, id int64) (*models.PetitionGeneration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, err := f.get(tenantID, id)
	if err != nil {
		return nil, err
	}
	cp := *g
	cp.Steps = append(models.GenerationSteps(nil), g.Steps...)
	return &cp, nil
}

func (f *fakeGenerations) ListByCase(_ context.Context, tenantID, caseID int64) ([]*models.PetitionGeneration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PetitionGeneration
	for _, g := range f.gens {
		if g.TenantID == tenantID && g.CaseID == caseID {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (f *fakeGenerations) UpdateProgress(_ context.Context, tenantID, id int64, status models.GenerationStatus, steps models.GenerationSteps, templateID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failProgress; err != nil {
		f.failProgress = nil
		return err
	}
	g, err := f.get(tenantID, id)
	if err != nil {
		return err
	}
	g.Status = status
	g.Steps = append(models.GenerationSteps(nil), steps...)
	if templateID != nil {
		g.TemplateID = templateID
	}
	f.progress = append(f.progress, status)
	return nil
}

func (f *fakeGenerations) Complete(_ context.Context, tenantID, id int64, filePath string, steps models.GenerationSteps) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, err := f.get(tenantID, id)
	if err != nil {
		return err
	}
	g.Status = models.GenerationCompleted
	g.FilePath = &filePath
	g.Steps = append(models.GenerationSteps(nil), steps...)
	f.progress = append(f.progress, g.Status)
	return nil
}

func (f *fakeGenerations) Fail(_ context.Context, tenantID, id int64, errorMessage string, steps models.GenerationSteps) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, err := f.get(tenantID, id)
	if err != nil {
		return err
	}
	g.Status = models.GenerationError
	g.ErrorMessage = &errorMessage
	g.Steps = append(models.GenerationSteps(nil), steps...)
	f.progress = append(f.progress, g.Status)
	return nil
}

var (
	_ TenantStore     = (*fakeTenants)(nil)
	_ CaseStore       = (*fakeCases)(nil)
	_ BenefitStore    = (*fakeBenefits)(nil)
	_ ReasonStore     = (*fakeReasons)(nil)
	_ TemplateStore   = (*fakeTemplates)(nil)
	_ KnowledgeStore  = (*fakeKnowledge)(nil)
	_ GenerationStore = (*fakeGenerations)(nil)
)
