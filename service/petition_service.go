package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/docx"
	"fapdraft-backend/metrics"
	"fapdraft-backend/models"
	"fapdraft-backend/placeholder"
	"fapdraft-backend/storage"
)

var (
	ErrCaseNotFound        = fmt.Errorf("%w: case", apperrors.ErrNotFound)
	ErrGenerationNotFound  = fmt.Errorf("%w: generation", apperrors.ErrNotFound)
	ErrBaseDocumentMissing = fmt.Errorf("%w: tenant has no base document", apperrors.ErrValidation)
	ErrGenerationNotReady  = fmt.Errorf("%w: generation not completed", apperrors.ErrValidation)
)

// Generation steps in execution order.
const (
	StepLoadCase     = "Carregando caso"
	StepTemplate     = "Selecionando modelo"
	StepPlaceholders = "Preenchendo campos"
	StepBenefits     = "Tabela de benefícios"
	StepCompose      = "Montando documento"
	StepSave         = "Salvando arquivo"
)

var generationSteps = []string{StepLoadCase, StepTemplate, StepPlaceholders, StepBenefits, StepCompose, StepSave}

// PetitionService composes petitions and manages their generation records
type PetitionService struct {
	cases       CaseStore
	benefits    BenefitStore
	tenants     TenantStore
	generations GenerationStore
	templates   *TemplateService
	files       storage.Storage
	resolver    *placeholder.Resolver
	log         *zap.Logger
	now         func() time.Time
}

// PetitionServiceOption is a functional option for PetitionService
type PetitionServiceOption func(*PetitionService)

// WithCaseRepository sets the case repository
func WithCaseRepository(r CaseStore) PetitionServiceOption {
	return func(s *PetitionService) { s.cases = r }
}

// WithBenefitRepository sets the benefit repository
func WithBenefitRepository(r BenefitStore) PetitionServiceOption {
	return func(s *PetitionService) { s.benefits = r }
}

// WithTenantRepository sets the tenant repository
func WithTenantRepository(r TenantStore) PetitionServiceOption {
	return func(s *PetitionService) { s.tenants = r }
}

// WithGenerationRepository sets the generation repository
func WithGenerationRepository(r GenerationStore) PetitionServiceOption {
	return func(s *PetitionService) { s.generations = r }
}

// WithTemplateService sets the template registry
func WithTemplateService(t *TemplateService) PetitionServiceOption {
	return func(s *PetitionService) { s.templates = t }
}

// WithStorage sets where generated petitions are written
func WithStorage(st storage.Storage) PetitionServiceOption {
	return func(s *PetitionService) { s.files = st }
}

// WithResolver sets the placeholder resolver
func WithResolver(r *placeholder.Resolver) PetitionServiceOption {
	return func(s *PetitionService) { s.resolver = r }
}

func WithLogger(l *zap.Logger) PetitionServiceOption {
	return func(s *PetitionService) { s.log = l }
}

func WithClock(now func() time.Time) PetitionServiceOption {
	return func(s *PetitionService) { s.now = now }
}

// NewPetitionService creates a new petition service
func NewPetitionService(opts ...PetitionServiceOption) *PetitionService {
	s := &PetitionService{
		resolver: placeholder.New(),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ComposeResult is a composed petition
type ComposeResult struct {
	Document     *docx.Document
	Data         []byte
	Template     *models.Template
	ReasonID     *int64
	Replacements int
	TableFilled  bool
}

// Compose builds the petition of a case: the tenant base document followed
// by the resolved template body, both with placeholders replaced and the
// body's benefits table filled. Nothing is persisted.
func (s *PetitionService) Compose(ctx context.Context, tenantID, caseID int64) (*ComposeResult, error) {
	return s.compose(ctx, tenantID, caseID, nil)
}

func (s *PetitionService) compose(ctx context.Context, tenantID, caseID int64, tr *stepTracker) (*ComposeResult, error) {
	if s.cases == nil || s.benefits == nil || s.tenants == nil || s.templates == nil {
		return nil, errors.New("petition service not configured")
	}
	log := s.log.With(zap.Int64("tenant_id", tenantID), zap.Int64("case_id", caseID))

	// 1-2. Case and benefits
	if err := tr.begin(ctx, StepLoadCase); err != nil {
		return nil, err
	}
	c, benefits, err := s.loadCase(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}

	// 3-4. Template and base document
	if err := tr.begin(ctx, StepTemplate); err != nil {
		return nil, err
	}
	reasonID := petitionReason(c, benefits)
	tmpl, err := s.templates.Resolve(ctx, tenantID, reasonID)
	if err != nil {
		return nil, err
	}
	tr.setTemplate(tmpl.ID)
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.BaseDocumentPath == nil || *tenant.BaseDocumentPath == "" {
		return nil, fmt.Errorf("%w: %d", ErrBaseDocumentMissing, tenantID)
	}
	base, err := s.templates.Open(ctx, tenantID, *tenant.BaseDocumentPath)
	if err != nil {
		return nil, err
	}
	body, err := s.templates.Open(ctx, tenantID, tmpl.FilePath)
	if err != nil {
		return nil, err
	}

	// 5. Placeholders, resolved once for both documents
	if err := tr.begin(ctx, StepPlaceholders); err != nil {
		return nil, err
	}
	values := s.resolver.Resolve(c, benefits, s.now())
	replaced := 0
	for _, doc := range []*docx.Document{base, body} {
		n, err := docx.ApplyReplacements(doc, values)
		if err != nil {
			return nil, err
		}
		replaced += n
	}

	// 6. Benefits table, body only
	if err := tr.begin(ctx, StepBenefits); err != nil {
		return nil, err
	}
	rows := make([][]string, len(benefits))
	for i := range benefits {
		rows[i] = placeholder.BenefitRow(c, i+1, &benefits[i])
	}
	filled, err := docx.FillBenefitsTable(body, rows)
	if err != nil {
		return nil, err
	}
	if !filled && len(rows) > 0 {
		log.Warn("template has no benefits table", zap.Int64("template_id", tmpl.ID))
	}

	// 7. Compose
	if err := tr.begin(ctx, StepCompose); err != nil {
		return nil, err
	}
	out, err := docx.Compose(base, body)
	if err != nil {
		return nil, err
	}
	data, err := out.Bytes()
	if err != nil {
		return nil, err
	}

	log.Info("petition composed",
		zap.Int64("template_id", tmpl.ID),
		zap.Int("benefits", len(benefits)),
		zap.Int("replacements", replaced),
		zap.Bool("table_filled", filled),
	)
	return &ComposeResult{
		Document:     out,
		Data:         data,
		Template:     tmpl,
		ReasonID:     reasonID,
		Replacements: replaced,
		TableFilled:  filled,
	}, nil
}

func (s *PetitionService) loadCase(ctx context.Context, tenantID, caseID int64) (*models.Case, []models.Benefit, error) {
	c, err := s.cases.GetByID(ctx, tenantID, caseID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w %d", ErrCaseNotFound, caseID)
	}
	if err != nil {
		return nil, nil, err
	}
	list, err := s.benefits.ListByCase(ctx, tenantID, caseID)
	if err != nil {
		return nil, nil, err
	}
	benefits := make([]models.Benefit, len(list))
	for i, b := range list {
		benefits[i] = *b
	}
	return c, benefits, nil
}

// petitionReason picks the reason whose template drafts the petition. The
// first benefit carrying a classified reason wins; the case level reason is
// the fallback; nil selects the tenant default template.
func petitionReason(c *models.Case, benefits []models.Benefit) *int64 {
	for _, b := range benefits {
		if b.ClassifiedReasonID != nil {
			id := *b.ClassifiedReasonID
			return &id
		}
	}
	if c.FapReasonID != nil {
		id := *c.FapReasonID
		return &id
	}
	return nil
}

// Preview resolves the placeholders of a case for display.
func (s *PetitionService) Preview(ctx context.Context, tenantID, caseID int64) (map[string]string, error) {
	c, benefits, err := s.loadCase(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}
	return s.resolver.Preview(c, benefits, s.now()), nil
}

// StartGenerationRequest represents a request to generate a petition
type StartGenerationRequest struct {
	TenantID int64
	CaseID   int64
	UserID   *int64
}

// StartGeneration records a pending generation and returns immediately.
// The caller runs ProcessGeneration in the background.
func (s *PetitionService) StartGeneration(ctx context.Context, req StartGenerationRequest) (*models.PetitionGeneration, error) {
	if s.generations == nil || s.cases == nil {
		return nil, errors.New("generation repository not set")
	}
	if _, err := s.cases.GetByID(ctx, req.TenantID, req.CaseID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w %d", ErrCaseNotFound, req.CaseID)
		}
		return nil, err
	}

	steps := make(models.GenerationSteps, 0, len(generationSteps))
	for _, name := range generationSteps {
		steps = append(steps, models.GenerationStep{Name: name, Status: "pending"})
	}
	gen := &models.PetitionGeneration{
		TenantID: req.TenantID,
		CaseID:   req.CaseID,
		UserID:   req.UserID,
		Status:   models.GenerationPending,
		Steps:    steps,
	}
	if err := s.generations.Create(ctx, gen); err != nil {
		return nil, err
	}
	s.log.Info("petition generation queued",
		zap.Int64("tenant_id", req.TenantID),
		zap.Int64("case_id", req.CaseID),
		zap.Int64("generation_id", gen.ID),
		zap.Int("version", gen.Version),
	)
	return gen, nil
}

// ProcessGeneration runs a queued generation to completion or error.
func (s *PetitionService) ProcessGeneration(ctx context.Context, tenantID, generationID int64) error {
	if s.generations == nil || s.files == nil {
		return errors.New("generation repository or storage not set")
	}
	gen, err := s.GetGeneration(ctx, tenantID, generationID)
	if err != nil {
		return err
	}
	log := s.log.With(zap.Int64("tenant_id", tenantID), zap.Int64("case_id", gen.CaseID), zap.Int64("generation_id", gen.ID))
	start := s.now()

	tr := &stepTracker{store: s.generations, tenantID: tenantID, id: gen.ID, steps: gen.Steps}
	var result *ComposeResult
	if err = s.generations.UpdateProgress(ctx, tenantID, gen.ID, models.GenerationProcessing, tr.steps, nil); err != nil {
		err = fmt.Errorf("failed to update generation status: %w", err)
	} else {
		result, err = s.compose(ctx, tenantID, gen.CaseID, tr)
	}
	if err == nil {
		err = tr.begin(ctx, StepSave)
	}
	var key string
	if err == nil {
		key = storage.TenantKey(tenantID, storage.KindPetition, gen.Filename())
		err = s.files.Put(ctx, key, bytes.NewReader(result.Data))
	}
	if err == nil {
		tr.finish()
		if err = s.generations.Complete(ctx, tenantID, gen.ID, key, tr.steps); err != nil {
			err = fmt.Errorf("failed to complete generation: %w", err)
		}
	}
	if err != nil {
		s.markFailed(tenantID, tr, err)
		metrics.PetitionGenerations.WithLabelValues(string(models.GenerationError)).Inc()
		log.Error("petition generation failed", zap.String("step", tr.current), zap.Error(err))
		return err
	}
	if err := s.templates.IncrementUsage(ctx, tenantID, result.Template.ID); err != nil {
		log.Warn("failed to increment template usage", zap.Int64("template_id", result.Template.ID), zap.Error(err))
	}

	elapsed := s.now().Sub(start)
	metrics.PetitionGenerations.WithLabelValues(string(models.GenerationCompleted)).Inc()
	metrics.PetitionGenerationDuration.Observe(elapsed.Seconds())
	log.Info("petition generated",
		zap.Int("version", gen.Version),
		zap.String("file_path", key),
		zap.Int64("latency_ms", elapsed.Milliseconds()),
	)
	return nil
}

// markFailed records the error on its own context so a cancelled request
// still leaves a final status behind.
func (s *PetitionService) markFailed(tenantID int64, tr *stepTracker, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tr.fail()
	if err := s.generations.Fail(ctx, tenantID, tr.id, cause.Error(), tr.steps); err != nil {
		s.log.Error("failed to mark generation as failed", zap.Int64("generation_id", tr.id), zap.Error(err))
	}
}

// GetGeneration retrieves a generation record
func (s *PetitionService) GetGeneration(ctx context.Context, tenantID, id int64) (*models.PetitionGeneration, error) {
	gen, err := s.generations.GetByID(ctx, tenantID, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w %d", ErrGenerationNotFound, id)
	}
	return gen, err
}

// ListGenerations lists the generations of a case, newest version first
func (s *PetitionService) ListGenerations(ctx context.Context, tenantID, caseID int64) ([]*models.PetitionGeneration, error) {
	return s.generations.ListByCase(ctx, tenantID, caseID)
}

// OpenGeneration opens the file of a completed generation. The caller
// closes the reader.
func (s *PetitionService) OpenGeneration(ctx context.Context, tenantID, id int64) (io.ReadCloser, *models.PetitionGeneration, error) {
	gen, err := s.GetGeneration(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
	}
	if gen.Status != models.GenerationCompleted || gen.FilePath == nil {
		return nil, nil, fmt.Errorf("%w: %d is %s", ErrGenerationNotReady, id, gen.Status)
	}
	rc, err := s.files.Get(ctx, *gen.FilePath)
	if err != nil {
		return nil, nil, err
	}
	return rc, gen, nil
}

// stepTracker persists step progress of one generation. A nil tracker
// ignores every call.
type stepTracker struct {
	store      GenerationStore
	tenantID   int64
	id         int64
	steps      models.GenerationSteps
	current    string
	templateID *int64
}

// begin completes the running step and starts name.
func (t *stepTracker) begin(ctx context.Context, name string) error {
	if t == nil {
		return nil
	}
	if t.current != "" {
		t.steps = t.steps.Set(t.current, "completed")
	}
	t.current = name
	t.steps = t.steps.Set(name, "processing")
	return t.store.UpdateProgress(ctx, t.tenantID, t.id, models.GenerationProcessing, t.steps, t.templateID)
}

func (t *stepTracker) setTemplate(id int64) {
	if t != nil {
		t.templateID = &id
	}
}

func (t *stepTracker) finish() {
	if t.current != "" {
		t.steps = t.steps.Set(t.current, "completed")
	}
}

func (t *stepTracker) fail() {
	if t.current != "" {
		t.steps = t.steps.Set(t.current, "error")
	}
}
