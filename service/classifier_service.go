package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"fapdraft-backend/docx"
	"fapdraft-backend/llm"
	"fapdraft-backend/metrics"
	"fapdraft-backend/repository"
	"fapdraft-backend/retry"
)

// PromptVersion identifies the classification prompt stored with each result.
const PromptVersion = "fap-reason-v3"

// MinConfidence is the lowest confidence accepted as a classification.
const MinConfidence = 0.5

var (
	nullTokens = []string{
		"nada consta", "nada a declarar", "tipico", "nl", "n/l",
		"sem observacao", "sem observacoes", "nao informado", "nao consta", "-",
	}
	uncertaintyTokens = []string{
		"nao tenho certeza", "incerto", "incerta", "talvez", "nao sei", "duvida",
	}
)

// Classification is the reason chosen for a benefit description. ReasonID
// is nil whenever UnableToClassify is set.
type Classification struct {
	ReasonID         *int64  `json:"reason_id"`
	DisplayName      string  `json:"display_name"`
	Description      string  `json:"description"`
	Confidence       float64 `json:"confidence"`
	Justification    string  `json:"justificativa"`
	UnableToClassify bool    `json:"unable_to_classify"`
	PromptVersion    string  `json:"prompt_version"`
}

func abstain(justification string) *Classification {
	return &Classification{
		Confidence:       0,
		Justification:    justification,
		UnableToClassify: true,
		PromptVersion:    PromptVersion,
	}
}

// ClassifierService maps benefit descriptions onto the tenant reason catalog.
type ClassifierService struct {
	reasons  ReasonStore
	benefits BenefitStore
	llm      llm.Client
	retry    retry.Config
	log      *zap.Logger
}

// ClassifierServiceOption is a functional option for ClassifierService
type ClassifierServiceOption func(*ClassifierService)

func ClassifierWithReasonRepository(r ReasonStore) ClassifierServiceOption {
	return func(s *ClassifierService) { s.reasons = r }
}

func ClassifierWithBenefitRepository(r BenefitStore) ClassifierServiceOption {
	return func(s *ClassifierService) { s.benefits = r }
}

func ClassifierWithLLM(c llm.Client) ClassifierServiceOption {
	return func(s *ClassifierService) { s.llm = c }
}

func ClassifierWithRetry(cfg retry.Config) ClassifierServiceOption {
	return func(s *ClassifierService) { s.retry = cfg }
}

func ClassifierWithLogger(l *zap.Logger) ClassifierServiceOption {
	return func(s *ClassifierService) { s.log = l }
}

// NewClassifierService creates a new classifier service
func NewClassifierService(opts ...ClassifierServiceOption) *ClassifierService {
	s := &ClassifierService{
		retry: retry.DefaultConfig(),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const classifierSystemPrompt = `Você classifica benefícios previdenciários para contestação do FAP.
Escolha no catálogo numerado o motivo de contestação que melhor corresponde à descrição.
Responda com o número do catálogo em "id". Use apenas números do catálogo.
"confidence" vai de 0 a 1. "justificativa" tem no máximo duas linhas.
Se a descrição não permitir escolher com segurança, marque "unable_to_classify" como true.`

var classificationSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"id":                 {Type: llm.TypeInteger, Nullable: true, Description: "número do motivo no catálogo"},
		"display_name":       {Type: llm.TypeString, Nullable: true},
		"description":        {Type: llm.TypeString, Nullable: true},
		"confidence":         {Type: llm.TypeNumber},
		"justificativa":      {Type: llm.TypeString},
		"unable_to_classify": {Type: llm.TypeBoolean},
	},
	Required: []string{"confidence", "justificativa", "unable_to_classify"},
}

type classificationAnswer struct {
	ID               *int    `json:"id"`
	DisplayName      string  `json:"display_name"`
	Description      string  `json:"description"`
	Confidence       float64 `json:"confidence"`
	Justificativa    string  `json:"justificativa"`
	UnableToClassify bool    `json:"unable_to_classify"`
}

// Classify picks the catalog reason matching description. Descriptions that
// are empty or carry a null or uncertainty marker abstain without calling
// the model.
func (s *ClassifierService) Classify(ctx context.Context, tenantID int64, description string) (*Classification, error) {
	log := s.log.With(zap.Int64("tenant_id", tenantID), zap.String("prompt_version", PromptVersion))

	if reason := shortCircuit(description); reason != "" {
		metrics.Classifications.WithLabelValues("short_circuit").Inc()
		log.Debug("classification short-circuited", zap.String("reason", reason))
		return abstain(reason), nil
	}

	if s.reasons == nil || s.llm == nil {
		return nil, errors.New("classifier not configured")
	}
	catalog, err := s.reasons.ListActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		metrics.Classifications.WithLabelValues("abstained").Inc()
		return abstain("Nenhum motivo de contestação cadastrado."), nil
	}

	var b strings.Builder
	b.WriteString("Catálogo de motivos:\n")
	for i, r := range catalog {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, r.DisplayName, r.Description)
	}
	fmt.Fprintf(&b, "\nDescrição do benefício:\n%s", strings.TrimSpace(description))

	start := time.Now()
	log.Debug("classification started", zap.Int("catalog_size", len(catalog)))

	var answer classificationAnswer
	err = retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return llm.GenerateJSON(ctx, s.llm, llm.Request{
			System:      classifierSystemPrompt,
			Prompt:      b.String(),
			Schema:      classificationSchema,
			Temperature: 0,
			Operation:   "classify",
		}, &answer)
	})
	if errors.Is(err, llm.ErrSchemaViolation) {
		metrics.Classifications.WithLabelValues("abstained").Inc()
		log.Warn("classification answer rejected", zap.Error(err))
		return abstain("Resposta do modelo fora do formato esperado: " + err.Error()), nil
	}
	if err != nil {
		metrics.Classifications.WithLabelValues("error").Inc()
		log.Warn("classification failed", zap.Error(err))
		return nil, err
	}

	result := &Classification{
		Confidence:       clamp01(answer.Confidence),
		Justification:    strings.TrimSpace(answer.Justificativa),
		UnableToClassify: answer.UnableToClassify,
		PromptVersion:    PromptVersion,
	}
	switch {
	case result.UnableToClassify:
	case answer.ID == nil || *answer.ID < 1 || *answer.ID > len(catalog):
		result.UnableToClassify = true
		if result.Justification == "" {
			result.Justification = "Motivo retornado não pertence ao catálogo."
		}
	case result.Confidence < MinConfidence:
		result.UnableToClassify = true
	default:
		// Name and description come from the catalog, not from the model.
		reason := catalog[*answer.ID-1]
		id := reason.ID
		result.ReasonID = &id
		result.DisplayName = reason.DisplayName
		result.Description = reason.Description
	}

	outcome := "classified"
	if result.UnableToClassify {
		outcome = "abstained"
	}
	metrics.Classifications.WithLabelValues(outcome).Inc()
	log.Info("benefit description classified",
		zap.String("outcome", outcome),
		zap.Float64("confidence", result.Confidence),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)
	return result, nil
}

// ClassifyBenefit classifies a stored benefit and records the outcome on it.
func (s *ClassifierService) ClassifyBenefit(ctx context.Context, tenantID, benefitID int64) (*Classification, error) {
	if s.benefits == nil {
		return nil, errors.New("benefit repository not set")
	}
	benefit, err := s.benefits.GetByID(ctx, tenantID, benefitID)
	if err != nil {
		return nil, err
	}
	result, err := s.Classify(ctx, tenantID, benefit.Description)
	if err != nil {
		return nil, err
	}
	err = s.benefits.UpdateClassification(ctx, tenantID, benefitID, repository.ClassificationUpdate{
		ReasonID:      result.ReasonID,
		Confidence:    result.Confidence,
		Note:          result.Justification,
		PromptVersion: result.PromptVersion,
		NeedsReview:   result.UnableToClassify,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// shortCircuit returns a justification when description must not reach the
// model, or "" otherwise.
func shortCircuit(description string) string {
	folded := docx.Fold(description)
	if strings.TrimSpace(folded) == "" {
		return "Descrição vazia; não há elementos para classificar."
	}
	words := splitWords(folded)
	for _, tok := range nullTokens {
		if containsToken(folded, words, tok) {
			return fmt.Sprintf("Descrição indica ausência de informação (%q).", tok)
		}
	}
	for _, tok := range uncertaintyTokens {
		if containsToken(folded, words, tok) {
			return fmt.Sprintf("Descrição indica incerteza (%q).", tok)
		}
	}
	return ""
}

// containsToken matches tok as a whole word sequence of text. Tokens
// without letters or digits only match the entire description.
func containsToken(text string, words []string, tok string) bool {
	tw := splitWords(tok)
	if len(tw) == 0 {
		return strings.TrimSpace(text) == tok
	}
	for i := 0; i+len(tw) <= len(words); i++ {
		match := true
		for j := range tw {
			if words[i+j] != tw[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
