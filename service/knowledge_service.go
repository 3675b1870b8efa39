package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/chunker"
	"fapdraft-backend/converter"
	"fapdraft-backend/embedding"
	"fapdraft-backend/llm"
	"fapdraft-backend/metrics"
	"fapdraft-backend/models"
	"fapdraft-backend/retry"
	"fapdraft-backend/storage"
	"fapdraft-backend/vectorstore"
)

// DocumentConverter turns a file into markdown text.
type DocumentConverter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// KnowledgeService ingests documents into a tenant's vector collection and
// answers questions grounded on it.
type KnowledgeService struct {
	converter   DocumentConverter
	chunker     *chunker.Chunker
	embedder    embedding.Embedder
	vectors     vectorstore.Store
	llm         llm.Client
	docs        KnowledgeStore
	files       storage.Storage
	collection  string
	topK        int
	temperature float32
	retry       retry.Config
	log         *zap.Logger
	now         func() time.Time

	ensured sync.Map
}

// KnowledgeServiceOption is a functional option for KnowledgeService
type KnowledgeServiceOption func(*KnowledgeService)

func KnowledgeWithConverter(c DocumentConverter) KnowledgeServiceOption {
	return func(s *KnowledgeService) { s.converter = c }
}

func KnowledgeWithChunker(c *chunker.Chunker) KnowledgeServiceOption {
	return func(s *KnowledgeService) { s.chunker = c }
}

func KnowledgeWithEmbedder(e embedding.Embedder) KnowledgeServiceOption {
	return func(s *KnowledgeService) { s.embedder = e }
}

func KnowledgeWithVectorStore(v vectorstore.Store) KnowledgeServiceOption {
	return func(s *KnowledgeService) { s.vectors = v }
}

func KnowledgeWithLLM(c llm.Client) KnowledgeServiceOption {
	return func(s *KnowledgeService) { s.llm = c }
}

func KnowledgeWithRepository(r KnowledgeStore) KnowledgeServiceOption {
	return func(s *KnowledgeService) { s.docs = r }
}

func KnowledgeWithStorage(st storage.Storage) KnowledgeServiceOption {
	return func(s *KnowledgeService) { s.files = st }
}

// KnowledgeWithCollection sets the prefix of tenant collection names.
func KnowledgeWithCollection(prefix string) KnowledgeServiceOption {
	return func(s *KnowledgeService) { s.collection = prefix }
}

func KnowledgeWithTopK(k int) KnowledgeServiceOption {
	return func(s *KnowledgeService) { s.topK = k }
}

func KnowledgeWithTemperature(t float32) KnowledgeServiceOption {
	return func(s *KnowledgeService) { s.temperature = t }
}

func KnowledgeWithRetry(cfg retry.Config) KnowledgeServiceOption {
	return func(s *KnowledgeService) { s.retry = cfg }
}

func KnowledgeWithLogger(l *zap.Logger) KnowledgeServiceOption {
	return func(s *KnowledgeService) { s.log = l }
}

func KnowledgeWithClock(now func() time.Time) KnowledgeServiceOption {
	return func(s *KnowledgeService) { s.now = now }
}

// NewKnowledgeService creates a new knowledge service
func NewKnowledgeService(opts ...KnowledgeServiceOption) *KnowledgeService {
	s := &KnowledgeService{
		converter:  converter.New(),
		chunker:    chunker.New(chunker.DefaultMaxChars, chunker.DefaultOverlap),
		collection: "fap_knowledge",
		topK:       5,
		retry:      retry.DefaultConfig(),
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collection is the vector collection of a tenant.
func (s *KnowledgeService) Collection(tenantID int64) string {
	return vectorstore.TenantCollection(s.collection, tenantID)
}

// EnsureCollection creates the tenant collection or verifies its dimension.
func (s *KnowledgeService) EnsureCollection(ctx context.Context, name string) error {
	if _, ok := s.ensured.Load(name); ok {
		return nil
	}
	if err := s.vectors.EnsureCollection(ctx, name, s.embedder.Dimension()); err != nil {
		return err
	}
	s.ensured.Store(name, struct{}{})
	return nil
}

// IngestRequest describes one file to add to a tenant knowledge base
type IngestRequest struct {
	TenantID      int64
	FilePath      string
	Source        string
	Category      string
	Description   string
	Tags          string
	LawsuitNumber string
	ParentID      *int64
}

// IngestResult lists the records written. NoOp means nothing was written.
type IngestResult struct {
	IDs  []string
	NoOp bool
}

// Ingest converts, chunks, embeds and stores a file. All chunks are
// written in one upsert or not at all.
func (s *KnowledgeService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if s.embedder == nil || s.vectors == nil {
		return nil, errors.New("knowledge service not configured")
	}
	source := req.Source
	if source == "" {
		source = filepath.Base(req.FilePath)
	}
	log := s.log.With(zap.Int64("tenant_id", req.TenantID), zap.String("source", source))
	start := s.now()
	log.Debug("ingest started")

	text, err := s.converter.Convert(ctx, req.FilePath)
	if err != nil {
		log.Warn("conversion failed", zap.Error(err))
		return &IngestResult{NoOp: true}, err
	}
	if strings.TrimSpace(text) == "" {
		log.Info("document has no text, nothing ingested")
		return &IngestResult{NoOp: true}, nil
	}

	collection := s.Collection(req.TenantID)
	if err := s.EnsureCollection(ctx, collection); err != nil {
		return nil, err
	}

	chunks := s.chunker.Split(text)
	ingestedAt := start.UTC().Format(time.RFC3339)
	records := make([]vectorstore.Record, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := retry.DoWithResult(ctx, s.retry, func(ctx context.Context) ([]float32, error) {
			return s.embedder.Embed(ctx, chunk)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d of %s: %w", i, source, err)
		}
		records = append(records, vectorstore.Record{
			ID:     uuid.NewString(),
			Vector: vec,
			Payload: vectorstore.Payload{
				Text:          chunk,
				Source:        source,
				Category:      req.Category,
				Description:   req.Description,
				Tags:          req.Tags,
				LawsuitNumber: req.LawsuitNumber,
				ChunkIndex:    i,
				ChunkTotal:    len(chunks),
				IngestedAt:    ingestedAt,
				ParentID:      req.ParentID,
			},
		})
	}

	err = retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return s.vectors.Upsert(ctx, collection, records)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks of %s: %w", source, err)
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	metrics.IngestedChunks.WithLabelValues(req.Category).Add(float64(len(records)))
	log.Info("document ingested",
		zap.String("collection", collection),
		zap.Int("chunks", len(records)),
		zap.Int64("latency_ms", s.now().Sub(start).Milliseconds()),
	)
	return &IngestResult{IDs: ids}, nil
}

// UploadDocumentRequest is a file uploaded to the knowledge base
type UploadDocumentRequest struct {
	Filename      string
	Title         string
	Category      string
	Description   string
	Tags          string
	LawsuitNumber string
	Data          io.Reader
}

// UploadDocumentResult is the stored document and its ingest outcome
type UploadDocumentResult struct {
	Document *models.KnowledgeDocument
	Ingest   *IngestResult
}

// UploadDocument stores the file, records the document and ingests it with
// the document id as parent. A failed ingest deactivates the record.
func (s *KnowledgeService) UploadDocument(ctx context.Context, tenantID int64, req UploadDocumentRequest) (*UploadDocumentResult, error) {
	if s.docs == nil || s.files == nil {
		return nil, errors.New("knowledge repository or storage not set")
	}
	filename := storage.SanitizeFilename(req.Filename)
	if !converter.Supports(filename) {
		return nil, apperrors.Validation("unsupported file type: %s", filepath.Ext(filename))
	}
	data, err := io.ReadAll(req.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	key := storage.TenantKey(tenantID, storage.KindKnowledge, filename)
	if err := s.files.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	doc := &models.KnowledgeDocument{
		TenantID:      tenantID,
		Title:         title,
		Filename:      filename,
		FilePath:      key,
		Category:      req.Category,
		Description:   req.Description,
		Tags:          req.Tags,
		LawsuitNumber: req.LawsuitNumber,
		Active:        true,
	}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		_ = s.files.Delete(ctx, key)
		return nil, err
	}

	tmpPath, cleanup, err := spool(filename, data)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	result, err := s.Ingest(ctx, IngestRequest{
		TenantID:      tenantID,
		FilePath:      tmpPath,
		Source:        filename,
		Category:      req.Category,
		Description:   req.Description,
		Tags:          req.Tags,
		LawsuitNumber: req.LawsuitNumber,
		ParentID:      &doc.ID,
	})
	if err != nil {
		if derr := s.docs.Deactivate(ctx, tenantID, doc.ID); derr != nil {
			s.log.Warn("failed to deactivate document after ingest error", zap.Int64("document_id", doc.ID), zap.Error(derr))
		}
		return nil, err
	}

	doc.ChunkCount = len(result.IDs)
	if err := s.docs.SetChunkCount(ctx, tenantID, doc.ID, doc.ChunkCount); err != nil {
		return nil, err
	}
	return &UploadDocumentResult{Document: doc, Ingest: result}, nil
}

// spool writes data to a temporary file keeping the extension the
// converter dispatches on.
func spool(filename string, data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "kb-*"+filepath.Ext(filename))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

// DeactivateDocument soft-deletes a document and removes its chunks.
func (s *KnowledgeService) DeactivateDocument(ctx context.Context, tenantID, id int64) error {
	doc, err := s.docs.GetDocument(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := s.docs.Deactivate(ctx, tenantID, id); err != nil {
		return err
	}
	err = s.vectors.DeleteBySource(ctx, s.Collection(tenantID), doc.Filename)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	s.log.Info("document deactivated", zap.Int64("tenant_id", tenantID), zap.String("source", doc.Filename))
	return nil
}

// ListDocuments lists the active documents of a tenant
func (s *KnowledgeService) ListDocuments(ctx context.Context, tenantID int64, category string) ([]*models.KnowledgeDocument, error) {
	return s.docs.ListDocuments(ctx, tenantID, category)
}

// Turn is a previous exchange shown to the model as conversation context.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AskRequest is a question against a tenant knowledge base
type AskRequest struct {
	TenantID int64
	UserID   int64
	Question string
	History  []Turn
	K        int
}

// AskResult is a grounded answer
type AskResult struct {
	Answer         string         `json:"answer"`
	Sources        []string       `json:"sources"`
	Passages       models.Sources `json:"passages"`
	HistoryID      *int64         `json:"history_id,omitempty"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

const askSystemPrompt = `Você é um assistente jurídico especializado em contestações do FAP (Fator Acidentário de Prevenção).
Responda em português usando somente os trechos numerados fornecidos no contexto.
Em "sources" liste apenas os números dos trechos que você realmente usou.
Se o contexto não permitir responder, diga que não sabe e devolva "sources" vazio.`

var askSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"answer":  {Type: llm.TypeString, Description: "resposta em português"},
		"sources": {Type: llm.TypeArray, Items: &llm.Schema{Type: llm.TypeInteger}, Description: "números dos trechos usados"},
	},
	Required: []string{"answer", "sources"},
}

type askAnswer struct {
	Answer  string            `json:"answer"`
	Sources []json.RawMessage `json:"sources"`
}

// Ask answers a question from the k nearest chunks. Chat history is only
// shown to the model; it is never retrieved from.
func (s *KnowledgeService) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	if s.embedder == nil || s.vectors == nil || s.llm == nil {
		return nil, errors.New("knowledge service not configured")
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, apperrors.Validation("question is empty")
	}
	k := req.K
	if k <= 0 {
		k = s.topK
	}
	start := s.now()
	log := s.log.With(zap.Int64("tenant_id", req.TenantID))

	qvec, err := retry.DoWithResult(ctx, s.retry, func(ctx context.Context) ([]float32, error) {
		return s.embedder.Embed(ctx, question)
	})
	if err != nil {
		metrics.KnowledgeQueries.WithLabelValues("error").Inc()
		return nil, err
	}

	collection := s.Collection(req.TenantID)
	hits, err := retry.DoWithResult(ctx, s.retry, func(ctx context.Context) ([]vectorstore.Hit, error) {
		return s.vectors.Query(ctx, collection, qvec, k)
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		hits, err = nil, nil
	}
	if err != nil {
		metrics.KnowledgeQueries.WithLabelValues("error").Inc()
		return nil, err
	}

	var answer askAnswer
	err = retry.Do(ctx, s.retry, func(ctx context.Context) error {
		return llm.GenerateJSON(ctx, s.llm, llm.Request{
			System:      askSystemPrompt,
			Prompt:      buildAskPrompt(question, req.History, hits),
			Schema:      askSchema,
			Temperature: s.temperature,
			Operation:   "ask",
		}, &answer)
	})
	if err != nil {
		metrics.KnowledgeQueries.WithLabelValues("error").Inc()
		return nil, err
	}

	result := &AskResult{Answer: strings.TrimSpace(answer.Answer), Sources: []string{}, Passages: models.Sources{}}
	seen := map[string]bool{}
	for _, idx := range citedIndices(answer.Sources, len(hits)) {
		h := hits[idx-1]
		result.Passages = append(result.Passages, models.Source{
			Index:         idx,
			Source:        h.Payload.Source,
			Category:      h.Payload.Category,
			LawsuitNumber: h.Payload.LawsuitNumber,
			ChunkIndex:    h.Payload.ChunkIndex,
			Score:         h.Score,
			Text:          h.Payload.Text,
		})
		if !seen[h.Payload.Source] {
			seen[h.Payload.Source] = true
			result.Sources = append(result.Sources, h.Payload.Source)
		}
	}
	result.ResponseTimeMS = s.now().Sub(start).Milliseconds()

	status := "answered"
	if len(result.Sources) == 0 {
		status = "abstained"
	}
	metrics.KnowledgeQueries.WithLabelValues(status).Inc()
	log.Info("question answered",
		zap.String("collection", collection),
		zap.Int("hits", len(hits)),
		zap.Strings("sources", result.Sources),
		zap.Int64("latency_ms", result.ResponseTimeMS),
	)

	if req.TenantID != 0 && req.UserID != 0 && s.docs != nil {
		entry := &models.ChatHistoryEntry{
			TenantID:       req.TenantID,
			UserID:         req.UserID,
			Question:       question,
			Answer:         result.Answer,
			Sources:        result.Passages,
			ResponseTimeMS: result.ResponseTimeMS,
		}
		if err := s.docs.AppendHistory(ctx, entry); err != nil {
			log.Warn("failed to store chat history", zap.Error(err))
		} else {
			result.HistoryID = &entry.ID
		}
	}
	return result, nil
}

func buildAskPrompt(question string, history []Turn, hits []vectorstore.Hit) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversa anterior:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "Pergunta: %s\nResposta: %s\n", t.Question, t.Answer)
		}
		b.WriteString("\n")
	}
	b.WriteString("Contexto:\n")
	if len(hits) == 0 {
		b.WriteString("(nenhum trecho encontrado)\n")
	}
	for i, h := range hits {
		fmt.Fprintf(&b, "[%d] (fonte: %s)\n%s\n\n", i+1, h.Payload.Source, strings.TrimSpace(h.Payload.Text))
	}
	fmt.Fprintf(&b, "Pergunta: %s", question)
	return b.String()
}

// citedIndices parses the model's source list into distinct 1-based hit
// indices, dropping anything that is not a number in range.
func citedIndices(raw []json.RawMessage, n int) []int {
	var out []int
	seen := map[int]bool{}
	for _, r := range raw {
		var idx int
		var num json.Number
		var str string
		switch {
		case json.Unmarshal(r, &num) == nil:
			v, err := strconv.Atoi(num.String())
			if err != nil {
				continue
			}
			idx = v
		case json.Unmarshal(r, &str) == nil:
			v, err := strconv.Atoi(strings.Trim(strings.TrimSpace(str), "[]"))
			if err != nil {
				continue
			}
			idx = v
		default:
			continue
		}
		if idx < 1 || idx > n || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out
}

// History returns the latest questions of a user
func (s *KnowledgeService) History(ctx context.Context, tenantID, userID int64, limit int) ([]*models.ChatHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.docs.ListHistory(ctx, tenantID, userID, limit)
}
