package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/models"
)

// KnowledgeRepository handles knowledge documents and the chat history
// produced by questions against them.
type KnowledgeRepository struct {
	db *pgxpool.Pool
}

// NewKnowledgeRepository creates a new knowledge repository
func NewKnowledgeRepository(db *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

var documentColumns = []string{
	"id", "tenant_id", "title", "filename", "file_path", "category", "description",
	"tags", "lawsuit_number", "chunk_count", "active", "created_at", "updated_at",
}

func documentFields(d *models.KnowledgeDocument) []any {
	return []any{
		&d.ID, &d.TenantID, &d.Title, &d.Filename, &d.FilePath, &d.Category, &d.Description,
		&d.Tags, &d.LawsuitNumber, &d.ChunkCount, &d.Active, &d.CreatedAt, &d.UpdatedAt,
	}
}

// CreateDocument inserts a knowledge document record
func (r *KnowledgeRepository) CreateDocument(ctx context.Context, d *models.KnowledgeDocument) error {
	query, args, err := psql.Insert("knowledge_documents").
		Columns("tenant_id", "title", "filename", "file_path", "category", "description", "tags", "lawsuit_number", "active").
		Values(d.TenantID, d.Title, d.Filename, d.FilePath, d.Category, d.Description, d.Tags, d.LawsuitNumber, d.Active).
		Suffix("RETURNING id, chunk_count, created_at, updated_at").
		ToSql()
	if err != nil {
		return err
	}
	return r.db.QueryRow(ctx, query, args...).Scan(&d.ID, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt)
}

// GetDocument retrieves a knowledge document of the tenant
func (r *KnowledgeRepository) GetDocument(ctx context.Context, tenantID, id int64) (*models.KnowledgeDocument, error) {
	query, args, err := psql.Select(documentColumns...).
		From("knowledge_documents").
		Where(sq.Eq{"id": id, "tenant_id": tenantID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	d := &models.KnowledgeDocument{}
	if err := r.db.QueryRow(ctx, query, args...).Scan(documentFields(d)...); err != nil {
		return nil, notFound(err, "knowledge document", id)
	}
	return d, nil
}

// ListDocuments lists active documents, optionally restricted to a category.
func (r *KnowledgeRepository) ListDocuments(ctx context.Context, tenantID int64, category string) ([]*models.KnowledgeDocument, error) {
	builder := psql.Select(documentColumns...).
		From("knowledge_documents").
		Where(sq.Eq{"tenant_id": tenantID, "active": true}).
		OrderBy("created_at DESC", "id DESC")
	if category != "" {
		builder = builder.Where(sq.Eq{"category": category})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.KnowledgeDocument
	for rows.Next() {
		d := &models.KnowledgeDocument{}
		if err := rows.Scan(documentFields(d)...); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SetChunkCount records how many chunks a document produced.
func (r *KnowledgeRepository) SetChunkCount(ctx context.Context, tenantID, id int64, count int) error {
	return r.update(ctx, tenantID, id, map[string]any{"chunk_count": count})
}

// Deactivate soft-deletes a document.
func (r *KnowledgeRepository) Deactivate(ctx context.Context, tenantID, id int64) error {
	return r.update(ctx, tenantID, id, map[string]any{"active": false})
}

func (r *KnowledgeRepository) update(ctx context.Context, tenantID, id int64, fields map[string]any) error {
	query, args, err := psql.Update("knowledge_documents").
		SetMap(fields).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "tenant_id": tenantID}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("knowledge document %d", id)
	}
	return nil
}

// AppendHistory stores one answered question.
func (r *KnowledgeRepository) AppendHistory(ctx context.Context, e *models.ChatHistoryEntry) error {
	query, args, err := psql.Insert("chat_history").
		Columns("tenant_id", "user_id", "question", "answer", "sources", "response_time_ms").
		Values(e.TenantID, e.UserID, e.Question, e.Answer, e.Sources, e.ResponseTimeMS).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return err
	}
	return r.db.QueryRow(ctx, query, args...).Scan(&e.ID, &e.CreatedAt)
}

// ListHistory returns a user's most recent questions first.
func (r *KnowledgeRepository) ListHistory(ctx context.Context, tenantID, userID int64, limit int) ([]*models.ChatHistoryEntry, error) {
	builder := psql.Select("id", "tenant_id", "user_id", "question", "answer", "sources", "response_time_ms", "created_at").
		From("chat_history").
		Where(sq.Eq{"tenant_id": tenantID, "user_id": userID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer rows.Close()

	var entries []*models.ChatHistoryEntry
	for rows.Next() {
		e := &models.ChatHistoryEntry{}
		if err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &e.Question, &e.Answer, &e.Sources, &e.ResponseTimeMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
