package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/logger"
)

const (
	milvusIDField      = "id"
	milvusVectorField  = "embedding"
	milvusSourceField  = "source"
	milvusPayloadField = "payload"
)

// MilvusStore keeps vectors in Milvus or Zilliz Cloud.
type MilvusStore struct {
	client client.Client
	log    *zap.Logger
}

func NewMilvusStore(ctx context.Context, address string) (*MilvusStore, error) {
	c, err := client.NewGrpcClient(ctx, address)
	if err != nil {
		return nil, apperrors.Transient(err, "failed to create milvus client")
	}
	log := logger.Named("milvus")
	log.Info("milvus client initialized", zap.String("address", address))
	return &MilvusStore{client: c, log: log}, nil
}

func (m *MilvusStore) Close() error {
	return m.client.Close()
}

func (m *MilvusStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	has, err := m.client.HasCollection(ctx, name)
	if err != nil {
		return apperrors.Transient(err, "failed to check collection %s", name)
	}
	if has {
		coll, err := m.client.DescribeCollection(ctx, name)
		if err != nil {
			return apperrors.Transient(err, "failed to describe collection %s", name)
		}
		for _, f := range coll.Schema.Fields {
			if f.Name != milvusVectorField {
				continue
			}
			existing, _ := strconv.Atoi(f.TypeParams["dim"])
			if existing != dimension {
				return dimensionError(name, existing, dimension)
			}
		}
		return nil
	}

	schema := &entity.Schema{
		CollectionName: name,
		Description:    "knowledge base chunks",
		Fields: []*entity.Field{
			{
				Name:       milvusIDField,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:       milvusVectorField,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(dimension)},
			},
			{
				Name:       milvusSourceField,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "1024"},
			},
			{
				Name:       milvusPayloadField,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"},
			},
		},
	}
	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return apperrors.Transient(err, "failed to create collection %s", name)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, 16, 200)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := m.client.CreateIndex(ctx, name, milvusVectorField, idx, false); err != nil {
		return apperrors.Transient(err, "failed to create index on %s", name)
	}
	if err := m.client.LoadCollection(ctx, name, false); err != nil {
		return apperrors.Transient(err, "failed to load collection %s", name)
	}
	m.log.Info("collection created and loaded", zap.String("collection", name), zap.Int("dimension", dimension))
	return nil
}

func (m *MilvusStore) Upsert(ctx context.Context, name string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Vector)
	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	sources := make([]string, len(records))
	payloads := make([]string, len(records))
	for i, r := range records {
		if len(r.Vector) != dim {
			return dimensionError(name, dim, len(r.Vector))
		}
		data, err := json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload for %s: %w", r.ID, err)
		}
		ids[i] = r.ID
		vectors[i] = r.Vector
		sources[i] = r.Payload.Source
		payloads[i] = string(data)
	}

	_, err := m.client.Upsert(ctx, name, "",
		entity.NewColumnVarChar(milvusIDField, ids),
		entity.NewColumnFloatVector(milvusVectorField, dim, vectors),
		entity.NewColumnVarChar(milvusSourceField, sources),
		entity.NewColumnVarChar(milvusPayloadField, payloads),
	)
	if err != nil {
		return apperrors.Transient(err, "failed to upsert %d records into %s", len(records), name)
	}
	if err := m.client.Flush(ctx, name, false); err != nil {
		return apperrors.Transient(err, "failed to flush %s", name)
	}
	return nil
}

func (m *MilvusStore) Query(ctx context.Context, name string, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}
	results, err := m.client.Search(
		ctx,
		name,
		[]string{},
		"",
		[]string{milvusIDField, milvusPayloadField},
		[]entity.Vector{entity.FloatVector(vector)},
		milvusVectorField,
		entity.COSINE,
		k,
		sp,
	)
	if err != nil {
		return nil, apperrors.Transient(err, "failed to search %s", name)
	}

	var hits []Hit
	for _, sr := range results {
		idCol, ok := sr.Fields.GetColumn(milvusIDField).(*entity.ColumnVarChar)
		if !ok {
			return nil, fmt.Errorf("milvus result is missing %s", milvusIDField)
		}
		payloadCol, ok := sr.Fields.GetColumn(milvusPayloadField).(*entity.ColumnVarChar)
		if !ok {
			return nil, fmt.Errorf("milvus result is missing %s", milvusPayloadField)
		}
		for i := 0; i < sr.ResultCount; i++ {
			id, err := idCol.ValueByIdx(i)
			if err != nil {
				return nil, fmt.Errorf("failed to read id: %w", err)
			}
			raw, err := payloadCol.ValueByIdx(i)
			if err != nil {
				return nil, fmt.Errorf("failed to read payload: %w", err)
			}
			h := Hit{ID: id, Score: sr.Scores[i]}
			if err := json.Unmarshal([]byte(raw), &h.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode payload of %s: %w", id, err)
			}
			hits = append(hits, h)
		}
	}
	sortHits(hits)
	return hits, nil
}

func (m *MilvusStore) DeleteBySource(ctx context.Context, name, source string) error {
	expr := fmt.Sprintf("%s == %s", milvusSourceField, strconv.Quote(source))
	if err := m.client.Delete(ctx, name, "", expr); err != nil {
		return apperrors.Transient(err, "failed to delete %s from %s", source, name)
	}
	return nil
}
