package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/mindvault/backend/internal/vector"
	"github.com/mindvault/backend/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

func NewClient(ctx context.Context, endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Document chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(m.vectorDim),
				},
			},
			{
				Name:     "document_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "page",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index config: %w", err)
	}

	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

// Upsert writes all records in one call. Re-upserting an existing
// chunk_id overwrites its vector and metadata.
func (m *Client) Upsert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	documentIDs := make([]string, len(records))
	texts := make([]string, len(records))
	pages := make([]int64, len(records))

	for i, rec := range records {
		chunkIDs[i] = rec.ID
		embeddings[i] = rec.Vector
		documentIDs[i] = rec.Metadata.DocumentID
		texts[i] = rec.Metadata.Text
		pages[i] = int64(rec.Metadata.Page)
	}

	_, err := m.client.Upsert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("document_id", documentIDs),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnInt64("page", pages),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks upserted into vector index", zap.Int("count", len(records)))

	return nil
}

// Query returns the topK nearest chunks with metadata, best match first.
func (m *Client) Query(ctx context.Context, queryEmbedding []float32, topK int) ([]vector.Match, error) {
	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"document_id", "text", "page"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]vector.Match, 0)
	for _, sr := range searchResult {
		docIDCol := sr.Fields.GetColumn("document_id")
		textCol := sr.Fields.GetColumn("text")
		pageCol := sr.Fields.GetColumn("page")

		for i := 0; i < sr.ResultCount; i++ {
			docID, _ := docIDCol.Get(i)
			text, _ := textCol.Get(i)
			page, _ := pageCol.Get(i)

			matches = append(matches, vector.Match{
				Score: sr.Scores[i],
				Metadata: vector.Metadata{
					DocumentID: docID.(string),
					Text:       text.(string),
					Page:       int(page.(int64)),
				},
			})
		}
	}

	logger.Debug("Vector query completed",
		zap.Int("topK", topK),
		zap.Int("matches", len(matches)),
	)

	return matches, nil
}
