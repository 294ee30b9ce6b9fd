// Package ingestion runs the document pipeline: fetch, extract, chunk,
// embed, index, with document status tracking the run's progress.
package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/mindvault/backend/internal/chunker"
	"github.com/mindvault/backend/internal/metrics"
	"github.com/mindvault/backend/internal/storage/models"
	"github.com/mindvault/backend/internal/vector"
	"github.com/mindvault/backend/pkg/logger"
)

// Job describes one document to ingest. Triggered once, at document
// creation; the coordinator does not serialize re-invocations for the
// same id.
type Job struct {
	DocumentID string
	StorageKey string
	MimeType   string
}

// ObjectStore fetches raw uploaded bytes.
type ObjectStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Extractor converts raw bytes to text for a declared mime type.
type Extractor interface {
	Extract(data []byte, mimeType string) (string, error)
}

// Embedder embeds a full chunk batch in one call, preserving order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex stores chunk vectors, idempotent by record id.
type VectorIndex interface {
	Upsert(ctx context.Context, records []vector.Record) error
}

// DocumentStore persists status transitions.
type DocumentStore interface {
	UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus) error
}

type Coordinator struct {
	store     DocumentStore
	objects   ObjectStore
	extractor Extractor
	embedder  Embedder
	index     VectorIndex
	chunkOpts chunker.Options
	pool      *ants.Pool
}

func NewCoordinator(
	store DocumentStore,
	objects ObjectStore,
	extractor Extractor,
	embedder Embedder,
	index VectorIndex,
	chunkOpts chunker.Options,
	workers int,
) (*Coordinator, error) {
	if workers < 1 {
		workers = 1
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Coordinator{
		store:     store,
		objects:   objects,
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		chunkOpts: chunkOpts,
		pool:      pool,
	}, nil
}

// Enqueue submits the job to the bounded worker pool and returns once
// queued. The triggering request never sees the pipeline's outcome;
// failures land in the document status instead.
func (c *Coordinator) Enqueue(job Job) error {
	err := c.pool.Submit(func() {
		c.Process(context.Background(), job)
	})
	if err != nil {
		if err == ants.ErrPoolClosed {
			return ErrPoolClosed
		}
		return fmt.Errorf("failed to submit ingestion job: %w", err)
	}
	return nil
}

// Process runs the pipeline to a terminal status. Stages are strict and
// sequential; the first failing stage marks the document failed and
// stops the run. Vectors upserted before a later failure are left in
// place; the index may hold orphans for a failed document.
func (c *Coordinator) Process(ctx context.Context, job Job) {
	log := logger.GetLogger().With(
		zap.String("doc_id", job.DocumentID),
		zap.String("mime_type", job.MimeType),
	)
	log.Info("Processing document")

	timer := metrics.IngestionTimer()
	defer timer.ObserveDuration()

	// Status reflects in-flight work before any I/O happens.
	if err := c.store.UpdateDocumentStatus(ctx, job.DocumentID, models.StatusProcessing); err != nil {
		log.Error("Failed to mark document processing", zap.Error(err))
		metrics.DocumentsIngested.WithLabelValues("failed").Inc()
		// The run still has to reach a terminal status; a document
		// stuck in pending would poll forever.
		if statusErr := c.store.UpdateDocumentStatus(ctx, job.DocumentID, models.StatusFailed); statusErr != nil {
			log.Error("Failed to mark document failed", zap.Error(statusErr))
		}
		return
	}

	count, err := c.run(ctx, job)
	if err != nil {
		log.Error("Ingestion failed", zap.Error(err))
		metrics.DocumentsIngested.WithLabelValues("failed").Inc()
		if statusErr := c.store.UpdateDocumentStatus(ctx, job.DocumentID, models.StatusFailed); statusErr != nil {
			log.Error("Failed to mark document failed", zap.Error(statusErr))
		}
		return
	}

	if err := c.store.UpdateDocumentStatus(ctx, job.DocumentID, models.StatusIndexed); err != nil {
		log.Error("Failed to mark document indexed", zap.Error(err))
		metrics.DocumentsIngested.WithLabelValues("failed").Inc()
		return
	}

	metrics.DocumentsIngested.WithLabelValues("indexed").Inc()
	metrics.ChunksIndexed.Add(float64(count))
	log.Info("Document indexed", zap.Int("chunks", count))
}

// run executes the fetch→extract→chunk→embed→upsert stages and returns
// the number of chunk records written.
func (c *Coordinator) run(ctx context.Context, job Job) (int, error) {
	data, err := c.objects.Fetch(ctx, job.StorageKey)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	text, err := c.extractor.Extract(data, job.MimeType)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}

	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyContent
	}

	chunks := chunker.Split(text, c.chunkOpts)
	if len(chunks) == 0 {
		return 0, ErrEmptyContent
	}

	// One batched call for the whole document.
	embeddings, err := c.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}

	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embed: count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	isPDF := strings.HasPrefix(job.MimeType, "application/pdf")

	records := make([]vector.Record, len(chunks))
	for i, chunkText := range chunks {
		page := 1
		if isPDF {
			// Chunk order stands in for page numbers; the extractor
			// does not carry a page map through chunking.
			page = i + 1
		}

		records[i] = vector.Record{
			ID:     fmt.Sprintf("%s_%d", job.DocumentID, i),
			Vector: embeddings[i],
			Metadata: vector.Metadata{
				DocumentID: job.DocumentID,
				Text:       chunkText,
				Page:       page,
			},
		}
	}

	if err := c.index.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("index: %w", err)
	}

	return len(records), nil
}

// Release drains the worker pool. The coordinator must not be used
// afterwards.
func (c *Coordinator) Release() {
	c.pool.Release()
}
