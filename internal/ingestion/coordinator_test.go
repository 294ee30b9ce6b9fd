package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindvault/backend/internal/chunker"
	"github.com/mindvault/backend/internal/storage/models"
	"github.com/mindvault/backend/internal/vector"
)

type fakeObjects struct {
	data map[string][]byte
	err  error
}

func (f *fakeObjects) Fetch(_ context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data[key], nil
}

type fakeExtractor struct {
	err error
}

func (f *fakeExtractor) Extract(data []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return string(data), nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1.0}
	}
	return out, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	records []vector.Record
	err     error
}

func (f *fakeIndex) Upsert(_ context.Context, records []vector.Record) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, records...)
	return nil
}

type fakeDocs struct {
	mu            sync.Mutex
	statuses      map[string][]models.DocumentStatus
	err           error
	processingErr error
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{statuses: make(map[string][]models.DocumentStatus)}
}

func (f *fakeDocs) UpdateDocumentStatus(_ context.Context, id string, status models.DocumentStatus) error {
	if f.err != nil {
		return f.err
	}
	if f.processingErr != nil && status == models.StatusProcessing {
		return f.processingErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = append(f.statuses[id], status)
	return nil
}

func (f *fakeDocs) history(id string) []models.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id]
}

func newTestCoordinator(t *testing.T, docs *fakeDocs, objects *fakeObjects, embedder *fakeEmbedder, index *fakeIndex) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(docs, objects, &fakeExtractor{}, embedder, index, chunker.Options{}, 1)
	require.NoError(t, err)
	t.Cleanup(c.Release)
	return c
}

func TestProcessIndexesDocument(t *testing.T) {
	docs := newFakeDocs()
	objects := &fakeObjects{data: map[string][]byte{
		"uploads/doc1.txt": []byte(strings.Repeat("content ", 300)),
	}}
	embedder := &fakeEmbedder{}
	index := &fakeIndex{}
	c := newTestCoordinator(t, docs, objects, embedder, index)

	c.Process(context.Background(), Job{
		DocumentID: "doc1",
		StorageKey: "uploads/doc1.txt",
		MimeType:   "text/plain",
	})

	assert.Equal(t,
		[]models.DocumentStatus{models.StatusProcessing, models.StatusIndexed},
		docs.history("doc1"),
	)
	assert.Equal(t, 1, embedder.calls, "whole document embeds in one batch")
	require.NotEmpty(t, index.records)

	expected := chunker.Split(strings.Repeat("content ", 300), chunker.Options{})
	require.Len(t, index.records, len(expected))
	for i, rec := range index.records {
		assert.Equal(t, fmt.Sprintf("doc1_%d", i), rec.ID)
		assert.Equal(t, "doc1", rec.Metadata.DocumentID)
		assert.Equal(t, expected[i], rec.Metadata.Text)
		assert.Equal(t, 1, rec.Metadata.Page, "non-pdf chunks report page 1")
	}
}

func TestProcessPDFUsesChunkOrderAsPage(t *testing.T) {
	docs := newFakeDocs()
	objects := &fakeObjects{data: map[string][]byte{
		"k": []byte(strings.Repeat("page text ", 300)),
	}}
	index := &fakeIndex{}
	c := newTestCoordinator(t, docs, objects, &fakeEmbedder{}, index)

	c.Process(context.Background(), Job{DocumentID: "d", StorageKey: "k", MimeType: "application/pdf"})

	require.NotEmpty(t, index.records)
	for i, rec := range index.records {
		assert.Equal(t, i+1, rec.Metadata.Page)
	}
}

func TestProcessEmptyContentFails(t *testing.T) {
	docs := newFakeDocs()
	objects := &fakeObjects{data: map[string][]byte{"k": []byte("   \n\t ")}}
	index := &fakeIndex{}
	c := newTestCoordinator(t, docs, objects, &fakeEmbedder{}, index)

	c.Process(context.Background(), Job{DocumentID: "d", StorageKey: "k", MimeType: "text/plain"})

	assert.Equal(t,
		[]models.DocumentStatus{models.StatusProcessing, models.StatusFailed},
		docs.history("d"),
	)
	assert.Empty(t, index.records, "nothing reaches the index for empty content")
}

func TestProcessFetchFailureMarksFailed(t *testing.T) {
	docs := newFakeDocs()
	objects := &fakeObjects{err: errors.New("object store unavailable")}
	index := &fakeIndex{}
	c := newTestCoordinator(t, docs, objects, &fakeEmbedder{}, index)

	c.Process(context.Background(), Job{DocumentID: "d", StorageKey: "k", MimeType: "text/plain"})

	assert.Equal(t,
		[]models.DocumentStatus{models.StatusProcessing, models.StatusFailed},
		docs.history("d"),
	)
}

func TestProcessEmbedFailureMarksFailed(t *testing.T) {
	docs := newFakeDocs()
	objects := &fakeObjects{data: map[string][]byte{"k": []byte("some document text")}}
	embedder := &fakeEmbedder{err: errors.New("embedding api down")}
	index := &fakeIndex{}
	c := newTestCoordinator(t, docs, objects, embedder, index)

	c.Process(context.Background(), Job{DocumentID: "d", StorageKey: "k", MimeType: "text/plain"})

	assert.Equal(t,
		[]models.DocumentStatus{models.StatusProcessing, models.StatusFailed},
		docs.history("d"),
	)
	assert.Equal(t, 1, embedder.calls, "no retry on embedding failure")
	assert.Empty(t, index.records)
}

func TestProcessUpsertFailureMarksFailed(t *testing.T) {
	docs := newFakeDocs()
	objects := &fakeObjects{data: map[string][]byte{"k": []byte("some document text")}}
	index := &fakeIndex{err: errors.New("vector index down")}
	c := newTestCoordinator(t, docs, objects, &fakeEmbedder{}, index)

	c.Process(context.Background(), Job{DocumentID: "d", StorageKey: "k", MimeType: "text/plain"})

	assert.Equal(t,
		[]models.DocumentStatus{models.StatusProcessing, models.StatusFailed},
		docs.history("d"),
	)
}

func TestProcessMarksFailedWhenProcessingWriteFails(t *testing.T) {
	docs := newFakeDocs()
	docs.processingErr = errors.New("database locked")
	objects := &fakeObjects{data: map[string][]byte{"k": []byte("some document text")}}
	index := &fakeIndex{}
	c := newTestCoordinator(t, docs, objects, &fakeEmbedder{}, index)

	c.Process(context.Background(), Job{DocumentID: "d", StorageKey: "k", MimeType: "text/plain"})

	assert.Equal(t,
		[]models.DocumentStatus{models.StatusFailed},
		docs.history("d"),
		"the run still reaches a terminal status",
	)
	assert.Empty(t, index.records, "pipeline stages never start")
}

func TestEnqueueAfterReleaseFails(t *testing.T) {
	docs := newFakeDocs()
	c, err := NewCoordinator(docs, &fakeObjects{}, &fakeExtractor{}, &fakeEmbedder{}, &fakeIndex{}, chunker.Options{}, 1)
	require.NoError(t, err)

	c.Release()

	err = c.Enqueue(Job{DocumentID: "d"})
	assert.ErrorIs(t, err, ErrPoolClosed)
}
