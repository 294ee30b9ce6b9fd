package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindvault/backend/internal/chunker"
	"github.com/mindvault/backend/internal/ingestion"
	"github.com/mindvault/backend/internal/quota"
	"github.com/mindvault/backend/internal/storage/sqlite"
	"github.com/mindvault/backend/internal/vector"
)

type stubCounters struct{}

func (stubCounters) GetCounter(_ context.Context, _ string) (int64, error) { return 0, nil }
func (stubCounters) IncrementCounter(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

type stubObjects struct{}

func (stubObjects) Fetch(_ context.Context, _ string) ([]byte, error) {
	return []byte("stub document body"), nil
}

type stubExtractor struct{}

func (stubExtractor) Extract(data []byte, _ string) (string, error) { return string(data), nil }

type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

type stubIndex struct{}

func (stubIndex) Upsert(_ context.Context, _ []vector.Record) error { return nil }

func newDocumentTestApp(t *testing.T, storageLimit int64) (*fiber.App, *sqlite.Client) {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	tracker := quota.NewTracker(stubCounters{}, db, 2, storageLimit)

	coordinator, err := ingestion.NewCoordinator(
		db, stubObjects{}, stubExtractor{}, stubEmbedder{}, stubIndex{}, chunker.Options{}, 1,
	)
	require.NoError(t, err)
	t.Cleanup(coordinator.Release)

	h := NewDocumentHandler(db, tracker, coordinator)

	app := fiber.New()
	app.Post("/api/v1/documents", h.CreateDocument)
	app.Get("/api/v1/documents", h.ListDocuments)
	return app, db
}

func postDocument(t *testing.T, app *fiber.App, userID, body string) (int, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/v1/documents", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func TestCreateDocumentAccepted(t *testing.T) {
	app, _ := newDocumentTestApp(t, 1<<20)

	status, body := postDocument(t, app, "u1",
		`{"title":"Notes","storageKey":"uploads/notes.txt","size":1024,"mimeType":"text/plain"}`)

	assert.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, "Notes", body["title"])
	assert.Equal(t, "pending", body["status"])
	assert.NotEmpty(t, body["id"])
}

func TestCreateDocumentRequiresIdentity(t *testing.T) {
	app, _ := newDocumentTestApp(t, 1<<20)

	status, _ := postDocument(t, app, "",
		`{"title":"Notes","storageKey":"uploads/notes.txt","size":1024}`)

	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestCreateDocumentValidatesFields(t *testing.T) {
	app, _ := newDocumentTestApp(t, 1<<20)

	status, _ := postDocument(t, app, "u1", `{"title":"","storageKey":"","size":0}`)

	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestCreateDocumentStorageQuota(t *testing.T) {
	app, _ := newDocumentTestApp(t, 1000)

	status, _ := postDocument(t, app, "u1",
		`{"title":"A","storageKey":"uploads/a.txt","size":900,"mimeType":"text/plain"}`)
	require.Equal(t, fiber.StatusAccepted, status)

	status, body := postDocument(t, app, "u1",
		`{"title":"B","storageKey":"uploads/b.txt","size":200,"mimeType":"text/plain"}`)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Contains(t, body["error"], "Storage limit")
}

func TestListDocumentsScopedToUser(t *testing.T) {
	app, _ := newDocumentTestApp(t, 1<<20)

	status, _ := postDocument(t, app, "u1",
		`{"title":"Mine","storageKey":"uploads/m.txt","size":10,"mimeType":"text/plain"}`)
	require.Equal(t, fiber.StatusAccepted, status)

	req := httptest.NewRequest("GET", "/api/v1/documents", nil)
	req.Header.Set("X-User-ID", "u2")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var docs []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &docs))
	assert.Empty(t, docs)
}
