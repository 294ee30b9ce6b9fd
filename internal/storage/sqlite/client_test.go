package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindvault/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.InitSchema())
	return c
}

func testDocument(id, userID string, size int64) *models.Document {
	now := time.Unix(1700000000, 0)
	return &models.Document{
		ID:         id,
		UserID:     userID,
		Title:      "Test Document",
		StorageKey: "uploads/" + id + ".pdf",
		Size:       size,
		MimeType:   "application/pdf",
		URL:        "https://files.example.com/" + id,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestInsertAndGetDocument(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	doc := testDocument("doc1", "u1", 1024)
	require.NoError(t, c.InsertDocument(ctx, doc))

	got, err := c.GetDocument(ctx, "doc1")
	require.NoError(t, err)

	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, doc.UserID, got.UserID)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, doc.StorageKey, got.StorageKey)
	assert.Equal(t, doc.Size, got.Size)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, doc.CreatedAt.Unix(), got.CreatedAt.Unix())
}

func TestUpdateDocumentStatus(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.InsertDocument(ctx, testDocument("doc1", "u1", 10)))

	require.NoError(t, c.UpdateDocumentStatus(ctx, "doc1", models.StatusProcessing))
	got, err := c.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)

	require.NoError(t, c.UpdateDocumentStatus(ctx, "doc1", models.StatusIndexed))
	got, err = c.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusIndexed, got.Status)
	assert.True(t, got.Status.Terminal())
}

func TestListDocumentsNewestFirst(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	older := testDocument("doc1", "u1", 10)
	older.CreatedAt = time.Unix(1700000000, 0)
	newer := testDocument("doc2", "u1", 20)
	newer.CreatedAt = time.Unix(1700009999, 0)
	other := testDocument("doc3", "u2", 30)

	require.NoError(t, c.InsertDocument(ctx, older))
	require.NoError(t, c.InsertDocument(ctx, newer))
	require.NoError(t, c.InsertDocument(ctx, other))

	docs, err := c.ListDocuments(ctx, "u1")
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "doc2", docs[0].ID)
	assert.Equal(t, "doc1", docs[1].ID)
}

func TestSumDocumentSizes(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	total, err := c.SumDocumentSizes(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, total, "no documents sums to zero")

	require.NoError(t, c.InsertDocument(ctx, testDocument("doc1", "u1", 1000)))
	require.NoError(t, c.InsertDocument(ctx, testDocument("doc2", "u1", 500)))
	require.NoError(t, c.InsertDocument(ctx, testDocument("doc3", "u2", 9999)))

	total, err = c.SumDocumentSizes(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), total)
}

func TestChatAndMessageRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	require.NoError(t, c.InsertChat(ctx, &models.Chat{
		ID:        "chat1",
		UserID:    "u1",
		Title:     "First question",
		CreatedAt: base,
	}))

	require.NoError(t, c.InsertMessage(ctx, &models.Message{
		ID: "m2", ChatID: "chat1", Role: models.RoleAssistant, Content: "answer", CreatedAt: base.Add(time.Second),
	}))
	require.NoError(t, c.InsertMessage(ctx, &models.Message{
		ID: "m1", ChatID: "chat1", Role: models.RoleUser, Content: "question", CreatedAt: base,
	}))

	msgs, err := c.ListMessages(ctx, "chat1")
	require.NoError(t, err)

	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID, "messages come back in timestamp order")
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestListChatsHonorsLimit(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, c.InsertChat(ctx, &models.Chat{
			ID:        string(rune('a' + i)),
			UserID:    "u1",
			Title:     "chat",
			CreatedAt: time.Unix(1700000000+int64(i), 0),
		}))
	}

	chats, err := c.ListChats(ctx, "u1", 3)
	require.NoError(t, err)

	require.Len(t, chats, 3)
	assert.Equal(t, "e", chats[0].ID, "newest chat first")
}

func TestInsertMessageRequiresExistingChat(t *testing.T) {
	c := newTestClient(t)

	err := c.InsertMessage(context.Background(), &models.Message{
		ID: "m1", ChatID: "missing", Role: models.RoleUser, Content: "q", CreatedAt: time.Now(),
	})

	assert.Error(t, err, "foreign keys are enforced")
}
