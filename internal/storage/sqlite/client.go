package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mindvault/backend/internal/storage/models"
	"github.com/mindvault/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		size INTEGER NOT NULL,
		mime_type TEXT,
		url TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);
	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);

	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id);
	CREATE INDEX IF NOT EXISTS idx_chats_created ON chats(created_at);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertDocument(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, user_id, title, storage_key, size, mime_type, url, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.Title,
		doc.StorageKey,
		doc.Size,
		doc.MimeType,
		doc.URL,
		string(doc.Status),
		doc.CreatedAt.Unix(),
		doc.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document inserted", zap.String("doc_id", doc.ID), zap.String("user_id", doc.UserID))
	return nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT id, user_id, title, storage_key, size, mime_type, url, status, created_at, updated_at FROM documents WHERE id = ?`

	var doc models.Document
	var status string
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Title,
		&doc.StorageKey,
		&doc.Size,
		&doc.MimeType,
		&doc.URL,
		&status,
		&createdAt,
		&updatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.Status = models.DocumentStatus(status)
	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)

	return &doc, nil
}

// UpdateDocumentStatus persists a status transition. The ingestion
// coordinator is the only writer; transitions are forward-only.
func (c *Client) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid document status %q", status)
	}

	query := `UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`

	_, err := c.db.ExecContext(ctx, query, string(status), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}

	logger.Debug("Document status updated",
		zap.String("doc_id", id),
		zap.String("status", string(status)),
	)

	return nil
}

func (c *Client) ListDocuments(ctx context.Context, userID string) ([]models.Document, error) {
	query := `
		SELECT id, user_id, title, storage_key, size, mime_type, url, status, created_at, updated_at
		FROM documents
		WHERE user_id = ?
		ORDER BY created_at DESC
	`

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var status string
		var createdAt, updatedAt int64

		err := rows.Scan(
			&doc.ID,
			&doc.UserID,
			&doc.Title,
			&doc.StorageKey,
			&doc.Size,
			&doc.MimeType,
			&doc.URL,
			&status,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		doc.Status = models.DocumentStatus(status)
		doc.CreatedAt = time.Unix(createdAt, 0)
		doc.UpdatedAt = time.Unix(updatedAt, 0)
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// SumDocumentSizes computes the user's storage usage as a live sum; it
// is intentionally not cached so quota checks see deletions immediately.
func (c *Client) SumDocumentSizes(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COALESCE(SUM(size), 0) FROM documents WHERE user_id = ?`

	var total int64
	err := c.db.QueryRowContext(ctx, query, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum document sizes: %w", err)
	}

	return total, nil
}

func (c *Client) InsertChat(ctx context.Context, chat *models.Chat) error {
	query := `INSERT INTO chats (id, user_id, title, created_at) VALUES (?, ?, ?, ?)`

	_, err := c.db.ExecContext(ctx, query, chat.ID, chat.UserID, chat.Title, chat.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert chat: %w", err)
	}

	logger.Debug("Chat created", zap.String("chat_id", chat.ID), zap.String("user_id", chat.UserID))
	return nil
}

func (c *Client) ListChats(ctx context.Context, userID string, limit int) ([]models.Chat, error) {
	query := `
		SELECT id, user_id, title, created_at
		FROM chats
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		var createdAt int64

		err := rows.Scan(&chat.ID, &chat.UserID, &chat.Title, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		chat.CreatedAt = time.Unix(createdAt, 0)
		chats = append(chats, chat)
	}

	return chats, rows.Err()
}

func (c *Client) InsertMessage(ctx context.Context, msg *models.Message) error {
	query := `INSERT INTO messages (id, chat_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(ctx, query, msg.ID, msg.ChatID, msg.Role, msg.Content, msg.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// ListMessages returns a chat's messages in ascending creation order.
// The assistant row of each turn carries a later timestamp than its user
// row, so no sequence column is needed.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	query := `
		SELECT id, chat_id, role, content, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at ASC
	`

	rows, err := c.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		var createdAt int64

		err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		msg.CreatedAt = time.Unix(createdAt, 0)
		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}
