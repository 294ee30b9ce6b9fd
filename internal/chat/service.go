// Package chat implements the conversational path: quota gate,
// retrieval context, streamed generation, and message persistence.
package chat

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindvault/backend/internal/llm"
	"github.com/mindvault/backend/internal/metrics"
	"github.com/mindvault/backend/internal/quota"
	"github.com/mindvault/backend/internal/rag"
	"github.com/mindvault/backend/internal/storage/models"
	"github.com/mindvault/backend/pkg/logger"
)

const (
	historyLimit   = 50
	maxTitleLength = 30
)

// ChatStore persists chats and messages.
type ChatStore interface {
	InsertChat(ctx context.Context, chat *models.Chat) error
	ListChats(ctx context.Context, userID string, limit int) ([]models.Chat, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
}

// QuotaTracker gates message sending.
type QuotaTracker interface {
	CheckMessageLimit(ctx context.Context, userID string) (bool, error)
	IncrementMessages(ctx context.Context, userID string) (int, error)
}

// ContextBuilder assembles the retrieval context block for a query.
type ContextBuilder interface {
	Build(ctx context.Context, query string) (string, error)
}

// Generator streams a model completion.
type Generator interface {
	StreamChat(ctx context.Context, systemPrompt string, msgs []llm.Message, onToken func(string)) (string, error)
}

type Service struct {
	store   ChatStore
	quota   QuotaTracker
	builder ContextBuilder
	gen     Generator
	now     func() time.Time
}

func NewService(store ChatStore, quota QuotaTracker, builder ContextBuilder, gen Generator) *Service {
	return &Service{
		store:   store,
		quota:   quota,
		builder: builder,
		gen:     gen,
		now:     time.Now,
	}
}

// Send answers one chat turn. msgs is the full ordered conversation;
// the last entry is the user's new message. Tokens stream through
// onToken as they arrive. On completion exactly two message rows are
// persisted, the assistant's timestamped one second after the user's so
// timestamp ordering reconstructs the turn.
func (s *Service) Send(ctx context.Context, userID, chatID string, msgs []llm.Message, onToken func(string)) (string, error) {
	if len(msgs) == 0 {
		return "", fmt.Errorf("empty message list")
	}

	allowed, err := s.quota.CheckMessageLimit(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to check message quota: %w", err)
	}
	if !allowed {
		metrics.QuotaRejections.WithLabelValues("messages").Inc()
		return "", quota.ErrQuotaExceeded
	}

	content := msgs[len(msgs)-1].Content
	if content == "" {
		return "", fmt.Errorf("empty query")
	}

	// First turn of a conversation creates the chat row.
	if len(msgs) == 1 {
		err := s.store.InsertChat(ctx, &models.Chat{
			ID:        chatID,
			UserID:    userID,
			Title:     truncateTitle(content, maxTitleLength),
			CreatedAt: s.now(),
		})
		if err != nil {
			return "", fmt.Errorf("failed to create chat: %w", err)
		}
	}

	contextBlock, err := s.builder.Build(ctx, content)
	if err != nil {
		return "", fmt.Errorf("failed to build retrieval context: %w", err)
	}

	response, err := s.gen.StreamChat(ctx, rag.SystemPrompt(contextBlock), msgs, onToken)
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	now := s.now()

	err = s.store.InsertMessage(ctx, &models.Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Role:      models.RoleUser,
		Content:   content,
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to persist user message: %w", err)
	}

	err = s.store.InsertMessage(ctx, &models.Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Role:      models.RoleAssistant,
		Content:   response,
		// One second later so ORDER BY created_at keeps the pair in turn order.
		CreatedAt: now.Add(time.Second),
	})
	if err != nil {
		return "", fmt.Errorf("failed to persist assistant message: %w", err)
	}

	if _, err := s.quota.IncrementMessages(ctx, userID); err != nil {
		// The answer already went out; losing one count beats failing the turn.
		logger.Warn("Failed to increment message quota",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	metrics.ChatMessages.Inc()

	return response, nil
}

func (s *Service) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	return s.store.ListChats(ctx, userID, historyLimit)
}

func (s *Service) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	return s.store.ListMessages(ctx, chatID)
}

// truncateTitle cuts on a rune boundary so multi-byte titles never
// persist as broken UTF-8.
func truncateTitle(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}
