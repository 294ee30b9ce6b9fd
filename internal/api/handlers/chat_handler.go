package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mindvault/backend/internal/chat"
	"github.com/mindvault/backend/internal/llm"
	"github.com/mindvault/backend/internal/quota"
	"github.com/mindvault/backend/pkg/logger"
)

type ChatHandler struct {
	svc *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// SendMessage runs a full chat turn and returns the aggregated
// assistant reply as JSON. The websocket handler covers streaming.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req struct {
		ID       string        `json:"id"`
		Messages []llm.Message `json:"messages"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ID == "" || len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id and messages are required",
		})
	}

	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Missing user identity",
		})
	}

	reply, err := h.svc.Send(c.Context(), userID, req.ID, req.Messages, nil)
	if err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Message limit reached. Please upgrade your plan.",
			})
		}
		logger.Error("Chat turn failed", zap.String("chat_id", req.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate response",
		})
	}

	return c.JSON(fiber.Map{
		"role":    "assistant",
		"content": reply,
	})
}

func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Missing user identity",
		})
	}

	chats, err := h.svc.ListChats(c.Context(), userID)
	if err != nil {
		logger.Error("Failed to list chats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list chats",
		})
	}

	out := make([]fiber.Map, 0, len(chats))
	for _, ch := range chats {
		out = append(out, fiber.Map{
			"id":        ch.ID,
			"title":     ch.Title,
			"createdAt": ch.CreatedAt.Unix(),
		})
	}

	return c.JSON(out)
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Missing user identity",
		})
	}

	chatID := c.Params("id")
	if chatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Chat ID is required",
		})
	}

	msgs, err := h.svc.ListMessages(c.Context(), chatID)
	if err != nil {
		logger.Error("Failed to list messages", zap.String("chat_id", chatID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load chat history",
		})
	}

	out := make([]fiber.Map, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, fiber.Map{
			"id":        m.ID,
			"role":      m.Role,
			"content":   m.Content,
			"createdAt": m.CreatedAt.Unix(),
		})
	}

	return c.JSON(out)
}
