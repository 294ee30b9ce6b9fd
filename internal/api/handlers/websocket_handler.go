package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/mindvault/backend/internal/chat"
	"github.com/mindvault/backend/internal/llm"
	"github.com/mindvault/backend/internal/quota"
	"github.com/mindvault/backend/pkg/logger"
)

type WebSocketHandler struct {
	svc *chat.Service
}

func NewWebSocketHandler(svc *chat.Service) *WebSocketHandler {
	return &WebSocketHandler{svc: svc}
}

// HandleConnection serves chat turns over a socket. Each inbound
// "chat" message runs one turn; tokens go out as they arrive from the
// model, followed by a "complete" frame carrying the full reply.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type     string        `json:"type"`
			ChatID   string        `json:"chat_id"`
			UserID   string        `json:"user_id"`
			Messages []llm.Message `json:"messages"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "chat" {
			continue
		}

		if msg.ChatID == "" || msg.UserID == "" || len(msg.Messages) == 0 {
			h.sendError(c, "chat_id, user_id and messages are required")
			continue
		}

		err = h.streamTurn(c, msg.ChatID, msg.UserID, msg.Messages)
		if err != nil {
			if errors.Is(err, quota.ErrQuotaExceeded) {
				h.sendError(c, "Message limit reached. Please upgrade your plan.")
				continue
			}
			logger.Error("Failed to stream chat turn", zap.String("chat_id", msg.ChatID), zap.Error(err))
			h.sendError(c, "Failed to generate response")
		}
	}
}

func (h *WebSocketHandler) streamTurn(c *websocket.Conn, chatID, userID string, msgs []llm.Message) error {
	ctx := context.Background()

	reply, err := h.svc.Send(ctx, userID, chatID, msgs, func(token string) {
		h.sendToken(c, token)
	})
	if err != nil {
		return err
	}

	return h.sendComplete(c, reply)
}

func (h *WebSocketHandler) sendToken(c *websocket.Conn, token string) error {
	msg := map[string]interface{}{
		"type":    "token",
		"content": token,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, content string) error {
	msg := map[string]interface{}{
		"type":    "complete",
		"content": content,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}
