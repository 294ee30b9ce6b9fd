package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type Config struct {
	MaxMessageLength int
	MaxDocumentSize  int64
	AllowedMimeTypes []string
}

// Middleware enforces request shape limits before handlers run:
// JSON content type on writes, message length on chat turns, and
// declared size plus mime type on document registrations.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = 5000
	}
	if cfg.MaxDocumentSize == 0 {
		cfg.MaxDocumentSize = 50 * 1024 * 1024
	}
	if len(cfg.AllowedMimeTypes) == 0 {
		cfg.AllowedMimeTypes = []string{
			"application/pdf",
			"text/plain",
			"text/markdown",
			"text/html",
		}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get("Content-Type")
			if contentType != "" && !strings.Contains(contentType, "application/json") {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		path := c.Path()

		if c.Method() == fiber.MethodPost && strings.Contains(path, "/api/v1/chat") {
			var req struct {
				Messages []struct {
					Content string `json:"content"`
				} `json:"messages"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			for _, m := range req.Messages {
				if len(m.Content) > cfg.MaxMessageLength {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "Message exceeds maximum length",
					})
				}
			}
		}

		if c.Method() == fiber.MethodPost && strings.Contains(path, "/api/v1/documents") {
			var req struct {
				Size     int64  `json:"size"`
				MimeType string `json:"mimeType"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			if req.Size > cfg.MaxDocumentSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Document exceeds maximum size",
				})
			}

			if req.MimeType != "" && !mimeAllowed(req.MimeType, cfg.AllowedMimeTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported document type",
				})
			}
		}

		return c.Next()
	}
}

func mimeAllowed(mimeType string, allowed []string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	for _, a := range allowed {
		if mimeType == a {
			return true
		}
	}
	return false
}
