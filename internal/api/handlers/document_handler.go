package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindvault/backend/internal/ingestion"
	"github.com/mindvault/backend/internal/metrics"
	"github.com/mindvault/backend/internal/quota"
	"github.com/mindvault/backend/internal/storage/models"
	"github.com/mindvault/backend/internal/storage/sqlite"
	"github.com/mindvault/backend/pkg/logger"
)

type DocumentHandler struct {
	db          *sqlite.Client
	quota       *quota.Tracker
	coordinator *ingestion.Coordinator
}

func NewDocumentHandler(db *sqlite.Client, quota *quota.Tracker, coordinator *ingestion.Coordinator) *DocumentHandler {
	return &DocumentHandler{
		db:          db,
		quota:       quota,
		coordinator: coordinator,
	}
}

// CreateDocument records upload metadata and queues ingestion. The
// response is returned before the pipeline runs; clients poll the
// status field on the list endpoint. Ingestion failures never surface
// here.
func (h *DocumentHandler) CreateDocument(c *fiber.Ctx) error {
	var req struct {
		Title      string `json:"title"`
		StorageKey string `json:"storageKey"`
		Size       int64  `json:"size"`
		MimeType   string `json:"mimeType"`
		URL        string `json:"url"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Title == "" || req.StorageKey == "" || req.Size <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title, storageKey and size are required",
		})
	}

	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Missing user identity",
		})
	}

	allowed, err := h.quota.CheckStorageLimit(c.Context(), userID, req.Size)
	if err != nil {
		logger.Error("Failed to check storage quota", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check storage quota",
		})
	}
	if !allowed {
		metrics.QuotaRejections.WithLabelValues("storage").Inc()
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Storage limit exceeded. Please upgrade or delete old files.",
		})
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "text/plain"
	}

	now := time.Now()
	doc := &models.Document{
		ID:         uuid.New().String(),
		UserID:     userID,
		Title:      req.Title,
		StorageKey: req.StorageKey,
		Size:       req.Size,
		MimeType:   mimeType,
		URL:        req.URL,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.db.InsertDocument(c.Context(), doc); err != nil {
		logger.Error("Failed to insert document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create document",
		})
	}

	err = h.coordinator.Enqueue(ingestion.Job{
		DocumentID: doc.ID,
		StorageKey: doc.StorageKey,
		MimeType:   doc.MimeType,
	})
	if err != nil {
		logger.Error("Failed to enqueue ingestion", zap.String("doc_id", doc.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to queue document for processing",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(documentJSON(doc))
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Missing user identity",
		})
	}

	docs, err := h.db.ListDocuments(c.Context(), userID)
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	out := make([]fiber.Map, 0, len(docs))
	for i := range docs {
		out = append(out, documentJSON(&docs[i]))
	}

	return c.JSON(out)
}

func documentJSON(doc *models.Document) fiber.Map {
	return fiber.Map{
		"id":         doc.ID,
		"title":      doc.Title,
		"storageKey": doc.StorageKey,
		"size":       doc.Size,
		"mimeType":   doc.MimeType,
		"url":        doc.URL,
		"status":     string(doc.Status),
		"createdAt":  doc.CreatedAt.Unix(),
		"updatedAt":  doc.UpdatedAt.Unix(),
	}
}
