package models

import "time"

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusIndexed    DocumentStatus = "indexed"
	StatusFailed     DocumentStatus = "failed"
)

// Valid reports whether s is one of the four at-rest status values.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusIndexed, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s DocumentStatus) Terminal() bool {
	return s == StatusIndexed || s == StatusFailed
}

type Document struct {
	ID         string
	UserID     string
	Title      string
	StorageKey string
	Size       int64
	MimeType   string
	URL        string
	Status     DocumentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Chat struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID        string
	ChatID    string
	Role      string
	Content   string
	CreatedAt time.Time
}
