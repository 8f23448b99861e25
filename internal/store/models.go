package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrDuplicate    = errors.New("already exists")
)

// Caller is the authenticated identity on whose behalf a store operation
// runs. It is built by the HTTP boundary from a validated token, never from
// request input. The zero value is an anonymous caller.
type Caller struct {
	UserID string
}

func (c Caller) Anonymous() bool { return c.UserID == "" }

type User struct {
	ID             string    `json:"id"` // UUID
	ExternalUserID string    `json:"external_user_id"`
	PasswordHash   string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"created_at"`
}

// ExtractionRecord is one OCR event. Rows are never updated in place.
type ExtractionRecord struct {
	ID             int64     `json:"id"`
	UserID         *string   `json:"userId"`
	ExtractedText  string    `json:"extractedText"`
	OriginalName   *string   `json:"originalName"`
	ImageSize      *int64    `json:"imageSize"`
	MimeType       *string   `json:"mimeType"`
	ProcessingTime *int64    `json:"processingTime"` // milliseconds
	IsDemo         bool      `json:"isDemo"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewExtraction carries the fields of a record before the store assigns
// its id and timestamp.
type NewExtraction struct {
	ExtractedText  string
	OriginalName   *string
	ImageSize      *int64
	MimeType       *string
	ProcessingTime *int64
	IsDemo         bool
}

// ExtractionStats aggregates one owner's records.
type ExtractionStats struct {
	TotalResponses        int      `json:"totalResponses"`
	TotalTextLength       int      `json:"totalTextLength"`
	AverageProcessingTime *float64 `json:"averageProcessingTime"`
	MostCommonMimeType    *string  `json:"mostCommonMimeType"`
}

// ExtractionCounts feeds the dashboard metrics.
type ExtractionCounts struct {
	Total                 int
	TotalBeforeCutoff     int
	SinceCutoff           int
	PreviousWindow        int
	NonEmptyText          int
	AverageProcessingTime *float64
}

const (
	ContactStatusNew      = "new"
	ContactStatusActive   = "active"
	ContactStatusPending  = "pending"
	ContactStatusInactive = "inactive"
)

type Contact struct {
	ID            int64         `json:"id"`
	UserID        string        `json:"userId"`
	Name          string        `json:"name"`
	Title         *string       `json:"title"`
	Company       *string       `json:"company"`
	Email         *string       `json:"email"`
	Phone         *string       `json:"phone"`
	Address       *string       `json:"address"`
	Website       *string       `json:"website"`
	Notes         *string       `json:"notes"`
	Status        string        `json:"status"`
	Tags          []string      `json:"tags"`
	LastContact   *time.Time    `json:"lastContactedAt"`
	OCRResponseID *int64        `json:"ocrResponseId"`
	OCRResponse   *LinkedRecord `json:"ocrResponse,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// LinkedRecord summarises the extraction a contact was promoted from.
type LinkedRecord struct {
	ID           int64     `json:"id"`
	OriginalName *string   `json:"originalName"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ContactFields holds the user-editable part of a contact. Updates
// overwrite every field.
type ContactFields struct {
	Name          string     `json:"name"`
	Title         *string    `json:"title"`
	Company       *string    `json:"company"`
	Email         *string    `json:"email"`
	Phone         *string    `json:"phone"`
	Address       *string    `json:"address"`
	Website       *string    `json:"website"`
	Notes         *string    `json:"notes"`
	Status        string     `json:"status"`
	Tags          []string   `json:"tags"`
	LastContact   *time.Time `json:"lastContactedAt"`
	OCRResponseID *int64     `json:"ocrResponseId"`
}

type ContactFilter struct {
	Search string
	Status string
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

func (p Page) Offset() int { return (p.Number - 1) * p.Size }
