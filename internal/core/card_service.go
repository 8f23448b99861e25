package core

import (
	"context"
	"fmt"
	"time"

	"gwi.com/cardscan/internal/store"
	"gwi.com/cardscan/internal/utils"
)

// UnknownContactName is shown when no name could be read off a card.
const UnknownContactName = "Unknown Contact"

type cardStore interface {
	ListExtractions(ctx context.Context, caller store.Caller, page store.Page) ([]store.ExtractionRecord, int, error)
	GetExtraction(ctx context.Context, caller store.Caller, id int64) (*store.ExtractionRecord, error)
	CreateContact(ctx context.Context, caller store.Caller, f store.ContactFields) (*store.Contact, error)
}

// BusinessCard is an extraction record with its guessed contact fields.
type BusinessCard struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	ExtractedText  string    `json:"extractedText"`
	OriginalName   *string   `json:"originalName"`
	MimeType       *string   `json:"mimeType"`
	ImageSize      *int64    `json:"imageSize"`
	ProcessingTime *int64    `json:"processingTime"`
	IsDemo         bool      `json:"isDemo"`
	Avatar         string    `json:"avatar"`
	CreatedAt      time.Time `json:"createdAt"`
	LastContact    string    `json:"lastContact"`
	Status         string    `json:"status"`
}

type CardPage struct {
	Cards      []BusinessCard   `json:"cards"`
	Pagination utils.Pagination `json:"pagination"`
}

type CardService struct {
	store cardStore
}

func NewCardService(s cardStore) *CardService {
	return &CardService{store: s}
}

// List returns the caller's records newest first, parsed as business cards.
func (s *CardService) List(ctx context.Context, caller store.Caller, page, limit int, now time.Time) (*CardPage, error) {
	if err := utils.ValidatePage(page, limit); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	records, total, err := s.store.ListExtractions(ctx, caller, store.Page{Number: page, Size: limit})
	if err != nil {
		return nil, err
	}

	cards := make([]BusinessCard, 0, len(records))
	for _, rec := range records {
		cards = append(cards, toBusinessCard(rec, now))
	}
	return &CardPage{Cards: cards, Pagination: utils.NewPagination(total, page, limit)}, nil
}

// Promote saves the card parsed from one of the caller's records as a new
// contact linked back to that record.
func (s *CardService) Promote(ctx context.Context, caller store.Caller, recordID int64) (*store.Contact, error) {
	rec, err := s.store.GetExtraction(ctx, caller, recordID)
	if err != nil {
		return nil, err
	}

	fields := ParseCard(rec.ExtractedText)
	contact, err := s.store.CreateContact(ctx, caller, store.ContactFields{
		Name:          displayName(fields.Name),
		Title:         optional(fields.Title),
		Company:       optional(fields.Company),
		Email:         optional(fields.Email),
		Phone:         optional(fields.Phone),
		Status:        store.ContactStatusNew,
		OCRResponseID: &rec.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create contact from record %d: %w", recordID, err)
	}
	return contact, nil
}

func toBusinessCard(rec store.ExtractionRecord, now time.Time) BusinessCard {
	f := ParseCard(rec.ExtractedText)
	return BusinessCard{
		ID:             rec.ID,
		Name:           displayName(f.Name),
		Title:          f.Title,
		Company:        f.Company,
		Email:          f.Email,
		Phone:          f.Phone,
		ExtractedText:  rec.ExtractedText,
		OriginalName:   rec.OriginalName,
		MimeType:       rec.MimeType,
		ImageSize:      rec.ImageSize,
		ProcessingTime: rec.ProcessingTime,
		IsDemo:         rec.IsDemo,
		Avatar:         f.Avatar,
		CreatedAt:      rec.CreatedAt,
		LastContact:    utils.TimeAgo(rec.CreatedAt, now),
		Status:         store.ContactStatusNew,
	}
}

func displayName(name string) string {
	if name == "" {
		return UnknownContactName
	}
	return name
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
