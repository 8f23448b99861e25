package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gwi.com/cardscan/internal/store"
	"gwi.com/cardscan/internal/utils"
)

type contactStore interface {
	CreateContact(ctx context.Context, caller store.Caller, f store.ContactFields) (*store.Contact, error)
	GetContact(ctx context.Context, caller store.Caller, id int64) (*store.Contact, error)
	ListContacts(ctx context.Context, caller store.Caller, filter store.ContactFilter, page store.Page) ([]store.Contact, int, error)
	UpdateContact(ctx context.Context, caller store.Caller, id int64, f store.ContactFields) (*store.Contact, error)
	DeleteContact(ctx context.Context, caller store.Caller, id int64) error
	GetExtraction(ctx context.Context, caller store.Caller, id int64) (*store.ExtractionRecord, error)
}

// ContactItem is a contact as shown in the contact list.
type ContactItem struct {
	store.Contact
	Avatar      string `json:"avatar"`
	LastContact string `json:"lastContact"`
}

type ContactPage struct {
	Contacts   []ContactItem    `json:"contacts"`
	Pagination utils.Pagination `json:"pagination"`
}

type ContactService struct {
	store contactStore
}

func NewContactService(s contactStore) *ContactService {
	return &ContactService{store: s}
}

func (s *ContactService) Create(ctx context.Context, caller store.Caller, f store.ContactFields) (*store.Contact, error) {
	if err := s.checkLinkedRecord(ctx, caller, f.OCRResponseID); err != nil {
		return nil, err
	}
	return s.store.CreateContact(ctx, caller, f)
}

func (s *ContactService) Get(ctx context.Context, caller store.Caller, id int64) (*store.Contact, error) {
	return s.store.GetContact(ctx, caller, id)
}

// List pages the caller's contacts; lastContact falls back to the creation
// time when the contact was never reached.
func (s *ContactService) List(ctx context.Context, caller store.Caller, filter store.ContactFilter, page, limit int, now time.Time) (*ContactPage, error) {
	if err := utils.ValidatePage(page, limit); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	contacts, total, err := s.store.ListContacts(ctx, caller, filter, store.Page{Number: page, Size: limit})
	if err != nil {
		return nil, err
	}

	items := make([]ContactItem, 0, len(contacts))
	for _, c := range contacts {
		last := c.CreatedAt
		if c.LastContact != nil {
			last = *c.LastContact
		}
		items = append(items, ContactItem{
			Contact:     c,
			Avatar:      Initials(c.Name),
			LastContact: utils.TimeAgo(last, now),
		})
	}
	return &ContactPage{Contacts: items, Pagination: utils.NewPagination(total, page, limit)}, nil
}

func (s *ContactService) Update(ctx context.Context, caller store.Caller, id int64, f store.ContactFields) (*store.Contact, error) {
	if err := s.checkLinkedRecord(ctx, caller, f.OCRResponseID); err != nil {
		return nil, err
	}
	return s.store.UpdateContact(ctx, caller, id, f)
}

func (s *ContactService) Delete(ctx context.Context, caller store.Caller, id int64) error {
	return s.store.DeleteContact(ctx, caller, id)
}

// checkLinkedRecord rejects a link to a record the caller does not own.
func (s *ContactService) checkLinkedRecord(ctx context.Context, caller store.Caller, recordID *int64) error {
	if recordID == nil {
		return nil
	}
	if _, err := s.store.GetExtraction(ctx, caller, *recordID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: ocr response %d not found", store.ErrInvalidInput, *recordID)
		}
		return err
	}
	return nil
}
