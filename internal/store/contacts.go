package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const contactColumns = "c.id, c.user_id, c.name, c.title, c.company, c.email, c.phone, c.address, c.website, c.notes, " +
	"c.status, c.tags_json, c.last_contact, c.ocr_response_id, c.created_at, c.updated_at, r.original_name, r.created_at"

// searchableContactColumns are OR-combined for the free-text filter.
var searchableContactColumns = []string{"c.name", "c.company", "c.email", "c.title"}

// Contact methods. Ownership is enforced in every query in addition to the
// boundary resolving the caller.

func (s *SQLiteStore) CreateContact(ctx context.Context, caller Caller, f ContactFields) (*Contact, error) {
	if caller.Anonymous() {
		return nil, ErrUnauthorized
	}
	if err := normalizeContactFields(&f); err != nil {
		return nil, err
	}
	tagsJSON, err := json.Marshal(f.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO contacts (user_id, name, title, company, email, phone, address, website, notes,
            status, tags_json, last_contact, ocr_response_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		caller.UserID, f.Name, f.Title, f.Company, f.Email, f.Phone, f.Address, f.Website, f.Notes,
		f.Status, string(tagsJSON), utcPtr(f.LastContact), f.OCRResponseID, now, now)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("failed to insert contact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read contact id: %w", err)
	}
	return s.GetContact(ctx, caller, id)
}

func (s *SQLiteStore) GetContact(ctx context.Context, caller Caller, id int64) (*Contact, error) {
	if caller.Anonymous() {
		return nil, ErrUnauthorized
	}
	query, args, err := contactSelect(contactColumns).
		Where(sq.Eq{"c.id": id, "c.user_id": caller.UserID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build contact query: %w", err)
	}

	contact, err := scanContact(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return contact, nil
}

// ListContacts pages the caller's contacts newest first. Search matches
// name, company, email or title case-insensitively; Status matches exactly.
func (s *SQLiteStore) ListContacts(ctx context.Context, caller Caller, filter ContactFilter, page Page) ([]Contact, int, error) {
	if caller.Anonymous() {
		return nil, 0, ErrUnauthorized
	}

	where := sq.And{sq.Eq{"c.user_id": caller.UserID}}
	if term := strings.TrimSpace(filter.Search); term != "" {
		match := sq.Or{}
		for _, col := range searchableContactColumns {
			match = append(match, sq.Expr("instr(fold(COALESCE("+col+", '')), fold(?)) > 0", term))
		}
		where = append(where, match)
	}
	if filter.Status != "" {
		where = append(where, sq.Eq{"c.status": filter.Status})
	}

	countQuery, countArgs, err := sq.Select("COUNT(*)").From("contacts c").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build contact count: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count contacts: %w", err)
	}

	query, args, err := contactSelect(contactColumns).
		Where(where).
		OrderBy("c.created_at DESC", "c.id DESC").
		Limit(uint64(page.Size)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build contact query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, *contact)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return contacts, total, nil
}

// UpdateContact overwrites every editable field.
func (s *SQLiteStore) UpdateContact(ctx context.Context, caller Caller, id int64, f ContactFields) (*Contact, error) {
	if caller.Anonymous() {
		return nil, ErrUnauthorized
	}
	if err := normalizeContactFields(&f); err != nil {
		return nil, err
	}
	tagsJSON, err := json.Marshal(f.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	query, args, err := sq.Update("contacts").
		Set("name", f.Name).
		Set("title", f.Title).
		Set("company", f.Company).
		Set("email", f.Email).
		Set("phone", f.Phone).
		Set("address", f.Address).
		Set("website", f.Website).
		Set("notes", f.Notes).
		Set("status", f.Status).
		Set("tags_json", string(tagsJSON)).
		Set("last_contact", utcPtr(f.LastContact)).
		Set("ocr_response_id", f.OCRResponseID).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": id, "user_id": caller.UserID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build contact update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetContact(ctx, caller, id)
}

func (s *SQLiteStore) DeleteContact(ctx context.Context, caller Caller, id int64) error {
	if caller.Anonymous() {
		return ErrUnauthorized
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM contacts WHERE id = ? AND user_id = ?", id, caller.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func contactSelect(columns string) sq.SelectBuilder {
	return sq.Select(columns).
		From("contacts c").
		LeftJoin("ocr_responses r ON r.id = c.ocr_response_id")
}

func normalizeContactFields(f *ContactFields) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	f.Status = strings.TrimSpace(f.Status)
	if f.Status == "" {
		f.Status = ContactStatusNew
	}
	if f.Tags == nil {
		f.Tags = []string{}
	}
	return nil
}

func scanContact(row rowScanner) (*Contact, error) {
	var c Contact
	var title, company, email, phone, address, website, notes sql.NullString
	var tagsJSON string
	var lastContact, linkedCreatedAt sql.NullTime
	var ocrID sql.NullInt64
	var linkedName sql.NullString

	err := row.Scan(&c.ID, &c.UserID, &c.Name, &title, &company, &email, &phone, &address, &website, &notes,
		&c.Status, &tagsJSON, &lastContact, &ocrID, &c.CreatedAt, &c.UpdatedAt, &linkedName, &linkedCreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan contact row: %w", err)
	}

	c.Title = nullStringPtr(title)
	c.Company = nullStringPtr(company)
	c.Email = nullStringPtr(email)
	c.Phone = nullStringPtr(phone)
	c.Address = nullStringPtr(address)
	c.Website = nullStringPtr(website)
	c.Notes = nullStringPtr(notes)

	if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags for contact %d: %w", c.ID, err)
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if lastContact.Valid {
		c.LastContact = &lastContact.Time
	}
	if ocrID.Valid {
		c.OCRResponseID = &ocrID.Int64
		if linkedCreatedAt.Valid {
			c.OCRResponse = &LinkedRecord{
				ID:           ocrID.Int64,
				OriginalName: nullStringPtr(linkedName),
				CreatedAt:    linkedCreatedAt.Time,
			}
		}
	}
	return &c, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
