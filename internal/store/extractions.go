package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

const extractionColumns = "id, user_id, extracted_text, original_name, image_size, mime_type, processing_time, is_demo, created_at"

// CreateExtraction persists one record owned by the caller. Anonymous
// callers produce ownerless records that no listing can reach.
func (s *SQLiteStore) CreateExtraction(ctx context.Context, caller Caller, in NewExtraction) (*ExtractionRecord, error) {
	if in.ImageSize != nil && *in.ImageSize < 0 {
		return nil, fmt.Errorf("%w: image size must not be negative", ErrInvalidInput)
	}
	if in.ProcessingTime != nil && *in.ProcessingTime < 0 {
		return nil, fmt.Errorf("%w: processing time must not be negative", ErrInvalidInput)
	}

	rec := &ExtractionRecord{
		ExtractedText:  in.ExtractedText,
		OriginalName:   in.OriginalName,
		ImageSize:      in.ImageSize,
		MimeType:       in.MimeType,
		ProcessingTime: in.ProcessingTime,
		IsDemo:         in.IsDemo,
		CreatedAt:      s.now(),
	}
	if !caller.Anonymous() {
		owner := caller.UserID
		rec.UserID = &owner
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO ocr_responses (user_id, extracted_text, original_name, image_size, mime_type, processing_time, is_demo, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.UserID, rec.ExtractedText, rec.OriginalName, rec.ImageSize, rec.MimeType, rec.ProcessingTime, rec.IsDemo, rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ocr response: %w", err)
	}
	rec.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read ocr response id: %w", err)
	}
	return rec, nil
}

// ListExtractions returns one page of the caller's records, newest first,
// and the total number of records the caller owns.
func (s *SQLiteStore) ListExtractions(ctx context.Context, caller Caller, page Page) ([]ExtractionRecord, int, error) {
	if caller.Anonymous() {
		return nil, 0, ErrUnauthorized
	}
	return s.pageExtractions(ctx, "user_id = ?", []any{caller.UserID}, page)
}

// SearchExtractions is ListExtractions restricted to records whose text
// contains term, ignoring case.
func (s *SQLiteStore) SearchExtractions(ctx context.Context, caller Caller, term string, page Page) ([]ExtractionRecord, int, error) {
	if caller.Anonymous() {
		return nil, 0, ErrUnauthorized
	}
	if term == "" {
		return nil, 0, fmt.Errorf("%w: search term is required", ErrInvalidInput)
	}
	return s.pageExtractions(ctx, "user_id = ? AND instr(fold(extracted_text), fold(?)) > 0", []any{caller.UserID, term}, page)
}

func (s *SQLiteStore) pageExtractions(ctx context.Context, where string, args []any, page Page) ([]ExtractionRecord, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ocr_responses WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ocr responses: %w", err)
	}

	query := "SELECT " + extractionColumns + " FROM ocr_responses WHERE " + where +
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query ocr responses: %w", err)
	}
	defer rows.Close()

	records := []ExtractionRecord{}
	for rows.Next() {
		rec, err := scanExtraction(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate ocr responses: %w", err)
	}
	return records, total, nil
}

// GetExtraction returns ErrNotFound both for missing ids and for records
// owned by someone else.
func (s *SQLiteStore) GetExtraction(ctx context.Context, caller Caller, id int64) (*ExtractionRecord, error) {
	if caller.Anonymous() {
		return nil, ErrUnauthorized
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+extractionColumns+" FROM ocr_responses WHERE id = ? AND user_id = ?", id, caller.UserID)
	rec, err := scanExtraction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// DeleteExtraction removes the record only if the caller owns it.
func (s *SQLiteStore) DeleteExtraction(ctx context.Context, caller Caller, id int64) error {
	if caller.Anonymous() {
		return ErrUnauthorized
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM ocr_responses WHERE id = ? AND user_id = ?", id, caller.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete ocr response: %w", err)
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

// ExtractionStats sums text length and picks the most common MIME type in
// Go over the caller's rows. Ties go to the type seen first in id order.
func (s *SQLiteStore) ExtractionStats(ctx context.Context, caller Caller) (*ExtractionStats, error) {
	if caller.Anonymous() {
		return nil, ErrUnauthorized
	}

	stats := &ExtractionStats{}
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(processing_time) FROM ocr_responses WHERE user_id = ?", caller.UserID).
		Scan(&stats.TotalResponses, &avg)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ocr responses: %w", err)
	}
	if avg.Valid {
		stats.AverageProcessingTime = &avg.Float64
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT extracted_text, mime_type FROM ocr_responses WHERE user_id = ? ORDER BY id ASC", caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ocr response texts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	var order []string
	for rows.Next() {
		var text string
		var mime sql.NullString
		if err := rows.Scan(&text, &mime); err != nil {
			return nil, fmt.Errorf("failed to scan ocr response text: %w", err)
		}
		stats.TotalTextLength += utf8.RuneCountInString(text)
		if mime.Valid && mime.String != "" {
			if _, seen := counts[mime.String]; !seen {
				order = append(order, mime.String)
			}
			counts[mime.String]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ocr response texts: %w", err)
	}

	best := 0
	for _, mime := range order {
		if counts[mime] > best {
			best = counts[mime]
			m := mime
			stats.MostCommonMimeType = &m
		}
	}
	return stats, nil
}

// ExtractionCounts computes the dashboard aggregates in one pass. cutoff
// splits "this month" from earlier; windowStart opens the month before it.
func (s *SQLiteStore) ExtractionCounts(ctx context.Context, caller Caller, cutoff, windowStart time.Time) (*ExtractionCounts, error) {
	if caller.Anonymous() {
		return nil, ErrUnauthorized
	}
	cutoff, windowStart = cutoff.UTC(), windowStart.UTC()

	counts := &ExtractionCounts{}
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
        SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN created_at < ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN created_at >= ? AND created_at < ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN extracted_text <> '' THEN 1 ELSE 0 END), 0),
            AVG(processing_time)
        FROM ocr_responses
        WHERE user_id = ?`,
		cutoff, cutoff, windowStart, cutoff, caller.UserID).
		Scan(&counts.Total, &counts.TotalBeforeCutoff, &counts.SinceCutoff, &counts.PreviousWindow, &counts.NonEmptyText, &avg)
	if err != nil {
		return nil, fmt.Errorf("failed to count ocr responses: %w", err)
	}
	if avg.Valid {
		counts.AverageProcessingTime = &avg.Float64
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row rowScanner) (*ExtractionRecord, error) {
	var rec ExtractionRecord
	var userID, originalName, mimeType sql.NullString
	var imageSize, processingTime sql.NullInt64
	err := row.Scan(&rec.ID, &userID, &rec.ExtractedText, &originalName, &imageSize, &mimeType, &processingTime, &rec.IsDemo, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan ocr response row: %w", err)
	}
	if userID.Valid {
		rec.UserID = &userID.String
	}
	if originalName.Valid {
		rec.OriginalName = &originalName.String
	}
	if imageSize.Valid {
		rec.ImageSize = &imageSize.Int64
	}
	if mimeType.Valid {
		rec.MimeType = &mimeType.String
	}
	if processingTime.Valid {
		rec.ProcessingTime = &processingTime.Int64
	}
	return &rec, nil
}
