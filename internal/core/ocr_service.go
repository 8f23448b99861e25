package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gwi.com/cardscan/internal/store"
	"gwi.com/cardscan/internal/utils"
)

type extractionStore interface {
	CreateExtraction(ctx context.Context, caller store.Caller, in store.NewExtraction) (*store.ExtractionRecord, error)
	ListExtractions(ctx context.Context, caller store.Caller, page store.Page) ([]store.ExtractionRecord, int, error)
	SearchExtractions(ctx context.Context, caller store.Caller, term string, page store.Page) ([]store.ExtractionRecord, int, error)
	GetExtraction(ctx context.Context, caller store.Caller, id int64) (*store.ExtractionRecord, error)
	DeleteExtraction(ctx context.Context, caller store.Caller, id int64) error
	ExtractionStats(ctx context.Context, caller store.Caller) (*store.ExtractionStats, error)
}

// Upload is one image received from a client.
type Upload struct {
	Filename string
	MIMEType string
	Data     []byte
}

// ExtractionItem is a record as shown in the history list.
type ExtractionItem struct {
	store.ExtractionRecord
	FormattedDate string `json:"formattedDate"`
	TextPreview   string `json:"textPreview"`
}

type ExtractionPage struct {
	Responses   []ExtractionItem `json:"responses"`
	Total       int              `json:"total"`
	Pages       int              `json:"pages"`
	CurrentPage int              `json:"currentPage"`
}

type OCRService struct {
	store     extractionStore
	extractor TextExtractor
	timeout   time.Duration
}

func NewOCRService(s extractionStore, extractor TextExtractor, timeout time.Duration) *OCRService {
	return &OCRService{store: s, extractor: extractor, timeout: timeout}
}

// Process extracts the text from an uploaded image and records the result.
// Anonymous callers get a demo record with no owner. Nothing is persisted
// when the extraction fails.
func (s *OCRService) Process(ctx context.Context, caller store.Caller, up Upload) (*store.ExtractionRecord, error) {
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("%w: no image uploaded", store.ErrInvalidInput)
	}
	if !strings.HasPrefix(up.MIMEType, "image/") {
		return nil, fmt.Errorf("%w: unsupported content type %q", store.ErrInvalidInput, up.MIMEType)
	}

	extractCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.extractor.ExtractText(extractCtx, up.Data, up.MIMEType)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start).Milliseconds()

	size := int64(len(up.Data))
	in := store.NewExtraction{
		ExtractedText:  text,
		ImageSize:      &size,
		MimeType:       &up.MIMEType,
		ProcessingTime: &elapsed,
		IsDemo:         caller.Anonymous(),
	}
	if up.Filename != "" {
		in.OriginalName = &up.Filename
	}

	rec, err := s.store.CreateExtraction(ctx, caller, in)
	if err != nil {
		return nil, fmt.Errorf("failed to save extraction: %w", err)
	}
	slog.Info("extraction stored", "id", rec.ID, "demo", rec.IsDemo, "processing_ms", elapsed, "chars", len([]rune(text)))
	return rec, nil
}

func (s *OCRService) List(ctx context.Context, caller store.Caller, page, limit int) (*ExtractionPage, error) {
	if err := utils.ValidatePage(page, limit); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	records, total, err := s.store.ListExtractions(ctx, caller, store.Page{Number: page, Size: limit})
	if err != nil {
		return nil, err
	}
	return newExtractionPage(records, total, page, limit), nil
}

// Search matches term case-insensitively against the extracted text.
func (s *OCRService) Search(ctx context.Context, caller store.Caller, term string, page, limit int) (*ExtractionPage, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", store.ErrInvalidInput)
	}
	if err := utils.ValidatePage(page, limit); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	records, total, err := s.store.SearchExtractions(ctx, caller, term, store.Page{Number: page, Size: limit})
	if err != nil {
		return nil, err
	}
	return newExtractionPage(records, total, page, limit), nil
}

func (s *OCRService) Get(ctx context.Context, caller store.Caller, id int64) (*store.ExtractionRecord, error) {
	return s.store.GetExtraction(ctx, caller, id)
}

func (s *OCRService) Delete(ctx context.Context, caller store.Caller, id int64) error {
	return s.store.DeleteExtraction(ctx, caller, id)
}

func (s *OCRService) Stats(ctx context.Context, caller store.Caller) (*store.ExtractionStats, error) {
	return s.store.ExtractionStats(ctx, caller)
}

func newExtractionPage(records []store.ExtractionRecord, total, page, limit int) *ExtractionPage {
	items := make([]ExtractionItem, 0, len(records))
	for _, rec := range records {
		items = append(items, ExtractionItem{
			ExtractionRecord: rec,
			FormattedDate:    utils.FormatDate(rec.CreatedAt),
			TextPreview:      utils.Preview(rec.ExtractedText),
		})
	}
	return &ExtractionPage{
		Responses:   items,
		Total:       total,
		Pages:       utils.TotalPages(total, limit),
		CurrentPage: page,
	}
}
