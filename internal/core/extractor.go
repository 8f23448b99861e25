package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultExtractionModel = "gemini-2.5-flash"

	extractionPrompt = "Extract all text from the following image. " +
		"Format the output as a single block of plain text, preserving line breaks."
)

var (
	ErrUpstream   = errors.New("text extraction failed")
	ErrEmptyImage = errors.New("image payload is empty")
)

// TextExtractor turns an image into the text printed on it.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte, mimeType string) (string, error)
}

// GeminiExtractor calls the Gemini vision API. Each instance owns its client.
type GeminiExtractor struct {
	client    *genai.Client
	modelName string
}

func NewGeminiExtractor(ctx context.Context, apiKey, modelName string) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultExtractionModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiExtractor{client: client, modelName: modelName}, nil
}

func (e *GeminiExtractor) Close() {
	if e.client != nil {
		if err := e.client.Close(); err != nil {
			slog.Error("closing GenAI client", "error", err)
		} else {
			slog.Info("GenAI client closed")
		}
	}
}

// ExtractText sends the image inline with the fixed instruction prompt.
// Failures are not retried.
func (e *GeminiExtractor) ExtractText(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 || mimeType == "" {
		return "", ErrEmptyImage
	}

	model := e.client.GenerativeModel(e.modelName)
	resp, err := model.GenerateContent(ctx,
		genai.Text(extractionPrompt),
		genai.Blob{MIMEType: mimeType, Data: image},
	)
	if err != nil {
		return "", fmt.Errorf("%w: gemini request: %v", ErrUpstream, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: gemini returned no candidates", ErrUpstream)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			slog.Debug("skipping non-text gemini response part", "type", fmt.Sprintf("%T", part))
		}
	}
	return text.String(), nil
}
