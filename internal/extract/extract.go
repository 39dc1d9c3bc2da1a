// Package extract turns uploaded receipt files into transaction drafts by
// sending them to a multimodal model and parsing the text it returns.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkravets/finlog/internal/domain"
)

var (
	// ErrInvalidModelResponse is returned when the model output cannot be
	// parsed as the expected JSON shape or fails basic type coercion.
	ErrInvalidModelResponse = errors.New("invalid model response")

	// ErrFileTooLarge is returned when the upload exceeds the kind's limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnsupportedType is returned when the upload's MIME type is not
	// accepted by the kind.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Generator produces free-form text from an inline binary plus a prompt.
// The production implementation calls Gemini; tests substitute a fake.
type Generator interface {
	GenerateContent(ctx context.Context, mimeType string, data []byte, prompt string) (string, error)
}

// Kind parameterizes the pipeline per upload format. The image and PDF
// variants differ only in size limit and MIME acceptance; everything else
// is shared.
type Kind struct {
	Name     string
	MaxBytes int64
	Accepts  func(mimeType string) bool
}

var (
	ImageReceipt = Kind{
		Name:     "image",
		MaxBytes: 5 * 1024 * 1024,
		Accepts: func(mimeType string) bool {
			switch mimeType {
			case "image/jpeg", "image/png", "image/webp":
				return true
			}
			return false
		},
	}

	PDFReceipt = Kind{
		Name:     "pdf",
		MaxBytes: 10 * 1024 * 1024,
		Accepts: func(mimeType string) bool {
			return mimeType == "application/pdf"
		},
	}
)

// Scanner runs the extraction pipeline: validate, invoke the model with a
// bounded deadline, strip code fences, parse JSON, coerce fields.
type Scanner struct {
	gen     Generator
	timeout time.Duration
	log     zerolog.Logger
}

func NewScanner(gen Generator, timeout time.Duration, log zerolog.Logger) *Scanner {
	return &Scanner{gen: gen, timeout: timeout, log: log}
}

// Scan extracts a transaction draft from the uploaded file. A semantically
// empty model response ("not a receipt") yields an empty draft and no error;
// the caller decides how to handle it.
func (s *Scanner) Scan(ctx context.Context, kind Kind, mimeType string, data []byte) (domain.ReceiptDraft, error) {
	if int64(len(data)) > kind.MaxBytes {
		return domain.ReceiptDraft{}, fmt.Errorf("%w: %d bytes exceeds %s limit of %d",
			ErrFileTooLarge, len(data), kind.Name, kind.MaxBytes)
	}
	if !kind.Accepts(mimeType) {
		return domain.ReceiptDraft{}, fmt.Errorf("%w: %s not accepted for %s scan",
			ErrUnsupportedType, mimeType, kind.Name)
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.gen.GenerateContent(cctx, mimeType, data, receiptPrompt)
	if err != nil {
		return domain.ReceiptDraft{}, fmt.Errorf("scan %s: generate content: %w", kind.Name, err)
	}

	draft, err := parseDraft(raw)
	if err != nil {
		s.log.Warn().Err(err).Str("kind", kind.Name).Msg("Model returned unparseable output")
		return domain.ReceiptDraft{}, err
	}
	return draft, nil
}

// parseDraft cleans and parses the raw model text into a draft. No retries:
// a malformed response fails with ErrInvalidModelResponse.
func parseDraft(raw string) (domain.ReceiptDraft, error) {
	clean := cleanModelJSON(raw)

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &obj); err != nil {
		return domain.ReceiptDraft{}, fmt.Errorf("%w: %v", ErrInvalidModelResponse, err)
	}

	// Empty object is the model's "not a receipt" signal.
	if len(obj) == 0 {
		return domain.ReceiptDraft{}, nil
	}

	var draft domain.ReceiptDraft
	amount, err := numberField(obj, "amount")
	if err != nil {
		return domain.ReceiptDraft{}, err
	}
	draft.Amount = amount

	if dateStr := stringField(obj, "date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return domain.ReceiptDraft{}, fmt.Errorf("%w: invalid date %q", ErrInvalidModelResponse, dateStr)
		}
		draft.Date = date
	}

	draft.Description = stringField(obj, "description")
	draft.Category = stringField(obj, "category")
	draft.MerchantName = stringField(obj, "merchantName")
	return draft, nil
}

// cleanModelJSON strips Markdown code fences the model may wrap its output
// in, then keeps only the outermost JSON object if extra prose surrounds it.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

// numberField reads a JSON number that some models emit as a quoted string.
func numberField(m map[string]interface{}, key string) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %q is not a number: %q", ErrInvalidModelResponse, key, val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: field %q has type %T, want number", ErrInvalidModelResponse, key, v)
	}
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
