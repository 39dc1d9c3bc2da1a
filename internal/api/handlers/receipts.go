package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mkravets/finlog/internal/api/middleware"
	"github.com/mkravets/finlog/internal/archive"
	"github.com/mkravets/finlog/internal/domain"
	"github.com/mkravets/finlog/internal/extract"
)

// maxUploadBytes bounds the whole multipart body. The per-kind limits are
// enforced again by the scanner.
const maxUploadBytes = 12 * 1024 * 1024

// ReceiptScanner is implemented by extract.Scanner.
type ReceiptScanner interface {
	Scan(ctx context.Context, kind extract.Kind, mimeType string, data []byte) (domain.ReceiptDraft, error)
}

// ReceiptsHandler turns uploaded receipt files into transaction drafts.
type ReceiptsHandler struct {
	scanner ReceiptScanner
	archive archive.Store
	log     zerolog.Logger
}

// NewReceiptsHandler creates a new receipts handler.
func NewReceiptsHandler(scanner ReceiptScanner, arch archive.Store, log zerolog.Logger) *ReceiptsHandler {
	return &ReceiptsHandler{
		scanner: scanner,
		archive: arch,
		log:     log,
	}
}

// ScanReceipt handles POST /api/receipts/scan
func (h *ReceiptsHandler) ScanReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.UserFrom(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Missing file upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read file upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}

	kind := extract.ImageReceipt
	if mimeType == "application/pdf" {
		kind = extract.PDFReceipt
	}

	draft, err := h.scanner.Scan(ctx, kind, mimeType, data)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrFileTooLarge):
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File is too large")
		case errors.Is(err, extract.ErrUnsupportedType):
			middleware.WriteError(w, http.StatusUnsupportedMediaType, "Unsupported file type")
		case errors.Is(err, extract.ErrInvalidModelResponse):
			middleware.WriteError(w, http.StatusBadGateway, "Could not read the receipt, please try again")
		default:
			h.log.Error().Err(err).Msg("Receipt scan failed")
			middleware.WriteError(w, http.StatusBadGateway, "Receipt scanning is temporarily unavailable")
		}
		return
	}

	// Keep a copy of the original so the extracted draft can be checked
	// later. Failures only lose the copy, not the scan.
	if objectName, err := h.archive.Save(ctx, user.ID, mimeType, data); err != nil {
		h.log.Warn().Err(err).Msg("Failed to archive receipt")
	} else if objectName != "" {
		h.log.Info().Str("object", objectName).Msg("Receipt archived")
	}

	if draft.Empty() {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"receipt": false,
			"draft":   nil,
		})
		return
	}

	payload := map[string]interface{}{
		"amount":       draft.Amount,
		"description":  draft.Description,
		"category":     draft.Category,
		"merchantName": draft.MerchantName,
	}
	if !draft.Date.IsZero() {
		payload["date"] = draft.Date.Format("2006-01-02")
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"receipt": true,
		"draft":   payload,
	})
}
