package extract

import (
	"context"
	"os"
	"strings"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
	"github.com/ledongthuc/pdf"
)

type pdfExtractor struct{}

func (e *pdfExtractor) Name() string { return "pdf" }

func (e *pdfExtractor) CanExtract(fileType model.FileType) bool {
	return fileType == model.FileTypePDF
}

// Extract walks the document page by page. Pages without a text layer
// are skipped; image-only documents come back empty and fail later as
// low quality, not as corruption.
func (e *pdfExtractor) Extract(ctx context.Context, blobPath string) (string, error) {
	file, err := os.Open(blobPath)
	if err != nil {
		return "", apperr.Wrap(apperr.KindExtractionFailed, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", apperr.Wrap(apperr.KindExtractionFailed, err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return "", apperr.Wrap(apperr.KindFileCorrupted, err)
	}

	var parts []string
	totalPages := reader.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}
