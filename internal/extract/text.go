package extract

import (
	"context"
	"os"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
)

// textExtractor passes Markdown and plain text through untouched; the
// LLM benefits from seeing the original structure.
type textExtractor struct{}

func (e *textExtractor) Name() string { return "text" }

func (e *textExtractor) CanExtract(fileType model.FileType) bool {
	return fileType == model.FileTypeMarkdown || fileType == model.FileTypeText
}

func (e *textExtractor) Extract(ctx context.Context, blobPath string) (string, error) {
	data, err := os.ReadFile(blobPath)
	if err != nil {
		return "", apperr.Wrap(apperr.KindExtractionFailed, err)
	}
	return string(data), nil
}
