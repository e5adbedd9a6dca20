// Package extract turns uploaded blobs into raw text. Extractors are
// pure: they read the file, never the database.
package extract

import (
	"context"
	"sort"
	"unicode/utf8"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
)

// Extractor converts one file format to raw text.
type Extractor interface {
	Name() string
	CanExtract(fileType model.FileType) bool
	Extract(ctx context.Context, blobPath string) (string, error)
}

type registered struct {
	extractor Extractor
	priority  int
}

// Registry dispatches extraction by file type, highest priority first.
type Registry struct {
	extractors []registered
}

// NewRegistry creates a registry with the built-in extractors.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(&pdfExtractor{}, 10)
	r.Register(&docxExtractor{}, 10)
	r.Register(&pptxExtractor{}, 10)
	r.Register(&textExtractor{}, 1)
	return r
}

// Register adds an extractor, keeping the list sorted by priority.
func (r *Registry) Register(e Extractor, priority int) {
	r.extractors = append(r.extractors, registered{extractor: e, priority: priority})
	sort.SliceStable(r.extractors, func(i, j int) bool {
		return r.extractors[i].priority > r.extractors[j].priority
	})
}

// Extract runs the first extractor claiming the file type and returns
// sanitized UTF-8 text. No claimant → unsupported_format.
func (r *Registry) Extract(ctx context.Context, fileType model.FileType, blobPath string) (string, error) {
	for _, reg := range r.extractors {
		if !reg.extractor.CanExtract(fileType) {
			continue
		}
		text, err := reg.extractor.Extract(ctx, blobPath)
		if err != nil {
			return "", err
		}
		return sanitizeUTF8(text)
	}
	return "", apperr.Newf(apperr.KindUnsupportedFormat, "no extractor for file type %q", fileType)
}

// sanitizeUTF8 strips invalid byte sequences. Text that is mostly
// invalid is binary garbage, not a document.
func sanitizeUTF8(s string) (string, error) {
	if utf8.ValidString(s) {
		return s, nil
	}

	valid := make([]byte, 0, len(s))
	invalid := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			invalid++
			i++
			continue
		}
		valid = append(valid, s[i:i+size]...)
		i += size
	}

	if invalid*2 > len(s) {
		return "", apperr.New(apperr.KindExtractionFailed, "content is mostly invalid UTF-8")
	}
	return string(valid), nil
}
