package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
)

type pptxExtractor struct{}

func (e *pptxExtractor) Name() string { return "pptx" }

func (e *pptxExtractor) CanExtract(fileType model.FileType) bool {
	return fileType == model.FileTypePPTX
}

var slidePathRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Extract reads ppt/slides/slideN.xml entries in slide order and joins
// their text runs, one paragraph per line, slides separated by a blank
// line.
func (e *pptxExtractor) Extract(ctx context.Context, blobPath string) (string, error) {
	archive, err := zip.OpenReader(blobPath)
	if err != nil {
		return "", apperr.Wrap(apperr.KindFileCorrupted, err)
	}
	defer archive.Close()

	type slideFile struct {
		num  int
		file *zip.File
	}
	var slides []slideFile
	for _, f := range archive.File {
		m := slidePathRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slideFile{num: num, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var parts []string
	for _, slide := range slides {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		rc, err := slide.file.Open()
		if err != nil {
			return "", apperr.Wrap(apperr.KindFileCorrupted, err)
		}
		text, err := slideXMLText(rc)
		rc.Close()
		if err != nil {
			return "", apperr.Wrap(apperr.KindExtractionFailed, err)
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, strings.TrimRight(text, "\n"))
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

// slideXMLText collects <a:t> runs from one slide, ending a line at
// each </a:p>.
func slideXMLText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var b strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
