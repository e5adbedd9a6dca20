package extract

import (
	"context"
	"encoding/xml"
	"strings"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
	"github.com/nguyenthenguyen/docx"
)

type docxExtractor struct{}

func (e *docxExtractor) Name() string { return "docx" }

func (e *docxExtractor) CanExtract(fileType model.FileType) bool {
	return fileType == model.FileTypeDOCX
}

func (e *docxExtractor) Extract(ctx context.Context, blobPath string) (string, error) {
	doc, err := docx.ReadDocxFile(blobPath)
	if err != nil {
		return "", apperr.Wrap(apperr.KindFileCorrupted, err)
	}
	defer doc.Close()

	return wordXMLText(doc.Editable().GetContent()), nil
}

// wordXMLText flattens word/document.xml markup to plain text: text
// runs concatenated, paragraphs become lines, tabs and breaks kept.
// Entities are decoded by the XML tokenizer.
func wordXMLText(content string) string {
	decoder := xml.NewDecoder(strings.NewReader(content))

	var b strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
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
	return b.String()
}
