package textproc

import "basegraph.app/insight/internal/model"

const (
	// estimateBaseSeconds covers queueing, extraction setup and
	// persistence regardless of document size.
	estimateBaseSeconds = 10

	// estimateCharsPerSecond is the assumed throughput of one view's
	// processing pipeline, dominated by model calls.
	estimateCharsPerSecond = 3000

	// containerTextYield is the assumed bytes-per-character ratio of
	// container formats (pdf, docx, pptx), which carry markup and
	// media alongside text.
	containerTextYield = 10
)

// EstimateSeconds predicts wall-clock processing time for content of
// contentLen runes across viewCount views. The ingestion guard compares
// it against the process-time ceiling.
func EstimateSeconds(contentLen, viewCount int) int {
	if contentLen < 0 {
		contentLen = 0
	}
	if viewCount < 1 {
		viewCount = 1
	}
	return estimateBaseSeconds + contentLen*viewCount/estimateCharsPerSecond
}

// EstimatedChars guesses how many text characters an upload of the
// given declared size will extract to. Plain-text formats map byte for
// byte; container formats yield a fraction of their bytes.
func EstimatedChars(fileType model.FileType, sizeBytes int64) int {
	switch fileType {
	case model.FileTypeMarkdown, model.FileTypeText:
		return int(sizeBytes)
	default:
		return int(sizeBytes / containerTextYield)
	}
}
