package queue

import "fmt"

type JobType string

const (
	// JobTypeProcessDocument runs the full pipeline: extract, classify,
	// then the primary view synchronously.
	JobTypeProcessDocument JobType = "process_document"

	// JobTypeProcessView runs one secondary view against the stored
	// intermediate artifacts.
	JobTypeProcessView JobType = "process_view"
)

// Job is the unit of work placed on the stream. View names the single
// view a process_view job targets and is empty for process_document.
// Views is the caller's optional view hint on a process_document job;
// empty means the classifier decides.
type Job struct {
	JobType    JobType
	DocumentID int64
	TaskID     int64
	View       string
	Views      []string
	Attempt    int
	TraceID    *string
}

// ProgressStreamName returns the per-task Redis stream progress events
// are published to.
func ProgressStreamName(taskID int64) string {
	return fmt.Sprintf("insight:progress:%d", taskID)
}
