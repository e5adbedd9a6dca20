// Package progress carries task progress from workers to watching
// clients: workers publish events onto per-task Redis streams, and the
// server-side broker tails those streams and fans events out to
// in-memory subscribers.
package progress

import (
	"strconv"

	"basegraph.app/insight/internal/model"
)

// EventType classifies a progress event. Terminal types end a stream.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

// Event is one progress update for a task.
type Event struct {
	Type         EventType            `json:"type"`
	TaskID       int64                `json:"task_id"`
	DocumentID   int64                `json:"document_id"`
	Progress     int                  `json:"progress"`
	CurrentStage string               `json:"current_stage"`
	Status       model.DocumentStatus `json:"status,omitempty"`
}

// Terminal reports whether no further events follow on this task.
func (e Event) Terminal() bool {
	return e.Type == EventCompleted || e.Type == EventError
}

// eventValues flattens an event into stream fields. Kept flat rather
// than one JSON blob so redis-cli XRANGE output stays readable.
func eventValues(e Event) map[string]any {
	values := map[string]any{
		"type":          string(e.Type),
		"task_id":       e.TaskID,
		"document_id":   e.DocumentID,
		"progress":      e.Progress,
		"current_stage": e.CurrentStage,
	}
	if e.Status != "" {
		values["status"] = string(e.Status)
	}
	return values
}

// eventFromValues rebuilds an event from stream fields. Redis hands
// every field back as a string.
func eventFromValues(values map[string]any) Event {
	e := Event{
		Type:         EventType(stringValue(values["type"])),
		TaskID:       int64Value(values["task_id"]),
		DocumentID:   int64Value(values["document_id"]),
		Progress:     int(int64Value(values["progress"])),
		CurrentStage: stringValue(values["current_stage"]),
	}
	if s := stringValue(values["status"]); s != "" {
		e.Status = model.DocumentStatus(s)
	}
	return e
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func int64Value(v any) int64 {
	switch t := v.(type) {
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	case int64:
		return t
	case int:
		return int64(t)
	}
	return 0
}
