package views

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/insight/common/id"
	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/progress"
	"basegraph.app/insight/internal/queue"
	"basegraph.app/insight/internal/store"
	"basegraph.app/insight/internal/textproc"
)

// Progress milestones of the shared pipeline phases. The primary's LLM
// steps interpolate from the last milestone to 100.
const (
	extractedPct    = 20
	preprocessedPct = 30
	segmentedPct    = 35
	classifiedPct   = 40
)

// StoreProvider exposes the stores the engine needs. This is a local
// interface so the engine can run over the pool for plain operations
// and over a transaction inside TxRunner.WithTx.
type StoreProvider interface {
	Documents() store.DocumentStore
	Tasks() store.TaskStore
	Intermediates() store.IntermediateStore
	Profiles() store.ProfileStore
	Results() store.ResultStore
	Quality() store.QualityStore
}

// TxRunner runs functions within a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(stores StoreProvider) error) error
}

// Extractor converts a stored blob into raw text. *extract.Registry
// satisfies it.
type Extractor interface {
	Extract(ctx context.Context, fileType model.FileType, blobPath string) (string, error)
}

// BlobResolver maps a document's relative blob path to an absolute
// filesystem path extractors can open.
type BlobResolver interface {
	Path(relPath string) (string, error)
}

// Enqueuer places secondary view jobs on the work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// EventSink receives live progress events. A nil sink drops them.
type EventSink interface {
	Publish(ctx context.Context, event progress.Event)
}

// EngineConfig wires the engine's collaborators. Stores must be
// pool-backed; Tx yields transaction-scoped providers for multi-row
// writes.
type EngineConfig struct {
	Stores     StoreProvider
	Tx         TxRunner
	Registry   *Registry
	Classifier *Classifier
	Extractor  Extractor
	Blobs      BlobResolver
	Producer   Enqueuer
	Events     EventSink

	// MaxContentChars and MaxSegmentChars bound preprocessing and
	// segmentation; zero selects the textproc defaults.
	MaxContentChars int
	MaxSegmentChars int

	Logger *slog.Logger
}

// Engine drives document processing: builds the view-agnostic
// artifacts, classifies the document, runs the primary view
// synchronously and fans the remaining views out as queue jobs.
type Engine struct {
	stores     StoreProvider
	tx         TxRunner
	registry   *Registry
	classifier *Classifier
	extractor  Extractor
	blobs      BlobResolver
	producer   Enqueuer
	events     EventSink

	maxContentChars int
	maxSegmentChars int

	logger *slog.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		stores:          cfg.Stores,
		tx:              cfg.Tx,
		registry:        cfg.Registry,
		classifier:      cfg.Classifier,
		extractor:       cfg.Extractor,
		blobs:           cfg.Blobs,
		producer:        cfg.Producer,
		events:          cfg.Events,
		maxContentChars: cfg.MaxContentChars,
		maxSegmentChars: cfg.MaxSegmentChars,
		logger:          logger,
	}
}

// Run executes a process_document job end to end. A nil return means
// the job is finished, terminal failures included; those are already
// written to the task. A non-nil return asks the queue to retry.
func (e *Engine) Run(ctx context.Context, documentID, taskID int64, hint []model.ViewName) error {
	doc, err := e.stores.Documents().GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.logger.WarnContext(ctx, "document gone before processing, dropping job",
				"document_id", documentID, "task_id", taskID)
			return nil
		}
		return fmt.Errorf("loading document %d: %w", documentID, err)
	}

	if err := e.stores.Tasks().Start(ctx, taskID); err != nil {
		return fmt.Errorf("starting task %d: %w", taskID, err)
	}
	if err := e.stores.Documents().SetStatus(ctx, documentID, model.DocumentStatusProcessing); err != nil {
		return fmt.Errorf("marking document processing: %w", err)
	}

	ir, err := e.intermediateFor(ctx, doc, taskID)
	if err != nil {
		return e.failDocument(ctx, documentID, taskID, err)
	}

	profile, err := e.profileFor(ctx, documentID, taskID, ir)
	if err != nil {
		return e.failDocument(ctx, documentID, taskID, err)
	}

	enabled := e.effectiveViews(hint, profile)
	primary := pickPrimary(profile, enabled)

	data, seconds, err := e.runProcessor(ctx, primary, documentID, taskID, ir, classifiedPct)
	if err != nil {
		return e.failDocument(ctx, documentID, taskID, err)
	}
	if err := e.persistResult(ctx, documentID, primary, true, data, seconds); err != nil {
		return fmt.Errorf("storing %s result: %w", primary, err)
	}
	e.recordQuality(ctx, documentID, primary, data)

	// Barrier: secondaries are enqueued only after the primary result
	// committed, so every process_view job finds the intermediate row.
	e.fanOut(ctx, documentID, enabled, primary)

	if err := e.stores.Tasks().Terminalize(ctx, taskID, model.DocumentStatusCompleted, nil, nil); err != nil {
		return fmt.Errorf("completing task %d: %w", taskID, err)
	}
	if err := e.stores.Documents().SetStatus(ctx, documentID, model.DocumentStatusCompleted); err != nil {
		e.logger.ErrorContext(ctx, "completed status write failed", "document_id", documentID, "error", err)
	}
	e.publish(ctx, progress.Event{
		Type:         progress.EventCompleted,
		TaskID:       taskID,
		DocumentID:   documentID,
		Progress:     100,
		CurrentStage: "completed",
		Status:       model.DocumentStatusCompleted,
	})
	e.logger.InfoContext(ctx, "document processed",
		"document_id", documentID, "task_id", taskID,
		"primary_view", primary, "views", enabled, "seconds", seconds)
	return nil
}

// RunView executes a process_view job against the stored intermediate
// artifacts. Failures stay on this view's task; the document status is
// never touched here.
func (e *Engine) RunView(ctx context.Context, documentID, taskID int64, view model.ViewName, isPrimary bool) error {
	if err := e.stores.Tasks().Start(ctx, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.logger.WarnContext(ctx, "view task gone, dropping job",
				"document_id", documentID, "task_id", taskID, "view", view)
			return nil
		}
		return fmt.Errorf("starting task %d: %w", taskID, err)
	}

	ir, err := e.stores.Intermediates().GetByDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Only reachable when the document was deleted between
			// fan-out and pickup; retrying cannot help.
			return e.failView(ctx, documentID, taskID, view,
				apperr.Newf(apperr.KindExtractionFailed, "intermediate artifacts missing for document %d", documentID))
		}
		return fmt.Errorf("loading intermediate: %w", err)
	}

	data, seconds, err := e.runProcessor(ctx, view, documentID, taskID, ir, 0)
	if err != nil {
		return e.failView(ctx, documentID, taskID, view, err)
	}
	if err := e.persistResult(ctx, documentID, view, isPrimary, data, seconds); err != nil {
		return fmt.Errorf("storing %s result: %w", view, err)
	}
	e.recordQuality(ctx, documentID, view, data)

	if err := e.stores.Tasks().Terminalize(ctx, taskID, model.DocumentStatusCompleted, nil, nil); err != nil {
		return fmt.Errorf("completing task %d: %w", taskID, err)
	}
	e.publish(ctx, progress.Event{
		Type:         progress.EventCompleted,
		TaskID:       taskID,
		DocumentID:   documentID,
		Progress:     100,
		CurrentStage: "completed",
		Status:       model.DocumentStatusCompleted,
	})
	e.logger.InfoContext(ctx, "view processed",
		"document_id", documentID, "task_id", taskID, "view", view, "seconds", seconds)
	return nil
}

// intermediateFor returns the stored artifacts, building them on first
// contact: extract, preprocess, segment, upsert.
func (e *Engine) intermediateFor(ctx context.Context, doc *model.Document, taskID int64) (*model.IntermediateResult, error) {
	ir, err := e.stores.Intermediates().GetByDocument(ctx, doc.ID)
	if err == nil {
		return ir, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading intermediate: %w", err)
	}

	blobPath, err := e.blobs.Path(doc.BlobPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExtractionFailed, err)
	}
	raw, err := e.extractor.Extract(ctx, doc.FileType, blobPath)
	if err != nil {
		return nil, err
	}
	e.step(ctx, doc.ID, taskID, model.TaskStageExtract, extractedPct, "extracted")

	pre, err := textproc.Preprocess(raw, e.maxContentChars)
	if err != nil {
		return nil, err
	}
	e.step(ctx, doc.ID, taskID, model.TaskStageExtract, preprocessedPct, "preprocessed")

	segments := textproc.Segment(pre.Text, e.maxSegmentChars)
	e.step(ctx, doc.ID, taskID, model.TaskStageExtract, segmentedPct, "segmented")

	ir = &model.IntermediateResult{
		ID:               id.New(),
		DocumentID:       doc.ID,
		RawText:          raw,
		PreprocessedText: pre.Text,
		Segments:         segments,
		Metadata:         intermediateMetadata(raw, pre, segments),
	}
	if err := e.stores.Intermediates().Upsert(ctx, ir); err != nil {
		return nil, fmt.Errorf("storing intermediate: %w", err)
	}
	return ir, nil
}

func intermediateMetadata(raw string, pre textproc.PreprocessResult, segments []model.Segment) json.RawMessage {
	meta := map[string]any{
		"raw_chars":          len([]rune(raw)),
		"preprocessed_chars": len([]rune(pre.Text)),
		"segment_count":      len(segments),
	}
	if pre.TruncatedFrom > 0 {
		meta["truncated_from"] = pre.TruncatedFrom
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return data
}

// profileFor returns the stored view profile, classifying on first
// contact.
func (e *Engine) profileFor(ctx context.Context, documentID, taskID int64, ir *model.IntermediateResult) (*model.DocumentViewProfile, error) {
	profile, err := e.stores.Profiles().GetByDocument(ctx, documentID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading view profile: %w", err)
	}

	det, err := e.classifier.Classify(ctx, documentID, taskID, ir.PreprocessedText)
	if err != nil {
		return nil, err
	}
	profile = &model.DocumentViewProfile{
		ID:              id.New(),
		DocumentID:      documentID,
		PrimaryView:     det.Primary,
		EnabledViews:    det.Enabled,
		DetectionScores: det.Scores,
		DetectionMethod: det.Method,
		Confidence:      det.Confidence,
	}
	if err := e.stores.Profiles().Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("storing view profile: %w", err)
	}
	e.step(ctx, documentID, taskID, model.TaskStageIdentify, classifiedPct, "classified")
	return profile, nil
}

// effectiveViews applies the caller hint over the profile's enabled
// set and drops anything without a registered processor. An empty
// intersection falls back to the profile.
func (e *Engine) effectiveViews(hint []model.ViewName, profile *model.DocumentViewProfile) []model.ViewName {
	views := e.filterRegistered(hint)
	if len(views) == 0 {
		views = e.filterRegistered(profile.EnabledViews)
	}
	if len(views) == 0 {
		views = []model.ViewName{profile.PrimaryView}
	}
	return views
}

func (e *Engine) filterRegistered(candidates []model.ViewName) []model.ViewName {
	var out []model.ViewName
	seen := make(map[model.ViewName]bool, len(candidates))
	for _, v := range candidates {
		if seen[v] || !e.registry.Has(v) {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// pickPrimary prefers the profile's primary when the effective set
// still contains it, otherwise the first effective view.
func pickPrimary(profile *model.DocumentViewProfile, views []model.ViewName) model.ViewName {
	for _, v := range views {
		if v == profile.PrimaryView {
			return v
		}
	}
	return views[0]
}

// runProcessor executes one view's processor, mapping its step
// callbacks onto the base..100 progress range.
func (e *Engine) runProcessor(ctx context.Context, view model.ViewName, documentID, taskID int64, ir *model.IntermediateResult, basePct int) (json.RawMessage, float64, error) {
	proc, ok := e.registry.Get(view)
	if !ok {
		return nil, 0, apperr.Newf(apperr.KindBadRequest, "no processor registered for view %q", view)
	}
	steps := proc.Steps()

	in := ProcessInput{
		DocumentID:   documentID,
		TaskID:       taskID,
		Preprocessed: ir.PreprocessedText,
		Segments:     ir.Segments,
		Progress: func(step int, title string) {
			pct := basePct + step*(100-basePct)/steps
			stage := fmt.Sprintf("step %d/%d – %s", step, steps, title)
			e.step(ctx, documentID, taskID, model.TaskStageProcess, pct, stage)
		},
	}

	start := time.Now()
	data, err := proc.Process(ctx, in)
	seconds := time.Since(start).Seconds()
	if err != nil {
		return nil, seconds, err
	}
	return data, seconds, nil
}

// persistResult commits one view's artifact in its own transaction.
func (e *Engine) persistResult(ctx context.Context, documentID int64, view model.ViewName, isPrimary bool, data json.RawMessage, seconds float64) error {
	result := &model.ProcessingResult{
		ID:                    id.New(),
		DocumentID:            documentID,
		View:                  view,
		ResultData:            data,
		IsPrimary:             isPrimary,
		ProcessingTimeSeconds: seconds,
	}
	return e.tx.WithTx(ctx, func(stores StoreProvider) error {
		return stores.Results().Upsert(ctx, result)
	})
}

// recordQuality is best effort; a scoring or storage hiccup never
// fails a run that already produced its result.
func (e *Engine) recordQuality(ctx context.Context, documentID int64, view model.ViewName, data json.RawMessage) {
	quality, err := ComputeQuality(documentID, view, data)
	if err != nil {
		e.logger.WarnContext(ctx, "quality scoring failed",
			"document_id", documentID, "view", view, "error", err)
		return
	}
	quality.ID = id.New()
	if err := e.stores.Quality().Append(ctx, quality); err != nil {
		e.logger.WarnContext(ctx, "quality row write failed",
			"document_id", documentID, "view", view, "error", err)
	}
}

// fanOut creates one pending task per secondary view and enqueues its
// job. A failed enqueue terminalizes that task so its view reads as
// failed instead of hanging pending forever.
func (e *Engine) fanOut(ctx context.Context, documentID int64, views []model.ViewName, primary model.ViewName) {
	for _, view := range views {
		if view == primary {
			continue
		}
		task := &model.ProcessingTask{
			ID:         id.New(),
			DocumentID: documentID,
			View:       &view,
			Stage:      model.TaskStageProcess,
			Status:     model.DocumentStatusPending,
		}
		if err := e.stores.Tasks().Create(ctx, task); err != nil {
			e.logger.ErrorContext(ctx, "secondary task create failed",
				"document_id", documentID, "view", view, "error", err)
			continue
		}
		job := queue.Job{
			JobType:    queue.JobTypeProcessView,
			DocumentID: documentID,
			TaskID:     task.ID,
			View:       string(view),
		}
		if err := e.producer.Enqueue(ctx, job); err != nil {
			e.logger.ErrorContext(ctx, "secondary enqueue failed",
				"document_id", documentID, "view", view, "error", err)
			errType := string(apperr.KindServerError)
			errMsg := err.Error()
			if terr := e.stores.Tasks().Terminalize(ctx, task.ID, model.DocumentStatusFailed, &errType, &errMsg); terr != nil {
				e.logger.ErrorContext(ctx, "orphaned view task terminalize failed",
					"task_id", task.ID, "error", terr)
			}
		}
	}
}

// failDocument closes a document-level run. Infrastructure errors pass
// through for the queue to retry; terminal failures are written to the
// task and the document and acknowledged.
func (e *Engine) failDocument(ctx context.Context, documentID, taskID int64, cause error) error {
	kind, terminal := terminalFailure(cause)
	if !terminal {
		return cause
	}
	// The cause may be the deadline itself; the close-out writes still
	// have to land.
	ctx = context.WithoutCancel(ctx)

	status := statusForKind(kind)
	errType := string(kind)
	errMsg := cause.Error()
	if err := e.stores.Tasks().Terminalize(ctx, taskID, status, &errType, &errMsg); err != nil {
		e.logger.ErrorContext(ctx, "task terminalize failed", "task_id", taskID, "error", err)
	}
	if err := e.stores.Documents().SetStatus(ctx, documentID, status); err != nil {
		e.logger.ErrorContext(ctx, "document status write failed", "document_id", documentID, "error", err)
	}
	e.publish(ctx, progress.Event{
		Type:         progress.EventError,
		TaskID:       taskID,
		DocumentID:   documentID,
		CurrentStage: string(kind),
		Status:       status,
	})
	e.logger.WarnContext(ctx, "document processing failed",
		"document_id", documentID, "task_id", taskID, "error_type", errType, "error", cause)
	return nil
}

// failView closes a secondary run the same way, leaving the document
// untouched.
func (e *Engine) failView(ctx context.Context, documentID, taskID int64, view model.ViewName, cause error) error {
	kind, terminal := terminalFailure(cause)
	if !terminal {
		return cause
	}
	ctx = context.WithoutCancel(ctx)

	status := statusForKind(kind)
	errType := string(kind)
	errMsg := cause.Error()
	if err := e.stores.Tasks().Terminalize(ctx, taskID, status, &errType, &errMsg); err != nil {
		e.logger.ErrorContext(ctx, "view task terminalize failed", "task_id", taskID, "error", err)
	}
	e.publish(ctx, progress.Event{
		Type:         progress.EventError,
		TaskID:       taskID,
		DocumentID:   documentID,
		CurrentStage: string(kind),
		Status:       status,
	})
	e.logger.WarnContext(ctx, "view processing failed",
		"document_id", documentID, "task_id", taskID, "view", view, "error_type", errType, "error", cause)
	return nil
}

// step records task progress and mirrors it to live subscribers. The
// write is best effort; losing a progress tick never fails a run.
func (e *Engine) step(ctx context.Context, documentID, taskID int64, stage model.TaskStage, pct int, name string) {
	if err := e.stores.Tasks().SetProgress(ctx, taskID, stage, int32(pct), name); err != nil {
		e.logger.WarnContext(ctx, "progress write failed", "task_id", taskID, "error", err)
	}
	e.publish(ctx, progress.Event{
		Type:         progress.EventProgress,
		TaskID:       taskID,
		DocumentID:   documentID,
		Progress:     pct,
		CurrentStage: name,
		Status:       model.DocumentStatusProcessing,
	})
}

func (e *Engine) publish(ctx context.Context, event progress.Event) {
	if e.events == nil {
		return
	}
	e.events.Publish(ctx, event)
}

// terminalFailure classifies a run error. Terminal failures get a
// final status; everything else is infrastructure trouble the queue
// retries. Context cancellation is never terminal, but running out of
// the job deadline is.
func terminalFailure(err error) (apperr.Kind, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.KindTimeout, true
	}
	if errors.Is(err, context.Canceled) {
		return "", false
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return "", false
	}
	switch ae.Kind {
	case apperr.KindServerError, apperr.KindNetworkError, apperr.KindRateLimited:
		return ae.Kind, false
	default:
		return ae.Kind, true
	}
}

func statusForKind(kind apperr.Kind) model.DocumentStatus {
	switch kind {
	case apperr.KindTimeout:
		return model.DocumentStatusTimeout
	case apperr.KindLowQuality:
		return model.DocumentStatusLowQuality
	default:
		return model.DocumentStatusFailed
	}
}
