package views_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	corellm "basegraph.app/insight/common/llm"
	"basegraph.app/insight/internal/llm"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/progress"
	"basegraph.app/insight/internal/queue"
	"basegraph.app/insight/internal/store"
	"basegraph.app/insight/internal/views"
)

// fakeGateway implements views.Gateway with an ordered reply queue.
// Each GenerateJSON call pops the next entry, a JSON string or an
// error, and records the prompts it saw. Processors run their steps
// in a fixed order, so queue position identifies the step.
type fakeGateway struct {
	mu      sync.Mutex
	replies []any
	calls   []fakeCall
}

type fakeCall struct {
	system     string
	user       string
	schemaHint string
}

func (f *fakeGateway) enqueue(replies ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, replies...)
}

func (f *fakeGateway) GenerateJSON(ctx context.Context, messages []corellm.Message, schemaHint string, opts ...llm.CallOption) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := fakeCall{schemaHint: schemaHint}
	for _, m := range messages {
		switch m.Role {
		case "system":
			call.system = m.Content
		case "user":
			call.user = m.Content
		}
	}
	f.calls = append(f.calls, call)

	if len(f.replies) == 0 {
		return nil, fmt.Errorf("unexpected gateway call %d", len(f.calls))
	}
	next := f.replies[0]
	f.replies = f.replies[1:]
	if err, ok := next.(error); ok {
		return nil, err
	}
	return json.RawMessage(next.(string)), nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGateway) call(i int) fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

// progressRecorder captures ProcessInput.Progress callbacks.
type progressRecorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *progressRecorder) record(step int, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, fmt.Sprintf("%d:%s", step, title))
}

func (r *progressRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

type fakeDocumentStore struct {
	getByIDFn func(ctx context.Context, id int64) (*model.Document, error)
	statuses  []model.DocumentStatus
}

func (m *fakeDocumentStore) GetByID(ctx context.Context, id int64) (*model.Document, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *fakeDocumentStore) Create(ctx context.Context, doc *model.Document) error { return nil }

func (m *fakeDocumentStore) SetStatus(ctx context.Context, id int64, status model.DocumentStatus) error {
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *fakeDocumentStore) Delete(ctx context.Context, id int64) error { return nil }

func (m *fakeDocumentStore) List(ctx context.Context, filter store.HistoryFilter) ([]model.Document, int64, error) {
	return nil, 0, nil
}

type taskTerminal struct {
	taskID  int64
	status  model.DocumentStatus
	errType string
}

type fakeTaskStore struct {
	startFn   func(ctx context.Context, id int64) error
	createFn  func(ctx context.Context, task *model.ProcessingTask) error
	started   []int64
	progress  []string
	created   []*model.ProcessingTask
	terminals []taskTerminal
}

func (m *fakeTaskStore) GetByID(ctx context.Context, id int64) (*model.ProcessingTask, error) {
	return nil, store.ErrNotFound
}

func (m *fakeTaskStore) GetLatestByDocument(ctx context.Context, documentID int64) (*model.ProcessingTask, error) {
	return nil, store.ErrNotFound
}

func (m *fakeTaskStore) GetLatestByDocumentAndView(ctx context.Context, documentID int64, view model.ViewName) (*model.ProcessingTask, error) {
	return nil, store.ErrNotFound
}

func (m *fakeTaskStore) Create(ctx context.Context, task *model.ProcessingTask) error {
	m.created = append(m.created, task)
	if m.createFn != nil {
		return m.createFn(ctx, task)
	}
	return nil
}

func (m *fakeTaskStore) Start(ctx context.Context, id int64) error {
	m.started = append(m.started, id)
	if m.startFn != nil {
		return m.startFn(ctx, id)
	}
	return nil
}

func (m *fakeTaskStore) SetProgress(ctx context.Context, id int64, stage model.TaskStage, progress int32, currentStage string) error {
	m.progress = append(m.progress, fmt.Sprintf("%d:%s", progress, currentStage))
	return nil
}

func (m *fakeTaskStore) Terminalize(ctx context.Context, id int64, status model.DocumentStatus, errorType, errorMessage *string) error {
	t := taskTerminal{taskID: id, status: status}
	if errorType != nil {
		t.errType = *errorType
	}
	m.terminals = append(m.terminals, t)
	return nil
}

func (m *fakeTaskStore) DeleteByDocument(ctx context.Context, documentID int64) error { return nil }

type fakeIntermediateStore struct {
	getFn    func(ctx context.Context, documentID int64) (*model.IntermediateResult, error)
	upserted []*model.IntermediateResult
}

func (m *fakeIntermediateStore) GetByDocument(ctx context.Context, documentID int64) (*model.IntermediateResult, error) {
	if m.getFn != nil {
		return m.getFn(ctx, documentID)
	}
	return nil, store.ErrNotFound
}

func (m *fakeIntermediateStore) Upsert(ctx context.Context, ir *model.IntermediateResult) error {
	m.upserted = append(m.upserted, ir)
	return nil
}

func (m *fakeIntermediateStore) DeleteByDocument(ctx context.Context, documentID int64) error {
	return nil
}

type fakeProfileStore struct {
	getFn    func(ctx context.Context, documentID int64) (*model.DocumentViewProfile, error)
	upserted []*model.DocumentViewProfile
}

func (m *fakeProfileStore) GetByDocument(ctx context.Context, documentID int64) (*model.DocumentViewProfile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, documentID)
	}
	return nil, store.ErrNotFound
}

func (m *fakeProfileStore) Upsert(ctx context.Context, profile *model.DocumentViewProfile) error {
	m.upserted = append(m.upserted, profile)
	return nil
}

func (m *fakeProfileStore) DeleteByDocument(ctx context.Context, documentID int64) error { return nil }

type fakeResultStore struct {
	upsertFn func(ctx context.Context, result *model.ProcessingResult) error
	upserted []*model.ProcessingResult
}

func (m *fakeResultStore) GetByDocumentAndView(ctx context.Context, documentID int64, view model.ViewName) (*model.ProcessingResult, error) {
	return nil, store.ErrNotFound
}

func (m *fakeResultStore) ListByDocument(ctx context.Context, documentID int64) ([]model.ProcessingResult, error) {
	return nil, nil
}

func (m *fakeResultStore) Upsert(ctx context.Context, result *model.ProcessingResult) error {
	m.upserted = append(m.upserted, result)
	if m.upsertFn != nil {
		return m.upsertFn(ctx, result)
	}
	return nil
}

func (m *fakeResultStore) DeleteByDocument(ctx context.Context, documentID int64) error { return nil }

type fakeQualityStore struct {
	appended []*model.AiResultQuality
}

func (m *fakeQualityStore) Append(ctx context.Context, quality *model.AiResultQuality) error {
	m.appended = append(m.appended, quality)
	return nil
}

func (m *fakeQualityStore) GetLatestByDocumentAndView(ctx context.Context, documentID int64, view model.ViewName) (*model.AiResultQuality, error) {
	return nil, store.ErrNotFound
}

func (m *fakeQualityStore) DeleteByDocument(ctx context.Context, documentID int64) error { return nil }

func (m *fakeQualityStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// fakeStores bundles the store fakes behind views.StoreProvider.
type fakeStores struct {
	documents     *fakeDocumentStore
	tasks         *fakeTaskStore
	intermediates *fakeIntermediateStore
	profiles      *fakeProfileStore
	results       *fakeResultStore
	quality       *fakeQualityStore
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		documents:     &fakeDocumentStore{},
		tasks:         &fakeTaskStore{},
		intermediates: &fakeIntermediateStore{},
		profiles:      &fakeProfileStore{},
		results:       &fakeResultStore{},
		quality:       &fakeQualityStore{},
	}
}

func (s *fakeStores) Documents() store.DocumentStore         { return s.documents }
func (s *fakeStores) Tasks() store.TaskStore                 { return s.tasks }
func (s *fakeStores) Intermediates() store.IntermediateStore { return s.intermediates }
func (s *fakeStores) Profiles() store.ProfileStore           { return s.profiles }
func (s *fakeStores) Results() store.ResultStore             { return s.results }
func (s *fakeStores) Quality() store.QualityStore            { return s.quality }

// fakeTxRunner hands the same fakes back as the transaction scope.
type fakeTxRunner struct {
	stores *fakeStores
	err    error
}

func (t *fakeTxRunner) WithTx(ctx context.Context, fn func(stores views.StoreProvider) error) error {
	if t.err != nil {
		return t.err
	}
	return fn(t.stores)
}

type fakeEnqueuer struct {
	enqueueFn func(ctx context.Context, job queue.Job) error
	jobs      []queue.Job
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, job queue.Job) error {
	f.jobs = append(f.jobs, job)
	if f.enqueueFn != nil {
		return f.enqueueFn(ctx, job)
	}
	return nil
}

type fakeSink struct {
	events []progress.Event
}

func (s *fakeSink) Publish(ctx context.Context, event progress.Event) {
	s.events = append(s.events, event)
}

type fakeExtractor struct {
	extractFn func(ctx context.Context, fileType model.FileType, blobPath string) (string, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, fileType model.FileType, blobPath string) (string, error) {
	if f.extractFn != nil {
		return f.extractFn(ctx, fileType, blobPath)
	}
	return "", nil
}

type fakeBlobResolver struct{}

func (fakeBlobResolver) Path(relPath string) (string, error) {
	return "/blobs/" + relPath, nil
}
