package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/lukasedel/docsorter/constants"
	"github.com/lukasedel/docsorter/internal/classify"
	"github.com/lukasedel/docsorter/internal/inference"
	"github.com/lukasedel/docsorter/internal/ocr"
	"github.com/lukasedel/docsorter/internal/repository"
)

type memStore struct {
	mu      sync.Mutex
	docs    map[uuid.UUID]*memDoc
	order   []uuid.UUID
	listErr error
}

type memDoc struct {
	filename  string
	content   []byte
	processed bool
	lastError string
}

func newMemStore() *memStore {
	return &memStore{docs: map[uuid.UUID]*memDoc{}}
}

func (m *memStore) add(filename string, content []byte, processed bool) uuid.UUID {
	id := uuid.New()
	m.docs[id] = &memDoc{filename: filename, content: content, processed: processed}
	m.order = append(m.order, id)
	return id
}

func (m *memStore) ListPending(_ context.Context, limit int) ([]repository.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []repository.Document
	for _, id := range m.order {
		d := m.docs[id]
		if d.processed {
			continue
		}
		out = append(out, repository.Document{ID: id, Filename: d.filename})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) Fetch(_ context.Context, id uuid.UUID) ([]byte, repository.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, repository.Document{}, errors.New("no such document")
	}
	return d.content, repository.Document{ID: id, Filename: d.filename, Processed: d.processed}, nil
}

func (m *memStore) Rename(_ context.Context, id uuid.UUID, newFilename string, markProcessed bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return false, nil
	}
	d.filename = newFilename
	d.processed = markProcessed
	d.lastError = ""
	return true, nil
}

func (m *memStore) RecordError(_ context.Context, id uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return errors.New("no such document")
	}
	d.lastError = message
	return nil
}

type stubExtractor struct {
	text   string
	method string
}

func (s stubExtractor) Extract(context.Context, []byte) ocr.Result {
	method := s.method
	if method == "" {
		method = ocr.MethodNative
	}
	return ocr.Result{Text: s.text, Method: method, Pages: 1}
}

// fixedClassifier returns the same outcome for every document, or an error
// for documents whose text matches failOn.
type fixedClassifier struct {
	outcome classify.StageOutcome
	failOn  string
	err     error
}

func (f fixedClassifier) Classify(_ context.Context, text string) (classify.StageOutcome, error) {
	if f.failOn != "" && text == f.failOn {
		return classify.StageOutcome{}, f.err
	}
	return f.outcome, nil
}

func lifePolicyOutcome() classify.StageOutcome {
	return classify.StageOutcome{
		Kind: classify.OutcomeTriage,
		Classification: classify.Classification{
			TargetBox:       constants.BoxLife,
			Confidence:      constants.ConfidenceHigh,
			Insurer:         "Helvetia",
			DocumentType:    "Police",
			DocumentDateISO: "2025-01-15",
			DateGranularity: constants.GranularityDay,
		},
	}
}

func TestProcessDocumentHappyPath(t *testing.T) {
	store := newMemStore()
	id := store.add("scan_0001.pdf", []byte("%PDF"), false)
	o := NewOrchestrator(store, stubExtractor{text: "Versicherungsschein"}, fixedClassifier{outcome: lifePolicyOutcome()}, nil, nil)

	res := o.ProcessDocument(context.Background(), id)
	if res.Err != nil {
		t.Fatalf("ProcessDocument() err = %v", res.Err)
	}
	if res.Stage != constants.StageSucceeded {
		t.Fatalf("Stage = %q", res.Stage)
	}
	if res.NewName != "Helvetia_Leben_Police_2025-01-15.pdf" {
		t.Fatalf("NewName = %q", res.NewName)
	}
	if !store.docs[id].processed {
		t.Fatal("document not marked processed")
	}
	if store.docs[id].filename != res.NewName {
		t.Fatalf("stored filename = %q", store.docs[id].filename)
	}
}

func TestProcessDocumentSkipsAlreadyProcessed(t *testing.T) {
	store := newMemStore()
	id := store.add("done.pdf", []byte("%PDF"), true)
	o := NewOrchestrator(store, stubExtractor{}, fixedClassifier{outcome: lifePolicyOutcome()}, nil, nil)

	res := o.ProcessDocument(context.Background(), id)
	if !res.Skipped {
		t.Fatal("expected skip for processed document")
	}
	if store.docs[id].filename != "done.pdf" {
		t.Fatalf("filename changed to %q", store.docs[id].filename)
	}
}

func TestProcessDocumentRetiresNonPDFUnchanged(t *testing.T) {
	store := newMemStore()
	id := store.add("photo.jpg", []byte("JFIF"), false)
	o := NewOrchestrator(store, stubExtractor{}, fixedClassifier{outcome: lifePolicyOutcome()}, nil, nil)

	res := o.ProcessDocument(context.Background(), id)
	if res.Err != nil {
		t.Fatalf("ProcessDocument() err = %v", res.Err)
	}
	if !res.Skipped {
		t.Fatal("expected non-PDF document to be skipped")
	}
	if store.docs[id].filename != "photo.jpg" {
		t.Fatalf("filename changed to %q", store.docs[id].filename)
	}
	if !store.docs[id].processed {
		t.Fatal("non-PDF document should be retired from the queue")
	}
}

func TestProcessDocumentClassifierErrorIsRecorded(t *testing.T) {
	store := newMemStore()
	id := store.add("scan.pdf", []byte("%PDF"), false)
	backendErr := &inference.BackendUnavailableError{Attempts: 4, Err: errors.New("503")}
	o := NewOrchestrator(store, stubExtractor{text: "text"}, fixedClassifier{failOn: "text", err: backendErr}, nil, nil)

	res := o.ProcessDocument(context.Background(), id)
	if !inference.IsBackendUnavailable(res.Err) {
		t.Fatalf("Err = %v, want backend unavailable", res.Err)
	}
	if store.docs[id].processed {
		t.Fatal("failed document must not be marked processed")
	}
	if store.docs[id].lastError == "" {
		t.Fatal("expected error recorded on document")
	}
}

func TestProcessDocumentFailsWhenNoTextExtractable(t *testing.T) {
	store := newMemStore()
	id := store.add("scan.pdf", []byte("%PDF"), false)
	o := NewOrchestrator(store, stubExtractor{method: ocr.MethodNone}, fixedClassifier{outcome: lifePolicyOutcome()}, nil, nil)

	res := o.ProcessDocument(context.Background(), id)
	if res.Err == nil {
		t.Fatal("expected error for unreadable document")
	}
	if res.Stage != constants.StageFailed {
		t.Fatalf("Stage = %q", res.Stage)
	}
	if store.docs[id].lastError == "" {
		t.Fatal("expected error recorded on document")
	}
	if store.docs[id].processed {
		t.Fatal("unreadable document must stay pending")
	}
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	store := newMemStore()
	ids := make([]uuid.UUID, 10)
	for i := range ids {
		ids[i] = store.add(fmt.Sprintf("scan_%02d.pdf", i), []byte("%PDF"), false)
	}
	// Document 5 carries the text the classifier fails on.
	store.docs[ids[5]].content = []byte("poison")

	ext := poisonExtractor{}
	cls := fixedClassifier{
		outcome: lifePolicyOutcome(),
		failOn:  "poison",
		err:     &inference.BackendUnavailableError{Attempts: 4, Err: errors.New("503")},
	}
	o := NewOrchestrator(store, ext, cls, nil, nil)

	results, err := o.ProcessBatch(context.Background(), 0)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("results = %d, want 10", len(results))
	}
	var ok, failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		} else {
			ok++
		}
	}
	if ok != 9 || failed != 1 {
		t.Fatalf("ok = %d, failed = %d; want 9/1", ok, failed)
	}
	if store.docs[ids[5]].lastError == "" {
		t.Fatal("expected poisoned document to carry an error record")
	}
	if store.docs[ids[5]].processed {
		t.Fatal("poisoned document must stay pending")
	}
}

// poisonExtractor passes the document bytes through as text so the
// classifier stub can key off them.
type poisonExtractor struct{}

func (poisonExtractor) Extract(_ context.Context, data []byte) ocr.Result {
	text := string(data)
	if text == "%PDF" {
		text = "Versicherungsschein der Helvetia"
	}
	return ocr.Result{Text: text, Method: ocr.MethodNative, Pages: 1}
}

func TestProcessBatchStopsBetweenDocumentsOnCancel(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 5; i++ {
		store.add(fmt.Sprintf("scan_%02d.pdf", i), []byte("%PDF"), false)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancelling := &cancellingClassifier{cancel: cancel, after: 2, outcome: lifePolicyOutcome()}
	o := NewOrchestrator(store, stubExtractor{text: "text"}, cancelling, nil, nil)

	results, err := o.ProcessBatch(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ProcessBatch() error = %v, want context.Canceled", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 before cancellation", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("pre-cancellation document failed: %v", r.Err)
		}
	}
}

type cancellingClassifier struct {
	cancel  context.CancelFunc
	after   int
	calls   int
	outcome classify.StageOutcome
}

func (c *cancellingClassifier) Classify(context.Context, string) (classify.StageOutcome, error) {
	c.calls++
	if c.calls == c.after {
		c.cancel()
	}
	return c.outcome, nil
}

func TestProcessBatchParallelWorkers(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 8; i++ {
		store.add(fmt.Sprintf("scan_%02d.pdf", i), []byte("%PDF"), false)
	}
	o := NewOrchestrator(store, stubExtractor{text: "text"}, fixedClassifier{outcome: lifePolicyOutcome()}, nil, nil)
	o.Workers = 4

	results, err := o.ProcessBatch(context.Background(), 0)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if len(results) != 8 {
		t.Fatalf("results = %d, want 8", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("document %s failed: %v", r.DocumentID, r.Err)
		}
	}
}

func TestProcessBatchRespectsLimit(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 6; i++ {
		store.add(fmt.Sprintf("scan_%02d.pdf", i), []byte("%PDF"), false)
	}
	o := NewOrchestrator(store, stubExtractor{text: "text"}, fixedClassifier{outcome: lifePolicyOutcome()}, nil, nil)

	results, err := o.ProcessBatch(context.Background(), 3)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
}
