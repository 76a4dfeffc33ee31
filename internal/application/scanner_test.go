package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specbook/internal/domain"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func featureNodes() []domain.FeatureNode {
	return []domain.FeatureNode{
		{ID: "F1", Title: "Authentication"},
		{ID: "F1a", Title: "Login", ParentID: "F1"},
		{ID: "F2", Title: "Reports"},
		{ID: "F3", Title: "Search"},
		{ID: "F3a", Title: "Search filters", ParentID: "F3"},
	}
}

type harness struct {
	tree     *fakeTree
	analyzer *fakeAnalyzer
	store    *memStore
	log      *fakeScanLog
	scanner  *Scanner
}

func newHarness(t *testing.T, response string) *harness {
	t.Helper()
	h := &harness{
		tree:     &fakeTree{nodes: featureNodes()},
		analyzer: &fakeAnalyzer{response: response, usage: domain.TokenUsage{InputTokens: 1200, OutputTokens: 300}},
		store:    &memStore{},
		log:      &fakeScanLog{},
	}
	h.scanner = NewScanner(h.tree, &fakeSource{files: []string{"src/auth.ts", "src/login.ts"}}, h.analyzer, h.store,
		WithScanLog(h.log),
		WithClock(func() time.Time { return fixedNow }),
	)
	return h
}

const fullResponse = "```json\n" + `[
	{"objectId":"F1a","objectTitle":"Login","status":"implemented","summary":"form","relatedFiles":[{"filePath":"src/login.ts"},{"filePath":"src/login.test.ts"}]},
	{"objectId":"F1","objectTitle":"Authentication","status":"partial","relatedFiles":[{"filePath":"src/auth.ts"}]},
	{"objectTitle":"reports","status":"not_found","relatedFiles":[]},
	{"objectId":"F3","objectTitle":"Search","status":"implemented","relatedFiles":[{"filePath":"src/search.ts"}]},
	{"objectId":"F3a","objectTitle":"Search filters","status":"partial","relatedFiles":[{"filePath":"src/filters.ts"}]}
]` + "\n```"

func entryIDs(entries []domain.MappingEntry) string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ObjectID
	}
	return strings.Join(ids, ",")
}

func TestScanMapping_FirstScan(t *testing.T) {
	h := newHarness(t, fullResponse)

	var events []domain.ProgressEvent
	h.scanner.OnScanProgress(func(ev domain.ProgressEvent) { events = append(events, ev) })

	idx, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)

	// Entries follow walk order regardless of response order
	assert.Equal(t, "F1a,F1,F2,F3a,F3", entryIDs(idx.Entries))
	assert.Equal(t, fixedNow, idx.ScannedAt)
	require.NotNil(t, idx.TokenUsage)
	assert.Equal(t, int64(1200), idx.TokenUsage.InputTokens)

	// Title-only record resolved to its id and canonical title
	reports, ok := idx.Entry("F2")
	require.True(t, ok)
	assert.Equal(t, "Reports", reports.ObjectTitle)
	assert.Equal(t, domain.StatusNotFound, reports.Status)

	login, _ := idx.Entry("F1a")
	require.Len(t, login.ImplFiles, 1)
	require.Len(t, login.TestFiles, 1)
	assert.Equal(t, "src/login.test.ts", login.TestFiles[0].FilePath)

	require.Len(t, idx.Changelog, 5)
	for _, c := range idx.Changelog {
		assert.Equal(t, domain.ChangeAdded, c.ChangeType, c.ObjectID)
	}

	require.Len(t, events, 6)
	assert.Equal(t, domain.ProgressScanning, events[0].Status)
	for i, ev := range events[1:] {
		assert.Equal(t, domain.ProgressDone, ev.Status)
		assert.Equal(t, i+1, ev.Current)
		assert.Equal(t, 5, ev.Total)
	}
	assert.Equal(t, "F3", events[5].ObjectID)

	assert.Equal(t, domain.StateCompleted, h.scanner.State())

	req := h.analyzer.lastRequest()
	assert.Contains(t, req.Outline, "[id: F1a]")
	assert.Equal(t, []string{"F1a", "F1", "F2", "F3a", "F3"}, req.ObjectIDs)
	assert.Contains(t, req.UserPrompt, req.Outline)

	loaded, err := h.scanner.LoadMapping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, idx.Entries, loaded.Entries)

	require.Len(t, h.log.finished, 1)
	assert.Equal(t, domain.StateCompleted, h.log.finished[0].State)
	assert.Equal(t, 5, h.log.finished[0].Entries)
	assert.Equal(t, h.log.started[0].ID, h.log.finished[0].ID)
}

func TestScanMapping_ChangelogAgainstPreviousSnapshot(t *testing.T) {
	h := newHarness(t, `[
		{"objectId":"F1","objectTitle":"Authentication","status":"implemented","relatedFiles":[{"filePath":"a.ts"}]},
		{"objectId":"F2","objectTitle":"Reports","status":"partial","relatedFiles":[{"filePath":"r.ts"}]}
	]`)
	_, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)

	// F2 disappears from the tree and from the answer, F1 gains b.ts
	h.tree.nodes = []domain.FeatureNode{
		{ID: "F1", Title: "Authentication"},
		{ID: "F3", Title: "Search"},
	}
	h.analyzer.response = `[
		{"objectId":"F1","objectTitle":"Authentication","status":"implemented","relatedFiles":[{"filePath":"a.ts"},{"filePath":"b.ts"}]}
	]`

	idx, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "F1", entryIDs(idx.Entries))
	require.Len(t, idx.Changelog, 2)

	f1, ok := idx.Change("F1")
	require.True(t, ok)
	assert.Equal(t, domain.ChangeChanged, f1.ChangeType)
	require.Len(t, f1.AddedFiles, 1)
	assert.Equal(t, "b.ts", f1.AddedFiles[0].FilePath)
	assert.Empty(t, f1.RemovedFiles)

	f2, ok := idx.Change("F2")
	require.True(t, ok)
	assert.Equal(t, domain.ChangeRemoved, f2.ChangeType)
	assert.Empty(t, f2.CurrentStatus)
}

func TestScanMapping_UnresolvedAndDuplicateRecords(t *testing.T) {
	h := newHarness(t, `[
		{"objectTitle":"Billing","status":"implemented","relatedFiles":[{"filePath":"bill.ts"}]},
		{"objectId":"F2","objectTitle":"Reports","status":"partial","relatedFiles":[{"filePath":"r1.ts"}]},
		{"objectTitle":"Reports","status":"implemented","relatedFiles":[{"filePath":"r2.ts"}]},
		{"objectId":"F1","relatedFiles":[]}
	]`)

	idx, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "F2", entryIDs(idx.Entries))
	assert.Equal(t, "r1.ts", idx.Entries[0].ImplFiles[0].FilePath)

	run := h.log.finished[0]
	assert.Equal(t, 1, run.Unresolved)
	assert.Equal(t, 1, run.Rejected)
	assert.Equal(t, 1, run.Entries)
}

func TestScanMapping_ProviderErrorLeavesIndexUntouched(t *testing.T) {
	h := newHarness(t, fullResponse)
	_, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)
	before := h.store.raw()

	h.analyzer.err = errors.New("rate limited")
	_, err = h.scanner.ScanMapping(context.Background())
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrProvider))
	var scanErr *ScanError
	require.True(t, errors.As(err, &scanErr))
	assert.NotEmpty(t, scanErr.Diagnostics.SystemPrompt)
	assert.Contains(t, scanErr.Diagnostics.UserPrompt, "[id: F1]")
	assert.Empty(t, scanErr.Diagnostics.RawResponse)

	assert.Equal(t, before, h.store.raw())
	assert.Equal(t, domain.StateError, h.scanner.State())

	last := h.log.finished[len(h.log.finished)-1]
	assert.Equal(t, domain.StateError, last.State)
	assert.Contains(t, last.Error, "rate limited")
}

func TestScanMapping_MalformedResponseLeavesIndexUntouched(t *testing.T) {
	h := newHarness(t, fullResponse)
	_, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)
	before := h.store.raw()

	h.analyzer.response = "I could not find anything useful."
	_, err = h.scanner.ScanMapping(context.Background())
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrMalformedResponse))
	diag, ok := DiagnosticsOf(err)
	require.True(t, ok)
	assert.Equal(t, "I could not find anything useful.", diag.RawResponse)
	assert.Equal(t, before, h.store.raw())
}

func TestScanMapping_NonRecordJSONLeavesIndexUntouched(t *testing.T) {
	for _, raw := range []string{"null", "[1, 2, 3]", `["F1"]`} {
		t.Run(raw, func(t *testing.T) {
			h := newHarness(t, fullResponse)
			_, err := h.scanner.ScanMapping(context.Background())
			require.NoError(t, err)
			before := h.store.raw()

			h.analyzer.response = raw
			_, err = h.scanner.ScanMapping(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse))
			assert.Equal(t, before, h.store.raw())
		})
	}
}

func TestScanMapping_NoSourceListing(t *testing.T) {
	h := newHarness(t, fullResponse)
	h.scanner.source = &fakeSource{empty: true}

	idx, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)
	assert.Len(t, idx.Entries, 5)
	assert.Empty(t, h.analyzer.lastRequest().CandidateFiles)
}

func TestScanMapping_PersistenceError(t *testing.T) {
	h := newHarness(t, fullResponse)
	h.store.writeErr = errors.New("disk full")

	_, err := h.scanner.ScanMapping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.Empty(t, h.store.raw())
}

func TestScanMapping_EmptyTree(t *testing.T) {
	h := newHarness(t, fullResponse)
	h.tree.nodes = nil

	idx, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)
	assert.Empty(t, idx.Entries)
	assert.Empty(t, h.analyzer.requests)
}

func TestScanMapping_RejectsConcurrentScan(t *testing.T) {
	h := newHarness(t, fullResponse)
	h.analyzer.started = make(chan struct{})
	h.analyzer.release = make(chan struct{})

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = h.scanner.ScanMapping(context.Background())
	}()

	<-h.analyzer.started
	assert.Equal(t, domain.StateRunning, h.scanner.State())

	_, err := h.scanner.ScanMapping(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)
	_, err = h.scanner.ScanSingleObject(context.Background(), "F1")
	assert.ErrorIs(t, err, ErrScanInProgress)

	close(h.analyzer.release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, domain.StateCompleted, h.scanner.State())
}

func TestScanMapping_CancelCommitsNothing(t *testing.T) {
	h := newHarness(t, fullResponse)
	h.analyzer.started = make(chan struct{})
	h.analyzer.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.scanner.ScanMapping(ctx)
		done <- err
	}()

	<-h.analyzer.started
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not stop after cancellation")
	}
	assert.Empty(t, h.store.raw())
	assert.Equal(t, domain.StateError, h.scanner.State())
	require.Len(t, h.log.finished, 1)
	assert.Equal(t, domain.StateError, h.log.finished[0].State)
}

func TestScanMapping_ProviderTimeout(t *testing.T) {
	h := newHarness(t, fullResponse)
	h.analyzer.release = make(chan struct{})
	defer close(h.analyzer.release)
	h.scanner = NewScanner(h.tree, &fakeSource{}, h.analyzer, h.store,
		WithProviderTimeout(20*time.Millisecond),
	)

	_, err := h.scanner.ScanMapping(context.Background())
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, h.store.raw())
}

func entriesExcept(t *testing.T, idx *domain.FeatureMappingIndex, skip ...string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for _, e := range idx.Entries {
		if containsID(skip, e.ObjectID) {
			continue
		}
		data, err := json.Marshal(e)
		require.NoError(t, err)
		out[e.ObjectID] = string(data)
	}
	return out
}

func containsID(ids []string, id string) bool {
	for _, s := range ids {
		if s == id {
			return true
		}
	}
	return false
}

func TestScanSingleObject_LeavesOtherEntriesUntouched(t *testing.T) {
	h := newHarness(t, fullResponse)
	before, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)

	h.analyzer.response = `[{"objectId":"F3","objectTitle":"Search","status":"partial","relatedFiles":[{"filePath":"src/search.ts"},{"filePath":"src/index.ts"}]}]`
	entry, err := h.scanner.ScanSingleObject(context.Background(), "F3")
	require.NoError(t, err)
	assert.Equal(t, "F3", entry.ObjectID)
	assert.Equal(t, domain.StatusPartial, entry.Status)

	after, err := h.scanner.LoadMapping(context.Background())
	require.NoError(t, err)

	assert.Equal(t, entriesExcept(t, before, "F3"), entriesExcept(t, after, "F3"))
	assert.Equal(t, entryIDs(before.Entries), entryIDs(after.Entries))

	f3, ok := after.Change("F3")
	require.True(t, ok)
	assert.Equal(t, domain.ChangeChanged, f3.ChangeType)
	require.Len(t, f3.AddedFiles, 1)
	assert.Equal(t, "src/index.ts", f3.AddedFiles[0].FilePath)

	// Rows of other objects keep their previous classification
	f1, _ := after.Change("F1")
	assert.Equal(t, domain.ChangeAdded, f1.ChangeType)
	assert.Len(t, after.Changelog, len(before.Changelog))

	// The prompt only carried the rescanned subtree
	req := h.analyzer.lastRequest()
	assert.Equal(t, []string{"F3a", "F3"}, req.ObjectIDs)
	assert.NotContains(t, req.Outline, "[id: F1]")
}

func TestScanSingleObject_DescendantEntriesReplaced(t *testing.T) {
	h := newHarness(t, fullResponse)
	_, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)

	h.analyzer.response = `[
		{"objectId":"F3","objectTitle":"Search","status":"implemented","relatedFiles":[{"filePath":"src/search.ts"}]},
		{"objectTitle":"Search filters","status":"implemented","relatedFiles":[{"filePath":"src/filters.ts"}]},
		{"objectId":"F1","objectTitle":"Authentication","status":"not_found","relatedFiles":[]}
	]`
	_, err = h.scanner.ScanSingleObject(context.Background(), "F3")
	require.NoError(t, err)

	after, err := h.scanner.LoadMapping(context.Background())
	require.NoError(t, err)

	// Exact title match resolves within the subtree only
	f3a, _ := after.Entry("F3a")
	assert.Equal(t, domain.StatusImplemented, f3a.Status)

	// Records about objects outside the subtree are dropped
	f1, _ := after.Entry("F1")
	assert.Equal(t, domain.StatusPartial, f1.Status)
}

func TestScanSingleObject_TargetMissingFromResponse(t *testing.T) {
	h := newHarness(t, fullResponse)
	_, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)

	h.analyzer.response = `[]`
	entry, err := h.scanner.ScanSingleObject(context.Background(), "F2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotFound, entry.Status)
	assert.Empty(t, entry.ImplFiles)
}

func TestScanSingleObject_BeforeFirstFullScan(t *testing.T) {
	h := newHarness(t, `[{"objectId":"F2","objectTitle":"Reports","status":"implemented","relatedFiles":[{"filePath":"r.ts"}]}]`)

	_, err := h.scanner.ScanSingleObject(context.Background(), "F2")
	require.NoError(t, err)

	idx, err := h.scanner.LoadMapping(context.Background())
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, "F2", entryIDs(idx.Entries))
	require.Len(t, idx.Changelog, 1)
	assert.Equal(t, domain.ChangeAdded, idx.Changelog[0].ChangeType)
}

func TestScanSingleObject_FailureLeavesIndexUntouched(t *testing.T) {
	h := newHarness(t, fullResponse)
	_, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)
	before := h.store.raw()

	h.analyzer.response = `{"oops": true}`
	_, err = h.scanner.ScanSingleObject(context.Background(), "F3")
	require.Error(t, err)

	var scanErr *ScanError
	require.True(t, errors.As(err, &scanErr))
	assert.Equal(t, "F3", scanErr.ObjectID)
	assert.Equal(t, `{"oops": true}`, scanErr.Diagnostics.RawResponse)
	assert.Equal(t, before, h.store.raw())
}

func TestScanSingleObject_UnknownObject(t *testing.T) {
	h := newHarness(t, fullResponse)

	_, err := h.scanner.ScanSingleObject(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Empty(t, h.analyzer.requests)

	_, err = h.scanner.ScanSingleObject(context.Background(), " ")
	var valErr *ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestOnScanProgress_Unsubscribe(t *testing.T) {
	h := newHarness(t, fullResponse)

	var first, second int
	unsubscribeFirst := h.scanner.OnScanProgress(func(domain.ProgressEvent) { first++ })
	unsubscribeSecond := h.scanner.OnScanProgress(func(domain.ProgressEvent) { second++ })

	// Replaced observer: its unsubscribe must not remove the new one
	unsubscribeFirst()
	_, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, first)
	assert.Equal(t, 6, second)

	unsubscribeSecond()
	_, err = h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, second)
}

func TestSubscribe_DropsWhenFull(t *testing.T) {
	h := newHarness(t, fullResponse)

	events, cancel := h.scanner.Subscribe(2)
	_, err := h.scanner.ScanMapping(context.Background())
	require.NoError(t, err)
	cancel()
	cancel()

	var got []domain.ProgressEvent
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, domain.ProgressScanning, got[0].Status)
	assert.Equal(t, 1, got[1].Current)
}
