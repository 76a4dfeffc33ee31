package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"specbook/internal/domain"
	"specbook/internal/ports"
)

// Scanner orchestrates full scans and single-object rescans of a workspace.
// Only one scan runs at a time; a second request fails with ErrScanInProgress.
type Scanner struct {
	tree     ports.ObjectTree
	source   ports.SourceTree
	analyzer ports.MappingAnalyzer
	store    ports.MappingStore
	history  ports.ScanLog
	logger   *slog.Logger
	now      func() time.Time
	timeout  time.Duration

	mu      sync.Mutex
	running bool
	state   domain.ScanState

	observerMu  sync.Mutex
	observer    func(domain.ProgressEvent)
	observerSeq uint64
}

// ScannerOption configures the Scanner
type ScannerOption func(*Scanner)

// WithScanLog records every run in the given scan history
func WithScanLog(log ports.ScanLog) ScannerOption {
	return func(s *Scanner) {
		s.history = log
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for scannedAt
func WithClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) {
		s.now = now
	}
}

// WithProviderTimeout bounds each provider call. A call that runs out of
// time fails the scan with a provider error.
func WithProviderTimeout(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		s.timeout = d
	}
}

// NewScanner creates a Scanner
func NewScanner(
	tree ports.ObjectTree,
	source ports.SourceTree,
	analyzer ports.MappingAnalyzer,
	store ports.MappingStore,
	opts ...ScannerOption,
) *Scanner {
	s := &Scanner{
		tree:     tree,
		source:   source,
		analyzer: analyzer,
		store:    store,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		state:    domain.StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the state of the most recent scan
func (s *Scanner) State() domain.ScanState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnScanProgress registers the progress observer, replacing any previous one.
// Events are delivered synchronously on the scanning goroutine. The returned
// function unregisters fn; it is a no-op once another observer took over.
func (s *Scanner) OnScanProgress(fn func(domain.ProgressEvent)) (unsubscribe func()) {
	s.observerMu.Lock()
	s.observerSeq++
	seq := s.observerSeq
	s.observer = fn
	s.observerMu.Unlock()

	return func() {
		s.observerMu.Lock()
		defer s.observerMu.Unlock()
		if s.observerSeq == seq {
			s.observer = nil
		}
	}
}

// Subscribe registers a channel observer holding up to size events.
// Events that find the channel full are dropped. cancel unregisters the
// observer and closes the channel.
func (s *Scanner) Subscribe(size int) (events <-chan domain.ProgressEvent, cancel func()) {
	ch := make(chan domain.ProgressEvent, size)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)
	unsubscribe := s.OnScanProgress(func(ev domain.ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
			s.logger.Debug("dropping progress event", "objectId", ev.ObjectID, "status", ev.Status)
		}
	})

	return ch, func() {
		once.Do(func() {
			unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
}

func (s *Scanner) emit(ev domain.ProgressEvent) {
	s.observerMu.Lock()
	fn := s.observer
	s.observerMu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// LoadMapping returns the persisted index, or nil before the first scan
func (s *Scanner) LoadMapping(ctx context.Context) (*domain.FeatureMappingIndex, error) {
	idx, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping: %w", err)
	}
	return idx, nil
}

// ScanMapping scans the whole feature tree with one provider call, replaces
// every entry and recomputes the changelog against the persisted snapshot.
// On failure the persisted index is left as it was and a *ScanError carrying
// the diagnostics is returned.
func (s *Scanner) ScanMapping(ctx context.Context) (*domain.FeatureMappingIndex, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}

	run := s.startRun(ctx, domain.ScanFull, "")
	idx, pass, err := s.scanAll(ctx)
	s.finishRun(ctx, run, pass, err)

	if err != nil {
		return nil, &ScanError{Diagnostics: pass.diagnostics, Err: err}
	}
	return idx, nil
}

// ScanSingleObject rescans objectID and its descendants. Only the entries the
// provider returned (plus the target) and their changelog rows are replaced;
// every other entry is left as persisted.
func (s *Scanner) ScanSingleObject(ctx context.Context, objectID string) (*domain.MappingEntry, error) {
	if err := ValidateRequired("objectID", objectID); err != nil {
		return nil, err
	}
	if err := s.begin(); err != nil {
		return nil, err
	}

	run := s.startRun(ctx, domain.ScanObject, objectID)
	entry, pass, err := s.scanOne(ctx, objectID)
	s.finishRun(ctx, run, pass, err)

	if err != nil {
		return nil, &ScanError{ObjectID: objectID, Diagnostics: pass.diagnostics, Err: err}
	}
	return entry, nil
}

func (s *Scanner) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrScanInProgress
	}
	s.running = true
	s.state = domain.StateRunning
	return nil
}

func (s *Scanner) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if err != nil {
		s.state = domain.StateError
	} else {
		s.state = domain.StateCompleted
	}
}

// pass carries what one scan learned, for logging and scan history
type pass struct {
	diagnostics domain.Diagnostics
	usage       domain.TokenUsage
	entries     int
	rejected    int
	unresolved  int
}

func (s *Scanner) scanAll(ctx context.Context) (*domain.FeatureMappingIndex, pass, error) {
	var p pass

	forest, err := s.tree.LoadForest(ctx)
	if err != nil {
		return nil, p, fmt.Errorf("failed to load feature tree: %w", err)
	}
	nodes := forest.Walk()

	entries, err := s.analyze(ctx, nodes, nil, &p)
	if err != nil {
		return nil, p, err
	}

	if err := ctx.Err(); err != nil {
		return nil, p, err
	}

	var committed *domain.FeatureMappingIndex
	err = s.store.Update(ctx, func(current *domain.FeatureMappingIndex) (*domain.FeatureMappingIndex, error) {
		var previous []domain.MappingEntry
		if current != nil {
			previous = current.Entries
		}
		usage := p.usage
		committed = &domain.FeatureMappingIndex{
			Entries:    entries,
			Changelog:  domain.Diff(previous, entries),
			ScannedAt:  s.now().UTC(),
			TokenUsage: &usage,
		}
		return committed, nil
	})
	if err != nil {
		return nil, p, persistenceError("replace", err)
	}

	s.logger.Info("full scan completed",
		"entries", len(entries),
		"changes", countChanges(committed.Changelog),
		"inputTokens", p.usage.InputTokens,
		"outputTokens", p.usage.OutputTokens,
	)
	return committed, p, nil
}

func (s *Scanner) scanOne(ctx context.Context, objectID string) (*domain.MappingEntry, pass, error) {
	var p pass

	forest, err := s.tree.LoadForest(ctx)
	if err != nil {
		return nil, p, fmt.Errorf("failed to load feature tree: %w", err)
	}
	target, ok := forest.Node(objectID)
	if !ok {
		return nil, p, fmt.Errorf("%w: %s", ErrObjectNotFound, objectID)
	}
	nodes, err := forest.WalkFrom(objectID)
	if err != nil {
		return nil, p, err
	}

	entries, err := s.analyze(ctx, nodes, &target, &p)
	if err != nil {
		return nil, p, err
	}

	targetEntry, found := findEntry(entries, objectID)
	if !found {
		targetEntry = domain.MappingEntry{
			ObjectID:    target.ID,
			ObjectTitle: target.DisplayTitle(),
			Status:      domain.StatusNotFound,
			ImplFiles:   []domain.RelatedFile{},
			TestFiles:   []domain.RelatedFile{},
		}
		entries = append(entries, targetEntry)
		s.logger.Warn("provider returned nothing for rescanned object", "objectId", objectID)
	}

	if err := ctx.Err(); err != nil {
		return nil, p, err
	}

	err = s.store.Update(ctx, func(current *domain.FeatureMappingIndex) (*domain.FeatureMappingIndex, error) {
		merged := mergeEntries(current, entries)
		merged.ScannedAt = s.now().UTC()
		usage := p.usage
		merged.TokenUsage = &usage
		return merged, nil
	})
	if err != nil {
		return nil, p, persistenceError("update", err)
	}

	s.logger.Info("object rescan completed",
		"objectId", objectID,
		"status", targetEntry.Status,
		"entries", len(entries),
		"inputTokens", p.usage.InputTokens,
		"outputTokens", p.usage.OutputTokens,
	)
	return &targetEntry, p, nil
}

// analyze runs context building, the provider call, normalization and
// identity resolution for nodes. Entries come back in walk order.
func (s *Scanner) analyze(ctx context.Context, nodes []domain.FeatureNode, target *domain.FeatureNode, p *pass) ([]domain.MappingEntry, error) {
	if len(nodes) == 0 {
		s.logger.Info("feature tree is empty, nothing to analyze")
		return []domain.MappingEntry{}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	listing, err := s.source.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list source files: %w", err)
	}
	if listing == nil {
		listing = &ports.SourceListing{}
	}

	outline := domain.BuildContext(nodes)
	system, user := BuildPrompts(PromptInput{Outline: outline, Target: target, Listing: listing})
	p.diagnostics.SystemPrompt = system
	p.diagnostics.UserPrompt = user

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}

	first := domain.ProgressEvent{Status: domain.ProgressScanning, Total: len(nodes)}
	if target != nil {
		first.ObjectID = target.ID
		first.ObjectTitle = target.DisplayTitle()
	}
	s.emit(first)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Debug("calling provider", "objects", len(nodes), "candidateFiles", len(listing.Files))
	res, err := s.analyzer.Analyze(callCtx, ports.AnalyzeRequest{
		Outline:        outline,
		ObjectIDs:      ids,
		CandidateFiles: listing.Files,
		DirectoryTree:  listing.DirectoryTree,
		SystemPrompt:   system,
		UserPrompt:     user,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.emitFailure(target, len(nodes))
		return nil, &ProviderError{Err: err}
	}
	p.diagnostics.RawResponse = res.RawResponse
	p.usage = res.TokenUsage

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized, err := Normalize(res.RawResponse)
	if err != nil {
		s.emitFailure(target, len(nodes))
		return nil, err
	}
	for _, r := range normalized.Rejected {
		s.logger.Warn("rejected mapping record", "index", r.Index, "reason", r.Reason)
	}
	p.rejected = len(normalized.Rejected)

	entries := s.attribute(nodes, normalized.Entries, p)
	p.entries = len(entries)
	return entries, nil
}

// attribute ties records to feature ids, drops what cannot be resolved,
// and emits one progress event per node in walk order
func (s *Scanner) attribute(nodes []domain.FeatureNode, records []domain.MappingEntry, p *pass) []domain.MappingEntry {
	byID := make(map[string]domain.MappingEntry, len(records))

	for _, rec := range records {
		r := domain.Resolve(nodes, rec.ObjectID, rec.ObjectTitle)
		if !r.Resolved() {
			p.unresolved++
			s.logger.Warn("dropping mapping record",
				"error", &UnresolvedReferenceError{ObjectID: rec.ObjectID, ObjectTitle: rec.ObjectTitle})
			continue
		}
		if r.Ambiguous() {
			s.logger.Warn("ambiguous feature match",
				"reportedId", rec.ObjectID,
				"reportedTitle", rec.ObjectTitle,
				"match", r.Kind,
				"chosen", r.Node.ID,
				"candidates", r.Candidates,
			)
		}
		if _, dup := byID[r.Node.ID]; dup {
			s.logger.Warn("duplicate mapping record, keeping the first", "objectId", r.Node.ID)
			continue
		}

		rec.ObjectID = r.Node.ID
		rec.ObjectTitle = r.Node.DisplayTitle()
		byID[r.Node.ID] = rec
	}

	entries := make([]domain.MappingEntry, 0, len(byID))
	for i, n := range nodes {
		if e, ok := byID[n.ID]; ok {
			entries = append(entries, e)
		}
		s.emit(domain.ProgressEvent{
			ObjectID:    n.ID,
			ObjectTitle: n.DisplayTitle(),
			Status:      domain.ProgressDone,
			Current:     i + 1,
			Total:       len(nodes),
		})
	}
	return entries
}

func (s *Scanner) emitFailure(target *domain.FeatureNode, total int) {
	ev := domain.ProgressEvent{Status: domain.ProgressError, Total: total}
	if target != nil {
		ev.ObjectID = target.ID
		ev.ObjectTitle = target.DisplayTitle()
	}
	s.emit(ev)
}

// mergeEntries replaces the entries and changelog rows of the given objects
// in current, leaving everything else as it is
func mergeEntries(current *domain.FeatureMappingIndex, entries []domain.MappingEntry) *domain.FeatureMappingIndex {
	merged := &domain.FeatureMappingIndex{
		Entries:   []domain.MappingEntry{},
		Changelog: []domain.MappingChangeEntry{},
	}
	if current != nil {
		merged.Entries = append(merged.Entries, current.Entries...)
		merged.Changelog = append(merged.Changelog, current.Changelog...)
	}

	replaced := make(map[string]bool, len(entries))
	for _, e := range entries {
		replaced[e.ObjectID] = true
	}
	var previous []domain.MappingEntry
	for _, e := range merged.Entries {
		if replaced[e.ObjectID] {
			previous = append(previous, e)
		}
	}

	for _, e := range entries {
		if i := entryIndex(merged.Entries, e.ObjectID); i >= 0 {
			merged.Entries[i] = e
		} else {
			merged.Entries = append(merged.Entries, e)
		}
	}

	for _, row := range domain.Diff(previous, entries) {
		if i := changeIndex(merged.Changelog, row.ObjectID); i >= 0 {
			merged.Changelog[i] = row
		} else {
			merged.Changelog = append(merged.Changelog, row)
		}
	}
	return merged
}

func findEntry(entries []domain.MappingEntry, id string) (domain.MappingEntry, bool) {
	if i := entryIndex(entries, id); i >= 0 {
		return entries[i], true
	}
	return domain.MappingEntry{}, false
}

func entryIndex(entries []domain.MappingEntry, id string) int {
	for i, e := range entries {
		if e.ObjectID == id {
			return i
		}
	}
	return -1
}

func changeIndex(rows []domain.MappingChangeEntry, id string) int {
	for i, r := range rows {
		if r.ObjectID == id {
			return i
		}
	}
	return -1
}

func countChanges(rows []domain.MappingChangeEntry) int {
	n := 0
	for _, r := range rows {
		if r.ChangeType != domain.ChangeUnchanged {
			n++
		}
	}
	return n
}

func persistenceError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// startRun records the beginning of a scan in the scan history, if any
func (s *Scanner) startRun(ctx context.Context, kind domain.ScanKind, objectID string) *domain.ScanRun {
	run := &domain.ScanRun{
		ID:        uuid.New().String(),
		Kind:      kind,
		ObjectID:  objectID,
		State:     domain.StateRunning,
		StartedAt: s.now().UTC(),
	}
	s.logger.Info("scan started", "run", run.ID, "kind", kind, "objectId", objectID)

	if s.history != nil {
		if err := s.history.StartRun(ctx, run); err != nil {
			s.logger.Warn("failed to record scan start", "run", run.ID, "error", err)
		}
	}
	return run
}

// finishRun closes the run in the scan history and releases the scanner
func (s *Scanner) finishRun(ctx context.Context, run *domain.ScanRun, p pass, err error) {
	defer s.end(err)

	run.FinishedAt = s.now().UTC()
	run.Entries = p.entries
	run.Rejected = p.rejected
	run.Unresolved = p.unresolved
	run.TokenUsage = p.usage
	run.Diagnostics = p.diagnostics
	run.State = domain.StateCompleted
	if err != nil {
		run.State = domain.StateError
		run.Error = err.Error()
		s.logger.Error("scan failed", "run", run.ID, "objectId", run.ObjectID, "error", err)
		s.logger.Debug("scan diagnostics",
			"run", run.ID,
			"systemPrompt", p.diagnostics.SystemPrompt,
			"userPrompt", p.diagnostics.UserPrompt,
			"rawResponse", p.diagnostics.RawResponse,
		)
	}

	if s.history != nil {
		// The run is recorded even when ctx was cancelled
		if err := s.history.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			s.logger.Warn("failed to record scan result", "run", run.ID, "error", err)
		}
	}
}
