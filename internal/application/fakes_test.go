package application

import (
	"context"
	"encoding/json"
	"sync"

	"specbook/internal/domain"
	"specbook/internal/ports"
)

type fakeTree struct {
	nodes []domain.FeatureNode
	err   error
}

func (f *fakeTree) LoadForest(ctx context.Context) (*domain.Forest, error) {
	if f.err != nil {
		return nil, f.err
	}
	return domain.NewForest(f.nodes)
}

type fakeSource struct {
	files []string
	empty bool // answer with no listing at all
}

func (f *fakeSource) ListFiles(ctx context.Context) (*ports.SourceListing, error) {
	if f.empty {
		return nil, nil
	}
	return &ports.SourceListing{Files: f.files}, nil
}

// fakeAnalyzer answers with response, or blocks until release is closed
type fakeAnalyzer struct {
	mu       sync.Mutex
	response string
	usage    domain.TokenUsage
	err      error
	started  chan struct{}
	release  chan struct{}
	requests []ports.AnalyzeRequest
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req ports.AnalyzeRequest) (*ports.AnalyzeResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ports.AnalyzeResult{RawResponse: f.response, TokenUsage: f.usage}, nil
}

func (f *fakeAnalyzer) IsAvailable() bool { return true }

func (f *fakeAnalyzer) lastRequest() ports.AnalyzeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// memStore keeps the index as JSON so that callers never share memory with it
type memStore struct {
	mu       sync.Mutex
	data     []byte
	writeErr error
	writes   int
}

func (m *memStore) Load(ctx context.Context) (*domain.FeatureMappingIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decode()
}

func (m *memStore) decode() (*domain.FeatureMappingIndex, error) {
	if m.data == nil {
		return nil, nil
	}
	var idx domain.FeatureMappingIndex
	if err := json.Unmarshal(m.data, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

func (m *memStore) Replace(ctx context.Context, idx *domain.FeatureMappingIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(ctx, idx)
}

func (m *memStore) write(ctx context.Context, idx *domain.FeatureMappingIndex) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.writeErr != nil {
		return m.writeErr
	}
	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	m.data = data
	m.writes++
	return nil
}

func (m *memStore) Update(ctx context.Context, fn func(*domain.FeatureMappingIndex) (*domain.FeatureMappingIndex, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, err := m.decode()
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	return m.write(ctx, next)
}

func (m *memStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

func (m *memStore) raw() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.data)
}

type fakeScanLog struct {
	mu       sync.Mutex
	started  []domain.ScanRun
	finished []domain.ScanRun
}

func (f *fakeScanLog) Open(workspace string) error { return nil }
func (f *fakeScanLog) Close() error                { return nil }

func (f *fakeScanLog) StartRun(ctx context.Context, run *domain.ScanRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, *run)
	return nil
}

func (f *fakeScanLog) FinishRun(ctx context.Context, run *domain.ScanRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, *run)
	return nil
}

func (f *fakeScanLog) ListRuns(ctx context.Context, limit int) ([]domain.ScanRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ScanRun(nil), f.finished...), nil
}

func (f *fakeScanLog) GetRun(ctx context.Context, id string) (*domain.ScanRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.finished {
		if r.ID == id {
			run := r
			return &run, nil
		}
	}
	return nil, nil
}

func (f *fakeScanLog) Prune(ctx context.Context, keep int) (int64, error) { return 0, nil }

var (
	_ ports.ObjectTree      = (*fakeTree)(nil)
	_ ports.SourceTree      = (*fakeSource)(nil)
	_ ports.MappingAnalyzer = (*fakeAnalyzer)(nil)
	_ ports.MappingStore    = (*memStore)(nil)
	_ ports.ScanLog         = (*fakeScanLog)(nil)
)
