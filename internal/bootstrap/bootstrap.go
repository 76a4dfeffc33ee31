// Package bootstrap assembles the adapters of a workspace into a Scanner.
// Every binary goes through Open so they share one configuration path.
package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"specbook/internal/adapters/anthropicapi"
	"specbook/internal/adapters/claudecli"
	"specbook/internal/adapters/filesystem"
	"specbook/internal/adapters/sqlite"
	"specbook/internal/application"
	"specbook/internal/config"
	"specbook/internal/logging"
	"specbook/internal/ports"
)

// Workspace holds the wired components of one workspace
type Workspace struct {
	Config   *config.Config
	Logger   *slog.Logger
	Tree     *filesystem.ObjectTree
	Source   *filesystem.SourceTree
	Store    *filesystem.MappingStore
	Analyzer ports.MappingAnalyzer
	History  ports.ScanLog // nil when the history database is unavailable
	Scanner  *application.Scanner

	closers []io.Closer
}

type options struct {
	provider  string
	model     string
	logStderr bool
	noHistory bool
}

// Option overrides configuration for one invocation
type Option func(*options)

// WithProvider selects the provider regardless of config
func WithProvider(name string) Option {
	return func(o *options) { o.provider = name }
}

// WithModel selects the model regardless of config
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithLogStderr logs to stderr instead of the workspace log file
func WithLogStderr(enabled bool) Option {
	return func(o *options) { o.logStderr = enabled }
}

// WithoutHistory skips the scan history database
func WithoutHistory() Option {
	return func(o *options) { o.noHistory = true }
}

// Open loads the configuration of workspace and wires its adapters
func Open(workspace string, opts ...Option) (*Workspace, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	cfg, err := config.Load(abs)
	if err != nil {
		return nil, err
	}
	if o.provider != "" {
		cfg.Provider.Name = o.provider
	}
	if o.model != "" {
		cfg.Provider.Model = o.model
	}
	if o.logStderr {
		cfg.Logging.Stderr = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, logCloser := logging.New(cfg.Logging, cfg.LogPath())
	w := &Workspace{
		Config:  cfg,
		Logger:  logger,
		closers: []io.Closer{logCloser},
	}

	w.Analyzer, err = NewAnalyzer(cfg)
	if err != nil {
		w.Close()
		return nil, err
	}

	w.Tree = filesystem.NewObjectTree(cfg.ObjectsPath())
	w.Source = filesystem.NewWorkspaceSourceTree(abs, cfg.Scan.Ignore,
		filesystem.WithMaxFiles(cfg.Scan.MaxFiles),
		filesystem.WithBinaryDetection(cfg.Scan.DetectBinary),
	)
	w.Store = filesystem.NewMappingStore(cfg.MappingPath())

	scannerOpts := []application.ScannerOption{
		application.WithLogger(logger),
		application.WithProviderTimeout(cfg.Provider.Timeout),
	}

	if !o.noHistory {
		history := sqlite.NewScanLog()
		if err := history.Open(abs); err != nil {
			// History is diagnostic only; scans work without it
			logger.Warn("scan history unavailable", "error", err)
		} else {
			w.History = history
			w.closers = append(w.closers, history)
			scannerOpts = append(scannerOpts, application.WithScanLog(history))
		}
	}

	w.Scanner = application.NewScanner(w.Tree, w.Source, w.Analyzer, w.Store, scannerOpts...)
	logger.Debug("workspace opened", "path", abs, "provider", cfg.Provider.Name)
	return w, nil
}

// NewAnalyzer builds the provider adapter named in cfg
func NewAnalyzer(cfg *config.Config) (ports.MappingAnalyzer, error) {
	p := cfg.Provider
	switch p.Name {
	case config.ProviderClaudeCLI:
		opts := []claudecli.Option{claudecli.WithWorkDir(cfg.Workspace)}
		if p.Binary != "" {
			opts = append(opts, claudecli.WithBinary(p.Binary))
		}
		if p.Model != "" {
			opts = append(opts, claudecli.WithModel(p.Model))
		}
		return claudecli.NewAnalyzer(opts...), nil
	case config.ProviderAnthropic:
		return anthropicapi.NewAnalyzer(cfg.APIKey(),
			anthropicapi.WithModel(p.Model),
			anthropicapi.WithMaxTokens(p.MaxTokens),
			anthropicapi.WithRetry(p.Retries, p.Timeout),
		), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", p.Name)
	}
}

// Close releases the history database and the log file
func (w *Workspace) Close() error {
	var errs []error
	for i := len(w.closers) - 1; i >= 0; i-- {
		if err := w.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	w.closers = nil
	return errors.Join(errs...)
}
