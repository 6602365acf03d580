package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"fadapulse/internal/cache"
	"fadapulse/pkg/contracts/domain"
)

// minDocumentSize guards against the site serving an HTML error page with a
// 200 status. Real releases are never this small.
const minDocumentSize = 1000

// Event is emitted on every task state transition.
type Event struct {
	Identity  string
	State     domain.TaskState
	Attempt   int
	FromCache bool
	Delay     time.Duration
	Err       error
}

// ProgressFunc receives task transitions as they happen. Called from worker
// goroutines; implementations must be safe for concurrent use.
type ProgressFunc func(Event)

// Result is the terminal outcome for one document.
type Result struct {
	Descriptor domain.DocumentDescriptor
	Path       string
	FromCache  bool
	Attempts   int
	Err        error
}

// Succeeded reports whether the document is available on disk.
func (r Result) Succeeded() bool { return r.Err == nil }

// Manager downloads a batch of documents with bounded concurrency. Documents
// already present in the cache are returned without touching the network.
type Manager struct {
	client      *http.Client
	store       *cache.Store
	policy      *Policy
	concurrency int
	outputDir   string
	userAgent   string
	logger      *slog.Logger
}

// ManagerConfig configures a download Manager.
type ManagerConfig struct {
	Client      *http.Client
	Store       *cache.Store
	Policy      *Policy
	Concurrency int
	OutputDir   string
	UserAgent   string
}

// NewManager creates a Manager. Concurrency below 1 is clamped to 1.
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Policy == nil {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		client:      cfg.Client,
		store:       cfg.Store,
		policy:      cfg.Policy,
		concurrency: cfg.Concurrency,
		outputDir:   cfg.OutputDir,
		userAgent:   cfg.UserAgent,
		logger:      logger,
	}
}

type task struct {
	desc    domain.DocumentDescriptor
	attempt int
}

// Run downloads every descriptor and returns one Result per input, in
// completion order. Run blocks until every task reaches a terminal state or
// ctx is cancelled; on cancellation in-flight requests are aborted and the
// partial results are discarded.
func (m *Manager) Run(ctx context.Context, docs []domain.DocumentDescriptor, progress ProgressFunc) ([]Result, error) {
	if progress == nil {
		progress = func(Event) {}
	}

	results := make([]Result, 0, len(docs))

	// Cache pass first so workers only see real network work.
	var pending []domain.DocumentDescriptor
	for _, doc := range docs {
		if m.store != nil {
			if entry, ok := m.store.Lookup(doc.Identity); ok {
				m.logger.DebugContext(ctx, "cache hit", "identity", doc.Identity)
				progress(Event{Identity: doc.Identity, State: domain.TaskSucceeded, FromCache: true})
				results = append(results, Result{Descriptor: doc, Path: entry.Path, FromCache: true})
				continue
			}
		}
		pending = append(pending, doc)
	}

	if len(pending) == 0 {
		return results, nil
	}

	if err := os.MkdirAll(m.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered to the full batch so delayed re-enqueues never block.
	tasks := make(chan task, len(pending))
	terminal := make(chan Result, len(pending))

	for i := 0; i < m.concurrency; i++ {
		go m.worker(runCtx, tasks, terminal, progress)
	}

	for _, doc := range pending {
		tasks <- task{desc: doc, attempt: 1}
	}

	for remaining := len(pending); remaining > 0; remaining-- {
		select {
		case res := <-terminal:
			results = append(results, res)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return results, nil
}

func (m *Manager) worker(ctx context.Context, tasks chan task, terminal chan<- Result, progress ProgressFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-tasks:
			m.attempt(ctx, t, tasks, terminal, progress)
		}
	}
}

func (m *Manager) attempt(ctx context.Context, t task, tasks chan task, terminal chan<- Result, progress ProgressFunc) {
	progress(Event{Identity: t.desc.Identity, State: domain.TaskDownloading, Attempt: t.attempt})

	path, err := m.fetchOne(ctx, t.desc)
	if err == nil {
		if m.store != nil {
			if recErr := m.store.Record(t.desc.Identity, t.desc.URL, path); recErr != nil {
				m.logger.WarnContext(ctx, "cache record failed",
					"identity", t.desc.Identity,
					"error", recErr,
				)
			}
		}
		progress(Event{Identity: t.desc.Identity, State: domain.TaskSucceeded, Attempt: t.attempt})
		terminal <- Result{Descriptor: t.desc, Path: path, Attempts: t.attempt}
		return
	}

	if ctx.Err() != nil {
		return
	}

	if IsTransient(err) && t.attempt < m.policy.MaxAttempts {
		delay := m.policy.Delay(t.attempt)
		m.logger.WarnContext(ctx, "download attempt failed, retrying",
			"identity", t.desc.Identity,
			"attempt", t.attempt,
			"delay", delay.String(),
			"error", err,
		)
		progress(Event{Identity: t.desc.Identity, State: domain.TaskRetrying, Attempt: t.attempt, Delay: delay, Err: err})

		next := task{desc: t.desc, attempt: t.attempt + 1}
		time.AfterFunc(delay, func() {
			select {
			case tasks <- next:
			case <-ctx.Done():
			}
		})
		return
	}

	m.logger.ErrorContext(ctx, "download failed",
		"identity", t.desc.Identity,
		"attempts", t.attempt,
		"error", err,
	)
	progress(Event{Identity: t.desc.Identity, State: domain.TaskFailed, Attempt: t.attempt, Err: err})
	terminal <- Result{Descriptor: t.desc, Attempts: t.attempt, Err: err}
}

// fetchOne performs a single GET and writes the body atomically into the
// output directory.
func (m *Manager) fetchOne(ctx context.Context, desc domain.DocumentDescriptor) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.URL, nil)
	if err != nil {
		return "", &FetchError{URL: desc.URL, Transient: false, Err: err}
	}
	if m.userAgent != "" {
		req.Header.Set("User-Agent", m.userAgent)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &FetchError{URL: desc.URL, Transient: classifyNetErr(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", &FetchError{URL: desc.URL, StatusCode: resp.StatusCode, Transient: classifyStatus(resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &FetchError{URL: desc.URL, Transient: true, Err: err}
	}

	if len(body) < minDocumentSize {
		return "", &FetchError{
			URL:       desc.URL,
			Transient: false,
			Err:       fmt.Errorf("body too small (%d bytes), not a document", len(body)),
		}
	}

	path := filepath.Join(m.outputDir, desc.Filename)
	tmp := path + ".partial"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", &FetchError{URL: desc.URL, Transient: false, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", &FetchError{URL: desc.URL, Transient: false, Err: err}
	}

	return path, nil
}
