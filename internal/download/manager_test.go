package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fadapulse/internal/cache"
	"fadapulse/pkg/contracts/domain"
)

var testBody = strings.Repeat("FADA retail data ", 100)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) states(identity string) []domain.TaskState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TaskState
	for _, ev := range r.events {
		if ev.Identity == identity {
			out = append(out, ev.State)
		}
	}
	return out
}

func fastPolicy() *Policy {
	return NewPolicy(3, time.Millisecond, 10*time.Millisecond)
}

func newTestManager(t *testing.T, srv *httptest.Server, withCache bool) (*Manager, *cache.Store) {
	t.Helper()
	dir := t.TempDir()

	var store *cache.Store
	if withCache {
		var err error
		store, err = cache.NewStore(filepath.Join(dir, "cache.json"), nil)
		require.NoError(t, err)
	}

	var client *http.Client
	if srv != nil {
		client = srv.Client()
	}

	return NewManager(ManagerConfig{
		Client:      client,
		Store:       store,
		Policy:      fastPolicy(),
		Concurrency: 3,
		OutputDir:   filepath.Join(dir, "pdfs"),
	}, nil), store
}

func desc(name, url string) domain.DocumentDescriptor {
	return domain.DocumentDescriptor{Identity: name, URL: url, Filename: name}
}

func TestRunDownloadsAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testBody))
	}))
	defer srv.Close()

	mgr, store := newTestManager(t, srv, true)
	docs := []domain.DocumentDescriptor{
		desc("jan.pdf", srv.URL+"/jan.pdf"),
		desc("feb.pdf", srv.URL+"/feb.pdf"),
	}

	results, err := mgr.Run(context.Background(), docs, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Succeeded())
		assert.FileExists(t, res.Path)
	}
	assert.Equal(t, 2, store.Len())
}

func TestRunServesFromCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(testBody))
	}))
	defer srv.Close()

	mgr, _ := newTestManager(t, srv, true)
	docs := []domain.DocumentDescriptor{desc("jan.pdf", srv.URL+"/jan.pdf")}

	_, err := mgr.Run(context.Background(), docs, nil)
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())

	rec := &eventRecorder{}
	results, err := mgr.Run(context.Background(), docs, rec.record)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].FromCache)
	assert.Equal(t, int32(1), hits.Load(), "cached document must not be re-fetched")
	require.Len(t, rec.events, 1)
	assert.True(t, rec.events[0].FromCache)
	assert.Equal(t, domain.TaskSucceeded, rec.events[0].State)
}

func TestRunRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(testBody))
	}))
	defer srv.Close()

	mgr, _ := newTestManager(t, srv, false)
	rec := &eventRecorder{}

	results, err := mgr.Run(context.Background(), []domain.DocumentDescriptor{
		desc("jan.pdf", srv.URL+"/jan.pdf"),
	}, rec.record)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Succeeded())
	assert.Equal(t, 3, results[0].Attempts)

	states := rec.states("jan.pdf")
	assert.Equal(t, []domain.TaskState{
		domain.TaskDownloading, domain.TaskRetrying,
		domain.TaskDownloading, domain.TaskRetrying,
		domain.TaskDownloading, domain.TaskSucceeded,
	}, states)
}

func TestRunExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	mgr, _ := newTestManager(t, srv, false)

	results, err := mgr.Run(context.Background(), []domain.DocumentDescriptor{
		desc("jan.pdf", srv.URL+"/jan.pdf"),
	}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Succeeded())
	assert.True(t, IsTransient(results[0].Err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunPermanentFailureNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	mgr, _ := newTestManager(t, srv, false)
	rec := &eventRecorder{}

	results, err := mgr.Run(context.Background(), []domain.DocumentDescriptor{
		desc("gone.pdf", srv.URL+"/gone.pdf"),
	}, rec.record)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Succeeded())
	assert.False(t, IsTransient(results[0].Err))
	assert.Equal(t, int32(1), calls.Load(), "permanent failures must not retry")
	assert.Equal(t, []domain.TaskState{domain.TaskDownloading, domain.TaskFailed}, rec.states("gone.pdf"))
}

func TestRunRejectsTinyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>error</html>"))
	}))
	defer srv.Close()

	mgr, _ := newTestManager(t, srv, false)

	results, err := mgr.Run(context.Background(), []domain.DocumentDescriptor{
		desc("jan.pdf", srv.URL+"/jan.pdf"),
	}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Succeeded())
	assert.False(t, IsTransient(results[0].Err))
}

func TestRunCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	mgr, _ := newTestManager(t, srv, false)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := mgr.Run(ctx, []domain.DocumentDescriptor{
		desc("slow.pdf", srv.URL+"/slow.pdf"),
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicyDelayGrowth(t *testing.T) {
	p := NewPolicy(5, time.Second, 30*time.Second)

	first := p.Delay(1)
	assert.GreaterOrEqual(t, first, time.Second)
	assert.Less(t, first, 1250*time.Millisecond+time.Millisecond)

	third := p.Delay(3)
	assert.GreaterOrEqual(t, third, 4*time.Second)

	// Capped regardless of attempt number.
	huge := p.Delay(20)
	assert.LessOrEqual(t, huge, 30*time.Second+30*time.Second/4+time.Millisecond)
}
