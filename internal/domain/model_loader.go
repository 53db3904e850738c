package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/speech2text/internal/models"
	"github.com/Vovarama1992/speech2text/internal/ports"
	"golang.org/x/sync/errgroup"
)

const skippedSegment = "checkpoint"

type LoaderConfig struct {
	Prefix             string
	CacheDir           string
	Concurrency        int
	MaxFailedDownloads int // negative: unlimited
}

// ModelLoader owns the in-process model lifecycle:
// not_loaded -> loading -> ready, or loading -> not_loaded with Error set.
type ModelLoader struct {
	store   ports.BlobStore
	factory ports.PipelineFactory
	cfg     LoaderConfig
	log     *logger.ZapLogger

	mu       sync.RWMutex
	state    models.ModelState
	pipeline ports.Pipeline
	done     chan struct{} // closed when the running attempt ends

	base   context.Context // parent of attempts started by Reload
	events chan models.ModelState
	now    func() time.Time
}

func NewModelLoader(
	store ports.BlobStore,
	factory ports.PipelineFactory,
	cfg LoaderConfig,
	log *logger.ZapLogger,
) *ModelLoader {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	done := make(chan struct{})
	close(done)

	l := &ModelLoader{
		store:   store,
		factory: factory,
		cfg:     cfg,
		log:     log,
		done:    done,
		base:    context.Background(),
		events:  make(chan models.ModelState, 16),
		now:     time.Now,
	}
	l.state = models.ModelState{Status: models.ModelNotLoaded, Since: l.now()}
	return l
}

func (l *ModelLoader) Events() <-chan models.ModelState { return l.events }

func (l *ModelLoader) State() models.ModelState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Pipeline returns the loaded pipeline, if any.
func (l *ModelLoader) Pipeline() (ports.Pipeline, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pipeline, l.state.Status == models.ModelReady
}

// Start runs one load attempt in the background. ctx also bounds
// attempts started later through Reload.
func (l *ModelLoader) Start(ctx context.Context) {
	l.mu.Lock()
	l.base = ctx
	l.mu.Unlock()

	// entering loading before returning lets Wait observe this attempt
	if !l.begin() {
		return
	}
	go func() {
		_ = l.run(ctx)
	}()
}

// Reload starts a new attempt when the previous one failed.
// It reports false when a load is running or the model is ready.
func (l *ModelLoader) Reload() bool {
	if !l.begin() {
		return false
	}
	l.mu.RLock()
	ctx := l.base
	l.mu.RUnlock()

	go func() {
		_ = l.run(ctx)
	}()
	return true
}

// Load runs one attempt synchronously. While another attempt is running,
// or once the model is ready, it returns nil immediately.
func (l *ModelLoader) Load(ctx context.Context) error {
	if !l.begin() {
		return nil
	}
	return l.run(ctx)
}

// Wait blocks until the current attempt, if any, has finished.
func (l *ModelLoader) Wait(ctx context.Context) (models.ModelState, error) {
	l.mu.RLock()
	done := l.done
	l.mu.RUnlock()

	select {
	case <-done:
		return l.State(), nil
	case <-ctx.Done():
		return l.State(), ctx.Err()
	}
}

func (l *ModelLoader) Close() error {
	l.mu.Lock()
	p := l.pipeline
	l.pipeline = nil
	l.mu.Unlock()

	if p != nil {
		return p.Close()
	}
	return nil
}

// begin is the exclusive entry into loading.
func (l *ModelLoader) begin() bool {
	l.mu.Lock()
	if l.state.Status != models.ModelNotLoaded {
		l.mu.Unlock()
		return false
	}
	l.state = models.ModelState{
		Status:   models.ModelLoading,
		Since:    l.now(),
		Attempts: l.state.Attempts + 1,
	}
	l.done = make(chan struct{})
	// emitted under the lock so listeners see transitions in order
	l.emit(l.state)
	l.mu.Unlock()
	return true
}

func (l *ModelLoader) run(ctx context.Context) (err error) {
	start := l.now()
	l.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "[LOADER][START]",
		Fields:  map[string]any{"cache_dir": l.cfg.CacheDir, "prefix": l.cfg.Prefix},
	})

	var pipe ports.Pipeline
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader panic: %v", r)
		}
		l.finish(pipe, err, start)
	}()

	fetched, err := l.ensureArtifacts(ctx)
	if err != nil {
		return err
	}
	pipe, err = l.factory(l.cfg.CacheDir)
	if err != nil {
		if fetched {
			// a partial download must not count as a cache hit next time
			_ = os.RemoveAll(l.cfg.CacheDir)
		}
		return fmt.Errorf("build pipeline: %w", err)
	}
	return nil
}

func (l *ModelLoader) finish(pipe ports.Pipeline, err error, start time.Time) {
	l.mu.Lock()
	if err != nil {
		l.state = models.ModelState{
			Status:   models.ModelNotLoaded,
			Error:    err.Error(),
			Since:    l.now(),
			Attempts: l.state.Attempts,
		}
	} else {
		l.pipeline = pipe
		l.state = models.ModelState{
			Status:   models.ModelReady,
			Since:    l.now(),
			Attempts: l.state.Attempts,
		}
	}
	st := l.state
	close(l.done)
	l.emit(st)
	l.mu.Unlock()

	if err != nil {
		l.log.Log(logger.LogEntry{
			Level:   "error",
			Message: "[LOADER][FAIL]",
			Fields:  map[string]any{"attempt": st.Attempts, "dur": time.Since(start).String()},
			Error:   err,
		})
	} else {
		l.log.Log(logger.LogEntry{
			Level:   "info",
			Message: "[LOADER][READY]",
			Fields:  map[string]any{"attempt": st.Attempts, "dur": time.Since(start).String()},
		})
	}
}

func (l *ModelLoader) emit(st models.ModelState) {
	select {
	case l.events <- st:
	default:
		l.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "[LOADER][EVENT-DROP] no listener",
			Fields:  map[string]any{"status": st.Status},
		})
	}
}

// ensureArtifacts fills the cache directory unless it already has content.
// fetched reports whether this call downloaded into it.
func (l *ModelLoader) ensureArtifacts(ctx context.Context) (fetched bool, err error) {
	entries, err := os.ReadDir(l.cfg.CacheDir)
	if err == nil && len(entries) > 0 {
		l.log.Log(logger.LogEntry{
			Level:   "info",
			Message: "[LOADER][CACHE-HIT]",
			Fields:  map[string]any{"cache_dir": l.cfg.CacheDir, "entries": len(entries)},
		})
		return false, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read cache dir: %w", err)
	}
	if l.store == nil {
		return false, fmt.Errorf("cache dir %s is empty and no blob store is configured", l.cfg.CacheDir)
	}
	if err := os.MkdirAll(l.cfg.CacheDir, 0o755); err != nil {
		return false, fmt.Errorf("create cache dir: %w", err)
	}

	objects, err := l.store.List(ctx, l.cfg.Prefix)
	if err != nil {
		return false, fmt.Errorf("list artifacts: %w", err)
	}

	var (
		wanted []models.BlobObject
		rels   []string
	)
	for _, obj := range objects {
		rel, ok := artifactPath(l.cfg.Prefix, obj)
		if !ok {
			continue
		}
		wanted = append(wanted, obj)
		rels = append(rels, rel)
	}
	if len(wanted) == 0 {
		return false, fmt.Errorf("no artifacts under prefix %q", l.cfg.Prefix)
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Concurrency)

	for i := range wanted {
		obj, rel := wanted[i], rels[i]
		g.Go(func() error {
			if err := l.download(gctx, obj.Name, filepath.Join(l.cfg.CacheDir, filepath.FromSlash(rel))); err != nil {
				failed.Add(1)
				l.log.Log(logger.LogEntry{
					Level:   "warn",
					Message: "[LOADER][DL-ERR]",
					Fields:  map[string]any{"object": obj.Name},
					Error:   err,
				})
			}
			// per-object failures never cancel siblings
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		_ = os.RemoveAll(l.cfg.CacheDir)
		return false, err
	}

	n := int(failed.Load())
	l.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "[LOADER][DL-DONE]",
		Fields:  map[string]any{"objects": len(wanted), "failed": n},
	})
	var abort error
	switch {
	case n == len(wanted):
		abort = fmt.Errorf("all %d artifact downloads failed", n)
	case l.cfg.MaxFailedDownloads >= 0 && n > l.cfg.MaxFailedDownloads:
		abort = fmt.Errorf("%d of %d artifact downloads failed (limit %d)", n, len(wanted), l.cfg.MaxFailedDownloads)
	}
	if abort != nil {
		// leave an empty cache so the next attempt downloads again
		_ = os.RemoveAll(l.cfg.CacheDir)
		return false, abort
	}
	return true, nil
}

func (l *ModelLoader) download(ctx context.Context, name, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	rc, err := l.store.Open(ctx, name)
	if err != nil {
		return err
	}
	defer rc.Close()

	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// artifactPath maps an object to its path relative to prefix and reports
// whether it should be fetched at all.
func artifactPath(prefix string, obj models.BlobObject) (string, bool) {
	if obj.Size == 0 || strings.HasSuffix(obj.Name, "/") {
		return "", false
	}
	rel := strings.TrimPrefix(obj.Name, prefix)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		rel = path.Base(obj.Name)
	}

	segs := strings.Split(rel, "/")
	for i, seg := range segs {
		if seg == ".." || seg == "." || seg == "" {
			return "", false
		}
		if i < len(segs)-1 && seg == skippedSegment {
			return "", false
		}
	}
	return rel, true
}
