package domain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Vovarama1992/speech2text/internal/models"
	"github.com/Vovarama1992/speech2text/internal/ports"
)

type fakeStore struct {
	objects []models.BlobObject
	content map[string][]byte
	failing map[string]bool
	listErr error
	gate    chan struct{} // List blocks until closed, when set
	delay   time.Duration

	listCalls atomic.Int32
	inflight  atomic.Int32
	maxFlight atomic.Int32

	mu     sync.Mutex
	opened []string
}

func (s *fakeStore) List(ctx context.Context, prefix string) ([]models.BlobObject, error) {
	s.listCalls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.objects, nil
}

func (s *fakeStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.opened = append(s.opened, name)
	s.mu.Unlock()

	if s.failing[name] {
		return nil, fmt.Errorf("object %s: permission denied", name)
	}

	n := s.inflight.Add(1)
	for {
		cur := s.maxFlight.Load()
		if n <= cur || s.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return &trackedReader{Reader: bytes.NewReader(s.content[name]), done: func() { s.inflight.Add(-1) }}, nil
}

func (s *fakeStore) openedNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.opened...)
}

type trackedReader struct {
	io.Reader
	done func()
}

func (r *trackedReader) Close() error {
	r.done()
	return nil
}

type fakePipeline struct {
	text    string
	err     error
	gotWAV  []byte
	gotPath string
	closed  atomic.Bool
}

func (p *fakePipeline) Transcribe(ctx context.Context, wavPath string) (models.InferenceResult, error) {
	p.gotPath = wavPath
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return models.InferenceResult{}, err
	}
	p.gotWAV = data
	if p.err != nil {
		return models.InferenceResult{}, p.err
	}
	return models.InferenceResult{Text: p.text}, nil
}

func (p *fakePipeline) Close() error {
	p.closed.Store(true)
	return nil
}

type fakeFactory struct {
	calls atomic.Int32
	err   error
	pipe  *fakePipeline
	dirs  chan string
}

func (f *fakeFactory) build(dir string) (ports.Pipeline, error) {
	f.calls.Add(1)
	if f.dirs != nil {
		f.dirs <- dir
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.pipe == nil {
		f.pipe = &fakePipeline{}
	}
	return f.pipe, nil
}

type fakePredictor struct {
	predictions []any
	err         error
	got         []map[string]any
}

func (p *fakePredictor) Predict(ctx context.Context, instances []map[string]any) ([]any, error) {
	p.got = instances
	return p.predictions, p.err
}

type fixedSource struct {
	state models.ModelState
	pipe  ports.Pipeline
}

func (s *fixedSource) State() models.ModelState { return s.state }

func (s *fixedSource) Pipeline() (ports.Pipeline, bool) {
	return s.pipe, s.state.Ready()
}

var errBoom = errors.New("boom")
