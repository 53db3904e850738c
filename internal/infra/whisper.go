//go:build whisper

package infra

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Vovarama1992/speech2text/internal/models"
	"github.com/Vovarama1992/speech2text/internal/ports"
	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperPipeline runs whisper.cpp in-process.
type WhisperPipeline struct {
	model    whisper.Model
	language string

	// whisper contexts share backend state, one inference at a time
	mu sync.Mutex
}

func NewWhisperPipelineFactory(modelFile, language string) ports.PipelineFactory {
	return func(dir string) (ports.Pipeline, error) {
		path, err := FindModelFile(dir, modelFile)
		if err != nil {
			return nil, err
		}
		model, err := whisper.New(path)
		if err != nil {
			return nil, fmt.Errorf("whisper: load model %q: %w", path, err)
		}
		return &WhisperPipeline{model: model, language: language}, nil
	}
}

func (p *WhisperPipeline) Transcribe(ctx context.Context, wavPath string) (models.InferenceResult, error) {
	samples, rate, err := ReadWAVSamples(wavPath)
	if err != nil {
		return models.InferenceResult{}, err
	}
	if rate != models.TargetSampleRate {
		return models.InferenceResult{}, fmt.Errorf("whisper: need %d Hz audio, got %d", models.TargetSampleRate, rate)
	}
	if err := ctx.Err(); err != nil {
		return models.InferenceResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	wctx, err := p.model.NewContext()
	if err != nil {
		return models.InferenceResult{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if p.language != "" {
		if err := wctx.SetLanguage(p.language); err != nil {
			return models.InferenceResult{}, fmt.Errorf("whisper: language %q: %w", p.language, err)
		}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return models.InferenceResult{}, fmt.Errorf("whisper: process: %w", err)
	}

	var segments []string
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.InferenceResult{}, fmt.Errorf("whisper: next segment: %w", err)
		}
		segments = append(segments, strings.TrimSpace(seg.Text))
	}

	return models.InferenceResult{Text: strings.TrimSpace(strings.Join(segments, " "))}, nil
}

func (p *WhisperPipeline) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}
