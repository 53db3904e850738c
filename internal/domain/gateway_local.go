package domain

import (
	"context"
	"os"

	"github.com/Vovarama1992/speech2text/internal/apperr"
	"github.com/Vovarama1992/speech2text/internal/models"
	"github.com/Vovarama1992/speech2text/internal/ports"
)

type pipelineSource interface {
	State() models.ModelState
	Pipeline() (ports.Pipeline, bool)
}

// LocalGateway runs the in-process pipeline once the loader is ready.
type LocalGateway struct {
	loader  pipelineSource
	tempDir string
}

func NewLocalGateway(loader pipelineSource, tempDir string) *LocalGateway {
	return &LocalGateway{loader: loader, tempDir: tempDir}
}

func (g *LocalGateway) Transcribe(ctx context.Context, audio models.NormalizedAudio) (models.InferenceResult, error) {
	pipe, ready := g.loader.Pipeline()
	if !ready || pipe == nil {
		return models.InferenceResult{}, &apperr.ModelNotReadyError{State: g.loader.State()}
	}

	f, err := os.CreateTemp(g.tempDir, "s3-*.wav")
	if err != nil {
		return models.InferenceResult{}, apperr.Wrap(apperr.KindInference, "local", "create temp wav", err)
	}
	path := f.Name()
	defer os.Remove(path)

	_, werr := f.Write(audio.Bytes)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return models.InferenceResult{}, apperr.Wrap(apperr.KindInference, "local", "write temp wav", werr)
	}

	res, err := pipe.Transcribe(ctx, path)
	if err != nil {
		return models.InferenceResult{}, apperr.Wrap(apperr.KindInference, "local", "local inference failed", err)
	}
	return res, nil
}

func (g *LocalGateway) Readiness() models.ModelState {
	return g.loader.State()
}
