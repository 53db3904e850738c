package ports

import (
	"context"

	"github.com/Vovarama1992/speech2text/internal/models"
)

// Transcriber is the inference gateway: remote endpoint or local pipeline.
type Transcriber interface {
	Transcribe(ctx context.Context, audio models.NormalizedAudio) (models.InferenceResult, error)
	Readiness() models.ModelState
}

// Predictor calls a managed prediction endpoint with a batch of instances.
type Predictor interface {
	Predict(ctx context.Context, instances []map[string]any) ([]any, error)
}

// Pipeline is an in-process speech-to-text model.
type Pipeline interface {
	Transcribe(ctx context.Context, wavPath string) (models.InferenceResult, error)
	Close() error
}

// PipelineFactory materializes a Pipeline from a local artifact directory.
type PipelineFactory func(dir string) (Pipeline, error)
