package ports

import (
	"context"
	"io"

	"github.com/Vovarama1992/speech2text/internal/models"
)

// SpeechProcessor runs ingest -> normalize -> transcribe for one request.
type SpeechProcessor interface {
	Process(ctx context.Context, contentType string, body io.Reader) (models.InferenceResult, error)
	Readiness() models.ModelState
}

// ModelController is the manual control surface of the local model loader.
type ModelController interface {
	Reload() bool
	State() models.ModelState
}
