package domain

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/Vovarama1992/speech2text/internal/apperr"
	"github.com/Vovarama1992/speech2text/internal/models"
	"github.com/Vovarama1992/speech2text/internal/ports"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RemoteGateway forwards audio to a managed prediction endpoint.
type RemoteGateway struct {
	predictor ports.Predictor
	srcLang   string
	tgtLang   string
	started   time.Time
}

func NewRemoteGateway(predictor ports.Predictor, srcLang, tgtLang string) *RemoteGateway {
	return &RemoteGateway{
		predictor: predictor,
		srcLang:   srcLang,
		tgtLang:   tgtLang,
		started:   time.Now(),
	}
}

func (g *RemoteGateway) Transcribe(ctx context.Context, audio models.NormalizedAudio) (models.InferenceResult, error) {
	instance := map[string]any{
		"audio_base64": base64.StdEncoding.EncodeToString(audio.Bytes),
		"src_lang":     g.srcLang,
		"tgt_lang":     g.tgtLang,
	}

	predictions, err := g.predictor.Predict(ctx, []map[string]any{instance})
	if err != nil {
		kind := apperr.KindInference
		if status.Code(err) == codes.Unavailable {
			kind = apperr.KindUnavailable
		}
		return models.InferenceResult{}, apperr.Wrap(kind, "predict", "remote inference failed", err)
	}

	return models.InferenceResult{
		Text:           predictionText(predictions),
		RawPredictions: predictions,
	}, nil
}

// Readiness is always ready: endpoint availability is the provider's concern.
func (g *RemoteGateway) Readiness() models.ModelState {
	return models.ModelState{Status: models.ModelReady, Since: g.started}
}

// predictionText pulls a transcript out of the first prediction when the
// model returns a plain string or an object with a text-like field.
func predictionText(predictions []any) string {
	if len(predictions) == 0 {
		return ""
	}
	switch p := predictions[0].(type) {
	case string:
		return p
	case map[string]any:
		for _, key := range []string{"text", "transcription", "transcript"} {
			if s, ok := p[key].(string); ok {
				return s
			}
		}
	}
	return ""
}
