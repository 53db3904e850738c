package stations

import (
	"context"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/speech2text/internal/apperr"
	"github.com/Vovarama1992/speech2text/internal/models"
	"github.com/Vovarama1992/speech2text/internal/ports"
)

// S3Transcribe hands normalized audio to the inference gateway. Errors
// tagged unavailable are retried up to retries times, all others are final.
type S3Transcribe struct {
	stt     ports.Transcriber
	retries int
	log     *logger.ZapLogger
}

func NewS3Transcribe(stt ports.Transcriber, retries int, log *logger.ZapLogger) *S3Transcribe {
	return &S3Transcribe{stt: stt, retries: retries, log: log}
}

func (s *S3Transcribe) Run(ctx context.Context, audio models.NormalizedAudio) (models.InferenceResult, error) {
	start := time.Now()

	var (
		res models.InferenceResult
		err error
	)
	for attempt := 0; attempt <= s.retries; attempt++ {
		res, err = s.stt.Transcribe(ctx, audio)
		if err == nil {
			s.log.Log(logger.LogEntry{
				Level:   "info",
				Message: "[S3][OK]",
				Fields: map[string]any{
					"wav_bytes":   len(audio.Bytes),
					"passthrough": audio.Passthrough,
					"attempt":     attempt + 1,
					"text_len":    len(res.Text),
					"dur":         time.Since(start).String(),
				},
			})
			return res, nil
		}

		// only transient transport failures are retried
		if apperr.KindOf(err) != apperr.KindUnavailable || ctx.Err() != nil {
			break
		}
		s.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "[S3][ERR]",
			Fields:  map[string]any{"attempt": attempt + 1},
			Error:   err,
		})
	}

	return models.InferenceResult{}, apperr.Wrap(apperr.KindInference, "transcribe", "inference failed", err)
}

func (s *S3Transcribe) Readiness() models.ModelState {
	return s.stt.Readiness()
}
