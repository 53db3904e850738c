package domain

import (
	"context"
	"io"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/speech2text/internal/domain/stations"
	"github.com/Vovarama1992/speech2text/internal/models"
	"github.com/Vovarama1992/speech2text/internal/ports"
)

// SpeechService runs one request through ingest, normalize and transcribe.
type SpeechService struct {
	s1 *stations.S1Ingest
	s2 *stations.S2Normalize
	s3 *stations.S3Transcribe

	log *logger.ZapLogger
}

var _ ports.SpeechProcessor = (*SpeechService)(nil)

func NewSpeechService(
	s1 *stations.S1Ingest,
	s2 *stations.S2Normalize,
	s3 *stations.S3Transcribe,
	log *logger.ZapLogger,
) *SpeechService {
	return &SpeechService{s1: s1, s2: s2, s3: s3, log: log}
}

func (s *SpeechService) Process(ctx context.Context, contentType string, body io.Reader) (models.InferenceResult, error) {
	start := time.Now()

	payload, err := s.s1.Run(ctx, contentType, body)
	if err != nil {
		return models.InferenceResult{}, err
	}

	audio := s.s2.Run(ctx, payload)

	res, err := s.s3.Run(ctx, audio)
	if err != nil {
		return models.InferenceResult{}, err
	}

	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "[DONE]",
		Fields: map[string]any{
			"source":      payload.Source,
			"format":      payload.Format,
			"passthrough": audio.Passthrough,
			"dur":         time.Since(start).String(),
		},
	})
	return res, nil
}

func (s *SpeechService) Readiness() models.ModelState {
	return s.s3.Readiness()
}
