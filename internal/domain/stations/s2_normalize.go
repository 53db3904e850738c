package stations

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/speech2text/internal/apperr"
	"github.com/Vovarama1992/speech2text/internal/models"
	"github.com/Vovarama1992/speech2text/internal/ports"
	"github.com/go-audio/wav"
)

var safeFormat = regexp.MustCompile(`^[a-z0-9]{1,10}$`)

// S2Normalize turns any supported container into 16 kHz mono WAV.
type S2Normalize struct {
	transcoder ports.Transcoder
	tempDir    string
	log        *logger.ZapLogger
}

func NewS2Normalize(transcoder ports.Transcoder, tempDir string, log *logger.ZapLogger) *S2Normalize {
	return &S2Normalize{
		transcoder: transcoder,
		tempDir:    tempDir,
		log:        log,
	}
}

// Run never fails: when transcoding is impossible the original bytes are
// handed on with Passthrough set.
func (s *S2Normalize) Run(ctx context.Context, p models.AudioPayload) models.NormalizedAudio {
	start := time.Now()

	out, err := s.Normalize(ctx, p)
	if err != nil {
		s.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "[S2][PASSTHROUGH] transcoding failed, forwarding original bytes",
			Fields: map[string]any{
				"format":     p.Format,
				"bytes":      len(p.Bytes),
				"transcoder": s.transcoder.Name(),
			},
			Error: err,
		})
		return Passthrough(p)
	}

	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "[S2][OK]",
		Fields: map[string]any{
			"format":    p.Format,
			"in_bytes":  len(p.Bytes),
			"out_bytes": len(out.Bytes),
			"dur":       time.Since(start).String(),
		},
	})
	return out
}

// Normalize is the strict variant: any failure is returned as a transcode error.
func (s *S2Normalize) Normalize(ctx context.Context, p models.AudioPayload) (models.NormalizedAudio, error) {
	if p.Format == "" || !safeFormat.MatchString(p.Format) {
		return models.NormalizedAudio{}, apperr.ErrUnknownFormat
	}
	if len(p.Bytes) == 0 {
		return models.NormalizedAudio{}, apperr.New(apperr.KindTranscode, "normalize", "empty audio")
	}

	in, err := os.CreateTemp(s.tempDir, "s2-in-*."+p.Format)
	if err != nil {
		return models.NormalizedAudio{}, apperr.Wrap(apperr.KindTranscode, "normalize", "create input temp file", err)
	}
	inPath := in.Name()
	defer os.Remove(inPath)

	_, werr := in.Write(p.Bytes)
	cerr := in.Close()
	if werr != nil || cerr != nil {
		return models.NormalizedAudio{}, apperr.Wrap(apperr.KindTranscode, "normalize", "write input temp file", firstErr(werr, cerr))
	}

	out, err := os.CreateTemp(s.tempDir, "s2-out-*.wav")
	if err != nil {
		return models.NormalizedAudio{}, apperr.Wrap(apperr.KindTranscode, "normalize", "create output temp file", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	if err := s.transcoder.Transcode(ctx, inPath, outPath, p.Format); err != nil {
		return models.NormalizedAudio{}, apperr.Wrap(apperr.KindTranscode, "normalize", s.transcoder.Name()+" failed", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return models.NormalizedAudio{}, apperr.Wrap(apperr.KindTranscode, "normalize", "read output temp file", err)
	}
	if err := verifyWAV(data); err != nil {
		return models.NormalizedAudio{}, apperr.Wrap(apperr.KindTranscode, "normalize", "transcoder produced bad wav", err)
	}

	return models.NormalizedAudio{
		Bytes:      data,
		SampleRate: models.TargetSampleRate,
		Channels:   models.TargetChannels,
		Container:  models.TargetContainer,
	}, nil
}

// Passthrough labels the original bytes as normalized wav.
func Passthrough(p models.AudioPayload) models.NormalizedAudio {
	return models.NormalizedAudio{
		Bytes:       p.Bytes,
		SampleRate:  models.TargetSampleRate,
		Channels:    models.TargetChannels,
		Container:   models.TargetContainer,
		Passthrough: true,
	}
}

func verifyWAV(data []byte) error {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return fmt.Errorf("not a valid wav file")
	}
	if dec.SampleRate != models.TargetSampleRate {
		return fmt.Errorf("sample rate %d, want %d", dec.SampleRate, models.TargetSampleRate)
	}
	if dec.NumChans != models.TargetChannels {
		return fmt.Errorf("channels %d, want %d", dec.NumChans, models.TargetChannels)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
