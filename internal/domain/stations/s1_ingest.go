package stations

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/speech2text/internal/apperr"
	"github.com/Vovarama1992/speech2text/internal/models"
	"github.com/Vovarama1992/speech2text/internal/ports"
)

const uploadField = "file"

type ingestJSON struct {
	URL         string `json:"url"`
	AudioBase64 string `json:"audio_base64"`
	Format      string `json:"format"`
}

// S1Ingest decides which transport the client used and extracts the audio bytes.
type S1Ingest struct {
	fetcher       ports.AudioFetcher
	defaultFormat string
	log           *logger.ZapLogger
}

func NewS1Ingest(fetcher ports.AudioFetcher, defaultFormat string, log *logger.ZapLogger) *S1Ingest {
	return &S1Ingest{
		fetcher:       fetcher,
		defaultFormat: defaultFormat,
		log:           log,
	}
}

func (s *S1Ingest) Run(ctx context.Context, contentType string, body io.Reader) (models.AudioPayload, error) {
	var (
		p   models.AudioPayload
		err error
	)

	switch {
	case strings.Contains(contentType, "multipart/form-data"):
		p, err = s.fromMultipart(contentType, body)
	case strings.HasPrefix(contentType, "audio/"):
		p, err = s.fromRaw(contentType, body)
	default:
		p, err = s.fromJSON(ctx, body)
	}
	if err != nil {
		s.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "[S1][ERR]",
			Fields:  map[string]any{"content_type": contentType},
			Error:   err,
		})
		return models.AudioPayload{}, err
	}

	s.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "[S1][OK]",
		Fields: map[string]any{
			"source": p.Source,
			"format": p.Format,
			"bytes":  len(p.Bytes),
		},
	})
	return p, nil
}

func (s *S1Ingest) fromMultipart(contentType string, body io.Reader) (models.AudioPayload, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil || params["boundary"] == "" {
		return models.AudioPayload{}, apperr.Wrap(apperr.KindInput, "ingest", "invalid multipart content type", err)
	}

	mr := multipart.NewReader(body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return models.AudioPayload{}, apperr.ErrMissingFile
		}
		if err != nil {
			return models.AudioPayload{}, apperr.Wrap(apperr.KindInput, "ingest", "malformed multipart body", err)
		}
		if part.FormName() != uploadField {
			part.Close()
			continue
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return models.AudioPayload{}, apperr.Wrap(apperr.KindInput, "ingest", "reading uploaded file", err)
		}

		format := strings.TrimPrefix(strings.ToLower(filepath.Ext(part.FileName())), ".")
		if format == "" {
			format = formatFromMediaType(part.Header.Get("Content-Type"))
		}
		if format == "" {
			format = s.defaultFormat
		}

		return models.AudioPayload{
			Bytes:  data,
			Format: format,
			Source: models.SourceMultipart,
		}, nil
	}
}

func (s *S1Ingest) fromRaw(contentType string, body io.Reader) (models.AudioPayload, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return models.AudioPayload{}, apperr.Wrap(apperr.KindInput, "ingest", "reading request body", err)
	}
	return models.AudioPayload{
		Bytes:  data,
		Format: formatFromMediaType(contentType),
		Source: models.SourceRawBinary,
	}, nil
}

func (s *S1Ingest) fromJSON(ctx context.Context, body io.Reader) (models.AudioPayload, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return models.AudioPayload{}, apperr.Wrap(apperr.KindInput, "ingest", "reading request body", err)
	}

	// malformed JSON is treated like an empty object
	var req ingestJSON
	_ = json.Unmarshal(raw, &req)

	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = s.defaultFormat
	}

	if req.URL != "" {
		data, status, err := s.fetcher.Fetch(ctx, req.URL)
		if err != nil {
			return models.AudioPayload{}, apperr.Wrap(apperr.KindInput, "ingest", "Failed to download audio from URL", err)
		}
		if status != http.StatusOK {
			return models.AudioPayload{}, &apperr.DownloadError{StatusCode: status}
		}
		return models.AudioPayload{Bytes: data, Format: format, Source: models.SourceJSONURL}, nil
	}

	if req.AudioBase64 == "" {
		return models.AudioPayload{}, apperr.ErrMissingAudio
	}

	data, err := decodeBase64(req.AudioBase64)
	if err != nil {
		return models.AudioPayload{}, apperr.Wrap(apperr.KindInput, "ingest", "invalid 'audio_base64'", err)
	}
	return models.AudioPayload{Bytes: data, Format: format, Source: models.SourceJSONBase64}, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	// data URLs: "data:audio/wav;base64,...."
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
		return raw, nil
	}
	return nil, err
}

var formatAliases = map[string]string{
	"x-wav":    "wav",
	"wave":     "wav",
	"vnd.wave": "wav",
	"mpeg":     "mp3",
	"mpeg3":    "mp3",
	"x-mp3":    "mp3",
	"mp4":      "m4a",
	"x-m4a":    "m4a",
	"aac":      "m4a",
	"x-flac":   "flac",
}

// formatFromMediaType maps "audio/x-wav; rate=16000" to "wav".
// Anything that is not audio/* yields "".
func formatFromMediaType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	}
	if !strings.HasPrefix(mt, "audio/") {
		return ""
	}
	sub := strings.TrimPrefix(mt, "audio/")
	if alias, ok := formatAliases[sub]; ok {
		return alias
	}
	return sub
}
