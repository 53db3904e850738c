package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Vovarama1992/speech2text/internal/domain"
	"github.com/Vovarama1992/speech2text/internal/domain/stations"
	"github.com/Vovarama1992/speech2text/internal/infra"
	"github.com/Vovarama1992/speech2text/internal/models"
	"github.com/Vovarama1992/speech2text/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wavTranscoder pretends every input converts to a short 16 kHz mono wav.
type wavTranscoder struct{ formats []string }

func (t *wavTranscoder) Name() string { return "fake" }

func (t *wavTranscoder) Transcode(ctx context.Context, inPath, outPath, format string) error {
	t.formats = append(t.formats, format)
	data, err := infra.EncodeWAV(make([]int, 1600), models.TargetSampleRate, models.TargetChannels)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, data, 0o600)
}

type fakeTranscriber struct {
	state models.ModelState
	res   models.InferenceResult
	err   error
	got   []models.NormalizedAudio
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio models.NormalizedAudio) (models.InferenceResult, error) {
	f.got = append(f.got, audio)
	if f.err != nil {
		return models.InferenceResult{}, f.err
	}
	return f.res, nil
}

func (f *fakeTranscriber) Readiness() models.ModelState { return f.state }

type fakeController struct {
	started bool
	state   models.ModelState
}

func (c *fakeController) Reload() bool             { return c.started }
func (c *fakeController) State() models.ModelState { return c.state }

type panicProcessor struct{}

func (panicProcessor) Process(ctx context.Context, contentType string, body io.Reader) (models.InferenceResult, error) {
	panic("boom")
}

func (panicProcessor) Readiness() models.ModelState {
	return models.ModelState{Status: models.ModelReady}
}

type testEnv struct {
	router     http.Handler
	transcoder *wavTranscoder
}

func newEnv(t *testing.T, stt ports.Transcriber, admin ports.ModelController) *testEnv {
	t.Helper()
	log := infra.NopLogger()
	tc := &wavTranscoder{}

	speech := domain.NewSpeechService(
		stations.NewS1Ingest(infra.NewHTTPFetcher(5*time.Second, 1<<20), "wav", log),
		stations.NewS2Normalize(tc, t.TempDir(), log),
		stations.NewS3Transcribe(stt, 0, log),
		log,
	)

	h := Handlers{
		Speech: NewSpeechHandler(speech, 1<<20, log),
		Health: NewHealthHandler(speech),
	}
	if admin != nil {
		h.Admin = NewAdminHandler(admin, log)
	}
	return &testEnv{router: NewRouter(h, []string{"*"}), transcoder: tc}
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body io.Reader) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func ready() models.ModelState { return models.ModelState{Status: models.ModelReady} }

func TestSpeechMultipartM4A(t *testing.T) {
	stt := &fakeTranscriber{state: ready(), res: models.InferenceResult{Text: "hello"}}
	env := newEnv(t, stt, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "clip.m4a")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("....ftypM4A "))
	require.NoError(t, mw.Close())

	code, body := env.do(t, http.MethodPost, "/speech2text", mw.FormDataContentType(), &buf)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"text": "hello"}, body)

	assert.Equal(t, []string{"m4a"}, env.transcoder.formats)
	require.Len(t, stt.got, 1)
	assert.False(t, stt.got[0].Passthrough)
	assert.Equal(t, 16000, stt.got[0].SampleRate)
}

func TestSpeechRawPredictions(t *testing.T) {
	stt := &fakeTranscriber{state: ready(), res: models.InferenceResult{
		Text:           "hi",
		RawPredictions: []any{map[string]any{"text": "hi"}},
	}}
	env := newEnv(t, stt, nil)

	code, body := env.do(t, http.MethodPost, "/speech2text", "audio/ogg", bytes.NewReader([]byte("OggS")))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, []any{map[string]any{"text": "hi"}}, body["predictions"])
}

func TestSpeechJSONBase64(t *testing.T) {
	stt := &fakeTranscriber{state: ready(), res: models.InferenceResult{Text: "ok"}}
	env := newEnv(t, stt, nil)

	payload := `{"audio_base64":"` + base64.StdEncoding.EncodeToString([]byte("audio")) + `","format":"mp3"}`
	code, body := env.do(t, http.MethodPost, "/speech2text", "application/json", strings.NewReader(payload))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["text"])
	assert.Equal(t, []string{"mp3"}, env.transcoder.formats)
}

func TestSpeechInputErrors(t *testing.T) {
	audio := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer audio.Close()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     string
	}{
		{"bad base64", "application/json", `{"audio_base64":"%%%"}`, "invalid 'audio_base64'"},
		{"nothing", "application/json", `{}`, "missing 'audio_base64' or 'url'"},
		{"url 404", "application/json", `{"url":"` + audio.URL + `/clip.wav"}`, "Failed to download audio from URL (404)"},
		{"multipart without file", "multipart/form-data; boundary=xyz", "--xyz--\r\n", "Missing uploaded file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stt := &fakeTranscriber{state: ready()}
			env := newEnv(t, stt, nil)

			code, body := env.do(t, http.MethodPost, "/speech2text", tt.contentType, strings.NewReader(tt.body))
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, body["error"], tt.wantErr)
			assert.Empty(t, stt.got, "inference must not run")
		})
	}
}

func TestSpeechURLExactMessage(t *testing.T) {
	audio := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer audio.Close()

	env := newEnv(t, &fakeTranscriber{state: ready()}, nil)
	code, body := env.do(t, http.MethodPost, "/speech2text", "application/json",
		strings.NewReader(`{"url":"`+audio.URL+`/x.wav"}`))

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]any{"error": "Failed to download audio from URL (404)"}, body)
}

func TestSpeechModelNotReady(t *testing.T) {
	tests := []struct {
		name        string
		state       models.ModelState
		wantLoading bool
		wantDetails any
	}{
		{"loading", models.ModelState{Status: models.ModelLoading}, true, nil},
		{"failed", models.ModelState{Status: models.ModelNotLoaded, Error: "403 forbidden"}, false, "403 forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &readySource{state: tt.state}
			env := newEnv(t, domain.NewLocalGateway(src, t.TempDir()), nil)

			code, body := env.do(t, http.MethodPost, "/speech2text", "audio/wav", bytes.NewReader([]byte("RIFF")))
			assert.Equal(t, http.StatusServiceUnavailable, code)
			assert.Equal(t, "model loading", body["error"])
			assert.Equal(t, tt.wantLoading, body["loading"])
			assert.Contains(t, body, "error_details")
			assert.Equal(t, tt.wantDetails, body["error_details"])
		})
	}
}

type readySource struct{ state models.ModelState }

func (s *readySource) State() models.ModelState         { return s.state }
func (s *readySource) Pipeline() (ports.Pipeline, bool) { return nil, false }

func TestSpeechInferenceFailure(t *testing.T) {
	stt := &fakeTranscriber{state: ready(), err: io.ErrUnexpectedEOF}
	env := newEnv(t, stt, nil)

	code, body := env.do(t, http.MethodPost, "/speech2text", "audio/wav", bytes.NewReader([]byte("RIFF")))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body["error"], "inference failed")
}

func TestSpeechBodyTooLarge(t *testing.T) {
	log := infra.NopLogger()
	h := NewSpeechHandler(panicFreeProcessor(t), 8, log)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/speech2text", bytes.NewReader(bytes.Repeat([]byte("x"), 64)))
	req.Header.Set("Content-Type", "audio/wav")
	h.Transcribe(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func panicFreeProcessor(t *testing.T) ports.SpeechProcessor {
	log := infra.NopLogger()
	return domain.NewSpeechService(
		stations.NewS1Ingest(infra.NewHTTPFetcher(time.Second, 0), "wav", log),
		stations.NewS2Normalize(&wavTranscoder{}, t.TempDir(), log),
		stations.NewS3Transcribe(&fakeTranscriber{state: ready()}, 0, log),
		log,
	)
}

func TestSpeechPanicRecovered(t *testing.T) {
	log := infra.NopLogger()
	r := NewRouter(Handlers{
		Speech: NewSpeechHandler(panicProcessor{}, 0, log),
		Health: NewHealthHandler(panicProcessor{}),
	}, []string{"*"})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/speech2text", strings.NewReader("{}")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthz(t *testing.T) {
	since := time.Now().Add(-3 * time.Second)

	tests := []struct {
		name     string
		state    models.ModelState
		wantCode int
		check    func(t *testing.T, body map[string]any)
	}{
		{"ready", ready(), http.StatusOK, func(t *testing.T, body map[string]any) {
			assert.Equal(t, map[string]any{"status": "ready"}, body)
		}},
		{"loading", models.ModelState{Status: models.ModelLoading, Since: since}, http.StatusServiceUnavailable, func(t *testing.T, body map[string]any) {
			assert.Equal(t, "loading", body["status"])
			assert.GreaterOrEqual(t, body["loading_for"], 3.0)
		}},
		{"not loaded", models.ModelState{Status: models.ModelNotLoaded, Error: "bucket missing"}, http.StatusServiceUnavailable, func(t *testing.T, body map[string]any) {
			assert.Equal(t, "not_loaded", body["status"])
			assert.Equal(t, "bucket missing", body["error"])
			assert.NotContains(t, body, "loading_for")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, &fakeTranscriber{state: tt.state}, nil)
			code, body := env.do(t, http.MethodGet, "/healthz", "", nil)
			assert.Equal(t, tt.wantCode, code)
			tt.check(t, body)
		})
	}
}

func TestAdminReload(t *testing.T) {
	stt := &fakeTranscriber{state: ready()}

	env := newEnv(t, stt, &fakeController{started: true, state: models.ModelState{Status: models.ModelLoading, Attempts: 2}})
	code, body := env.do(t, http.MethodPost, "/admin/model/reload", "", nil)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "loading", body["status"])
	assert.Equal(t, 2.0, body["attempts"])

	env = newEnv(t, stt, &fakeController{started: false, state: ready()})
	code, body = env.do(t, http.MethodPost, "/admin/model/reload", "", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "model is ready", body["error"])

	// remote backend: route not registered
	env = newEnv(t, stt, nil)
	req := httptest.NewRequest(http.MethodPost, "/admin/model/reload", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
