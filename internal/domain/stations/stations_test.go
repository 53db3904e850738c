package stations

import (
	"context"
	"errors"
	"math"
	"os"
	"sync/atomic"

	"github.com/Vovarama1992/speech2text/internal/infra"
	"github.com/Vovarama1992/speech2text/internal/models"
)

type fakeFetcher struct {
	data   []byte
	status int
	err    error
	calls  atomic.Int32
	gotURL string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, int, error) {
	f.calls.Add(1)
	f.gotURL = url
	return f.data, f.status, f.err
}

// copyTranscoder writes a prepared wav to the output path.
type copyTranscoder struct {
	out     []byte
	err     error
	formats []string
}

func (t *copyTranscoder) Name() string { return "fake" }

func (t *copyTranscoder) Transcode(ctx context.Context, inPath, outPath, format string) error {
	t.formats = append(t.formats, format)
	if t.err != nil {
		return t.err
	}
	return os.WriteFile(outPath, t.out, 0o600)
}

type fakeTranscriber struct {
	results []error
	calls   int
	state   models.ModelState
	text    string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio models.NormalizedAudio) (models.InferenceResult, error) {
	i := f.calls
	f.calls++
	if i < len(f.results) && f.results[i] != nil {
		return models.InferenceResult{}, f.results[i]
	}
	return models.InferenceResult{Text: f.text}, nil
}

func (f *fakeTranscriber) Readiness() models.ModelState { return f.state }

var errBoom = errors.New("boom")

// sineWAV renders a 440 Hz tone as 16-bit PCM wav.
func sineWAV(rate, channels int, seconds float64) []byte {
	frames := int(float64(rate) * seconds)
	pcm := make([]int, 0, frames*channels)
	for i := 0; i < frames; i++ {
		v := int(math.Sin(2*math.Pi*440*float64(i)/float64(rate)) * 8000)
		for c := 0; c < channels; c++ {
			pcm = append(pcm, v)
		}
	}
	data, err := infra.EncodeWAV(pcm, rate, channels)
	if err != nil {
		panic(err)
	}
	return data
}
