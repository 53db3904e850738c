package infra

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/Vovarama1992/speech2text/internal/models"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/orcaman/writerseeker"
)

const wavFormatPCM = 1

// NativeTranscoder decodes WAV and MP3 in-process. It is the fallback
// when ffmpeg is not installed; other containers are rejected.
type NativeTranscoder struct{}

func NewNativeTranscoder() *NativeTranscoder { return &NativeTranscoder{} }

func (t *NativeTranscoder) Name() string { return "native" }

func (t *NativeTranscoder) Transcode(ctx context.Context, inPath, outPath, format string) error {
	f, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("native: open input: %w", err)
	}
	defer f.Close()

	var (
		mono []float64
		rate int
	)
	switch format {
	case "wav":
		mono, rate, err = decodeWAV(f)
	case "mp3":
		mono, rate, err = decodeMP3(f)
	default:
		return fmt.Errorf("native: unsupported format %q", format)
	}
	if err != nil {
		return fmt.Errorf("native: decode %s: %w", format, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := Resample(mono, rate, models.TargetSampleRate)

	data, err := EncodeWAV(FloatToPCM16(out), models.TargetSampleRate, models.TargetChannels)
	if err != nil {
		return fmt.Errorf("native: encode wav: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		return fmt.Errorf("native: write output: %w", err)
	}
	return nil
}

func decodeWAV(r io.ReadSeeker) ([]float64, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, 0, fmt.Errorf("unsupported wav encoding %d, only integer PCM", dec.WavAudioFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("wav without format")
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	scale := math.Pow(2, float64(depth-1))
	offset := 0.0
	if depth == 8 {
		// 8-bit wav is unsigned
		offset = 128
	}

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = (float64(v) - offset) / scale
	}
	return Downmix(samples, buf.Format.NumChannels), buf.Format.SampleRate, nil
}

func decodeMP3(r io.Reader) ([]float64, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, err
	}

	// go-mp3 always yields 16-bit little endian stereo
	samples := make([]float64, len(raw)/2)
	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768.0
	}
	return Downmix(samples, 2), dec.SampleRate(), nil
}

// Downmix averages interleaved channels into one.
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// Resample converts mono samples from src to dst Hz with linear interpolation.
func Resample(in []float64, src, dst int) []float64 {
	if src == dst || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(dst) / int64(src))
	out := make([]float64, n)
	step := float64(src) / float64(dst)
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}

// FloatToPCM16 clips and quantizes [-1, 1] samples.
func FloatToPCM16(in []float64) []int {
	out := make([]int, len(in))
	for i, v := range in {
		s := math.Round(v * 32767)
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		out[i] = int(s)
	}
	return out
}

// EncodeWAV writes interleaved 16-bit PCM into an in-memory RIFF WAV.
func EncodeWAV(pcm []int, sampleRate, channels int) ([]byte, error) {
	ws := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, 16, channels, 1)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           pcm,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}
	return io.ReadAll(ws.Reader())
}
