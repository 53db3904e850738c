package infra

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/Vovarama1992/speech2text/internal/models"
)

const maxFFmpegErrPreview = 180

// FFmpegTranscoder shells out to ffmpeg.
type FFmpegTranscoder struct {
	bin string
}

func NewFFmpegTranscoder(bin string) *FFmpegTranscoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegTranscoder{bin: bin}
}

// FFmpegAvailable reports whether bin resolves on PATH.
func FFmpegAvailable(bin string) bool {
	_, err := exec.LookPath(bin)
	return err == nil
}

func (t *FFmpegTranscoder) Name() string { return "ffmpeg" }

func (t *FFmpegTranscoder) Transcode(ctx context.Context, inPath, outPath, format string) error {
	cmd := exec.CommandContext(
		ctx,
		t.bin,
		"-loglevel", "error",
		"-nostdin",
		"-y",
		"-i", inPath,
		"-vn",
		"-ac", strconv.Itoa(models.TargetChannels),
		"-ar", strconv.Itoa(models.TargetSampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %s->wav: %w: %s", format, err, trim(stderr.String(), maxFFmpegErrPreview))
	}
	return nil
}

func trim(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
