package infra

import (
	"fmt"

	"github.com/Vovarama1992/speech2text/internal/ports"
)

// NewTranscoder picks the transcoder for kind: "ffmpeg", "native" or "auto".
func NewTranscoder(kind, ffmpegPath string) (ports.Transcoder, error) {
	switch kind {
	case "ffmpeg":
		return NewFFmpegTranscoder(ffmpegPath), nil
	case "native":
		return NewNativeTranscoder(), nil
	case "auto", "":
		if FFmpegAvailable(ffmpegPath) {
			return NewFFmpegTranscoder(ffmpegPath), nil
		}
		return NewNativeTranscoder(), nil
	default:
		return nil, fmt.Errorf("unknown transcoder %q", kind)
	}
}
