//go:build !whisper

package infra

import (
	"fmt"

	"github.com/Vovarama1992/speech2text/internal/ports"
)

// NewWhisperPipelineFactory without the whisper build tag: the loader
// downloads artifacts but ends in not_loaded with this error.
func NewWhisperPipelineFactory(modelFile, language string) ports.PipelineFactory {
	return func(dir string) (ports.Pipeline, error) {
		if _, err := FindModelFile(dir, modelFile); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("whisper support not compiled in (rebuild with -tags whisper)")
	}
}
