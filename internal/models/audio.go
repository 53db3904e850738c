package models

type AudioSource string

const (
	SourceMultipart  AudioSource = "multipart"
	SourceRawBinary  AudioSource = "raw_binary"
	SourceJSONBase64 AudioSource = "json_base64"
	SourceJSONURL    AudioSource = "json_url"
)

// AudioPayload is what the client sent, before any transcoding.
type AudioPayload struct {
	Bytes  []byte
	Format string // "wav", "m4a", "mp3"... empty when unknown
	Source AudioSource
}

const (
	TargetSampleRate = 16000
	TargetChannels   = 1
	TargetContainer  = "wav"
)

type NormalizedAudio struct {
	Bytes      []byte
	SampleRate int
	Channels   int
	Container  string

	// Passthrough is set when transcoding failed and Bytes are the
	// original payload bytes, still labelled as wav.
	Passthrough bool
}

type InferenceResult struct {
	Text           string
	RawPredictions any
}
