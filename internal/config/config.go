package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendRemote = "remote"
	BackendLocal  = "local"
)

type Config struct {
	Port      string          `yaml:"port"`
	Backend   string          `yaml:"backend"` // "remote" or "local"
	LogLevel  string          `yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Remote    RemoteConfig    `yaml:"remote"`
	Local     LocalConfig     `yaml:"local"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Transcode TranscodeConfig `yaml:"transcoder"`
}

type ServerConfig struct {
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type AudioConfig struct {
	DefaultFormat string `yaml:"default_format"`
	TempDir       string `yaml:"temp_dir"`
}

// RemoteConfig describes the managed Vertex AI endpoint.
type RemoteConfig struct {
	ProjectID  string `yaml:"project_id"`
	Region     string `yaml:"region"`
	EndpointID string `yaml:"endpoint_id"`
	SrcLang    string `yaml:"src_lang"`
	TgtLang    string `yaml:"tgt_lang"`
}

// LocalConfig describes where the in-process model comes from.
type LocalConfig struct {
	Bucket              string `yaml:"bucket"`
	Prefix              string `yaml:"prefix"`
	CacheDir            string `yaml:"cache_dir"`
	ModelFile           string `yaml:"model_file"`
	Language            string `yaml:"language"`
	DownloadConcurrency int    `yaml:"download_concurrency"`
	// MaxFailedDownloads aborts the load when more objects than this
	// failed to download. Negative means unlimited.
	MaxFailedDownloads int `yaml:"max_failed_downloads"`
}

type FetchConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	MaxBytes int64         `yaml:"max_bytes"`
}

type TranscodeConfig struct {
	Kind       string `yaml:"kind"` // "auto", "ffmpeg" or "native"
	FFmpegPath string `yaml:"ffmpeg_path"`
}

func Default() *Config {
	return &Config{
		Port:     "8080",
		Backend:  BackendRemote,
		LogLevel: "info",
		Server: ServerConfig{
			MaxBodyBytes:    32 << 20,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Audio: AudioConfig{
			DefaultFormat: "wav",
		},
		Remote: RemoteConfig{
			ProjectID:  "burmese-voice",
			Region:     "us-central1",
			EndpointID: "projects/burmese-voice/locations/us-central1/endpoints/7279126516179402752",
			SrcLang:    "mya",
			TgtLang:    "mya",
		},
		Local: LocalConfig{
			CacheDir:            "/tmp/speech2text/model",
			Language:            "auto",
			DownloadConcurrency: 8,
			MaxFailedDownloads:  -1,
		},
		Fetch: FetchConfig{
			Timeout:  60 * time.Second,
			MaxBytes: 64 << 20,
		},
		Transcode: TranscodeConfig{
			Kind:       "auto",
			FFmpegPath: "ffmpeg",
		},
	}
}

// Load builds the configuration: defaults, then the optional YAML file,
// then .env and process environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// .env is optional; real environment wins over it.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"PORT":                 &c.Port,
		"ASR_BACKEND":          &c.Backend,
		"LOG_LEVEL":            &c.LogLevel,
		"PROJECT_ID":           &c.Remote.ProjectID,
		"REGION":               &c.Remote.Region,
		"VERTEX_ENDPOINT_ID":   &c.Remote.EndpointID,
		"SRC_LANG":             &c.Remote.SrcLang,
		"TGT_LANG":             &c.Remote.TgtLang,
		"DEFAULT_AUDIO_FORMAT": &c.Audio.DefaultFormat,
		"AUDIO_TEMP_DIR":       &c.Audio.TempDir,
		"MODEL_BUCKET":         &c.Local.Bucket,
		"MODEL_PREFIX":         &c.Local.Prefix,
		"MODEL_CACHE_DIR":      &c.Local.CacheDir,
		"MODEL_FILE":           &c.Local.ModelFile,
		"MODEL_LANGUAGE":       &c.Local.Language,
		"TRANSCODER":           &c.Transcode.Kind,
		"FFMPEG_PATH":          &c.Transcode.FFmpegPath,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"DOWNLOAD_CONCURRENCY": &c.Local.DownloadConcurrency,
		"MAX_FAILED_DOWNLOADS": &c.Local.MaxFailedDownloads,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", key, v)
		}
		*dst = n
	}

	if v := os.Getenv("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_BODY_BYTES: invalid integer %q", v)
		}
		c.Server.MaxBodyBytes = n
	}
	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FETCH_TIMEOUT: %w", err)
		}
		c.Fetch.Timeout = d
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("port must be numeric, got %q", c.Port)
	}

	switch c.Backend {
	case BackendRemote:
		if c.Remote.EndpointID == "" {
			return fmt.Errorf("remote.endpoint_id must not be empty")
		}
		if c.Remote.Region == "" {
			return fmt.Errorf("remote.region must not be empty")
		}
	case BackendLocal:
		if c.Local.CacheDir == "" {
			return fmt.Errorf("local.cache_dir must not be empty")
		}
		if c.Local.DownloadConcurrency <= 0 {
			return fmt.Errorf("local.download_concurrency must be > 0")
		}
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendRemote, BackendLocal, c.Backend)
	}

	switch c.Transcode.Kind {
	case "auto", "ffmpeg", "native":
	default:
		return fmt.Errorf("transcoder.kind must be auto, ffmpeg or native, got %q", c.Transcode.Kind)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.Audio.DefaultFormat == "" {
		return fmt.Errorf("audio.default_format must not be empty")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be > 0")
	}
	return nil
}
