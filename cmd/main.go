package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/speech2text/internal/config"
	"github.com/Vovarama1992/speech2text/internal/delivery"
	ws "github.com/Vovarama1992/speech2text/internal/delivery/ws"
	"github.com/Vovarama1992/speech2text/internal/domain"
	"github.com/Vovarama1992/speech2text/internal/domain/stations"
	"github.com/Vovarama1992/speech2text/internal/infra"
	"github.com/Vovarama1992/speech2text/internal/ports"
)

// one retry when the remote endpoint is unavailable
const inferenceRetries = 1

func main() {
	configPath := flag.String("config", "", "path to YAML config (overrides CONFIG_FILE)")
	flag.Parse()

	// CONFIG
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// LOGGER
	zl, flush, err := infra.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Log(logger.LogEntry{
			Level:   "error",
			Message: "server crashed",
			Error:   err,
		})
		flush()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, zl *logger.ZapLogger) error {
	// TRANSCODER
	transcoder, err := infra.NewTranscoder(cfg.Transcode.Kind, cfg.Transcode.FFmpegPath)
	if err != nil {
		return err
	}
	fetcher := infra.NewHTTPFetcher(cfg.Fetch.Timeout, cfg.Fetch.MaxBytes)

	// WS HUB
	hub := ws.NewHub(zl)

	// GATEWAY
	var (
		stt    ports.Transcriber
		hAdmin *delivery.AdminHandler
	)
	switch cfg.Backend {
	case config.BackendRemote:
		predictor, err := infra.NewVertexPredictor(ctx, cfg.Remote.ProjectID, cfg.Remote.Region, cfg.Remote.EndpointID)
		if err != nil {
			return err
		}
		defer predictor.Close()
		stt = domain.NewRemoteGateway(predictor, cfg.Remote.SrcLang, cfg.Remote.TgtLang)

	case config.BackendLocal:
		var store ports.BlobStore
		if cfg.Local.Bucket != "" {
			gcs, err := infra.NewGCSBlobStore(ctx, cfg.Local.Bucket)
			if err != nil {
				return err
			}
			defer gcs.Close()
			store = gcs
		}

		loader := domain.NewModelLoader(
			store,
			infra.NewWhisperPipelineFactory(cfg.Local.ModelFile, cfg.Local.Language),
			domain.LoaderConfig{
				Prefix:             cfg.Local.Prefix,
				CacheDir:           cfg.Local.CacheDir,
				Concurrency:        cfg.Local.DownloadConcurrency,
				MaxFailedDownloads: cfg.Local.MaxFailedDownloads,
			},
			zl,
		)
		defer loader.Close()

		// BROADCAST LISTENER
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case st := <-loader.Events():
					hub.Broadcast(ws.StateMessage(st))
				}
			}
		}()

		loader.Start(ctx)
		stt = domain.NewLocalGateway(loader, cfg.Audio.TempDir)
		hAdmin = delivery.NewAdminHandler(loader, zl)
	}

	// STATIONS
	s1 := stations.NewS1Ingest(fetcher, cfg.Audio.DefaultFormat, zl)
	s2 := stations.NewS2Normalize(transcoder, cfg.Audio.TempDir, zl)
	s3 := stations.NewS3Transcribe(stt, inferenceRetries, zl)

	speech := domain.NewSpeechService(s1, s2, s3, zl)

	// ROUTER
	r := delivery.NewRouter(delivery.Handlers{
		Speech: delivery.NewSpeechHandler(speech, cfg.Server.MaxBodyBytes, zl),
		Health: delivery.NewHealthHandler(speech),
		Admin:  hAdmin,
		WS:     ws.Handler(hub, speech, cfg.Audio.DefaultFormat, cfg.Server.MaxBodyBytes, zl),
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Log(logger.LogEntry{
			Level:   "info",
			Message: "server started",
			Fields: map[string]any{
				"port":       cfg.Port,
				"backend":    cfg.Backend,
				"transcoder": transcoder.Name(),
			},
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	zl.Log(logger.LogEntry{Level: "info", Message: "shutting down"})
	return srv.Shutdown(shutdownCtx)
}
