package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fetcharr/fetcharr/internal/catalog"
	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/ffmpeg"
	internalhttp "github.com/fetcharr/fetcharr/internal/http"
	"github.com/fetcharr/fetcharr/internal/http/handlers"
	"github.com/fetcharr/fetcharr/internal/maintenance"
	"github.com/fetcharr/fetcharr/internal/pipeline"
	"github.com/fetcharr/fetcharr/internal/progress"
	"github.com/fetcharr/fetcharr/internal/storage"
	"github.com/fetcharr/fetcharr/internal/subtitles"
	"github.com/fetcharr/fetcharr/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fetcharr server",
	Long: `Start the fetcharr HTTP server and API.

The server provides:
- REST API for dispatching transcodes and polling their progress
- Health check endpoint
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server flags
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8090, "Port to listen on")
	serveCmd.Flags().String("storage-dir", "./storage", "Base directory for pipeline artifacts")
	serveCmd.Flags().String("catalog-url", "", "Catalog base URL")

	// Bind flags to viper
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("storage.base_dir", serveCmd.Flags().Lookup("storage-dir"))
	viper.BindPFlag("catalog.base_url", serveCmd.Flags().Lookup("catalog-url"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize storage layout
	layout := storage.NewLayout(cfg.Storage)
	if err := layout.Ensure(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	catalogClient, err := catalog.New(cfg.Catalog, catalog.NewHTTPClient(cfg.Catalog, logger), logger)
	if err != nil {
		return fmt.Errorf("initializing catalog client: %w", err)
	}

	// Pipeline collaborators
	prober := ffmpeg.NewProber(cfg.FFmpeg.ProbePath, cfg.FFmpeg.ProbeTimeout)
	transcoder := ffmpeg.NewTranscoder(cfg.FFmpeg.BinaryPath, logger)
	fetcher := subtitles.NewFetcher(layout.SubtitleDir(), cfg.Subtitles.Timeout, logger)
	tracker := progress.NewTracker(layout.ProgressDir())

	scheduler := pipeline.NewScheduler(pipeline.Deps{
		Catalog:    catalogClient,
		Prober:     prober,
		Subtitles:  fetcher,
		Transcoder: transcoder,
		Tracker:    tracker,
		Layout:     layout,
		Languages:  &cfg.Languages,
		Logger:     logger,
	}, cfg.Pipeline.LaunchGracePeriod)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodic storage usage report
	if cfg.Pipeline.StorageReportSchedule != "" {
		reporter, err := maintenance.NewStorageReporter(layout, tracker, cfg.Pipeline.StorageReportSchedule, logger)
		if err != nil {
			return fmt.Errorf("initializing storage reporter: %w", err)
		}
		reporter.Start(ctx)
		defer reporter.Stop()
	}

	// Initialize HTTP server
	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	// Register handlers
	healthHandler := handlers.NewHealthHandler(version.Version).WithStorage(layout)
	healthHandler.Register(server.API())

	versionHandler := handlers.NewVersionHandler()
	versionHandler.Register(server.API())

	downloadHandler := handlers.NewDownloadHandler(scheduler)
	downloadHandler.Register(server.API())

	progressHandler := handlers.NewProgressHandler(tracker)
	progressHandler.Register(server.API())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// Start server
	logger.Info("starting fetcharr server",
		slog.String("address", cfg.Server.Address()),
		slog.String("catalog", cfg.Catalog.BaseURL),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}
