package mediator

import (
	"context"
	"os"
	"strings"

	"mai/config"
	"mai/internal/jobs"
	"mai/internal/nodes"
	"mai/internal/recorder"
	"mai/internal/services"
	"mai/internal/video"

	"github.com/charmbracelet/log"
)

type App struct {
	api    *services.Api
	runner *services.Runner
	hub    *services.Hub
	cancel context.CancelFunc
	logger *log.Logger
	// settings
	Config *config.Config
}

func NewApp(config config.Config) (*App, error) {
	logger := NewLogger(config.Log)

	ctx, cancel := context.WithCancel(context.Background())

	hub := services.NewHub()
	tracker := jobs.NewTracker(config.Runner.RetainJobs)
	recorders := recorder.NewTracking(tracker, hub, logger)
	demuxer := video.NewFFmpeg(config.Video.FFmpegPath, config.Video.FFprobePath, config.Video.TempDir, config.Video.MaxFrames)

	registry := nodes.NewRegistry(nodes.Config{
		Timeouts:      config.Nodes.Timeouts(),
		MaxVideoBytes: int64(config.Nodes.MaxVideoMB) << 20,
	}, recorders, demuxer, logger)

	runner := services.NewRunner(ctx, config.Runner, registry, tracker, hub, logger)
	api := services.NewApi(config.Api, registry, runner, tracker, hub, logger)

	return &App{
		api:    api,
		runner: runner,
		hub:    hub,
		cancel: cancel,
		logger: logger,
		Config: &config,
	}, nil
}

func (a *App) Start() error {
	a.runner.Run()
	return a.api.Start()
}

func (a *App) Shutdown() {
	if err := a.api.Shutdown(); err != nil {
		a.logger.Warn("api shutdown", "err", err)
	}
	a.runner.Shutdown()
	a.cancel()
	a.hub.Shutdown()
}

func NewLogger(cfg config.LogConfig) *log.Logger {
	level, err := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
}
