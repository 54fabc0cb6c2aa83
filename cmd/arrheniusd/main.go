// Command arrheniusd serves Arrhenius model artifacts over HTTP,
// computing datasets, images and archives on demand and caching them
// on disk.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	arrhenius "github.com/ahurka/Arrhenius"
	"github.com/ahurka/Arrhenius/archive"
	"github.com/ahurka/Arrhenius/httpapi"
	"github.com/ahurka/Arrhenius/render"
	"github.com/ahurka/Arrhenius/store"
)

type serverConfig struct {
	Listen        string `yaml:"listen"`
	OutputRoot    string `yaml:"output_root"`
	LogLevel      string `yaml:"log_level"`
	RenderWorkers int    `yaml:"render_workers"`

	Model struct {
		Command string   `yaml:"command"`
		Args    []string `yaml:"args"`
	} `yaml:"model"`
}

func loadConfig(path string) (*serverConfig, error) {
	cfg := &serverConfig{
		Listen:        ":8080",
		OutputRoot:    "output",
		LogLevel:      "info",
		RenderWorkers: 4,
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	configPath := flag.String("config", "", "path to YAML server configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "arrheniusd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Model.Command == "" {
		return errors.New("model.command is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	layout, err := store.New(cfg.OutputRoot)
	if err != nil {
		return err
	}

	runner := newModelRunner(layout, cfg.Model.Command, cfg.Model.Args, logger)
	renderer := render.New(&render.PNGPainter{},
		render.WithWorkers(cfg.RenderWorkers),
		render.WithLogger(logger),
	)

	coord, err := arrhenius.New(layout, runner, renderer,
		arrhenius.ArchiverFunc(archive.Create),
		arrhenius.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           httpapi.New(coord, httpapi.WithLogger(logger)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "output_root", cfg.OutputRoot)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
