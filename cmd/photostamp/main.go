package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/electronjoe/photostamp/internal/config"
	"github.com/electronjoe/photostamp/internal/photo"
	"github.com/electronjoe/photostamp/internal/watermark"
)

func main() {
	cmd := &cli.Command{
		Name:  "photostamp",
		Usage: "Stamp photos with their capture date",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "settings",
				Aliases: []string{"s"},
				Usage:   "Path to the settings file (.json or .yaml)",
				Value:   config.DefaultPath,
				Sources: cli.EnvVars("PHOTOSTAMP_SETTINGS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				Sources: cli.EnvVars("PHOTOSTAMP_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:        "cache",
				Usage:       "Path to the capture-date cache; empty disables it",
				DefaultText: "<user config dir>/photostamp/date_cache.json",
				Value:       defaultCachePath(),
			},
		},
		Commands: []*cli.Command{
			datesCommand(),
			applyCommand(),
			renderCommand(),
			viewCommand(),
			fontsCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("photostamp failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func defaultCachePath() string {
	path, err := photo.DefaultCachePath()
	if err != nil {
		return ""
	}
	return path
}

// app is what every command needs, built from the global flags.
type app struct {
	logger   *slog.Logger
	settings *config.Settings
	path     string
	catalog  watermark.FontCatalog
}

func setup(cmd *cli.Command) (*app, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	path := cmd.String("settings")
	settings, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("settings loaded", slog.String("path", path))

	return &app{
		logger:   logger,
		settings: settings,
		path:     path,
		catalog:  watermark.Chain{watermark.NewMemoryCatalog(), watermark.NewSystemCatalog(logger)},
	}, nil
}

// loadItems queues the given paths, using the date cache when enabled.
func (a *app) loadItems(cmd *cli.Command, recursive bool) ([]photo.Item, error) {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths given")
	}

	opts := photo.LoadOptions{Recursive: recursive, Logger: a.logger}
	if cachePath := cmd.String("cache"); cachePath != "" {
		cache, err := photo.OpenDateCache(cachePath)
		if err != nil {
			a.logger.Warn("date cache unavailable", slog.String("error", err.Error()))
		} else {
			opts.Cache = cache
			defer func() {
				if err := cache.Save(); err != nil {
					a.logger.Warn("date cache not saved", slog.String("error", err.Error()))
				}
			}()
		}
	}

	items := photo.Load(paths, opts)
	if len(items) == 0 {
		return nil, fmt.Errorf("no supported images in %s", strings.Join(paths, ", "))
	}
	return items, nil
}

func (a *app) renderer() *watermark.Renderer {
	return watermark.NewRenderer(a.catalog, a.logger)
}
