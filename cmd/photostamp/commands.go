package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/electronjoe/photostamp/internal/batch"
	"github.com/electronjoe/photostamp/internal/codec"
	"github.com/electronjoe/photostamp/internal/datefmt"
	"github.com/electronjoe/photostamp/internal/photo"
	"github.com/electronjoe/photostamp/internal/preview"
	"github.com/electronjoe/photostamp/internal/viewer"
	"github.com/electronjoe/photostamp/internal/watermark"
)

const shutdownTimeout = 10 * time.Second

func dateFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "date",
		Usage: "Use this YYYY-MM-DD date instead of the capture date",
	}
}

func rotateFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "rotate",
		Usage: "Rotate counter-clockwise by this many degrees (multiple of 90)",
	}
}

func recursiveFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "recursive",
		Aliases: []string{"r"},
		Usage:   "Descend into subdirectories",
	}
}

func outDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "out-dir",
		Usage: "Output directory in separate mode",
		Value: "watermarked",
	}
}

// applyOverrides sets the --date and --rotate values on every item.
func applyOverrides(cmd *cli.Command, items []photo.Item) error {
	date := cmd.String("date")
	if date != "" {
		if _, err := datefmt.Parse(date); err != nil {
			return err
		}
	}
	rotation := int(cmd.Int("rotate"))
	if rotation%90 != 0 {
		return fmt.Errorf("rotation %d is not a multiple of 90", rotation)
	}
	rotation = ((rotation % 360) + 360) % 360
	for i := range items {
		if date != "" {
			items[i].SetDate(date)
		}
		items[i].Rotation = rotation
	}
	return nil
}

func datesCommand() *cli.Command {
	return &cli.Command{
		Name:      "dates",
		Usage:     "List queued images with their capture date",
		ArgsUsage: "PATH...",
		Flags:     []cli.Flag{recursiveFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			items, err := a.loadItems(cmd, cmd.Bool("recursive"))
			if err != nil {
				return err
			}
			for _, it := range items {
				date := it.Date
				if date == "" {
					date = "-"
				}
				fmt.Fprintf(os.Stdout, "%s\t%s\n", date, it.Path)
			}
			return nil
		},
	}
}

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "Stamp every queued image",
		ArgsUsage: "PATH...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Usage: "overwrite or separate (default from settings)",
			},
			outDirFlag(),
			recursiveFlag(),
			dateFlag(),
			rotateFlag(),
		},
		Action: runApply,
	}
}

func runApply(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	mode := a.settings.Mode()
	if m := cmd.String("mode"); m != "" {
		if mode, err = batch.ParseMode(m); err != nil {
			return err
		}
	}
	style, err := a.settings.Style()
	if err != nil {
		return err
	}
	items, err := a.loadItems(cmd, cmd.Bool("recursive"))
	if err != nil {
		return err
	}
	if err := applyOverrides(cmd, items); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := batch.NewRunner(batch.NewProcessor(a.renderer(), a.logger))
	job, err := runner.Start(context.WithoutCancel(ctx), items, style, batch.Options{Mode: mode, OutputDir: cmd.String("out-dir")})
	if err != nil {
		return err
	}

	interrupted := sigCtx.Done()
	var deadline <-chan time.Time
loop:
	for {
		select {
		case ev, ok := <-job.Events():
			if !ok {
				break loop
			}
			switch ev.Kind {
			case batch.EventProgress:
				fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", ev.Done, ev.Total, filepath.Base(ev.Path))
			case batch.EventItemFailed:
				fmt.Fprintf(os.Stderr, "  failed: %v\n", ev.Err)
			}
		case <-interrupted:
			a.logger.Info("interrupted, finishing current image")
			interrupted = nil
			job.Cancel()
			deadline = time.After(shutdownTimeout)
		case <-deadline:
			return fmt.Errorf("batch worker did not stop within %s", shutdownTimeout)
		}
	}

	res, err := job.Wait(shutdownTimeout)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, res)
	if res.Failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Write a stamped preview of one image",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "Output file (.png, .jpg or .jpeg)",
				Required: true,
			},
			dateFlag(),
			rotateFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("render takes exactly one image")
			}
			items, err := a.loadItems(cmd, false)
			if err != nil {
				return err
			}
			if err := applyOverrides(cmd, items); err != nil {
				return err
			}
			style, err := a.settings.Style()
			if err != nil {
				return err
			}

			out := cmd.String("out")
			format, err := codec.FormatForPath(out)
			if err != nil {
				return err
			}
			img, err := preview.Render(a.renderer(), items[0], style)
			if err != nil {
				return err
			}
			if err := codec.Save(out, codec.Flatten(img), format, nil); err != nil {
				return err
			}
			a.logger.Info("preview written", slog.String("path", out), slog.String("date", items[0].Date))
			return nil
		},
	}
}

func viewCommand() *cli.Command {
	return &cli.Command{
		Name:      "view",
		Usage:     "Open the interactive preview window",
		ArgsUsage: "PATH...",
		Flags: []cli.Flag{
			recursiveFlag(),
			outDirFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			items, err := a.loadItems(cmd, cmd.Bool("recursive"))
			if err != nil {
				return err
			}
			r := a.renderer()
			session := preview.NewSession(preview.SessionOptions{
				Items:        items,
				Settings:     a.settings,
				SettingsPath: a.path,
				Renderer:     r,
				Runner:       batch.NewRunner(batch.NewProcessor(r, a.logger)),
				OutputDir:    cmd.String("out-dir"),
				Logger:       a.logger,
			})
			return viewer.Run(ctx, session, a.path, a.logger)
		},
	}
}

func fontsCommand() *cli.Command {
	return &cli.Command{
		Name:  "fonts",
		Usage: "List the font names usable as font_name",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "Go Regular")
			fmt.Fprintln(os.Stdout, "Go Bold")
			for _, name := range watermark.NewSystemCatalog(a.logger).Names() {
				fmt.Fprintln(os.Stdout, name)
			}
			return nil
		},
	}
}
