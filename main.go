package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/turbopuffer/lambada/pkg/config"
	"github.com/turbopuffer/lambada/pkg/fetch"
	"github.com/turbopuffer/lambada/pkg/lambada"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	cfg, cfgErr := config.Load()
	logger := newLogger(os.Stderr, cfg.LogLevel)
	if cfgErr != nil {
		logger.Error("loading configuration", slog.String("error", cfgErr.Error()))
		os.Exit(1)
	}

	rctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var exitCode int
	if err := run(rctx, logger, cfg, flag.Args()); err != nil {
		logger.Error("encountered top-level error", slog.String("error", err.Error()))
		exitCode = 1
	}

	os.Exit(exitCode)
}

type command struct {
	name string
	desc string
	run  func(*app, context.Context) error
}

var commands = []command{
	{name: "variants", desc: "list the dataset variants and their sources", run: (*app).listVariants},
	{name: "info", desc: "print the dataset metadata for -variant", run: (*app).info},
	{name: "records", desc: "print the records of -variant as JSON lines", run: (*app).records},
	{name: "sample", desc: "print -n records of -variant chosen at random with -seed", run: (*app).sample},
	{name: "stats", desc: "print length statistics for the records of -variant", run: (*app).stats},
	{name: "export", desc: "export the records of -variant to -sink", run: (*app).export},
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: %s [flags] <command>\n\ncommands:\n", os.Args[0])
	for _, c := range commands {
		fmt.Fprintf(out, "  %-10s %s\n", c.name, c.desc)
	}
	fmt.Fprintf(out, "\nflags:\n")
	flag.PrintDefaults()
}

var errUsage = errors.New("expected exactly one command")

func run(ctx context.Context, logger *slog.Logger, cfg config.Config, args []string) error {
	if len(args) != 1 {
		flag.Usage()
		return errUsage
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		a := newApp(logger, cfg, os.Stdout)
		if err := c.run(a, ctx); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		return nil
	}
	flag.Usage()
	return fmt.Errorf("unknown command %q", args[0])
}

// app holds what every command needs: where to log, where to write output,
// and how to load records.
type app struct {
	logger  *slog.Logger
	cfg     config.Config
	out     io.Writer
	fetcher *fetch.Fetcher
	loader  *lambada.Loader
}

func newApp(logger *slog.Logger, cfg config.Config, out io.Writer) *app {
	fetcher := fetch.New(
		cmp.Or(*cacheDir, cfg.CacheDir),
		fetch.WithLogger(logger),
		fetch.WithMaxAttempts(cmp.Or(*fetchAttempts, cfg.FetchAttempts)),
		fetch.WithOffline(*offline || cfg.Offline),
		fetch.WithProgress(*showProgress),
	)
	return &app{
		logger:  logger,
		cfg:     cfg,
		out:     out,
		fetcher: fetcher,
		loader:  lambada.NewLoader(fetcher, cmp.Or(*dataDir, cfg.DataDir)),
	}
}
