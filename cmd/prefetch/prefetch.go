// Command prefetch downloads every LAMBADA variant into the local cache and
// checks that each one parses.
package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/turbopuffer/lambada/pkg/config"
	"github.com/turbopuffer/lambada/pkg/fetch"
	"github.com/turbopuffer/lambada/pkg/lambada"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

var (
	variantsFlag = flag.String(
		"variants",
		"",
		"Comma-separated list of variants to prefetch (default: all of them)",
	)
	concurrency = flag.Int(
		"concurrency",
		4,
		"The number of variants to fetch at the same time",
	)
	refresh = flag.Bool(
		"refresh",
		false,
		"Evict cached copies and download every variant again",
	)
	offline = flag.Bool(
		"offline",
		false,
		"Only verify the cache, never download",
	)
	cacheDir = flag.String(
		"cache-dir",
		"",
		"The directory to cache downloads in (default: $DATASET_CACHE_DIR, or the system temp dir)",
	)
	dataDir = flag.String(
		"data-dir",
		"",
		"The directory holding bundled dataset files (default: $LAMBADA_DATA_DIR, or ./data)",
	)
)

func main() {
	flag.Parse()

	cfg, cfgErr := config.Load()
	logger := newLogger(cfg.LogLevel)
	if cfgErr != nil {
		logger.Error("loading configuration", slog.Any("error", cfgErr))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("top-level error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg config.Config) error {
	variants, err := selectVariants(*variantsFlag)
	if err != nil {
		return err
	}
	if *refresh && (*offline || cfg.Offline) {
		return fmt.Errorf("-refresh and -offline are mutually exclusive")
	}

	fetcher := fetch.New(
		cmp.Or(*cacheDir, cfg.CacheDir),
		fetch.WithLogger(logger),
		fetch.WithMaxAttempts(cfg.FetchAttempts),
		fetch.WithOffline(*offline || cfg.Offline),
	)
	loader := lambada.NewLoader(fetcher, cmp.Or(*dataDir, cfg.DataDir))

	var (
		start  = time.Now()
		eg, gc = errgroup.WithContext(ctx)
		mu     sync.Mutex
		counts = make(map[string]int, len(variants))
	)
	eg.SetLimit(max(*concurrency, 1))
	for _, v := range variants {
		eg.Go(func() error {
			if *refresh {
				if err := evict(fetcher, v); err != nil {
					return fmt.Errorf("evicting %s: %w", v.Name, err)
				}
			}
			n, err := prefetch(gc, loader, v)
			if err != nil {
				return fmt.Errorf("prefetching %s: %w", v.Name, err)
			}
			mu.Lock()
			counts[v.Name] = n
			mu.Unlock()
			logger.Info("variant ready", slog.String("variant", v.Name), slog.Int("records", n))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	var total int
	for _, n := range counts {
		total += n
	}
	logger.Info(
		"prefetch complete",
		slog.Int("variants", len(counts)),
		slog.Int("records", total),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// selectVariants parses a comma-separated list of variant names. An empty
// list selects every variant.
func selectVariants(list string) ([]lambada.Variant, error) {
	if strings.TrimSpace(list) == "" {
		return lambada.Variants(), nil
	}
	var (
		selected []lambada.Variant
		seen     = make(map[string]bool)
	)
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		v, err := lambada.Lookup(name)
		if err != nil {
			return nil, err
		}
		seen[name] = true
		selected = append(selected, v)
	}
	return selected, nil
}

// evict drops the cached copies of every remote source of v.
func evict(fetcher *fetch.Fetcher, v lambada.Variant) error {
	source := v.Source
	if v.Bundled() {
		source = v.Mirror
	}
	if source == "" {
		return nil
	}
	return fetcher.Evict(source)
}

// prefetch materializes the variant and reads it end to end.
func prefetch(ctx context.Context, loader *lambada.Loader, v lambada.Variant) (int, error) {
	path, err := loader.Resolve(ctx, v)
	if err != nil {
		return 0, err
	}
	var n int
	for _, err := range lambada.Generate(path) {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func newLogger(level string) *slog.Logger {
	var leveler slog.Leveler
	if l, ok := logLevels[strings.ToLower(level)]; ok {
		leveler = l
	}
	var handler slog.Handler
	if localDev() {
		if leveler == nil {
			leveler = slog.LevelDebug
		}
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: leveler,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: leveler,
		})
	}
	return slog.New(handler)
}

// Interactive runs get human-readable logs, everything else gets JSON.
func localDev() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
