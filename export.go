package main

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/turbopuffer/lambada/pkg/lambada"
)

// sink receives the records of a single variant. Nothing is guaranteed to be
// visible at the destination until Commit returns; Abort discards whatever
// was written so far.
type sink interface {
	Write(ctx context.Context, rec lambada.Record) error
	Commit(ctx context.Context) error
	Abort() error
}

func (a *app) export(ctx context.Context) error {
	v, records, err := a.loader.Open(ctx, *variantName)
	if err != nil {
		return err
	}
	s, err := a.newSink(ctx, v)
	if err != nil {
		return fmt.Errorf("creating %s sink: %w", *sinkKind, err)
	}

	var bar *progressbar.ProgressBar
	if *showProgress {
		bar = progressbar.Default(-1, "exporting records")
	} else {
		bar = progressbar.DefaultSilent(-1, "exporting records")
	}

	start := time.Now()
	n, err := exportRecords(ctx, s, records, bar)
	if err != nil {
		return err
	}
	a.logger.Info(
		"export complete",
		slog.String("variant", v.Name),
		slog.String("sink", *sinkKind),
		slog.Int("records", n),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

func (a *app) newSink(ctx context.Context, v lambada.Variant) (sink, error) {
	switch *sinkKind {
	case "parquet":
		path := *outputPath
		if path == "" {
			path = fmt.Sprintf("lambada_%s.parquet", v.Name)
		}
		return newParquetSink(path, v.Name)
	case "mysql":
		dsn := *mysqlDsn
		if dsn == "" {
			dsn = a.cfg.MySQLDSN
		}
		return newMySQLSink(ctx, dsn, *mysqlTable, v.Name, *batchSize)
	case "turbopuffer":
		key, url := *apiKey, *baseURL
		if key == "" {
			key = a.cfg.TurbopufferAPIKey
		}
		if url == "" {
			url = a.cfg.TurbopufferBaseURL
		}
		client, err := newTurbopufferClient(key, url)
		if err != nil {
			return nil, err
		}
		return newTurbopufferSink(ctx, a.logger, client, *namespacePrefix+v.Name, v.Name, *batchSize)
	default:
		return nil, fmt.Errorf("unknown sink %q", *sinkKind)
	}
}

// exportRecords streams every record into s and commits. On any failure the
// sink is aborted and the original error returned alongside the abort error.
func exportRecords(
	ctx context.Context,
	s sink,
	records iter.Seq2[lambada.Record, error],
	bar *progressbar.ProgressBar,
) (int, error) {
	var n int
	fail := func(err error) (int, error) {
		return n, errors.Join(err, s.Abort())
	}
	for rec, err := range records {
		if err != nil {
			return fail(fmt.Errorf("reading records: %w", err))
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := s.Write(ctx, rec); err != nil {
			return fail(fmt.Errorf("writing record %d: %w", rec.Index, err))
		}
		n++
		bar.Add(1)
	}
	if err := s.Commit(ctx); err != nil {
		return fail(fmt.Errorf("committing export: %w", err))
	}
	bar.Finish()
	return n, nil
}
