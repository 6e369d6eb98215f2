package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/turbopuffer/lambada/pkg/lambada"
	"github.com/turbopuffer/turbopuffer-go"
	"github.com/turbopuffer/turbopuffer-go/option"
	"github.com/turbopuffer/turbopuffer-go/packages/param"
	"golang.org/x/sync/errgroup"
)

func newTurbopufferClient(apiKey, baseURL string, opts ...option.RequestOption) (*turbopuffer.Client, error) {
	if apiKey == "" {
		return nil, errors.New("missing required flag: -api-key")
	}
	opts = append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}, opts...)
	client := turbopuffer.NewClient(opts...)
	return &client, nil
}

// Deletes all the documents for a given namespace.
// If the namespace doesn't exist, no-op.
func clearNamespace(ctx context.Context, ns turbopuffer.Namespace) error {
	if _, err := ns.DeleteAll(ctx, turbopuffer.NamespaceDeleteAllParams{}); err != nil {
		var apiErr *turbopuffer.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("deleting namespace: %w", err)
	}
	return nil
}

// fullTextLanguages maps variants to the tokenizer language used for their
// text attribute. Variants not listed are stored without a full-text index.
var fullTextLanguages = map[string]string{
	"default": "english",
	"en":      "english",
	"de":      "german",
	"es":      "spanish",
	"fr":      "french",
	"it":      "italian",
}

func namespaceSchema(variant string) map[string]turbopuffer.AttributeSchemaConfigParam {
	text := turbopuffer.AttributeSchemaConfigParam{
		Type: param.NewOpt(turbopuffer.AttributeType("string")),
	}
	if lang, ok := fullTextLanguages[variant]; ok {
		text.FullTextSearch = &turbopuffer.FullTextSearchConfigParam{
			Language:        turbopuffer.Language(lang),
			Stemming:        param.NewOpt(true),
			RemoveStopwords: param.NewOpt(false),
			CaseSensitive:   param.NewOpt(false),
		}
	}
	return map[string]turbopuffer.AttributeSchemaConfigParam{"text": text}
}

func recordRow(variant string, rec lambada.Record) turbopuffer.RowParam {
	return turbopuffer.RowParam{
		"id":      rec.Index,
		"text":    rec.Text,
		"variant": variant,
	}
}

// turbopufferSink upserts records into a namespace in batches, with a bounded
// number of writes in flight.
type turbopufferSink struct {
	logger    *slog.Logger
	ns        turbopuffer.Namespace
	variant   string
	batchSize int
	rows      []turbopuffer.RowParam
	eg        *errgroup.Group
	egCtx     context.Context
	waited    bool
}

func newTurbopufferSink(
	ctx context.Context,
	logger *slog.Logger,
	client *turbopuffer.Client,
	namespace string,
	variant string,
	batchSize int,
) (*turbopufferSink, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	ns := client.Namespace(namespace)
	if err := clearNamespace(ctx, ns); err != nil {
		return nil, err
	}
	logger.Debug("cleared namespace", slog.String("namespace", namespace))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	return &turbopufferSink{
		logger:    logger,
		ns:        ns,
		variant:   variant,
		batchSize: batchSize,
		eg:        eg,
		egCtx:     egCtx,
	}, nil
}

func (s *turbopufferSink) Write(_ context.Context, rec lambada.Record) error {
	if err := s.egCtx.Err(); err != nil {
		return err
	}
	s.rows = append(s.rows, recordRow(s.variant, rec))
	if len(s.rows) >= s.batchSize {
		s.flush()
	}
	return nil
}

func (s *turbopufferSink) flush() {
	if len(s.rows) == 0 {
		return
	}
	params := turbopuffer.NamespaceWriteParams{
		UpsertRows: s.rows,
		Schema:     namespaceSchema(s.variant),
	}
	s.rows = nil
	s.eg.Go(func() error {
		s.logger.Debug(
			"writing to namespace",
			slog.String("variant", s.variant),
			slog.Int("rows", len(params.UpsertRows)),
		)
		if _, err := s.ns.Write(s.egCtx, params); err != nil {
			return fmt.Errorf("upserting rows: %w", err)
		}
		return nil
	})
}

func (s *turbopufferSink) Commit(context.Context) error {
	s.flush()
	s.waited = true
	if err := s.eg.Wait(); err != nil {
		return fmt.Errorf("waiting for upserts: %w", err)
	}
	return nil
}

// Abort waits for in-flight writes to settle. Rows already upserted stay in
// the namespace until the next export clears it.
func (s *turbopufferSink) Abort() error {
	s.rows = nil
	if s.waited {
		return nil
	}
	if err := s.eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
