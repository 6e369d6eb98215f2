package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/turbopuffer/lambada/pkg/lambada"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRecord struct {
	Variant string `parquet:"name=variant, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Index   int64  `parquet:"name=index, type=INT64"`
	Text    string `parquet:"name=text, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// parquetSink writes records to a single local parquet file.
type parquetSink struct {
	path    string
	variant string
	file    source.ParquetFile
	pw      *writer.ParquetWriter
}

func newParquetSink(path, variant string) (*parquetSink, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("creating parquet file %q: %w", path, err)
	}
	pw, err := writer.NewParquetWriter(fw, new(parquetRecord), 4)
	if err != nil {
		fw.Close()
		os.Remove(path)
		return nil, fmt.Errorf("creating parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	return &parquetSink{path: path, variant: variant, file: fw, pw: pw}, nil
}

func (s *parquetSink) Write(_ context.Context, rec lambada.Record) error {
	return s.pw.Write(parquetRecord{
		Variant: s.variant,
		Index:   int64(rec.Index),
		Text:    rec.Text,
	})
}

func (s *parquetSink) Commit(context.Context) error {
	if err := s.pw.WriteStop(); err != nil {
		return fmt.Errorf("finishing parquet file: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing parquet file: %w", err)
	}
	return nil
}

func (s *parquetSink) Abort() error {
	closeErr := s.file.Close()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Join(closeErr, err)
	}
	return nil
}
