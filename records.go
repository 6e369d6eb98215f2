package main

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"slices"

	"github.com/turbopuffer/lambada/pkg/lambada"
	"golang.org/x/exp/rand"
)

func (a *app) records(ctx context.Context) error {
	_, records, err := a.loader.Open(ctx, *variantName)
	if err != nil {
		return err
	}
	_, err = writeRecords(a.out, records, *recordLimit, *splitTarget)
	return err
}

func (a *app) sample(ctx context.Context) error {
	_, records, err := a.loader.Open(ctx, *variantName)
	if err != nil {
		return err
	}
	sampled, err := sampleRecords(records, *sampleSize, *sampleSeed)
	if err != nil {
		return err
	}
	_, err = writeRecords(a.out, sliceOfRecords(sampled), 0, *splitTarget)
	return err
}

type recordLine struct {
	Index   int     `json:"index"`
	Text    string  `json:"text"`
	Context *string `json:"context,omitempty"`
	Target  *string `json:"target,omitempty"`
}

// writeRecords prints records as JSON lines, stopping after limit records if
// limit is positive. Returns the number of records written.
func writeRecords(
	w io.Writer,
	records iter.Seq2[lambada.Record, error],
	limit int,
	split bool,
) (int, error) {
	var (
		bw  = bufio.NewWriter(w)
		enc = json.NewEncoder(bw)
		n   int
	)
	enc.SetEscapeHTML(false)
	for rec, err := range records {
		if limit > 0 && n >= limit {
			break
		}
		if err != nil {
			return n, fmt.Errorf("reading records: %w", err)
		}
		line := recordLine{Index: rec.Index, Text: rec.Text}
		if split {
			prefix, target := rec.ContextAndTarget()
			line.Context, line.Target = &prefix, &target
		}
		if err := enc.Encode(line); err != nil {
			return n, fmt.Errorf("writing record %d: %w", rec.Index, err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("flushing output: %w", err)
	}
	return n, nil
}

// sampleRecords picks n records uniformly at random in a single pass
// (reservoir sampling), returned in file order. Deterministic for a given seed.
func sampleRecords(records iter.Seq2[lambada.Record, error], n int, seed uint64) ([]lambada.Record, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sample size must be positive, got %d", n)
	}
	var (
		rng       = rand.New(rand.NewSource(seed))
		reservoir = make([]lambada.Record, 0, n)
		seen      int
	)
	for rec, err := range records {
		if err != nil {
			return nil, fmt.Errorf("reading records: %w", err)
		}
		if len(reservoir) < n {
			reservoir = append(reservoir, rec)
		} else if j := rng.Intn(seen + 1); j < n {
			reservoir[j] = rec
		}
		seen++
	}
	slices.SortFunc(reservoir, func(a, b lambada.Record) int {
		return cmp.Compare(a.Index, b.Index)
	})
	return reservoir, nil
}

func sliceOfRecords(recs []lambada.Record) iter.Seq2[lambada.Record, error] {
	return func(yield func(lambada.Record, error) bool) {
		for _, rec := range recs {
			if !yield(rec, nil) {
				return
			}
		}
	}
}
