package main

import (
	"context"
	"fmt"
	"iter"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/turbopuffer/lambada/pkg/lambada"
	"gonum.org/v1/gonum/stat"
)

func (a *app) stats(ctx context.Context) error {
	v, records, err := a.loader.Open(ctx, *variantName)
	if err != nil {
		return err
	}
	report, err := computeStats(records)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Statistics for variant %s:\n", v.Name)
	report.PrintWithDepth(a.out, 1)
	return nil
}

// lengthHistogram is a sorted list of lengths.
type lengthHistogram []float64

var reportedPercentiles = []int{25, 50, 75, 90, 99}

func (h lengthHistogram) report() Report {
	if len(h) == 0 {
		return Report{}
	}
	var mean, stddev float64
	if len(h) == 1 {
		mean = h[0]
	} else {
		mean, stddev = stat.MeanStdDev(h, nil)
	}
	r := Report{
		"min":    h[0],
		"max":    h[len(h)-1],
		"mean":   round(mean, 2),
		"stddev": round(stddev, 2),
	}
	for _, p := range reportedPercentiles {
		r[fmt.Sprintf("p%d", p)] = stat.Quantile(float64(p)/100, stat.Empirical, h, nil)
	}
	return r
}

func round(f float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(f*scale) / scale
}

// computeStats summarizes the length of each passage in characters and words,
// and the length of its target word.
func computeStats(records iter.Seq2[lambada.Record, error]) (Report, error) {
	var chars, words, targets lengthHistogram
	for rec, err := range records {
		if err != nil {
			return nil, fmt.Errorf("reading records: %w", err)
		}
		_, target := rec.ContextAndTarget()
		chars = append(chars, float64(utf8.RuneCountInString(rec.Text)))
		words = append(words, float64(len(strings.Fields(rec.Text))))
		targets = append(targets, float64(utf8.RuneCountInString(strings.TrimSpace(target))))
	}
	slices.Sort(chars)
	slices.Sort(words)
	slices.Sort(targets)

	report := Report{"records": len(chars)}
	if len(chars) == 0 {
		return report, nil
	}
	report.MergeOther(Report{
		"characters":        chars.report(),
		"words":             words.report(),
		"target_characters": targets.report(),
	})
	return report, nil
}
