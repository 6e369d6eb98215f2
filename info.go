package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/turbopuffer/lambada/pkg/lambada"
	"gopkg.in/yaml.v3"
)

func (a *app) listVariants(_ context.Context) error {
	return writeVariants(a.out, lambada.Variants())
}

func (a *app) info(_ context.Context) error {
	v, err := lambada.Lookup(*variantName)
	if err != nil {
		return err
	}
	return writeInfo(a.out, lambada.Describe(v), *outputFormat)
}

func writeVariants(w io.Writer, variants []lambada.Variant) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tSOURCE\tDESCRIPTION")
	for _, v := range variants {
		source := v.Source
		if v.Bundled() {
			source = "bundled:" + source
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, v.Version, source, v.Description)
	}
	return tw.Flush()
}

func writeInfo(w io.Writer, info lambada.Info, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(info); err != nil {
			return fmt.Errorf("encoding info as json: %w", err)
		}
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(info); err != nil {
			return fmt.Errorf("encoding info as yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encoding info as yaml: %w", err)
		}
	default:
		return fmt.Errorf("unsupported format %q, expected json or yaml", format)
	}
	return nil
}
