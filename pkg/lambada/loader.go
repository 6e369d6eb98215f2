package lambada

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"net/url"
	"os"
	"path/filepath"
)

// Materializer ensures a source location exists as a local file and returns its path.
// Local paths are returned unchanged.
type Materializer interface {
	Materialize(ctx context.Context, source string) (string, error)
}

// Loader resolves variants to local files and streams their records.
type Loader struct {
	fetcher Materializer
	dataDir string // bundled sources are resolved against this directory
}

// NewLoader creates a Loader. The fetcher may be nil if only bundled variants are loaded.
func NewLoader(fetcher Materializer, dataDir string) *Loader {
	return &Loader{
		fetcher: fetcher,
		dataDir: dataDir,
	}
}

// Open looks up the named variant, materializes its source and returns a lazy
// sequence of its records.
func (l *Loader) Open(ctx context.Context, name string) (Variant, iter.Seq2[Record, error], error) {
	v, err := Lookup(name)
	if err != nil {
		return Variant{}, nil, err
	}
	path, err := l.Resolve(ctx, v)
	if err != nil {
		return v, nil, err
	}
	return v, Generate(path), nil
}

// Resolve returns the local path of the variant's source, downloading it if needed.
// A bundled source that is missing from the data directory is fetched from the
// variant's mirror instead, when it has one.
func (l *Loader) Resolve(ctx context.Context, v Variant) (string, error) {
	source := v.Source
	if v.Bundled() {
		path := source
		if !filepath.IsAbs(path) {
			path = filepath.Join(l.dataDir, path)
		}
		if v.Mirror == "" {
			return path, nil
		}
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		source = v.Mirror
	}

	if l.fetcher == nil {
		return "", fmt.Errorf("%w %s: no fetcher configured", ErrFetch, source)
	}
	path, err := l.fetcher.Materialize(ctx, source)
	if err != nil {
		return "", fmt.Errorf("%w %s: %w", ErrFetch, source, err)
	}
	return path, nil
}

func isRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
