package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// cacheNamespace is the directory under the cache dir owned by this package.
const cacheNamespace = "lambada"

func parseRemote(source string) (*url.URL, bool) {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}

// cachePath maps a URL to <cache dir>/lambada/<host>/<path>, dropping any
// compression suffix. A digest of the query string is appended to the file
// name so URLs differing only in their query don't collide.
func (f *Fetcher) cachePath(u *url.URL) (string, error) {
	clean := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	if clean == "" {
		clean = "index"
	}
	clean, _ = compressionOf(clean)
	if u.RawQuery != "" {
		sum := sha256.Sum256([]byte(u.RawQuery))
		clean += "-" + hex.EncodeToString(sum[:6])
	}
	host := strings.ReplaceAll(u.Host, ":", "_")
	if host == "." || host == ".." {
		return "", fmt.Errorf("invalid host in url %q", u)
	}
	return filepath.Join(f.cacheDir, cacheNamespace, host, filepath.FromSlash(clean)), nil
}

type compression int

const (
	compressionNone compression = iota
	compressionGzip
	compressionZstd
)

// compressionOf reports the compression implied by a file name's extension,
// and the name without it.
func compressionOf(name string) (string, compression) {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return strings.TrimSuffix(name, ".gz"), compressionGzip
	case strings.HasSuffix(name, ".zst"):
		return strings.TrimSuffix(name, ".zst"), compressionZstd
	default:
		return name, compressionNone
	}
}

// copyDecompressed copies src to dst, decompressing according to the
// extension of name. Returns the number of bytes written to dst.
func copyDecompressed(dst io.Writer, src io.Reader, name string) (int64, error) {
	_, comp := compressionOf(name)
	switch comp {
	case compressionGzip:
		gz, err := gzip.NewReader(src)
		if err != nil {
			return 0, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gz.Close()
		return io.Copy(dst, gz)
	case compressionZstd:
		zr, err := zstd.NewReader(src)
		if err != nil {
			return 0, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		return io.Copy(dst, zr)
	default:
		return io.Copy(dst, src)
	}
}
