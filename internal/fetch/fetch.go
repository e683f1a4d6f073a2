// Package fetch downloads source archives and extracts them without letting
// any archive member escape the destination directory.
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/debanywhere/debanywhere/internal/trace"
	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// Fetcher downloads archives into a local cache directory. A file which is
// already present in the cache is not downloaded again.
//
// Download and FetchAndExtract may be called concurrently for different URLs.
type Fetcher struct {
	// DistfilesDir is the cache directory, e.g. /tmp/scratch/distfiles.
	DistfilesDir string

	// Client is used for HTTP requests. If nil, a client with transparent
	// compression disabled is used.
	Client *http.Client
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	// Transparent decompression would turn e.g. a .tar.gz served with
	// Content-Encoding: gzip into a plain tar file.
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DisableCompression = true
	return &http.Client{Transport: t}
}

// Filename returns the cache file name for rawurl.
func (f *Fetcher) Filename(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", xerrors.Errorf("url.Parse: %w", err)
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." || base == ".." {
		return "", xerrors.Errorf("%s: URL has no file name", rawurl)
	}
	return filepath.Join(f.DistfilesDir, base), nil
}

// Hash returns the hex-encoded SHA256 of the contents of fn.
func Hash(fn string) (string, error) {
	h := sha256.New()
	f, err := os.Open(fn)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Download makes rawurl available in the cache and returns its local file
// name. If hash is non-empty, the file must have that SHA256.
func (f *Fetcher) Download(ctx context.Context, rawurl, hash string) (string, error) {
	fn, err := f.Filename(rawurl)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(fn); err != nil {
		if !os.IsNotExist(err) {
			return "", err // file exists, but can’t access it?
		}
		ev := trace.Event("download "+path.Base(fn), "fetch")
		err := f.downloadHTTP(ctx, rawurl, fn)
		ev.Done()
		if err != nil {
			return "", xerrors.Errorf("download: %w", err)
		}
	} else {
		log.Printf("using cached %s", fn)
	}
	if hash != "" {
		log.Printf("verifying %s", fn)
		sum, err := Hash(fn)
		if err != nil {
			return "", err
		}
		if got, want := sum, hash; got != want {
			return "", xerrors.Errorf("hash mismatch for %s: got %s, want %s", fn, got, want)
		}
	}
	return fn, nil
}

func (f *Fetcher) get(ctx context.Context, rawurl string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawurl, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, err
	}
	if got, want := resp.StatusCode, http.StatusOK; got != want {
		resp.Body.Close()
		return nil, xerrors.Errorf("%s: unexpected HTTP status: got %d (%v), want %d", rawurl, got, resp.Status, want)
	}
	return resp, nil
}

// downloadHTTP writes the body of rawurl to fn. fn only appears once the
// download completed, so an interrupted run never leaves a truncated archive
// in the cache.
func (f *Fetcher) downloadHTTP(ctx context.Context, rawurl, fn string) error {
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		return err
	}
	log.Printf("downloading %s to %s", rawurl, fn)
	resp, err := f.get(ctx, rawurl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	out, err := renameio.TempFile("", fn)
	if err != nil {
		return err
	}
	defer out.Cleanup()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	return out.CloseAtomicallyReplace()
}

// Get returns the full body of rawurl. It is meant for small resources such
// as individual source files, which are not cached.
func (f *Fetcher) Get(ctx context.Context, rawurl string) ([]byte, error) {
	resp, err := f.get(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return ioutil.ReadAll(resp.Body)
}

// FetchAndExtract downloads rawurl (see Download) and extracts it into dest.
func (f *Fetcher) FetchAndExtract(ctx context.Context, rawurl, hash, dest string) error {
	fn, err := f.Download(ctx, rawurl, hash)
	if err != nil {
		return err
	}
	ev := trace.Event("extract "+filepath.Base(fn), "fetch")
	defer ev.Done()
	log.Printf("extracting %s into %s", fn, dest)
	if err := Extract(fn, dest); err != nil {
		return xerrors.Errorf("extract %s: %w", fn, err)
	}
	return nil
}
