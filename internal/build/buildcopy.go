package build

import (
	"context"
	"os"
	"path/filepath"

	"github.com/debanywhere/debanywhere/internal/trace"
)

// CopyBuilder installs interpreted programs which need no compilation, such
// as debootstrap: programs go to <prefix>/bin, data files and directories to
// <prefix>/share/<ShareDir>.
type CopyBuilder struct {
	Bin      []string // relative to the source directory
	Share    []string // relative to the source directory; files or directories
	ShareDir string   // e.g. debootstrap
}

func (cb *CopyBuilder) build(ctx context.Context, b *Ctx, r *Recipe) error {
	ev := trace.Event("install "+r.Name, "build")
	defer ev.Done()
	src := b.SourceDir(r)
	for _, fn := range cb.Bin {
		dest := filepath.Join(r.Prefix, "bin", filepath.Base(fn))
		if err := copyFile(filepath.Join(src, fn), dest); err != nil {
			return err
		}
		// debootstrap ships without the executable bit in some tarballs.
		if err := os.Chmod(dest, 0755); err != nil {
			return err
		}
	}
	shareDir := filepath.Join(r.Prefix, "share", cb.ShareDir)
	if err := os.MkdirAll(shareDir, 0755); err != nil {
		return err
	}
	for _, fn := range cb.Share {
		if err := copyTree(filepath.Join(src, fn), filepath.Join(shareDir, fn)); err != nil {
			return err
		}
	}
	return nil
}
