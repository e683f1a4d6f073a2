package build

import (
	"context"
	"path/filepath"
	"strconv"
)

// CBuilder builds autotools-style C projects: ./configure --prefix, make,
// make install. The make invocations go through the make Installer, so make
// itself is built first if the host lacks it.
type CBuilder struct {
	ExtraConfigureFlags []string
	ExtraMakeFlags      []string
}

// configure runs the configure script of r. configure writes its output
// files into the current directory, so it runs within the source directory
// (via exec.Cmd.Dir; the process working directory stays untouched).
func configure(ctx context.Context, b *Ctx, r *Recipe, extra ...string) error {
	src := b.SourceDir(r)
	argv := append([]string{
		filepath.Join(src, "configure"),
		"--prefix", r.Prefix,
	}, extra...)
	return b.step(ctx, r, src, argv...)
}

func (cb *CBuilder) build(ctx context.Context, b *Ctx, r *Recipe) error {
	if err := configure(ctx, b, r, cb.ExtraConfigureFlags...); err != nil {
		return err
	}
	mk, err := b.Installer("make")
	if err != nil {
		return err
	}
	src := b.SourceDir(r)
	args := []string{"-C", src}
	if b.Jobs > 0 {
		args = append(args, "-j", strconv.Itoa(b.Jobs))
	}
	if err := mk.Invoke(ctx, append(args, cb.ExtraMakeFlags...)...); err != nil {
		return err
	}
	return mk.Invoke(ctx, append([]string{"install", "-C", src}, cb.ExtraMakeFlags...)...)
}
