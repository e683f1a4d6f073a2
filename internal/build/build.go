// Package build fetches, patches, configures, builds and installs the tools
// which a Debian bootstrap needs, but only when they cannot be found on $PATH.
package build

import (
	"context"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/debanywhere/debanywhere"
	"github.com/debanywhere/debanywhere/internal/env"
	"github.com/debanywhere/debanywhere/internal/fetch"
	"github.com/debanywhere/debanywhere/internal/trace"
	"github.com/debanywhere/debanywhere/internal/which"
	"github.com/mattn/go-isatty"
	"golang.org/x/xerrors"
)

// Ctx is a build context: it contains the state shared by all recipes of one
// bootstrap run.
type Ctx struct {
	Layout  debanywhere.Layout
	Env     *env.Environ // passed to every subprocess; its PATH is used for lookups
	Fetcher *fetch.Fetcher
	Jobs    int // make parallelism

	Stdout   io.Writer // defaults to os.Stdout
	Stderr   io.Writer // defaults to os.Stderr
	BuildLog io.Writer // if non-nil, receives a copy of all subprocess output

	installers map[string]*Installer
}

// NewCtx returns a build context which downloads into the distfiles directory
// of layout.
func NewCtx(layout debanywhere.Layout, environ *env.Environ) *Ctx {
	return &Ctx{
		Layout:     layout,
		Env:        environ,
		Fetcher:    &fetch.Fetcher{DistfilesDir: layout.DistfilesDir()},
		Jobs:       4,
		installers: make(map[string]*Installer),
	}
}

// Register makes r available as an Installer, replacing any earlier recipe
// for the same tool.
func (b *Ctx) Register(r *Recipe) *Installer {
	i := &Installer{Recipe: r, b: b}
	b.installers[r.Name] = i
	return i
}

// Installer returns the Installer of the named tool.
func (b *Ctx) Installer(name string) (*Installer, error) {
	i, ok := b.installers[name]
	if !ok {
		return nil, xerrors.Errorf("no recipe for %s", name)
	}
	return i, nil
}

// Resolve locates program on the build context’s $PATH.
func (b *Ctx) Resolve(program string) (string, bool) {
	return which.Lookup(program, b.Env.Path())
}

// SourceDir returns the directory into which r’s archive extracts.
func (b *Ctx) SourceDir(r *Recipe) string {
	return filepath.Join(b.Layout.Scratch, r.SourceDir)
}

func (b *Ctx) output(w io.Writer, fallback io.Writer) io.Writer {
	if w == nil {
		w = fallback
	}
	if b.BuildLog != nil {
		return io.MultiWriter(w, b.BuildLog)
	}
	return w
}

// run executes argv in dir (the current directory if empty) with the build
// context’s environment. argv[0] is looked up on the context’s $PATH, not
// the process’s.
func (b *Ctx) run(ctx context.Context, dir string, argv ...string) error {
	program := argv[0]
	if !strings.ContainsRune(program, os.PathSeparator) {
		p, ok := b.Resolve(program)
		if !ok {
			return xerrors.Errorf("%s: not found in PATH", program)
		}
		program = p
	}
	cmd := exec.CommandContext(ctx, program, argv[1:]...)
	cmd.Dir = dir
	cmd.Env = b.Env.Slice()
	// Only offer stdin when a human can answer: a configure script prompting
	// in a non-interactive run should fail instead of blocking forever.
	if isatty.IsTerminal(os.Stdin.Fd()) {
		cmd.Stdin = os.Stdin
	}
	cmd.Stdout = b.output(b.Stdout, os.Stdout)
	cmd.Stderr = b.output(b.Stderr, os.Stderr)
	if err := cmd.Run(); err != nil {
		return xerrors.Errorf("%v: %w", cmd.Args, err)
	}
	return nil
}

// Build runs the full pipeline of r: fetch and extract the source archive,
// apply the patches, then hand over to r’s Builder.
func (b *Ctx) Build(ctx context.Context, r *Recipe) error {
	if r.Builder == nil {
		return xerrors.Errorf("recipe %s: no builder", r.Name)
	}
	src := b.SourceDir(r)
	if err := b.Fetcher.FetchAndExtract(ctx, r.Source, r.Hash, b.Layout.Scratch); err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		return xerrors.Errorf("archive %s did not contain %s: %w", r.Source, r.SourceDir, err)
	}
	for _, p := range r.Patches {
		log.Printf("patching %s: %v", r.Name, p)
		ev := trace.Event("patch "+r.Name, "patch").Arg("edit", p.String())
		err := p.apply(ctx, b, src)
		ev.Done()
		if err != nil {
			return xerrors.Errorf("patching %s: %w", r.Name, err)
		}
	}
	return r.Builder.build(ctx, b, r)
}

// step runs argv as one traced build step of r.
func (b *Ctx) step(ctx context.Context, r *Recipe, dir string, argv ...string) error {
	log.Printf("build step %s: %v", r.Name, argv)
	ev := trace.Event(filepath.Base(argv[0])+" "+r.Name, "build")
	defer ev.Done()
	return b.run(ctx, dir, argv...)
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Chmod(fi.Mode().Perm()); err != nil {
		return err
	}
	return out.Close()
}

// copyTree copies the regular files, directories and symlinks of src to
// dest, like cp -r.
func copyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		switch {
		case info.IsDir():
			return os.MkdirAll(target, 0755)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(path, target)
		default:
			log.Printf("ERROR: unsupported file: %v", path)
			return nil
		}
	})
}
