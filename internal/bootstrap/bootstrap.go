// Package bootstrap runs the fixed bootstrap sequence: prepare directories,
// compose $PATH, ensure debootstrap and fakechroot, run debootstrap under
// fakeroot and fakechroot, and write chroot.sh.
package bootstrap

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/debanywhere/debanywhere"
	"github.com/debanywhere/debanywhere/internal/build"
	"github.com/debanywhere/debanywhere/internal/env"
	"github.com/debanywhere/debanywhere/internal/trace"
	"golang.org/x/xerrors"
)

// Config configures a bootstrap run.
type Config struct {
	Layout debanywhere.Layout

	// Env is the environment of all subprocesses. Its PATH is extended by
	// ComposePath.
	Env *env.Environ

	// Suite is the Debian suite to bootstrap, e.g. stable.
	Suite string

	// Mirror is passed to debootstrap if non-empty.
	Mirror string

	// Jobs is the make parallelism.
	Jobs int

	// Prefetch downloads the archives of all missing tools concurrently
	// before building anything.
	Prefetch bool

	// Recipes default to build.DefaultRecipes(Layout).
	Recipes []*build.Recipe

	// Client is used for all downloads. If nil, the fetch package default
	// applies.
	Client *http.Client

	Stdout   io.Writer
	Stderr   io.Writer
	BuildLog io.Writer
}

// Bootstrapper drives one bootstrap run. Each step must only be called after
// the preceding one succeeded; Run calls them all in order.
type Bootstrapper struct {
	cfg Config
	b   *build.Ctx
}

func New(cfg Config) *Bootstrapper {
	if cfg.Env == nil {
		cfg.Env = env.FromOS()
	}
	if cfg.Suite == "" {
		cfg.Suite = "stable"
	}
	if cfg.Recipes == nil {
		cfg.Recipes = build.DefaultRecipes(cfg.Layout)
	}
	b := build.NewCtx(cfg.Layout, cfg.Env)
	b.Fetcher.Client = cfg.Client
	if cfg.Jobs > 0 {
		b.Jobs = cfg.Jobs
	}
	b.Stdout = cfg.Stdout
	b.Stderr = cfg.Stderr
	b.BuildLog = cfg.BuildLog
	for _, r := range cfg.Recipes {
		b.Register(r)
	}
	return &Bootstrapper{cfg: cfg, b: b}
}

func mkdirAll(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil && !os.IsExist(err) {
		return err
	}
	return nil
}

// PrepareDirs creates the scratch bin directory and the target utils
// directory. Existing directories are fine.
func (bs *Bootstrapper) PrepareDirs() error {
	for _, dir := range []string{
		bs.cfg.Layout.ScratchBinDir(),
		bs.cfg.Layout.UtilsDir(),
	} {
		if err := mkdirAll(dir); err != nil {
			return err
		}
	}
	return nil
}

// ComposePath places utils/bin and the scratch bin directory in front of the
// inherited $PATH, so that tools built during this run take precedence over
// the host’s.
func (bs *Bootstrapper) ComposePath() {
	bs.cfg.Env.PrependPath(
		bs.cfg.Layout.UtilsBinDir(),
		bs.cfg.Layout.ScratchBinDir())
}

func (bs *Bootstrapper) installer(name string) *build.Installer {
	i, err := bs.b.Installer(name)
	if err != nil {
		panic("BUG: " + err.Error())
	}
	return i
}

// EnsurePrerequisites installs debootstrap and fakechroot without running
// them. fakeroot and make are installed when first needed.
func (bs *Bootstrapper) EnsurePrerequisites(ctx context.Context) error {
	for _, name := range []string{"debootstrap", "fakechroot"} {
		if err := bs.installer(name).Install(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SkipFakeroot reports whether FAKECHROOT=true asks to run debootstrap without
// the fakeroot layer.
func (bs *Bootstrapper) SkipFakeroot() bool {
	return bs.cfg.Env.Get("FAKECHROOT") == "true"
}

// bootstrapCommand returns the outermost wrapper to invoke and its arguments:
// fakeroot fakechroot debootstrap ..., or fakechroot debootstrap ... when
// fakeroot is skipped.
func (bs *Bootstrapper) bootstrapCommand(fakechroot, debootstrap string) (*build.Installer, []string) {
	args := []string{"--variant=fakechroot", bs.cfg.Suite, bs.cfg.Layout.RootDir()}
	if bs.cfg.Mirror != "" {
		args = append(args, bs.cfg.Mirror)
	}
	if bs.SkipFakeroot() {
		return bs.installer("fakechroot"), append([]string{debootstrap}, args...)
	}
	return bs.installer("fakeroot"), append([]string{fakechroot, debootstrap}, args...)
}

// Debootstrap populates the target’s root directory.
func (bs *Bootstrapper) Debootstrap(ctx context.Context) error {
	ev := trace.Event("debootstrap", "bootstrap").Arg("suite", bs.cfg.Suite)
	defer ev.Done()
	debootstrap, err := bs.installer("debootstrap").Ensure(ctx)
	if err != nil {
		return err
	}
	fakechroot, err := bs.installer("fakechroot").Ensure(ctx)
	if err != nil {
		return err
	}
	wrapper, args := bs.bootstrapCommand(fakechroot, debootstrap)
	// Building fakeroot must not see DEBOOTSTRAP_DIR.
	if err := wrapper.Install(ctx); err != nil {
		return err
	}
	if bs.cfg.Layout.InScratch(debootstrap) {
		// Our debootstrap was not installed into /usr, so point it to its
		// functions and scripts.
		restore := bs.cfg.Env.Scoped("DEBOOTSTRAP_DIR", bs.cfg.Layout.DebootstrapDir())
		defer restore()
	}
	return wrapper.Invoke(ctx, args...)
}

// WriteScript writes chroot.sh into the target directory.
func (bs *Bootstrapper) WriteScript(ctx context.Context) error {
	fakeroot, err := bs.installer("fakeroot").Ensure(ctx)
	if err != nil {
		return err
	}
	fakechroot, err := bs.installer("fakechroot").Ensure(ctx)
	if err != nil {
		return err
	}
	return WriteChrootScript(bs.cfg.Layout.Target, fakeroot, fakechroot)
}

// Run executes the whole bootstrap sequence. The first failing step aborts
// the run; nothing is rolled back.
func (bs *Bootstrapper) Run(ctx context.Context) error {
	l := bs.cfg.Layout
	log.Printf("bootstrapping %s into %s (scratch directory %s)", bs.cfg.Suite, l.Target, l.Scratch)
	if err := bs.PrepareDirs(); err != nil {
		return xerrors.Errorf("preparing directories: %w", err)
	}
	bs.ComposePath()
	if bs.cfg.Prefetch {
		if err := bs.Prefetch(ctx); err != nil {
			return xerrors.Errorf("prefetch: %w", err)
		}
	}
	if err := bs.EnsurePrerequisites(ctx); err != nil {
		return err
	}
	if err := bs.Debootstrap(ctx); err != nil {
		return err
	}
	if err := bs.WriteScript(ctx); err != nil {
		return xerrors.Errorf("writing %s: %w", filepath.Base(l.ScriptPath()), err)
	}
	log.Printf("done: enter the chroot using %s", l.ScriptPath())
	return nil
}
