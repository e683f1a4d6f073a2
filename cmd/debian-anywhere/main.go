// Program debian-anywhere bootstraps an unprivileged Debian root file system,
// building make, fakeroot, fakechroot and debootstrap from source when they
// are not on $PATH.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/exec"

	"github.com/debanywhere/debanywhere"
	"github.com/debanywhere/debanywhere/internal/bootstrap"
	"github.com/debanywhere/debanywhere/internal/build"
	"github.com/debanywhere/debanywhere/internal/env"
	"github.com/debanywhere/debanywhere/internal/oninterrupt"
	"github.com/debanywhere/debanywhere/internal/trace"
	"golang.org/x/xerrors"
)

const helpText = `debian-anywhere [-flags] <target> [<tempdir>]

Bootstrap a Debian root file system into <target>/root without root
privileges. fakeroot and fakechroot are installed into <target>/utils if they
are not on $PATH. make and debootstrap are built in <tempdir>, which defaults
to a temporary directory that is removed at exit.

Enter the chroot using <target>/chroot.sh afterwards.

Example:
  % debian-anywhere -suite=bookworm ~/debian
`

var errUsage = errors.New("syntax: debian-anywhere <target> [<tempdir>]")

// exitCode maps err to the process exit status: the status of a failed
// external program, 3 for a tool still missing after its build, 1 otherwise.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if xerrors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	var notInstalled *build.NotInstalledError
	if xerrors.As(err, &notInstalled) {
		return 3
	}
	return 1
}

// scratchDir returns dir, or a process-owned temporary directory which is
// removed at exit and on interrupt if dir is empty.
func scratchDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	tmp, err := ioutil.TempDir("", "debian-anywhere")
	if err != nil {
		return "", err
	}
	cleanup := func() error { return os.RemoveAll(tmp) }
	debanywhere.RegisterAtExit(cleanup)
	oninterrupt.Register(func() {
		if err := cleanup(); err != nil {
			log.Printf("removing %s: %v", tmp, err)
		}
	})
	return tmp, nil
}

func run(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("debian-anywhere", flag.ExitOnError)
	var (
		suite = fset.String("suite",
			"stable",
			"Debian suite to bootstrap")

		mirror = fset.String("mirror",
			"",
			"Debian mirror URL to pass to debootstrap (default: debootstrap’s choice)")

		jobs = fset.Int("jobs",
			4,
			"make parallelism when building tools")

		recipesFile = fset.String("recipes",
			"",
			"path to a YAML file overriding the source archives of tools")

		prefetch = fset.Bool("prefetch",
			false,
			"download the archives of all missing tools concurrently before building")

		tracefile = fset.String("tracefile",
			"",
			"path to store a Chrome trace event file at")
	)
	fset.Usage = usage(fset, helpText)
	fset.Parse(args)
	if fset.NArg() < 1 || fset.NArg() > 2 {
		return errUsage
	}

	if *tracefile != "" {
		closeTrace, err := trace.Enable(*tracefile)
		if err != nil {
			return err
		}
		debanywhere.RegisterAtExit(closeTrace)
	}

	scratch, err := scratchDir(fset.Arg(1))
	if err != nil {
		return err
	}
	layout, err := debanywhere.NewLayout(fset.Arg(0), scratch)
	if err != nil {
		return err
	}

	recipes := build.DefaultRecipes(layout)
	if *recipesFile != "" {
		overrides, err := build.LoadOverrides(*recipesFile)
		if err != nil {
			return err
		}
		if err := build.ApplyOverrides(recipes, overrides); err != nil {
			return xerrors.Errorf("%s: %w", *recipesFile, err)
		}
	}

	bs := bootstrap.New(bootstrap.Config{
		Layout:   layout,
		Env:      env.FromOS(),
		Suite:    *suite,
		Mirror:   *mirror,
		Jobs:     *jobs,
		Prefetch: *prefetch,
		Recipes:  recipes,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	})
	return bs.Run(ctx)
}

func main() {
	err := run(context.Background(), os.Args[1:])
	if atErr := debanywhere.RunAtExit(); atErr != nil {
		log.Printf("cleanup: %v", atErr)
		if err == nil {
			err = atErr
		}
	}
	if err == errUsage {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "debian-anywhere: %+v\n", err)
		os.Exit(exitCode(err))
	}
}
