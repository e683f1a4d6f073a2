package build

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/xerrors"
)

// NotInstalledError means a recipe ran to completion, but its tool still
// cannot be found on $PATH: the recipe is broken or installs into a prefix
// which is not on $PATH. Retrying cannot help.
type NotInstalledError struct {
	Tool   string
	Prefix string
}

func (e *NotInstalledError) Error() string {
	return fmt.Sprintf("installing %s (into %s) did not add the executable to $PATH", e.Tool, e.Prefix)
}

// Installer is the only way a bootstrap run uses an external tool: it builds
// the tool if it cannot be found on $PATH, then optionally runs it. Callers
// cannot tell whether the tool was already present.
type Installer struct {
	Recipe *Recipe

	b *Ctx
}

func (i *Installer) Name() string { return i.Recipe.Name }

// Ensure returns the location of the tool, running its recipe first if the
// tool is not on $PATH.
func (i *Installer) Ensure(ctx context.Context) (string, error) {
	name := i.Recipe.Name
	if command, ok := i.b.Resolve(name); ok {
		return command, nil
	}
	log.Printf("%s not found in PATH, installing from %s", name, i.Recipe.Source)
	if err := i.b.Build(ctx, i.Recipe); err != nil {
		return "", xerrors.Errorf("installing %s: %w", name, err)
	}
	command, ok := i.b.Resolve(name)
	if !ok {
		return "", &NotInstalledError{Tool: name, Prefix: i.Recipe.Prefix}
	}
	return command, nil
}

// Call ensures the tool is present and, unless installOnly is set, runs it
// with args. A non-zero exit status is returned as an error wrapping
// *exec.ExitError.
func (i *Installer) Call(ctx context.Context, installOnly bool, args ...string) error {
	if installOnly && len(args) > 0 {
		panic(fmt.Sprintf("BUG: install-only call of %s with arguments %q", i.Recipe.Name, args))
	}
	command, err := i.Ensure(ctx)
	if err != nil {
		return err
	}
	if installOnly {
		return nil
	}
	log.Printf("calling %s with arguments: %q", i.Recipe.Name, args)
	return i.b.run(ctx, "", append([]string{command}, args...)...)
}

// Install makes the tool available without running it.
func (i *Installer) Install(ctx context.Context) error {
	return i.Call(ctx, true)
}

// Invoke runs the tool with args, installing it first if necessary.
func (i *Installer) Invoke(ctx context.Context, args ...string) error {
	return i.Call(ctx, false, args...)
}
