package build

import (
	"context"
	"path/filepath"
	"strings"
)

// ScriptBuilder builds projects which bring their own bootstrap script. GNU
// make is the prime example: building it with make would need make.
type ScriptBuilder struct {
	// Configure runs ./configure --prefix before the Steps.
	Configure bool

	// Steps are run in order within the source directory. A program
	// starting with ./ refers to the source directory.
	Steps [][]string
}

func (sb *ScriptBuilder) build(ctx context.Context, b *Ctx, r *Recipe) error {
	if sb.Configure {
		if err := configure(ctx, b, r); err != nil {
			return err
		}
	}
	src := b.SourceDir(r)
	for _, step := range sb.Steps {
		argv := append([]string(nil), step...)
		if strings.HasPrefix(argv[0], "./") {
			argv[0] = filepath.Join(src, argv[0])
		}
		if err := b.step(ctx, r, src, argv...); err != nil {
			return err
		}
	}
	return nil
}
