package build

import "context"

// Recipe describes how to obtain exactly one tool. Recipes are static
// configuration: the Installer wrapping a Recipe decides whether it needs to
// run at all.
type Recipe struct {
	// Name is the executable looked up on $PATH, e.g. fakechroot.
	Name string

	// Source is the URL of the source archive.
	Source string

	// SourceDir is the top-level directory of the archive, relative to the
	// scratch directory, e.g. fakechroot-2.17.2.
	SourceDir string

	// Hash is the hex-encoded SHA256 of the archive. If empty, the archive is
	// not verified.
	Hash string

	// Prefix is the installation prefix, e.g. /home/michael/sid/utils.
	Prefix string

	// Patches are applied to the extracted sources before building.
	Patches []Edit

	Builder Builder
}

// Builder turns the extracted (and patched) sources of a recipe into an
// installed tool.
type Builder interface {
	build(ctx context.Context, b *Ctx, r *Recipe) error
}
