package build

import (
	"path"
	"strings"
)

var archiveSuffixes = []string{
	".tar.gz",
	".tgz",
	".tar.bz2",
	".tar.xz",
	".tar.zst",
	".tar",
}

// SourceDirFromArchive guesses the top-level directory of a source archive
// from its URL or file name. Debian pool archives (name_version.orig.tar.*)
// and GNU-style archives (name-version.tar.*) both result in name-version,
// e.g. fakeroot_1.20.2.orig.tar.bz2 becomes fakeroot-1.20.2.
func SourceDirFromArchive(archive string) string {
	base := path.Base(archive)
	for _, ext := range archiveSuffixes {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}
	base = strings.TrimSuffix(base, ".orig")
	// Debian package names and versions cannot contain an underscore.
	return strings.Replace(base, "_", "-", 1)
}
