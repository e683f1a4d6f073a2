package build

import (
	"io/ioutil"
	"sort"
	"strings"

	"github.com/debanywhere/debanywhere"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// fakechrootAuditURL is src/audit.c from an upstream commit adding the audit
// wrapper, which fakechroot 2.17.2 needs to build against current glibc.
const fakechrootAuditURL = "https://raw.githubusercontent.com/sveniu/fakechroot/628237d9e421d6f882be32a061f8f786a0d47103/src/audit.c"

// DefaultRecipes returns the recipes for make, fakeroot, fakechroot and
// debootstrap. fakeroot and fakechroot install into the target’s utils
// directory, as chroot.sh needs them later. make and debootstrap are only
// needed during the run and install into the scratch directory.
func DefaultRecipes(l debanywhere.Layout) []*Recipe {
	return []*Recipe{
		{
			Name:      "make",
			Source:    "http://alpha.gnu.org/gnu/make/make-4.1.90.tar.bz2",
			SourceDir: "make-4.1.90",
			Prefix:    l.Scratch,
			Builder: &ScriptBuilder{
				Configure: true,
				Steps: [][]string{
					{"./build.sh"},
					{"./make", "install"},
				},
			},
		},
		{
			Name:      "fakeroot",
			Source:    "http://http.debian.net/debian/pool/main/f/fakeroot/fakeroot_1.20.2.orig.tar.bz2",
			SourceDir: "fakeroot-1.20.2",
			Prefix:    l.UtilsDir(),
			Builder:   &CBuilder{},
		},
		{
			Name:      "fakechroot",
			Source:    "http://http.debian.net/debian/pool/main/f/fakechroot/fakechroot_2.17.2.orig.tar.gz",
			SourceDir: "fakechroot-2.17.2",
			Prefix:    l.UtilsDir(),
			Patches: []Edit{
				AppendURL{File: "src/audit.c", URL: fakechrootAuditURL},
				Substitute{File: "configure.ac", Old: "acct", New: "acct\n    audit"},
				Substitute{File: "src/Makefile.am", Old: "acct.c", New: "acct.c \n    audit"},
			},
			Builder: &CBuilder{},
		},
		{
			Name:      "debootstrap",
			Source:    "http://http.debian.net/debian/pool/main/d/debootstrap/debootstrap_1.0.67.tar.gz",
			SourceDir: "debootstrap-1.0.67",
			Prefix:    l.Scratch,
			Builder: &CopyBuilder{
				Bin:      []string{"debootstrap"},
				Share:    []string{"functions", "scripts"},
				ShareDir: "debootstrap",
			},
		},
	}
}

// Override replaces the source archive of a recipe, e.g. to use a local
// mirror or a newer upstream release.
type Override struct {
	Source    string `yaml:"source"`
	SourceDir string `yaml:"source_dir"`
	Hash      string `yaml:"sha256"`
}

// LoadOverrides reads a YAML file mapping tool names to Overrides:
//
//	fakeroot:
//	  source: https://deb.debian.org/debian/pool/main/f/fakeroot/fakeroot_1.20.2.orig.tar.bz2
//	  source_dir: fakeroot-1.20.2
//	  sha256: <hex-encoded SHA256 of the archive>
func LoadOverrides(fn string) (map[string]Override, error) {
	b, err := ioutil.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	var overrides map[string]Override
	if err := yaml.Unmarshal(b, &overrides); err != nil {
		return nil, xerrors.Errorf("%s: %w", fn, err)
	}
	return overrides, nil
}

// ApplyOverrides modifies recipes in place. A new source without a source_dir
// gets the directory SourceDirFromArchive guesses. Overrides for unknown tools
// are rejected, as they most likely are typos.
func ApplyOverrides(recipes []*Recipe, overrides map[string]Override) error {
	byName := make(map[string]*Recipe, len(recipes))
	for _, r := range recipes {
		byName[r.Name] = r
	}
	var unknown []string
	for name, o := range overrides {
		r, ok := byName[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if o.Source != "" {
			r.Source = o.Source
			r.SourceDir = SourceDirFromArchive(o.Source)
		}
		if o.SourceDir != "" {
			r.SourceDir = o.SourceDir
		}
		if o.Hash != "" {
			r.Hash = o.Hash
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return xerrors.Errorf("overrides for unknown tools: %s", strings.Join(unknown, ", "))
	}
	return nil
}
