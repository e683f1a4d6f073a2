package bootstrap

import (
	"bytes"
	"path/filepath"
	"text/template"

	"github.com/google/renameio"
)

var chrootScriptTmpl = template.Must(template.New("chroot.sh").Parse(
	`PATH={{ .Target }}/utils/bin:$PATH
{{ .Fakeroot }} {{ .Fakechroot }} chroot {{ .Target }}/root $@
`))

// ChrootScript returns the contents of chroot.sh, which enters the root
// file system below target with fakeroot and fakechroot.
func ChrootScript(target, fakeroot, fakechroot string) ([]byte, error) {
	var buf bytes.Buffer
	err := chrootScriptTmpl.Execute(&buf, struct {
		Target     string
		Fakeroot   string
		Fakechroot string
	}{
		Target:     target,
		Fakeroot:   fakeroot,
		Fakechroot: fakechroot,
	})
	return buf.Bytes(), err
}

// WriteChrootScript atomically replaces target/chroot.sh with a script
// (mode 0700) for the given fakeroot and fakechroot executables.
func WriteChrootScript(target, fakeroot, fakechroot string) error {
	content, err := ChrootScript(target, fakeroot, fakechroot)
	if err != nil {
		return err
	}
	f, err := renameio.TempFile("", filepath.Join(target, "chroot.sh"))
	if err != nil {
		return err
	}
	defer f.Cleanup()
	if err := f.Chmod(0700); err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		return err
	}
	return f.CloseAtomicallyReplace()
}
