package build

import "testing"

func TestSourceDirFromArchive(t *testing.T) {
	for _, tt := range []struct {
		archive string
		want    string
	}{
		{
			archive: "http://alpha.gnu.org/gnu/make/make-4.1.90.tar.bz2",
			want:    "make-4.1.90",
		},

		{
			archive: "http://http.debian.net/debian/pool/main/f/fakeroot/fakeroot_1.20.2.orig.tar.bz2",
			want:    "fakeroot-1.20.2",
		},

		{
			archive: "fakechroot_2.17.2.orig.tar.gz",
			want:    "fakechroot-2.17.2",
		},

		{
			archive: "debootstrap_1.0.128+nmu2.tar.gz",
			want:    "debootstrap-1.0.128+nmu2",
		},

		{
			archive: "/srv/mirror/hello-2.10.tgz",
			want:    "hello-2.10",
		},

		{
			archive: "zstd-1.5.5.tar.zst",
			want:    "zstd-1.5.5",
		},
	} {
		t.Run(tt.archive, func(t *testing.T) {
			if got := SourceDirFromArchive(tt.archive); got != tt.want {
				t.Fatalf("SourceDirFromArchive(%v) = %v, want %v", tt.archive, got, tt.want)
			}
		})
	}
}
