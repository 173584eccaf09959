// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fetch

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ulikunitz/xz"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/platform"
	"github.com/goplus/pkgsmith/recipe"
)

type entry struct {
	name, body string
}

func tarXz(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(xw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if strings.HasSuffix(e.name, "/") {
			hdr = &tar.Header{Name: e.name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(e.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := xw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zipOf(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(e.body))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// archiveServer serves files by URL path and counts requests.
type archiveServer struct {
	*httptest.Server
	files map[string][]byte
	hits  atomic.Int32
}

func newArchiveServer(t *testing.T) *archiveServer {
	s := &archiveServer{files: make(map[string][]byte)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		data, ok := s.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(s.Close)
	return s
}

func downloadRecipe(url string) *recipe.Recipe {
	return &recipe.Recipe{
		Name: "rt",
		Source: recipe.Source{Download: &recipe.Download{
			URL:       url + "/{{.Tag}}/rt-{{.Tag}}-{{.Arch}}-{{.OS}}-c-api.{{.Ext}}",
			StripRoot: true,
			OS:        map[string]string{platform.Linux: "linux", platform.Windows: "windows"},
			Arch:      map[string]string{platform.ARMv8: "aarch64"},
			SHA256:    map[string]string{},
		}},
	}
}

var linuxArm = platform.Triple{OS: platform.Linux, Arch: platform.ARMv8, BuildType: platform.Release}

func TestFetchDownloadTarXz(t *testing.T) {
	srv := newArchiveServer(t)
	srv.files["/v1.0.0/rt-v1.0.0-aarch64-linux-c-api.tar.xz"] = tarXz(t,
		entry{"rt-v1.0.0-aarch64-linux-c-api/", ""},
		entry{"rt-v1.0.0-aarch64-linux-c-api/include/rt.h", "#pragma once\n"},
		entry{"rt-v1.0.0-aarch64-linux-c-api/lib/librt.a", "!<arch>\n"},
	)
	r := downloadRecipe(srv.URL)
	dir := filepath.Join(t.TempDir(), "source", "Linux", "armv8")

	f := New()
	src, err := f.Fetch(context.Background(), r, "1.0.0", linuxArm, dir)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if data, err := os.ReadFile(filepath.Join(dir, "include", "rt.h")); err != nil || string(data) != "#pragma once\n" {
		t.Errorf("include/rt.h = %q, %v", data, err)
	}
	if src.Digest == "" || src.Strategy != "download" {
		t.Errorf("Source = %+v", src)
	}

	again, err := f.Fetch(context.Background(), r, "1.0.0", linuxArm, dir)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Reused || srv.hits.Load() != 1 {
		t.Errorf("second fetch: reused=%v hits=%d", again.Reused, srv.hits.Load())
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.Base(markerPath(dir)))); err == nil {
		t.Error("marker written inside the source tree")
	}
}

func TestFetchDownloadWindowsZip(t *testing.T) {
	srv := newArchiveServer(t)
	srv.files["/v1.0.0/rt-v1.0.0-x86_64-windows-c-api.zip"] = zipOf(t,
		entry{"rt-v1.0.0-x86_64-windows-c-api/include/rt.h", "h"},
		entry{"rt-v1.0.0-x86_64-windows-c-api/lib/rt.lib", "lib"},
	)
	r := downloadRecipe(srv.URL)
	dir := filepath.Join(t.TempDir(), "src")
	triple := platform.Triple{OS: platform.Windows, Arch: platform.X86_64, BuildType: platform.Release}

	if _, err := New().Fetch(context.Background(), r, "1.0.0", triple, dir); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "lib", "rt.lib")); err != nil {
		t.Errorf("lib/rt.lib missing: %v", err)
	}
}

func TestFetchDownloadChecksum(t *testing.T) {
	srv := newArchiveServer(t)
	data := tarXz(t, entry{"root/include/rt.h", "h"})
	srv.files["/v1.0.0/rt-v1.0.0-aarch64-linux-c-api.tar.xz"] = data
	sum := sha256.Sum256(data)

	r := downloadRecipe(srv.URL)
	r.Source.Download.SHA256["Linux/armv8"] = strings.Repeat("0", 64)
	_, err := New().Fetch(context.Background(), r, "1.0.0", linuxArm, filepath.Join(t.TempDir(), "a"))
	if errors.KindOf(err) != errors.KindFetch || !strings.Contains(err.Error(), "checksum") {
		t.Fatalf("Fetch() error = %v, want checksum FetchError", err)
	}

	r.Source.Download.SHA256["Linux/armv8"] = hex.EncodeToString(sum[:])
	src, err := New().Fetch(context.Background(), r, "1.0.0", linuxArm, filepath.Join(t.TempDir(), "b"))
	if err != nil {
		t.Fatalf("Fetch with matching digest: %v", err)
	}
	if src.Digest != hex.EncodeToString(sum[:]) {
		t.Errorf("Digest = %s", src.Digest)
	}
}

func TestFetchDownloadErrors(t *testing.T) {
	srv := newArchiveServer(t)
	srv.files["/v2.0.0/rt-v2.0.0-aarch64-linux-c-api.tar.xz"] = tarXz(t, entry{"../evil.h", "x"})
	r := downloadRecipe(srv.URL)

	tests := []struct {
		name    string
		version string
		triple  platform.Triple
		want    errors.Kind
	}{
		{"not found", "1.0.0", linuxArm, errors.KindFetch},
		{"path escape", "2.0.0", linuxArm, errors.KindFetch},
		{"unsupported os", "1.0.0", platform.Triple{OS: platform.IOS, Arch: platform.ARMv8, BuildType: platform.Release}, errors.KindUnsupportedPlatform},
		{"bad version", "latest", linuxArm, errors.KindConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "src")
			_, err := New().Fetch(context.Background(), r, tt.version, tt.triple, dir)
			if got := errors.KindOf(err); got != tt.want {
				t.Errorf("Fetch() error = %v, want %s", err, tt.want)
			}
			if _, err := os.Stat(dir); err == nil {
				t.Error("failed fetch left a source directory behind")
			}
		})
	}
	// unsupported os and bad version never reach the server
	if hits := srv.hits.Load(); hits != 2 {
		t.Errorf("server hits = %d, want 2", hits)
	}
}

func TestFetchDownloadDevIsNotReused(t *testing.T) {
	srv := newArchiveServer(t)
	srv.files["/dev/rt-dev-aarch64-linux-c-api.tar.xz"] = tarXz(t, entry{"root/include/rt.h", "h"})
	r := downloadRecipe(srv.URL)
	dir := filepath.Join(t.TempDir(), "src")

	for i := 0; i < 2; i++ {
		src, err := New().Fetch(context.Background(), r, recipe.DevVersion, linuxArm, dir)
		if err != nil {
			t.Fatalf("Fetch #%d: %v", i, err)
		}
		if src.Reused {
			t.Errorf("Fetch #%d reused a dev download", i)
		}
	}
	if srv.hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", srv.hits.Load())
	}
}

// fakeVCS records clones and writes a file in place of a checkout.
type fakeVCS struct {
	remotes []string
	refs    []string
	err     error
}

func (v *fakeVCS) Clone(ctx context.Context, remote, ref, dir string) error {
	v.remotes = append(v.remotes, remote)
	v.refs = append(v.refs, ref)
	if v.err != nil {
		return v.err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte(ref), 0o644)
}

func (v *fakeVCS) Sync(ctx context.Context, remote, ref, dir string) error { return nil }

func (v *fakeVCS) Tags(ctx context.Context, remote string) ([]string, error) { return nil, nil }

func (v *fakeVCS) Head(ctx context.Context, dir string) (string, error) {
	return fmt.Sprintf("%040d", len(v.refs)), nil
}

func gitRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		Name: "wamr",
		Source: recipe.Source{Git: &recipe.Git{
			URL:       "https://example.com/wamr.git",
			Tag:       "WAMR-{{.Version}}",
			DevBranch: "main",
		}},
	}
}

func TestFetchGitRefs(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"2.4.4", "WAMR-2.4.4"},
		{recipe.DevVersion, "main"},
	}
	for _, tt := range tests {
		v := &fakeVCS{}
		dir := filepath.Join(t.TempDir(), "src")
		src, err := New(WithVCS(v)).Fetch(context.Background(), gitRecipe(), tt.version, linuxArm, dir)
		if err != nil {
			t.Fatalf("Fetch(%s): %v", tt.version, err)
		}
		if len(v.refs) != 1 || v.refs[0] != tt.want {
			t.Errorf("Fetch(%s) cloned refs %v, want [%s]", tt.version, v.refs, tt.want)
		}
		if src.Commit == "" || src.Ref != tt.want {
			t.Errorf("Source = %+v", src)
		}
	}
}

func TestFetchGitReuse(t *testing.T) {
	v := &fakeVCS{}
	f := New(WithVCS(v))
	dir := filepath.Join(t.TempDir(), "src")
	ctx := context.Background()

	if _, err := f.Fetch(ctx, gitRecipe(), "2.4.4", linuxArm, dir); err != nil {
		t.Fatal(err)
	}
	src, err := f.Fetch(ctx, gitRecipe(), "2.4.4", linuxArm, dir)
	if err != nil {
		t.Fatal(err)
	}
	if !src.Reused || len(v.refs) != 1 {
		t.Errorf("same tag: reused=%v clones=%d", src.Reused, len(v.refs))
	}

	if _, err := f.Fetch(ctx, gitRecipe(), "2.4.5", linuxArm, dir); err != nil {
		t.Fatal(err)
	}
	if len(v.refs) != 2 || v.refs[1] != "WAMR-2.4.5" {
		t.Errorf("new tag did not reclone: %v", v.refs)
	}
}

func TestFetchGitFailure(t *testing.T) {
	v := &fakeVCS{err: fmt.Errorf("remote: Repository not found")}
	dir := filepath.Join(t.TempDir(), "src")
	_, err := New(WithVCS(v)).Fetch(context.Background(), gitRecipe(), "2.4.4", linuxArm, dir)
	if errors.KindOf(err) != errors.KindFetch {
		t.Fatalf("Fetch() error = %v, want FetchError", err)
	}
	if !strings.Contains(err.Error(), "Repository not found") {
		t.Errorf("error %q lost the cause", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := map[string]archiveKind{
		"https://x/y/rt-v1-x86_64-linux-c-api.tar.xz":     kindTarXz,
		"https://x/y/rt-v1-x86_64-windows-c-api.zip?dl=1": kindZip,
		"https://x/y/src.tgz":                             kindTarGz,
		"https://x/y/src.tar":                             kindTar,
		"https://x/y/src.7z":                              kindUnknown,
	}
	for url, want := range tests {
		if got := kindOf(url); got != want {
			t.Errorf("kindOf(%s) = %v, want %v", url, got, want)
		}
	}
}

// writeTar writes a plain tar of hdrs; regular entries carry their name as
// content.
func writeTar(t *testing.T, hdrs ...*tar.Header) string {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, hdr := range hdrs {
		body := ""
		if hdr.Typeflag == tar.TypeReg {
			body = hdr.Name
			hdr.Size = int64(len(body))
			hdr.Mode = 0o644
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		tw.Write([]byte(body))
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "a.tar")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func symlinkHdr(name, link string) *tar.Header {
	return &tar.Header{Name: name, Linkname: link, Typeflag: tar.TypeSymlink}
}

func TestUnpackStaysInDestination(t *testing.T) {
	tests := []struct {
		name string
		hdrs []*tar.Header
	}{
		{"symlink chain", []*tar.Header{
			symlinkHdr("a", "."),
			symlinkHdr("a/b/c/up", "../../.."),
			{Name: "a/b/c/up/pwned.txt", Typeflag: tar.TypeReg},
		}},
		{"absolute symlink", []*tar.Header{symlinkHdr("etc", "/etc")}},
		{"climbing symlink", []*tar.Header{symlinkHdr("lib/up", "../../x")}},
		{"climbing hard link", []*tar.Header{{Name: "x", Linkname: "../secret", Typeflag: tar.TypeLink}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := writeTar(t, tt.hdrs...)
			base := t.TempDir()
			dir := filepath.Join(base, "out", "src")
			if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := unpack(archive, kindTar, dir, false); err == nil {
				t.Fatal("unpack() succeeded")
			}
			for _, p := range []string{filepath.Join(base, "pwned.txt"), filepath.Join(base, "out", "pwned.txt")} {
				if _, err := os.Lstat(p); err == nil {
					t.Errorf("%s written outside the destination", p)
				}
			}
			if _, err := os.Stat(dir); err == nil {
				t.Error("failed unpack left a directory behind")
			}
		})
	}
}

func TestUnpackLinks(t *testing.T) {
	archive := writeTar(t,
		&tar.Header{Name: "rt/lib/librt.so.1", Typeflag: tar.TypeReg},
		symlinkHdr("rt/lib/librt.so", "librt.so.1"),
		&tar.Header{Name: "rt/lib/librt.so.1.0", Linkname: "rt/lib/librt.so.1", Typeflag: tar.TypeLink},
	)
	dir := filepath.Join(t.TempDir(), "src")
	if err := unpack(archive, kindTar, dir, true); err != nil {
		t.Fatal(err)
	}
	if link, err := os.Readlink(filepath.Join(dir, "lib", "librt.so")); err != nil || link != "librt.so.1" {
		t.Errorf("Readlink() = %q, %v", link, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "lib", "librt.so.1.0"))
	if err != nil || string(data) != "rt/lib/librt.so.1" {
		t.Errorf("hard link content = %q, %v", data, err)
	}
}
