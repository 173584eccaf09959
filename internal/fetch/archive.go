// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

type archiveKind int

const (
	kindUnknown archiveKind = iota
	kindZip
	kindTarXz
	kindTarGz
	kindTar
)

// kindOf infers the archive format from the path of a URL.
func kindOf(rawURL string) archiveKind {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		name = u.Path
	}
	name = strings.ToLower(path.Base(name))
	switch {
	case strings.HasSuffix(name, ".zip"):
		return kindZip
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		return kindTarXz
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return kindTarGz
	case strings.HasSuffix(name, ".tar"):
		return kindTar
	}
	return kindUnknown
}

// unpack extracts archive into dir. With stripRoot, a single top-level
// directory holding everything is removed from the paths.
func unpack(archive string, kind archiveKind, dir string, stripRoot bool) error {
	staging := dir + ".unpack"
	if err := os.RemoveAll(staging); err != nil {
		return err
	}
	defer os.RemoveAll(staging)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return err
	}
	if err := extract(archive, kind, staging); err != nil {
		return err
	}

	root := staging
	if stripRoot {
		var err error
		root, err = singleRoot(staging)
		if err != nil {
			return err
		}
	}
	return os.Rename(root, dir)
}

// extract writes every entry of archive under dir. All writes go through an
// os.Root, so no entry or chain of symlinks can reach outside dir.
func extract(archive string, kind archiveKind, dir string) error {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return err
	}
	defer root.Close()

	switch kind {
	case kindZip:
		return unzip(archive, root)
	case kindTarXz, kindTarGz, kindTar:
		return untarFile(archive, kind, root)
	}
	return fmt.Errorf("unsupported archive format: %s", filepath.Base(archive))
}

// singleRoot returns the only directory in dir, or dir itself when dir
// holds anything else.
func singleRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

// entryName returns the root-relative path of an archive entry, rejecting
// names that would land outside the root. The root itself is ".".
func entryName(name string) (string, error) {
	name = strings.TrimPrefix(filepath.FromSlash(name), "."+string(filepath.Separator))
	name = strings.TrimSuffix(name, string(filepath.Separator))
	if name == "" || name == "." {
		return ".", nil
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("archive entry %q escapes the destination", name)
	}
	return name, nil
}

func untarFile(archive string, kind archiveKind, root *os.Root) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	switch kind {
	case kindTarXz:
		xzr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("xz: %w", err)
		}
		r = xzr
	case kindTarGz:
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gzip: %w", err)
		}
		defer gzr.Close()
		r = gzr
	}
	return untar(r, root)
}

func untar(r io.Reader, root *os.Root) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}
		name, err := entryName(hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			err = root.MkdirAll(name, 0o755)
		case tar.TypeReg:
			err = writeFile(root, name, tr, hdr.FileInfo().Mode())
		case tar.TypeSymlink:
			err = symlink(root, name, hdr.Linkname)
		case tar.TypeLink:
			var src string
			if src, err = entryName(hdr.Linkname); err == nil {
				err = copyFile(root, src, name)
			}
		}
		if err != nil {
			return fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
	}
}

func unzip(archive string, root *os.Root) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("zip: %w", err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		name, err := entryName(zf.Name)
		if err != nil {
			return err
		}
		if err := unzipEntry(root, name, zf); err != nil {
			return fmt.Errorf("extract %s: %w", zf.Name, err)
		}
	}
	return nil
}

func unzipEntry(root *os.Root, name string, zf *zip.File) error {
	mode := zf.Mode()
	if mode.IsDir() {
		return root.MkdirAll(name, 0o755)
	}
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	if mode&os.ModeSymlink != 0 {
		link, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		return symlink(root, name, string(link))
	}
	return writeFile(root, name, rc, mode)
}

func writeFile(root *os.Root, name string, r io.Reader, mode os.FileMode) error {
	if err := root.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	perm := mode.Perm() | 0o600
	out, err := root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// symlink creates name pointing at link. Absolute links and links climbing
// above the root are rejected; links through other links are caught by the
// root when something is written through them.
func symlink(root *os.Root, name, link string) error {
	if filepath.IsAbs(link) {
		return fmt.Errorf("symlink %s -> %s escapes the destination", name, link)
	}
	if !filepath.IsLocal(filepath.Join(filepath.Dir(name), link)) {
		return fmt.Errorf("symlink %s -> %s escapes the destination", name, link)
	}
	if err := root.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	root.Remove(name)
	return root.Symlink(link, name)
}

func copyFile(root *os.Root, src, dst string) error {
	in, err := root.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	return writeFile(root, dst, in, fi.Mode())
}
