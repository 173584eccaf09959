// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pack

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// merge copies the tree at stage into root, renaming library files.
func merge(stage, root, goos string, rename map[string]string) (int, error) {
	if stage == "" {
		return 0, nil
	}
	if _, err := os.Stat(stage); os.IsNotExist(err) {
		return 0, nil
	}
	n := 0
	err := filepath.WalkDir(stage, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(stage, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(root, filepath.Dir(rel), RenameLib(goos, d.Name(), rename))
		if err := copyEntry(path, dst, d); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

// copyMatching copies files under src whose names match one of patterns
// into dst, keeping their relative paths. Patterns containing a slash
// match the relative path instead. Flat copies only src's own files.
func copyMatching(src, dst string, patterns []string, flat bool) (int, error) {
	n := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if flat && path != src {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		ok, err := matchAny(patterns, filepath.ToSlash(rel), d.Name())
		if err != nil || !ok {
			return err
		}
		if err := copyEntry(path, filepath.Join(dst, rel), d); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func matchAny(patterns []string, rel, name string) (bool, error) {
	for _, pattern := range patterns {
		subject := name
		if strings.Contains(pattern, "/") {
			subject = rel
		}
		ok, err := filepath.Match(pattern, subject)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// copyEntry copies a regular file or recreates a symlink at dst,
// replacing whatever is there.
func copyEntry(src, dst string, d fs.DirEntry) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if d.Type()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		os.Remove(dst)
		return os.Symlink(target, dst)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm()|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
