// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package publish

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ChecksumFileName is the standard name for checksum files.
const ChecksumFileName = "checksums.txt"

// GenerateChecksums writes checksums.txt into root with the SHA-256 of
// every regular file below it, one "<hex>  <relative path>" line each, in
// directory walk order.
func GenerateChecksums(ctx context.Context, root string) error {
	var lines []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == ChecksumFileName {
			return nil
		}
		sum, err := fileSHA256(path)
		if err != nil {
			return fmt.Errorf("failed to read %s for checksum: %w", path, err)
		}
		lines = append(lines, sum+"  "+rel)
		return nil
	})
	if err != nil {
		return err
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(GetChecksumFilePath(root), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write checksums: %w", err)
	}
	return nil
}

// VerifyChecksums checks every file listed in root's checksums.txt and
// returns the relative paths that are missing or differ.
func VerifyChecksums(root string) ([]string, error) {
	f, err := os.Open(GetChecksumFilePath(root))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bad []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		want, rel, ok := strings.Cut(s.Text(), "  ")
		if !ok {
			return nil, fmt.Errorf("invalid checksum line %q", s.Text())
		}
		got, err := fileSHA256(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil || got != want {
			bad = append(bad, rel)
		}
	}
	return bad, s.Err()
}

// GetChecksumFilePath returns the full path to the checksums.txt file
// in the given package root.
func GetChecksumFilePath(root string) string {
	return filepath.Join(root, ChecksumFileName)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
