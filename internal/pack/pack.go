// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pack assembles the package root of one build: installed
// variants, copy rules and the expected-output check.
package pack

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/internal/logging"
	"github.com/goplus/pkgsmith/platform"
	"github.com/goplus/pkgsmith/recipe"
)

// Roots are the directories copy rules resolve against.
type Roots struct {
	Source  string
	Build   string
	Install string
}

func (r Roots) dir(name string) string {
	switch name {
	case recipe.RootBuild:
		return r.Build
	case recipe.RootInstall:
		return r.Install
	}
	return r.Source
}

// Variant is a built variant waiting to be merged into the package root.
type Variant struct {
	Name string
	// Stage is the prefix the variant was installed into. Empty or missing
	// means nothing was installed.
	Stage  string
	Rename map[string]string
}

// Request describes one package-stage run.
type Request struct {
	Recipe   *recipe.Recipe
	Triple   platform.Triple
	Root     string
	Roots    Roots
	Data     recipe.CopyData
	Variants []Variant
}

// Result reports what the package stage produced.
type Result struct {
	Root string
	// Merged counts files taken from variant install prefixes.
	Merged int
	// Copied counts files placed by copy rules.
	Copied int
}

// Packager runs the package stage.
type Packager struct {
	logger *zap.Logger
}

// New creates a Packager.
func New(logger *zap.Logger) *Packager {
	return &Packager{logger: logging.OrNop(logger)}
}

// Package rebuilds req.Root from scratch. Variants are merged in order with
// their library renames, then every copy rule runs, whether or not the
// install step already produced the files. Expected outputs missing
// afterwards are a PackagingError.
func (p *Packager) Package(ctx context.Context, req *Request) (*Result, error) {
	if err := os.RemoveAll(req.Root); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(req.Root, 0o755); err != nil {
		return nil, err
	}
	res := &Result{Root: req.Root}

	for _, v := range req.Variants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := merge(v.Stage, req.Root, req.Triple.OS, v.Rename)
		if err != nil {
			return nil, errors.Wrap(errors.KindPackaging, err, "merge variant %s", v.Name)
		}
		p.logger.Debug("merged variant", zap.String("variant", v.Name), zap.Int("files", n))
		res.Merged += n
	}

	for i := range req.Recipe.Package.Copy {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rule := &req.Recipe.Package.Copy[i]
		n, err := p.apply(rule, req)
		if err != nil {
			return nil, err
		}
		res.Copied += n
	}

	if err := Check(req.Root, req.Recipe.Expect()); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Packager) apply(rule *recipe.CopyRule, req *Request) (int, error) {
	base := req.Roots.dir(rule.RootDir())
	if base == "" {
		return 0, nil
	}
	from, err := rule.Dir(req.Data)
	if err != nil {
		return 0, err
	}
	if rule.To != "" && !filepath.IsLocal(rule.To) {
		return 0, errors.Configuration("copy rule destination %q leaves the package root", rule.To)
	}
	src := filepath.Join(base, from)
	if fi, err := os.Stat(src); err != nil || !fi.IsDir() {
		p.logger.Debug("copy rule root missing", zap.String("dir", src))
		return 0, nil
	}
	patterns := rule.Patterns
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	n, err := copyMatching(src, filepath.Join(req.Root, rule.To), patterns, rule.Flat)
	if err != nil {
		return n, errors.Wrap(errors.KindPackaging, err, "copy %s", src)
	}
	p.logger.Debug("copy rule", zap.String("from", src), zap.String("to", rule.To), zap.Int("files", n))
	return n, nil
}

// Check reports the patterns, relative to root, that match nothing.
func Check(root string, patterns []string) error {
	var missing []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(root, filepath.FromSlash(pattern)))
		if err != nil {
			return errors.Configuration("invalid expected output %q: %v", pattern, err)
		}
		if len(matches) == 0 {
			missing = append(missing, pattern)
		}
	}
	if len(missing) > 0 {
		return errors.Packaging("expected outputs missing: %s", strings.Join(missing, ", ")).
			With("root", root).
			With("missing", missing)
	}
	return nil
}

// RenameLib returns the file name a library file takes under rename, which
// maps library names (without prefix or extension) on targetOS.
func RenameLib(targetOS, file string, rename map[string]string) string {
	for from, to := range rename {
		fromFiles := platform.LibraryFiles(targetOS, from)
		toFiles := platform.LibraryFiles(targetOS, to)
		for i, name := range fromFiles {
			if file == name {
				return toFiles[i]
			}
		}
	}
	return file
}
