// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package recipes holds the recipes built into the pkgsmith binary.
package recipes

import (
	"embed"
	"io/fs"
)

//go:embed *.yaml *.toml
var files embed.FS

// FS returns the built-in recipe files.
func FS() fs.FS {
	return files
}
