// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package publish

import "path/filepath"

// Flags returns the compiler and linker flags to build against c when its
// package lives at root.
func (c *Component) Flags(root string) (cflags, ldflags []string) {
	for _, dir := range c.IncludeDirs {
		cflags = append(cflags, "-I"+filepath.Join(root, filepath.FromSlash(dir)))
	}
	for _, d := range c.Defines {
		cflags = append(cflags, "-D"+d)
	}
	for _, dir := range c.LibDirs {
		ldflags = append(ldflags, "-L"+filepath.Join(root, filepath.FromSlash(dir)))
	}
	for _, lib := range c.Libs {
		ldflags = append(ldflags, "-l"+linkName(lib))
	}
	for _, lib := range c.SystemLibs {
		ldflags = append(ldflags, "-l"+lib)
	}
	return cflags, ldflags
}
