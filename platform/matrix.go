// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

// Matrix describes a set of targets as the cartesian product of its axes.
// Empty axes are ignored; an empty BuildType axis means Release.
type Matrix struct {
	OS        []string
	Arch      []string
	BuildType []string
}

// Combinations returns every triple of the matrix, OS-major, in axis order.
// Duplicated values yield a single triple.
func (m *Matrix) Combinations() []Triple {
	if len(m.OS) == 0 || len(m.Arch) == 0 {
		return nil
	}
	buildTypes := m.BuildType
	if len(buildTypes) == 0 {
		buildTypes = []string{Release}
	}

	seen := make(map[Triple]bool)
	result := make([]Triple, 0, m.CombinationCount())
	for _, os := range m.OS {
		for _, arch := range m.Arch {
			for _, bt := range buildTypes {
				t := Triple{OS: os, Arch: arch, BuildType: bt}
				if seen[t] {
					continue
				}
				seen[t] = true
				result = append(result, t)
			}
		}
	}
	return result
}

// CombinationCount returns the upper bound of len(Combinations()).
func (m *Matrix) CombinationCount() int {
	if len(m.OS) == 0 || len(m.Arch) == 0 {
		return 0
	}
	n := len(m.BuildType)
	if n == 0 {
		n = 1
	}
	return len(m.OS) * len(m.Arch) * n
}
