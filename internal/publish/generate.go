// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package publish

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/goplus/pkgsmith/platform"
)

var funcs = template.FuncMap{
	"join": strings.Join,
}

var pcTmpl = template.Must(template.New("pc").Funcs(funcs).Parse(`prefix=${pcfiledir}/../..
includedir=${prefix}/{{.IncludeDir}}
libdir=${prefix}/{{.LibDir}}

Name: {{.Name}}
Description: {{.Description}}
Version: {{.Version}}
Cflags:{{range .Includes}} -I${prefix}/{{.}}{{end}}{{range .Defines}} -D{{.}}{{end}}
Libs: -L${libdir}{{range .Libs}} -l{{.}}{{end}}
{{- if .SystemLibs}}
Libs.private:{{range .SystemLibs}} -l{{.}}{{end}}
{{- end}}
`))

var cmakeTmpl = template.Must(template.New("cmake").Funcs(funcs).Parse(`# Generated by pkgsmith for {{.Name}} {{.Version}} ({{.OS}}/{{.Arch}} {{.BuildType}}). Do not edit.
get_filename_component(_{{.Var}}_PREFIX "${CMAKE_CURRENT_LIST_DIR}/.." ABSOLUTE)
{{range .Components}}
if(NOT TARGET {{$.Name}}::{{.Name}})
{{- if .Location}}
  add_library({{$.Name}}::{{.Name}} UNKNOWN IMPORTED)
{{- else}}
  add_library({{$.Name}}::{{.Name}} INTERFACE IMPORTED)
{{- end}}
  set_target_properties({{$.Name}}::{{.Name}} PROPERTIES
{{- if .Location}}
    IMPORTED_LOCATION "${_{{$.Var}}_PREFIX}/{{.Location}}"
{{- end}}
    INTERFACE_INCLUDE_DIRECTORIES "{{join .Includes ";"}}"
{{- if .Links}}
    INTERFACE_LINK_LIBRARIES "{{join .Links ";"}}"
{{- end}}
{{- if .Defines}}
    INTERFACE_COMPILE_DEFINITIONS "{{join .Defines ";"}}"
{{- end}}
  )
endif()
{{end}}
set({{.Name}}_FOUND TRUE)
`))

var cgoTmpl = template.Must(template.New("cgo").Funcs(funcs).Parse(`// Code generated by pkgsmith. DO NOT EDIT.

//go:build {{.GOOS}} && {{.GOARCH}}

package {{.Package}}

// #cgo CPPFLAGS: {{join .CPPFlags " "}}
// #cgo LDFLAGS: {{join .LDFlags " "}}
import "C"
`))

type pcData struct {
	Name        string
	Description string
	Version     string
	IncludeDir  string
	LibDir      string
	Includes    []string
	Defines     []string
	Libs        []string
	SystemLibs  []string
}

func writePkgConfig(root string, m *Metadata, description string) ([]string, error) {
	if description == "" {
		description = m.Name
	}
	var files []string
	for _, c := range m.Components {
		data := pcData{
			Name:        c.Name,
			Description: description,
			Version:     m.Version,
			IncludeDir:  first(c.IncludeDirs, "include"),
			LibDir:      first(c.LibDirs, "lib"),
			Includes:    c.IncludeDirs,
			Defines:     c.Defines,
			SystemLibs:  c.SystemLibs,
		}
		for _, lib := range c.Libs {
			data.Libs = append(data.Libs, linkName(lib))
		}
		rel := path.Join("lib", "pkgconfig", c.Name+".pc")
		if err := render(root, rel, pcTmpl, data); err != nil {
			return nil, err
		}
		files = append(files, rel)
	}
	return files, nil
}

type cmakeComponent struct {
	Name     string
	Location string
	Includes []string
	Links    []string
	Defines  []string
}

func writeCMakeConfig(root string, m *Metadata) ([]string, error) {
	v := identifier(m.Name)
	prefix := "${_" + v + "_PREFIX}/"
	data := struct {
		*Metadata
		Var        string
		Components []cmakeComponent
	}{Metadata: m, Var: v}

	for _, c := range m.Components {
		cc := cmakeComponent{Name: c.Name, Defines: c.Defines}
		for _, dir := range c.IncludeDirs {
			cc.Includes = append(cc.Includes, prefix+dir)
		}
		for i, lib := range c.Libs {
			loc := findLib(root, c.LibDirs, m.OS, lib)
			if i == 0 {
				cc.Location = loc
				continue
			}
			if loc != "" {
				cc.Links = append(cc.Links, prefix+loc)
			} else {
				cc.Links = append(cc.Links, linkName(lib))
			}
		}
		cc.Links = append(cc.Links, c.SystemLibs...)
		data.Components = append(data.Components, cc)
	}

	rel := path.Join("cmake", m.Name+"Config.cmake")
	if err := render(root, rel, cmakeTmpl, data); err != nil {
		return nil, err
	}
	return []string{rel}, nil
}

// writeCgo writes the directives of the first component, the package's
// primary variant.
func writeCgo(root string, m *Metadata) ([]string, error) {
	if len(m.Components) == 0 {
		return nil, nil
	}
	c := m.Components[0]
	goos, goarch := platform.GoOSArch(m.OS, m.Arch)
	data := struct {
		GOOS, GOARCH, Package string
		CPPFlags, LDFlags     []string
	}{GOOS: goos, GOARCH: goarch, Package: identifier(m.Name)}

	for _, dir := range c.IncludeDirs {
		data.CPPFlags = append(data.CPPFlags, "-I${SRCDIR}/../"+dir)
	}
	for _, d := range c.Defines {
		data.CPPFlags = append(data.CPPFlags, "-D"+d)
	}
	for _, dir := range c.LibDirs {
		data.LDFlags = append(data.LDFlags, "-L${SRCDIR}/../"+dir)
	}
	for _, lib := range c.Libs {
		data.LDFlags = append(data.LDFlags, "-l"+linkName(lib))
	}
	for _, lib := range c.SystemLibs {
		data.LDFlags = append(data.LDFlags, "-l"+lib)
	}

	rel := path.Join("cgo", identifier(m.Name)+"_"+goos+"_"+goarch+".go")
	if err := render(root, rel, cgoTmpl, data); err != nil {
		return nil, err
	}
	return []string{rel}, nil
}

func render(root, rel string, tmpl *template.Template, data any) error {
	dst := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte(b.String()), 0o644)
}

// findLib returns the path, relative to root, of the first file in libDirs
// that lib names on targetOS.
func findLib(root string, libDirs []string, targetOS, lib string) string {
	candidates := []string{lib}
	if !hasLibExt(lib) {
		candidates = platform.LibraryFiles(targetOS, lib)
	}
	for _, dir := range libDirs {
		for _, name := range candidates {
			rel := path.Join(dir, name)
			if fileExists(filepath.Join(root, filepath.FromSlash(rel))) {
				return rel
			}
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var libExts = []string{".lib", ".a", ".so", ".dylib", ".dll"}

func hasLibExt(lib string) bool {
	for _, ext := range libExts {
		if strings.HasSuffix(lib, ext) {
			return true
		}
	}
	return false
}

// linkName returns the name a linker's -l flag takes for lib, which may be
// a bare name or a file name.
func linkName(lib string) string {
	for _, ext := range libExts {
		if name, ok := strings.CutSuffix(lib, ext); ok {
			if ext != ".lib" && ext != ".dll" {
				name = strings.TrimPrefix(name, "lib")
			}
			return name
		}
	}
	return lib
}

// identifier maps name onto a Go package and CMake variable name.
func identifier(name string) string {
	b := []byte(strings.ToLower(name))
	for i, c := range b {
		if !('a' <= c && c <= 'z' || '0' <= c && c <= '9' || c == '_') {
			b[i] = '_'
		}
	}
	if len(b) > 0 && '0' <= b[0] && b[0] <= '9' {
		return "_" + string(b)
	}
	return string(b)
}

func first(list []string, fallback string) string {
	if len(list) > 0 {
		return list[0]
	}
	return fallback
}
