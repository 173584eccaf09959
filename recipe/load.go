// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recipe

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/goplus/pkgsmith/internal/errors"
)

// Format is the encoding of a recipe document.
type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

// Extensions lists the file extensions recipe files may have.
var Extensions = []string{".yaml", ".yml", ".toml"}

var (
	validate     = newValidator()
	recipeNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("recipename", func(fl validator.FieldLevel) bool {
		return recipeNameRe.MatchString(fl.Field().String())
	})
	return v
}

// ValidName reports whether name is a legal recipe name.
func ValidName(name string) bool {
	return recipeNameRe.MatchString(name)
}

// FormatOf returns the format implied by a file name.
func FormatOf(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return YAML, true
	case ".toml":
		return TOML, true
	}
	return "", false
}

// Parse decodes and validates a recipe document. Unknown fields are
// rejected so typos in option or flag names surface at load time.
func Parse(data []byte, format Format) (*Recipe, error) {
	r := new(Recipe)
	var err error
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(r)
	case TOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(r)
	default:
		return nil, errors.Configuration("unknown recipe format %q", format)
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindConfiguration, err, "decode %s recipe", format)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load reads the recipe file at path.
func Load(path string) (*Recipe, error) {
	r, err := LoadFS(os.DirFS(filepath.Dir(path)), filepath.Base(path))
	if err != nil {
		return nil, err
	}
	r.File = path
	return r, nil
}

// LoadFS reads the recipe file name from fsys.
func LoadFS(fsys fs.FS, name string) (*Recipe, error) {
	format, ok := FormatOf(name)
	if !ok {
		return nil, errors.Configuration("%s: not a recipe file (want %s)", name, strings.Join(Extensions, ", "))
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfiguration, err, "read recipe")
	}
	r, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	r.File = name
	return r, nil
}
