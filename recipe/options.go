// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recipe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/platform"
)

// Config is the set of option values a build uses on one OS.
type Config struct {
	recipe *Recipe
	os     string
	// values holds canonical option values: "true"/"false" for booleans.
	values map[string]string
}

// ParseOverrides parses "name=value" arguments.
func ParseOverrides(args []string) (map[string]string, error) {
	overrides := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.Configuration("invalid option %q, expected name=value", arg)
		}
		overrides[name] = strings.TrimSpace(value)
	}
	return overrides, nil
}

// Resolve merges the recipe's option defaults with overrides for os. Options
// excluded on os are dropped. Naming an undeclared option, an illegal value,
// or an option excluded on os is a ConfigurationError.
func Resolve(r *Recipe, overrides map[string]string, os string) (*Config, error) {
	c := &Config{recipe: r, os: os, values: make(map[string]string, len(r.Options))}
	for i := range r.Options {
		o := &r.Options[i]
		if o.excluded(os) {
			continue
		}
		v, err := o.normalize(fmt.Sprint(o.Default))
		if err != nil {
			return nil, errors.Configuration("%s: option %q: %v", r.Name, o.Name, err)
		}
		c.values[o.Name] = v
	}

	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		o, ok := r.Option(name)
		if !ok {
			return nil, errors.Configuration("%s: unknown option %q", r.Name, name).
				With("options", r.optionNames())
		}
		if o.excluded(os) {
			return nil, errors.Configuration("%s: option %q is not available on %s", r.Name, name, os)
		}
		v, err := o.normalize(overrides[name])
		if err != nil {
			return nil, errors.Configuration("%s: option %q: %v", r.Name, name, err)
		}
		c.values[name] = v
	}
	return c, nil
}

func (r *Recipe) optionNames() []string {
	names := make([]string, len(r.Options))
	for i, o := range r.Options {
		names[i] = o.Name
	}
	return names
}

// Value returns the resolved value of the option called name.
func (c *Config) Value(name string) (string, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Bool reports whether the boolean option called name is enabled.
func (c *Config) Bool(name string) bool {
	return c.values[name] == "true"
}

// Values returns a copy of the resolved option values.
func (c *Config) Values() map[string]string {
	return maps.Clone(c.values)
}

// Flags are the rendered build-system variables of one build.
type Flags map[string]string

// Sorted returns the flag names in lexical order.
func (f Flags) Sorted() []string {
	return slices.Sorted(maps.Keys(f))
}

// Render turns the configuration into build-system flags. Every mapped
// option yields exactly one flag; booleans render as "1" or "0", inverted
// when the mapping starts with "!". Constant defines and the platform
// mapping m are merged in, and the variant's flag overrides win over all.
func (c *Config) Render(m *platform.Mapping, v *Variant) Flags {
	r := c.recipe
	flags := make(Flags, len(r.Flags)+len(r.Build.Defines)+2)
	maps.Copy(flags, r.Build.Defines)

	for name, flag := range r.Flags {
		value, ok := c.values[name]
		if !ok {
			continue
		}
		o, _ := r.Option(name)
		if o.kind() != TypeBool {
			flags[flag] = value
			continue
		}
		on := value == "true"
		if inverted, ok := strings.CutPrefix(flag, "!"); ok {
			flag, on = inverted, !on
		}
		flags[flag] = boolFlag(on)
	}

	if p := r.Build.Platform; p != nil && m != nil {
		if p.Platform != "" {
			flags[p.Platform] = m.Platform
		}
		if p.Target != "" {
			flags[p.Target] = m.Target
		}
	}
	if v != nil {
		maps.Copy(flags, v.Flags)
	}
	return flags
}

func boolFlag(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

// Hash returns a stable digest of the resolved option values.
func (c *Config) Hash() string {
	h := sha256.New()
	for _, name := range slices.Sorted(maps.Keys(c.values)) {
		fmt.Fprintf(h, "%s=%s\n", name, c.values[name])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// String returns the resolved values as "name=value" pairs.
func (c *Config) String() string {
	pairs := make([]string, 0, len(c.values))
	for _, name := range slices.Sorted(maps.Keys(c.values)) {
		pairs = append(pairs, name+"="+c.values[name])
	}
	return strings.Join(pairs, " ")
}
