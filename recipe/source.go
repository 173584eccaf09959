// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package recipe

import (
	"fmt"
	"slices"
	"strings"
	"text/template"

	"golang.org/x/mod/semver"

	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/platform"
)

// Git is a version-controlled source checked out at a tag.
type Git struct {
	URL string `yaml:"url" toml:"url" validate:"required"`
	// Tag is a template rendered with {{.Version}}, e.g. "WAMR-{{.Version}}".
	Tag string `yaml:"tag" toml:"tag" validate:"required"`
	// DevBranch is checked out for the dev version. Empty means the
	// remote's default branch.
	DevBranch string `yaml:"dev_branch" toml:"dev_branch"`
}

// Download is a prebuilt archive fetched over HTTP.
type Download struct {
	// URL is a template rendered with Name, Version, Tag, OS, Arch and Ext.
	URL string `yaml:"url" toml:"url" validate:"required"`
	// Tag is a template rendered with {{.Version}}; "v{{.Version}}" if empty.
	Tag string `yaml:"tag" toml:"tag"`
	// DevTag replaces Tag for the dev version; "dev" if empty.
	DevTag    string `yaml:"dev_tag" toml:"dev_tag"`
	StripRoot bool   `yaml:"strip_root" toml:"strip_root"`
	// OS lists the supported OSes and their names in release file names.
	OS map[string]string `yaml:"os" toml:"os" validate:"required"`
	// Arch translates architecture names; unknown names pass through.
	Arch map[string]string `yaml:"arch" toml:"arch"`
	// Platforms restricts the translated "<arch>-<os>" pairs that exist.
	Platforms []string `yaml:"platforms" toml:"platforms"`
	// SHA256 holds hex digests keyed by "<OS>/<arch>".
	SHA256 map[string]string `yaml:"sha256" toml:"sha256" validate:"dive,len=64,hexadecimal"`
}

// IsDev reports whether version selects the unstable branch or release.
func IsDev(version string) bool {
	return version == DevVersion
}

// CheckVersion validates a requested version: "dev" or a semantic version
// with or without the leading "v".
func CheckVersion(version string) error {
	if IsDev(version) {
		return nil
	}
	if version == "" || !semver.IsValid(Canonical(version)) {
		return errors.Configuration("invalid version %q: want a semantic version or %q", version, DevVersion)
	}
	return nil
}

// Canonical returns version with a leading "v", the form semver expects.
func Canonical(version string) string {
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}

// SortVersions sorts versions in increasing semver order.
func SortVersions(versions []string) {
	slices.SortFunc(versions, func(a, b string) int {
		return semver.Compare(Canonical(a), Canonical(b))
	})
}

type versionData struct {
	Version string
}

// Ref returns the ref to clone for version: the rendered tag, or the dev
// branch for the dev version. An empty ref means the default branch.
func (g *Git) Ref(version string) (string, error) {
	if IsDev(version) {
		return g.DevBranch, nil
	}
	return expand("tag", g.Tag, versionData{Version: version})
}

// VersionOf maps a remote tag back to the version it was rendered from.
func (g *Git) VersionOf(tag string) (string, bool) {
	const mark = "\x00"
	rendered, err := expand("tag", g.Tag, versionData{Version: mark})
	if err != nil {
		return "", false
	}
	prefix, suffix, ok := strings.Cut(rendered, mark)
	if !ok || !strings.HasPrefix(tag, prefix) || !strings.HasSuffix(tag, suffix) ||
		len(tag) <= len(prefix)+len(suffix) {
		return "", false
	}
	version := tag[len(prefix) : len(tag)-len(suffix)]
	if !semver.IsValid(Canonical(version)) {
		return "", false
	}
	return version, true
}

// URLData is the data the download URL template is rendered with.
type URLData struct {
	Name    string
	Version string
	Tag     string
	OS      string
	Arch    string
	Ext     string
}

// Resolve renders the archive URL for version on os/arch. An OS missing
// from the name table, or a pair outside Platforms, is an
// UnsupportedPlatformError; nothing is fetched for it.
func (d *Download) Resolve(name, version, os, arch string) (string, error) {
	osName, ok := d.OS[os]
	if !ok {
		return "", errors.UnsupportedPlatform(os, arch, "%s: no prebuilt archive for OS %s", name, os)
	}
	archName := platform.Translate(arch, d.Arch)
	if len(d.Platforms) > 0 && !slices.Contains(d.Platforms, archName+"-"+osName) {
		return "", errors.UnsupportedPlatform(os, arch, "%s: no prebuilt archive for %s-%s", name, archName, osName)
	}

	var tag string
	if IsDev(version) {
		tag = d.DevTag
		if tag == "" {
			tag = DevVersion
		}
	} else {
		tmpl := d.Tag
		if tmpl == "" {
			tmpl = "v{{.Version}}"
		}
		var err error
		if tag, err = expand("tag", tmpl, versionData{Version: version}); err != nil {
			return "", err
		}
	}
	return expand("url", d.URL, URLData{
		Name:    name,
		Version: version,
		Tag:     tag,
		OS:      osName,
		Arch:    archName,
		Ext:     platform.ArchiveExt(os),
	})
}

// Digest returns the expected SHA-256 of the archive for os/arch, if any.
func (d *Download) Digest(os, arch string) string {
	return strings.ToLower(d.SHA256[os+"/"+arch])
}

func expand(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", errors.Wrap(errors.KindConfiguration, err, "parse %s template", name)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", errors.Wrap(errors.KindConfiguration, err, "render %s template", name)
	}
	return b.String(), nil
}

func (s *Source) checkTemplates() error {
	var texts []string
	if s.Git != nil {
		texts = append(texts, s.Git.Tag)
	}
	if s.Download != nil {
		texts = append(texts, s.Download.URL, s.Download.Tag)
	}
	for _, text := range texts {
		if _, err := template.New("source").Parse(text); err != nil {
			return errors.Wrap(errors.KindConfiguration, err, "invalid template %q", text)
		}
	}
	return nil
}

// String describes where the source comes from.
func (s *Source) String() string {
	switch {
	case s.Git != nil:
		return fmt.Sprintf("git %s@%s", s.Git.URL, s.Git.Tag)
	case s.Download != nil:
		return "download " + s.Download.URL
	}
	return "none"
}
