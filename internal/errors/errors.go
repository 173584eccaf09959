// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors defines the error taxonomy of the packaging pipeline.
//
// Every failure surfaced to a caller carries a Kind that tells a human whether
// the configuration is wrong (ConfigurationError, UnsupportedPlatformError) or
// the vendor side broke (FetchError, BuildToolError, PackagingError), and the
// Stage of the pipeline it happened in:
//
//	err := errors.New(errors.KindConfiguration, "unknown option %q", name)
//	err := errors.BuildTool(cmdline, output, cause)
//	if errors.KindOf(err) == errors.KindBuildTool { ... }
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies an error.
type Kind string

const (
	KindConfiguration       Kind = "ConfigurationError"
	KindFetch               Kind = "FetchError"
	KindUnsupportedPlatform Kind = "UnsupportedPlatformError"
	KindBuildTool           Kind = "BuildToolError"
	KindPackaging           Kind = "PackagingError"
)

// Stage names the pipeline step an error belongs to.
type Stage string

const (
	StageResolve Stage = "resolve" // recipe loading and option resolution
	StageFetch   Stage = "fetch"
	StageBuild   Stage = "build"
	StagePackage Stage = "package"
	StagePublish Stage = "publish"
)

// Error is the structured error used across the pipeline.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	Cause   error
	// Output holds the raw diagnostics of an external tool, unmodified.
	Output  []byte
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Stage != "" {
		b.WriteString(" [" + string(e.Stage) + "]")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind. A target with an
// empty Kind matches any *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// With attaches a context key/value and returns e.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Configuration reports an invalid option reference or value.
func Configuration(format string, args ...any) *Error {
	return New(KindConfiguration, format, args...)
}

// UnsupportedPlatform reports an OS/arch combination nothing can be mapped for.
func UnsupportedPlatform(os, arch string, format string, args ...any) *Error {
	return New(KindUnsupportedPlatform, format, args...).With("os", os).With("arch", arch)
}

// Fetch reports a network, checkout or download failure.
func Fetch(cause error, format string, args ...any) *Error {
	return Wrap(KindFetch, cause, format, args...)
}

// BuildTool reports a failing external tool invocation. output is kept
// verbatim: it is the primary debugging surface.
func BuildTool(cmdline string, output []byte, cause error) *Error {
	e := Wrap(KindBuildTool, cause, "%s", cmdline)
	e.Output = output
	return e
}

// Packaging reports expected outputs missing after install and fallback copy.
func Packaging(format string, args ...any) *Error {
	return New(KindPackaging, format, args...)
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StageOf returns the Stage of the first *Error in err's chain that has one.
func StageOf(err error) Stage {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Stage != "" {
			return e.Stage
		}
		err = stderrors.Unwrap(err)
	}
	return ""
}

// OutputOf returns the captured tool output of the first *Error carrying one.
func OutputOf(err error) []byte {
	for err != nil {
		if e, ok := err.(*Error); ok && len(e.Output) > 0 {
			return e.Output
		}
		err = stderrors.Unwrap(err)
	}
	return nil
}

// InStage stamps stage on err. A non-*Error err is returned unchanged; an
// *Error that already has a stage keeps it.
func InStage(stage Stage, err error) error {
	var e *Error
	if stderrors.As(err, &e) && e.Stage == "" {
		e.Stage = stage
	}
	return err
}

// IsKind reports whether err's chain contains an *Error of kind.
func IsKind(err error, kind Kind) bool {
	return stderrors.Is(err, &Error{Kind: kind})
}

// ExitCode maps an error to the process exit code of the CLI.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindConfiguration:
		return 2
	case KindUnsupportedPlatform:
		return 3
	case KindFetch:
		return 4
	case KindBuildTool:
		return 5
	case KindPackaging:
		return 6
	}
	return 1
}

// Is forwards to the standard library errors.Is.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As forwards to the standard library errors.As.
func As(err error, target any) bool { return stderrors.As(err, target) }
