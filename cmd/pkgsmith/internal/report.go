package internal

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/gookit/color"

	"github.com/goplus/pkgsmith/internal/build"
	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/internal/publish"
)

// report prints err with its kind, stage and captured tool output. Each
// target of a multi-target build is reported on its own.
func report(w io.Writer, err error) {
	if failures := build.Failures(err); len(failures) > 0 {
		for _, f := range failures {
			reportOne(w, f.Request.Recipe.Name+" "+f.Request.Triple.String(), f.Err)
		}
		return
	}
	reportOne(w, "", err)
}

func reportOne(w io.Writer, target string, err error) {
	if target != "" {
		fmt.Fprintf(w, "%s %s: %v\n", color.Red.Sprint("error:"), target, err)
	} else {
		fmt.Fprintf(w, "%s %v\n", color.Red.Sprint("error:"), err)
	}
	if kind := errors.KindOf(err); kind != "" {
		fmt.Fprintf(w, "  kind:  %s\n", kind)
	}
	if stage := errors.StageOf(err); stage != "" {
		fmt.Fprintf(w, "  stage: %s\n", stage)
	}
	if out := errors.OutputOf(err); len(out) > 0 {
		fmt.Fprintln(w, "  tool output:")
		w.Write(out)
		if out[len(out)-1] != '\n' {
			fmt.Fprintln(w)
		}
	}
}

// exitCode is the exit code of err. A multi-target failure exits with the
// code of its first failed target.
func exitCode(err error) int {
	if failures := build.Failures(err); len(failures) > 0 {
		return errors.ExitCode(failures[0])
	}
	return errors.ExitCode(err)
}

// summarize prints one line per request: its outcome and, for successes,
// the path of the package metadata.
func summarize(w io.Writer, reqs []*build.Request, results []*build.Result, err error) {
	failed := make(map[*build.Request]error)
	for _, f := range build.Failures(err) {
		failed[f.Request] = f.Err
	}
	for i, req := range reqs {
		res := results[i]
		if res == nil {
			e := failed[req]
			fmt.Fprintf(w, "%s %s %s  %s [%s]\n", color.Red.Sprint("FAIL"), req.Recipe.Name, req.Triple,
				errors.KindOf(e), errors.StageOf(e))
			continue
		}
		state := color.Green.Sprint("OK  ")
		if res.Cached {
			state = color.Cyan.Sprint("HIT ")
		}
		fmt.Fprintf(w, "%s %s %s %s  %s\n", state, res.Recipe, res.Version, res.Triple,
			filepath.Join(res.Metadata.Root, publish.InfoFile))
	}
}
