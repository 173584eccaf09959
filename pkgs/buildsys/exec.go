package buildsys

import (
	"bytes"
	"context"
	"io"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goplus/pkgsmith/internal/errors"
)

// Env is an explicit set of variables layered over the process environment
// for one command.
type Env map[string]string

// Merge returns base with e applied on top, sorted by name.
func (e Env) Merge(base []string) []string {
	envMap := make(map[string]string, len(base)+len(e))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	maps.Copy(envMap, e)
	out := make([]string, 0, len(envMap))
	for _, k := range slices.Sorted(maps.Keys(envMap)) {
		out = append(out, k+"="+envMap[k])
	}
	return out
}

// Runner executes build tools. The zero value captures output silently.
type Runner struct {
	// Output receives tool output as it is produced, when set.
	Output io.Writer
	Logger *zap.Logger
}

// Run runs bin with args in workdir. Output is captured in full; a failure
// is a BuildToolError carrying the command line and that output. Cancelling
// ctx kills the tool and everything it spawned.
func (r *Runner) Run(ctx context.Context, bin string, args []string, env Env, workdir string) error {
	cmdline := strings.Join(append([]string{bin}, args...), " ")
	path, err := exec.LookPath(bin)
	if err != nil {
		return errors.BuildTool(cmdline, nil, err)
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = workdir
	cmd.Env = env.Merge(os.Environ())
	if r != nil && r.Output != nil {
		w := io.MultiWriter(&out, r.Output)
		cmd.Stdout, cmd.Stderr = w, w
	} else {
		cmd.Stdout, cmd.Stderr = &out, &out
	}
	killGroup(cmd)
	cmd.WaitDelay = 5 * time.Second

	if r != nil && r.Logger != nil {
		r.Logger.Debug("run", zap.String("cmd", cmdline), zap.String("dir", workdir))
	}
	start := time.Now()
	err = cmd.Run()
	if r != nil && r.Logger != nil {
		r.Logger.Debug("done", zap.String("cmd", cmdline), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	}
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return errors.BuildTool(cmdline, out.Bytes(), err)
	}
	return nil
}

// LookTools checks that every named tool is on PATH. The first missing one
// is a BuildToolError.
func LookTools(tools ...string) error {
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			return errors.BuildTool(tool, nil, err).With("tool", tool)
		}
	}
	return nil
}
