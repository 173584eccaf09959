//go:build !unix

package buildsys

import "os/exec"

// killGroup keeps exec's default: cancellation kills the process itself.
func killGroup(cmd *exec.Cmd) {}
