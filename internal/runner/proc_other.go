//go:build !unix

package runner

import "os/exec"

// killProcessGroup is a no-op where process groups are unavailable;
// cancellation kills the direct child only and WaitDelay cuts off the rest.
func killProcessGroup(cmd *exec.Cmd) {}
