//go:build !unix

package adapter

import "os/exec"

// killProcessGroup keeps exec's default of killing only the direct child.
func killProcessGroup(cmd *exec.Cmd) {}
