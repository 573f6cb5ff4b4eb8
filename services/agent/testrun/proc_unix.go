// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build unix

package testrun

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the child in its own process group so a timeout
// can kill the whole tree, not just the direct child. npm and gradle
// both spawn grandchildren that would otherwise survive.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup signals the whole group of p. Falls back to killing
// just the process when the group signal fails.
func killProcessGroup(p *os.Process) {
	if p == nil {
		return
	}
	if pgid, err := unix.Getpgid(p.Pid); err == nil {
		if err := unix.Kill(-pgid, unix.SIGKILL); err == nil {
			return
		}
	}
	_ = p.Kill()
}
