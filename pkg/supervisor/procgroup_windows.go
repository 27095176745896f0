//go:build windows

package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
)

func setProcessGroup(*exec.Cmd) {}

// killTree asks taskkill to end the process and its descendants, falling back
// to killing the direct child.
func killTree(p *os.Process) error {
	//nolint:gosec // pid is ours
	if err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(p.Pid)).Run(); err == nil {
		return nil
	}

	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
