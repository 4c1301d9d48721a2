//go:build unix

package process

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// signalProcess sends sig to the process group led by p, falling back to
// the process itself when the group cannot be resolved.
func signalProcess(p *os.Process, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return p.Signal(sig)
	}

	pgid, err := unix.Getpgid(p.Pid)
	if err == nil && pgid == p.Pid {
		return unix.Kill(-pgid, s)
	}
	return p.Signal(sig)
}

func terminatingSignal(state *os.ProcessState) (string, bool) {
	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return "", false
	}
	return SignalName(status.Signal()), true
}

// SignalName returns the conventional name of sig ("SIGINT").
func SignalName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		if name := unix.SignalName(s); name != "" {
			return name
		}
	}
	return sig.String()
}
