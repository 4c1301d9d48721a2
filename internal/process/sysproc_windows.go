//go:build windows

package process

import (
	"os"
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// signalProcess kills the process. Windows has no signal delivery beyond
// termination.
func signalProcess(p *os.Process, sig os.Signal) error {
	return p.Kill()
}

func terminatingSignal(state *os.ProcessState) (string, bool) {
	return "", false
}

// SignalName returns the conventional name of sig.
func SignalName(sig os.Signal) string {
	switch sig {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGKILL:
		return "SIGKILL"
	}
	return sig.String()
}
