//go:build unix

package runner

import (
	"os"
	"syscall"
)

// sysProcAttr puts the child in its own process group so frameworks that
// fork workers (npm, uvicorn --reload) die with their parent.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcess(p *os.Process) error {
	return syscall.Kill(-p.Pid, syscall.SIGTERM)
}

func killProcess(p *os.Process) error {
	return syscall.Kill(-p.Pid, syscall.SIGKILL)
}
