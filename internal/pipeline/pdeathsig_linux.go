//go:build linux

package pipeline

import "syscall"

// PR_SET_PDEATHSIG, from linux/prctl.h.
const prSetPDeathSig = 1

// EnableParentDeathSignal arranges for the kernel to send this process
// SIGTERM when its direct parent dies. Without it, a worker started through
// an intermediate process (a supervisor shell, `go run`) can outlive the
// parent and never see the shutdown signal, so the pipeline never drains.
func EnableParentDeathSignal() error {
	_, _, errno := syscall.RawSyscall(
		syscall.SYS_PRCTL,
		uintptr(prSetPDeathSig),
		uintptr(syscall.SIGTERM),
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}
