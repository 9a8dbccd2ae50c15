//go:build windows

package syncer

import "golang.org/x/sys/windows"

const (
	esContinuous     = 0x80000000
	esSystemRequired = 0x00000001
)

var (
	kernel32                    = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadExecutionState = kernel32.NewProc("SetThreadExecutionState")
)

// acquireExecutionState asks Windows to keep the system awake for the
// duration of a sync. The returned release restores the previous state and
// must run on every exit path, panics included.
func acquireExecutionState() func() {
	prev, _, _ := procSetThreadExecutionState.Call(uintptr(esContinuous | esSystemRequired))
	return func() {
		if prev != 0 {
			procSetThreadExecutionState.Call(prev)
			return
		}
		procSetThreadExecutionState.Call(uintptr(esContinuous))
	}
}
