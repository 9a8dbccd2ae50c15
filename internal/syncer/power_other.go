//go:build !windows

package syncer

// acquireExecutionState is a no-op off Windows.
func acquireExecutionState() func() {
	return func() {}
}
