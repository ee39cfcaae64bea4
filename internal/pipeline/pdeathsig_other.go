//go:build !linux

package pipeline

// EnableParentDeathSignal does nothing outside Linux; PR_SET_PDEATHSIG has
// no equivalent on the other supported platforms.
func EnableParentDeathSignal() error { return nil }
