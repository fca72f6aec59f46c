//go:build !linux

package notify

// New returns Disabled() on platforms without a freedesktop session bus.
func New() (Notifier, error) {
	return Disabled(), nil
}
