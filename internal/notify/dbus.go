//go:build linux

package notify

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsName   = "org.freedesktop.Notifications"
	notificationsPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	methodNotify        = notificationsName + ".Notify"
	methodCloseNotif    = notificationsName + ".CloseNotification"
	appName             = "AdSpeed"
	desktopEntry        = "adspeed"
	serverDefaultExpiry = -1
)

// desktopNotifier talks to the freedesktop notification daemon on the
// session bus. Notifications sharing a Category replace each other.
type desktopNotifier struct {
	obj dbus.BusObject

	mu   sync.Mutex
	last map[string]uint32
}

// New connects to the session bus. Without one it returns Disabled().
func New() (Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return Disabled(), nil //nolint:nilerr // no session bus means no notifications
	}
	return &desktopNotifier{
		obj:  conn.Object(notificationsName, notificationsPath),
		last: make(map[string]uint32),
	}, nil
}

func (d *desktopNotifier) Notify(n Notification) (uint32, error) {
	replaces := n.ReplacesID
	if replaces == 0 && n.Category != "" {
		d.mu.Lock()
		replaces = d.last[n.Category]
		d.mu.Unlock()
	}

	var id uint32
	err := d.obj.Call(methodNotify, 0, notifyArgs(n, replaces)...).Store(&id)
	if err != nil {
		return 0, fmt.Errorf("notify %q: %w", n.Title, err)
	}

	if n.Category != "" {
		d.mu.Lock()
		d.last[n.Category] = id
		d.mu.Unlock()
	}
	return id, nil
}

func (d *desktopNotifier) Close(id uint32) error {
	if err := d.obj.Call(methodCloseNotif, 0, id).Err; err != nil {
		return fmt.Errorf("close notification %d: %w", id, err)
	}
	d.mu.Lock()
	for cat, last := range d.last {
		if last == id {
			delete(d.last, cat)
		}
	}
	d.mu.Unlock()
	return nil
}

// notifyArgs lays out the arguments of
// Notify(app_name, replaces_id, app_icon, summary, body, actions, hints, expire_timeout).
func notifyArgs(n Notification, replaces uint32) []any {
	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(n.Urgency)),
		"desktop-entry": dbus.MakeVariant(desktopEntry),
	}
	if n.Category != "" {
		hints["category"] = dbus.MakeVariant(n.Category)
	}
	timeout := n.Timeout
	if timeout < serverDefaultExpiry {
		timeout = serverDefaultExpiry
	}
	return []any{appName, replaces, n.Icon, n.Title, n.Body, []string{}, hints, timeout}
}
