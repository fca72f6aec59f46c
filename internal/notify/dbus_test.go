//go:build linux

package notify

import (
	"os"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestNotifyArgsLayout(t *testing.T) {
	args := notifyArgs(ReloadNotice(3), 42)
	if len(args) != 8 {
		t.Fatalf("len(args) = %d, want 8", len(args))
	}
	if args[0] != appName {
		t.Errorf("app_name = %v", args[0])
	}
	if args[1] != uint32(42) {
		t.Errorf("replaces_id = %v, want 42", args[1])
	}
	if args[3] != "Playback page reloaded" {
		t.Errorf("summary = %v", args[3])
	}
	hints, ok := args[6].(map[string]dbus.Variant)
	if !ok {
		t.Fatalf("hints has type %T", args[6])
	}
	if got := hints["urgency"].Value(); got != byte(UrgencyNormal) {
		t.Errorf("urgency hint = %v", got)
	}
	if got := hints["category"].Value(); got != ReloadCategory {
		t.Errorf("category hint = %v", got)
	}
	if args[7] != int32(5000) {
		t.Errorf("expire_timeout = %v", args[7])
	}
}

func TestNotifyArgsClampsTimeout(t *testing.T) {
	args := notifyArgs(Notification{Title: "x", Timeout: -40}, 0)
	if args[7] != int32(serverDefaultExpiry) {
		t.Errorf("expire_timeout = %v, want server default", args[7])
	}
	hints := args[6].(map[string]dbus.Variant)
	if _, ok := hints["category"]; ok {
		t.Error("category hint set without a category")
	}
}

func TestReloadNoticesReplaceEachOther(t *testing.T) {
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		t.Skip("no D-Bus session available")
	}

	notifier, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	id1, err := notifier.Notify(ReloadNotice(1))
	if err != nil {
		t.Fatalf("first Notify() error: %v", err)
	}
	id2, err := notifier.Notify(ReloadNotice(2))
	if err != nil {
		t.Fatalf("second Notify() error: %v", err)
	}
	if id1 != id2 {
		t.Errorf("second reload notice got id=%d, want %d", id2, id1)
	}
	if err := notifier.Close(id2); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
