// Package notify sends desktop notifications about forced page reloads.
package notify

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Urgency represents notification priority levels as defined by the freedesktop notification protocol.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notification contains data for a desktop notification.
type Notification struct {
	Title      string  // Summary text (required)
	Body       string  // Body text (optional, supports basic markup)
	Icon       string  // Path to image file or icon name (optional)
	Timeout    int32   // ms, -1 = server default, 0 = never expire
	ReplacesID uint32  // 0 = new notification, >0 = replace existing
	Urgency    Urgency // Low, Normal, Critical
	// Category groups notifications; a newer one replaces the previous one
	// of the same category.
	Category string
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify sends a notification and returns its ID.
	// Returns 0 and nil error if notifications are disabled or unavailable.
	Notify(n Notification) (uint32, error)
	// Close closes a notification by ID.
	Close(id uint32) error
}

// ReloadCategory is the category of forced-reload notices.
const ReloadCategory = "adspeed.reload"

type disabled struct{}

func (disabled) Notify(Notification) (uint32, error) { return 0, nil }
func (disabled) Close(uint32) error                  { return nil }

// Disabled returns a notifier that drops everything.
func Disabled() Notifier {
	return disabled{}
}

// ReloadNotice builds the notification shown when a denial warning forced a
// page reload. reloads is the total after this one.
func ReloadNotice(reloads int64) Notification {
	return Notification{
		Title:    "Playback page reloaded",
		Body:     fmt.Sprintf("A blocking warning was detected and the page was reloaded (%s so far).", humanize.Comma(reloads)),
		Icon:     "view-refresh",
		Timeout:  5000,
		Urgency:  UrgencyNormal,
		Category: ReloadCategory,
	}
}

// Recorder is a Notifier for tests that keeps every notification.
type Recorder struct {
	Sent   []Notification
	Closed []uint32
	Err    error
}

func (r *Recorder) Notify(n Notification) (uint32, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.Sent = append(r.Sent, n)
	return uint32(len(r.Sent)), nil
}

func (r *Recorder) Close(id uint32) error {
	r.Closed = append(r.Closed, id)
	return nil
}
