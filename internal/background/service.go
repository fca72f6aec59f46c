// Package background executes the commands sessions send: it keeps the
// persisted counters, mutes the tab, and performs consent-gated trusted
// clicks.
package background

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/llehouerou/adspeed/internal/command"
	"github.com/llehouerou/adspeed/internal/log"
	"github.com/llehouerou/adspeed/internal/metrics"
	"github.com/llehouerou/adspeed/internal/notify"
	"github.com/llehouerou/adspeed/internal/state"
)

var (
	ErrConsentDenied = errors.New("debugger consent not granted")
	ErrNoTab         = errors.New("no tab attached")
)

// Tab is the browser tab the commands act on.
type Tab interface {
	SetMuted(ctx context.Context, muted bool) error
	DispatchTrustedClick(ctx context.Context, x, y float64) error
}

// Service is a command.Handler.
type Service struct {
	store    state.Interface
	tab      Tab
	notifier notify.Notifier
	log      zerolog.Logger
}

var _ command.Handler = (*Service)(nil)

// New creates a service. A nil notifier disables notifications.
func New(store state.Interface, tab Tab, notifier notify.Notifier) *Service {
	if notifier == nil {
		notifier = notify.Disabled()
	}
	return &Service{
		store:    store,
		tab:      tab,
		notifier: notifier,
		log:      log.WithComponent("background"),
	}
}

// HandleCommand executes msg. Failures are logged and reported in the
// response; they never propagate further.
func (s *Service) HandleCommand(ctx context.Context, msg command.Message) command.Response {
	err := s.handle(ctx, msg)
	metrics.RecordCommand(string(msg.Action), err == nil)
	if err != nil {
		s.log.Warn().Err(err).Str(log.FieldAction, string(msg.Action)).Msg("command failed")
		return command.Failed(err)
	}
	s.log.Debug().Str(log.FieldAction, string(msg.Action)).Msg("command handled")
	return command.Response{Success: true}
}

func (s *Service) handle(ctx context.Context, msg command.Message) error {
	switch msg.Action {
	case command.AdCounter:
		_, err := s.store.Increment(state.AdCounter)
		return err
	case command.WarningDetected:
		_, err := s.store.Increment(state.WarningCounter)
		return err
	case command.PageReload:
		n, err := s.store.Increment(state.ReloadCounter)
		if err != nil {
			return err
		}
		if _, err := s.notifier.Notify(notify.ReloadNotice(n)); err != nil {
			s.log.Debug().Err(err).Msg("reload notification failed")
		}
		return nil
	case command.Mute, command.Unmute:
		if s.tab == nil {
			return ErrNoTab
		}
		return s.tab.SetMuted(ctx, msg.Action == command.Mute)
	case command.TrustedSkipClick:
		return s.trustedClick(ctx, msg.X, msg.Y)
	default:
		return fmt.Errorf("%w: %q", command.ErrUnknownAction, msg.Action)
	}
}

func (s *Service) trustedClick(ctx context.Context, x, y float64) error {
	consent, err := s.store.Consent()
	if err != nil {
		return fmt.Errorf("reading consent: %w", err)
	}
	if !consent {
		return ErrConsentDenied
	}
	if s.tab == nil {
		return ErrNoTab
	}
	return s.tab.DispatchTrustedClick(ctx, x, y)
}
