// Package app wires a browser tab, the session loop, the command service and
// the local API into one running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/llehouerou/adspeed/internal/api"
	"github.com/llehouerou/adspeed/internal/background"
	"github.com/llehouerou/adspeed/internal/command"
	"github.com/llehouerou/adspeed/internal/config"
	"github.com/llehouerou/adspeed/internal/errmsg"
	"github.com/llehouerou/adspeed/internal/log"
	"github.com/llehouerou/adspeed/internal/loop"
	"github.com/llehouerou/adspeed/internal/metrics"
	"github.com/llehouerou/adspeed/internal/notify"
	"github.com/llehouerou/adspeed/internal/session"
	"github.com/llehouerou/adspeed/internal/signature"
	"github.com/llehouerou/adspeed/internal/state"
)

const (
	shutdownTimeout = 5 * time.Second
	statusTimeout   = time.Second
)

// Options configures an App.
type Options struct {
	Config *config.Config
	// ConfigPaths are watched for signature changes. Empty disables the
	// watcher.
	ConfigPaths []string
	Store       state.Interface
	Notifier    notify.Notifier
	Attach      AttachFunc
	// Listener overrides the API listen address, mostly for tests.
	Listener net.Listener
}

// App is the running process.
type App struct {
	cfg      *config.Config
	paths    []string
	store    state.Interface
	notifier notify.Notifier
	attach   AttachFunc
	listener net.Listener

	sigs *signature.Store
	loop *loop.Loop
	bus  *command.Bus
	log  zerolog.Logger

	// owned by the loop
	host     Host
	session  *session.Session
	stopping bool
}

// New creates an App. Nothing runs until Run.
func New(opts Options) *App {
	notifier := opts.Notifier
	if notifier == nil || !opts.Config.NotifyEnabled() {
		notifier = notify.Disabled()
	}
	return &App{
		cfg:      opts.Config,
		paths:    opts.ConfigPaths,
		store:    opts.Store,
		notifier: notifier,
		attach:   opts.Attach,
		listener: opts.Listener,
		sigs:     signature.NewStore(opts.Config.Signatures),
		loop:     loop.New(),
		bus:      command.NewBus(command.DefaultBufferSize),
		log:      log.WithComponent("app"),
	}
}

// Run attaches to the browser and blocks until ctx is cancelled or a
// subsystem fails.
//
// The loop and the command bus run on their own contexts: on shutdown the
// session is closed on the still-running loop, and the commands it emits are
// drained to the tab before the host goes away.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(runCtx)

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		a.loop.Run(loopCtx)
	}()

	host, err := a.attach(ctx, a.loop.Post)
	if err != nil {
		stopLoop()
		<-loopDone
		return errors.New(errmsg.Format(errmsg.OpTabAttach, err))
	}
	a.host = host

	serveCtx, stopServe := context.WithCancel(context.Background())
	defer stopServe()
	busDone := make(chan struct{})
	svc := background.New(a.store, host, a.notifier)
	go func() {
		defer close(busDone)
		if err := a.bus.Serve(serveCtx, svc); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error().Err(err).Msg("command bus stopped")
		}
	}()

	host.OnNavigate(a.restart)
	// Call only fails when ctx is already done; shutdown below covers it.
	_ = a.loop.Call(ctx, a.startSession)

	var watcher *config.Watcher
	if ctx.Err() == nil && a.cfg.APIEnabled() {
		if err := a.serveAPI(ctx, g); err != nil {
			g.Go(func() error { return err })
		}
	}

	// Signature hot reload is best-effort.
	if ctx.Err() == nil && len(a.paths) > 0 {
		watcher, err = config.WatchPaths(a.paths, a.applyConfig)
		if err != nil {
			a.log.Warn().Err(err).Msg("config watcher not started")
		}
	}

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if watcher != nil {
		_ = watcher.Close()
	}
	if err := a.loop.Call(shutdownCtx, a.stopSession); err != nil {
		a.log.Warn().Err(err).Msg("session not closed cleanly")
	}
	stopLoop()
	<-loopDone

	a.bus.Close()
	select {
	case <-busDone:
	case <-shutdownCtx.Done():
		stopServe()
		<-busDone
	}
	host.Close()

	err = g.Wait()
	a.log.Info().Msg("stopped")
	return err
}

func (a *App) serveAPI(ctx context.Context, g *errgroup.Group) error {
	apiCfg := a.cfg.GetAPIConfig()
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", apiCfg.Listen)
		if err != nil {
			return errors.New(errmsg.Format(errmsg.OpAPIServe, err))
		}
	}
	srv := &http.Server{
		Handler: api.New(api.Config{
			Store:     a.store,
			Session:   a,
			RateLimit: apiCfg.RateLimit,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.log.Info().Str("addr", ln.Addr().String()).Msg("api listening")

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return nil
}

// startSession builds a session for the document currently in the tab. It
// runs on the loop.
func (a *App) startSession() {
	if a.stopping {
		return
	}
	s := session.New(SessionConfig(a.cfg), a.host.Document(), a.sigs, a.loop, a.bus)
	if err := s.Start(); err != nil {
		a.log.Error().Msg(errmsg.Format(errmsg.OpSessionStart, err))
		s.Close()
		return
	}
	a.session = s
}

// stopSession closes the running session for good. It runs on the loop.
func (a *App) stopSession() {
	a.stopping = true
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
}

// restart replaces the session after a navigation. It runs on the loop.
func (a *App) restart() {
	if a.stopping {
		return
	}
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
	a.startSession()
}

// applyConfig installs reloaded signatures. It runs on the watcher's
// goroutine; the store swap is atomic and sessions pick it up on their next
// batch.
func (a *App) applyConfig(cfg *config.Config, err error) {
	if err == nil {
		err = a.sigs.Replace(cfg.Signatures)
	}
	metrics.RecordSignatureReload(err == nil)
	if err != nil {
		a.log.Warn().Msg(errmsg.Format(errmsg.OpSignaturesReload, err))
		return
	}
	a.log.Info().Str(log.FieldSigVersion, cfg.Signatures.Version).Msg("signatures reloaded")
}

// Status reports the running session. It is safe to call from any
// goroutine.
func (a *App) Status() (session.Status, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()
	var st session.Status
	var ok bool
	err := a.loop.Call(ctx, func() {
		if a.session != nil {
			st, ok = a.session.Status(), true
		}
	})
	if err != nil {
		return session.Status{}, false
	}
	return st, ok
}

// Signatures returns the active signature set.
func (a *App) Signatures() signature.Set {
	return a.sigs.Current()
}
