package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/llehouerou/adspeed/internal/app"
	"github.com/llehouerou/adspeed/internal/log"
	"github.com/llehouerou/adspeed/internal/notify"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Attach to the browser and watch the configured tab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, paths, err := flags.loadConfig()
			if err != nil {
				return err
			}
			flags.configureLog(cfg, "adspeed")
			l := log.WithComponent("main")

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			notifier, err := notify.New()
			if err != nil {
				l.Warn().Err(err).Msg("desktop notifications unavailable")
				notifier = notify.Disabled()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := app.New(app.Options{
				Config:      cfg,
				ConfigPaths: paths,
				Store:       store,
				Notifier:    notifier,
				Attach:      app.ChromeAttach(app.BrowserOptions(cfg)),
			})
			l.Info().Str("signatures", a.Signatures().Version).Msg("starting")
			if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
