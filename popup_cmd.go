package main

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/llehouerou/adspeed/internal/log"
	"github.com/llehouerou/adspeed/internal/popup"
)

func newPopupCmd(flags *rootFlags) *cobra.Command {
	var refresh time.Duration
	cmd := &cobra.Command{
		Use:   "popup",
		Short: "Show live counters with reset and consent controls",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, _, err := flags.loadConfig()
			if err != nil {
				return err
			}
			// the TUI owns the terminal
			log.Configure(log.Config{Output: io.Discard})

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return popup.Run(store, refresh)
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", popup.DefaultRefresh, "counter refresh interval")
	return cmd
}
