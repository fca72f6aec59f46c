package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/llehouerou/adspeed/internal/errmsg"
	"github.com/llehouerou/adspeed/internal/state"
)

// withStore runs fn against the state database named by the configuration.
func withStore(flags *rootFlags, fn func(*state.Manager) error) error {
	cfg, _, err := flags.loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the persisted counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(flags, func(store *state.Manager) error {
				c, err := store.Counters()
				if err != nil {
					return errors.New(errmsg.Format(errmsg.OpStatsLoad, err))
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return json.NewEncoder(out).Encode(c)
				}
				fmt.Fprintf(out, "Ads sped up:   %s\n", humanize.Comma(c.Ads))
				fmt.Fprintf(out, "Warnings hit:  %s\n", humanize.Comma(c.Warnings))
				fmt.Fprintf(out, "Page reloads:  %s\n", humanize.Comma(c.Reloads))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newResetCmd(flags *rootFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the persisted counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			return withStore(flags, func(store *state.Manager) error {
				if err := store.ResetCounters(); err != nil {
					return errors.New(errmsg.Format(errmsg.OpStatsReset, err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Statistics reset")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the reset")
	return cmd
}

func newConsentCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "consent [on|off]",
		Short:     "Show or change consent for trusted clicks",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(flags, func(store *state.Manager) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					enabled := args[0] == "on"
					if err := store.SetConsent(enabled); err != nil {
						return errors.New(errmsg.Format(errmsg.OpConsentSave, err))
					}
				}
				enabled, err := store.Consent()
				if err != nil {
					return errors.New(errmsg.Format(errmsg.OpConsentLoad, err))
				}
				fmt.Fprintf(out, "Trusted clicks: %s\n", onOff(enabled))
				return nil
			})
		},
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
