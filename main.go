package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/llehouerou/adspeed/internal/config"
	"github.com/llehouerou/adspeed/internal/errmsg"
	"github.com/llehouerou/adspeed/internal/log"
	"github.com/llehouerou/adspeed/internal/state"
)

type rootFlags struct {
	configPaths []string
	statePath   string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "adspeed",
		Short:         "Fast-forward video ads in a Chromium tab",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&flags.configPaths, "config", nil, "config file(s), later ones override earlier ones")
	root.PersistentFlags().StringVar(&flags.statePath, "state", "", "state database path")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(flags),
		newPopupCmd(flags),
		newStatsCmd(flags),
		newResetCmd(flags),
		newConsentCmd(flags),
	)
	return root
}

// loadConfig reads the configuration and returns the files it came from.
func (f *rootFlags) loadConfig() (*config.Config, []string, error) {
	paths := f.configPaths
	var cfg *config.Config
	var err error
	if len(paths) > 0 {
		cfg, err = config.LoadFrom(paths)
	} else {
		paths = config.ExistingPaths()
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, errors.New(errmsg.FormatWith(errmsg.OpConfigLoad, strings.Join(f.configPaths, ", "), err))
	}
	if f.statePath != "" {
		cfg.StatePath = f.statePath
	}
	return cfg, paths, nil
}

func (f *rootFlags) configureLog(cfg *config.Config, service string) {
	lc := cfg.GetLogConfig()
	if f.logLevel != "" {
		lc.Level = f.logLevel
	}
	log.Configure(log.Config{
		Level:   lc.Level,
		Service: service,
		Pretty:  *lc.Pretty,
	})
}

func openStore(cfg *config.Config) (*state.Manager, error) {
	var (
		store *state.Manager
		err   error
	)
	if cfg.StatePath != "" {
		store, err = state.OpenPath(cfg.StatePath)
	} else {
		store, err = state.Open()
	}
	if err != nil {
		return nil, errors.New(errmsg.FormatWith(errmsg.OpInitialize, cfg.StatePath, err))
	}
	return store, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
