package main

import (
	"github.com/Borislavv/go-ash-imgcache"
	"github.com/Borislavv/go-ash-imgcache/config"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	dir        string
	logLevel   string
	logFile    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "imgcache",
		Short:        "Inspect and warm the on-disk image cache",
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a yaml config file")
	pf.StringVar(&flags.dir, "dir", "", "cache directory, overrides disk.dir")
	pf.StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFile, "log-file", "", "write logs to a rotated file instead of stderr")

	cmd.AddCommand(
		newFetchCmd(flags),
		newSweepCmd(flags),
		newClearCmd(flags),
		newStatsCmd(flags),
	)
	return cmd
}

// open loads the config and builds a cache. The caller must Close it.
func (f *rootFlags) open(cmd *cobra.Command) (*imgcache.Cache, *config.Cache, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}
	if f.dir != "" {
		cfg.Disk.Dir = f.dir
	}

	logger, err := newLogger(f.logLevel, f.logFile, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return imgcache.New(cmd.Context(), cfg, logger), cfg, nil
}
