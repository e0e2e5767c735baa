package main

import (
	"fmt"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

func newSweepCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired entries and trim the cache directory to its size bound",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			// the startup sweep is queued ahead of this one, totals include both
			if _, _, err = c.Sweep(cmd.Context()); err != nil {
				return err
			}
			s := c.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "expired: %d, evicted: %d, left: %d files (%s)\n",
				s.SweeperExpired, s.SweeperEvicted, s.DiskFiles, humanize.IBytes(uint64(s.DiskBytes)))
			return nil
		},
	}
}

func newClearCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cfg, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			s := c.Stats()
			c.Clear()
			if err = c.Sync(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d files (%s) from %s\n", s.DiskFiles, humanize.IBytes(uint64(s.DiskBytes)), cfg.Disk.Dir)
			return nil
		},
	}
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print cache metrics in the Prometheus text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err = c.Sync(cmd.Context()); err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			if err = reg.Register(c.Collector()); err != nil {
				return err
			}
			families, err := reg.Gather()
			if err != nil {
				return err
			}
			for _, mf := range families {
				if _, err = expfmt.MetricFamilyToText(cmd.OutOrStdout(), mf); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
