package main

import (
	"fmt"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"sync/atomic"
)

func newFetchCmd(flags *rootFlags) *cobra.Command {
	var articlesPath string

	cmd := &cobra.Command{
		Use:   "fetch [urls...]",
		Short: "Load images through the cache, downloading the missing ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := append([]string(nil), args...)
			if articlesPath != "" {
				fromFile, err := imageURLs(articlesPath)
				if err != nil {
					return err
				}
				urls = append(urls, fromFile...)
			}
			if len(urls) == 0 {
				return errors.New("no urls given")
			}

			c, cfg, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			var missing atomic.Int64
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(cfg.Loader.MaxConnections)
			for _, u := range urls {
				u := u
				g.Go(func() error {
					img := <-c.LoadImage(ctx, u)
					if img == nil {
						missing.Add(1)
						fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", "absent", u)
						return nil
					}
					b := img.Bounds()
					fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s %dx%d\n", "ok", u, b.Dx(), b.Dy())
					return nil
				})
			}
			if err = g.Wait(); err != nil {
				return err
			}
			if err = c.Sync(cmd.Context()); err != nil {
				return err
			}

			s := c.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d/%d, fetched %d, disk: %d files, %s\n",
				int64(len(urls))-missing.Load(), len(urls), s.Loader.Fetches, s.DiskFiles, humanize.IBytes(uint64(s.DiskBytes)))
			if missing.Load() > 0 {
				return errors.Newf("%d of %d images are absent", missing.Load(), len(urls))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&articlesPath, "articles", "", "news API response json, every urlToImage is fetched")
	return cmd
}
