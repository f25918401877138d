package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newPrecacheCommand(opts *rootOptions) *cobra.Command {
	var checkVersion bool

	cmd := &cobra.Command{
		Use:   "precache [urls...]",
		Short: "Fetch responses into the offline cache",
		Long: `Fetch responses into the offline cache. Paths starting with / are
resolved against the server URL.

With --check-version the deployed version.json is compared with the
cached one first, and the cache is emptied when it changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !checkVersion {
				return errors.New("nothing to do: pass urls or --check-version")
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if !a.monitor.Online() {
					return errors.New("server unreachable, nothing cached")
				}
				out := cmd.OutOrStdout()
				if checkVersion {
					version, changed, err := a.cache.CheckVersion(ctx, a.conf.ServerURL+"/version.json")
					if err != nil {
						return err
					}
					if changed {
						fmt.Fprintf(out, "version %s, cache emptied\n", version)
					} else {
						fmt.Fprintf(out, "version %s, cache up to date\n", version)
					}
				}
				if len(args) == 0 {
					return nil
				}

				urls := make([]string, 0, len(args))
				for _, u := range args {
					if strings.HasPrefix(u, "/") {
						u = a.conf.ServerURL + u
					}
					urls = append(urls, u)
				}
				cnt, err := a.cache.Precache(ctx, urls)
				fmt.Fprintf(out, "%d/%d cached\n", cnt, len(urls))
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&checkVersion, "check-version", false, "purge the cache when the deployed version changed")
	return cmd
}
