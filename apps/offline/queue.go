package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/simonmuehling/educafric-app-sub019/client/offlinefirst"
	"github.com/simonmuehling/educafric-app-sub019/client/swcache"
	"github.com/simonmuehling/educafric-app-sub019/client/syncqueue"
	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/academic"
)

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return core.FromMillis(ms).Local().Format(time.RFC3339)
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, queue depth and cache version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				items, err := a.queue.Pending(ctx)
				if err != nil {
					return err
				}
				schoolID, err := a.store.GetMeta(ctx, metaSchoolID)
				if err != nil {
					return err
				}
				if a.conf.SchoolID != "" {
					schoolID = a.conf.SchoolID
				}
				version, err := a.store.GetMeta(ctx, swcache.VersionKey)
				if err != nil {
					return err
				}
				lastSync, err := a.store.GetMeta(ctx, metaLastSync)
				if err != nil {
					return err
				}
				last, _ := strconv.ParseInt(lastSync, 10, 64)

				online := "no"
				if a.monitor.Online() {
					online = "yes"
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "server:\t%s\n", a.conf.ServerURL)
				fmt.Fprintf(w, "online:\t%s\n", online)
				fmt.Fprintf(w, "school:\t%s\n", orDash(schoolID))
				fmt.Fprintf(w, "pending:\t%d\n", len(items))
				fmt.Fprintf(w, "cache version:\t%s\n", orDash(version))
				fmt.Fprintf(w, "last sync:\t%s\n", formatMillis(last))
				return w.Flush()
			})
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newQueueCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List the changes waiting for the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				items, err := a.queue.Pending(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "SEQ\tMODULE\tOPERATION\tENTITY\tATTEMPTS\tNEXT ATTEMPT\tLAST ERROR")
				for _, item := range items {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
						item.Seq, item.Module, item.Operation, item.EntityID, item.Attempts,
						formatMillis(item.NextAttemptAt), orDash(item.LastError))
				}
				return w.Flush()
			})
		},
	}
}

// syncAll drains the queue then refreshes every module.
func syncAll(ctx context.Context, a *app) (syncqueue.Result, error) {
	if !a.monitor.Online() {
		return syncqueue.Result{}, errors.Wrap(syncqueue.ErrOffline, "server unreachable")
	}
	res, err := a.queue.ProcessQueue(ctx)
	if err != nil {
		if errors.Is(err, syncqueue.ErrUnauthorized) {
			return res, errors.Wrap(err, "log in again")
		}
		return res, err
	}
	for _, module := range academic.Modules {
		coll, err := a.collection(ctx, module)
		if err != nil {
			return res, err
		}
		if _, err = coll.Refresh(ctx); err != nil {
			return res, err
		}
	}
	return res, a.store.SetMeta(ctx, metaLastSync, strconv.FormatInt(core.Millis(core.NowUTC()), 10))
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send the queued changes then refresh every module",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res, err := syncAll(ctx, a)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent %d, failed %d, skipped %d, left %d\n", res.Processed, res.Failed, res.Skipped, res.Remaining)
				return nil
			})
		},
	}
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay running and sync every time the server comes back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if a.prober == nil {
					return errors.New("watch needs the server, drop --offline")
				}
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				colls := make([]*offlinefirst.Collection, 0, len(academic.Modules))
				for _, module := range academic.Modules {
					coll, err := a.collection(ctx, module)
					if err != nil {
						return err
					}
					colls = append(colls, coll)
				}

				var wg sync.WaitGroup
				for _, coll := range colls {
					wg.Add(1)
					go func(coll *offlinefirst.Collection) {
						defer wg.Done()
						coll.Watch(ctx)
					}(coll)
				}

				if a.monitor.Online() {
					if res, err := syncAll(ctx, a); err != nil {
						a.logger.Warn(fmt.Sprintf("syncing: %v", err))
					} else {
						a.logger.Info(fmt.Sprintf("synced: %d sent, %d failed, %d left", res.Processed, res.Failed, res.Remaining))
					}
				}
				a.prober.Run(ctx)
				wg.Wait()
				return nil
			})
		},
	}
}
