package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/simonmuehling/educafric-app-sub019/client"
	"github.com/simonmuehling/educafric-app-sub019/client/api"
	"github.com/simonmuehling/educafric-app-sub019/client/offlinedb"
	"github.com/simonmuehling/educafric-app-sub019/client/offlinefirst"
	"github.com/simonmuehling/educafric-app-sub019/client/swcache"
	"github.com/simonmuehling/educafric-app-sub019/client/syncqueue"
	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/academic"
	logsvc "github.com/simonmuehling/educafric-app-sub019/services/logger"
)

// metadata keys
const (
	metaToken    = "auth_token"
	metaSchoolID = "school_id"
	metaLastSync = "last_sync"
)

type rootOptions struct {
	configFile string
	v          *viper.Viper
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "educafric-offline",
		Short: "Educafric offline client",
		Long: `Work on the school records without a connection.

Changes are kept in a local database and queued, then sent to the
server in order once it answers again.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	pf.String("server", "", "API base URL (default http://localhost:8000)")
	pf.String("token", "", "API token, defaults to the one saved by login")
	pf.String("school", "", "school id, defaults to the school of the logged in user")
	pf.String("db", "", "offline database path (default "+offlinedb.DefaultPath+")")
	pf.Duration("probe-interval", 0, "connectivity probe interval (default 30s)")
	pf.String("log-file", "", "also log to this rotating file")
	pf.Bool("offline", false, "never reach the server")
	for _, name := range []string{"server", "token", "school", "db", "probe-interval", "log-file", "offline"} {
		_ = opts.v.BindPFlag(name, pf.Lookup(name))
	}

	cmd.AddCommand(newLoginCommand(opts))
	cmd.AddCommand(newLogoutCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newQueueCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newRefreshCommand(opts))
	cmd.AddCommand(newCreateCommand(opts))
	cmd.AddCommand(newUpdateCommand(opts))
	cmd.AddCommand(newRemoveCommand(opts))
	cmd.AddCommand(newPrecacheCommand(opts))

	return cmd
}

// app is the offline client assembled for one command.
type app struct {
	conf    client.Config
	logger  core.Logger
	store   *offlinedb.DB
	cache   *swcache.Transport
	api     *api.Client
	queue   *syncqueue.Manager
	monitor offlinefirst.Monitor
	prober  *offlinefirst.ProbeMonitor // nil in offline mode
}

func openApp(ctx context.Context, cmd *cobra.Command, opts *rootOptions) (*app, error) {
	conf, err := client.NewConfig(opts.v, opts.configFile)
	if err != nil {
		return nil, err
	}
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLoggerTo(cmd.ErrOrStderr(), "OFFLINE : ", conf.Core()), conf.Core())
	logger.Enable(false)

	store, err := offlinedb.Open(conf.DBPath)
	if err != nil {
		return nil, err
	}

	token := conf.Token
	if token == "" {
		if token, err = store.GetMeta(ctx, metaToken); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	cache := swcache.NewTransport(store, nil, logger)
	apiClient := api.New(conf.ServerURL, token, api.WithHTTPClient(&http.Client{Transport: cache, Timeout: 30 * time.Second}))

	a := &app{
		conf:   conf,
		logger: logger,
		store:  store,
		cache:  cache,
		api:    apiClient,
		queue:  syncqueue.NewManager(store, apiClient, logger),
	}
	if conf.Offline {
		a.monitor = offlinefirst.NewStaticMonitor(false)
	} else {
		a.prober = offlinefirst.NewProbeMonitor(apiClient, conf.ProbeInterval, logger)
		a.prober.Probe(ctx)
		a.monitor = a.prober
	}
	return a, nil
}

func (a *app) Close() error {
	a.cache.Wait()
	return a.store.Close()
}

// schoolID resolves the school from the config, then the login, then the server.
func (a *app) schoolID(ctx context.Context) (string, error) {
	if a.conf.SchoolID != "" {
		return a.conf.SchoolID, nil
	}
	id, err := a.store.GetMeta(ctx, metaSchoolID)
	if err != nil || id != "" {
		return id, err
	}
	if !a.monitor.Online() {
		return "", errors.New("unknown school: log in or pass --school")
	}
	sch, err := a.api.CurrentSchool(ctx)
	if err != nil {
		return "", errors.Wrap(err, "fetching current school")
	}
	return sch.ID, a.store.SetMeta(ctx, metaSchoolID, sch.ID)
}

func (a *app) collection(ctx context.Context, module string) (*offlinefirst.Collection, error) {
	if !academic.IsModule(module) {
		return nil, errors.Errorf("unknown module %q, expected one of %v", module, academic.Modules)
	}
	schoolID, err := a.schoolID(ctx)
	if err != nil {
		return nil, err
	}
	return offlinefirst.NewCollection(module, schoolID, a.store, a.api, a.queue, a.monitor, a.logger)
}

// withApp opens the client, runs fn and closes the client.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
