package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/reelsync/reelsync/internal/api"
	"github.com/reelsync/reelsync/internal/config"
	"github.com/reelsync/reelsync/internal/library"
	"github.com/reelsync/reelsync/internal/netmon"
	"github.com/reelsync/reelsync/internal/store"
	"github.com/reelsync/reelsync/internal/syncer"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagVerbose    bool
	flagQuiet      bool
)

// httpClientTimeout is the default timeout for HTTP requests.
// Prevents hung connections from blocking CLI commands indefinitely.
const httpClientTimeout = 30 * time.Second

// sessionCacheKey is where the resolved user session is cached between runs,
// so offline invocations still know who the queue belongs to.
const sessionCacheKey = "session:user"

// sessionCacheTTLMinutes keeps the cached session for a week.
const sessionCacheTTLMinutes = 7 * 24 * 60

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reelsync",
		Short:   "Offline-first movie favorites and watchlist sync",
		Version: version,
		Long: `reelsync keeps your movie favorites and watchlist in a local database and
reconciles them with your tracking service account whenever connectivity
allows. Every change lands locally first; a durable outbox replays it
remotely, immediately when online and on reconnect otherwise.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path (default: user config dir)")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "errors only")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(
		newAddCmd(),
		newRemoveCmd(),
		newToggleCmd(),
		newListCmd(),
		newStatusCmd(),
		newSyncCmd(),
		newWatchCmd(),
	)

	return cmd
}

// buildLogger resolves the log level from config, letting --verbose and
// --quiet override it because CLI flags always win.
func buildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo

	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// app wires the explicitly constructed services together for one command
// invocation. Nothing here is a package-level singleton; every dependency is
// passed at composition time.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *store.Store
	client    *api.Client
	monitor   *netmon.Monitor
	manager   *syncer.Manager
	favorites *library.Service
	watchlist *library.Service
}

// newApp loads config and composes the whole service graph. It probes
// connectivity once so one-shot commands see an accurate online state without
// running the monitor loop.
func newApp(ctx context.Context) (*app, error) {
	cfgPath := flagConfigPath
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger := buildLogger(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	st, err := store.Open(cfg.Storage.DBPath, logger)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: httpClientTimeout}
	client := api.NewClient(cfg.API.BaseURL, httpClient, api.StaticToken(cfg.API.Token), logger)

	prober := netmon.NewHTTPProber(cfg.API.BaseURL+api.PingPath, nil)
	monitor := netmon.New(prober, time.Duration(cfg.Sync.ProbeIntervalSeconds)*time.Second, logger)
	monitor.SetOnline(prober.Probe(ctx))

	userID := resolveUser(ctx, st, client, monitor, logger)

	manager := syncer.New(st, client, monitor, userID, logger)
	favorites := library.NewFavorites(st, manager, monitor, logger)
	watchlist := library.NewWatchlist(st, manager, monitor, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		client:    client,
		monitor:   monitor,
		manager:   manager,
		favorites: favorites,
		watchlist: watchlist,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// service returns the favorites or watchlist service depending on the
// --watchlist flag shared by the mutation commands.
func (a *app) service(watchlist bool) *library.Service {
	if watchlist {
		return a.watchlist
	}

	return a.favorites
}

// resolveUser returns the session's user id, preferring the cached session
// and falling back to a remote lookup when online. An empty id means no
// session; drains will report that instead of failing mutation by mutation.
func resolveUser(ctx context.Context, st *store.Store, client *api.Client, monitor *netmon.Monitor, logger *slog.Logger) string {
	var user api.User
	if st.CacheGet(ctx, sessionCacheKey, &user) {
		return user.ID
	}

	if !monitor.IsOnline() {
		logger.Debug("no cached session and offline, deferring user lookup")
		return ""
	}

	fetched, err := client.CurrentUser(ctx)
	if err != nil {
		logger.Warn("user lookup failed", "error", err)
		return ""
	}

	st.CacheSet(ctx, sessionCacheKey, fetched, sessionCacheTTLMinutes)

	return fetched.ID
}
