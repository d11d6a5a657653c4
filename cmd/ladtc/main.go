package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/ladtc/ladtc/cmd/ladtc/cli"
	"github.com/ladtc/ladtc/internal/app"
	"github.com/ladtc/ladtc/internal/audit"
	audithttp "github.com/ladtc/ladtc/internal/audit/http"
	"github.com/ladtc/ladtc/internal/auth"
	"github.com/ladtc/ladtc/internal/guard"
	"github.com/ladtc/ladtc/internal/membership"
	"github.com/ladtc/ladtc/internal/observability"
	"github.com/ladtc/ladtc/internal/platform/cache"
	"github.com/ladtc/ladtc/internal/platform/db"
	"github.com/ladtc/ladtc/internal/rbac"
	"github.com/ladtc/ladtc/internal/renewal"
	"github.com/ladtc/ladtc/internal/users"
	"github.com/ladtc/ladtc/jobs"
)

const usage = `usage: ladtc <command>

commands:
  serve                          run the HTTP server (default)
  migrate                        apply embedded database migrations
  jobs trigger renewal-scan      enqueue a renewal reminder scan [--window N]
  jobs inspect                   print default queue statistics
  renewals due                   list memberships due for a reminder [--window N] [--json]
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	var code int
	switch command {
	case "serve":
		code = serve(ctx, cfg, logger)
	case "migrate":
		code = migrate(cfg, logger)
	case "jobs":
		code = jobsCommand(ctx, cfg, args)
	case "renewals":
		code = renewalsCommand(ctx, cfg, logger, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		code = 2
	}
	stop()
	os.Exit(code)
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) int {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	sessions, closeSessions, err := sessionStore(ctx, cfg, pool)
	if err != nil {
		logger.Error("session store", slog.Any("error", err))
		return 1
	}
	defer closeSessions()

	metrics := observability.NewMetrics()
	policy := rbac.DefaultPolicy()
	rbacMiddleware := rbac.Middleware{Policy: policy, Principal: auth.PrincipalFromContext, Logger: logger}

	resolver := auth.NewResolver(sessions, logger)
	extractor := auth.NewCredentialExtractor(cfg.SessionCookieNames, cfg.SessionSecret)

	auditStore := audit.NewPGStore(pool)
	recorder := audit.NewRecorder(auditStore, logger, metrics, cfg.AuditQueueSize)

	membershipService := membership.NewService(
		membership.NewRepository(pool),
		membership.NewMachine(cfg.MembershipPeriodMonths),
		recorder,
		cfg.ExpiringWindow(),
	)
	usersService := users.NewService(users.NewRepository(pool), policy, recorder)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,
		Guard: guard.New(guard.Config{
			Policy:      guard.DefaultRoutePolicy(),
			Resolver:    resolver,
			Credentials: extractor,
			LoginPath:   cfg.LoginPath,
			DeniedPath:  cfg.DeniedPath,
			Logger:      logger,
			Metrics:     metrics,
		}),
		RBACMiddleware:    rbacMiddleware,
		AuthHandler:       auth.NewHandler(logger, resolver, extractor),
		MembershipHandler: membership.NewHandler(logger, membershipService, rbacMiddleware),
		UsersHandler:      users.NewHandler(logger, usersService, rbacMiddleware),
		AuditHandler:      audithttp.NewHandler(logger, audit.NewService(auditStore), rbacMiddleware),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	ln, err := net.Listen("tcp", cfg.AppAddr)
	if err != nil {
		logger.Error("listen", slog.Any("error", err))
		return 1
	}
	if err := runHTTP(ctx, logger, server, ln, recorder.Run); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		return 1
	}
	return 0
}

// runHTTP runs server on ln until ctx is done. drain runs alongside and is
// stopped only after the server has finished in-flight requests, so work
// they hand off is still consumed.
func runHTTP(ctx context.Context, logger *slog.Logger, server *http.Server, ln net.Listener, drain func(context.Context) error) error {
	drainCtx, stopDrain := context.WithCancel(context.Background())
	defer stopDrain()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return drain(drainCtx)
	})
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer stopDrain()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func sessionStore(ctx context.Context, cfg *app.Config, pool *pgxpool.Pool) (auth.SessionStore, func(), error) {
	if cfg.SessionBackend != app.SessionBackendRedis {
		return auth.NewPGSessionStore(pool), func() {}, nil
	}
	client, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewRedisSessionStore(client), func() { _ = client.Close() }, nil
}

func migrate(cfg *app.Config, logger *slog.Logger) int {
	version, err := db.ApplyMigrations(cfg.PGDSN)
	if err != nil {
		logger.Error("apply migrations", slog.Any("error", err))
		return 1
	}
	logger.Info("migrations applied", slog.Uint64("version", uint64(version)))
	return 0
}

func jobsCommand(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		window := fs.Int("window", cfg.RenewalWindowDays, "reminder window in days")
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "jobs trigger: job name required")
			return 2
		}
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1], *window)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued %s as %s on queue %s\n", info.Type, info.ID, info.Queue)
	case "inspect":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs inspect: %v\n", err)
			return 1
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	return 0
}

func renewalsCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	if len(args) == 0 || args[0] != "due" {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	fs := flag.NewFlagSet("renewals due", flag.ContinueOnError)
	window := fs.Int("window", cfg.RenewalWindowDays, "reminder window in days")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	pool, err := db.New(ctx, cfg.PGDSN, 2)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	notifier := renewal.NewNotifier(membership.NewRepository(pool), nil, renewal.NewComposer(cfg.PublicBaseURL), logger, nil)
	return cli.NewRenewalsCLI(notifier).DueCommand(ctx, cli.DueOptions{WindowDays: *window, JSONOutput: *asJSON})
}
