package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"knowledgeflow/internal/accounts"
	"knowledgeflow/internal/app"
	"knowledgeflow/internal/catalog"
	"knowledgeflow/internal/config"
	"knowledgeflow/internal/docstore"
	"knowledgeflow/internal/infra/memory"
	pgarchive "knowledgeflow/internal/infra/postgres"
	redisstore "knowledgeflow/internal/infra/redis"
	"knowledgeflow/internal/logger"
	transport "knowledgeflow/internal/transport/http"
)

// NewInstructorCmd starts the course-authoring API.
func NewInstructorCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "instructor",
		Short: "Start the instructor API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(cmd.Context(), *configPath, *port, "instructor")
		},
	}
}

// NewLearnerCmd starts the learner API.
func NewLearnerCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "learner",
		Short: "Start the learner API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(cmd.Context(), *configPath, *port, "learner")
		},
	}
}

// deps is everything both services are built from. close releases connections.
type deps struct {
	store   docstore.Store
	feeds   app.FeedRepository
	archive catalog.Archive
	close   func()
}

func buildDeps(ctx context.Context, cfg config.Config, log *logger.Logger) (*deps, error) {
	d := &deps{close: func() {}}
	var closers []func()

	switch cfg.Store.Backend {
	case config.BackendRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("store backend redis requires redis.addr")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		d.store = redisstore.NewStore(client, cfg.Redis.Prefix)
		d.feeds = redisstore.NewFeedStore(client, cfg.Redis.Prefix, config.Duration(cfg.Redis.FeedTTL, 10*time.Minute))
	case config.BackendMemory, "":
		log.Warn("using in-memory document store; it is not shared with the other service and is lost on restart")
		d.store = memory.NewStore()
		d.feeds = memory.NewFeedStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	d.store = docstore.WithTimeout(d.store, config.Duration(cfg.Store.Timeout, 5*time.Second))

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		d.archive = pgarchive.NewCourseArchive(pool)
	}

	d.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return d, nil
}

func buildHandler(cfg config.Config, d *deps, service string, log *logger.Logger) (http.Handler, error) {
	acc := accounts.NewService(d.store, 0, log)
	cat := catalog.New(d.store, d.archive, log)
	routerCfg := transport.RouterConfig{AllowedOrigins: cfg.Server.AllowedOrigins, Log: log}

	switch service {
	case "instructor":
		return transport.NewInstructorRouter(routerCfg, transport.NewInstructorHandler(acc, cat, log)), nil
	case "learner":
		enrollments := app.NewEnrollmentManager(d.store, cat, log)
		progress := app.NewProgressTracker(d.store)
		view := app.NewViewBuilder(enrollments, progress, cat, log,
			app.WithCourseTimeout(config.Duration(cfg.Store.FanoutTimeout, app.DefaultCourseTimeout)),
			app.WithFanoutLimit(cfg.Store.FanoutLimit),
		)
		feeds := app.NewProgressFeeds(d.feeds, view)
		handler := transport.NewLearnerHandler(transport.LearnerService{
			Accounts:    acc,
			Catalog:     cat,
			Enrollments: enrollments,
			Progress:    progress,
			View:        view,
			Feeds:       feeds,
		}, log)
		ws := transport.NewWSHandler(acc, feeds, cfg.Server.AllowedOrigins, log)
		return transport.NewLearnerRouter(routerCfg, handler, ws), nil
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}
}

func servicePort(cfg config.Config, service, portFlag string) string {
	if portFlag != "" {
		return portFlag
	}
	if service == "instructor" {
		return cfg.Server.InstructorPort
	}
	return cfg.Server.LearnerPort
}

func runService(ctx context.Context, configPath, portFlag, service string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Server.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()
	log = log.With("service", service)
	if cfg.Server.Mode == "production" || cfg.Server.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	d, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.close()

	handler, err := buildHandler(cfg, d, service, log)
	if err != nil {
		return err
	}

	finalPort := servicePort(cfg, service, portFlag)
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", finalPort, "store", cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
