// Package main starts the GTDKeeper server: it loads configuration, picks
// the storage backend, seeds the admin account and serves the API.
package main

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atinyakov/GTDKeeper/internal/config"
	"github.com/atinyakov/GTDKeeper/internal/db"
	"github.com/atinyakov/GTDKeeper/internal/logger"
	"github.com/atinyakov/GTDKeeper/internal/repository"
	"github.com/atinyakov/GTDKeeper/internal/server/handler/http"
	"github.com/atinyakov/GTDKeeper/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// stores groups the repositories behind the services.
type stores struct {
	creds    service.CredentialRepository
	sessions service.SessionRepository
	tasks    service.TaskRepository
}

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStores, err := openStores(ctx, options, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot open storage", zap.Error(err))
	}
	defer closeStores()

	authService := service.NewAuthService(st.creds, st.sessions, st.tasks, zapLogger)
	if err := authService.Init(ctx, options.AdminPassword); err != nil {
		zapLogger.Fatal("cannot seed admin account", zap.Error(err))
	}
	taskService := service.NewTaskService(st.tasks)

	tlsEnabled := options.TLSCert != ""
	authHandler := &http.AuthHandler{
		AuthService:   authService,
		Log:           zapLogger,
		SessionMaxAge: options.SessionMaxAge,
		SecureCookie:  tlsEnabled,
	}
	taskHandler := &http.TaskHandler{TaskService: taskService, Log: zapLogger}
	router := http.NewRouter(authHandler, taskHandler, authService, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("shutdown", zap.Error(err))
		}
	}()

	zapLogger.Info("starting server",
		zap.String("addr", options.Addr),
		zap.String("storage", options.Storage),
		zap.Bool("redis_sessions", options.RedisURL != ""),
		zap.Bool("tls", tlsEnabled),
	)
	if tlsEnabled {
		err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

// openStores builds the repositories for the configured backend. The
// returned func releases any connections.
func openStores(ctx context.Context, options *config.Options, log *zap.Logger) (stores, func(), error) {
	var (
		st      stores
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch options.Storage {
	case config.StoragePostgres:
		conn, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			return st, closeAll, fmt.Errorf("init database: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })

		st.creds = repository.NewPostgresCredentialRepository(conn)
		st.sessions = repository.NewPostgresSessionRepository(conn)
		st.tasks = repository.NewPostgresTaskRepository(conn)
		startJanitor(ctx, conn, options, log)
	default:
		st.creds = repository.NewFileCredentialRepository(options.DataDir)
		st.sessions = repository.NewFileSessionRepository(options.DataDir)
		st.tasks = repository.NewFileTaskRepository(options.DataDir)
	}

	if options.RedisURL != "" {
		redisOpts, err := redis.ParseURL(options.RedisURL)
		if err != nil {
			closeAll()
			return st, func() {}, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			closeAll()
			return st, func() {}, fmt.Errorf("ping redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		st.sessions = repository.NewRedisSessionRepository(client, options.SessionMaxAge)
	}

	return st, closeAll, nil
}

func startJanitor(ctx context.Context, conn *sql.DB, options *config.Options, log *zap.Logger) {
	if options.SessionRetention <= 0 {
		return
	}
	db.StartSessionCleaner(ctx, conn, options.SessionCleanupInterval, options.SessionRetention, log)
	log.Info("session janitor enabled",
		zap.Duration("retention", options.SessionRetention),
		zap.Duration("interval", options.SessionCleanupInterval),
	)
}
