package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storerate/admin"
	"storerate/auth"
	"storerate/config"
	"storerate/db"
	"storerate/rating"
	"storerate/tokenstore"
)

func main() {
	log := logrus.StandardLogger()

	cfg, err := config.Load("")
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	configureLogger(log, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("server down")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	pool, err := db.NewPool(ctx, cfg.Database.URL, db.PoolOptions{MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	log.Info("schema up to date")

	authService := auth.NewService(auth.NewRepository(pool), cfg.JWT.Secret, cfg.JWT.ExpiresIn)

	server := &Server{
		authService:   authService,
		ratingService: rating.NewService(rating.NewRepository(pool)),
		adminService:  admin.NewService(pool, admin.NewRepository(pool), authService),
		db:            pool,
		log:           log,
		corsOrigins:   cfg.HTTP.CORSOrigins,
	}

	if cfg.Redis.Addr != "" {
		store, client, err := tokenstore.Connect(ctx, tokenstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		server.revocations = store
		log.WithField("addr", cfg.Redis.Addr).Info("token revocation enabled")
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func configureLogger(log *logrus.Logger, cfg *config.Config) {
	if cfg.Production() {
		log.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		log.WithError(err).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
}
