package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"identity-service/internal/auth"
	"identity-service/internal/config"
	apphttp "identity-service/internal/http"
	"identity-service/internal/password"
	"identity-service/internal/repository"
	"identity-service/internal/repository/postgres"
	"identity-service/internal/repository/sqlite"
	"identity-service/internal/service"
	"identity-service/internal/token"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := configureLogger(logger, cfg); err != nil {
		logger.Fatalf("configure logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeStore, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open repository: %v", err)
	}
	defer closeStore()

	if err := users.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	params := password.DefaultParams()
	params.Memory = cfg.Hasher.Memory
	params.Iterations = cfg.Hasher.Iterations
	params.Parallelism = cfg.Hasher.Parallelism
	hasher, err := password.NewHasher(params)
	if err != nil {
		logger.Fatalf("setup password hasher: %v", err)
	}

	secret := []byte(cfg.Auth.JWTSecret)
	issuer, err := token.NewIssuer(secret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatalf("setup token issuer: %v", err)
	}
	validator, err := token.NewValidator(secret)
	if err != nil {
		logger.Fatalf("setup token validator: %v", err)
	}
	if len(secret) < 32 {
		logger.Warn("auth jwt secret is shorter than 32 bytes; generate one with cmd/secretgen")
	}

	userService := service.NewUserService(users, password.NewPool(hasher, cfg.Hasher.Workers), issuer, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(userService, auth.NewExtractor(validator), logger, cfg.Server.CORSOrigin)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

func openRepository(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.CredentialRepository, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := postgres.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using postgres credential store")
		return postgres.NewUserRepository(pool), pool.Close, nil
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("using sqlite credential store at %s", cfg.Database.Path)
		return sqlite.NewUserRepository(db), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
