package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/jober-auth/internal/api"
	"github.com/dom/jober-auth/internal/config"
	"github.com/dom/jober-auth/internal/metrics"
	"github.com/dom/jober-auth/internal/repository"
	"github.com/dom/jober-auth/internal/repository/memory"
	"github.com/dom/jober-auth/internal/repository/postgres"
	"github.com/dom/jober-auth/internal/service"
	"github.com/dom/jober-auth/internal/sms"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// Build information, set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "jober-auth",
		Usage:   "Authentication and session service for Jober",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "sql-log",
				Usage:   "Log every SQL statement",
				EnvVars: []string{"SQL_LOG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			sweepCommand(),
			grantAdminCommand(),
		},
		DefaultCommand: "serve",
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the expiry sweeper",
		Action: func(c *cli.Context) error {
			rt, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer rt.close()
			return serve(rt)
		},
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Delete expired OTP codes and refresh tokens past retention, then exit",
		Action: func(c *cli.Context) error {
			rt, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer rt.close()

			res, err := rt.services.Sweeper.SweepOnce(c.Context)
			if err != nil {
				return err
			}
			rt.logger.Info("sweep completed",
				zap.Int64("phone_otps", res.PhoneOtps),
				zap.Int64("refresh_tokens", res.RefreshTokens))
			return nil
		},
	}
}

// grantAdminCommand is the only way to assign Admin; it cannot be self-selected.
func grantAdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "grant-admin",
		Usage: "Assign the Admin role to an existing user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Email of the user"},
			&cli.StringFlag{Name: "phone", Usage: "Phone number of the user"},
		},
		Action: func(c *cli.Context) error {
			email := service.NormalizeEmail(c.String("email"))
			phone := service.NormalizePhone(c.String("phone"))
			if email == "" && phone == "" {
				return errors.New("--email or --phone is required")
			}

			rt, err := bootstrap(c)
			if err != nil {
				return err
			}
			defer rt.close()

			user, err := rt.repos.User.FindByEmailOrPhone(c.Context, email, phone)
			if err != nil {
				return fmt.Errorf("find user: %w", err)
			}
			if err := rt.services.User.GrantAdmin(c.Context, user.ID); err != nil {
				return err
			}
			rt.logger.Info("admin role granted", zap.String("user_id", user.ID.String()))
			return nil
		},
	}
}

type stack struct {
	cfg      *config.Config
	logger   *zap.Logger
	repos    *repository.Repositories
	services *service.Services
	metrics  *metrics.Recorder
	close    func()
}

func bootstrap(c *cli.Context) (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(log)

	repos, closeStore, err := openRepositories(cfg, sqlLogLevel(cfg, c.Bool("sql-log")))
	if err != nil {
		log.Sync()
		return nil, err
	}

	rec := metrics.New()
	sender := sms.NewSender(cfg, log)

	services, err := service.NewServices(repos, cfg, sender, log, rec)
	if err != nil {
		closeStore()
		log.Sync()
		return nil, err
	}

	return &stack{
		cfg:      cfg,
		logger:   log,
		repos:    repos,
		services: services,
		metrics:  rec,
		close: func() {
			closeStore()
			log.Sync()
		},
	}, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func sqlLogLevel(cfg *config.Config, verbose bool) logger.LogLevel {
	switch {
	case verbose:
		return logger.Info
	case cfg.IsProduction():
		return logger.Error
	default:
		return logger.Warn
	}
}

func openRepositories(cfg *config.Config, level logger.LogLevel) (*repository.Repositories, func(), error) {
	if cfg.Store == config.StoreMemory {
		zap.L().Warn("using in-memory store; data is lost on exit")
		return memory.NewRepositories(memory.NewStore()), func() {}, nil
	}

	db, err := postgres.NewConnection(cfg.DatabaseURL, level)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return postgres.NewRepositories(db), closeDB, nil
}

func serve(rt *stack) error {
	router := api.NewRouter(rt.services, rt.metrics, rt.cfg, rt.logger)

	srv := &http.Server{
		Addr:         "0.0.0.0:" + rt.cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go rt.services.Sweeper.Run(sweepCtx, rt.cfg.SweepInterval)

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("server starting", zap.String("port", rt.cfg.Port), zap.String("environment", rt.cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	rt.logger.Info("shutting down server")
	stopSweeper()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	rt.logger.Info("server stopped")
	return nil
}
