package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/verimail/internal/config"
	"github.com/dropDatabas3/verimail/internal/email"
	httpserver "github.com/dropDatabas3/verimail/internal/http"
	"github.com/dropDatabas3/verimail/internal/observability/logger"
	"github.com/dropDatabas3/verimail/internal/rate"
	"github.com/dropDatabas3/verimail/internal/security/token"
	"github.com/dropDatabas3/verimail/internal/store"
	"github.com/dropDatabas3/verimail/internal/store/memory"
	"github.com/dropDatabas3/verimail/internal/store/pg"
	"github.com/dropDatabas3/verimail/internal/verify"
)

var version = "dev"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to config yaml (optional)")
	flag.Parse()

	// .env is optional, real env always wins
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "verimail",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("service exited", logger.Err(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	var (
		users  store.Users
		tokens store.VerificationTokens
		ready  func(r *http.Request) error
	)

	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pg.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		users = pg.NewUserStore(pool)
		tokens = pg.NewTokenStore(pool)
		ready = func(r *http.Request) error { return pool.Ping(r.Context()) }
		log.Info("storage ready", logger.String("driver", "postgres"))
	case "memory", "":
		users = memory.NewUserStore()
		tokens = memory.NewTokenStore()
		log.Warn("using in-memory storage, data is lost on restart")
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	dispatcher, err := email.NewDispatcher(cfg)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	log.Info("email provider ready", logger.Provider(string(dispatcher.Provider())))

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		if cfg.Redis.Addr != "" {
			client := rdb.NewClient(&rdb.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer func() { _ = client.Close() }()
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			limiter = rate.NewRedisLimiter(client, cfg.Redis.Prefix, int(cfg.Rate.MaxRequests), cfg.RateWindow())
			log.Info("rate limiting ready", logger.String("backend", "redis"))
		} else {
			limiter = rate.NewMemoryLimiter(int(cfg.Rate.MaxRequests), cfg.RateWindow())
			log.Info("rate limiting ready", logger.String("backend", "memory"))
		}
	}

	issuer := token.NewIssuer(cfg.Auth.Issuer, cfg.Auth.JWTSecret, cfg.Auth.AccessTTL)
	svc := verify.NewService(cfg, tokens, users, dispatcher)

	api := httpserver.NewAPI(cfg, users, svc, issuer)
	api.Ready = ready
	handler := httpserver.NewRouter(api, limiter)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", logger.String("addr", cfg.Server.Addr))
		return httpserver.Serve(ctx, cfg.Server.Addr, handler)
	})
	return g.Wait()
}
