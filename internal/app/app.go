package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"taskflow/internal/auth"
	"taskflow/internal/cache"
	"taskflow/internal/config"
	"taskflow/internal/logctx"
	"taskflow/internal/metrics"
	"taskflow/internal/ratelimit"
	"taskflow/internal/realtime"
	"taskflow/internal/repo"
	"taskflow/internal/service"
	"taskflow/internal/validation"
	"taskflow/internal/worker"
	"taskflow/migrations"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
)

type App struct {
	cfg    config.Config
	log    *slog.Logger
	db     *pgxpool.Pool
	redis  *redis.Client
	router *gin.Engine

	reminder *worker.Reminder
	stop     context.CancelFunc
	wg       sync.WaitGroup
}

func New(cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	db, err := newPostgres(cfg.PG.DSN)
	if err != nil {
		return nil, err
	}
	a.db = db

	rdb, err := newRedis(cfg.Redis)
	if err != nil {
		db.Close()
		return nil, err
	}
	a.redis = rdb

	if err := runMigrations(db); err != nil {
		a.redis.Close()
		a.db.Close()
		return nil, err
	}

	a.router = a.wire()
	return a, nil
}

// wire builds the object graph: repos -> services -> router.
func (a *App) wire() *gin.Engine {
	cfg := a.cfg

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn.Duration(), cfg.Auth.JWTIssuer)
	hasher := auth.NewHasher(cfg.Auth.BcryptCost)
	m := metrics.New()
	hub := realtime.NewHub(a.redis, tokens, cfg.HTTP.CORSOrigins)

	users := repo.NewPGUserRepo(a.db)
	tasks := repo.NewPGTaskRepo(a.db)
	projects := repo.NewPGProjectRepo(a.db)
	notes := repo.NewPGNotificationRepo(a.db)
	taskCache := cache.NewTaskCache(a.redis, cfg.Redis.CacheTTL.Duration())

	notifySvc := service.NewNotificationService(notes, hub)
	a.reminder = worker.NewReminder(tasks, notifySvc,
		cfg.Reminder.Interval.Duration(), cfg.Reminder.Window.Duration(), m.RemindersSent)

	return NewRouter(Deps{
		Config:        cfg,
		Logger:        a.log,
		Validator:     validation.New(validation.Options{PasswordMinLength: cfg.Auth.PasswordMinLength}),
		Tokens:        tokens,
		Auth:          service.NewAuthService(users, hasher, tokens),
		Tasks:         service.NewTaskService(tasks, projects, users, notifySvc, taskCache),
		Projects:      service.NewProjectService(projects, users, taskCache),
		Notifications: notifySvc,
		Hub:           hub,
		Limiter:       ratelimit.New(a.redis, cfg.RateLimit.Requests, cfg.RateLimit.Window.Duration()),
		Metrics:       m,
	})
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// StartWorkers runs background jobs until Close.
func (a *App) StartWorkers() {
	ctx, cancel := context.WithCancel(logctx.Into(context.Background(), a.log.With(slog.String("component", "reminder"))))
	a.stop = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reminder.Run(ctx)
	}()
}

// Close stops workers, then releases Redis and Postgres.
func (a *App) Close(ctx context.Context) error {
	if a.stop != nil {
		a.stop()
		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("stop workers: %w", ctx.Err())
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	return nil
}

func newPostgres(dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}

	return pool, nil
}

func newRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

// runMigrations applies the embedded goose migrations through the pool.
func runMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
