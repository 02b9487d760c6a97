package commands

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/weichenlin/twchip/internal/aggregator"
	"github.com/weichenlin/twchip/internal/crawler"
	"github.com/weichenlin/twchip/internal/market"
	"github.com/weichenlin/twchip/internal/push"
	"github.com/weichenlin/twchip/internal/report"
	"github.com/weichenlin/twchip/internal/scheduler"
	"github.com/weichenlin/twchip/internal/scheduler/jobs"
	"github.com/weichenlin/twchip/pkg/config"
	"github.com/weichenlin/twchip/pkg/database"
	"github.com/weichenlin/twchip/pkg/httputil"
	"github.com/weichenlin/twchip/pkg/logger"
	"github.com/weichenlin/twchip/pkg/redis"
)

// app holds the wired runtime pieces shared by the subcommands.
type app struct {
	cfg      *config.Config
	db       *database.DB
	redis    *redis.Client
	cache    *redis.Cache
	repo     *report.Repository
	calendar *market.Calendar
	agg      *aggregator.Aggregator
	daily    *jobs.DailyReport
	bot      *tele.Bot
	notifier *push.Notifier
}

// newApp wires config, storage, crawler, and the daily cycle. The
// Telegram notifier is only attached when a token is configured, so
// local runs work without one.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if envFlag != "" {
		cfg.Env = envFlag
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	logger.Init(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	repo := report.NewRepository(db.Pool)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	httpClient := httputil.New(cfg).
		WithRateLimiter(redis.NewRateLimiter(rdb, "twchip"), redis.TWSERateLimit)

	cal := market.NewCalendar(cfg.Scheduler.Holidays)
	cr := crawler.New(cfg, httpClient)
	agg := aggregator.New(cfg, cr.Adapters(), repo, cal)

	a := &app{
		cfg:      cfg,
		db:       db,
		redis:    rdb,
		cache:    redis.NewCache(rdb, "twchip"),
		repo:     repo,
		calendar: cal,
		agg:      agg,
	}

	if cfg.Telegram.Token != "" {
		b, err := push.NewBot(cfg)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect telegram bot: %w", err)
		}
		a.bot = b
		a.notifier = push.New(b, cfg, repo)
	}

	var pusher jobs.Pusher
	if a.notifier != nil {
		pusher = a.notifier
	}
	a.daily = jobs.NewDailyReport(agg, repo, pusher, cal, cfg.Scheduler.DailyCron)

	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}

// newScheduler registers the daily cycle on a fresh scheduler.
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New()
	if err := sched.AddJob(a.daily); err != nil {
		return nil, fmt.Errorf("register daily job: %w", err)
	}
	return sched, nil
}
