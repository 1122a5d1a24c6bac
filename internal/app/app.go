// Package app wires every package together into the runtime entrypoints:
// the dashboard/OAuth HTTP API, the long-running scheduler worker, and the
// one-shot CLI invocations.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wisbric/postflow/internal/audit"
	"github.com/wisbric/postflow/internal/config"
	"github.com/wisbric/postflow/internal/httpserver"
	"github.com/wisbric/postflow/internal/platform"
	"github.com/wisbric/postflow/internal/telemetry"
	"github.com/wisbric/postflow/pkg/adapters"
	"github.com/wisbric/postflow/pkg/agentsapi"
	"github.com/wisbric/postflow/pkg/dailyroutine"
	"github.com/wisbric/postflow/pkg/guard"
	"github.com/wisbric/postflow/pkg/posting"
	"github.com/wisbric/postflow/pkg/scheduler"
	"github.com/wisbric/postflow/pkg/slack"
	"github.com/wisbric/postflow/pkg/store"
	"github.com/wisbric/postflow/pkg/toggles"
	"github.com/wisbric/postflow/pkg/usage"
	"github.com/wisbric/postflow/pkg/xoauth"
)

// deps holds every constructed collaborator, shared by all entrypoints.
type deps struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *pgxpool.Pool
	rdb       *redis.Client
	metrics   *prometheus.Registry
	store     *store.Store
	auditW    *audit.Writer
	guard     *guard.Guard
	toggles   *toggles.Resolver
	xoauthMgr *xoauth.Manager
	daily     *dailyroutine.Runner
	posting   *posting.Worker
	usage     *usage.Reconciler
	sched     *scheduler.Scheduler
	notifier  *slack.Notifier
}

// Run is the main application entry point: it reads config, connects to
// infrastructure, and starts the mode selected by cfg.Mode (api or worker).
func Run(ctx context.Context, cfg *config.Config) error {
	d, closeFn, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, d)
	case "worker", "scheduler":
		d.logger.Info("worker: starting scheduler", "tz", cfg.WorkerTZ)
		d.sched.Start(ctx)
		return nil
	default:
		return fmt.Errorf("unknown POSTFLOW_MODE %q (want api, worker, or scheduler)", cfg.Mode)
	}
}

// RunOnceDaily runs C7 for a single agent and date, for the `run_once` CLI
// subcommand.
func RunOnceDaily(ctx context.Context, cfg *config.Config, agentID int64, baseDate time.Time) error {
	d, closeFn, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := d.daily.Run(ctx, agentID, baseDate)
	if err != nil {
		return fmt.Errorf("running daily routine for agent %d: %w", agentID, err)
	}

	if d.cfg.UseXUsage && d.cfg.PostingUsageReconcile {
		_ = d.usage.Reconcile(ctx, agentID, baseDate.AddDate(0, 0, -2))
	}

	d.logger.Info("run_once complete", "agent_id", agentID, "status", result.Status, "planned_posts", result.PlannedPosts)
	return nil
}

// RunSchedulerOnce drives one pass of either the daily trigger or the
// posting-drain trigger, for the `scheduler --once`/`--once-posts` CLI
// subcommands.
func RunSchedulerOnce(ctx context.Context, cfg *config.Config, posts bool) error {
	d, closeFn, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	if posts {
		d.sched.RunPostingOnce(ctx)
		return nil
	}
	d.sched.RunDailyOnce(ctx)
	return nil
}

func bootstrap(ctx context.Context, cfg *config.Config) (*deps, func(), error) {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting postflow", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	if err := cfg.RequireDatabaseURL(); err != nil {
		return nil, nil, err
	}

	tz, err := time.LoadLocation(cfg.WorkerTZ)
	if err != nil {
		return nil, nil, fmt.Errorf("loading WORKER_TZ %q: %w", cfg.WorkerTZ, err)
	}

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){db.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		closeAll()
		return nil, nil, err
	}

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = rdb.Close() })

	metricsReg := prometheus.NewRegistry()
	if err := registerMetrics(metricsReg); err != nil {
		closeAll()
		return nil, nil, err
	}

	st := store.New(db)
	auditW := audit.NewWriter(db, logger)
	g := guard.New(st, st, auditW)

	tg := toggles.New(toggles.Defaults{
		PostsPerDay:        cfg.PostsPerDay,
		XSearchMax:         cfg.XSearchMax,
		WebSearchMax:       cfg.WebSearchMax,
		WebFetchMax:        cfg.WebFetchMax,
		PostingPollSeconds: cfg.PostingPollSecs,
		ReplyQuoteDailyMax: cfg.ReplyQuoteDailyMax,
	}, logger)

	xoauthMgr := xoauth.New(xoauth.Config{
		ClientID:     cfg.XOAuthClientID,
		ClientSecret: cfg.XOAuthClientSecret,
		RedirectURI:  cfg.XOAuthRedirectURI,
	}, st, st)

	clients := buildAdapterClients(cfg)

	daily := dailyroutine.New(st, g, clients, dailyroutine.Costs{
		PlanLLM:         cfg.PlanLLMCost,
		XSearch:         cfg.XSearchCost,
		WebSearch:       cfg.WebSearchCost,
		WebFetchLLM:     cfg.WebFetchLLMCost,
		WebSummarizeLLM: cfg.WebSummarizeLLMCost,
		TargetPostFetch: cfg.TargetPostFetchCost,
	}, dailyroutine.Options{
		SearchTopK:            cfg.SearchTopK,
		SearchSnippetLimit:    cfg.SearchSnippetLimit,
		ThreadRatio:           cfg.PlanThreadRatio,
		ReplyRatio:            cfg.PlanReplyRatio,
		QuoteRatio:            cfg.PlanQuoteRatio,
		AllowURLForValidation: cfg.PlanAllowURLValidation,
		WorkerTZ:              tz,
		PostHour:              cfg.PostHour,
		PostMinute:            cfg.PostMinute,
		UseGeminiWebSearch:    cfg.UseGeminiWebSearch,
		UseGeminiSummarize:    cfg.UseGeminiSummarize,
	}, tg, auditW)

	dedupeCache := posting.NewRedisDedupeCache(rdb, logger)
	postWorker := posting.New(st, g, xoauthMgr, clients.Platform.(adapters.Poster), auditW, dedupeCache, cfg.PostingBatchSize, cfg.ReplyQuoteDailyMax)

	var unitPrice *float64
	if cfg.XUnitPrice > 0 {
		up := cfg.XUnitPrice
		unitPrice = &up
	}
	usageReconciler := usage.New(st, clients.Platform, auditW, unitPrice)

	sched := scheduler.New(st, daily, postWorker, tg, scheduler.Options{
		TZ:                 tz,
		DailyHour:          cfg.WorkerDailyHour,
		DailyMinute:        cfg.WorkerDailyMin,
		PostingPollSeconds: cfg.PostingPollSecs,
		LogDir:             cfg.RunLogDir,
	}, logger)

	notifier := slack.NewNotifier(cfg.SlackBotToken, cfg.SlackAlertChannel, logger)
	g.SetNotifier(notifier)

	return &deps{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		rdb:       rdb,
		metrics:   metricsReg,
		store:     st,
		auditW:    auditW,
		guard:     g,
		toggles:   tg,
		xoauthMgr: xoauthMgr,
		daily:     daily,
		posting:   postWorker,
		usage:     usageReconciler,
		sched:     sched,
		notifier:  notifier,
	}, closeAll, nil
}

func registerMetrics(reg *prometheus.Registry) error {
	for _, c := range telemetry.All() {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("registering metric collector: %w", err)
		}
	}
	return nil
}

// buildAdapterClients wires the fake platform/search/summarizer/target-post
// adapters plus the one real adapter in this build, the generic web fetcher.
// See DESIGN.md's adapters entry for why no real X client is wired.
func buildAdapterClients(cfg *config.Config) dailyroutine.Clients {
	fakePlatform := adapters.NewFakePlatform()
	if cfg.XUserID != "" {
		fakePlatform.UserID = cfg.XUserID
	}

	var webSearch adapters.Search
	if cfg.UseGeminiWebSearch {
		webSearch = &adapters.FakeSearch{}
	}

	var summarizer adapters.Summarizer
	if cfg.UseGeminiSummarize {
		summarizer = adapters.FakeSummarizer{}
	}

	return dailyroutine.Clients{
		Platform:   fakePlatform,
		XSearch:    &adapters.FakeSearch{},
		WebSearch:  webSearch,
		Fetcher:    adapters.NewWebFetcher(5, 2<<20, 4000),
		Summarizer: summarizer,
		Targets:    &adapters.FakeTargetPostSource{},
	}
}

func runAPI(ctx context.Context, d *deps) error {
	srv := httpserver.NewServer(d.cfg, d.logger, d.db, d.rdb, d.metrics)

	agentsHandler := agentsapi.NewHandler(d.store, d.auditW, audit.NewHandler(d.auditW), agentsapi.Defaults{
		PostsPerDay:        d.cfg.PostsPerDay,
		XSearchMax:         d.cfg.XSearchMax,
		WebSearchMax:       d.cfg.WebSearchMax,
		WebFetchMax:        d.cfg.WebFetchMax,
		PostingPollSeconds: d.cfg.PostingPollSecs,
		ReplyQuoteDailyMax: d.cfg.ReplyQuoteDailyMax,
		PlanThreadRatio:    d.cfg.PlanThreadRatio,
		PlanReplyRatio:     d.cfg.PlanReplyRatio,
		PlanQuoteRatio:     d.cfg.PlanQuoteRatio,
	})
	xoauthHandler := xoauth.NewHandler(d.xoauthMgr, d.store)

	srv.APIRouter.Mount("/agents", agentsHandler.Routes())
	srv.APIRouter.Get("/config/defaults", agentsHandler.RouteConfigDefaults)

	srv.Router.Route("/oauth/x", func(r chi.Router) {
		r.Get("/start", xoauthHandler.HandleStart)
		r.Get("/callback", xoauthHandler.HandleCallback)
		r.Post("/refresh", xoauthHandler.HandleRefresh)
		r.Get("/status", xoauthHandler.HandleStatus)
	})

	httpSrv := &http.Server{
		Addr:              d.cfg.ListenAddr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("api: listening", "addr", d.cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		d.logger.Info("api: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
