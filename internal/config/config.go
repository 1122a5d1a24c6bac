// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, loaded from environment variables.
// DatabaseURL is intentionally lazy-checked: Load never fails on a missing
// DATABASE_URL, only code paths that actually need a connection do.
type Config struct {
	// Mode selects the long-running entrypoint: "api", "worker" or "scheduler".
	Mode string `env:"POSTFLOW_MODE" envDefault:"api"`

	// Server
	Host string `env:"POSTFLOW_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"POSTFLOW_PORT" envDefault:"8080"`

	// Database / cache
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Telemetry
	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`

	// Migrations
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Scheduling
	WorkerTZ         string `env:"WORKER_TZ" envDefault:"UTC"`
	WorkerDailyHour  int    `env:"WORKER_DAILY_HOUR" envDefault:"6"`
	WorkerDailyMin   int    `env:"WORKER_DAILY_MINUTE" envDefault:"0"`
	PostHour         int    `env:"POST_HOUR" envDefault:"9"`
	PostMinute       int    `env:"POST_MINUTE" envDefault:"0"`
	PostingPollSecs  int    `env:"POSTING_POLL_SECONDS" envDefault:"60"`
	PostingBatchSize int    `env:"POSTING_BATCH_SIZE" envDefault:"10"`
	PostsPerDay      int    `env:"POSTS_PER_DAY" envDefault:"0"`
	ReplyQuoteDailyMax int  `env:"REPLY_QUOTE_DAILY_MAX" envDefault:"3"`

	// Budget defaults (USD)
	PlanLLMCost        float64 `env:"PLAN_LLM_COST" envDefault:"0.50"`
	XSearchCost        float64 `env:"X_SEARCH_COST" envDefault:"0.10"`
	WebSearchCost      float64 `env:"WEB_SEARCH_COST" envDefault:"0.10"`
	WebFetchLLMCost    float64 `env:"WEB_FETCH_LLM_COST" envDefault:"0.30"`
	WebSummarizeLLMCost float64 `env:"WEB_SUMMARIZE_LLM_COST" envDefault:"1.00"`
	TargetPostFetchCost float64 `env:"TARGET_POST_FETCH_COST" envDefault:"0.25"`

	// Limits
	XSearchMax         int `env:"X_SEARCH_MAX" envDefault:"10"`
	WebSearchMax       int `env:"WEB_SEARCH_MAX" envDefault:"10"`
	WebFetchMax        int `env:"WEB_FETCH_MAX" envDefault:"3"`
	SearchTopK         int `env:"SEARCH_TOP_K" envDefault:"5"`
	SearchSnippetLimit int `env:"SEARCH_SNIPPET_LIMIT" envDefault:"280"`

	// Toggles
	UseRealX                bool `env:"USE_REAL_X" envDefault:"false"`
	UseGeminiWebSearch      bool `env:"USE_GEMINI_WEB_SEARCH" envDefault:"false"`
	UseGeminiSummarize      bool `env:"USE_GEMINI_SUMMARIZE" envDefault:"false"`
	UseXUsage               bool `env:"USE_X_USAGE" envDefault:"false"`
	PostingUsageReconcile   bool `env:"POSTING_USAGE_RECONCILE" envDefault:"false"`
	PlanAllowURLValidation  bool `env:"PLAN_ALLOW_URL_FOR_VALIDATION" envDefault:"false"`
	PlanThreadRatio         float64 `env:"PLAN_THREAD_RATIO" envDefault:"0.2"`
	PlanReplyRatio          float64 `env:"PLAN_REPLY_RATIO" envDefault:"0.2"`
	PlanQuoteRatio          float64 `env:"PLAN_QUOTE_RATIO" envDefault:"0.2"`

	// Search topic (used to derive research queries in the absence of agent-specific config)
	SearchTopic string `env:"SEARCH_TOPIC" envDefault:""`

	// X OAuth
	XOAuthClientID     string `env:"X_OAUTH_CLIENT_ID"`
	XOAuthClientSecret string `env:"X_OAUTH_CLIENT_SECRET"`
	XOAuthRedirectURI  string `env:"X_OAUTH_REDIRECT_URI"`
	XBearerToken       string `env:"X_BEARER_TOKEN"`
	XUserID            string `env:"X_USER_ID"`
	XUnitPrice         float64 `env:"X_UNIT_PRICE" envDefault:"0"`

	// Ops notifications (optional — if not set, notifier is a logging noop)
	SlackBotToken     string `env:"SLACK_BOT_TOKEN"`
	SlackAlertChannel string `env:"SLACK_ALERT_CHANNEL"`

	// Run log output directory, mirrors apps/worker/logs/<agent_id>/<date>.json
	RunLogDir string `env:"RUN_LOG_DIR" envDefault:"logs"`
}

// Load reads configuration from environment variables. It never fails due to
// a missing DATABASE_URL; that is checked lazily by whatever first needs a
// connection (see RequireDatabaseURL, called from internal/app's bootstrap).
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RequireDatabaseURL returns an error if DATABASE_URL was not configured.
// Called lazily by anything that opens a connection, per the "lazy-checked"
// contract: importing this package without DATABASE_URL set must not fail.
func (c *Config) RequireDatabaseURL() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}
