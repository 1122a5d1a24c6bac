package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wisbric/postflow/internal/app"
	"github.com/wisbric/postflow/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "run_once":
			runOnce(ctx, os.Args[2:])
			return
		case "scheduler":
			runSchedulerCmd(ctx, os.Args[2:])
			return
		}
	}

	runLongLived(ctx)
}

// runLongLived is the default `api`/`worker` entrypoint, selected by
// -mode/POSTFLOW_MODE.
func runLongLived(ctx context.Context) {
	mode := flag.String("mode", "", "run mode: api or worker (overrides POSTFLOW_MODE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	if err := app.Run(ctx, cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// runOnce implements `postflow run_once --agent-id N [--date YYYY-MM-DD]`:
// a single invocation of the daily routine for one agent, outside the
// scheduler's cron trigger.
func runOnce(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("run_once", flag.ExitOnError)
	agentID := fs.Int64("agent-id", 0, "agent id to run the daily routine for")
	dateStr := fs.String("date", "", "base date YYYY-MM-DD (defaults to today UTC)")
	fs.Parse(args)

	if *agentID <= 0 {
		fmt.Fprintln(os.Stderr, "error: run_once requires --agent-id")
		os.Exit(1)
	}

	baseDate := time.Now().UTC().Truncate(24 * time.Hour)
	if *dateStr != "" {
		d, err := time.Parse("2006-01-02", *dateStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid --date %q: %v\n", *dateStr, err)
			os.Exit(1)
		}
		baseDate = d
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	if err := app.RunOnceDaily(ctx, cfg, *agentID, baseDate); err != nil {
		slog.Error("run_once failed", "error", err)
		os.Exit(1)
	}
}

// runSchedulerCmd implements `postflow scheduler [--once | --once-posts]`:
// a one-shot pass of either trigger, for manual invocation or an external
// cron in place of the long-running scheduler loop.
func runSchedulerCmd(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("scheduler", flag.ExitOnError)
	once := fs.Bool("once", false, "run the daily trigger once and exit")
	oncePosts := fs.Bool("once-posts", false, "run the posting-drain trigger once and exit")
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	if !*once && !*oncePosts {
		cfg.Mode = "scheduler"
		if err := app.Run(ctx, cfg); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := app.RunSchedulerOnce(ctx, cfg, *oncePosts); err != nil {
		slog.Error("scheduler one-shot failed", "error", err)
		os.Exit(1)
	}
}
