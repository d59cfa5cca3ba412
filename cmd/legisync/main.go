// Command legisync runs the congress.gov ingestion pipeline: a long-lived
// worker that executes the durable job queue on its cron cadence, plus
// one-shot subcommands that enqueue syncs or inspect the store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/legisync/legisync/pkg/archive"
	"github.com/legisync/legisync/pkg/config"
	"github.com/legisync/legisync/pkg/congress"
	"github.com/legisync/legisync/pkg/observability"
	"github.com/legisync/legisync/pkg/sched"
	"github.com/legisync/legisync/pkg/stats"
	"github.com/legisync/legisync/pkg/store"
	"github.com/legisync/legisync/pkg/sync"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "serve":
		return runServe(stderr)
	case "sync-incremental":
		return runEnqueueSync(stdout, stderr, false)
	case "sync-full":
		return runEnqueueSync(stdout, stderr, true)
	case "historical":
		return runHistorical(args[2:], stdout, stderr)
	case "repair":
		return runRepair(args[2:], stdout, stderr)
	case "backfill":
		return runBackfill(args[2:], stdout, stderr)
	case "stats":
		return runStats(args[2:], stdout, stderr)
	case "completeness":
		return runCompleteness(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `Usage: legisync <command> [flags]

Commands:
  serve             run the job dispatcher and cron scheduler
  sync-incremental  enqueue an incremental sync of the current congress
  sync-full         enqueue a full sync of the current congress
  historical        enqueue unfiltered crawls of recent congresses
  repair            enqueue a repair pass over incomplete bills [-congress N]
  backfill          enqueue a bitmask backfill over legacy bills [-congress N]
  stats             recompute the per-congress aggregates [-congress N]
  completeness      print endpoint-bitmask coverage [-congress N]
  help              show this help

Enqueued work is executed by a running "legisync serve" process.`)
}

// app holds the wired service graph shared by the subcommands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	provider   *observability.Provider
	store      *store.Store
	svc        *sync.Service
	recomputer *stats.Recomputer
	dispatcher *sched.Dispatcher
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg.LogLevel)

	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = cfg.TelemetryOn
	if cfg.OTLPEndpoint != "" {
		obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	provider, err := observability.New(ctx, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	metrics, err := observability.NewMetrics(provider)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	var st *store.Store
	if cfg.DatabaseURL != "" {
		st, err = store.OpenPostgres(ctx, cfg.DatabaseURL)
	} else {
		st, err = store.OpenSQLite(ctx, cfg.SQLitePath)
	}
	if err != nil {
		return nil, err
	}

	client, err := congress.NewClient(cfg.CongressAPIKey,
		congress.WithInterRequestDelay(cfg.Tuning.InterRequestDelay),
		congress.WithRetry(cfg.Tuning.MaxRetries, cfg.Tuning.InitialBackoff),
	)
	if err != nil {
		return nil, err
	}

	opts := []sync.ServiceOption{sync.WithMetrics(metrics)}
	switch {
	case cfg.ArchiveBucket != "":
		s3, err := archive.NewS3Store(ctx, archive.S3Config{
			Bucket: cfg.ArchiveBucket,
			Region: cfg.ArchiveRegion,
			Prefix: cfg.ArchivePrefix,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, sync.WithArchive(s3))
	case cfg.ArchiveDir != "":
		fs, err := archive.NewFileStore(cfg.ArchiveDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sync.WithArchive(fs))
	}

	svc := sync.NewService(client, st, cfg.Tuning, opts...)
	recomputer := stats.NewRecomputer(st)

	dispatcher := sched.NewDispatcher(st,
		sched.WithPollInterval(cfg.DispatchPoll),
		sched.WithMetrics(metrics),
	)
	svc.RegisterHandlers(dispatcher)
	dispatcher.Register(sync.JobRecompute, func(ctx context.Context, payload json.RawMessage) error {
		var job sync.RecomputeJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return fmt.Errorf("decode recompute job: %w", err)
		}
		if job.Congress > 0 {
			return recomputer.RecomputeCongress(ctx, job.Congress)
		}
		return recomputer.RecomputeAll(ctx)
	})

	return &app{
		cfg:        cfg,
		logger:     logger,
		provider:   provider,
		store:      st,
		svc:        svc,
		recomputer: recomputer,
		dispatcher: dispatcher,
	}, nil
}

func (a *app) close(ctx context.Context) {
	_ = a.provider.Shutdown(ctx)
	_ = a.store.Close()
}

func runServe(stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer a.close(context.Background())

	cron := sched.NewCron(a.store, sync.DefaultSchedule(), a.logger.With("component", "cron"))
	go func() {
		_ = cron.Run(ctx)
	}()

	a.logger.Info("legisync worker started", "db", a.cfg.SQLitePath)
	if err := a.dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func runEnqueueSync(stdout, stderr io.Writer, full bool) int {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer a.close(ctx)

	var snapshotID string
	if full {
		snapshotID, err = a.svc.FullSync(ctx)
	} else {
		snapshotID, err = a.svc.IncrementalSync(ctx)
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "snapshot:", snapshotID)
	return 0
}

func runHistorical(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("historical", flag.ContinueOnError)
	fs.SetOutput(stderr)
	congresses := fs.Int("congresses", 3, "how many congresses to pull, newest first")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer a.close(ctx)

	if err := a.svc.InitialHistoricalPull(ctx, *congresses); err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "scheduled %d historical crawls\n", *congresses)
	return 0
}

func runRepair(args []string, stdout, stderr io.Writer) int {
	scope, code := congressScope("repair", args, stderr)
	if code != 0 {
		return code
	}
	return enqueueJob(stdout, stderr, sync.JobRepair, sync.RepairJob{Congress: scope})
}

func runBackfill(args []string, stdout, stderr io.Writer) int {
	scope, code := congressScope("backfill", args, stderr)
	if code != 0 {
		return code
	}
	return enqueueJob(stdout, stderr, sync.JobBackfill, sync.BackfillJob{Congress: scope})
}

// congressScope parses the shared -congress flag; 0 means unscoped.
func congressScope(name string, args []string, stderr io.Writer) (*int, int) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	congressNum := fs.Int("congress", 0, "congress to limit the pass to; 0 means all")
	if err := fs.Parse(args); err != nil {
		return nil, 2
	}
	if *congressNum > 0 {
		return congressNum, 0
	}
	return nil, 0
}

func enqueueJob(stdout, stderr io.Writer, kind string, payload any) int {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer a.close(ctx)

	id, err := a.store.ScheduleJob(ctx, kind, payload, time.Now().UTC())
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "job:", id)
	return 0
}

func runStats(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	congressNum := fs.Int("congress", 0, "congress to recompute; 0 means all")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer a.close(ctx)

	if *congressNum > 0 {
		err = a.recomputer.RecomputeCongress(ctx, *congressNum)
	} else {
		err = a.recomputer.RecomputeAll(ctx)
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "aggregates recomputed")
	return 0
}

func runCompleteness(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("completeness", flag.ContinueOnError)
	fs.SetOutput(stderr)
	congressNum := fs.Int("congress", 0, "congress to report on; 0 means all")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer a.close(ctx)

	var scope *int
	if *congressNum > 0 {
		scope = congressNum
	}
	report, err := a.store.Completeness(ctx, scope)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}
