// reviewd - real-time review monitor for bulk text insertions
//
// reviewd watches edit events from editor integrations, classifies bulk
// insertions apart from human typing, opens a timed review window per
// document, and caches the inserted code so the author can submit a
// summary for external evaluation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"reviewd/internal/classify"
	"reviewd/internal/config"
	"reviewd/internal/editwire"
	"reviewd/internal/evaluate"
	"reviewd/internal/ipc"
	"reviewd/internal/journal"
	"reviewd/internal/logging"
	"reviewd/internal/metrics"
	"reviewd/internal/notify"
	"reviewd/internal/review"
	"reviewd/internal/schedule"
	"reviewd/internal/spool"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config file (TOML or YAML)")
	socketPath := flag.String("socket", "", "override IPC socket path")
	logLevel := flag.String("log-level", "", "override log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("reviewd %s\n", version)
		return
	}

	if err := run(*configPath, *socketPath, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "reviewd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, socketOverride, levelOverride string) error {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer loader.Close()

	if socketOverride != "" {
		cfg.IPC.SocketPath = socketOverride
	}
	if levelOverride != "" {
		cfg.Logging.Level = levelOverride
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		FilePath:  cfg.Logging.FilePath,
		Component: "reviewd",
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	log := logger.Logger
	log.Info("starting", "version", version, "config", configPath)
	loader.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Review monitor.
	monitor, err := review.NewMonitor(review.Config{
		Thresholds: classify.Thresholds{
			BulkChars:       cfg.Monitor.BulkChars,
			BulkLines:       cfg.Monitor.BulkLines,
			TypingChars:     cfg.Monitor.TypingChars,
			TypingFragments: cfg.Monitor.TypingFragments,
		},
		Estimate: classify.EstimateParams{
			PerChar: cfg.Estimate.PerChar(),
			PerLine: cfg.Estimate.PerLine(),
			Density: cfg.Estimate.Density,
			Min:     cfg.Estimate.Min(),
			Max:     cfg.Estimate.Max(),
		},
		PreviewCap:  cfg.Monitor.PreviewCap,
		HistorySize: cfg.Monitor.HistorySize,
	})
	if err != nil {
		return fmt.Errorf("init monitor: %w", err)
	}

	// Audit journal.
	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jrnl.Close()
	}

	// Metrics.
	var meter *metrics.Metrics
	if cfg.Metrics.Enabled {
		meter = metrics.New()
		go func() {
			if err := meter.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	// Desktop notifications.
	var notifier notify.Notifier = notify.Disabled{}
	if cfg.Notify.Enabled {
		n, err := notify.New()
		if err != nil {
			log.Warn("desktop notifications unavailable", "error", err)
		} else {
			notifier = n
			defer n.Close()
		}
	}

	// External evaluator.
	if cfg.Evaluator.Enabled {
		eval, err := evaluate.New(evaluate.Config{
			Model:                cfg.Evaluator.Model,
			MaxTokens:            int64(cfg.Evaluator.MaxTokens),
			Timeout:              time.Duration(cfg.Evaluator.TimeoutSec) * time.Second,
			MaxCodeBytes:         cfg.Evaluator.MaxCodeBytes,
			SubmissionsPerMinute: cfg.Evaluator.SubmissionsPerMinute,
		})
		if err != nil {
			log.Warn("evaluator unavailable, summaries will not be verified", "error", err)
		} else {
			monitor.SetEvaluator(eval)
		}
	}

	wireSinks(monitor, jrnl, meter, notifier, log)

	// Session milestone scheduler.
	var scheduler *schedule.Scheduler
	if cfg.Schedule.Enabled {
		var active atomic.Bool
		active.Store(true)
		defer active.Store(false)

		interval := time.Duration(cfg.Schedule.IntervalSec) * time.Second
		scheduler = schedule.New(interval, func(k uint64) bool {
			if !active.Load() {
				return false
			}
			log.Info("session milestone", "ordinal", k)
			if jrnl != nil {
				if err := jrnl.Milestone(k, time.Now()); err != nil {
					log.Warn("journal milestone failed", "error", err)
				}
			}
			if meter != nil {
				meter.MilestonesTotal.Inc()
			}
			return true
		})
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Spool intake.
	if cfg.Spool.Enabled {
		watcher, err := spool.New(cfg.Spool.Dir, func(ev editwire.Event) {
			monitor.HandleEvent(ev)
		}, logger.Component("spool"))
		if err != nil {
			return fmt.Errorf("init spool watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("start spool watcher: %w", err)
		}
		defer watcher.Stop()
	}

	// Config hot reload. Compare against the scheduler's applied interval,
	// not the startup config, so reverting a change is applied too.
	loader.OnChange(func(next *config.Config) {
		log.Info("config reloaded")
		nextInterval := time.Duration(next.Schedule.IntervalSec) * time.Second
		if scheduler != nil && nextInterval > 0 && nextInterval != scheduler.Interval() {
			scheduler.SetInterval(nextInterval)
			log.Info("milestone interval changed", "interval_sec", next.Schedule.IntervalSec)
		}
	})
	if err := loader.Watch(ctx); err != nil {
		log.Warn("config watch unavailable", "error", err)
	}

	// IPC server.
	server := ipc.NewServer(ipc.ServerConfig{
		SocketPath:   cfg.IPC.SocketPath,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}, ipc.NewHandler(monitor, version, logger.Component("ipc")), logger.Component("ipc"))
	if err := server.Start(); err != nil {
		return fmt.Errorf("start ipc server: %w", err)
	}
	defer server.Stop()

	log.Info("ready", "socket", cfg.IPC.SocketPath)
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// wireSinks connects monitor signals to the journal, metrics, and desktop
// notifications.
func wireSinks(monitor *review.Monitor, jrnl *journal.Journal, meter *metrics.Metrics, notifier notify.Notifier, log *slog.Logger) {
	monitor.OnEvent(func(docID string, class classify.Class) {
		log.Debug("event handled", "document", docID, "class", class.String())
		if meter != nil {
			meter.EventsTotal.WithLabelValues(class.String()).Inc()
			meter.OpenWindows.Set(float64(monitor.OpenWindows()))
		}
	})

	monitor.OnPrompt(func(p review.Prompt) {
		log.Info("review window opened",
			"document", p.DocumentID,
			"record", p.RecordID,
			"chars", p.Chars,
			"lines", p.Lines,
			"expected", p.Expected)
		if jrnl != nil {
			if err := jrnl.Insertion(p.RecordID, p.DocumentID, time.Now(), p.Chars, p.Lines, p.Expected); err != nil {
				log.Warn("journal insertion failed", "error", err)
			}
		}
		if meter != nil {
			meter.PromptsTotal.Inc()
		}
		if err := notifier.Send(notify.Notification{
			Title:   "Review the inserted code",
			Body:    fmt.Sprintf("%d characters across %d lines. Take about %s to read it.", p.Chars, p.Lines, p.Expected.Round(time.Second)),
			Urgency: notify.UrgencyNormal,
			Timeout: p.Expected,
		}); err != nil {
			log.Debug("notification failed", "error", err)
		}
	})

	monitor.OnEvaluation(func(e review.Evaluation) {
		outcome := "ok"
		text := e.Verdict
		if e.Err != nil {
			outcome = "error"
			text = e.Err.Error()
		}
		log.Info("summary evaluated",
			"record", e.RecordID,
			"document", e.DocumentID,
			"outcome", outcome)
		if meter != nil {
			meter.EvaluationsTotal.WithLabelValues(outcome).Inc()
		}
		if jrnl != nil {
			if err := jrnl.Verdict(e.RecordID, time.Now(), e.Err == nil, text); err != nil {
				log.Warn("journal verdict failed", "error", err)
			}
		}
	})

	monitor.OnWarning(func(w review.Warning) {
		log.Warn("edited before review time elapsed",
			"document", w.DocumentID,
			"elapsed", w.Elapsed,
			"expected", w.Expected)
		if jrnl != nil {
			if err := jrnl.Warning(w.DocumentID, time.Now(), w.Elapsed, w.Expected); err != nil {
				log.Warn("journal warning failed", "error", err)
			}
		}
		if meter != nil {
			meter.WarningsTotal.Inc()
		}
		if err := notifier.Send(notify.Notification{
			Title:   "Too fast",
			Body:    fmt.Sprintf("You resumed after %s of an expected %s review.", w.Elapsed.Round(time.Second), w.Expected.Round(time.Second)),
			Urgency: notify.UrgencyCritical,
			Timeout: 10 * time.Second,
		}); err != nil {
			log.Debug("notification failed", "error", err)
		}
	})
}
