package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"seatwatch/internal/config"
	"seatwatch/internal/notifier"
	"seatwatch/internal/repository/sqlite"
	"seatwatch/internal/schedule"
	"seatwatch/internal/services/checker"
	"seatwatch/internal/usos"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// main is the entry point of the application. It wires the collaborators
// together and either runs a single check cycle or, when a cron schedule
// is configured, keeps running cycles until interrupted.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// The weekly schedule is derived fresh from the calendar export; a
	// missing or corrupt export degrades to an empty schedule with a warning.
	weekly := schedule.NewExtractor(logger, cfg.MinOccurrences).ExtractFile(cfg.CalendarPath)
	logger.InfoContext(ctx, "Weekly schedule loaded", "entries", len(weekly))

	repo, err := sqlite.NewRepository(ctx, logger, cfg.StoragePath)
	if err != nil {
		log.Fatalf("Failed to init snapshot repository: %v", err)
	}
	defer repo.Close()

	client, err := usos.NewClient(logger, cfg.USOS.BaseURL, cfg.USOS.CASURL,
		cfg.USOS.Username, cfg.USOS.Password, cfg.Registrations, cfg.USOS.Pace)
	if err != nil {
		log.Fatalf("Failed to init USOS client: %v", err)
	}

	check := checker.NewChecker(logger, client, repo, weekly)
	notifiers := buildNotifiers(logger, cfg)

	if cfg.WatchCron == "" {
		if err := runCycle(ctx, logger, check, notifiers); err != nil {
			notifyFailure(ctx, logger, notifiers, err)
			log.Fatalf("Check cycle failed: %v", err)
		}
		return
	}

	// Watch mode: run now, then on the configured cron schedule.
	logger.InfoContext(ctx, "Application started in watch mode. Press Ctrl+C to stop.", "cron", cfg.WatchCron)

	if err := runCycle(ctx, logger, check, notifiers); err != nil {
		logger.ErrorContext(ctx, "Check cycle failed", "error", err)
		notifyFailure(ctx, logger, notifiers, err)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.WatchCron, func() {
		if err := runCycle(ctx, logger, check, notifiers); err != nil {
			logger.ErrorContext(ctx, "Check cycle failed", "error", err)
			notifyFailure(ctx, logger, notifiers, err)
		}
	}); err != nil {
		log.Fatalf("Invalid SW_WATCH_CRON expression %q: %v", cfg.WatchCron, err)
	}
	scheduler.Start()

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	logger.Info("Shutdown signal received. Stopping application...")
	<-scheduler.Stop().Done()
	logger.Info("Application stopped gracefully.")
}

// runCycle performs one fetch-diff-notify cycle. The snapshot is already
// persisted when notification starts, so delivery failures are logged and
// swallowed instead of failing the run.
func runCycle(ctx context.Context, logger *slog.Logger, check checker.Interface, notifiers []notifier.Notifier) error {
	changes, err := check.Run(ctx)
	if err != nil {
		return err
	}

	if changes.Empty() {
		logger.InfoContext(ctx, "No changes since the last check")
		return nil
	}

	for _, msg := range notifier.BuildMessages(changes) {
		for _, n := range notifiers {
			if err := n.Send(ctx, msg); err != nil {
				logger.WarnContext(ctx, "Failed to deliver notification", "title", msg.Title, "error", err)
			}
		}
	}

	return nil
}

// notifyFailure reports a fatal cycle error on the configured channels, so
// an unattended deployment does not fail silently. Delivery errors are
// logged and swallowed; the run is already failing.
func notifyFailure(ctx context.Context, logger *slog.Logger, notifiers []notifier.Notifier, runErr error) {
	msg := notifier.BuildFailureMessage(runErr)
	for _, n := range notifiers {
		if err := n.Send(ctx, msg); err != nil {
			logger.WarnContext(ctx, "Failed to deliver failure notification", "error", err)
		}
	}
}

// buildNotifiers assembles every channel that has credentials configured.
// With none configured the run still completes; messages are skipped with
// a logged warning.
func buildNotifiers(logger *slog.Logger, cfg *config.Config) []notifier.Notifier {
	var notifiers []notifier.Notifier

	if cfg.Discord.Token != "" && cfg.Discord.UserID != "" {
		discord, err := notifier.NewDiscord(logger, cfg.Discord.Token, cfg.Discord.UserID)
		if err != nil {
			logger.Warn("Failed to init Discord notifier; channel disabled", "error", err)
		} else {
			notifiers = append(notifiers, discord)
		}
	}

	if cfg.Tg.Token != "" && cfg.Tg.ChatID != 0 {
		telegram, err := notifier.NewTelegram(logger, cfg.Tg.Token, cfg.Tg.ChatID, cfg.Tg.Timeout)
		if err != nil {
			logger.Warn("Failed to init Telegram notifier; channel disabled", "error", err)
		} else {
			notifiers = append(notifiers, telegram)
		}
	}

	if len(notifiers) == 0 {
		notifiers = append(notifiers, notifier.NewNoop(logger))
	}

	return notifiers
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified	 or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
