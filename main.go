package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/raine/pricebanner/config"
	"github.com/raine/pricebanner/internal/bot"
	"github.com/raine/pricebanner/internal/llm"
	"github.com/raine/pricebanner/internal/web"
)

const (
	logFileName     = "pricebanner.log"
	shutdownTimeout = 10 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	addr := pflag.String("addr", "", "HTTP listen address (overrides PRICEBANNER_ADDR, default "+config.DefaultAddr+")")
	rps := pflag.Float64("rps", 0, "maximum Gemini requests per second (overrides PRICEBANNER_RPS, default 1)")
	noBot := pflag.Bool("no-bot", false, "do not start the Telegram bot even when BOT_TOKEN is set")
	corsAllowAll := pflag.Bool("cors-allow-all", false, "allow cross-origin API requests from any origin")
	pflag.Parse()

	// Try to load existing config.env file
	config.LoadEnvFile()

	// Check if required config is missing
	if missing := config.MissingRequired(); len(missing) > 0 {
		if isInteractiveTerminal() {
			// Interactive terminal - run setup wizard
			if !runSetupWizard() {
				waitOnWindows()
				os.Exit(1)
			}
		} else {
			// Non-interactive (systemd, k8s, etc.) - fail with clear error
			fatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd (journald handles it).
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		// Local development: log to both stderr and file
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fatalWithWait("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		multiWriter := io.MultiWriter(consoleWriter, fileWriter)
		log.Logger = log.Output(multiWriter)

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	settings, err := config.FromEnv()
	if err != nil {
		fatalWithWait("invalid config: %v", err)
	}
	if *addr != "" {
		settings.Addr = *addr
	}
	if *rps > 0 {
		settings.RPS = *rps
	}

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(settings.RPS), 1)
	gateway, err := llm.NewGeminiGateway(ctx, settings.GeminiAPIKey, limiter)
	if err != nil {
		fatalWithWait("failed to initialize gemini gateway: %v", err)
	}
	log.Info().Float64("rps", settings.RPS).Msg("gemini gateway initialized")

	sessions := web.NewSessions(gateway, web.DefaultSessionTTL)
	defer sessions.Close()
	server := web.New(web.Config{Addr: settings.Addr, AllowAllOrigins: *corsAllowAll}, sessions)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("stopping web server")
		return server.Shutdown(shutdownCtx)
	})

	if settings.BotToken != "" && !*noBot {
		tg, err := tgbotapi.NewBotAPI(settings.BotToken)
		if err != nil {
			fatalWithWait("failed to initialize telegram bot: %v", err)
		}
		tg.Debug = false
		log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")

		// Register bot commands for Telegram's command menu
		bot.RegisterCommands(tg)

		g.Go(func() error {
			return runBot(ctx, tg, gateway)
		})
	} else {
		log.Info().Msg("telegram bot disabled")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

func runBot(ctx context.Context, tg *tgbotapi.BotAPI, gateway llm.Gateway) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := tg.GetUpdatesChan(updateConfig)

	b := bot.NewBot(tg, gateway)
	defer b.Shutdown()

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping bot update loop")
			tg.StopReceivingUpdates()
			log.Info().Msg("waiting for active handlers to finish")
			wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("updates channel closed")
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}
