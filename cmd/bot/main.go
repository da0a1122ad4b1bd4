package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"Access-Telegram-bot/config"
	"Access-Telegram-bot/internal/admin"
	"Access-Telegram-bot/internal/bot"
	"Access-Telegram-bot/internal/db"
	"Access-Telegram-bot/internal/dialog"
	"Access-Telegram-bot/internal/logger"
	"Access-Telegram-bot/internal/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.DatabaseURL, zl)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}
	botapi, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		zl.Fatal("failed to create bot", zap.Error(err))
	}
	zl.Info("authorized", zap.String("account", botapi.Self.UserName))
	if len(cfg.AdminIDs) == 0 {
		zl.Warn("ADMIN_IDS is empty, admin commands and support relay are disabled")
	}
	notifier := logger.NewNotifier(botapi, cfg.AdminIDs, zl)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(reg)

	access := services.NewAccessService(services.Params{
		DB:         conn,
		Log:        zl.Named("access"),
		Membership: bot.NewTelegramMembership(botapi),
		Metrics:    metrics,
	})
	dialogs := dialog.NewStore(conn)
	backups := admin.NewBackuper(conn, cfg.DatabaseURL, cfg.BackupDir, zl.Named("backup"), notifier)
	adminHandler := admin.NewHandler(admin.Params{
		Access:   access,
		Exporter: services.NewExporter(conn),
		Dialogs:  dialogs,
		Backups:  backups,
		Reports:  admin.NewReporter(conn),
		AdminIDs: cfg.AdminIDs,
		Log:      zl.Named("admin"),
	})
	tg := bot.New(bot.Params{
		API:            botapi,
		Access:         access,
		Admin:          adminHandler,
		Dialogs:        dialogs,
		Notifier:       notifier,
		SupportContact: cfg.SupportContact,
		Log:            zl.Named("bot"),
	})

	webhook := services.NewWebhookHandler(services.WebhookParams{
		DB:      conn,
		Log:     zl.Named("webhook"),
		Token:   cfg.WebhookToken,
		Metrics: metrics,
	})
	srv := &http.Server{
		Addr:              cfg.WebhookAddr(),
		Handler:           services.NewRouter(webhook, reg, zl.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		defer notifier.NotifyOnPanic("webhook server")
		zl.Info("webhook server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("webhook server stopped", zap.Error(err))
			notifier.NotifyAdmin("Webhook server error: " + err.Error())
			stop()
		}
	}()

	c := cron.New()
	if _, err := c.AddFunc(cfg.BackupSchedule, func() { backups.AutoBackup(ctx) }); err != nil {
		zl.Fatal("invalid BACKUP_SCHEDULE", zap.String("schedule", cfg.BackupSchedule), zap.Error(err))
	}
	if _, err := c.AddFunc(cfg.ReportSchedule, func() {
		defer notifier.NotifyOnPanic("daily report")
		tg.Deliver(adminHandler.DailyReport(ctx))
	}); err != nil {
		zl.Fatal("invalid REPORT_SCHEDULE", zap.String("schedule", cfg.ReportSchedule), zap.Error(err))
	}
	c.Start()

	// Polling; webhook-режим Telegram не используется
	tg.Start(ctx, botapi.GetUpdatesChan(bot.UpdateConfig()))

	zl.Info("shutting down")
	botapi.StopReceivingUpdates()
	<-c.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("webhook server shutdown", zap.Error(err))
	}
}
