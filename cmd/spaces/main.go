package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"spaces-planner/internal/bot"
	"spaces-planner/internal/config"
	"spaces-planner/internal/logger"
	"spaces-planner/internal/repository"
	"spaces-planner/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	lg := logger.New()
	if err := lg.Init(cfg.LogLevel); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Log.Sync() }()

	db, err := repository.NewDB(cfg.DatabaseURL, lg.StdLog())
	if err != nil {
		lg.Log.Fatal("open database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	partitionRepo := repository.NewPartitionRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	feedback := service.NewFeedback(lg.Log.Named("feedback"), 64)
	defer feedback.Close()

	telegramBot, err := bot.New(cfg.TelegramToken, bot.Deps{
		Sessions: service.SessionDeps{
			Identity:   service.NewIdentityService(userRepo, cfg.MinPasswordLength),
			Settings:   settingRepo,
			Partitions: partitionRepo,
			Log:        lg.Log,
		},
		Preferences: service.NewPreferences(settingRepo),
		Feedback:    feedback,
		Log:         lg.Log,
	})
	if err != nil {
		lg.Log.Fatal("start bot", zap.Error(err))
	}

	scheduler := service.NewSchedulerService(time.Local, lg.Log)
	if cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.ReportInterval, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Log.Error("send reports", zap.Error(err))
			}
		}); err != nil {
			lg.Log.Fatal("schedule reports", zap.Error(err))
		}
	}
	if cfg.BackupDir != "" {
		backups := service.NewBackupService(userRepo, partitionRepo, cfg.BackupDir, lg.Log.Named("backup"))
		if _, err := scheduler.ScheduleDaily(cfg.BackupTime, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()
			if _, err := backups.ExportAll(jobCtx, time.Now()); err != nil {
				lg.Log.Error("scheduled backup", zap.Error(err))
			}
		}); err != nil {
			lg.Log.Fatal("schedule backups", zap.Error(err))
		}
	}
	if scheduler.Entries() > 0 {
		scheduler.Start()
		defer scheduler.Stop()
	}

	lg.Log.Info("spaces bot started", zap.Int("jobs", scheduler.Entries()))
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		lg.Log.Error("bot stopped with error", zap.Error(err))
	}
	lg.Log.Info("shutdown complete")
}
