package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"docstore/internal/maintenance"
	"docstore/pkg/adminhttp"
	"docstore/pkg/config"
	"docstore/pkg/logger"
	"docstore/pkg/metrics"
	"docstore/pkg/store"

	"go.uber.org/zap"
)

func main() {
	var (
		version   = "dev"
		commit    = "none"
		buildDate = "unknown"
	)

	cfgPath := flag.String("config", "", "path to config YAML file")
	flag.Parse()

	_ = godotenv.Load(".env")

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	config.ApplyEnvOverrides(cfg)

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Sink); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	logger.Log.Info("starting",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", buildDate),
		zap.Uint32("writer_id", cfg.Store.WriterID),
		zap.String("store_path", cfg.Store.Path),
	)

	m := metrics.New()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Log.Fatal("store_open_failed", zap.Error(err))
	}
	st.Metrics = m

	sweeper := &maintenance.Sweeper{
		Store:   st,
		Metrics: m,
		Cron:    cfg.Maintenance.SweepCron,
	}
	stopSweep, err := maintenance.Start(context.Background(), sweeper)
	if err != nil {
		logger.Log.Fatal("maintenance_start_failed", zap.Error(err))
	}

	admin := &adminhttp.Server{
		Addr:    cfg.Admin.Address,
		Version: version,
		Ready:   st,
	}
	admin.Start()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	logger.Log.Info("shutdown_signal_received", zap.String("signal", sig.String()))

	stopSweep()
	_ = admin.Shutdown()
	if err := st.Close(); err != nil {
		logger.Log.Error("store_close_failed", zap.Error(err))
	}

	time.Sleep(100 * time.Millisecond) // let in-flight admin requests drain
	logger.Log.Info("shutdown_complete")
}
