package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/edirooss/sabled/internal/admin"
	"github.com/edirooss/sabled/internal/config"
	"github.com/edirooss/sabled/internal/server"
	"github.com/edirooss/sabled/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to sabled.toml (defaults built in if omitted)")
	flag.Parse()

	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	log := zap.Must(logConfig.Build())
	defer log.Sync()
	log = log.Named("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	engine, err := openEngine(cfg, log)
	if err != nil {
		log.Fatal("storage engine open failed", zap.Error(err))
	}
	defer engine.Close()

	srv := server.New(cfg, engine, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adminEngine := admin.New(srv.Metrics, srv.DebugSnapshot, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.ListenAddr) })
	g.Go(func() error { return srv.ServeReplication(gctx, cfg.ReplicationAddr) })
	g.Go(func() error { return admin.Serve(gctx, cfg.AdminAddr, adminEngine, log) })

	log.Info("sabled-server starting",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("replication_addr", cfg.ReplicationAddr),
		zap.String("admin_addr", cfg.AdminAddr),
		zap.Bool("use_rocksdb", cfg.UseRocksDB),
	)

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
	log.Info("sabled-server stopped")
}

func openEngine(cfg config.Config, log *zap.Logger) (storage.Engine, error) {
	if !cfg.UseRocksDB {
		return storage.NewMemEngine(cfg.RocksDB.ReplicationHistoryCap), nil
	}
	return storage.NewRocksDBEngine(cfg.RocksDB.ToEngineOptions(), log)
}
