package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"voxellands.ai/internal/config"
	"voxellands.ai/internal/hierarchy"
	"voxellands.ai/internal/migrate"
	persistlog "voxellands.ai/internal/persistence/log"
	"voxellands.ai/internal/persistence/kvstore"
	"voxellands.ai/internal/registry"
	"voxellands.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configPath = flag.String("config", "./configs/lands.yaml", "config path (defaults apply when missing)")
		dataDir    = flag.String("data", "./data", "runtime data directory (audit log)")
		debug      = flag.Bool("debug", false, "development logging")
	)
	flag.Parse()

	logger := newLogger(*debug)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		logger.Fatal("create store dir", zap.Error(err))
	}
	store, err := kvstore.OpenSQLite(cfg.Store.Path)
	if err != nil {
		logger.Fatal("open store", zap.String("path", cfg.Store.Path), zap.Error(err))
	}
	defer store.Close()

	claimChain, err := migrate.NewClaimChain()
	if err != nil {
		logger.Fatal("claim migrator", zap.Error(err))
	}

	opts := registry.Options{
		Store:  store,
		Logger: logger.Named("registry"),
		Limits: registry.Limits{
			MaxNestedDepth: cfg.Limits.MaxNestedDepth,
			MaxChildren:    cfg.Limits.MaxChildren,
			MinEdge:        cfg.Limits.MinEdge,
			MaxEdge:        cfg.Limits.MaxEdge,
			MinY:           cfg.Limits.MinY,
			MaxY:           cfg.Limits.MaxY,
		},
		BackupDir:     cfg.Store.BackupDir,
		FlushInterval: cfg.FlushInterval(),
		ClaimMigrator: claimChain,
		StoreMigrator: migrate.NewStoreChain(),
	}
	if cfg.Audit.Enabled {
		auditLog := persistlog.NewAuditLogger(*dataDir)
		defer auditLog.Close()
		opts.Audit = auditLog
	}

	reg, err := registry.Open(opts)
	if err != nil {
		logger.Fatal("open registry", zap.Error(err))
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Error("close registry", zap.Error(err))
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	mux := newMux(handlerDeps{
		reg:       reg,
		hier:      hierarchy.New(reg, logger.Named("hierarchy")),
		store:     store,
		backupDir: cfg.Store.BackupDir,
		log:       logger,
		admin:     envBool("LANDS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(reg, logger.Named("ws")).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", zap.String("addr", *addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("ListenAndServe", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewExample()
	}
	return l.Named("server")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
