package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Kyz7/blog/internal/auth"
	"github.com/Kyz7/blog/internal/config"
	"github.com/Kyz7/blog/internal/database"
	"github.com/Kyz7/blog/internal/revocation"
	"github.com/Kyz7/blog/internal/server"
	"github.com/Kyz7/blog/internal/storage"
	"github.com/Kyz7/blog/internal/user"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func setupLogger(level string) {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.Warnf("⚠️  Invalid LOG_LEVEL %q, defaulting to info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func main() {
	cfg := config.Load()
	setupLogger(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	log.Info("✅ Configuration validated")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========== DATABASE SETUP ==========
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Errorf("❌ Failed to close database: %v", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Info("✅ Database migrated successfully")

	// ========== RUN SQL MIGRATIONS (FOR SEARCH INDEXES) ==========
	if err := database.RunMigrations(db, "./migrations"); err != nil {
		log.Warnf("⚠️  SQL migrations failed: %v", err)
		log.Warn("⚠️  Search features may not work optimally")
	}

	// ========== REVOCATION CACHE ==========
	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := cache.Ping(pingCtx).Err(); err != nil {
			log.Warnf("⚠️  Redis unavailable at %s, revocation checks use the database only: %v", cfg.RedisAddr, err)
			_ = cache.Close()
			cache = nil
		} else {
			log.Infof("✅ Redis revocation cache at %s", cfg.RedisAddr)
			defer cache.Close()
		}
		cancel()
	}

	issuer, err := auth.NewIssuer(cfg.AccessSecret, cfg.RefreshSecret)
	if err != nil {
		log.Fatalf("❌ JWT configuration error: %v", err)
	}
	revocations := revocation.NewStore(db, cache)

	// ========== STORAGE SETUP ==========
	var store storage.Storage
	if cfg.UseS3 {
		s3Store, err := storage.NewS3(cfg.S3Bucket, cfg.S3Region, cfg.CloudFrontURL)
		if err != nil {
			log.Warnf("⚠️  S3 initialization failed, falling back to local storage: %v", err)
		} else {
			log.Infof("☁️  Using S3: %s (region: %s)", cfg.S3Bucket, cfg.S3Region)
			store = s3Store
		}
	}
	if store == nil {
		local, err := storage.NewLocal(cfg.UploadDir, cfg.BaseURL)
		if err != nil {
			log.Fatalf("❌ Failed to initialize local storage: %v", err)
		}
		log.Infof("💾 Using LOCAL storage mode (%s)", cfg.UploadDir)
		store = local
	}

	// ========== SEED DEFAULT DATA ==========
	users := user.NewService(db, user.NewProtectedAccounts(cfg.ProtectedEmails), cfg.DefaultUserPassword)
	if err := users.SeedAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
		log.Warnf("⚠️  Failed to seed admin account: %v", err)
	}

	// ========== BACKGROUND JOBS ==========
	revocation.NewSweeper(revocations, cfg.RevokedSweepInterval).Start(ctx)
	log.Infof("🧹 Revoked token sweep every %s", cfg.RevokedSweepInterval)

	// ========== START SERVER ==========
	app := server.New(server.Deps{
		Config:      cfg,
		DB:          db,
		Issuer:      issuer,
		Revocations: revocations,
		Storage:     store,
	})

	go func() {
		log.Infof("🚀 Blog server starting on %s", cfg.ServerAddr)
		if err := app.Listen(cfg.ServerAddr); err != nil {
			log.Errorf("❌ Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("🛑 Shutting down...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Errorf("❌ Graceful shutdown failed: %v", err)
	}
}
