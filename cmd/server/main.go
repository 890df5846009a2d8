package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/gurkanbulca/tasktracker/internal/config"
	"github.com/gurkanbulca/tasktracker/internal/database"
	"github.com/gurkanbulca/tasktracker/internal/docstore"
	"github.com/gurkanbulca/tasktracker/internal/repository"
	"github.com/gurkanbulca/tasktracker/internal/server"
	"github.com/gurkanbulca/tasktracker/internal/service"
	"github.com/gurkanbulca/tasktracker/pkg/auth"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	log.Println("✅ Server shutdown complete")
}

func run(ctx context.Context, cfg *config.Config) error {
	g, ctx := errgroup.WithContext(ctx)

	accounts, documents, err := openStores(ctx, g, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := accounts.Close(); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
	}()

	if cfg.Server.AutoMigrate {
		if err := database.Migrate(ctx, accounts); err != nil {
			return fmt.Errorf("run auto migration: %w", err)
		}
	}

	revoker, closeRevoker, err := newRevoker(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeRevoker()

	tokenManager := auth.NewTokenManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenDuration,
		cfg.JWT.RefreshTokenDuration,
	)
	passwordManager := auth.NewPasswordManager(cfg.ToPasswordPolicy(), cfg.Security.BcryptCost)

	securityService := service.NewSecurityService(repository.NewSecurityEventRepository(accounts))
	authService := service.NewAuthService(
		repository.NewUserRepository(accounts),
		tokenManager,
		passwordManager,
		revoker,
		service.NewSecurityLogger(securityService),
		cfg.Security,
	)

	grpcServer, healthServer := server.New(server.Options{
		AuthService:      authService,
		DocumentService:  service.NewDocumentService(documents, log.Default()),
		TokenManager:     tokenManager,
		Revoker:          revoker,
		Validation:       cfg.ToValidationConfig(),
		Logger:           log.Default(),
		EnableReflection: cfg.Server.EnableReflection,
	})
	if cfg.Server.EnableReflection {
		log.Println("gRPC reflection enabled (disable in production)")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	g.Go(func() error {
		log.Printf("🚀 TaskTracker gRPC server listening on port %s (%s store)", cfg.Server.GRPCPort, cfg.Server.StoreBackend)
		return grpcServer.Serve(listener)
	})

	g.Go(func() error {
		startCleanupJob(ctx, securityService, cfg.Security.EventRetention)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("📴 Shutting down server...")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}

// openStores opens the account database and the document backend selected
// by STORE_BACKEND. Background work the backend needs is started on g.
func openStores(ctx context.Context, g *errgroup.Group, cfg *config.Config) (*sqlx.DB, docstore.Backend, error) {
	switch cfg.Server.StoreBackend {
	case config.StoreBackendPostgres:
		log.Println("Connecting to PostgreSQL...")
		dbCfg := cfg.ToDatabaseConfig()
		db, err := database.NewPostgres(dbCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		store := docstore.NewPostgresStore(db, dbCfg.DSN(), log.Default())
		g.Go(func() error { return store.Run(ctx) })
		return db, store, nil

	default:
		log.Printf("Using in-memory document store, accounts in SQLite %s", cfg.Server.AccountsDSN)
		db, err := database.NewSQLite(cfg.Server.AccountsDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open accounts database: %w", err)
		}
		store := docstore.NewMemoryStore()
		g.Go(func() error {
			<-ctx.Done()
			store.Close()
			return nil
		})
		return db, store, nil
	}
}

// newRevoker uses Redis when configured so revocations survive restarts and
// are shared between replicas.
func newRevoker(ctx context.Context, cfg config.RedisConfig) (auth.Revoker, func(), error) {
	if cfg.Addr == "" {
		log.Println("Using in-memory token revocation")
		return auth.NewMemoryRevoker(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Printf("✅ Connected to Redis at %s", cfg.Addr)

	return auth.NewRedisRevoker(client), func() {
		if err := client.Close(); err != nil {
			log.Printf("Failed to close redis client: %v", err)
		}
	}, nil
}

// startCleanupJob purges expired security events every hour until ctx ends.
func startCleanupJob(ctx context.Context, securityService *service.SecurityService, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	log.Println("🧹 Starting background cleanup job (runs every hour)")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := securityService.PurgeEvents(ctx, retention)
			if err != nil {
				log.Printf("Failed to purge security events: %v", err)
				continue
			}
			log.Printf("🧹 Purged %d expired security events", n)
		}
	}
}
