package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/krshsl/mockinterview/repository"
	"github.com/krshsl/mockinterview/services"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// Setup structured logging with JSON format
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	config := services.LoadConfig()
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, config.Database)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	server := services.NewServer(config)
	if store != nil {
		server.SetStore(store)
	}

	if config.Redis.URL != "" {
		client, err := openRedis(ctx, config.Redis.URL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		server.SetLease(services.NewRedisLease(client, config.Redis.LeaseTTL))
		slog.Info("Using Redis dialogue leases")
	}

	if err := server.InitializeServices(ctx); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	if config.Database.SeedDemo {
		session, err := services.NewDatabaseSeeder(server.Store()).SeedDemoSession(ctx)
		if err != nil {
			slog.Error("Failed to seed demo session", "error", err)
		} else {
			slog.Info("Demo session available", "code", session.Code, "username", services.DemoSessionUser)
		}
	}

	if err := server.Start(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

// openStore picks Postgres, then Mongo. A nil store means in-memory.
func openStore(ctx context.Context, cfg services.DatabaseConfig) (repository.Store, func(), error) {
	switch {
	case cfg.URL != "":
		db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
			Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get sql db: %w", err)
		}
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Hour)

		repo := repository.NewGORMRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		slog.Info("Connected to postgres")
		return repo, func() { sqlDB.Close() }, nil

	case cfg.MongoURI != "":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		repo := repository.NewMongoRepository(client, cfg.MongoDatabase)
		if err := repo.Ping(connectCtx); err != nil {
			return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		if err := repo.EnsureIndexes(connectCtx); err != nil {
			return nil, nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		slog.Info("Connected to mongo", "database", cfg.MongoDatabase)
		return repo, func() { client.Disconnect(context.Background()) }, nil

	default:
		return nil, func() {}, nil
	}
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}
