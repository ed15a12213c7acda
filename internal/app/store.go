package app

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/hitoshi/blogman/internal/config"
	"github.com/hitoshi/blogman/internal/database"
	"github.com/hitoshi/blogman/internal/handler"
	"github.com/hitoshi/blogman/internal/repository"
)

// store は選択されたストアのリポジトリと後始末をまとめたもの。
type store struct {
	posts  repository.PostRepository
	users  repository.UserRepository
	health handler.HealthChecker
	close  func(ctx context.Context) error
}

func storeKind(cfg *config.Config) string {
	if cfg.UsesMongo() {
		return "mongodb"
	}
	return "postgres"
}

// openStore はDATABASE_URLのスキームに応じてPostgreSQLまたはMongoDBに接続する。
func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	if cfg.UsesMongo() {
		return openMongoStore(ctx, cfg)
	}
	return openPostgresStore(ctx, cfg)
}

func openPostgresStore(ctx context.Context, cfg *config.Config) (*store, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &store{
		posts:  repository.NewPostgresPostRepo(db),
		users:  repository.NewPostgresUserRepo(db),
		health: db,
		close:  func(context.Context) error { return db.Close() },
	}, nil
}

func openMongoStore(ctx context.Context, cfg *config.Config) (*store, error) {
	client, err := database.OpenMongo(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	db := client.Database(cfg.MongoDatabase)
	if err := database.EnsureMongoIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &store{
		posts:  repository.NewMongoPostRepo(db),
		users:  repository.NewMongoUserRepo(db),
		health: mongoPinger{client: client},
		close:  client.Disconnect,
	}, nil
}

// migrateStore はストアのスキーマを最新にする。
func migrateStore(cfg *config.Config) error {
	if !cfg.UsesMongo() {
		version, err := database.RunMigrations(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		slog.Info("schema migrated", slog.Uint64("version", uint64(version)))
		return nil
	}

	ctx := context.Background()
	client, err := database.OpenMongo(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	return database.EnsureMongoIndexes(ctx, client.Database(cfg.MongoDatabase))
}

// mongoPinger はMongoDBクライアントをHealthCheckerに適合させる。
type mongoPinger struct {
	client *mongo.Client
}

func (p mongoPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}

// compile-time interface check
var _ handler.HealthChecker = mongoPinger{}
