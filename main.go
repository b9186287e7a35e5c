package main

import (
	"context"
	"fmt"

	"github.com/cppla/forumposts/config"
	"github.com/cppla/forumposts/repositories"
	"github.com/cppla/forumposts/routes"
	"github.com/cppla/forumposts/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync()

	repo, closeStore, err := openStore(cfg)
	if err != nil {
		utils.Sugar.Fatalf("failed to open %s store: %v", cfg.StoreDriver, err)
	}

	r := routes.SetupRouter(cfg, repo)

	utils.Sugar.Infof("Starting server on port %s (graceful, store=%s)", cfg.AppPort, cfg.StoreDriver)
	if err := utils.GraceServer(":"+cfg.AppPort, r, closeStore); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}

// openStore connects the configured backend and prepares its schema or indexes.
func openStore(cfg config.AppConfig) (repositories.PostRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		ctx := context.Background()
		client, coll, err := config.OpenMongo(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		repo := repositories.NewMongoPostRepository(coll)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				utils.Sugar.Warnf("mongo disconnect: %v", err)
			}
		}
		return repo, closeFn, nil

	case config.StoreGorm:
		db, err := config.OpenDatabase(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := repositories.AutoMigrate(db); err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return repositories.NewGormPostRepository(db), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
