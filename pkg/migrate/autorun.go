package migrate

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// AutoApply brings the schema up to date at process start. It only runs in
// the dev environment with STOREFRONT_AUTO_MIGRATE set; other environments
// migrate through storectl.
func AutoApply(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	pool, err := client.DB().DB()
	if err != nil {
		return err
	}
	runner, err := NewRunner(pool, EmbeddedDir)
	if err != nil {
		return err
	}

	applied, err := runner.Up(ctx)
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "applied": len(applied)})
	if err != nil {
		logg.Error(ctx, "schema auto-migration failed", err)
		return err
	}
	logg.Info(ctx, "schema auto-migration finished")
	return nil
}
