package notex

import (
	"context"
	"fmt"
)

// Migrate runs schema migrations on the configured store. For PostgreSQL this
// uses GORM AutoMigrate; SurrealDB creates tables implicitly so its migration
// is a no-op, and the in-memory store has no schema at all. Safe to run
// multiple times.
func (a *App) Migrate(ctx context.Context, cmd *MigrateCommand) error {
	a.log.Info().Str("backend", a.config.StoreBackend).Msg("running database migrations")
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.log.Info().Msg("migrations completed")
	return nil
}
