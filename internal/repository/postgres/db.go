package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the pgx pool used by the event store and a gorm handle that
// shares it for the settings table.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, *gorm.DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("cannot reach db: %w", err)
	}

	gdb, err := gorm.Open(gormpg.New(gormpg.Config{
		Conn: stdlib.OpenDBFromPool(pool),
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("cannot open gorm: %w", err)
	}

	return pool, gdb, nil
}
