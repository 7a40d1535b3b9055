package db

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fatflowers/autoinspect/internal/models"
	"github.com/fatflowers/autoinspect/internal/store"
	"github.com/fatflowers/autoinspect/internal/store/memstore"
	cfgpkg "github.com/fatflowers/autoinspect/pkg/config"
	gormzap "github.com/fatflowers/autoinspect/pkg/gormlog"
)

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	if cfg.Database.DSN == "" {
		l.Error("database DSN is empty")
		return nil, gorm.ErrInvalidDB
	}
	level := gormlogger.Warn
	if cfg.Env == cfgpkg.EnvDev {
		level = gormlogger.Info
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger:         gormzap.New(l, level),
		TranslateError: true,
	})
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	l.Infow("connected to postgres via DSN")
	return db, nil
}

// NewStore opens the configured backend. The memory driver keeps no state
// across restarts and is meant for local runs and tests.
func NewStore(lc fx.Lifecycle, l *zap.SugaredLogger, cfg *cfgpkg.Config) (store.Store, error) {
	if cfg.Storage.Driver == cfgpkg.StorageDriverMemory {
		l.Warnw("using in-memory store, data will not survive a restart")
		return memstore.New(), nil
	}
	gdb, err := NewDB(l, cfg)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(l, gdb); err != nil {
		return nil, err
	}
	registerDBClose(lc, l, gdb)
	return NewGormStore(gdb), nil
}

var Module = fx.Options(
	fx.Provide(NewStore),
)

// partialIndexes back invariants that a plain unique index cannot express.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_subscription_one_pending ON subscription (customer_id) WHERE status = 'pending_payment'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_assignment_one_active ON assignment (subscription_id) WHERE status = 'active'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_visit_one_in_progress ON visit (subscription_id) WHERE status = 'in_progress'`,
}

// AutoMigrate runs GORM migrations on startup
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Subscription{},
		&models.SubscriptionLog{},
		&models.Vehicle{},
		&models.Assignment{},
		&models.Visit{},
		&models.PaymentRecord{},
		&models.Invoice{},
		&models.InvoiceSequence{},
		&models.Event{},
		&models.Notification{},
	); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			l.Errorf("create index failed: %v", err)
			return fmt.Errorf("failed to create partial index: %w", err)
		}
	}
	l.Infow("automigrate completed")
	return nil
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing postgres connection pool")
			return sqlDB.Close()
		},
	})
}
