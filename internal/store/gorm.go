package store

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/orthoflow/orthoflow/internal/config"
	"github.com/orthoflow/orthoflow/pkg/log"
)

const (
	dbTypePostgres = "pgsql"

	// concurrent runs update their own records; sqlite serializes the writes
	sqliteBusyTimeout = 5 * time.Second
)

// InitDB opens the ledger database described by cfg.Database. Any type other
// than pgsql opens cfg.Database.Name with sqlite.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.New(log.GormWriter{}, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
		Colorful:                  false,
	})

	db, err := gorm.Open(dialector(cfg.Database), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		zap.S().Named("gorm").Errorw("failed to connect database", "type", cfg.Database.Type, "error", err)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Named("gorm").Errorw("failed to configure connections", "error", err)
		return nil, err
	}
	if cfg.Database.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}

	if cfg.Database.Type != dbTypePostgres {
		zap.S().Named("gorm").Infow("using sqlite ledger", "name", cfg.Database.Name)
		return db, nil
	}

	var serverVersion string
	if result := db.Raw("SELECT version()").Scan(&serverVersion); result.Error != nil {
		zap.S().Named("gorm").Errorw("failed to query server version", "error", result.Error)
		return nil, result.Error
	}
	zap.S().Named("gorm").Infof("PostgreSQL information: '%s'", serverVersion)

	return db, nil
}

func dialector(cfg *config.DatabaseConfig) gorm.Dialector {
	if cfg.Type != dbTypePostgres {
		return sqlite.Open(sqliteDSN(cfg.Name))
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s port=%s sslmode=%s",
		cfg.Hostname,
		cfg.User,
		cfg.Password,
		cfg.Port,
		cfg.SSLMode,
	)
	if cfg.Name != "" {
		dsn = fmt.Sprintf("%s dbname=%s", dsn, cfg.Name)
	}
	return postgres.Open(dsn)
}

func sqliteDSN(name string) string {
	sep := "?"
	if strings.Contains(name, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d", name, sep, sqliteBusyTimeout.Milliseconds())
}
