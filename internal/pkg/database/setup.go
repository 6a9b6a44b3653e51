package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/PayoutFox/app/models"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config describes how to reach the settlement database.
type Config struct {
	Driver      string
	User        string
	Password    string
	Host        string
	Port        string
	Name        string
	SQLitePath  string
	AutoMigrate bool
}

// ConfigFromEnv reads DB_* variables.
func ConfigFromEnv() Config {
	return Config{
		Driver:      strings.ToLower(env.GetEnv("DB_DRIVER", DriverMySQL)),
		User:        env.GetEnv("DB_USER", ""),
		Password:    env.GetEnv("DB_PASSWORD", ""),
		Host:        env.GetEnv("DB_HOST", "127.0.0.1"),
		Port:        env.GetEnv("DB_PORT", "3306"),
		Name:        env.GetEnv("DB_NAME", ""),
		SQLitePath:  env.GetEnv("DB_SQLITE_PATH", "payoutfox.db"),
		AutoMigrate: env.GetEnv("DB_AUTO_MIGRATE", "false") == "true",
	}
}

// DSN returns the driver specific data source name.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.SQLitePath
	}
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// Open connects to the database, retrying while the server comes up. The
// caller owns the handle and must Close it on shutdown.
func Open(cfg Config) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(dialector(cfg), gormConfig())
		if err == nil {
			if cfg.AutoMigrate {
				if err := Migrate(db); err != nil {
					return nil, err
				}
			}
			return db, nil
		}

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("connect %s database: %w", cfg.Driver, err)
}

// OpenSQLite opens a SQLite database without retries, migrates it and caps
// the pool to one connection so writers serialize instead of failing with
// "database is locked". Used for local runs and tests.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// MemoryDSN returns a named shared in-memory SQLite DSN.
func MemoryDSN(name string) string {
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

// Migrate creates the settlement tables. Production MySQL uses cmd/migrate.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Purchase{},
		&models.Payout{},
		&models.LedgerEntry{},
		&models.PayoutWebhookEvent{},
	)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return errors.New("database handle is nil")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialector(cfg Config) gorm.Dialector {
	if cfg.Driver == DriverSQLite {
		return sqlite.Open(cfg.DSN())
	}
	return mysql.New(mysql.Config{
		DSN:                       cfg.DSN(), // data source name
		DefaultStringSize:         256,       // default size for string fields
		DisableDatetimePrecision:  true,      // disable datetime precision, which not supported before MySQL 5.6
		DontSupportRenameIndex:    true,      // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
		DontSupportRenameColumn:   true,      // `change` when rename column, rename column not supported before MySQL 8, MariaDB
		SkipInitializeWithVersion: false,     // auto configure based on currently MySQL version
	})
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		// unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}
