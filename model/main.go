package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/songquanpeng/llm-gateway/common"
	"github.com/songquanpeng/llm-gateway/common/config"
	"github.com/songquanpeng/llm-gateway/common/logger"
)

var DB *gorm.DB

func chooseDB(dsn string) (*gorm.DB, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"):
		return openPostgreSQL(dsn)
	case dsn != "":
		return openMySQL(dsn)
	default:
		return openSQLite()
	}
}

func openPostgreSQL(dsn string) (*gorm.DB, error) {
	logger.Logger.Info("using PostgreSQL as database")
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), gormConfig())
	return db, errors.Wrap(err, "open PostgreSQL")
}

func openMySQL(dsn string) (*gorm.DB, error) {
	logger.Logger.Info("using MySQL as database")
	normalized, err := common.NormalizeMySQLDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "normalize MySQL DSN")
	}
	db, err := gorm.Open(mysql.Open(normalized), gormConfig())
	return db, errors.Wrap(err, "open MySQL")
}

func openSQLite() (*gorm.DB, error) {
	logger.Logger.Info("SQL_DSN not set, using SQLite as database", zap.String("path", config.SQLitePath))
	dsn := fmt.Sprintf("%s?_busy_timeout=%d", config.SQLitePath, config.SQLiteBusyTimeout)
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	return db, errors.Wrap(err, "open SQLite")
}

func gormConfig() *gorm.Config {
	cfg := &gorm.Config{
		PrepareStmt: true,
	}
	return cfg
}

func InitDB() {
	db, err := chooseDB(config.SQLDSN)
	if err != nil {
		logger.Logger.Fatal("failed to initialize database", zap.Error(err))
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal("failed to obtain sql.DB handle", zap.Error(err))
		return
	}
	sqlDB.SetMaxIdleConns(config.SQLMaxIdleConns)
	sqlDB.SetMaxOpenConns(config.SQLMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(config.SQLMaxLifetimeSeconds) * time.Second)

	DB = db
	if err := migrateDB(); err != nil {
		logger.Logger.Fatal("failed to migrate database", zap.Error(err))
	}
	logger.Logger.Info("database migrated")
}

func migrateDB() error {
	if err := DB.AutoMigrate(
		&Service{},
		&ModelLimit{},
		&UserKey{},
		&UserKeyModel{},
	); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	return nil
}

func CloseDB() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return errors.Wrap(err, "obtain sql.DB handle")
	}
	return errors.Wrap(sqlDB.Close(), "close database")
}
