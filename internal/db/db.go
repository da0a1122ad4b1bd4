package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Dialector выбирает драйвер по DATABASE_URL.
// sqlite://path, file:..., *.db и *.sqlite3 открываются как SQLite, всё остальное как Postgres.
func Dialector(dsn string) (string, gorm.Dialector) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return DriverSQLite, sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite3"):
		return DriverSQLite, sqlite.Open(dsn)
	default:
		return DriverPostgres, postgres.Open(dsn)
	}
}

// Open подключается к БД и мигрирует схему
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	driver, dialector := Dialector(dsn)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite пишет одним соединением, иначе ловим "database is locked"
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("database ready", zap.String("driver", driver))
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Payment{}, &User{}, &AccessLog{}, &CurrentGroup{}, &DialogState{})
}

// forUpdate блокирует выбранные строки до конца транзакции.
// SQLite блокирует всю базу на запись, там клауза не нужна.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == DriverPostgres {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// first возвращает nil, nil если запись не найдена
func first[T any](q *gorm.DB) (*T, error) {
	var out T
	res := q.Limit(1).Find(&out)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &out, nil
}
