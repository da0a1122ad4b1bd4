package admin

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"Access-Telegram-bot/internal/db"
	"Access-Telegram-bot/internal/logger"
)

const backupRetention = 31 * 24 * time.Hour

// Backuper делает копии БД: pg_dump для Postgres, VACUUM INTO для SQLite.
type Backuper struct {
	conn     *gorm.DB
	dsn      string
	dir      string
	log      *zap.Logger
	notifier *logger.Notifier
	now      func() time.Time
}

func NewBackuper(conn *gorm.DB, dsn, dir string, log *zap.Logger, notifier *logger.Notifier) *Backuper {
	return &Backuper{conn: conn, dsn: dsn, dir: dir, log: log, notifier: notifier, now: time.Now}
}

// Backup создаёт файл prefix_YYYYMMDD_HHMMSS.<ext> в каталоге бэкапов и возвращает путь.
func (b *Backuper) Backup(ctx context.Context, prefix string) (string, error) {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", err
	}
	driver, _ := db.Dialector(b.dsn)
	ext := ".dump"
	if driver == db.DriverSQLite {
		ext = ".sqlite3"
	}
	filename := filepath.Join(b.dir, prefix+"_"+b.now().Format("20060102_150405")+ext)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	var err error
	if driver == db.DriverSQLite {
		err = b.conn.WithContext(ctx).Exec("VACUUM INTO ?", filename).Error
	} else {
		err = exec.CommandContext(ctx, "pg_dump", b.dsn, "-Fc", "-f", filename).Run()
	}
	if err != nil {
		return "", fmt.Errorf("backup %s: %w", driver, err)
	}
	return filename, nil
}

// CleanOldBackups удаляет бэкапы старше maxAge, возвращает число удалённых файлов
func CleanOldBackups(dir string, maxAge time.Duration, now time.Time) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*backup_*"))
	if err != nil {
		return 0, err
	}
	cutoff := now.Add(-maxAge)
	removed := 0
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().Before(cutoff) && os.Remove(f) == nil {
			removed++
		}
	}
	return removed, nil
}

// AutoBackup: задача для cron: бэкап, чистка старых копий, уведомление админов при ошибке.
func (b *Backuper) AutoBackup(ctx context.Context) {
	defer b.notifier.NotifyOnPanic("auto backup")

	filename, err := b.Backup(ctx, "autobackup")
	if err != nil {
		b.log.Error("auto backup failed", zap.Error(err))
		b.notifier.NotifyAdmin("Ошибка резервного копирования: " + err.Error())
		return
	}
	removed, err := CleanOldBackups(b.dir, backupRetention, b.now())
	if err != nil {
		b.log.Warn("backup cleanup failed", zap.Error(err))
	}
	b.log.Info("auto backup done", zap.String("file", filename), zap.Int("removed", removed))
}
