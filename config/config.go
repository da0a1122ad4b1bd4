package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	BotToken       string
	DatabaseURL    string
	AdminIDs       []int64
	WebhookHost    string
	WebhookPort    int
	WebhookToken   string
	SupportContact string
	LogLevel       string
	BackupDir      string
	BackupSchedule string
	ReportSchedule string
}

// LoadConfig читает .env (если есть) и переменные окружения.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, relying on environment variables")
	}

	adminIDs, err := parseAdminIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(getenv("WEBHOOK_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_PORT: %w", err)
	}

	cfg := &AppConfig{
		BotToken:       strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		DatabaseURL:    getenv("DATABASE_URL", "sqlite://db.sqlite3"),
		AdminIDs:       adminIDs,
		WebhookHost:    getenv("WEBHOOK_HOST", "0.0.0.0"),
		WebhookPort:    port,
		WebhookToken:   strings.TrimSpace(os.Getenv("WEBHOOK_TOKEN")),
		SupportContact: strings.TrimSpace(os.Getenv("SUPPORT_CONTACT")),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		BackupDir:      getenv("BACKUP_DIR", "backups"),
		BackupSchedule: getenv("BACKUP_SCHEDULE", "0 3 * * *"),
		ReportSchedule: getenv("REPORT_SCHEDULE", "0 9 * * *"),
	}
	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN is required to start the bot")
	}
	return cfg, nil
}

func (c *AppConfig) WebhookAddr() string {
	return fmt.Sprintf("%s:%d", c.WebhookHost, c.WebhookPort)
}

func parseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
