package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"Access-Telegram-bot/internal/db"
)

const (
	DateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

var exportHeader = []string{
	"id", "telegram_id", "email", "order_id", "group_name", "group_id", "action", "timestamp", "comment",
}

// ParseExportRange разбирает даты YYYY-MM-DD. Окно заканчивается началом дня после end (не включительно).
func ParseExportRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation(DateLayout, strings.TrimSpace(startRaw), time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDate
	}
	end, err := time.ParseInLocation(DateLayout, strings.TrimSpace(endRaw), time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDate
	}
	return from, end.AddDate(0, 0, 1), nil
}

// GroupFilter: "-", "все", "all" и пустая строка означают отсутствие фильтра
func GroupFilter(raw string) string {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "-", "все", "all":
		return ""
	}
	return raw
}

type Exporter struct {
	db *gorm.DB
}

func NewExporter(conn *gorm.DB) *Exporter {
	return &Exporter{db: conn}
}

// Export возвращает CSV (UTF-8 с BOM) и число строк.
func (e *Exporter) Export(ctx context.Context, from, to time.Time, groupName string) ([]byte, int, error) {
	logs, err := db.ListAccessLogs(e.db.WithContext(ctx), from, to, groupName)
	if err != nil {
		return nil, 0, err
	}
	if len(logs) == 0 {
		return nil, 0, nil
	}
	data, err := WriteAccessLogCSV(logs)
	return data, len(logs), err
}

func WriteAccessLogCSV(logs []db.AccessLog) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, l := range logs {
		row := []string{
			strconv.FormatUint(uint64(l.ID), 10),
			l.TelegramID,
			l.Email,
			l.OrderID,
			l.GroupName,
			l.GroupID,
			l.Action,
			l.Timestamp.UTC().Format(timestampLayout),
			l.Comment,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
