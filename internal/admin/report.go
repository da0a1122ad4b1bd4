package admin

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"Access-Telegram-bot/internal/db"
	"Access-Telegram-bot/internal/dialog"
)

// Reporter собирает сводку за последние сутки
type Reporter struct {
	conn *gorm.DB
	now  func() time.Time
}

func NewReporter(conn *gorm.DB) *Reporter {
	return &Reporter{conn: conn, now: time.Now}
}

func (r *Reporter) Build(ctx context.Context) (string, error) {
	to := r.now().UTC()
	from := to.Add(-24 * time.Hour)
	tx := r.conn.WithContext(ctx)

	counts, err := db.ActionCounts(tx, from, to)
	if err != nil {
		return "", err
	}
	paid, err := db.CountPayments(tx, db.StatusPaid, from, to)
	if err != nil {
		return "", err
	}
	waiting, err := db.CountUnusedPaid(tx)
	if err != nil {
		return "", err
	}
	group, err := db.CurrentGroupRecord(tx)
	if err != nil {
		return "", err
	}
	groupName := "не настроена"
	if group != nil {
		groupName = group.GroupName
	}

	return fmt.Sprintf("Сводка за сутки (до %s UTC):\n"+
		"Группа: %s\n"+
		"Новых оплат: %d\n"+
		"Оплачено, но не активировано: %d\n"+
		"Выдано доступов: %d\n"+
		"Удалено участников: %d\n"+
		"Разбанено: %d",
		to.Format("2006-01-02 15:04"), groupName, paid, waiting,
		counts[db.ActionGranted], counts[db.ActionRevoked], counts[db.ActionUnbanned]), nil
}

// DailyReport: задача для cron: сводка каждому админу.
func (h *Handler) DailyReport(ctx context.Context) []dialog.Reply {
	text, err := h.reports.Build(ctx)
	if err != nil {
		h.log.Error("daily report failed", zap.Error(err))
		return nil
	}
	replies := make([]dialog.Reply, 0, len(h.adminIDs))
	for _, id := range h.adminIDs {
		replies = append(replies, dialog.Text(id, text, nil))
	}
	return replies
}
