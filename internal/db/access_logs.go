package db

import (
	"time"

	"gorm.io/gorm"
)

func AppendAccessLog(tx *gorm.DB, entry *AccessLog) error {
	return tx.Create(entry).Error
}

// ListAccessLogs возвращает записи в окне [from, to) по возрастанию времени.
// Пустой groupName отключает фильтр по группе.
func ListAccessLogs(tx *gorm.DB, from, to time.Time, groupName string) ([]AccessLog, error) {
	q := tx.Where("timestamp >= ? AND timestamp < ?", from.UTC(), to.UTC())
	if groupName != "" {
		q = q.Where("group_name = ?", groupName)
	}
	var logs []AccessLog
	err := q.Order("timestamp asc").Order("id asc").Find(&logs).Error
	return logs, err
}

// RecentAccessLogs: последние записи по email или order_id оплаты
func RecentAccessLogs(tx *gorm.DB, email, orderID string, limit int) ([]AccessLog, error) {
	q := tx.Where("order_id = ?", orderID)
	if email != "" {
		q = q.Or("email = ?", email)
	}
	var logs []AccessLog
	err := q.Order("timestamp desc").Order("id desc").Limit(limit).Find(&logs).Error
	return logs, err
}

func CountAccessLogs(tx *gorm.DB) (int64, error) {
	var n int64
	err := tx.Model(&AccessLog{}).Count(&n).Error
	return n, err
}
