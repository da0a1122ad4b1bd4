package db

import (
	"time"

	"gorm.io/gorm"
)

// ActionCounts считает записи журнала по action в окне [from, to)
func ActionCounts(tx *gorm.DB, from, to time.Time) (map[string]int64, error) {
	var rows []struct {
		Action string
		Total  int64
	}
	err := tx.Model(&AccessLog{}).
		Select("action, count(*) as total").
		Where("timestamp >= ? AND timestamp < ?", from.UTC(), to.UTC()).
		Group("action").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Action] = r.Total
	}
	return out, nil
}

// CountPayments: оплаты со статусом status, созданные в окне [from, to)
func CountPayments(tx *gorm.DB, status string, from, to time.Time) (int64, error) {
	var n int64
	err := tx.Model(&Payment{}).
		Where("status = ? AND created_at >= ? AND created_at < ?", status, from.UTC(), to.UTC()).
		Count(&n).Error
	return n, err
}

// CountUnusedPaid: оплачено, но доступ ещё не получен
func CountUnusedPaid(tx *gorm.DB) (int64, error) {
	var n int64
	err := tx.Model(&Payment{}).Where("status = ? AND used = ?", StatusPaid, false).Count(&n).Error
	return n, err
}
