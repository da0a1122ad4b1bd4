package db

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func FindDialogState(tx *gorm.DB, telegramID string) (*DialogState, error) {
	return first[DialogState](tx.Where("telegram_id = ?", telegramID))
}

// SaveDialogState вставляет или обновляет состояние по telegram_id
func SaveDialogState(tx *gorm.DB, telegramID, state, data string) error {
	row := DialogState{TelegramID: telegramID, State: state, Data: data, UpdatedAt: time.Now().UTC()}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "data", "updated_at"}),
	}).Create(&row).Error
}
