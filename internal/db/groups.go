package db

import "gorm.io/gorm"

// CurrentGroupRecord возвращает актуальную группу (последнюю созданную) или nil
func CurrentGroupRecord(tx *gorm.DB) (*CurrentGroup, error) {
	return first[CurrentGroup](tx.Order("id desc"))
}

func LockCurrentGroup(tx *gorm.DB) (*CurrentGroup, error) {
	return first[CurrentGroup](forUpdate(tx).Order("id desc"))
}

// CreateGroup добавляет новую группу, она становится актуальной. chat_id пока неизвестен.
func CreateGroup(tx *gorm.DB, inviteLink, name string) (*CurrentGroup, error) {
	group := &CurrentGroup{InviteLink: inviteLink, GroupName: name}
	if err := tx.Create(group).Error; err != nil {
		return nil, err
	}
	return group, nil
}

func SetGroupChatID(tx *gorm.DB, groupID uint, chatID int64) error {
	return tx.Model(&CurrentGroup{}).Where("id = ?", groupID).Update("chat_id", chatID).Error
}
