package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramMembership выполняет операции над участниками группы через Bot API.
type TelegramMembership struct {
	api API
}

func NewTelegramMembership(api API) *TelegramMembership {
	return &TelegramMembership{api: api}
}

func (m *TelegramMembership) ApproveJoinRequest(_ context.Context, chatID, userID int64) error {
	_, err := m.api.Request(tgbotapi.ApproveChatJoinRequestConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
		UserID:     userID,
	})
	return err
}

// RemoveMember банит пользователя: бан не даёт вернуться по старой ссылке
func (m *TelegramMembership) RemoveMember(_ context.Context, chatID, userID int64) error {
	_, err := m.api.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	})
	return err
}

func (m *TelegramMembership) UnbanMember(_ context.Context, chatID, userID int64) error {
	_, err := m.api.Request(tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		OnlyIfBanned:     true,
	})
	return err
}
