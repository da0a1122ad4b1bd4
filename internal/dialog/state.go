// Package dialog хранит состояние многошаговых диалогов (поддержка, админ-меню)
// в БД по Telegram ID и проверяет переходы по явной таблице.
package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"Access-Telegram-bot/internal/db"
)

type State string

const (
	Idle                   State = "idle"
	AwaitingSupportMessage State = "awaiting_support_message"
	AwaitingSupportReply   State = "awaiting_support_reply"
	AwaitingGroupInvite    State = "awaiting_group_invite"
	AwaitingGroupName      State = "awaiting_group_name"
	AwaitingExportStart    State = "awaiting_export_start"
	AwaitingExportEnd      State = "awaiting_export_end"
	AwaitingExportGroup    State = "awaiting_export_group"
	AwaitingFindQuery      State = "awaiting_find_query"
	AwaitingRebindQuery    State = "awaiting_rebind_query"
	AwaitingRebindTarget   State = "awaiting_rebind_telegram_id"
	AwaitingRemoveQuery    State = "awaiting_remove_query"
	AwaitingUnbanQuery     State = "awaiting_unban_query"
)

// Ключи промежуточных данных
const (
	KeyReplyUserID = "reply_user_id"
	KeyInviteLink  = "invite_link"
	KeyExportStart = "export_start"
	KeyExportEnd   = "export_end"
	KeyRebindQuery = "rebind_query"
)

// entryStates: состояния, с которых начинается диалог.
var entryStates = []State{
	AwaitingSupportMessage,
	AwaitingSupportReply,
	AwaitingGroupInvite,
	AwaitingExportStart,
	AwaitingFindQuery,
	AwaitingRebindQuery,
	AwaitingRemoveQuery,
	AwaitingUnbanQuery,
}

// continuations: шаги внутри диалога
var continuations = map[State]State{
	AwaitingGroupInvite: AwaitingGroupName,
	AwaitingExportStart: AwaitingExportEnd,
	AwaitingExportEnd:   AwaitingExportGroup,
	AwaitingRebindQuery: AwaitingRebindTarget,
}

var ErrInvalidTransition = errors.New("invalid dialog transition")

// CanTransition: в idle можно всегда; из любого состояния можно начать новый диалог;
// внутри диалога только на следующий шаг.
func CanTransition(from, to State) bool {
	if to == Idle {
		return true
	}
	for _, s := range entryStates {
		if s == to {
			return true
		}
	}
	return continuations[from] == to
}

// Session: текущее состояние пользователя и накопленные данные
type Session struct {
	TelegramID string
	State      State
	Data       map[string]string
}

func (s Session) Get(key string) string {
	return s.Data[key]
}

type Store struct {
	db *gorm.DB
}

func NewStore(conn *gorm.DB) *Store {
	return &Store{db: conn}
}

// Load возвращает сессию; для нового пользователя это Idle.
func (s *Store) Load(ctx context.Context, telegramID string) (Session, error) {
	sess := Session{TelegramID: telegramID, State: Idle, Data: map[string]string{}}
	row, err := db.FindDialogState(s.db.WithContext(ctx), telegramID)
	if err != nil {
		return sess, fmt.Errorf("load dialog state: %w", err)
	}
	if row == nil {
		return sess, nil
	}
	sess.State = State(row.State)
	if row.Data != "" {
		if err := json.Unmarshal([]byte(row.Data), &sess.Data); err != nil {
			return sess, fmt.Errorf("decode dialog data: %w", err)
		}
	}
	return sess, nil
}

// Transition переводит пользователя в состояние to и добавляет data к накопленным данным.
// Переход в Idle и в начальные состояния сбрасывает данные.
func (s *Store) Transition(ctx context.Context, telegramID string, to State, data map[string]string) error {
	cur, err := s.Load(ctx, telegramID)
	if err != nil {
		return err
	}
	if !CanTransition(cur.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.State, to)
	}
	merged := map[string]string{}
	if continuations[cur.State] == to {
		for k, v := range cur.Data {
			merged[k] = v
		}
	}
	for k, v := range data {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return db.SaveDialogState(s.db.WithContext(ctx), telegramID, string(to), string(raw))
}

// Reset возвращает пользователя в Idle
func (s *Store) Reset(ctx context.Context, telegramID string) error {
	return s.Transition(ctx, telegramID, Idle, nil)
}
