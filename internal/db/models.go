package db

import "time"

const (
	StatusPaid      = "paid"
	StatusPending   = "pending"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

const (
	ActionGranted  = "granted"
	ActionRevoked  = "revoked"
	ActionUnbanned = "unbanned"
)

// Payment: запись об оплате из вебхука платёжной системы
type Payment struct {
	ID          uint   `gorm:"primaryKey"`
	OrderID     string `gorm:"uniqueIndex;not null"`
	Email       string `gorm:"index"`
	Phone       string `gorm:"index"` // только цифры
	Status      string `gorm:"index;not null"`
	ProductName string
	CreatedAt   time.Time `gorm:"autoCreateTime:false;index"` // время покупки, а не вставки
	Used        bool      `gorm:"not null"`
}

// User: Telegram-аккаунт, привязанный не более чем к одной оплате.
type User struct {
	ID         uint   `gorm:"primaryKey"`
	TelegramID string `gorm:"uniqueIndex;not null"`
	Username   string
	FullName   string
	PaymentID  *uint `gorm:"index"`
}

// AccessLog: неизменяемая запись о выдаче/отзыве доступа
type AccessLog struct {
	ID         uint   `gorm:"primaryKey"`
	TelegramID string `gorm:"index"`
	Email      string `gorm:"index"`
	OrderID    string `gorm:"index"`
	GroupName  string
	GroupID    string
	Action     string
	Timestamp  time.Time `gorm:"index"`
	Comment    string
}

// CurrentGroup: группа, в которую выдаётся доступ. Актуальна последняя запись.
type CurrentGroup struct {
	ID         uint   `gorm:"primaryKey"`
	ChatID     *int64 // узнаём из первой заявки на вступление
	GroupName  string
	InviteLink string
}

func (CurrentGroup) TableName() string {
	return "current_group"
}

// DialogState хранит состояние многошагового диалога пользователя
type DialogState struct {
	ID         uint   `gorm:"primaryKey"`
	TelegramID string `gorm:"uniqueIndex;not null"`
	State      string `gorm:"not null"`
	Data       string // JSON с введёнными на предыдущих шагах значениями
	UpdatedAt  time.Time
}
