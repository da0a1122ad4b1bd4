package db

import "gorm.io/gorm"

func FindUserByTelegramID(tx *gorm.DB, telegramID string) (*User, error) {
	return first[User](tx.Where("telegram_id = ?", telegramID))
}

// FindUserByPaymentID возвращает владельца привязки оплаты
func FindUserByPaymentID(tx *gorm.DB, paymentID uint) (*User, error) {
	return first[User](tx.Where("payment_id = ?", paymentID).Order("id"))
}

// LockPaymentOwners перечитывает всех владельцев оплаты под блокировкой.
func LockPaymentOwners(tx *gorm.DB, paymentID uint) ([]User, error) {
	var users []User
	err := forUpdate(tx).Where("payment_id = ?", paymentID).Order("id").Find(&users).Error
	return users, err
}

// EnsureUser находит пользователя по Telegram ID или создаёт нового.
// Непустые username/fullName обновляют сохранённые значения.
func EnsureUser(tx *gorm.DB, telegramID, username, fullName string) (*User, error) {
	user, err := FindUserByTelegramID(tx, telegramID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &User{TelegramID: telegramID, Username: username, FullName: fullName}
		if err := tx.Create(user).Error; err != nil {
			return nil, err
		}
		return user, nil
	}
	updates := map[string]interface{}{}
	if username != "" && username != user.Username {
		updates["username"] = username
		user.Username = username
	}
	if fullName != "" && fullName != user.FullName {
		updates["full_name"] = fullName
		user.FullName = fullName
	}
	if len(updates) > 0 {
		if err := tx.Model(&User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return user, nil
}

func BindPayment(tx *gorm.DB, userID, paymentID uint) error {
	return tx.Model(&User{}).Where("id = ?", userID).Update("payment_id", paymentID).Error
}

func ClearBinding(tx *gorm.DB, userID uint) error {
	return tx.Model(&User{}).Where("id = ?", userID).Update("payment_id", nil).Error
}
