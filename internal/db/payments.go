package db

import (
	"time"

	"gorm.io/gorm"
)

// PaymentCriteria описывает поиск оплаты.
// Email ищется строго; OrderID, Phone и PhoneSuffix объединяются через OR.
type PaymentCriteria struct {
	ID          uint
	Email       string
	OrderID     string
	Phone       string
	PhoneSuffix string
	Status      string
	Used        *bool
}

// FindLatestPayment возвращает самую свежую оплату по критериям (created_at desc, id desc).
func FindLatestPayment(tx *gorm.DB, c PaymentCriteria) (*Payment, error) {
	q := tx.Model(&Payment{})
	if c.Email != "" {
		q = q.Where("email = ?", c.Email)
	} else {
		alt := tx.Session(&gorm.Session{NewDB: true}).Where("order_id = ?", c.OrderID)
		if c.Phone != "" {
			alt = alt.Or("phone = ?", c.Phone)
		}
		if c.PhoneSuffix != "" {
			alt = alt.Or("phone LIKE ?", "%"+c.PhoneSuffix)
		}
		q = q.Where(alt)
	}
	if c.ID != 0 {
		q = q.Where("id = ?", c.ID)
	}
	if c.Status != "" {
		q = q.Where("status = ?", c.Status)
	}
	if c.Used != nil {
		q = q.Where("used = ?", *c.Used)
	}
	return first[Payment](q.Order("created_at desc").Order("id desc"))
}

func FindPaymentByOrderID(tx *gorm.DB, orderID string) (*Payment, error) {
	return first[Payment](tx.Where("order_id = ?", orderID))
}

func GetPayment(tx *gorm.DB, id uint) (*Payment, error) {
	return first[Payment](tx.Where("id = ?", id))
}

// LockPayment перечитывает оплату под блокировкой (в транзакции)
func LockPayment(tx *gorm.DB, id uint) (*Payment, error) {
	return first[Payment](forUpdate(tx).Where("id = ?", id))
}

// PaymentUpsert: нормализованные поля из вебхука. Пустые строки не затирают сохранённые.
type PaymentUpsert struct {
	OrderID     string
	Email       string
	Phone       string
	Status      string
	ProductName string
	CreatedAt   time.Time
}

// UpsertPayment создаёт оплату или обновляет существующую с тем же order_id.
// status и created_at перезаписываются всегда, флаг used не трогается.
func UpsertPayment(tx *gorm.DB, in PaymentUpsert) (*Payment, bool, error) {
	var (
		pay     *Payment
		created bool
	)
	err := tx.Transaction(func(tx *gorm.DB) error {
		existing, err := first[Payment](forUpdate(tx).Where("order_id = ?", in.OrderID))
		if err != nil {
			return err
		}
		if existing == nil {
			pay = &Payment{
				OrderID:     in.OrderID,
				Email:       in.Email,
				Phone:       in.Phone,
				Status:      in.Status,
				ProductName: in.ProductName,
				CreatedAt:   in.CreatedAt,
			}
			created = true
			return tx.Create(pay).Error
		}
		updates := map[string]interface{}{
			"status":     in.Status,
			"created_at": in.CreatedAt,
		}
		if in.Email != "" {
			updates["email"] = in.Email
		}
		if in.Phone != "" {
			updates["phone"] = in.Phone
		}
		if in.ProductName != "" {
			updates["product_name"] = in.ProductName
		}
		if err := tx.Model(existing).Updates(updates).Error; err != nil {
			return err
		}
		pay, err = GetPayment(tx, existing.ID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return pay, created, nil
}

func CreatePayment(tx *gorm.DB, pay *Payment) error {
	return tx.Create(pay).Error
}

func MarkPaymentUsed(tx *gorm.DB, id uint) error {
	return tx.Model(&Payment{}).Where("id = ?", id).Update("used", true).Error
}
